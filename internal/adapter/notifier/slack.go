package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/solhaga/threatlens/internal/core/ports"
)

type SlackNotifier struct {
	botToken    string
	channel     string
	mentionTeam string
	httpClient  *http.Client
}

func NewSlackNotifier(botToken, channel, mentionTeam string) *SlackNotifier {
	return &SlackNotifier{
		botToken:    botToken,
		channel:     channel,
		mentionTeam: mentionTeam,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyCompromiseRisk sends a formatted alert when the root compromise
// probability crosses the configured threshold.
func (s *SlackNotifier) NotifyCompromiseRisk(alert ports.CompromiseAlert) error {
	blocks := s.buildCompromiseBlocks(alert)

	payload := SlackMessage{
		Channel: s.channel,
		Blocks:  blocks,
		Text: fmt.Sprintf("🚨 System compromise probability %.1f%% exceeds threshold %.1f%%",
			alert.RootProbability*100, alert.Threshold*100),
	}

	return s.sendMessage(payload)
}

func (s *SlackNotifier) buildCompromiseBlocks(alert ports.CompromiseAlert) []SlackBlock {
	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: "🚨 Compromise Risk Alert",
			},
		},
		{
			Type: "section",
			Fields: []SlackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Root probability:*\n%.3f", alert.RootProbability)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Threshold:*\n%.3f", alert.Threshold)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Method:*\n%s", alert.Kind)},
			},
		},
	}

	if alert.Kind == "simulation" {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Fields: []SlackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Trials:*\n%d", alert.Trials)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*95%% interval:*\n[%.3f, %.3f]", alert.IntervalLow, alert.IntervalHigh)},
			},
		})
	}

	if len(alert.TopThreats) > 0 {
		var lines []string
		for _, t := range alert.TopThreats {
			lines = append(lines, fmt.Sprintf("• *%s* (%.2f, %s): %s", t.ID, t.DreadScore, t.Tier, t.Description))
		}
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: "*Top ranked threats:*\n" + strings.Join(lines, "\n"),
			},
		})
	}

	if s.mentionTeam != "" {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("cc %s", s.mentionTeam),
			},
		})
	}

	return blocks
}

func (s *SlackNotifier) sendMessage(payload SlackMessage) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}

	req, err := http.NewRequest("POST", "https://slack.com/api/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create Slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack message: %w", err)
	}
	defer resp.Body.Close()

	var apiResp slackAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("failed to decode Slack response: %w", err)
	}

	if !apiResp.OK {
		return fmt.Errorf("slack API error: %s", apiResp.Error)
	}

	return nil
}

// Slack API payload structures

type SlackMessage struct {
	Channel string       `json:"channel"`
	Text    string       `json:"text"`
	Blocks  []SlackBlock `json:"blocks,omitempty"`
}

type SlackBlock struct {
	Type   string      `json:"type"`
	Text   *SlackText  `json:"text,omitempty"`
	Fields []SlackText `json:"fields,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackAPIResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
