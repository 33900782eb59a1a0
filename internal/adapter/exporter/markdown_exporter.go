package exporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/solhaga/threatlens/internal/core/domain"
)

// MarkdownExporter writes ranked threats as a Markdown table, ready to paste
// into an assessment report.
type MarkdownExporter struct{}

func NewMarkdownExporter() *MarkdownExporter {
	return &MarkdownExporter{}
}

// Export writes the ranked threats to w as a Markdown document. The input
// must already be ranked; the exporter never reorders.
func (e *MarkdownExporter) Export(w io.Writer, ranked []domain.ScoredThreat) error {
	var b strings.Builder

	b.WriteString("# Ranked Threats\n\n")
	b.WriteString("| Rank | ID | Score | Severity | STRIDE | Location | Description | Mitigations | Probability |\n")
	b.WriteString("|---:|:--:|--:|:--:|:--|:--|:--|:--|--:|\n")

	for i, t := range ranked {
		fmt.Fprintf(&b, "| %d | %s | %.2f | %s | %s | %s | %s | %s | %g |\n",
			i+1,
			escapeCell(t.ID),
			t.DreadScore,
			t.Tier,
			joinStride(t.Stride, "/"),
			escapeCell(t.Location),
			escapeCell(t.Description),
			escapeCell(strings.Join(t.Mitigations, "; ")),
			t.Probability,
		)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write Markdown output: %w", err)
	}
	return nil
}

// escapeCell keeps pipes in free text from breaking the table layout.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
