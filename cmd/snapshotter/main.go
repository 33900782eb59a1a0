package main

import (
	"context"
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/solhaga/threatlens/internal/adapter/loader"
	"github.com/solhaga/threatlens/internal/adapter/notifier"
	"github.com/solhaga/threatlens/internal/adapter/provider"
	"github.com/solhaga/threatlens/internal/adapter/repository"
	"github.com/solhaga/threatlens/internal/core/domain"
	"github.com/solhaga/threatlens/internal/core/ports"
	"github.com/solhaga/threatlens/internal/core/simulation"
)

// Snapshotter runs one full assessment (analytic + Monte Carlo) and persists
// both results, so a cron job can build a risk posture history. When the root
// probability crosses ALERT_THRESHOLD it also pings Slack.
func main() {
	// Load .env file if it exists (optional - not every deployment needs Slack)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found (this is fine if the environment is already set)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	catalog, err := loadCatalog(ctx)
	if err != nil {
		log.Fatalf("❌ failed to load threat catalog: %v", err)
	}
	log.Printf("✅ catalog loaded with %d threats", catalog.Len())

	treePath := os.Getenv("TREE_PATH")
	if treePath == "" {
		log.Fatal("❌ TREE_PATH is required")
	}
	tree, err := loader.LoadTree(treePath, catalog)
	if err != nil {
		log.Fatalf("❌ failed to load attack tree: %v", err)
	}
	log.Println("✅ attack tree validated")

	dbURL := os.Getenv("ASSESSMENT_DB_URL")
	if dbURL == "" {
		log.Fatal("❌ ASSESSMENT_DB_URL is required")
	}
	dbPool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("❌ failed to connect to database: %v", err)
	}
	defer dbPool.Close()
	repo := repository.NewPostgresRepository(dbPool)

	// Analytic pass
	analytic, err := domain.EvaluateTree(tree, catalog)
	if err != nil {
		log.Fatalf("❌ analytic evaluation failed: %v", err)
	}
	log.Printf("📊 analytic root compromise probability: %.3f", analytic.Root)

	now := time.Now().UTC()
	if err := repo.Save(ctx, domain.Assessment{
		ID:              uuid.New().String(),
		Kind:            domain.AssessmentAnalytic,
		RootProbability: analytic.Root,
		IntervalLow:     analytic.Root,
		IntervalHigh:    analytic.Root,
		CreatedAt:       now,
	}); err != nil {
		log.Fatalf("❌ failed to persist analytic assessment: %v", err)
	}

	// Monte Carlo pass
	trials := getEnvInt("SIM_TRIALS", 10000)
	seed := time.Now().UnixNano()
	simResult, err := simulation.Run(ctx, tree, catalog, simulation.Options{
		Trials:  trials,
		Seed:    seed,
		Workers: getEnvInt("SIM_WORKERS", runtime.NumCPU()),
	})
	if err != nil {
		log.Fatalf("❌ simulation failed: %v", err)
	}
	log.Printf("🎲 Monte Carlo estimate (%d trials): %.3f, 95%% CI [%.3f, %.3f]",
		simResult.Trials, simResult.Estimate, simResult.IntervalLow, simResult.IntervalHigh)

	if err := repo.Save(ctx, domain.Assessment{
		ID:              uuid.New().String(),
		Kind:            domain.AssessmentSimulation,
		RootProbability: simResult.Estimate,
		Trials:          simResult.Trials,
		Seed:            seed,
		IntervalLow:     simResult.IntervalLow,
		IntervalHigh:    simResult.IntervalHigh,
		CreatedAt:       now,
	}); err != nil {
		log.Fatalf("❌ failed to persist simulation assessment: %v", err)
	}

	// Slack alert when the analytic result crosses the threshold
	threshold := getEnvFloat("ALERT_THRESHOLD", 0.5)
	if analytic.Root >= threshold {
		if slackToken := os.Getenv("SLACK_BOT_TOKEN"); slackToken != "" {
			slack := notifier.NewSlackNotifier(
				slackToken,
				getEnv("SLACK_CHANNEL_SECURITY", "#security-alerts"),
				getEnv("SLACK_MENTION_TEAM", "@security-team"),
			)

			alert := ports.CompromiseAlert{
				RootProbability: analytic.Root,
				Threshold:       threshold,
				Kind:            string(domain.AssessmentSimulation),
				Trials:          simResult.Trials,
				IntervalLow:     simResult.IntervalLow,
				IntervalHigh:    simResult.IntervalHigh,
				TopThreats:      topThreats(catalog, 3),
			}
			if err := slack.NotifyCompromiseRisk(alert); err != nil {
				log.Printf("⚠️  failed to send Slack alert: %v", err)
			} else {
				log.Println("✅ Slack alert sent")
			}
		} else {
			log.Printf("🚨 root probability %.3f exceeds threshold %.3f (no SLACK_BOT_TOKEN, alert not sent)",
				analytic.Root, threshold)
		}
	}

	log.Println("🏁 risk posture snapshot complete")
}

func loadCatalog(ctx context.Context) (*domain.Catalog, error) {
	if url := os.Getenv("CATALOG_URL"); url != "" {
		source := provider.NewHTTPCatalogSource(nil, url, provider.DefaultHTTPCatalogConfig())
		return source.FetchCatalog(ctx)
	}
	return loader.LoadCatalog(getEnv("CATALOG_PATH", "threats.json"))
}

func topThreats(catalog *domain.Catalog, n int) []ports.TopThreat {
	ranked, err := domain.ScoreAndRank(catalog)
	if err != nil {
		return nil
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	top := make([]ports.TopThreat, len(ranked))
	for i, t := range ranked {
		top[i] = ports.TopThreat{
			ID:          t.ID,
			DreadScore:  t.DreadScore,
			Tier:        string(t.Tier),
			Description: t.Description,
		}
	}
	return top
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
