package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/solhaga/threatlens/internal/adapter/exporter"
	"github.com/solhaga/threatlens/internal/adapter/loader"
	"github.com/solhaga/threatlens/internal/core/domain"
	"github.com/solhaga/threatlens/internal/core/simulation"
)

func main() {
	catalogPath := flag.String("catalog", "", "Threat catalog file (JSON or YAML)")
	treePath := flag.String("tree", "", "Attack tree file (optional)")
	trials := flag.Int("simulate", 0, "Run Monte Carlo simulation with N trials")
	seed := flag.Int64("seed", 0, "Simulation seed (0 = derive from current time)")
	workers := flag.Int("workers", runtime.NumCPU(), "Parallel simulation workers")
	csvPath := flag.String("csv", "", "Export ranked threats to CSV file")
	mdPath := flag.String("md", "", "Export ranked threats to Markdown file")
	flag.Parse()

	if *catalogPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	catalog, err := loader.LoadCatalog(*catalogPath)
	if err != nil {
		log.Fatalf("❌ failed to load catalog: %v", err)
	}

	ranked, err := domain.ScoreAndRank(catalog)
	if err != nil {
		log.Fatalf("❌ failed to score catalog: %v", err)
	}

	printReport(ranked)

	if *csvPath != "" {
		if err := exportToFile(*csvPath, ranked, exporter.NewCSVExporter().Export); err != nil {
			log.Fatalf("❌ CSV export failed: %v", err)
		}
		fmt.Printf("✅ CSV exported to %s\n", *csvPath)
	}
	if *mdPath != "" {
		if err := exportToFile(*mdPath, ranked, exporter.NewMarkdownExporter().Export); err != nil {
			log.Fatalf("❌ Markdown export failed: %v", err)
		}
		fmt.Printf("✅ Markdown exported to %s\n", *mdPath)
	}

	if *treePath == "" && *trials <= 0 {
		return
	}

	// With no tree file, fall back to the OR of every catalog threat: "at
	// least one modeled threat occurs" as the compromise condition.
	var tree domain.Node
	if *treePath != "" {
		tree, err = loader.LoadTree(*treePath, catalog)
		if err != nil {
			log.Fatalf("❌ failed to load attack tree: %v", err)
		}
	} else {
		tree = orOfAllThreats(catalog)
	}

	result, err := domain.EvaluateTree(tree, catalog)
	if err != nil {
		log.Fatalf("❌ analytic evaluation failed: %v", err)
	}
	fmt.Printf("\nRoot compromise probability (analytic): %.3f\n", result.Root)

	if *trials > 0 {
		simSeed := *seed
		if simSeed == 0 {
			simSeed = time.Now().UnixNano()
		}

		simResult, err := simulation.Run(context.Background(), tree, catalog, simulation.Options{
			Trials:  *trials,
			Seed:    simSeed,
			Workers: *workers,
		})
		if err != nil {
			log.Fatalf("❌ simulation failed: %v", err)
		}

		fmt.Printf("Root compromise probability (Monte Carlo, %d trials, seed %d): %.3f, 95%% CI [%.3f, %.3f]\n",
			simResult.Trials, simSeed, simResult.Estimate, simResult.IntervalLow, simResult.IntervalHigh)
		fmt.Printf("Deviation from analytic result: %.4f\n", abs(simResult.Estimate-result.Root))
	}
}

func printReport(ranked []domain.ScoredThreat) {
	fmt.Println("\n=== Ranked Threats (by DREAD score) ===")
	fmt.Printf("%-5s %-6s %5s  %-9s %6s  %s\n", "Rank", "ID", "Score", "Severity", "Prob", "Description")
	fmt.Println("--------------------------------------------------------------------------------")
	for i, t := range ranked {
		fmt.Printf("%-5d %-6s %5.2f  %-9s %6.2f  %s\n", i+1, t.ID, t.DreadScore, t.Tier, t.Probability, t.Description)
	}
	fmt.Println()
}

func exportToFile(path string, ranked []domain.ScoredThreat, export func(w io.Writer, ranked []domain.ScoredThreat) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := export(file, ranked); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func orOfAllThreats(catalog *domain.Catalog) domain.Node {
	records := catalog.Records()
	children := make([]domain.Node, len(records))
	for i, rec := range records {
		children[i] = &domain.Leaf{ThreatID: rec.ID}
	}
	return &domain.OrNode{Children: children}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
