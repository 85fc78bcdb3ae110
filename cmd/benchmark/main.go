// ABOUTME: Command-line runner for the retrieval quality benchmarks
// ABOUTME: Runs scenarios offline with the hash embedder, or with OpenAI embeddings when asked
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/harper/riskmem/benchmarks/retrieval"
	"github.com/harper/riskmem/internal/config"
	"github.com/harper/riskmem/internal/core"
	"github.com/harper/riskmem/internal/llm"
	"github.com/joho/godotenv"
)

func main() {
	scenarioID := flag.String("scenario", "", "Run one scenario (login, payments, pinned). If empty, runs all.")
	outputPath := flag.String("output", "benchmark_results.json", "Output path for JSON results")
	useOpenAI := flag.Bool("openai", false, "Embed with OpenAI instead of the hash embedder")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", "err", err)
	}

	var embedder core.Embedder = llm.NewHashEmbedder(256)
	if *useOpenAI {
		client, err := llm.NewOpenAIClientWithConfig(&llm.ClientConfig{
			APIKey:            cfg.OpenAIKey,
			BaseURL:           cfg.OpenAIBaseURL,
			EmbeddingModel:    cfg.EmbeddingModel,
			MaxRetries:        cfg.MaxRetries,
			RetryDelay:        cfg.RetryDelay,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			log.Fatal("failed to create OpenAI client", "err", err)
		}
		embedder = client
	}

	runner := retrieval.NewRunner(embedder, core.OptionsFromConfig(cfg))
	ctx := context.Background()

	var results []retrieval.Result
	if *scenarioID == "" {
		results, err = runner.RunAll(ctx)
		if err != nil {
			log.Fatal("benchmark failed", "err", err)
		}
	} else {
		sc, ok := retrieval.ScenarioByID(*scenarioID)
		if !ok {
			log.Fatal("unknown scenario", "id", *scenarioID)
		}
		res, err := runner.Run(ctx, sc)
		if err != nil {
			log.Fatal("scenario failed", "err", err)
		}
		results = []retrieval.Result{res}
	}

	summary := runner.Summarize(results)

	fmt.Println("========================================")
	fmt.Printf("Retrieval benchmarks (%s)\n", summary.Embedder)
	fmt.Println("========================================")
	for _, r := range results {
		fmt.Printf("\n%s: %s\n", r.ScenarioID, r.ScenarioName)
		fmt.Printf("  Context Recall: %.2f\n", r.ContextRecall)
		fmt.Printf("  MRR:            %.2f\n", r.MRR)
		fmt.Printf("  Pinned Recall:  %.2f\n", r.PinnedRecall)
		fmt.Printf("  Status:         %s\n", r.Status)
	}
	fmt.Println("\n========================================")
	fmt.Printf("Total: %d  Passed: %d  Failed: %d\n", summary.Total, summary.Passed, summary.Failed)

	if err := summary.Export(*outputPath); err != nil {
		log.Fatal("failed to export results", "err", err)
	}
	fmt.Printf("✓ Results exported to: %s\n", *outputPath)

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
