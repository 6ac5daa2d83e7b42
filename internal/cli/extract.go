package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/convo-memory/internal/extract"
	"github.com/rcliao/convo-memory/internal/memstore"
	"github.com/rcliao/convo-memory/internal/model"
	"github.com/rcliao/convo-memory/internal/transcript"
)

func init() {
	cmd := &cobra.Command{
		Use:   "extract [transcript.json]",
		Short: "Extract memories from a transcript",
		Long: "Run the extraction pipeline over a transcript file and write the\n" +
			"aggregated memory set as JSON.",
		Args: cobra.ExactArgs(1),
		Run:  runExtract,
	}

	cmd.Flags().StringP("output", "o", "user_memory.json", "Output memory file")
	cmd.Flags().String("provider", "groq", "Oracle provider: groq, openai, anthropic, ollama")
	cmd.Flags().StringP("model", "m", "", "Oracle model id (provider default if empty)")
	cmd.Flags().Float64("temperature", 0, "Oracle temperature (keep 0 for reproducible runs)")
	cmd.Flags().Int("chunk-size", extract.DefaultConfig().ChunkSize, "Turns per extraction chunk")
	cmd.Flags().Float64("floor", extract.DefaultConfig().ConfidenceFloor, "Confidence floor; lower candidates are dropped")
	cmd.Flags().Duration("timeout", 0, "Per-chunk oracle timeout (0 = provider default)")
	cmd.Flags().Int("workers", extract.DefaultConfig().Workers, "Concurrent oracle calls")
	cmd.Flags().Bool("best-effort", false, "Skip failing chunks instead of aborting; gaps land in the run report")
	cmd.Flags().Bool("archive", false, "Also record the run in the archive database")

	RootCmd.AddCommand(cmd)
}

func runExtract(cmd *cobra.Command, args []string) {
	output, _ := cmd.Flags().GetString("output")
	provider, _ := cmd.Flags().GetString("provider")
	modelID, _ := cmd.Flags().GetString("model")
	temperature, _ := cmd.Flags().GetFloat64("temperature")
	chunkSize, _ := cmd.Flags().GetInt("chunk-size")
	floor, _ := cmd.Flags().GetFloat64("floor")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	workers, _ := cmd.Flags().GetInt("workers")
	bestEffort, _ := cmd.Flags().GetBool("best-effort")
	archive, _ := cmd.Flags().GetBool("archive")

	turns, err := transcript.Load(args[0])
	if err != nil {
		exitErr("load transcript", err)
	}
	logger.Info("loaded transcript", "turns", len(turns))

	cfg := extract.Config{
		Provider:        provider,
		Model:           modelID,
		Temperature:     temperature,
		ChunkSize:       chunkSize,
		ConfidenceFloor: floor,
		Timeout:         timeout,
		Workers:         workers,
		BestEffort:      bestEffort,
	}

	set, report, err := extract.Run(cmd.Context(), turns, cfg, logger)
	if err != nil {
		exitErr("extract", err)
	}

	if err := memstore.Save(output, set); err != nil {
		exitErr("save memories", err)
	}

	if archive {
		a, err := openArchive()
		if err != nil {
			exitErr("open archive", err)
		}
		defer a.Close()
		run, err := a.SaveRun(cmd.Context(), report, set)
		if err != nil {
			exitErr("archive run", err)
		}
		logger.Info("archived run", "id", run.ID)
	}

	printSummary(set, report, output)
}

func printSummary(set *model.MemorySet, report *extract.Report, output string) {
	fmt.Printf("Extracted %d unique memories from %d chunks in %s:\n",
		set.Len(), report.Chunks, report.Duration.Round(time.Millisecond))
	fmt.Printf("  - Preferences: %d\n", len(set.Preferences))
	fmt.Printf("  - Emotional patterns: %d\n", len(set.EmotionalPatterns))
	fmt.Printf("  - Long-term facts: %d\n", len(set.LongTermFacts))
	for _, s := range report.Skipped {
		fmt.Printf("  ! chunk %d skipped: %s\n", s.Chunk, s.Reason)
	}
	fmt.Printf("Memories saved to %s\n", output)
}
