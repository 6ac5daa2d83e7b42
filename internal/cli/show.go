package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/convo-memory/internal/memstore"
)

func init() {
	cmd := &cobra.Command{
		Use:   "show [memory.json]",
		Short: "Show a saved memory file",
		Long:  "Load a memory file produced by extract and print it.",
		Args:  cobra.ExactArgs(1),
		Run:   runShow,
	}

	cmd.Flags().Bool("summary", false, "Print per-type counts instead of full JSON")

	RootCmd.AddCommand(cmd)
}

func runShow(cmd *cobra.Command, args []string) {
	summary, _ := cmd.Flags().GetBool("summary")

	set, err := memstore.Load(args[0])
	if err != nil {
		exitErr("load memories", err)
	}

	if summary {
		fmt.Printf("%d memories:\n", set.Len())
		fmt.Printf("  - Preferences: %d\n", len(set.Preferences))
		fmt.Printf("  - Emotional patterns: %d\n", len(set.EmotionalPatterns))
		fmt.Printf("  - Long-term facts: %d\n", len(set.LongTermFacts))
		for _, m := range set.All() {
			fmt.Printf("  %s/%s: %s (%.2f)\n", m.Type, m.Key, m.Value, m.Confidence)
		}
		return
	}

	b, _ := json.MarshalIndent(set, "", "  ")
	fmt.Println(string(b))
}
