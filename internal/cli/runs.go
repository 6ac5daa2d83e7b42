package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect archived extraction runs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		Run:   runRunsList,
	}

	showCmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show an archived run and its memory set",
		Args:  cobra.ExactArgs(1),
		Run:   runRunsShow,
	}

	runsCmd.AddCommand(listCmd, showCmd)
	RootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, args []string) {
	a, err := openArchive()
	if err != nil {
		exitErr("open archive", err)
	}
	defer a.Close()

	runs, err := a.ListRuns(cmd.Context())
	if err != nil {
		exitErr("list runs", err)
	}

	b, _ := json.MarshalIndent(runs, "", "  ")
	fmt.Println(string(b))
}

func runRunsShow(cmd *cobra.Command, args []string) {
	a, err := openArchive()
	if err != nil {
		exitErr("open archive", err)
	}
	defer a.Close()

	run, set, err := a.GetRun(cmd.Context(), args[0])
	if err != nil {
		exitErr("get run", err)
	}

	out := struct {
		Run      any `json:"run"`
		Memories any `json:"memories"`
	}{Run: run, Memories: set}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
