package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List known pipeline runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			states, err := client.runs(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(states)
			}
			if len(states) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(states))
			for _, state := range states {
				rows = append(rows, []string{
					state.RunTraceID,
					state.BrandID,
					state.PostPlanID,
					string(state.CurrentPhase),
					string(state.Status),
					fmt.Sprintf("%v", state.IsComplete),
					formatTime(state.LastUpdateUtc),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Brand", "Plan", "Phase", "Status", "Complete", "Updated"},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit runs as JSON")
	return cmd
}
