package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"postforge/internal/run"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var showEvents bool

	cmd := &cobra.Command{
		Use:   "status <run-trace-id>",
		Short: "Show the state of one pipeline run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runTraceID := strings.TrimSpace(args[0])
			if runTraceID == "" {
				return errors.New("run trace id must not be empty")
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			state, err := client.status(cmd.Context(), runTraceID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(state)
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Phase", "Status", "Complete", "Updated"},
				[][]string{{
					state.RunTraceID,
					string(state.CurrentPhase),
					string(state.Status),
					fmt.Sprintf("%v", state.IsComplete),
					formatTime(state.LastUpdateUtc),
				}},
			))

			if len(state.Summary) > 0 {
				fmt.Fprintln(out, renderTable([]string{"Summary Field", "Value"}, summaryRows(state.Summary)))
			}
			if showEvents && len(state.Events) > 0 {
				fmt.Fprintln(out, renderTable([]string{"Time", "Phase", "Action", "Message"}, eventRows(state.Events)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the raw run state as JSON")
	cmd.Flags().BoolVar(&showEvents, "events", false, "Include the run's event log")
	return cmd
}

func summaryRows(summary map[string]any) [][]string {
	rows := make([][]string, 0, len(summary))
	for _, key := range sortedKeys(summary) {
		rows = append(rows, []string{key, formatSummaryValue(summary[key])})
	}
	return rows
}

func eventRows(events []run.Event) [][]string {
	rows := make([][]string, 0, len(events))
	for _, event := range events {
		rows = append(rows, []string{
			formatTime(event.TS),
			string(event.Phase),
			event.Action,
			event.Message,
		})
	}
	return rows
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func formatSummaryValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
