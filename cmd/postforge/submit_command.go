package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"postforge/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var brandID string
	var postPlanID string
	var runTraceID string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a post plan for production",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(brandID) == "" {
				return errors.New("--brand is required")
			}
			if strings.TrimSpace(postPlanID) == "" {
				return errors.New("--plan is required")
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.orchestrate(cmd.Context(), api.OrchestrateRequest{
				BrandID:    brandID,
				PostPlanID: postPlanID,
				RunTraceID: runTraceID,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run accepted: %s\n", resp.RunTraceID)
			fmt.Fprintf(out, "Track it with: postforge status %s\n", resp.RunTraceID)
			return nil
		},
	}

	cmd.Flags().StringVar(&brandID, "brand", "", "Brand id the plan belongs to")
	cmd.Flags().StringVar(&postPlanID, "plan", "", "Post plan id to produce")
	cmd.Flags().StringVar(&runTraceID, "run-trace-id", "", "Reuse an explicit run trace id (optional)")
	return cmd
}
