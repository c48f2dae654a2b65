package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cofabri/site-backend/internal/airtable"
	"github.com/cofabri/site-backend/internal/domain"
	"github.com/cofabri/site-backend/internal/pkg/httpclient"
	"github.com/cofabri/site-backend/internal/status"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	var (
		app    string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current system status indicator",
		Long: `Fetch incidents from the content source and print the aggregated
indicator, the same one the status widgets show.

Examples:
  cofabri status
  cofabri status --app "Atlas CRM" --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			source := airtable.NewClient(airtable.Config{
				BaseURL:           cfg.Airtable.BaseURL,
				APIKey:            cfg.Airtable.APIKey,
				BaseID:            cfg.Airtable.BaseID,
				RequestsPerSecond: cfg.Airtable.RateLimit,
			}, httpclient.New(httpclient.Config{
				Timeout:      cfg.Airtable.Timeout,
				AllowPrivate: cfg.Outbound.AllowPrivateNetworks,
			}))
			service := status.NewService(source, status.ServiceConfig{Table: cfg.Airtable.Tables.Status})

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			incidents, err := service.Incidents(ctx)
			if err != nil {
				return fmt.Errorf("load incidents: %w", err)
			}
			if app != "" {
				incidents = status.FilterForApp(incidents, app)
			}
			ind := status.Aggregate(incidents)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status.SummaryResponse{Indicator: ind, Operational: ind.Operational()})
			}
			printIndicator(cmd.OutOrStdout(), app, ind, status.Active(incidents))
			return nil
		},
	}

	cmd.Flags().StringVarP(&app, "app", "a", "", "limit to one application and platform-wide incidents")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "print the indicator as JSON")

	return cmd
}

func printIndicator(w io.Writer, app string, ind status.Indicator, active []domain.Incident) {
	if app != "" {
		fmt.Fprintf(w, "%s: ", status.DisplayName(app))
	}
	fmt.Fprintf(w, "%s (%s)\n", ind.Label, ind.Color)

	for _, inc := range active {
		fmt.Fprintf(w, "  %-10s %-13s %-8s %s\n", inc.TicketID, inc.PublicStatus, inc.Severity, inc.Title)
	}
}
