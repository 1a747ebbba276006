package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chorus/internal/api"
	"chorus/internal/config"
)

func newStatusCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and the job queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			client := &http.Client{Timeout: 5 * time.Second}
			base := "http://" + strings.TrimSpace(cfg.Paths.APIBind)
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var health api.HealthResponse
			if err := getJSON(client, base+"/api/health", &health); err != nil {
				return fmt.Errorf("chorusd is not reachable at %s: %w", base, err)
			}

			fmt.Fprintln(out, renderSectionHeader("Daemon", colorize))
			daemonKind := statusOK
			if health.Status != "ok" {
				daemonKind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Health", daemonKind, health.Status, colorize))
			for _, check := range health.Checks {
				kind := statusOK
				if !check.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
			}
			for _, dep := range health.Dependencies {
				kind := statusOK
				if !dep.Available {
					kind = statusError
				}
				detail := dep.Command
				if dep.Detail != "" {
					detail = dep.Detail
				}
				fmt.Fprintln(out, renderStatusLine(dep.Name, kind, detail, colorize))
			}

			var listing api.JobListResponse
			if err := getJSON(client, base+"/api/jobs", &listing); err != nil {
				return fmt.Errorf("fetch jobs: %w", err)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, renderSectionHeader("Jobs", colorize))
			if len(listing.Jobs) == 0 {
				fmt.Fprintln(out, statusIndent+"queue is empty")
				return nil
			}
			fmt.Fprintln(out, renderJobTable(listing.Jobs, colorize))
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func getJSON(client *http.Client, url string, target any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}
