package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"hospital-kpi-pipeline/internal/auth"
	"hospital-kpi-pipeline/internal/config"
	"hospital-kpi-pipeline/internal/endpoint"
	"hospital-kpi-pipeline/internal/model"
	"hospital-kpi-pipeline/internal/pipeline"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	flagEndpoints []string
	flagStartDate string
	flagEndDate   string
	flagBaseURL   string
	flagTimeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "kpi",
	Short: "Fetch hospital analytics endpoints and print KPI cards",
	Long: `kpi runs one dashboard refresh from the command line: it fetches the
requested analytics endpoints concurrently, aggregates the responses and
prints the resulting KPI cards.`,
	RunE: runRefresh,
}

func init() {
	rootCmd.Flags().StringSliceVar(&flagEndpoints, "endpoints", nil, "endpoint IDs to fetch (default: all ten)")
	rootCmd.Flags().StringVar(&flagStartDate, "start-date", "", "reporting window start (YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&flagEndDate, "end-date", "", "reporting window end (YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&flagBaseURL, "base-url", "", "override the upstream base URL")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "override the base endpoint timeout (e.g. 45s)")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	baseURL := cfg.BaseURL
	if flagBaseURL != "" {
		baseURL = flagBaseURL
	}
	baseTimeout := cfg.BaseTimeout
	if flagTimeout > 0 {
		baseTimeout = flagTimeout
	}

	ids := flagEndpoints
	if len(ids) == 0 {
		ids = endpoint.AllIDs
	}
	params := make(map[string]map[string]string, len(ids))
	for _, id := range ids {
		p := map[string]string{}
		if flagStartDate != "" {
			p["StartDate"] = flagStartDate
		}
		if flagEndDate != "" {
			p["EndDate"] = flagEndDate
		}
		params[id] = p
	}

	provider := auth.NewProvider(cfg.AuthURL, cfg.AuthUsername, cfg.AuthPassword)
	client := endpoint.NewClient(baseURL, provider, baseTimeout)
	pipe := pipeline.New(client)

	events := make(chan model.RunEvent, 64)
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("refreshing dashboard"),
		progressbar.OptionSetWidth(30),
	)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for ev := range events {
			bar.Set(ev.Percent)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := pipe.Run(ctx, model.RunRequest{
		EndpointIDs: ids,
		Params:      params,
		Events:      events,
	})
	close(events)
	<-consumed
	bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

func printResult(result *model.RunResult) {
	for _, ov := range result.Overrides {
		fmt.Printf("⚙️  [%s] defaulted %s=%s\n", ov.EndpointID, ov.Key, ov.Value)
	}
	if len(result.Overrides) > 0 {
		fmt.Println()
	}

	for _, card := range result.Cards {
		fmt.Printf("📊 %-35s %s", card.Title, card.Value)
		if card.Trend != nil {
			arrow := "▲"
			if card.Trend.Direction == "down" {
				arrow = "▼"
			}
			fmt.Printf("  %s %.1f%%", arrow, card.Trend.ChangePercent)
		}
		fmt.Println()
		if card.Alert != nil {
			fmt.Printf("   🚨 %s\n", card.Alert.Message)
		}
		for k, v := range card.HoverMetrics {
			fmt.Printf("   · %s: %s\n", k, v)
		}
		if len(card.LocalFilters) > 0 {
			var chips []string
			for _, chip := range card.LocalFilters {
				chips = append(chips, chip.Label+"="+chip.Value)
			}
			fmt.Printf("   · filters: %s\n", strings.Join(chips, ", "))
		}
	}

	for _, id := range endpoint.AllIDs {
		if res, ok := result.Results[id]; ok && !res.Success {
			fmt.Printf("❌ [%s] %s: %s\n", id, res.Kind, res.Message)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
