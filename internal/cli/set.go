package cli

import (
	"encoding/json"
	"fmt"

	"github.com/me/quarry/pkg/model"
	"github.com/spf13/cobra"
)

func newSetCmd() *cobra.Command {
	var (
		name        string
		url         string
		priority    float64
		yieldRate   float64
		granularity float64
		batchUnits  float64
		maxFetchers int
		enabled     bool
	)

	cmd := &cobra.Command{
		Use:   "set <node_id>",
		Short: "Update a node's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/nodes/" + args[0])
			if err != nil {
				return fmt.Errorf("get node: %w", err)
			}
			var node model.NodeDescriptor
			if err := json.Unmarshal(resp.Data, &node); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			// Only flags the user passed override the current config.
			cfg := node.Config
			if cmd.Flags().Changed("name") {
				cfg.Name = name
			}
			if cmd.Flags().Changed("url") {
				cfg.URL = url
			}
			if cmd.Flags().Changed("priority") {
				cfg.Priority = priority
			}
			if cmd.Flags().Changed("yield") {
				cfg.YieldRate = yieldRate
			}
			if cmd.Flags().Changed("granularity") {
				cfg.Granularity = granularity
			}
			if cmd.Flags().Changed("batch-units") {
				cfg.BatchUnits = batchUnits
			}
			if cmd.Flags().Changed("max-fetchers") {
				cfg.MaxFetchers = maxFetchers
			}
			if cmd.Flags().Changed("enabled") {
				cfg.Enabled = enabled
			}

			if _, err := client.Patch("/api/v1/nodes/"+args[0], cfg); err != nil {
				return fmt.Errorf("update node: %w", err)
			}
			fmt.Printf("Updated %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Node name")
	cmd.Flags().StringVar(&url, "url", "", "Upstream URL (http kind)")
	cmd.Flags().Float64Var(&priority, "priority", 1, "Scheduling priority")
	cmd.Flags().Float64Var(&yieldRate, "yield", 0, "Yield rate estimate, units/sec (leaf kinds)")
	cmd.Flags().Float64Var(&granularity, "granularity", 16, "Quota granularity (group kinds)")
	cmd.Flags().Float64Var(&batchUnits, "batch-units", 1, "Units fetched per request (leaf kinds)")
	cmd.Flags().IntVar(&maxFetchers, "max-fetchers", 4, "Concurrent fetcher limit (leaf kinds)")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "Enable or disable the node")
	return cmd
}
