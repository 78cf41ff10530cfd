package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/me/quarry/pkg/model"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var perNode bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show live fetcher counts and dispatch totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/stats")
			if err != nil {
				return fmt.Errorf("get stats: %w", err)
			}

			var stats model.Stats
			if err := json.Unmarshal(resp.Data, &stats); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Printf("Fetchers in flight: %s\n", humanize.Comma(int64(stats.Fetchers)))
			fmt.Printf("Units in flight:    %s\n", humanize.SIWithDigits(stats.Units, 2, ""))
			fmt.Printf("Lifetime units:     %s (%s dispatches)\n",
				humanize.SIWithDigits(stats.TotalUnits, 2, ""),
				humanize.Comma(int64(stats.TotalEvents)))

			if perNode {
				fmt.Println("Nodes:")
				for _, n := range stats.Nodes {
					fmt.Printf("  %-24s %-10s fetchers=%d units=%s pending=%s\n",
						n.Config.Name, n.Kind, n.Fetchers,
						humanize.SIWithDigits(n.Units, 2, ""),
						humanize.SIWithDigits(n.PendingQuota, 2, ""))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&perNode, "nodes", false, "Show per-node breakdown")
	return cmd
}
