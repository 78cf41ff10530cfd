package cli

import (
	"encoding/json"
	"fmt"

	"github.com/me/quarry/pkg/model"
	"github.com/spf13/cobra"
)

func newAddCmd() *cobra.Command {
	var (
		parentID  string
		name      string
		url       string
		priority  float64
		yieldRate float64
		disabled  bool
	)

	cmd := &cobra.Command{
		Use:   "add <kind>",
		Short: "Add a work source node (kind: group, http, synthetic)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := model.CreateNodeRequest{
				ParentID: parentID,
				Kind:     model.SourceKind(args[0]),
				Config: model.SourceConfig{
					Name:      name,
					Enabled:   !disabled,
					Priority:  priority,
					YieldRate: yieldRate,
					URL:       url,
				},
			}

			resp, err := client.Post("/api/v1/nodes", req)
			if err != nil {
				return fmt.Errorf("add node: %w", err)
			}

			var node model.NodeDescriptor
			if err := json.Unmarshal(resp.Data, &node); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Printf("Added %s %q (%s)\n", node.Kind, node.Config.Name, node.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&parentID, "parent", "", "Parent group ID (default: root)")
	cmd.Flags().StringVar(&name, "name", "", "Node name")
	cmd.Flags().StringVar(&url, "url", "", "Upstream URL (http kind)")
	cmd.Flags().Float64Var(&priority, "priority", 1, "Scheduling priority")
	cmd.Flags().Float64Var(&yieldRate, "yield", 0, "Yield rate estimate, units/sec (leaf kinds)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the node disabled")
	return cmd
}
