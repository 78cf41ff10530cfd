package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/me/quarry/pkg/model"
	"github.com/spf13/cobra"
)

func newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show the work source tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/tree")
			if err != nil {
				return fmt.Errorf("get tree: %w", err)
			}

			var root model.NodeDescriptor
			if err := json.Unmarshal(resp.Data, &root); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			printNode(root, 0)
			return nil
		},
	}
}

func printNode(n model.NodeDescriptor, depth int) {
	indent := strings.Repeat("  ", depth)
	state := "disabled"
	if n.Config.Enabled {
		state = "enabled"
	}

	switch {
	case n.Kind.IsGroup():
		fmt.Printf("%s%s [%s, %s, priority %g, granularity %g]  %s\n",
			indent, n.Config.Name, n.Kind, state, n.Config.Priority, n.Config.Granularity, n.ID)
	default:
		fmt.Printf("%s%s [%s, %s, priority %g, yield %g/s]  %s\n",
			indent, n.Config.Name, n.Kind, state, n.Config.Priority, n.Config.YieldRate, n.ID)
	}

	for _, child := range n.Children {
		printNode(child, depth+1)
	}
}
