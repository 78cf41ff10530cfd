package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <node_id>",
		Short: "Detach a node (and its subtree) from the tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Delete("/api/v1/nodes/" + args[0]); err != nil {
				return fmt.Errorf("remove node: %w", err)
			}
			fmt.Printf("Removed %s\n", args[0])
			return nil
		},
	}
}
