package cli

import (
	"fmt"

	"github.com/me/quarry/pkg/model"
	"github.com/spf13/cobra"
)

func newMoveCmd() *cobra.Command {
	var parentID string

	cmd := &cobra.Command{
		Use:   "move <node_id>",
		Short: "Reparent a node under another group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := model.MoveNodeRequest{ParentID: parentID}
			if _, err := client.Put("/api/v1/nodes/"+args[0]+"/parent", req); err != nil {
				return fmt.Errorf("move node: %w", err)
			}
			fmt.Printf("Moved %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&parentID, "parent", "", "New parent group ID (default: root)")
	return cmd
}
