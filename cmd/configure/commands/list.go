package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/store"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an owner's nodes",
		Long:  "List all nodes for an owner, with their type, parent and completion state",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, closeBackend, err := openBackend()
			if err != nil {
				return err
			}
			defer func() {
				if err := closeBackend(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close backend: %v\n", err)
				}
			}()

			nodes := store.NewNodeStore(backend, zap.NewNop())
			ctx := context.Background()
			if err := nodes.Load(ctx, owner); err != nil {
				return fmt.Errorf("failed to load nodes: %w", err)
			}

			all := nodes.Nodes()
			if len(all) == 0 {
				fmt.Println("No nodes found")
				return nil
			}

			fmt.Printf("Nodes for owner %s:\n", owner)
			for _, n := range all {
				state := " "
				if n.Completed {
					state = "x"
				}
				parent := "-"
				if n.ParentID != nil {
					parent = *n.ParentID
				}
				fmt.Printf("  [%s] %s  %-8s  parent=%s  %s\n", state, n.ID, n.Type, parent, n.Title)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID to list nodes for")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}
