package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/store"
)

// NewRepairCmd creates the repair command
func NewRepairCmd() *cobra.Command {
	var owner string
	var nodeID string

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Repair relationship consistency",
		Long:  "Clear dangling and one-sided parent/child references for an owner's nodes",
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

			targets := nodes.Nodes()
			if nodeID != "" {
				n := nodes.Get(nodeID)
				if n == nil {
					return fmt.Errorf("node %s not found", nodeID)
				}
				targets = targets[:0]
				targets = append(targets, n)
			}

			repairedTotal := 0
			for _, n := range targets {
				repaired, err := nodes.RepairConsistency(ctx, n.ID)
				if err != nil {
					return fmt.Errorf("failed to repair node %s: %w", n.ID, err)
				}
				if len(repaired) > 0 {
					fmt.Printf("Repaired %s: %v\n", n.ID, repaired)
					repairedTotal += len(repaired)
				}
			}

			if repairedTotal == 0 {
				fmt.Println("No inconsistencies found")
			} else {
				fmt.Printf("Repaired %d reference(s)\n", repairedTotal)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID to repair")
	cmd.Flags().StringVar(&nodeID, "node", "", "Repair a single node (default: all nodes)")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}
