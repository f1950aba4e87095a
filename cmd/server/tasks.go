package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jredh-dev/greenswap/config"
	"github.com/jredh-dev/greenswap/internal/database"
	"github.com/jredh-dev/greenswap/internal/impact"
	"github.com/jredh-dev/greenswap/internal/items"
	"github.com/jredh-dev/greenswap/internal/swap"
	"github.com/jredh-dev/greenswap/pkg/models"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair item availability and pending offers from swap history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := database.New(cfg.DB.Path)
			if err != nil {
				return fmt.Errorf("initialize database: %w", err)
			}
			defer db.Close()

			engine := swap.New(db, items.NewStore(db), nil, log, nil, swap.Config{
				SideEffectAttempts: cfg.Swap.SideEffectAttempts,
				SideEffectBackoff:  cfg.Swap.SideEffectBackoff,
				SideEffectBudget:   cfg.Swap.SideEffectBudget,
			})
			rep, err := engine.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
}

func newImpactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "impact <category> <condition>",
		Short: "Print the impact credit for one item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			credit, err := impact.CreditFor(models.Category(args[0]), models.ItemCondition(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "co2_saved=%.2f kg waste_reduced=%.2f kg\n", credit.CO2Saved, credit.WasteReduced)
			return nil
		},
	}
}
