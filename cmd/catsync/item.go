package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joylabs/catsync/internal/store"
	"github.com/joylabs/catsync/internal/ui"
)

var itemCmd = &cobra.Command{
	Use:   "item <id>",
	Short: "Show a catalog object from the local replica",
	Long: `Look up a catalog object by id in the local replica.

For items, also lists variations and any team data annotations.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := openStore(cfg, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()

		row, err := st.GetObjectRow(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Printf("%s No object with id %s\n", ui.RenderWarn("⚠"), id)
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("\n%s %s\n\n", ui.RenderAccent(row.Type), row.ID)
		if row.Version != "" {
			fmt.Printf("Version: %s\n", row.Version)
		}
		if row.UpdatedAt != "" {
			fmt.Printf("Updated: %s\n", row.UpdatedAt)
		}
		if row.IsDeleted {
			fmt.Printf("State: %s\n", ui.RenderFail("deleted"))
		}

		if row.Table == "catalog_items" {
			if err := printVariations(ctx, st, id); err != nil {
				return err
			}
			if err := printTeamData(ctx, st, id); err != nil {
				return err
			}
		}
		fmt.Println()
		return nil
	},
}

func printVariations(ctx context.Context, st *store.Store, itemID string) error {
	variations, err := st.ItemVariations(ctx, itemID)
	if err != nil {
		return err
	}
	if len(variations) == 0 {
		return nil
	}

	fmt.Printf("\nVariations:\n")
	for _, v := range variations {
		line := fmt.Sprintf("  %s", v.Name)
		if v.SKU != "" {
			line += fmt.Sprintf("  sku=%s", v.SKU)
		}
		if v.UPC != "" {
			line += fmt.Sprintf("  upc=%s", v.UPC)
		}
		if v.PriceAmount != nil {
			line += fmt.Sprintf("  price=%d %s", *v.PriceAmount, v.PriceCurrency)
		}
		fmt.Println(line)
		fmt.Printf("    %s\n", ui.RenderDim(v.ID))
	}
	return nil
}

func printTeamData(ctx context.Context, st *store.Store, itemID string) error {
	td, err := st.GetTeamData(ctx, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nTeam data:\n")
	if td.Vendor != "" {
		fmt.Printf("  Vendor: %s\n", td.Vendor)
	}
	if td.CaseUPC != "" {
		fmt.Printf("  Case UPC: %s\n", td.CaseUPC)
	}
	if td.CaseCost != nil {
		fmt.Printf("  Case cost: %d\n", *td.CaseCost)
	}
	if td.CaseQuantity != nil {
		fmt.Printf("  Case quantity: %d\n", *td.CaseQuantity)
	}
	if td.Discontinued {
		fmt.Printf("  %s\n", ui.RenderWarn("Discontinued"))
	}
	if td.Notes != "" {
		fmt.Printf("  Notes: %s\n", td.Notes)
	}
	return nil
}

var teamDataCmd = &cobra.Command{
	Use:   "teamdata",
	Short: "Manage user-owned item annotations",
	Long: `Read and write the team data side table.

Team data (vendor, case pack details, notes) is owned locally, keyed by
item id, and survives catalog clears and schema migrations.`,
}

var (
	tdVendor       string
	tdCaseUPC      string
	tdCaseCost     int64
	tdCaseQuantity int64
	tdDiscontinued bool
	tdNotes        string
)

var teamDataSetCmd = &cobra.Command{
	Use:   "set <item-id>",
	Short: "Set team data for an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := openStore(cfg, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		td := &store.TeamData{
			ItemID:       args[0],
			Vendor:       tdVendor,
			CaseUPC:      tdCaseUPC,
			Discontinued: tdDiscontinued,
			Notes:        tdNotes,
		}
		if cmd.Flags().Changed("case-cost") {
			td.CaseCost = &tdCaseCost
		}
		if cmd.Flags().Changed("case-quantity") {
			td.CaseQuantity = &tdCaseQuantity
		}

		if err := st.UpsertTeamData(context.Background(), td); err != nil {
			return fmt.Errorf("failed to save team data: %w", err)
		}

		fmt.Printf("%s Team data saved for %s\n", ui.RenderPass("✓"), args[0])
		return nil
	},
}

func init() {
	teamDataSetCmd.Flags().StringVar(&tdVendor, "vendor", "", "vendor name")
	teamDataSetCmd.Flags().StringVar(&tdCaseUPC, "case-upc", "", "case barcode")
	teamDataSetCmd.Flags().Int64Var(&tdCaseCost, "case-cost", 0, "case cost in smallest currency unit")
	teamDataSetCmd.Flags().Int64Var(&tdCaseQuantity, "case-quantity", 0, "units per case")
	teamDataSetCmd.Flags().BoolVar(&tdDiscontinued, "discontinued", false, "mark item discontinued")
	teamDataSetCmd.Flags().StringVar(&tdNotes, "notes", "", "free-form notes")

	teamDataCmd.AddCommand(teamDataSetCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(teamDataCmd)
}
