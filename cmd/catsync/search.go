package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joylabs/catsync/internal/store"
	"github.com/joylabs/catsync/internal/ui"
)

var (
	searchName     bool
	searchSKU      bool
	searchBarcode  bool
	searchCategory bool
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search the local catalog replica",
	Long: `Search items in the local replica without touching the network.

Enabled filters run independently and their results are unioned: an item
matching any enabled field is returned once. With no filter flags, all
filters are enabled.

Name matching tokenizes the query; multi-word queries match items whose
name contains every token in any order ("brew coffee" finds "Organic
Cold Brew Coffee"). SKU and barcode matching is by substring; digit-only
barcode queries also hit exact case UPCs from team data.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		term := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := openStore(cfg, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		filters := store.SearchFilters{
			Name:     searchName,
			SKU:      searchSKU,
			Barcode:  searchBarcode,
			Category: searchCategory,
		}
		if !searchName && !searchSKU && !searchBarcode && !searchCategory {
			filters = store.SearchFilters{Name: true, SKU: true, Barcode: true, Category: true}
		}

		results, err := st.Search(context.Background(), term, filters)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		if len(results) == 0 {
			fmt.Printf("%s No items match %q\n", ui.RenderWarn("⚠"), term)
			return nil
		}

		fmt.Printf("\n%s %d result(s) for %q\n\n", ui.RenderAccent("🔍"), len(results), term)
		for _, r := range results {
			detail := make([]string, 0, 3)
			if r.SKU != "" {
				detail = append(detail, "sku "+r.SKU)
			}
			if r.UPC != "" {
				detail = append(detail, "upc "+r.UPC)
			}
			detail = append(detail, "via "+string(r.MatchType))

			fmt.Printf("  %s  %s\n", r.Name, ui.RenderDim("("+strings.Join(detail, ", ")+")"))
			fmt.Printf("    %s\n", ui.RenderDim(r.ItemID))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	searchCmd.Flags().BoolVar(&searchName, "name", false, "match item names")
	searchCmd.Flags().BoolVar(&searchSKU, "sku", false, "match variation SKUs")
	searchCmd.Flags().BoolVar(&searchBarcode, "barcode", false, "match UPCs and case UPCs")
	searchCmd.Flags().BoolVar(&searchCategory, "category", false, "match category names")
	rootCmd.AddCommand(searchCmd)
}
