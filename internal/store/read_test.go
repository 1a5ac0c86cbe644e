package store

import (
	"context"
	"errors"
	"testing"

	"github.com/joylabs/catsync/internal/catalog"
)

// TestListCategoriesOrdering verifies the non-deleted filter and
// case-insensitive name ordering.
func TestListCategoriesOrdering(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	tomb := decodeObject(t, `{"type": "CATEGORY", "id": "cat-3", "is_deleted": true, "category_data": {"name": "Archive"}}`)
	applyObjects(t, st, ApplyOptions{Bulk: true},
		testCategory(t, "cat-1", "snacks"),
		testCategory(t, "cat-2", "Beverages"),
		tomb)

	cats, err := st.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories failed: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("got %d categories, want 2 (deleted excluded)", len(cats))
	}
	if cats[0].Name != "Beverages" || cats[1].Name != "snacks" {
		t.Errorf("ordering = [%s, %s], want case-insensitive by name", cats[0].Name, cats[1].Name)
	}
}

// TestListTaxes verifies tax listing with the enabled flag decoded.
func TestListTaxes(t *testing.T) {
	st := setupTestStore(t)

	tax := decodeObject(t, `{"type": "TAX", "id": "tax-1", "tax_data": {"name": "Sales Tax", "percentage": "8.25", "enabled": true}}`)
	applyObjects(t, st, ApplyOptions{Bulk: true}, tax)

	taxes, err := st.ListTaxes(context.Background())
	if err != nil {
		t.Fatalf("ListTaxes failed: %v", err)
	}
	if len(taxes) != 1 {
		t.Fatalf("got %d taxes, want 1", len(taxes))
	}
	if taxes[0].Percentage != "8.25" || !taxes[0].Enabled {
		t.Errorf("tax fields wrong: %+v", taxes[0])
	}
}

// TestGetObjectRow verifies id lookup across tables.
func TestGetObjectRow(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	applyObjects(t, st, ApplyOptions{Bulk: true},
		testItem(t, "item-1", "Widget", "W-1", ""),
		testCategory(t, "cat-1", "Drinks"))

	row, err := st.GetObjectRow(ctx, "cat-1")
	if err != nil {
		t.Fatalf("GetObjectRow failed: %v", err)
	}
	if row.Table != "categories" || row.Type != "CATEGORY" {
		t.Errorf("row = %+v, want categories/CATEGORY", row)
	}
	if len(row.DataJSON) == 0 {
		t.Error("stored wire payload missing")
	}

	if _, err := st.GetObjectRow(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("lookup of unknown id = %v, want ErrNotFound", err)
	}
}

// TestItemVariationsOrdering verifies variations come back in ordinal
// order.
func TestItemVariationsOrdering(t *testing.T) {
	st := setupTestStore(t)

	obj := decodeObject(t, `{
		"type": "ITEM",
		"id": "item-1",
		"item_data": {
			"name": "Coffee",
			"variations": [
				{"type": "ITEM_VARIATION", "id": "v-large", "item_variation_data": {"name": "Large", "ordinal": 2}},
				{"type": "ITEM_VARIATION", "id": "v-small", "item_variation_data": {"name": "Small", "ordinal": 1}}
			]
		}
	}`)
	applyObjects(t, st, ApplyOptions{Bulk: true}, obj)

	variations, err := st.ItemVariations(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("ItemVariations failed: %v", err)
	}
	if len(variations) != 2 {
		t.Fatalf("got %d variations, want 2", len(variations))
	}
	if variations[0].Name != "Small" || variations[1].Name != "Large" {
		t.Errorf("ordering = [%s, %s], want ordinal order", variations[0].Name, variations[1].Name)
	}
}

// TestReplaceLocations verifies the wholesale location swap.
func TestReplaceLocations(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	first := []catalog.Location{
		{ID: "loc-1", Name: "Downtown", Timezone: "America/New_York", Status: "ACTIVE"},
		{ID: "loc-2", Name: "Airport", Timezone: "America/New_York", Status: "ACTIVE"},
	}
	if err := st.ReplaceLocations(ctx, first); err != nil {
		t.Fatalf("ReplaceLocations failed: %v", err)
	}

	second := []catalog.Location{
		{ID: "loc-3", Name: "Harbor", Timezone: "America/New_York", Status: "ACTIVE"},
	}
	if err := st.ReplaceLocations(ctx, second); err != nil {
		t.Fatalf("second ReplaceLocations failed: %v", err)
	}

	locations, err := st.ListLocations(ctx)
	if err != nil {
		t.Fatalf("ListLocations failed: %v", err)
	}
	if len(locations) != 1 || locations[0].ID != "loc-3" {
		t.Errorf("locations = %+v, want wholesale replacement with loc-3", locations)
	}
}
