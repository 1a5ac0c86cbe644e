package store

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"

	"github.com/joylabs/catsync/internal/catalog"
)

// Row is one normalized table row derived from a wire object: the target
// table, the primary key, the promoted columns, and the full serialized
// wire object. The promoted columns are always a strict projection of
// DataJSON; re-deriving them is idempotent.
type Row struct {
	Table    string
	ID       string
	Cols     []string
	Vals     []any
	DataJSON []byte
}

// SkippedChild records a nested child (an inline variation) that could not
// be normalized. The parent object is unaffected.
type SkippedChild struct {
	ID  string
	Err error
}

// Result is the output of Normalize: the rows to persist plus any nested
// children that were dropped.
type Result struct {
	Rows    []Row
	Skipped []SkippedChild
}

// tableForType maps an object type to its normalized table.
var tableForType = map[catalog.ObjectType]string{
	catalog.TypeItem:          "catalog_items",
	catalog.TypeCategory:      "categories",
	catalog.TypeItemVariation: "item_variations",
	catalog.TypeModifierList:  "modifier_lists",
	catalog.TypeModifier:      "modifiers",
	catalog.TypeTax:           "taxes",
	catalog.TypeDiscount:      "discounts",
	catalog.TypeImage:         "images",
}

// Normalize converts one wire object into zero or more table rows.
//
// This is a pure function: no I/O, no logging. An ITEM with inline
// variations yields one row per variation; each child's denormalized
// item_id is overridden with the true parent id, in both the promoted
// column and the stored data_json, because nested payloads have been seen
// with stale or missing parent references.
//
// Unknown object types return catalog.ErrUnsupportedType so callers can
// log and skip; the remote catalog may add object kinds at any time.
func Normalize(obj catalog.Object) (Result, error) {
	if err := obj.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid catalog object: %w", err)
	}

	raw, err := objectJSON(obj)
	if err != nil {
		return Result{}, fmt.Errorf("failed to serialize object %s: %w", obj.ID, err)
	}

	switch obj.Type {
	case catalog.TypeItem:
		return normalizeItem(obj, raw)
	case catalog.TypeItemVariation:
		row, err := variationRow(obj, raw, parentIDFromPayload(obj))
		if err != nil {
			return Result{}, err
		}
		return Result{Rows: []Row{row}}, nil
	case catalog.TypeCategory:
		var name, parent string
		if obj.CategoryData != nil {
			name = obj.CategoryData.Name
			parent = obj.CategoryData.ParentCategoryID
		}
		return singleRow(obj, raw, "categories",
			[]string{"name", "parent_category_id", "updated_at", "version", "is_deleted"},
			[]any{name, parent, obj.UpdatedAt, obj.Version, boolInt(obj.IsDeleted)}), nil
	case catalog.TypeModifierList:
		var name, sel string
		if obj.ModifierListData != nil {
			name = obj.ModifierListData.Name
			sel = obj.ModifierListData.SelectionType
		}
		return singleRow(obj, raw, "modifier_lists",
			[]string{"name", "selection_type", "updated_at", "version", "is_deleted"},
			[]any{name, sel, obj.UpdatedAt, obj.Version, boolInt(obj.IsDeleted)}), nil
	case catalog.TypeModifier:
		var name, listID string
		amount, currency := moneyCols(nil)
		if obj.ModifierData != nil {
			name = obj.ModifierData.Name
			listID = obj.ModifierData.ModifierListID
			amount, currency = moneyCols(obj.ModifierData.PriceMoney)
		}
		return singleRow(obj, raw, "modifiers",
			[]string{"modifier_list_id", "name", "price_amount", "price_currency", "updated_at", "version", "is_deleted"},
			[]any{listID, name, amount, currency, obj.UpdatedAt, obj.Version, boolInt(obj.IsDeleted)}), nil
	case catalog.TypeTax:
		var name, pct, incl string
		var enabled bool
		if obj.TaxData != nil {
			name = obj.TaxData.Name
			pct = obj.TaxData.Percentage
			incl = obj.TaxData.InclusionType
			enabled = obj.TaxData.Enabled
		}
		return singleRow(obj, raw, "taxes",
			[]string{"name", "percentage", "inclusion_type", "enabled", "updated_at", "version", "is_deleted"},
			[]any{name, pct, incl, boolInt(enabled), obj.UpdatedAt, obj.Version, boolInt(obj.IsDeleted)}), nil
	case catalog.TypeDiscount:
		var name, dtype, pct string
		amount, currency := moneyCols(nil)
		if obj.DiscountData != nil {
			name = obj.DiscountData.Name
			dtype = obj.DiscountData.DiscountType
			pct = obj.DiscountData.Percentage
			amount, currency = moneyCols(obj.DiscountData.AmountMoney)
		}
		return singleRow(obj, raw, "discounts",
			[]string{"name", "discount_type", "percentage", "amount", "currency", "updated_at", "version", "is_deleted"},
			[]any{name, dtype, pct, amount, currency, obj.UpdatedAt, obj.Version, boolInt(obj.IsDeleted)}), nil
	case catalog.TypeImage:
		var name, url, caption string
		if obj.ImageData != nil {
			name = obj.ImageData.Name
			url = obj.ImageData.URL
			caption = obj.ImageData.Caption
		}
		return singleRow(obj, raw, "images",
			[]string{"name", "url", "caption", "updated_at", "version", "is_deleted"},
			[]any{name, url, caption, obj.UpdatedAt, obj.Version, boolInt(obj.IsDeleted)}), nil
	default:
		return Result{}, fmt.Errorf("object %s has type %q: %w", obj.ID, obj.Type, catalog.ErrUnsupportedType)
	}
}

// normalizeItem emits the item row plus one row per inline variation.
func normalizeItem(obj catalog.Object, raw []byte) (Result, error) {
	var name, categoryID, reportingID string
	if obj.ItemData != nil {
		name = obj.ItemData.Name
		categoryID = obj.ItemData.CategoryID
		reportingID = obj.ItemData.ReportingCategoryID
	}

	res := singleRow(obj, raw, "catalog_items",
		[]string{"name", "category_id", "reporting_category_id", "updated_at", "version", "is_deleted", "present_at_all_locations"},
		[]any{name, categoryID, reportingID, obj.UpdatedAt, obj.Version, boolInt(obj.IsDeleted), boolInt(obj.PresentAtAllLocations)})

	if obj.ItemData == nil {
		return res, nil
	}

	for _, child := range obj.ItemData.Variations {
		if child.Type != catalog.TypeItemVariation {
			res.Skipped = append(res.Skipped, SkippedChild{
				ID:  child.ID,
				Err: fmt.Errorf("inline child of item %s has type %q, want ITEM_VARIATION", obj.ID, child.Type),
			})
			continue
		}
		if err := child.Validate(); err != nil {
			res.Skipped = append(res.Skipped, SkippedChild{
				ID:  child.ID,
				Err: fmt.Errorf("invalid inline variation of item %s: %w", obj.ID, err),
			})
			continue
		}

		childRaw, err := objectJSON(child)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedChild{ID: child.ID, Err: err})
			continue
		}

		row, err := variationRow(child, childRaw, obj.ID)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedChild{ID: child.ID, Err: err})
			continue
		}
		res.Rows = append(res.Rows, row)
	}

	return res, nil
}

// variationRow builds an item_variations row. itemID is the authoritative
// parent id: it wins over whatever the nested payload claims, and the
// stored data_json is rewritten to match so the projection invariant holds.
func variationRow(obj catalog.Object, raw []byte, itemID string) (Row, error) {
	var name, sku, upc string
	var ordinal int
	amount, currency := moneyCols(nil)
	if obj.ItemVariationData != nil {
		name = obj.ItemVariationData.Name
		sku = obj.ItemVariationData.SKU
		upc = obj.ItemVariationData.UPC
		ordinal = obj.ItemVariationData.Ordinal
		amount, currency = moneyCols(obj.ItemVariationData.PriceMoney)
	}

	if itemID != "" {
		rewritten, err := sjson.SetBytes(raw, "item_variation_data.item_id", itemID)
		if err != nil {
			return Row{}, fmt.Errorf("failed to set parent id on variation %s: %w", obj.ID, err)
		}
		raw = rewritten
	}

	return Row{
		Table: "item_variations",
		ID:    obj.ID,
		Cols:  []string{"item_id", "name", "sku", "upc", "ordinal", "price_amount", "price_currency", "updated_at", "version", "is_deleted"},
		Vals:  []any{itemID, name, sku, upc, ordinal, amount, currency, obj.UpdatedAt, obj.Version, boolInt(obj.IsDeleted)},
		DataJSON: raw,
	}, nil
}

func singleRow(obj catalog.Object, raw []byte, table string, cols []string, vals []any) Result {
	return Result{Rows: []Row{{
		Table:    table,
		ID:       obj.ID,
		Cols:     cols,
		Vals:     vals,
		DataJSON: raw,
	}}}
}

// objectJSON returns the original wire bytes when available, falling back
// to re-encoding for objects constructed in-process.
func objectJSON(obj catalog.Object) ([]byte, error) {
	if len(obj.Raw) > 0 {
		return append([]byte(nil), obj.Raw...), nil
	}
	return json.Marshal(obj)
}

func parentIDFromPayload(obj catalog.Object) string {
	if obj.ItemVariationData != nil {
		return obj.ItemVariationData.ItemID
	}
	return ""
}

func moneyCols(m *catalog.Money) (any, string) {
	if m == nil {
		return nil, ""
	}
	return m.Amount, m.Currency
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
