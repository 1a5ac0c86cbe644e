// Package catalog provides the wire-format data structures for remote
// catalog objects.
//
// A catalog object is a tagged union keyed by "type". Every object carries
// the common envelope fields (id, updated_at, version, is_deleted,
// present_at_all_locations) plus exactly one type-specific payload such as
// item_data or tax_data. The raw wire bytes are preserved on decode so the
// storage layer can persist the object verbatim as data_json.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ObjectType identifies which payload a catalog object carries.
type ObjectType string

const (
	TypeItem          ObjectType = "ITEM"
	TypeCategory      ObjectType = "CATEGORY"
	TypeItemVariation ObjectType = "ITEM_VARIATION"
	TypeModifierList  ObjectType = "MODIFIER_LIST"
	TypeModifier      ObjectType = "MODIFIER"
	TypeTax           ObjectType = "TAX"
	TypeDiscount      ObjectType = "DISCOUNT"
	TypeImage         ObjectType = "IMAGE"
)

// SyncedTypes lists every object type the local replica stores. The fetch
// API is asked for exactly these types during a full sync.
var SyncedTypes = []ObjectType{
	TypeItem,
	TypeCategory,
	TypeItemVariation,
	TypeModifierList,
	TypeModifier,
	TypeTax,
	TypeDiscount,
	TypeImage,
}

// ErrUnsupportedType is returned when an object's type has no local table.
// The remote catalog may add new object kinds at any time, so callers are
// expected to log and skip rather than fail.
var ErrUnsupportedType = errors.New("unsupported catalog object type")

// Object represents one remote catalog entity in wire format.
//
// Version is carried as an opaque string because the remote value is a
// monotonically increasing integer that may exceed safe-integer precision.
// UpdatedAt is advisory only and never used for conflict resolution.
type Object struct {
	Type                  ObjectType `json:"type"`
	ID                    string     `json:"id"`
	UpdatedAt             string     `json:"updated_at,omitempty"`
	Version               string     `json:"version,omitempty"`
	IsDeleted             bool       `json:"is_deleted,omitempty"`
	PresentAtAllLocations bool       `json:"present_at_all_locations,omitempty"`

	ItemData          *ItemData          `json:"item_data,omitempty"`
	CategoryData      *CategoryData      `json:"category_data,omitempty"`
	ItemVariationData *ItemVariationData `json:"item_variation_data,omitempty"`
	ModifierListData  *ModifierListData  `json:"modifier_list_data,omitempty"`
	ModifierData      *ModifierData      `json:"modifier_data,omitempty"`
	TaxData           *TaxData           `json:"tax_data,omitempty"`
	DiscountData      *DiscountData      `json:"discount_data,omitempty"`
	ImageData         *ImageData         `json:"image_data,omitempty"`

	// Raw holds the original wire bytes this object was decoded from.
	// It is populated by UnmarshalJSON and excluded from re-encoding.
	Raw json.RawMessage `json:"-"`
}

// Money is an amount in the smallest currency unit (e.g. cents).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

// ItemData is the payload for ITEM objects. Variations may arrive inline;
// the normalizer expands each into its own ITEM_VARIATION row.
type ItemData struct {
	Name                string   `json:"name,omitempty"`
	Description         string   `json:"description,omitempty"`
	Abbreviation        string   `json:"abbreviation,omitempty"`
	CategoryID          string   `json:"category_id,omitempty"`
	ReportingCategoryID string   `json:"reporting_category_id,omitempty"`
	TaxIDs              []string `json:"tax_ids,omitempty"`
	ModifierListIDs     []string `json:"modifier_list_ids,omitempty"`
	ImageIDs            []string `json:"image_ids,omitempty"`
	Variations          []Object `json:"variations,omitempty"`
}

// CategoryData is the payload for CATEGORY objects.
type CategoryData struct {
	Name             string `json:"name,omitempty"`
	ParentCategoryID string `json:"parent_category_id,omitempty"`
}

// ItemVariationData is the payload for ITEM_VARIATION objects.
//
// ItemID is denormalized from the parent and may be stale or missing when
// the variation arrives inline inside an ITEM; the normalizer always
// overrides it with the true parent id.
type ItemVariationData struct {
	ItemID      string `json:"item_id,omitempty"`
	Name        string `json:"name,omitempty"`
	SKU         string `json:"sku,omitempty"`
	UPC         string `json:"upc,omitempty"`
	Ordinal     int    `json:"ordinal,omitempty"`
	PricingType string `json:"pricing_type,omitempty"`
	PriceMoney  *Money `json:"price_money,omitempty"`
}

// ModifierListData is the payload for MODIFIER_LIST objects.
type ModifierListData struct {
	Name          string `json:"name,omitempty"`
	SelectionType string `json:"selection_type,omitempty"`
}

// ModifierData is the payload for MODIFIER objects.
type ModifierData struct {
	ModifierListID string `json:"modifier_list_id,omitempty"`
	Name           string `json:"name,omitempty"`
	Ordinal        int    `json:"ordinal,omitempty"`
	PriceMoney     *Money `json:"price_money,omitempty"`
}

// TaxData is the payload for TAX objects.
type TaxData struct {
	Name          string `json:"name,omitempty"`
	Percentage    string `json:"percentage,omitempty"`
	InclusionType string `json:"inclusion_type,omitempty"`
	Enabled       bool   `json:"enabled,omitempty"`
}

// DiscountData is the payload for DISCOUNT objects.
type DiscountData struct {
	Name         string `json:"name,omitempty"`
	DiscountType string `json:"discount_type,omitempty"`
	Percentage   string `json:"percentage,omitempty"`
	AmountMoney  *Money `json:"amount_money,omitempty"`
}

// ImageData is the payload for IMAGE objects.
type ImageData struct {
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// Page is one page of catalog objects from the fetch API. An empty Cursor
// means there are no further pages.
type Page struct {
	Objects []Object `json:"objects"`
	Cursor  string   `json:"cursor,omitempty"`
}

// UnmarshalJSON decodes an object and keeps a copy of the original bytes
// in Raw. Inline variation children get their own Raw the same way.
func (o *Object) UnmarshalJSON(data []byte) error {
	type alias Object
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*o = Object(a)
	o.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Validate checks the common envelope fields.
func (o *Object) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("id is required")
	}
	if o.Type == "" {
		return fmt.Errorf("type is required")
	}
	return nil
}

// Name returns the display name from whichever payload is present.
func (o *Object) Name() string {
	switch {
	case o.ItemData != nil:
		return o.ItemData.Name
	case o.CategoryData != nil:
		return o.CategoryData.Name
	case o.ItemVariationData != nil:
		return o.ItemVariationData.Name
	case o.ModifierListData != nil:
		return o.ModifierListData.Name
	case o.ModifierData != nil:
		return o.ModifierData.Name
	case o.TaxData != nil:
		return o.TaxData.Name
	case o.DiscountData != nil:
		return o.DiscountData.Name
	case o.ImageData != nil:
		return o.ImageData.Name
	}
	return ""
}

// TypeNames converts a list of object types to their wire strings.
func TypeNames(types []ObjectType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}
