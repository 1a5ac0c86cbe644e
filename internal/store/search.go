package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// searchResultCap bounds a single search response.
const searchResultCap = 250

// minTokenLength is the shortest query token the fuzzy name path keeps.
const minTokenLength = 2

// SearchFilters enables the independent match paths. Enabled filters run
// as separate result sets that are unioned and deduplicated by item id,
// never intersected. A match in any enabled field is sufficient.
type SearchFilters struct {
	Name     bool
	SKU      bool
	Barcode  bool
	Category bool
}

// MatchType records which filter produced a search result.
type MatchType string

const (
	MatchName     MatchType = "name"
	MatchSKU      MatchType = "sku"
	MatchBarcode  MatchType = "barcode"
	MatchCategory MatchType = "category"
)

// SearchResult is one deduplicated item hit. When an item matches several
// filters, the first match wins for display metadata.
type SearchResult struct {
	ItemID     string
	Name       string
	MatchType  MatchType
	SKU        string
	UPC        string
	CategoryID string
}

// Search answers a catalog query against the committed local state.
//
// The name filter tokenizes the query; with two or more usable tokens
// every token must appear somewhere in the candidate name (any order,
// case-insensitive), otherwise a single substring match is used. SKU and
// barcode filters are case-insensitive substring matches; digit-only
// barcode terms additionally hit the exact case-UPC lookup in team data.
// The category filter matches either the primary or the reporting
// category name.
//
// Results are capped at 250. Search never blocks on sync activity: it
// reads whatever state has been committed so far.
func (s *Store) Search(ctx context.Context, term string, f SearchFilters) ([]SearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}

	acc := &resultAccumulator{seen: make(map[string]bool)}

	if f.Name {
		if err := s.searchByName(ctx, term, acc); err != nil {
			return nil, err
		}
	}
	if f.SKU {
		if err := s.searchBySKU(ctx, term, acc); err != nil {
			return nil, err
		}
	}
	if f.Barcode {
		if err := s.searchByBarcode(ctx, term, acc); err != nil {
			return nil, err
		}
	}
	if f.Category {
		if err := s.searchByCategory(ctx, term, acc); err != nil {
			return nil, err
		}
	}

	return acc.results, nil
}

// resultAccumulator unions per-filter result sets, deduplicating by item
// id with first-match-wins semantics and enforcing the result cap.
type resultAccumulator struct {
	results []SearchResult
	seen    map[string]bool
}

func (a *resultAccumulator) add(r SearchResult) {
	if len(a.results) >= searchResultCap || a.seen[r.ItemID] {
		return
	}
	a.seen[r.ItemID] = true
	a.results = append(a.results, r)
}

// tokenizeQuery splits a query on whitespace and punctuation, lowercases,
// drops tokens shorter than minTokenLength, and dedupes preserving order.
func tokenizeQuery(term string) []string {
	fields := strings.FieldsFunc(strings.ToLower(term), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})

	var tokens []string
	seen := make(map[string]bool)
	for _, tok := range fields {
		if len(tok) < minTokenLength || seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return tokens
}

// searchByName runs the fuzzy multi-token path when the query has two or
// more usable tokens, and falls back to a plain substring match otherwise.
func (s *Store) searchByName(ctx context.Context, term string, acc *resultAccumulator) error {
	tokens := tokenizeQuery(term)

	if len(tokens) < 2 {
		rows, err := s.conn.QueryContext(ctx, `
			SELECT id, name, category_id FROM catalog_items
			WHERE is_deleted = 0 AND instr(lower(name), lower(?)) > 0
			ORDER BY name COLLATE NOCASE ASC
		`, term)
		if err != nil {
			return fmt.Errorf("name search failed: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r SearchResult
			if err := rows.Scan(&r.ItemID, &r.Name, &r.CategoryID); err != nil {
				return fmt.Errorf("failed to scan name match: %w", err)
			}
			r.MatchType = MatchName
			acc.add(r)
		}
		return rows.Err()
	}

	// Fuzzy path: fetch candidates and require every token to appear in
	// the name, in any order.
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, category_id FROM catalog_items WHERE is_deleted = 0`)
	if err != nil {
		return fmt.Errorf("name search failed: %w", err)
	}
	defer rows.Close()

	var matches []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ItemID, &r.Name, &r.CategoryID); err != nil {
			return fmt.Errorf("failed to scan name candidate: %w", err)
		}
		if containsAllTokens(r.Name, tokens) {
			r.MatchType = MatchName
			matches = append(matches, r)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rankFuzzyMatches(matches, term, tokens[0])
	for _, r := range matches {
		acc.add(r)
	}
	return nil
}

func containsAllTokens(name string, tokens []string) bool {
	lower := strings.ToLower(name)
	for _, tok := range tokens {
		if !strings.Contains(lower, tok) {
			return false
		}
	}
	return true
}

// rankFuzzyMatches orders fuzzy name hits most-specific first: exact
// full-phrase matches, then names starting with the query's first token,
// then shorter names, then alphabetical.
func rankFuzzyMatches(matches []SearchResult, term, firstToken string) {
	phrase := strings.ToLower(strings.TrimSpace(term))

	sort.SliceStable(matches, func(i, j int) bool {
		ni, nj := strings.ToLower(matches[i].Name), strings.ToLower(matches[j].Name)

		exactI, exactJ := ni == phrase, nj == phrase
		if exactI != exactJ {
			return exactI
		}

		prefixI, prefixJ := strings.HasPrefix(ni, firstToken), strings.HasPrefix(nj, firstToken)
		if prefixI != prefixJ {
			return prefixI
		}

		if len(matches[i].Name) != len(matches[j].Name) {
			return len(matches[i].Name) < len(matches[j].Name)
		}
		return ni < nj
	})
}

// searchBySKU matches against each item's first non-deleted variation SKU.
func (s *Store) searchBySKU(ctx context.Context, term string, acc *resultAccumulator) error {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT v.item_id, v.sku, v.upc, i.name, i.category_id
		FROM item_variations v
		JOIN catalog_items i ON i.id = v.item_id
		WHERE v.is_deleted = 0 AND i.is_deleted = 0
		ORDER BY v.item_id ASC, v.ordinal ASC, v.id ASC
	`)
	if err != nil {
		return fmt.Errorf("sku search failed: %w", err)
	}
	defer rows.Close()

	needle := strings.ToLower(term)
	lastItem := ""
	for rows.Next() {
		var itemID, sku, upc, name, categoryID string
		if err := rows.Scan(&itemID, &sku, &upc, &name, &categoryID); err != nil {
			return fmt.Errorf("failed to scan sku candidate: %w", err)
		}

		// Only the first variation per item counts for SKU matching.
		if itemID == lastItem {
			continue
		}
		lastItem = itemID

		if sku != "" && strings.Contains(strings.ToLower(sku), needle) {
			acc.add(SearchResult{
				ItemID:     itemID,
				Name:       name,
				MatchType:  MatchSKU,
				SKU:        sku,
				UPC:        upc,
				CategoryID: categoryID,
			})
		}
	}
	return rows.Err()
}

// searchByBarcode matches the UPC embedded in each variation's stored
// wire payload, and for digit-only terms also does an exact case-UPC
// lookup against the team data side table.
func (s *Store) searchByBarcode(ctx context.Context, term string, acc *resultAccumulator) error {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT v.item_id, v.sku, v.data_json, i.name, i.category_id
		FROM item_variations v
		JOIN catalog_items i ON i.id = v.item_id
		WHERE v.is_deleted = 0 AND i.is_deleted = 0
	`)
	if err != nil {
		return fmt.Errorf("barcode search failed: %w", err)
	}
	defer rows.Close()

	needle := strings.ToLower(term)
	for rows.Next() {
		var itemID, sku, name, categoryID string
		var data []byte
		if err := rows.Scan(&itemID, &sku, &data, &name, &categoryID); err != nil {
			return fmt.Errorf("failed to scan barcode candidate: %w", err)
		}

		upc := gjson.GetBytes(data, "item_variation_data.upc").String()
		if upc != "" && strings.Contains(strings.ToLower(upc), needle) {
			acc.add(SearchResult{
				ItemID:     itemID,
				Name:       name,
				MatchType:  MatchBarcode,
				SKU:        sku,
				UPC:        upc,
				CategoryID: categoryID,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if !isDigits(term) {
		return nil
	}

	// Exact case-UPC path: distinct from the fuzzy/substring matching
	// above, keyed on the user-maintained side table.
	teamRows, err := s.conn.QueryContext(ctx, `
		SELECT t.item_id, t.case_upc, i.name, i.category_id
		FROM team_data t
		JOIN catalog_items i ON i.id = t.item_id
		WHERE i.is_deleted = 0 AND t.case_upc = ?
	`, term)
	if err != nil {
		return fmt.Errorf("case-upc search failed: %w", err)
	}
	defer teamRows.Close()

	for teamRows.Next() {
		var itemID, caseUPC, name, categoryID string
		if err := teamRows.Scan(&itemID, &caseUPC, &name, &categoryID); err != nil {
			return fmt.Errorf("failed to scan case-upc match: %w", err)
		}
		acc.add(SearchResult{
			ItemID:     itemID,
			Name:       name,
			MatchType:  MatchBarcode,
			UPC:        caseUPC,
			CategoryID: categoryID,
		})
	}
	return teamRows.Err()
}

// searchByCategory matches the primary category name or the reporting
// category name, two independent join paths unioned.
func (s *Store) searchByCategory(ctx context.Context, term string, acc *resultAccumulator) error {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT i.id, i.name, i.category_id
		FROM catalog_items i
		JOIN categories c ON c.id = i.category_id
		WHERE i.is_deleted = 0 AND c.is_deleted = 0
		  AND instr(lower(c.name), lower(?)) > 0
		UNION
		SELECT i.id, i.name, i.category_id
		FROM catalog_items i
		JOIN categories c ON c.id = i.reporting_category_id
		WHERE i.is_deleted = 0 AND c.is_deleted = 0
		  AND instr(lower(c.name), lower(?)) > 0
		ORDER BY 2 COLLATE NOCASE ASC
	`, term, term)
	if err != nil {
		return fmt.Errorf("category search failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ItemID, &r.Name, &r.CategoryID); err != nil {
			return fmt.Errorf("failed to scan category match: %w", err)
		}
		r.MatchType = MatchCategory
		acc.add(r)
	}
	return rows.Err()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
