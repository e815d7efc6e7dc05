package db

import "github.com/kailas-cloud/chemdex/internal/domain/search/document"

// ScreenQuery is the input for a boolean screening search. Stores return
// hits in an order that is stable across pages of the same query.
type ScreenQuery struct {
	IndexName string
	Must      []document.Clause
	Should    []document.Clause
	Filter    []document.Clause
	// MinShould is the number of Should clauses a hit must match.
	// Stores that cannot express it return a superset.
	MinShould int
	// TagFields names the fields indexed as TAG. Stores whose query syntax
	// differs between TAG and TEXT use it for match and wildcard clauses.
	TagFields    map[string]bool
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
