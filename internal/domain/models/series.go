package models

// Observation is a single (date, value) point of a time series.
type Observation struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// SeriesOption is one selectable entry of a series search.
type SeriesOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SearchResult is one page of series search results.
type SearchResult struct {
	Options []SeriesOption `json:"options"`
	HasMore bool           `json:"hasMore"`
}

// EmptySearch is returned when a search cannot be served.
func EmptySearch() SearchResult {
	return SearchResult{Options: []SeriesOption{}, HasMore: false}
}
