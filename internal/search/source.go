package search

import "context"

// RawResult is one candidate business as returned by the provider's
// paginated text search, before detail enrichment.
type RawResult struct {
	PlaceID string
	Name    string
	Address string
}

// Page is a single slice of provider results. An empty NextPageToken means
// pagination is over; empty Results with a token present does not.
type Page struct {
	Results       []RawResult
	NextPageToken string
}

// Details carries the per-candidate fields fetched after search.
type Details struct {
	Name    string
	Address string
	Phone   string
	Website string
	URL     string // provider's own page for the business
	Lat     float64
	Lng     float64
}

// LeadSource is the external business-search capability. Implementations
// must distinguish "no more pages" (empty NextPageToken) from "zero
// results for this query" (empty Results): the aggregator ends pagination
// on the former but still tries query rewrites after the latter.
type LeadSource interface {
	Search(ctx context.Context, query, pageToken string) (Page, error)
	Details(ctx context.Context, placeID string) (Details, error)
}
