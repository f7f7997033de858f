package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const placesBaseURL = "https://maps.googleapis.com/maps/api/place"

// PlacesSource is the production LeadSource backed by the Google Places
// text-search and details endpoints.
type PlacesSource struct {
	APIKey  string
	BaseURL string // override for tests
	Client  *http.Client
}

func NewPlacesSource(apiKey string) *PlacesSource {
	return &PlacesSource{
		APIKey: apiKey,
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *PlacesSource) base() string {
	if p.BaseURL != "" {
		return p.BaseURL
	}
	return placesBaseURL
}

type textSearchResponse struct {
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message"`
	NextPageToken string `json:"next_page_token"`
	Results       []struct {
		PlaceID          string `json:"place_id"`
		Name             string `json:"name"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
}

func (p *PlacesSource) Search(ctx context.Context, query, pageToken string) (Page, error) {
	q := url.Values{}
	q.Set("key", p.APIKey)
	if pageToken != "" {
		q.Set("pagetoken", pageToken)
	} else {
		q.Set("query", query)
	}

	var body textSearchResponse
	if err := p.getJSON(ctx, p.base()+"/textsearch/json?"+q.Encode(), &body); err != nil {
		return Page{}, err
	}

	// ZERO_RESULTS is a valid empty page, not an error: the aggregator
	// still gets to try its query rewrites.
	if body.Status != "OK" && body.Status != "ZERO_RESULTS" {
		return Page{}, fmt.Errorf("places textsearch status %s: %s", body.Status, body.ErrorMessage)
	}

	page := Page{NextPageToken: body.NextPageToken}
	for _, r := range body.Results {
		page.Results = append(page.Results, RawResult{
			PlaceID: r.PlaceID,
			Name:    r.Name,
			Address: r.FormattedAddress,
		})
	}
	return page, nil
}

type detailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		Name                 string `json:"name"`
		FormattedAddress     string `json:"formatted_address"`
		FormattedPhoneNumber string `json:"formatted_phone_number"`
		Website              string `json:"website"`
		URL                  string `json:"url"`
		Geometry             struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"result"`
}

func (p *PlacesSource) Details(ctx context.Context, placeID string) (Details, error) {
	q := url.Values{}
	q.Set("key", p.APIKey)
	q.Set("place_id", placeID)
	q.Set("fields", "name,formatted_address,formatted_phone_number,website,url,geometry")

	var body detailsResponse
	if err := p.getJSON(ctx, p.base()+"/details/json?"+q.Encode(), &body); err != nil {
		return Details{}, err
	}
	if body.Status != "OK" {
		return Details{}, fmt.Errorf("places details status %s: %s", body.Status, body.ErrorMessage)
	}

	r := body.Result
	return Details{
		Name:    r.Name,
		Address: r.FormattedAddress,
		Phone:   r.FormattedPhoneNumber,
		Website: r.Website,
		URL:     r.URL,
		Lat:     r.Geometry.Location.Lat,
		Lng:     r.Geometry.Location.Lng,
	}, nil
}

func (p *PlacesSource) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("places http %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 5<<20)).Decode(out)
}
