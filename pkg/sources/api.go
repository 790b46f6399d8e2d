package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/fundatrack/fundatrack/pkg/listing"
	"github.com/fundatrack/fundatrack/pkg/logging"
)

// DefaultAPIBaseURL is the mobile search API endpoint.
const DefaultAPIBaseURL = "https://listing-search-wonen.funda.io"

// apiPageSize is the number of results requested per API page.
const apiPageSize = 25

// apiMaxPages bounds pagination when the API omits total_pages, so a server
// that keeps repeating a non-empty page cannot loop the search forever.
const apiMaxPages = 120

// APIConfig configures the primary, structured-API source.
type APIConfig struct {
	// BaseURL overrides the API endpoint. Tests point this at a local server.
	BaseURL string

	// MinInterval is the minimum wait between successive API requests.
	MinInterval time.Duration

	// UserAgent sent on every request.
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration
}

// APISource is the primary adapter. It queries the structured search API and
// normalizes its JSON payloads into the shared listing shape.
type APISource struct {
	baseURL string
	client  *client
	limiter *RateLimiter
}

// NewAPISource creates the primary API source adapter with its own rate limiter.
func NewAPISource(cfg APIConfig) *APISource {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &APISource{
		baseURL: baseURL,
		client:  newClient(FundaAPIID.String(), cfg.UserAgent, cfg.Timeout),
		limiter: NewRateLimiter(cfg.MinInterval),
	}
}

// ID returns the identifier of this source.
func (s *APISource) ID() ID {
	return FundaAPIID
}

// Origin returns the origin tag stamped on produced listings.
func (s *APISource) Origin() listing.Origin {
	return listing.OriginPrimary
}

// apiListing mirrors one search hit in the API response. Pointer fields keep
// missing data distinguishable from zero values.
type apiListing struct {
	GlobalID         json.Number `json:"global_id"`
	URL              string      `json:"url"`
	Title            string      `json:"title"`
	City             string      `json:"city"`
	Postcode         *string     `json:"postcode"`
	Price            *int        `json:"price"`
	LivingArea       *float64    `json:"living_area"`
	PlotArea         *float64    `json:"plot_area"`
	Rooms            *int        `json:"rooms"`
	Bedrooms         *int        `json:"bedrooms"`
	ConstructionYear *int        `json:"construction_year"`
	EnergyLabel      *string     `json:"energy_label"`
	Description      *string     `json:"description"`
	Photos           []string    `json:"photos"`
}

// apiSearchResponse is one page of search results.
type apiSearchResponse struct {
	Listings   []json.RawMessage `json:"listings"`
	TotalPages int               `json:"total_pages"`
}

// Search fetches listings page by page until the API reports no further
// pages, an empty page comes back, MaxResults is reached, or the page
// ceiling is hit.
func (s *APISource) Search(ctx context.Context, filters listing.Filters) ([]listing.Listing, error) {
	log := logging.FromContext(ctx)

	var out []listing.Listing
	for page := 1; page <= apiMaxPages; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var resp apiSearchResponse
		if err := s.client.getJSON(ctx, s.searchURL(filters, page), &resp); err != nil {
			return nil, err
		}
		if len(resp.Listings) == 0 {
			break
		}

		observedAt := time.Now().UTC()
		for _, raw := range resp.Listings {
			var hit apiListing
			if err := json.Unmarshal(raw, &hit); err != nil {
				// One malformed hit should not sink the page; reconciliation
				// counts listings it can see, not ones the API mangled.
				log.Warn().Err(err).Msg("Skipping malformed API listing")
				continue
			}
			out = append(out, s.normalize(hit, raw, filters, observedAt))
			if filters.MaxResults > 0 && len(out) >= filters.MaxResults {
				return out[:filters.MaxResults], nil
			}
		}

		if resp.TotalPages > 0 && page >= resp.TotalPages {
			break
		}
	}

	log.Debug().Int("count", len(out)).Str("source", FundaAPIID.String()).Msg("API search complete")
	return out, nil
}

// searchURL builds the paged search URL for the filters.
func (s *APISource) searchURL(filters listing.Filters, page int) string {
	q := url.Values{}
	q.Set("selected_area", listing.RegionSlug(filters.Region))
	q.Set("offering_type", string(filters.Kind))
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(apiPageSize))
	if filters.MinPrice > 0 {
		q.Set("price_min", strconv.Itoa(filters.MinPrice))
	}
	if filters.MaxPrice > 0 {
		q.Set("price_max", strconv.Itoa(filters.MaxPrice))
	}
	return s.baseURL + "/search?" + q.Encode()
}

// normalize converts one API hit into the shared listing shape. The raw
// payload is preserved for diagnostics.
func (s *APISource) normalize(hit apiListing, raw json.RawMessage, filters listing.Filters, observedAt time.Time) listing.Listing {
	sourceID := hit.GlobalID.String()

	pageURL := hit.URL
	if pageURL == "" && sourceID != "" && hit.City != "" {
		// Search hits omit the detail URL; reconstruct it the way the
		// public site addresses listings.
		offering := "koop"
		if filters.Kind == listing.KindRent {
			offering = "huur"
		}
		pageURL = fmt.Sprintf("https://www.funda.nl/%s/%s/%s/", offering, listing.RegionSlug(hit.City), sourceID)
	}

	region := hit.City
	if region == "" {
		region = filters.Region
	}

	return listing.Listing{
		SourceID:         sourceID,
		URL:              pageURL,
		Address:          hit.Title,
		Region:           region,
		Kind:             filters.Kind,
		PostalCode:       listing.FromPtr(hit.Postcode),
		Price:            listing.FromPtr(hit.Price),
		LivingArea:       listing.FromPtr(hit.LivingArea),
		PlotArea:         listing.FromPtr(hit.PlotArea),
		Rooms:            listing.FromPtr(hit.Rooms),
		Bedrooms:         listing.FromPtr(hit.Bedrooms),
		ConstructionYear: listing.FromPtr(hit.ConstructionYear),
		EnergyLabel:      listing.FromPtr(hit.EnergyLabel),
		Description:      listing.FromPtr(hit.Description),
		PhotoURLs:        hit.Photos,
		Origin:           listing.OriginPrimary,
		RawPayload:       raw,
		ObservedAt:       observedAt,
	}
}
