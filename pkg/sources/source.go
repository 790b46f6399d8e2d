// Package sources defines the source adapters that acquire listing data,
// together with the rate limiting and retry/backoff machinery they share and
// the composite extractor that drives a primary adapter with fallback to a
// secondary one.
//
// Adapters differ only in acquisition mechanism (structured API vs. markup
// parsing); both produce records in the shared listing.Listing shape.
//
// Example usage:
//
//	primary := sources.NewAPISource(apiCfg)
//	secondary := sources.NewHTMLSource(htmlCfg)
//	extractor := sources.NewComposite(primary, secondary, sources.DefaultRetryPolicy(), true)
//
//	result, err := extractor.Extract(ctx, filters)
//	if err != nil {
//	    // *errors.AllSourcesFailed carries both underlying failures
//	}
package sources

import (
	"context"
	"slices"

	"github.com/fundatrack/fundatrack/pkg/listing"
)

// ID represents the identifier of a source adapter.
type ID string

// String returns the string representation of a source ID.
func (id ID) String() string {
	return string(id)
}

// Known source adapters.
const (
	// FundaAPIID is the primary, structured-API source.
	FundaAPIID ID = "funda_api"
	// FundaHTMLID is the secondary, markup-parsing fallback source.
	FundaHTMLID ID = "funda_html"
)

// IDs returns all defined source IDs.
func IDs() []ID {
	return []ID{FundaAPIID, FundaHTMLID}
}

// IsValid returns true if the ID is one of the defined constants.
func (id ID) IsValid() bool {
	return slices.Contains(IDs(), id)
}

// Source is a data-acquisition adapter. Search fetches all listings matching
// the filters, failing with *errors.ExtractionError classified transient or
// permanent. An empty result set is a valid success, not a failure.
type Source interface {
	// ID returns the identifier of this source.
	ID() ID

	// Origin returns the origin tag stamped on produced listings.
	Origin() listing.Origin

	// Search fetches listings matching the filters. Adapters handle their
	// own pagination and rate limiting internally.
	Search(ctx context.Context, filters listing.Filters) ([]listing.Listing, error)
}
