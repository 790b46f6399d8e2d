// Package listing defines the normalized listing model shared by every source
// adapter, together with the search filters and the (region, kind) scope that
// one reconciliation run operates over.
//
// A Listing is transient: it is produced by the extraction layer, consumed
// once by reconciliation, then discarded. Optional scalar fields use the
// three-state Field type so that "the source did not report this" is
// distinguishable from "the source reported this as empty".
package listing

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the listing kind: properties for sale or for rent.
type Kind string

const (
	// KindBuy marks listings offered for sale.
	KindBuy Kind = "buy"
	// KindRent marks listings offered for rent.
	KindRent Kind = "rent"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid returns true if the kind is one of the defined constants.
func (k Kind) IsValid() bool {
	return k == KindBuy || k == KindRent
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindBuy:
		return KindBuy, nil
	case KindRent:
		return KindRent, nil
	default:
		return "", fmt.Errorf("unknown listing kind %q (want buy or rent)", s)
	}
}

// Origin identifies which acquisition path produced a listing.
type Origin string

const (
	// OriginPrimary marks listings from the structured API source.
	OriginPrimary Origin = "primary"
	// OriginSecondary marks listings from the markup-parsing fallback source.
	OriginSecondary Origin = "secondary"
)

// Scope is the (region, kind) pair over which one reconciliation run's
// delisting computation is valid.
type Scope struct {
	Region string
	Kind   Kind
}

// String returns "region/kind", the canonical scope label used in logs.
func (s Scope) String() string {
	return s.Region + "/" + string(s.Kind)
}

// Validate checks that the scope is usable.
func (s Scope) Validate() error {
	if s.Region == "" {
		return fmt.Errorf("scope region is empty")
	}
	if !s.Kind.IsValid() {
		return fmt.Errorf("scope kind %q is invalid", s.Kind)
	}
	return nil
}

// Filters are the search parameters passed to a source adapter.
type Filters struct {
	Region     string
	Kind       Kind
	MinPrice   int
	MaxPrice   int
	MaxResults int
}

// Scope returns the reconciliation scope these filters select.
func (f Filters) Scope() Scope {
	return Scope{Region: f.Region, Kind: f.Kind}
}

// Listing is a normalized property listing from any source.
// SourceID is the natural key: unique per real-world listing across runs.
type Listing struct {
	SourceID string
	URL      string
	Address  string
	Region   string
	Kind     Kind

	PostalCode       Field[string]
	Price            Field[int]
	LivingArea       Field[float64]
	PlotArea         Field[float64]
	Rooms            Field[int]
	Bedrooms         Field[int]
	ConstructionYear Field[int]
	EnergyLabel      Field[string]
	Description      Field[string]

	PhotoURLs []string

	Origin     Origin
	RawPayload json.RawMessage // kept opaque, for diagnostics only
	ObservedAt time.Time
}
