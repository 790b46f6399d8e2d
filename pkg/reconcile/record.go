// Package reconcile merges extracted listing batches into the persisted
// property store, tracking run statistics, price history, and delisting
// transitions along the way.
package reconcile

import (
	"time"

	"github.com/fundatrack/fundatrack/pkg/listing"
)

// Status is the lifecycle state of a persisted property.
type Status string

const (
	// StatusActive marks a property seen in the most recent complete batch
	// for its scope.
	StatusActive Status = "active"

	// StatusDelisted marks a property absent from the most recent complete
	// batch. Records are never deleted, only delisted.
	StatusDelisted Status = "delisted"
)

// PropertyRecord is the persisted form of a listing. The synthetic ID is
// assigned by the store; SourceID is the natural deduplication key.
type PropertyRecord struct {
	ID       int64
	SourceID string
	URL      string
	Address  string
	Region   string
	Kind     listing.Kind

	PostalCode       listing.Field[string]
	Price            listing.Field[int]
	LivingArea       listing.Field[float64]
	PlotArea         listing.Field[float64]
	Rooms            listing.Field[int]
	Bedrooms         listing.Field[int]
	ConstructionYear listing.Field[int]
	EnergyLabel      listing.Field[string]
	Description      listing.Field[string]
	PhotoURLs        []string

	Status      Status
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// PriceObservation is one append-only price history entry. No two
// observations for the same property share an ObservedAt.
type PriceObservation struct {
	PropertyID int64
	Price      int
	ObservedAt time.Time
}

// newRecord builds a fresh record from a first observation.
func newRecord(l listing.Listing) *PropertyRecord {
	return &PropertyRecord{
		SourceID:         l.SourceID,
		URL:              l.URL,
		Address:          l.Address,
		Region:           l.Region,
		Kind:             l.Kind,
		PostalCode:       l.PostalCode,
		Price:            l.Price,
		LivingArea:       l.LivingArea,
		PlotArea:         l.PlotArea,
		Rooms:            l.Rooms,
		Bedrooms:         l.Bedrooms,
		ConstructionYear: l.ConstructionYear,
		EnergyLabel:      l.EnergyLabel,
		Description:      l.Description,
		PhotoURLs:        l.PhotoURLs,
		Status:           StatusActive,
		FirstSeenAt:      l.ObservedAt,
		LastSeenAt:       l.ObservedAt,
	}
}

// merge folds a new observation into an existing record. Fields carrying a
// value overwrite; missing fields never null out previously known data.
func (r *PropertyRecord) merge(l listing.Listing) {
	if l.URL != "" {
		r.URL = l.URL
	}
	if l.Address != "" {
		r.Address = l.Address
	}
	r.PostalCode = listing.MergeField(r.PostalCode, l.PostalCode)
	r.Price = listing.MergeField(r.Price, l.Price)
	r.LivingArea = listing.MergeField(r.LivingArea, l.LivingArea)
	r.PlotArea = listing.MergeField(r.PlotArea, l.PlotArea)
	r.Rooms = listing.MergeField(r.Rooms, l.Rooms)
	r.Bedrooms = listing.MergeField(r.Bedrooms, l.Bedrooms)
	r.ConstructionYear = listing.MergeField(r.ConstructionYear, l.ConstructionYear)
	r.EnergyLabel = listing.MergeField(r.EnergyLabel, l.EnergyLabel)
	r.Description = listing.MergeField(r.Description, l.Description)
	if len(l.PhotoURLs) > 0 {
		r.PhotoURLs = l.PhotoURLs
	}
	r.Status = StatusActive
	r.LastSeenAt = l.ObservedAt
}
