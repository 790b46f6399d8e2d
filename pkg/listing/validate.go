package listing

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fundatrack/fundatrack/pkg/errors"
)

var (
	postalCodeRe = regexp.MustCompile(`^(\d{4})\s*([A-Z]{2})$`)
	areaNumberRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	digitsRe     = regexp.MustCompile(`\d`)

	// regionTitle title-cases region names with Dutch casing rules,
	// so "den haag" becomes "Den Haag" and "'s-hertogenbosch" keeps its prefix.
	regionTitle = cases.Title(language.Dutch)

	validEnergyLabels = map[string]struct{}{
		"A++++": {}, "A+++": {}, "A++": {}, "A+": {}, "A": {},
		"B": {}, "C": {}, "D": {}, "E": {}, "F": {}, "G": {},
	}
)

// Validate checks a normalized listing against the business rules enforced
// before a record reaches the store. It normalizes in place (trimming,
// postal-code formatting, label casing) and returns a ValidationError on the
// first violation. A validation failure is a per-listing error: the
// reconciliation loop counts it and moves on.
func Validate(l *Listing) error {
	l.SourceID = strings.TrimSpace(l.SourceID)
	l.Address = strings.TrimSpace(l.Address)
	l.Region = NormalizeRegion(l.Region)

	if l.SourceID == "" {
		return errors.NewValidationError(l.SourceID, "source_id", "must not be empty")
	}
	if len(l.URL) < 10 || !strings.HasPrefix(l.URL, "http") {
		return errors.NewValidationError(l.SourceID, "url", "must be an absolute http(s) URL")
	}
	if l.Region == "" {
		return errors.NewValidationError(l.SourceID, "region", "must not be empty")
	}
	if !l.Kind.IsValid() {
		return errors.NewValidationError(l.SourceID, "kind", "must be buy or rent")
	}

	if price, ok := l.Price.Get(); ok && price <= 0 {
		return errors.NewValidationError(l.SourceID, "price", "must be positive")
	}
	if area, ok := l.LivingArea.Get(); ok && area <= 0 {
		return errors.NewValidationError(l.SourceID, "living_area", "must be positive")
	}
	if area, ok := l.PlotArea.Get(); ok && area <= 0 {
		return errors.NewValidationError(l.SourceID, "plot_area", "must be positive")
	}

	if pc, ok := l.PostalCode.Get(); ok {
		normalized, err := NormalizePostalCode(pc)
		if err != nil {
			return errors.NewValidationError(l.SourceID, "postal_code", err.Error())
		}
		l.PostalCode = Value(normalized)
	}

	if label, ok := l.EnergyLabel.Get(); ok {
		normalized := strings.ToUpper(strings.TrimSpace(label))
		if _, valid := validEnergyLabels[normalized]; !valid {
			return errors.NewValidationError(l.SourceID, "energy_label", "unknown label "+normalized)
		}
		l.EnergyLabel = Value(normalized)
	}

	if year, ok := l.ConstructionYear.Get(); ok && (year < 1600 || year > 2030) {
		return errors.NewValidationError(l.SourceID, "construction_year", "out of range")
	}

	rooms, hasRooms := l.Rooms.Get()
	bedrooms, hasBedrooms := l.Bedrooms.Get()
	if hasRooms && hasBedrooms && bedrooms > rooms {
		return errors.NewValidationError(l.SourceID, "bedrooms", "cannot exceed total rooms")
	}

	return nil
}

// NormalizeRegion lowercases then title-cases a region name using Dutch
// casing. Hyphenated slugs become spaced names: "den-haag" -> "Den Haag".
func NormalizeRegion(region string) string {
	region = strings.TrimSpace(region)
	if region == "" {
		return ""
	}
	region = strings.ReplaceAll(region, "-", " ")
	return regionTitle.String(strings.ToLower(region))
}

// RegionSlug converts a region name to its URL slug: "Den Haag" -> "den-haag".
func RegionSlug(region string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(region)), " ", "-")
}

// NormalizePostalCode validates a Dutch postal code and returns its canonical
// "1234 AB" form.
func NormalizePostalCode(pc string) (string, error) {
	pc = strings.ToUpper(strings.TrimSpace(pc))
	m := postalCodeRe.FindStringSubmatch(pc)
	if m == nil {
		return "", errors.New("expected 4 digits + 2 letters, e.g. 1015 CJ")
	}
	return m[1] + " " + m[2], nil
}

// ParsePrice extracts an integer euro amount from source formats such as
// "€ 450.000", "450 000 k.k." or a bare "450000". Returns an absent Field
// when no digits are found.
func ParsePrice(raw string) Field[int] {
	digits := strings.Join(digitsRe.FindAllString(raw, -1), "")
	if digits == "" {
		return Absent[int]()
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n == 0 {
		return Absent[int]()
	}
	return Value(n)
}

// ParseArea extracts square meters from source formats such as "120 m²",
// "120m2" or "120,5". Returns an absent Field when no number is found.
func ParseArea(raw string) Field[float64] {
	m := areaNumberRe.FindString(raw)
	if m == "" {
		return Absent[float64]()
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil || v <= 0 {
		return Absent[float64]()
	}
	return Value(v)
}
