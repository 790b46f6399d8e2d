package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/fundatrack/fundatrack/pkg/errors"
	"github.com/fundatrack/fundatrack/pkg/listing"
	"github.com/fundatrack/fundatrack/pkg/logging"
)

// DefaultHTMLBaseURL is the public search page used by the fallback adapter.
const DefaultHTMLBaseURL = "https://www.funda.nl"

// htmlMaxPages bounds fallback pagination: the public search UI itself stops
// offering deeper pages around this point.
const htmlMaxPages = 60

// HTMLConfig configures the secondary, markup-parsing source.
type HTMLConfig struct {
	// BaseURL overrides the site root. Tests point this at a local server.
	BaseURL string

	// MinInterval is the minimum wait between successive page fetches.
	MinInterval time.Duration

	// UserAgent sent on every request.
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration
}

// HTMLSource is the secondary adapter. It fetches public search result pages
// and extracts listings from the markup. Slower and more brittle than the
// API, used only when the primary source is exhausted.
type HTMLSource struct {
	baseURL string
	client  *client
	limiter *RateLimiter
}

// NewHTMLSource creates the fallback HTML source adapter with its own rate limiter.
func NewHTMLSource(cfg HTMLConfig) *HTMLSource {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultHTMLBaseURL
	}
	return &HTMLSource{
		baseURL: baseURL,
		client:  newClient(FundaHTMLID.String(), cfg.UserAgent, cfg.Timeout),
		limiter: NewRateLimiter(cfg.MinInterval),
	}
}

// ID returns the identifier of this source.
func (s *HTMLSource) ID() ID {
	return FundaHTMLID
}

// Origin returns the origin tag stamped on produced listings.
func (s *HTMLSource) Origin() listing.Origin {
	return listing.OriginSecondary
}

// Search fetches search result pages until one comes back without listings
// or MaxResults is reached.
func (s *HTMLSource) Search(ctx context.Context, filters listing.Filters) ([]listing.Listing, error) {
	log := logging.FromContext(ctx)

	var out []listing.Listing
	for page := 1; page <= htmlMaxPages; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := s.client.get(ctx, s.pageURL(filters, page), "text/html")
		if err != nil {
			return nil, err
		}

		pageListings, err := s.parsePage(body, filters)
		if err != nil {
			return nil, err
		}
		if len(pageListings) == 0 {
			break
		}

		out = append(out, pageListings...)
		if filters.MaxResults > 0 && len(out) >= filters.MaxResults {
			out = out[:filters.MaxResults]
			break
		}
	}

	log.Debug().Int("count", len(out)).Str("source", FundaHTMLID.String()).Msg("HTML search complete")
	return out, nil
}

// pageURL builds the public search URL for one result page.
func (s *HTMLSource) pageURL(filters listing.Filters, page int) string {
	offering := "koop"
	if filters.Kind == listing.KindRent {
		offering = "huur"
	}
	var b strings.Builder
	b.WriteString(s.baseURL)
	b.WriteString("/zoeken/")
	b.WriteString(offering)
	b.WriteString("?selected_area=%5B%22") // ["
	b.WriteString(listing.RegionSlug(filters.Region))
	b.WriteString("%22%5D") // "]
	if page > 1 {
		b.WriteString("&search_result=")
		b.WriteString(strconv.Itoa(page))
	}
	return b.String()
}

// parsePage extracts listings from one search result page. Result cards are
// identified by the data-global-id attribute; a page that parses but carries
// no cards is an empty (final) page, not an error.
func (s *HTMLSource) parsePage(body []byte, filters listing.Filters) ([]listing.Listing, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewPermanentError(FundaHTMLID.String(), "parsing search page markup", err)
	}

	observedAt := time.Now().UTC()
	var out []listing.Listing
	for _, card := range findAll(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, "data-global-id") != ""
	}) {
		l := s.parseCard(card, filters, observedAt)
		if l.SourceID != "" {
			out = append(out, l)
		}
	}
	return out, nil
}

// parseCard extracts one listing from a result card node.
func (s *HTMLSource) parseCard(card *html.Node, filters listing.Filters, observedAt time.Time) listing.Listing {
	sourceID := attr(card, "data-global-id")

	var pageURL string
	if link := find(card, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "a" && attr(n, "href") != ""
	}); link != nil {
		pageURL = attr(link, "href")
		if strings.HasPrefix(pageURL, "/") {
			pageURL = s.baseURL + pageURL
		}
	}

	address := textOfClass(card, "search-result__header-title")
	subtitle := textOfClass(card, "search-result__header-subtitle")

	postalCode := listing.Absent[string]()
	region := filters.Region
	// Subtitle format: "1015 CJ Amsterdam".
	if fields := strings.Fields(subtitle); len(fields) >= 3 {
		if pc, err := listing.NormalizePostalCode(fields[0] + fields[1]); err == nil {
			postalCode = listing.Value(pc)
			region = strings.Join(fields[2:], " ")
		}
	}

	price := listing.ParsePrice(textOfClass(card, "search-result-price"))
	livingArea := listing.ParseArea(attrOfClass(card, "search-result-kenmerken-living-area", "title"))
	if livingArea.IsAbsent() {
		livingArea = listing.ParseArea(textOfClass(card, "search-result-kenmerken-living-area"))
	}
	plotArea := listing.ParseArea(textOfClass(card, "search-result-kenmerken-plot-area"))
	rooms := parseIntField(textOfClass(card, "search-result-kenmerken-rooms"))

	var photos []string
	for _, img := range findAll(card, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "img" && attr(n, "src") != ""
	}) {
		photos = append(photos, attr(img, "src"))
	}

	raw, _ := json.Marshal(map[string]string{
		"source_id": sourceID,
		"address":   address,
		"subtitle":  subtitle,
		"url":       pageURL,
	})

	return listing.Listing{
		SourceID:   sourceID,
		URL:        pageURL,
		Address:    address,
		Region:     region,
		Kind:       filters.Kind,
		PostalCode: postalCode,
		Price:      price,
		LivingArea: livingArea,
		PlotArea:   plotArea,
		Rooms:      rooms,
		PhotoURLs:  photos,
		Origin:     listing.OriginSecondary,
		RawPayload: raw,
		ObservedAt: observedAt,
	}
}

// parseIntField extracts a small integer (room counts) from card text.
func parseIntField(raw string) listing.Field[int] {
	f := listing.ParsePrice(raw) // same digit extraction
	if v, ok := f.Get(); ok && v > 0 && v < 1000 {
		return listing.Value(v)
	}
	return listing.Absent[int]()
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// hasClass reports whether the node carries the CSS class.
func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// find returns the first node in depth-first order matching the predicate.
func find(root *html.Node, match func(*html.Node) bool) *html.Node {
	if match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every node in depth-first order matching the predicate,
// without descending into matched nodes.
func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// textOfClass returns the trimmed text content of the first node with the
// given class, or "".
func textOfClass(root *html.Node, class string) string {
	n := find(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClass(n, class)
	})
	if n == nil {
		return ""
	}
	return strings.TrimSpace(textContent(n))
}

// attrOfClass returns an attribute of the first node with the given class.
func attrOfClass(root *html.Node, class, name string) string {
	n := find(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && hasClass(n, class)
	})
	if n == nil {
		return ""
	}
	return attr(n, name)
}

// textContent concatenates all text nodes under n.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
