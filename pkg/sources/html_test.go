package sources_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundatrack/fundatrack/pkg/listing"
	"github.com/fundatrack/fundatrack/pkg/sources"
)

const resultPage = `<html><body>
<div data-global-id="42012345">
  <a href="/koop/amsterdam/huis-42012345-keizersgracht-100/">
    <h2 class="search-result__header-title">Keizersgracht 100</h2>
    <h4 class="search-result__header-subtitle">1015 CJ Amsterdam</h4>
  </a>
  <span class="search-result-price">&euro; 725.000 k.k.</span>
  <span class="search-result-kenmerken-living-area" title="142 m&sup2;">142 m&sup2;</span>
  <span class="search-result-kenmerken-plot-area">180 m&sup2;</span>
  <span class="search-result-kenmerken-rooms">5 kamers</span>
  <img src="https://cloud.funda.nl/valentina/42012345/1.jpg">
</div>
<div data-global-id="42099999">
  <a href="https://www.funda.nl/koop/amsterdam/huis-42099999-prinsengracht-1/">
    <h2 class="search-result__header-title">Prinsengracht 1</h2>
    <h4 class="search-result__header-subtitle">1015AB Amsterdam</h4>
  </a>
  <span class="search-result-price">Prijs op aanvraag</span>
</div>
</body></html>`

func TestHTMLSourceSearch(t *testing.T) {
	var pagesServed int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		assert.Equal(t, "/zoeken/koop", r.URL.Path)
		assert.Equal(t, `["amsterdam"]`, r.URL.Query().Get("selected_area"))

		if r.URL.Query().Get("search_result") == "" {
			fmt.Fprint(w, resultPage)
			return
		}
		fmt.Fprint(w, `<html><body><p>Geen resultaten</p></body></html>`)
	}))
	defer srv.Close()

	src := sources.NewHTMLSource(sources.HTMLConfig{BaseURL: srv.URL})
	got, err := src.Search(context.Background(), listing.Filters{Region: "Amsterdam", Kind: listing.KindBuy})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, pagesServed)

	first := got[0]
	assert.Equal(t, "42012345", first.SourceID)
	assert.Equal(t, srv.URL+"/koop/amsterdam/huis-42012345-keizersgracht-100/", first.URL)
	assert.Equal(t, "Keizersgracht 100", first.Address)
	assert.Equal(t, "Amsterdam", first.Region)
	assert.Equal(t, "1015 CJ", first.PostalCode.Or(""))
	assert.Equal(t, 725000, first.Price.Or(0))
	assert.Equal(t, 142.0, first.LivingArea.Or(0))
	assert.Equal(t, 180.0, first.PlotArea.Or(0))
	assert.Equal(t, 5, first.Rooms.Or(0))
	assert.Equal(t, []string{"https://cloud.funda.nl/valentina/42012345/1.jpg"}, first.PhotoURLs)
	assert.Equal(t, listing.OriginSecondary, first.Origin)

	// The second card has no parseable price or postal code.
	second := got[1]
	assert.Equal(t, "42099999", second.SourceID)
	assert.True(t, second.Price.IsAbsent())
	assert.True(t, second.PostalCode.IsAbsent())
	assert.True(t, second.LivingArea.IsAbsent())
}

func TestHTMLSourceRentURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/zoeken/huur", r.URL.Path)
		fmt.Fprint(w, `<html><body></body></html>`)
	}))
	defer srv.Close()

	src := sources.NewHTMLSource(sources.HTMLConfig{BaseURL: srv.URL})
	got, err := src.Search(context.Background(), listing.Filters{Region: "Den Haag", Kind: listing.KindRent})

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHTMLSourceMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, resultPage)
	}))
	defer srv.Close()

	src := sources.NewHTMLSource(sources.HTMLConfig{BaseURL: srv.URL})
	got, err := src.Search(context.Background(), listing.Filters{
		Region: "Amsterdam", Kind: listing.KindBuy, MaxResults: 1,
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "42012345", got[0].SourceID)
}
