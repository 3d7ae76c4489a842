package parser

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/gplay-aso/internal/scraper"
)

const jsonLDPage = `<!doctype html>
<html lang="en"><head>
<title>Farm Builder - Apps on Google Play</title>
<meta property="og:description" content="Grow your farm every day">
<meta property="og:image" content="https://img.example/og.png">
<script type="application/ld+json">{"@context":"https://schema.org","@type":"WebSite","name":"Google Play"}</script>
<script type="application/ld+json">{
  "@context": "https://schema.org",
  "@type": "SoftwareApplication",
  "name": "Farm Builder",
  "url": "https://play.google.com/store/apps/details?id=com.example.farm",
  "description": "Plant crops, buy seeds and invite friends.",
  "applicationCategory": "GAME_SIMULATION",
  "contentRating": "Everyone",
  "image": "https://img.example/icon.png",
  "author": {"@type": "Person", "name": "Example Studio", "url": "https://example.com"},
  "aggregateRating": {"@type": "AggregateRating", "ratingValue": "4.4", "ratingCount": "12,345"},
  "offers": [{"@type": "Offer", "price": "0", "priceCurrency": "USD"}]
}</script>
</head><body><h1>Ignored Heading</h1></body></html>`

const markupPage = `<html><head>
<meta property="og:title" content="Meta Title">
<meta name="description" content="Short meta description">
<meta property="og:image" content="https://img.example/og.png">
</head><body>
<h1 itemprop="name"><span>Puzzle   Quest</span></h1>
<div data-g-id="description">Daily puzzles.<br>Earn a reward   every streak!</div>
<a href="https://play.google.com/store/apps/dev?id=123">Puzzle Co</a>
</body></html>`

func TestParseJSONLD(t *testing.T) {
	t.Parallel()

	data, err := New().Parse(scraper.RawPage{
		AppID: "com.example.farm",
		URL:   "https://fetched.example/details",
		Body:  []byte(jsonLDPage),
	})
	require.NoError(t, err)

	require.Equal(t, "com.example.farm", data[FieldAppID])
	require.Equal(t, "https://play.google.com/store/apps/details?id=com.example.farm", data[FieldURL])
	require.Equal(t, "Farm Builder", data[FieldTitle])
	require.Equal(t, "Plant crops, buy seeds and invite friends.", data[FieldDescription])
	require.Equal(t, "Grow your farm every day", data[FieldSummary])
	require.Equal(t, "Example Studio", data[FieldDeveloper])
	require.Equal(t, "https://example.com", data[FieldDeveloperURL])
	require.Equal(t, "GAME_SIMULATION", data[FieldGenre])
	require.Equal(t, "Everyone", data[FieldContentRating])
	require.Equal(t, "https://img.example/icon.png", data[FieldIcon])
	require.InDelta(t, 4.4, data[FieldScore], 0.0001)
	require.Equal(t, int64(12345), data[FieldRatings])
	require.InDelta(t, 0.0, data[FieldPrice], 0)
	require.Equal(t, true, data[FieldFree])
	require.Equal(t, "USD", data[FieldCurrency])
}

func TestParseMarkupFallback(t *testing.T) {
	t.Parallel()

	data, err := New().Parse(scraper.RawPage{
		AppID:  "com.example.puzzle",
		Header: http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:   []byte(markupPage),
	})
	require.NoError(t, err)

	require.Equal(t, "Puzzle Quest", data[FieldTitle])
	require.Equal(t, "Daily puzzles.Earn a reward every streak!", data[FieldDescription])
	require.Equal(t, "Puzzle Co", data[FieldDeveloper])
	require.Equal(t, "https://img.example/og.png", data[FieldIcon])
	require.NotContains(t, data, FieldScore)
}

func TestParseMissingTitle(t *testing.T) {
	t.Parallel()

	_, err := New().Parse(scraper.RawPage{AppID: "com.example.app", Body: []byte("<html><body><p>nothing</p></body></html>")})
	require.ErrorIs(t, err, scraper.ErrDataParsing)
	require.ErrorIs(t, err, scraper.ErrScraper)
}

func TestParseDefaultsDescription(t *testing.T) {
	t.Parallel()

	data, err := New().Parse(scraper.RawPage{AppID: "com.example.app", Body: []byte("<html><body><h1>Only Title</h1></body></html>")})
	require.NoError(t, err)
	require.Equal(t, "Only Title", data[FieldTitle])
	require.Equal(t, "", data[FieldDescription])
}

func TestParseIsDeterministic(t *testing.T) {
	t.Parallel()

	page := scraper.RawPage{AppID: "com.example.farm", Body: []byte(jsonLDPage)}
	first, err := New().Parse(page)
	require.NoError(t, err)
	second, err := New().Parse(page)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestParseDropsNonFiniteNumbers(t *testing.T) {
	t.Parallel()

	page := `<html><head><script type="application/ld+json">{
  "@type": "SoftwareApplication",
  "name": "Broken Numbers",
  "aggregateRating": {"ratingValue": "NaN", "ratingCount": "Inf"},
  "offers": {"price": "-Infinity", "priceCurrency": "USD"}
}</script></head></html>`

	data, err := New().Parse(scraper.RawPage{AppID: "com.example.broken", Body: []byte(page)})
	require.NoError(t, err)
	require.Equal(t, "Broken Numbers", data[FieldTitle])
	require.NotContains(t, data, FieldScore)
	require.NotContains(t, data, FieldRatings)
	require.NotContains(t, data, FieldPrice)
	require.NotContains(t, data, FieldFree)

	_, err = json.Marshal(data)
	require.NoError(t, err)
}

func TestAsCountRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	n, ok := asCount("12,345")
	require.True(t, ok)
	require.Equal(t, int64(12345), n)

	for _, v := range []any{"-3", "1e19", 1e300, "NaN"} {
		_, ok := asCount(v)
		require.False(t, ok, v)
	}
}
