// Package parser extracts storefront listing fields from raw page markup.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/JakeFAU/gplay-aso/internal/scraper"
)

// Field names produced by Parse.
const (
	FieldAppID         = "appId"
	FieldURL           = "url"
	FieldTitle         = scraper.TitleField
	FieldDescription   = scraper.DescriptionField
	FieldSummary       = "summary"
	FieldDeveloper     = "developer"
	FieldDeveloperURL  = "developerUrl"
	FieldGenre         = "genre"
	FieldIcon          = "icon"
	FieldScore         = "score"
	FieldRatings       = "ratings"
	FieldPrice         = "price"
	FieldFree          = "free"
	FieldCurrency      = "currency"
	FieldContentRating = "contentRating"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Parser reads the listing's JSON-LD block first and falls back to meta tags
// and visible markup.
type Parser struct{}

// New builds a Parser.
func New() *Parser { return &Parser{} }

// Parse converts a fetched page into listing fields. A page without a
// recognizable title is a DataParsingError.
func (p *Parser) Parse(page scraper.RawPage) (scraper.AppData, error) {
	body, err := decodeUTF8(page.Body, page.Header.Get("Content-Type"))
	if err != nil {
		return nil, scraper.NewDataParsing(page.AppID, "decode page", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, scraper.NewDataParsing(page.AppID, "parse html", err)
	}

	data := scraper.AppData{
		FieldAppID: page.AppID,
		FieldURL:   page.URL,
	}
	applyJSONLD(doc, data)
	applyMarkup(doc, data)

	if data.String(FieldTitle) == "" {
		return nil, scraper.NewDataParsing(page.AppID, "listing title not found", nil)
	}
	if _, ok := data[FieldDescription]; !ok {
		data[FieldDescription] = ""
	}
	return data, nil
}

func decodeUTF8(data []byte, contentType string) ([]byte, error) {
	enc, _, _ := charset.DetermineEncoding(data, contentType)
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("decode charset: %w", err)
		}
		return data, nil
	}
	return out, nil
}

// applyJSONLD copies fields from the first SoftwareApplication/MobileApplication
// JSON-LD object on the page.
func applyJSONLD(doc *goquery.Document, data scraper.AppData) {
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var obj map[string]any
		if err := json.Unmarshal([]byte(s.Text()), &obj); err != nil {
			return true
		}
		switch asString(obj["@type"]) {
		case "SoftwareApplication", "MobileApplication", "VideoGame":
		default:
			return true
		}

		setString(data, FieldTitle, asString(obj["name"]))
		setString(data, FieldDescription, asString(obj["description"]))
		setString(data, FieldGenre, asString(obj["applicationCategory"]))
		setString(data, FieldContentRating, asString(obj["contentRating"]))
		setString(data, FieldIcon, asString(obj["image"]))
		if u := asString(obj["url"]); u != "" {
			data[FieldURL] = u
		}

		if author, ok := obj["author"].(map[string]any); ok {
			setString(data, FieldDeveloper, asString(author["name"]))
			setString(data, FieldDeveloperURL, asString(author["url"]))
		}
		if rating, ok := obj["aggregateRating"].(map[string]any); ok {
			if v, ok := asFloat(rating["ratingValue"]); ok {
				data[FieldScore] = v
			}
			if v, ok := asCount(rating["ratingCount"]); ok {
				data[FieldRatings] = v
			}
		}
		if offer := firstOffer(obj["offers"]); offer != nil {
			if v, ok := asFloat(offer["price"]); ok {
				data[FieldPrice] = v
				data[FieldFree] = v == 0
			}
			setString(data, FieldCurrency, asString(offer["priceCurrency"]))
		}
		return false
	})
}

// applyMarkup fills fields the JSON-LD block did not provide.
func applyMarkup(doc *goquery.Document, data scraper.AppData) {
	if data.String(FieldTitle) == "" {
		setString(data, FieldTitle, firstNonEmpty(
			clean(doc.Find(`h1[itemprop="name"]`).First().Text()),
			clean(doc.Find("h1").First().Text()),
			doc.Find(`meta[property="og:title"]`).AttrOr("content", ""),
		))
	}
	if data.String(FieldDescription) == "" {
		setString(data, FieldDescription, firstNonEmpty(
			clean(doc.Find(`div[data-g-id="description"]`).First().Text()),
			clean(doc.Find(`[itemprop="description"]`).First().Text()),
			doc.Find(`meta[name="description"]`).AttrOr("content", ""),
		))
	}
	setString(data, FieldSummary, doc.Find(`meta[property="og:description"]`).AttrOr("content", ""))
	if data.String(FieldIcon) == "" {
		setString(data, FieldIcon, doc.Find(`meta[property="og:image"]`).AttrOr("content", ""))
	}
	if data.String(FieldDeveloper) == "" {
		setString(data, FieldDeveloper, clean(doc.Find(`a[href*="/store/apps/dev"]`).First().Text()))
	}
}

func firstOffer(v any) map[string]any {
	switch o := v.(type) {
	case map[string]any:
		return o
	case []any:
		if len(o) > 0 {
			if m, ok := o[0].(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

func setString(data scraper.AppData, key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if existing, ok := data[key].(string); ok && existing != "" {
		return
	}
	data[key] = value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func clean(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			return asString(t[0])
		}
	}
	return ""
}

// asFloat accepts JSON numbers and numeric strings. NaN and infinities are
// rejected since they cannot be encoded back to JSON.
func asFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		var err error
		f, err = strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", ""), 64)
		if err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asCount(v any) (int64, bool) {
	f, ok := asFloat(v)
	if !ok || f < 0 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
