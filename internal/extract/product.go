package extract

import (
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/stackhound/stackhound/internal/types"
)

// ProductContentSelector marks a rendered product page.
const ProductContentSelector = "h1"

// priceSelectors is the ordered Magento price-box chain. The first
// match whose text carries a currency symbol wins.
var priceSelectors = []string{
	".price-box .price",
	".product-info-price .price",
	"[data-price-type=\"finalPrice\"] .price",
	".price-wrapper .price",
	".special-price .price",
	".normal-price .price",
	"span.price",
	".price",
}

// imageSelectors is the gallery chain; og:image metadata is the
// fallback when no gallery rendered.
var imageSelectors = []string{
	".gallery-placeholder img",
	".fotorama__stage img",
	".product.media img",
	"img.product-image-photo",
}

// descriptionSelectors covers the Magento description attribute blocks.
var descriptionSelectors = []string{
	".product.attribute.description .value",
	".product.info.detailed .description .value",
	"#description .value",
	"[itemprop=\"description\"]",
}

// skuLabels are the accepted specification-row labels, lowercase.
var skuLabels = []string{"sku", "product id"}

// ProductExtractor builds full product records from product pages.
type ProductExtractor struct {
	logger *slog.Logger
}

// NewProductExtractor creates a ProductExtractor.
func NewProductExtractor(logger *slog.Logger) *ProductExtractor {
	return &ProductExtractor{
		logger: logger.With("component", "product_extractor"),
	}
}

// Extract produces a ProductRecord from a product page snapshot.
//
// A missing primary heading is the only fatal outcome: without it the
// page either never rendered or is not a product page, and the router
// should retry. Every other field degrades to its zero value: a bad
// price yields a nil PriceNumeric, a missing gallery falls back to
// og:image, and so on.
func (e *ProductExtractor) Extract(snap *types.PageSnapshot) (*types.ProductRecord, error) {
	doc, err := snap.Document()
	if err != nil {
		return nil, &types.PageError{URL: snap.URL, Class: types.FailureContentNotFound, Err: err}
	}

	name := strings.TrimSpace(doc.Find("h1").First().Text())
	if name == "" {
		return nil, &types.PageError{
			URL:   snap.URL,
			Class: types.FailureContentNotFound,
			Err:   types.ErrContentMissing,
		}
	}

	price := e.displayPrice(doc)
	record := &types.ProductRecord{
		URL:          types.DedupKey(snap.BaseURL()),
		Name:         name,
		Price:        price,
		PriceNumeric: ParsePrice(price),
		ImageURL:     e.image(doc),
		SKU:          e.sku(doc),
		Availability: e.availability(doc),
		Description:  Truncate(e.description(doc), types.MaxDescriptionLength),
		ScrapedAt:    time.Now().UTC(),
	}

	e.logger.Debug("product extracted",
		"url", record.URL,
		"name", record.Name,
		"has_price", record.PriceNumeric != nil,
		"availability", record.Availability,
	)
	return record, nil
}

// displayPrice walks the price selector chain and returns the first
// text containing a currency symbol.
func (e *ProductExtractor) displayPrice(doc *goquery.Document) string {
	for _, selector := range priceSelectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if strings.Contains(text, "$") {
			return text
		}
	}
	return ""
}

func (e *ProductExtractor) image(doc *goquery.Document) string {
	for _, selector := range imageSelectors {
		if src := imageSrc(doc.Find(selector).First()); src != "" {
			return src
		}
	}
	return doc.Find(`meta[property="og:image"]`).AttrOr("content", "")
}

// sku tries the structured markers first, then scans specification
// table rows for a recognized label. First match wins.
func (e *ProductExtractor) sku(doc *goquery.Document) string {
	if v := strings.TrimSpace(doc.Find(`[itemprop="sku"], .product.attribute.sku .value, .sku .value`).First().Text()); v != "" {
		return v
	}
	if v := doc.Find(`meta[itemprop="sku"]`).AttrOr("content", ""); v != "" {
		return v
	}

	var sku string
	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return true
		}
		label := strings.ToLower(strings.TrimSpace(cells.First().Text()))
		for _, want := range skuLabels {
			if strings.Contains(label, want) {
				sku = strings.TrimSpace(cells.Eq(1).Text())
				return false
			}
		}
		return true
	})
	return sku
}

// availability scans the page text for status phrases in priority order.
func (e *ProductExtractor) availability(doc *goquery.Document) types.Availability {
	text := doc.Text()
	for _, state := range types.AvailabilityStates {
		if strings.Contains(text, string(state)) {
			return state
		}
	}
	return types.AvailabilityUnknown
}

func (e *ProductExtractor) description(doc *goquery.Document) string {
	for _, selector := range descriptionSelectors {
		var parts []string
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			if text := strings.TrimSpace(sel.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}
	return ""
}

// Truncate hard-caps a string at max runes. Cuts may fall mid-word;
// the cap is a size bound, not a presentation rule.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
