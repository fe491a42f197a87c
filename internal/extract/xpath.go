package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/stackhound/stackhound/internal/types"
)

// productAnchorXPath finds anchors inside anything that structurally
// resembles a product cell, regardless of the class names the theme
// uses. This is the last-ditch strategy for pages whose CSS hooks were
// renamed or never rendered.
const productAnchorXPath = `//li[.//*[contains(@class,"price")]]//a[@href] | ` +
	`//tr[.//*[contains(@class,"price")]]//a[@href] | ` +
	`//div[.//*[contains(@class,"price")]][count(.//a[@href]) <= 3]//a[@href]`

// structuralXPath re-parses the document with the XPath engine and
// walks price-bearing containers. It trades precision for recall and
// runs only after every CSS strategy came up empty.
func (e *ListingExtractor) structuralXPath(doc *goquery.Document, base *url.URL) []types.ListingCandidate {
	htmlText, err := doc.Html()
	if err != nil {
		return nil
	}
	root, err := htmlquery.Parse(strings.NewReader(htmlText))
	if err != nil {
		return nil
	}

	anchors, err := htmlquery.QueryAll(root, productAnchorXPath)
	if err != nil {
		return nil
	}

	var out []types.ListingCandidate
	for _, a := range anchors {
		href := htmlquery.SelectAttr(a, "href")
		resolved, ok := e.resolveOnHost(base, href)
		if !ok {
			continue
		}

		name := strings.TrimSpace(htmlquery.InnerText(a))
		if name == "" {
			name = strings.TrimSpace(htmlquery.SelectAttr(a, "title"))
		}
		if len(name) <= 5 {
			continue
		}

		out = append(out, types.ListingCandidate{
			URL:   resolved,
			Name:  name,
			Price: nearbyPrice(a),
		})
	}
	return out
}

// nearbyPrice walks up from an anchor looking for a price element in
// the enclosing container.
func nearbyPrice(node *html.Node) string {
	for parent := node.Parent; parent != nil; parent = parent.Parent {
		if parent.Type != html.ElementNode {
			continue
		}
		priceNode, err := htmlquery.Query(parent, `.//*[contains(@class,"price")]`)
		if err == nil && priceNode != nil {
			return strings.TrimSpace(htmlquery.InnerText(priceNode))
		}
		switch parent.Data {
		case "li", "article", "section", "body":
			return ""
		}
	}
	return ""
}
