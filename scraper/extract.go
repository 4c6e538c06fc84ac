package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-catalog-export/models"
	"github.com/aluiziolira/go-catalog-export/parser"
)

// extractList pulls the product records off a listing page in document
// order and returns the absolute next-page URL, or "" when the listing
// has no next link.
func extractList(doc *goquery.Document, baseURL string) ([]*models.Record, string) {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	var records []*models.Record
	doc.Find("article.product_pod").Each(func(_ int, card *goquery.Selection) {
		link := card.Find("h3 a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}

		title := strings.TrimSpace(link.AttrOr("title", ""))
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}

		rec := &models.Record{
			Title:      title,
			ProductURL: absoluteURL(base, href),
		}

		if price, ok := parser.ParsePrice(strings.TrimSpace(card.Find("p.price_color").First().Text())); ok {
			rec.Price = &price
		}
		if rating, ok := parser.ParseRating(card.Find("p.star-rating").First().AttrOr("class", "")); ok {
			rec.Rating = &rating
		}
		availText := card.Find("p.instock.availability").First().Text()
		if strings.TrimSpace(availText) == "" {
			availText = card.Find("p.availability").First().Text()
		}
		if avail, ok := parser.NormalizeAvailability(availText); ok {
			rec.Availability = &avail
		}

		records = append(records, rec)
	})

	next := ""
	if href, ok := doc.Find("li.next a").First().Attr("href"); ok {
		next = absoluteURL(base, href)
	}
	return records, next
}

// applyDetails merges detail-page fields into rec: category from the
// breadcrumb trail, description, image URL, and every row of the
// product information table. Missing elements are simply skipped.
func applyDetails(rec *models.Record, doc *goquery.Document, productURL string) {
	base, err := url.Parse(productURL)
	if err != nil {
		base = nil
	}

	// The last breadcrumb is the product itself only when the trail is
	// Home > Books > Category; shorter trails carry no category.
	crumbs := doc.Find("ul.breadcrumb li a")
	if crumbs.Length() >= 3 {
		if category := strings.TrimSpace(crumbs.Last().Text()); category != "" {
			rec.SetExtra("category", category)
		}
	}

	header := doc.Find("#product_description").First()
	if header.Length() > 0 {
		if description := strings.TrimSpace(header.NextAllFiltered("p").First().Text()); description != "" {
			rec.SetExtra("description", description)
		}
	}

	img := doc.Find(".item.active img").First()
	if img.Length() == 0 {
		img = doc.Find("img").First()
	}
	if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" {
		rec.SetExtra("image_url", absoluteURL(base, src))
	}

	doc.Find("table.table tr").Each(func(_ int, row *goquery.Selection) {
		th := row.Find("th").First()
		td := row.Find("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			return
		}
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(th.Text())), " ", "_")
		if key == "" {
			return
		}
		rec.SetExtra(key, strings.TrimSpace(td.Text()))
	})
}

// absoluteURL resolves href against base. With no usable base the href
// is returned untouched.
func absoluteURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if base == nil || href == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
