package extract

import (
	"github.com/PuerkitoBio/goquery"

	"bolig_scrooper/identity"
	"bolig_scrooper/models"
)

const listingCardSelector = "div.shadow.overflow-hidden.mx-4"

// ParseIndex reads the listing cards of one auction index page. Cards
// without a link are dropped and repeated property ids keep their first
// card. A card without sale rows gets one placeholder sale.
func ParseIndex(doc *goquery.Document, baseURL string) []models.PropertySummary {
	var out []models.PropertySummary
	if doc == nil {
		return out
	}

	seen := make(map[string]bool)
	doc.Find(listingCardSelector).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a[href]").First().Attr("href")
		if !ok {
			return
		}
		link, err := identity.NormalizeLink(href, baseURL)
		if err != nil {
			return
		}
		id := identity.PropertyIDFromURL(link)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true

		out = append(out, models.PropertySummary{
			PropertyID: id,
			Address:    cleanText(card.Find("div.font-black.text-sm").First().Text()),
			Link:       link,
			Sales:      parseSales(card),
		})
	})
	return out
}

func parseSales(card *goquery.Selection) []models.SaleRecord {
	var sales []models.SaleRecord
	card.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}
		var sale models.SaleRecord
		if v := cleanText(cells.Eq(1).Text()); v != "" {
			sale.Type = &v
		}
		if v := cleanText(cells.Eq(2).Text()); v != "" {
			sale.Date = &v
		}
		if p, ok := Normalize(cells.Eq(3).Text(), KindPrice); ok {
			sale.Price = &p
		}
		sales = append(sales, sale)
	})

	if len(sales) == 0 {
		sales = []models.SaleRecord{{}}
	}
	return sales
}
