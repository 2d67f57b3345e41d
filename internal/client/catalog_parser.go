package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"catalog/mirror/internal/domain"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// Storefront markup contract, v1.
const (
	topMenuSelector      = `#_desktop_top_menu ul[data-depth="0"]`
	subMenuSelector      = `ul[data-depth="1"]`
	articleSelector      = "article.product-miniature"
	pagerSelector        = "nav.pagination .page-list li"
	notFoundSelector     = "#pagenotfound, .page-not-found"
	nameSelector         = "h1"
	priceSelector        = `.current-price [itemprop="price"]`
	priceFallback        = ".current-price"
	brandSelector        = ".product-manufacturer a"
	brandImageSelector   = ".product-manufacturer img"
	descriptionSelector  = ".product-description"
	gallerySelector      = ".product-images"
	largeImageAttr       = "data-image-large-src"
	defaultImageAttr     = "src"
	productTitleSelector = ".product-title a"
	thumbnailSelector    = "a.thumbnail"
)

func newDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ExtractCategories reads the two-level category tree from the top menu.
func ExtractCategories(html string) ([]domain.Category, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, err
	}

	menu := doc.Find(topMenuSelector).First()
	if menu.Length() == 0 {
		return nil, &StructureError{Selector: topMenuSelector}
	}

	categories := make([]domain.Category, 0)
	menu.ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
		link := li.ChildrenFiltered("a").First()
		name := ownText(link)
		if name == "" {
			return
		}
		href, _ := link.Attr("href")

		category := domain.Category{
			Name:     name,
			Link:     relativeLink(href),
			Children: make([]domain.Category, 0),
		}

		li.Find(subMenuSelector).First().ChildrenFiltered("li").Each(func(j int, subLi *goquery.Selection) {
			subLink := subLi.ChildrenFiltered("a").First()
			subName := ownText(subLink)
			if subName == "" {
				return
			}
			subHref, _ := subLink.Attr("href")
			category.Children = append(category.Children, domain.Category{
				Name:       subName,
				Link:       relativeLink(subHref),
				ParentName: name,
				Children:   make([]domain.Category, 0),
			})
		})

		categories = append(categories, category)
	})

	log.Debugf("Extracted %d top-level categories", len(categories))
	return categories, nil
}

// ExtractListingPage reads product links and the reported page count from
// one listing page.
func ExtractListingPage(html string, pageNumber int) (*domain.ListingPage, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, err
	}

	page := &domain.ListingPage{
		Number:       pageNumber,
		TotalPages:   extractPageCount(doc),
		ProductLinks: make([]string, 0),
	}

	if doc.Find(notFoundSelector).Length() > 0 {
		page.NotFound = true
		return page, nil
	}

	seen := make(map[string]struct{})
	articles := doc.Find(articleSelector)
	page.Articles = articles.Length()
	articles.Each(func(i int, article *goquery.Selection) {
		href, ok := article.Find(productTitleSelector).First().Attr("href")
		if !ok || href == "" {
			href, ok = article.Find(thumbnailSelector).First().Attr("href")
		}
		if !ok || href == "" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		page.ProductLinks = append(page.ProductLinks, href)
	})

	log.Debugf("Parsed listing page %d: %d articles, %d pages reported", page.Number, page.Articles, page.TotalPages)
	return page, nil
}

func extractPageCount(doc *goquery.Document) int {
	total := 1
	doc.Find(pagerSelector).Each(func(i int, li *goquery.Selection) {
		n, err := strconv.Atoi(strings.TrimSpace(li.Text()))
		if err == nil && n > total {
			total = n
		}
	})
	return total
}

// ExtractProduct fills a product from its page. Name, price and brand are
// required; the gallery is returned separately and is nil when the page has
// none.
func ExtractProduct(html, sourceLink, category string) (*domain.Product, []domain.GalleryImage, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, nil, &ExtractionError{Field: "document", SourceLink: sourceLink, Err: err}
	}

	product := domain.NewProduct(sourceLink, category)

	product.Name = collapseSpaces(doc.Find(nameSelector).First().Text())
	if product.Name == "" {
		return nil, nil, &ExtractionError{Field: "name", SourceLink: sourceLink}
	}

	priceNode := doc.Find(priceSelector).First()
	if priceNode.Length() == 0 {
		priceNode = doc.Find(priceFallback).First()
	}
	if priceNode.Length() == 0 {
		return nil, nil, &ExtractionError{Field: "price", SourceLink: sourceLink}
	}
	price, err := ParsePrice(priceNode.Text())
	if err != nil {
		return nil, nil, &ExtractionError{Field: "price", SourceLink: sourceLink, Err: err}
	}
	product.Price = price.InexactFloat64()

	product.Manufacturer = collapseSpaces(doc.Find(brandSelector).First().Text())
	if product.Manufacturer == "" {
		alt, _ := doc.Find(brandImageSelector).First().Attr("alt")
		product.Manufacturer = collapseSpaces(alt)
	}
	if product.Manufacturer == "" {
		return nil, nil, &ExtractionError{Field: "manufacturer", SourceLink: sourceLink}
	}

	product.Description = extractDescription(doc)

	return product, extractGallery(doc), nil
}

func extractDescription(doc *goquery.Document) []string {
	paragraphs := make([]string, 0)
	doc.Find(descriptionSelector).First().Find("p").Each(func(i int, p *goquery.Selection) {
		if text := collapseSpaces(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return append([]string(nil), domain.NoDescription...)
	}
	return paragraphs
}

func extractGallery(doc *goquery.Document) []domain.GalleryImage {
	gallery := doc.Find(gallerySelector).First()
	if gallery.Length() == 0 {
		return nil
	}

	images := make([]domain.GalleryImage, 0)
	gallery.Find("img").Each(func(i int, img *goquery.Selection) {
		large, _ := img.Attr(largeImageAttr)
		src, _ := img.Attr(defaultImageAttr)
		if large == "" && src == "" {
			return
		}
		images = append(images, domain.GalleryImage{
			Large:   absoluteScheme(large),
			Default: absoluteScheme(src),
		})
	})
	return images
}

// ownText returns the text nodes directly under s, skipping nested badges.
func ownText(s *goquery.Selection) string {
	return collapseSpaces(s.Contents().FilterFunction(func(i int, c *goquery.Selection) bool {
		return goquery.NodeName(c) == "#text"
	}).Text())
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func relativeLink(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || !u.IsAbs() {
		return strings.TrimSpace(href)
	}
	return u.RequestURI()
}

func absoluteScheme(src string) string {
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	return src
}
