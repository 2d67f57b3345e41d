package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"catalog/mirror/internal/assets"
	"catalog/mirror/internal/client"
	"catalog/mirror/internal/domain"
	"catalog/mirror/internal/metrics"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	variantLarge   = "large"
	variantDefault = "default"
)

type CrawlerOptions struct {
	ImagesDir      string
	MaxWorkers     int // categories crawled concurrently
	ProductWorkers int // product pages fetched concurrently within one listing page
	MaxPages       int // listing pages per category
}

// Crawler walks the storefront category tree and scrapes every listed product.
type Crawler struct {
	client  client.StorefrontClient
	fetcher assets.Fetcher
	metrics *metrics.Metrics
	opts    CrawlerOptions

	claimed sync.Map // product link -> category that scraped it
}

func NewCrawler(
	client client.StorefrontClient,
	fetcher assets.Fetcher,
	m *metrics.Metrics,
	opts CrawlerOptions,
) *Crawler {
	if opts.ProductWorkers <= 0 {
		opts.ProductWorkers = 1
	}
	if m == nil {
		m = metrics.New()
	}
	return &Crawler{
		client:  client,
		fetcher: fetcher,
		metrics: m,
		opts:    opts,
	}
}

// CrawlCategories fetches the category tree. A missing menu is fatal.
func (c *Crawler) CrawlCategories(ctx context.Context) ([]domain.Category, error) {
	tree, err := c.client.GetCategoryTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to crawl categories: %w", err)
	}

	subcategories := 0
	for _, top := range tree {
		subcategories += len(top.Children)
	}
	log.Infof("🗂️ Found %d categories with %d subcategories", len(tree), subcategories)
	return tree, nil
}

// CrawlProducts scrapes the leaf categories of tree on a bounded pool. A
// failed category is logged and left out; the result is the union of all
// other categories in no particular order.
func (c *Crawler) CrawlProducts(ctx context.Context, tree []domain.Category) []*domain.Product {
	leaves := domain.Leaves(tree)

	var (
		mu       sync.Mutex
		products = make([]*domain.Product, 0)
		failed   int
	)

	g := new(errgroup.Group)
	g.SetLimit(c.opts.MaxWorkers)

	for _, category := range leaves {
		g.Go(func() error {
			logger := log.WithField("category", category.Name)
			logger.Infof("🔄 Processing category %s", category.Link)

			categoryProducts, err := c.crawlCategory(ctx, category)
			if err != nil {
				logger.Errorf("❌ Category crawl failed, skipping its products: %v", err)
				c.metrics.CategoriesFailed.Inc()
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			products = append(products, categoryProducts...)
			mu.Unlock()

			logger.Infof("✅ Completed category: %d products", len(categoryProducts))
			return nil
		})
	}

	_ = g.Wait()

	log.Infof("✅ Crawled %d products from %d categories (%d failed)", len(products), len(leaves)-failed, failed)
	return products
}

func (c *Crawler) crawlCategory(ctx context.Context, category domain.Category) ([]*domain.Product, error) {
	products := make([]*domain.Product, 0)
	lastPage := c.opts.MaxPages

	for pageNumber := 1; pageNumber <= lastPage; pageNumber++ {
		page, err := c.client.GetListingPage(ctx, category.Link, pageNumber)
		if client.IsNotFound(err) || (err == nil && page.NotFound) {
			c.metrics.IncPage("not_found")
			log.Debugf("Page %d of %s not found, stopping", pageNumber, category.Name)
			break
		}
		if err != nil {
			return nil, err
		}
		if page.Articles == 0 {
			c.metrics.IncPage("empty")
			log.Debugf("Page %d of %s has no products, stopping", pageNumber, category.Name)
			break
		}
		c.metrics.IncPage("ok")

		if pageNumber == 1 {
			lastPage = min(page.TotalPages, c.opts.MaxPages)
		}

		pageProducts, err := c.scrapeProducts(ctx, category, page.ProductLinks)
		if err != nil {
			return nil, err
		}
		products = append(products, pageProducts...)
	}

	return products, nil
}

// scrapeProducts fetches the product pages of one listing page in parallel.
// Extraction failures drop the product; any other failure fails the category.
func (c *Crawler) scrapeProducts(ctx context.Context, category domain.Category, links []string) ([]*domain.Product, error) {
	results := make([]*domain.Product, len(links))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.ProductWorkers)

	for i, link := range links {
		if owner, taken := c.claimed.LoadOrStore(link, category.Name); taken {
			log.Debugf("Skipping %s, already scraped under %v", link, owner)
			continue
		}

		g.Go(func() error {
			product, err := c.scrapeProduct(gctx, category, link)
			var extractionErr *client.ExtractionError
			switch {
			case errors.As(err, &extractionErr):
				log.Warnf("⚠️ Abandoning product: %v", err)
				return nil
			case client.IsNotFound(err):
				log.Warnf("⚠️ Product page %s not found", link)
				return nil
			case err != nil:
				return err
			}
			results[i] = product
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	products := make([]*domain.Product, 0, len(results))
	for _, p := range results {
		if p != nil {
			products = append(products, p)
		}
	}
	return products, nil
}

func (c *Crawler) scrapeProduct(ctx context.Context, category domain.Category, link string) (*domain.Product, error) {
	product, gallery, err := c.client.GetProduct(ctx, link, category.Name)
	if err != nil {
		return nil, err
	}

	if gallery == nil {
		log.Warnf("⚠️ No gallery on %s, keeping product without images", link)
	}
	for i, image := range gallery {
		for _, v := range []struct{ name, url string }{
			{variantLarge, image.Large},
			{variantDefault, image.Default},
		} {
			if v.url == "" {
				continue
			}
			filename := assets.ImageName(v.name, product.Name, i)
			if c.fetcher.Fetch(ctx, v.url, c.opts.ImagesDir, filename) {
				product.Images = append(product.Images, filename)
			}
		}
	}

	c.metrics.ProductsScraped.Inc()
	log.Debugf("Scraped %s (%.2f, %d images)", product.Name, product.Price, len(product.Images))
	return product, nil
}
