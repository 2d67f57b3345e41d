package service

import (
	"context"
	"fmt"

	"catalog/mirror/internal/domain"
	"catalog/mirror/internal/interchange"
	"catalog/mirror/internal/repository"

	log "github.com/sirupsen/logrus"
)

// Run crawls the storefront and persists the interchange files once every
// category worker has finished. archive may be nil.
func (c *Crawler) Run(ctx context.Context, files *interchange.Files, archive repository.ProductRepository) error {
	tree, err := c.CrawlCategories(ctx)
	if err != nil {
		return err
	}

	if err := files.WriteCategories(tree); err != nil {
		return fmt.Errorf("failed to persist categories: %w", err)
	}

	products := c.CrawlProducts(ctx, tree)

	if err := files.WriteProducts(products); err != nil {
		return fmt.Errorf("failed to persist products: %w", err)
	}

	manufacturers := domain.ManufacturersOf(products)
	if err := files.WriteManufacturers(manufacturers); err != nil {
		return fmt.Errorf("failed to persist manufacturers: %w", err)
	}

	log.Infof("💾 Wrote %d categories, %d products, %d manufacturers", len(tree), len(products), len(manufacturers))

	if archive != nil {
		if err := archive.SaveProducts(ctx, products); err != nil {
			return fmt.Errorf("failed to archive products: %w", err)
		}
		log.Infof("🗄️ Archived %d products", len(products))
	}

	return nil
}
