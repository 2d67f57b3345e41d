package syncer

import (
	"context"
	"fmt"
	"path/filepath"

	"catalog/mirror/internal/domain"
	"catalog/mirror/internal/prestashop"

	log "github.com/sirupsen/logrus"
)

// SyncProducts creates every product whose category and manufacturer are
// already cached, uploads its images and optionally sets a random stock.
// Categories and manufacturers must be synced first.
func (e *Engine) SyncProducts(ctx context.Context, products []*domain.Product) (Summary, error) {
	var summary Summary
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		logger := log.WithField("product", p.Name)

		categoryID, ok := e.categories.Get(p.Category)
		if !ok {
			logger.Warnf("⚠️ Skipping product: category %q is not synced", p.Category)
			summary.Skipped++
			e.record(domain.EntityProduct, "skipped")
			continue
		}
		manufacturerID, ok := e.manufacturers.Get(p.Manufacturer)
		if !ok {
			logger.Warnf("⚠️ Skipping product: manufacturer %q is not synced", p.Manufacturer)
			summary.Skipped++
			e.record(domain.EntityProduct, "skipped")
			continue
		}

		id, err := e.client.Create(ctx, prestashop.NewProduct(p, categoryID, manufacturerID, e.opts.LanguageID))
		if err != nil {
			logger.Errorf("❌ Failed to create product: %v", err)
			summary.Failed++
			e.record(domain.EntityProduct, "failed")
			continue
		}
		summary.Created++
		e.record(domain.EntityProduct, "created")

		uploaded := e.uploadImages(ctx, id, p.Images)
		logger.Infof("🛒 Created product %d with %d/%d images", id, uploaded, len(p.Images))

		if e.opts.Stock.Enabled {
			if err := e.setRandomStock(ctx, id); err != nil {
				logger.Warnf("⚠️ Failed to set stock for product %d: %v", id, err)
			}
		}
	}

	logSummary("Sync", domain.EntityProduct, summary)
	return summary, nil
}

func (e *Engine) uploadImages(ctx context.Context, productID int, images []string) int {
	uploaded := 0
	for _, name := range images {
		if err := e.uploadImage(ctx, productID, name); err != nil {
			log.Warnf("⚠️ Image %s of product %d: %v", name, productID, err)
			continue
		}
		uploaded++
	}
	return uploaded
}

func (e *Engine) uploadImage(ctx context.Context, productID int, name string) error {
	file, err := e.fs.Open(filepath.Join(e.opts.ImagesDir, name))
	if err != nil {
		return err
	}
	defer file.Close()

	return e.client.UploadImage(ctx, productID, name, file)
}

// setRandomStock rewrites the product's stock record with a random quantity,
// keeping every other field as the shop returned it.
func (e *Engine) setRandomStock(ctx context.Context, productID int) error {
	product, err := e.client.GetProduct(ctx, productID)
	if err != nil {
		return err
	}

	stockID := 0
	if product.Associations != nil {
		for _, ref := range product.Associations.StockAvailables {
			if ref.IDProductAttribute == 0 {
				stockID = ref.ID
				break
			}
		}
	}
	if stockID == 0 {
		return fmt.Errorf("product %d has no stock record", productID)
	}

	stock, err := e.client.GetStockAvailable(ctx, stockID)
	if err != nil {
		return err
	}

	stock.Quantity = e.opts.Stock.Min + e.rnd.IntN(e.opts.Stock.Max-e.opts.Stock.Min+1)
	if err := e.client.Update(ctx, stock.ID, stock); err != nil {
		return err
	}
	log.Debugf("📦 Stock of product %d set to %d", productID, stock.Quantity)
	return nil
}
