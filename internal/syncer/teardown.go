package syncer

import (
	"context"

	"catalog/mirror/internal/domain"

	log "github.com/sirupsen/logrus"
)

// TeardownAll deletes every remote entity of kind. Protected categories are
// kept, product images go before their product, and a failed deletion only
// costs that id. Cache entries pointing at deleted ids are dropped.
func (e *Engine) TeardownAll(ctx context.Context, kind domain.EntityKind) (Summary, error) {
	var summary Summary

	ids, err := e.client.List(ctx, kind)
	if err != nil {
		return summary, err
	}
	log.Infof("🧹 Tearing down %d %s", len(ids), kind)

	deleted := make([]int, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if e.isProtected(kind, id) {
			log.Infof("🛡️ Keeping protected category %d", id)
			summary.Skipped++
			continue
		}

		if kind == domain.EntityProduct {
			e.deleteProductImages(ctx, id)
		}

		if err := e.client.Delete(ctx, kind, id); err != nil {
			log.Warnf("⚠️ Failed to delete %s %d: %v", kind, id, err)
			summary.Failed++
			e.record(kind, "failed")
			continue
		}
		deleted = append(deleted, id)
		summary.Deleted++
		e.record(kind, "deleted")
	}

	if store := e.storeFor(kind); store != nil {
		dropped, err := store.Forget(ctx, deleted)
		if err != nil {
			log.Errorf("❌ Failed to update %s cache: %v", kind, err)
		} else if dropped > 0 {
			log.Infof("📒 Dropped %d cached %s ids", dropped, kind)
		}
	}

	logSummary("Teardown", kind, summary)
	return summary, nil
}

func (e *Engine) deleteProductImages(ctx context.Context, productID int) {
	imageIDs, err := e.client.ListProductImages(ctx, productID)
	if err != nil {
		log.Warnf("⚠️ Failed to list images of product %d: %v", productID, err)
		return
	}
	for _, imageID := range imageIDs {
		if err := e.client.DeleteProductImage(ctx, productID, imageID); err != nil {
			log.Warnf("⚠️ Failed to delete image %d of product %d: %v", imageID, productID, err)
		}
	}
}
