package syncer

import (
	"context"

	"catalog/mirror/internal/domain"
	"catalog/mirror/internal/prestashop"

	log "github.com/sirupsen/logrus"
)

// SyncCategories resolves every category depth-first, parent before its
// children. A parent that cannot be resolved takes its subtree with it.
func (e *Engine) SyncCategories(ctx context.Context, tree []domain.Category) (Summary, error) {
	var summary Summary
	for _, category := range tree {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		e.syncCategory(ctx, category, e.opts.RootCategoryID, &summary)
	}

	logSummary("Sync", domain.EntityCategory, summary)
	return summary, ctx.Err()
}

func (e *Engine) syncCategory(ctx context.Context, category domain.Category, parentID int, summary *Summary) {
	id, err := e.resolveCategory(ctx, category.Name, parentID, summary)
	if err != nil {
		log.WithField("category", category.Name).Errorf("❌ Failed to sync category: %v", err)
		summary.Failed++
		e.record(domain.EntityCategory, "failed")

		if skipped := countTree(category.Children); skipped > 0 {
			log.WithField("category", category.Name).Warnf("⚠️ Skipping %d subcategories", skipped)
			summary.Skipped += skipped
		}
		return
	}

	for _, child := range category.Children {
		if ctx.Err() != nil {
			return
		}
		e.syncCategory(ctx, child, id, summary)
	}
}

func (e *Engine) resolveCategory(ctx context.Context, name string, parentID int, summary *Summary) (int, error) {
	id, outcome, err := e.categories.FindOrCreate(ctx, name,
		func(ctx context.Context, name string) (int, bool, error) {
			return e.client.FindByName(ctx, domain.EntityCategory, name)
		},
		func(ctx context.Context) (int, error) {
			return e.client.Create(ctx, prestashop.NewCategory(name, parentID, e.opts.LanguageID))
		},
	)
	if err != nil {
		return 0, err
	}

	e.countResolved(domain.EntityCategory, summary, outcome)
	log.Infof("📁 Category %q → %d (%s)", name, id, outcome)
	return id, nil
}

func countTree(categories []domain.Category) int {
	n := len(categories)
	for _, c := range categories {
		n += countTree(c.Children)
	}
	return n
}
