package syncer

import (
	"context"

	"catalog/mirror/internal/domain"
	"catalog/mirror/internal/prestashop"

	log "github.com/sirupsen/logrus"
)

func (e *Engine) SyncManufacturers(ctx context.Context, manufacturers []domain.Manufacturer) (Summary, error) {
	var summary Summary
	for _, m := range manufacturers {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if m.Name == "" {
			summary.Skipped++
			continue
		}

		id, outcome, err := e.manufacturers.FindOrCreate(ctx, m.Name,
			func(ctx context.Context, name string) (int, bool, error) {
				return e.client.FindByName(ctx, domain.EntityManufacturer, name)
			},
			func(ctx context.Context) (int, error) {
				return e.client.Create(ctx, prestashop.NewManufacturer(m.Name))
			},
		)
		if err != nil {
			log.WithField("manufacturer", m.Name).Errorf("❌ Failed to sync manufacturer: %v", err)
			summary.Failed++
			e.record(domain.EntityManufacturer, "failed")
			continue
		}

		e.countResolved(domain.EntityManufacturer, &summary, outcome)
		log.Infof("🏭 Manufacturer %q → %d (%s)", m.Name, id, outcome)
	}

	logSummary("Sync", domain.EntityManufacturer, summary)
	return summary, nil
}
