package syncer

import (
	"context"

	"catalog/mirror/internal/domain"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// SetWeights gives the first remote product the configured heavy weight and
// every other product a random weight in [min, max], two decimals.
func (e *Engine) SetWeights(ctx context.Context) (Summary, error) {
	var summary Summary

	ids, err := e.client.List(ctx, domain.EntityProduct)
	if err != nil {
		return summary, err
	}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		weight := decimal.NewFromFloat(e.opts.Weights.First)
		if i > 0 {
			span := e.opts.Weights.Max - e.opts.Weights.Min
			weight = decimal.NewFromFloat(e.opts.Weights.Min + e.rnd.Float64()*span).Round(2)
		}

		if err := e.setWeight(ctx, id, weight); err != nil {
			log.Warnf("⚠️ Failed to set weight of product %d: %v", id, err)
			summary.Failed++
			e.record(domain.EntityProduct, "failed")
			continue
		}
		log.Infof("⚖️ Product %d → %s kg", id, weight.StringFixed(2))
		summary.Updated++
		e.record(domain.EntityProduct, "updated")
	}

	logSummary("Weights", domain.EntityProduct, summary)
	return summary, nil
}

func (e *Engine) setWeight(ctx context.Context, id int, weight decimal.Decimal) error {
	product, err := e.client.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	product.ID = id
	return e.client.Update(ctx, id, product.WeightUpdate(weight))
}
