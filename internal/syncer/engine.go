package syncer

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"catalog/mirror/internal/cache"
	"catalog/mirror/internal/config"
	"catalog/mirror/internal/domain"
	"catalog/mirror/internal/metrics"
	"catalog/mirror/internal/prestashop"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

type Options struct {
	LanguageID           int
	RootCategoryID       int
	ProtectedCategoryIDs []int
	ImagesDir            string
	Stock                config.StockConfig
	Weights              config.WeightsConfig
}

// Summary counts what one sync or teardown pass did.
type Summary struct {
	Created int
	Reused  int
	Updated int
	Skipped int
	Failed  int
	Deleted int
}

func (s Summary) String() string {
	return fmt.Sprintf("created=%d reused=%d updated=%d skipped=%d failed=%d deleted=%d",
		s.Created, s.Reused, s.Updated, s.Skipped, s.Failed, s.Deleted)
}

// Engine projects crawled entities onto the remote shop. It is sequential:
// every create goes through the caches in order.
type Engine struct {
	client        prestashop.Client
	categories    *cache.Store
	manufacturers *cache.Store
	fs            afero.Fs
	metrics       *metrics.Metrics
	rnd           *rand.Rand
	opts          Options
}

func NewEngine(
	client prestashop.Client,
	categories, manufacturers *cache.Store,
	fs afero.Fs,
	m *metrics.Metrics,
	rnd *rand.Rand,
	opts Options,
) *Engine {
	if m == nil {
		m = metrics.New()
	}
	return &Engine{
		client:        client,
		categories:    categories,
		manufacturers: manufacturers,
		fs:            fs,
		metrics:       m,
		rnd:           rnd,
		opts:          opts,
	}
}

func (e *Engine) record(kind domain.EntityKind, outcome string) {
	e.metrics.IncSync(kind.String(), outcome)
}

func (e *Engine) countResolved(kind domain.EntityKind, summary *Summary, outcome cache.Outcome) {
	if outcome == cache.OutcomeCreated {
		summary.Created++
		e.record(kind, "created")
		return
	}
	summary.Reused++
	e.record(kind, "reused")
}

func (e *Engine) isProtected(kind domain.EntityKind, id int) bool {
	return kind == domain.EntityCategory && slices.Contains(e.opts.ProtectedCategoryIDs, id)
}

func logSummary(action string, kind domain.EntityKind, s Summary) {
	log.Infof("🏁 %s %s finished: %s", action, kind, s)
}

func (e *Engine) storeFor(kind domain.EntityKind) *cache.Store {
	switch kind {
	case domain.EntityCategory:
		return e.categories
	case domain.EntityManufacturer:
		return e.manufacturers
	}
	return nil
}
