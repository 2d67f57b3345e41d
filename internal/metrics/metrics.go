package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Metrics holds the crawl and sync counters.
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched     *prometheus.CounterVec
	ProductsScraped  prometheus.Counter
	ImagesStored     prometheus.Counter
	CategoriesFailed prometheus.Counter
	SyncOutcomes     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_listing_pages_total",
			Help: "Listing pages fetched, by classification",
		}, []string{"result"}), // ok, empty, not_found
		ProductsScraped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mirror_products_scraped_total",
			Help: "Products extracted from the storefront",
		}),
		ImagesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mirror_images_stored_total",
			Help: "Product images written to the image directory",
		}),
		CategoriesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mirror_categories_failed_total",
			Help: "Categories whose crawl was abandoned",
		}),
		SyncOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_sync_entities_total",
			Help: "Remote sync outcomes by entity kind",
		}, []string{"kind", "outcome"}), // created, reused, updated, skipped, failed, deleted
	}

	m.registry.MustRegister(m.PagesFetched, m.ProductsScraped, m.ImagesStored, m.CategoriesFailed, m.SyncOutcomes)
	return m
}

func (m *Metrics) IncPage(result string) {
	m.PagesFetched.WithLabelValues(result).Inc()
}

func (m *Metrics) IncSync(kind, outcome string) {
	m.SyncOutcomes.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Infof("📈 Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("❌ Metrics server stopped: %v", err)
		}
	}()
}
