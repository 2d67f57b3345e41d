package container

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"catalog/mirror/internal/assets"
	"catalog/mirror/internal/cache"
	"catalog/mirror/internal/client"
	"catalog/mirror/internal/config"
	"catalog/mirror/internal/domain"
	"catalog/mirror/internal/interchange"
	"catalog/mirror/internal/metrics"
	"catalog/mirror/internal/prestashop"
	"catalog/mirror/internal/proxy"
	"catalog/mirror/internal/repository"
	"catalog/mirror/internal/service"
	"catalog/mirror/internal/syncer"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Container holds the shared components and builds the crawl and sync
// pipelines on demand.
type Container struct {
	Config  *config.Config
	Metrics *metrics.Metrics
	Files   *interchange.Files

	fs    afero.Fs
	db    *pgxpool.Pool
	redis *redis.Client
}

// New connects only what the configuration enables: Redis for the redis
// cache backend, Postgres for the product archive.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	fs := afero.NewOsFs()
	container := &Container{
		Config:  cfg,
		Metrics: metrics.New(),
		Files:   interchange.New(fs, cfg.Output.JSONDir),
		fs:      fs,
	}

	if cfg.Cache.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("✅ Connected to Redis successfully")
		container.redis = rdb
	}

	if cfg.Database.Enabled {
		db, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		container.db = db
		log.Info("✅ Connected to Postgres successfully")
	}

	if cfg.Metrics.Addr != "" {
		container.Metrics.Serve(ctx, cfg.Metrics.Addr)
	}

	return container, nil
}

// Crawl scrapes the storefront into the interchange files.
func (c *Container) Crawl(ctx context.Context) error {
	cfg := c.Config.Storefront

	proxySupplier := proxy.NewProxySupplier(ctx, cfg.Proxies, cfg.BaseURL)
	storefront, err := client.NewStorefrontClient(cfg, proxySupplier)
	if err != nil {
		return err
	}

	fetcher := assets.NewFetcher(
		assets.NewHTTPClient(time.Duration(cfg.Timeout)*time.Second, cfg.MaxRetries),
		c.fs,
		c.Metrics.ImagesStored.Inc,
	)

	crawler := service.NewCrawler(storefront, fetcher, c.Metrics, service.CrawlerOptions{
		ImagesDir:      c.Config.Output.ImagesDir,
		MaxWorkers:     cfg.MaxWorkers,
		ProductWorkers: cfg.ProductWorkers,
		MaxPages:       cfg.MaxPages,
	})

	var archive repository.ProductRepository
	if c.db != nil {
		archive = repository.NewProductRepository(c.db)
		if err := archive.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	return crawler.Run(ctx, c.Files, archive)
}

// Sync pushes the interchange files to the webservice. target is one of
// categories, manufacturers, products or all.
func (c *Container) Sync(ctx context.Context, target string) error {
	engine, err := c.engine(ctx)
	if err != nil {
		return err
	}

	steps := map[string]func() error{
		"categories": func() error {
			tree, err := c.Files.ReadCategories()
			if err != nil {
				return err
			}
			_, err = engine.SyncCategories(ctx, tree)
			return err
		},
		"manufacturers": func() error {
			manufacturers, err := c.Files.ReadManufacturers()
			if err != nil {
				return err
			}
			_, err = engine.SyncManufacturers(ctx, manufacturers)
			return err
		},
		"products": func() error {
			products, err := c.Files.ReadProducts()
			if err != nil {
				return err
			}
			_, err = engine.SyncProducts(ctx, products)
			return err
		},
	}

	order := []string{target}
	if target == "all" {
		// products resolve ids from both caches, so they go last
		order = []string{"categories", "manufacturers", "products"}
	}

	for _, name := range order {
		step, ok := steps[name]
		if !ok {
			return fmt.Errorf("unknown sync target %q", name)
		}
		log.Infof("🔄 Syncing %s", name)
		if err := step(); err != nil {
			return fmt.Errorf("failed to sync %s: %w", name, err)
		}
	}
	return nil
}

// Teardown deletes every remote entity of kind, or of every kind for "all".
func (c *Container) Teardown(ctx context.Context, kind string) error {
	kinds := domain.TeardownKinds
	if kind != "all" {
		parsed, err := domain.ParseEntityKind(kind)
		if err != nil {
			return err
		}
		kinds = []domain.EntityKind{parsed}
	}

	engine, err := c.engine(ctx)
	if err != nil {
		return err
	}

	for _, k := range kinds {
		if _, err := engine.TeardownAll(ctx, k); err != nil {
			return fmt.Errorf("failed to tear down %s: %w", k, err)
		}
	}
	return nil
}

func (c *Container) Weights(ctx context.Context) error {
	engine, err := c.engine(ctx)
	if err != nil {
		return err
	}
	_, err = engine.SetWeights(ctx)
	return err
}

func (c *Container) engine(ctx context.Context) (*syncer.Engine, error) {
	categories, err := cache.Open(ctx, domain.EntityCategory.String(), c.cacheBackend(domain.EntityCategory, c.Config.Cache.CategoryFile))
	if err != nil {
		return nil, err
	}
	manufacturers, err := cache.Open(ctx, domain.EntityManufacturer.String(), c.cacheBackend(domain.EntityManufacturer, c.Config.Cache.ManufacturerFile))
	if err != nil {
		return nil, err
	}

	ps := c.Config.PrestaShop
	return syncer.NewEngine(
		prestashop.NewClient(ps),
		categories,
		manufacturers,
		c.fs,
		c.Metrics,
		rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		syncer.Options{
			LanguageID:           ps.LanguageID,
			RootCategoryID:       ps.RootCategoryID,
			ProtectedCategoryIDs: ps.ProtectedCategoryIDs,
			ImagesDir:            c.Config.Output.ImagesDir,
			Stock:                c.Config.Sync.Stock,
			Weights:              c.Config.Sync.Weights,
		},
	), nil
}

func (c *Container) cacheBackend(kind domain.EntityKind, file string) cache.Backend {
	if c.redis != nil {
		return cache.NewRedisBackend(c.redis, c.Config.Cache.RedisPrefix, kind.String())
	}
	return cache.NewFileBackend(c.fs, file)
}

// Close performs cleanup when shutting down
func (c *Container) Close() {
	log.Debug("Shutting down container...")

	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			log.Warnf("⚠️ Failed to close Redis client: %v", err)
		}
	}
}
