package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"catalog/mirror/internal/config"
	"catalog/mirror/internal/domain"
	"catalog/mirror/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

type StorefrontClient interface {
	GetCategoryTree(ctx context.Context) ([]domain.Category, error)
	GetListingPage(ctx context.Context, categoryLink string, pageNumber int) (*domain.ListingPage, error)
	GetProduct(ctx context.Context, productLink, category string) (*domain.Product, []domain.GalleryImage, error)
}

type storefrontClient struct {
	rl            ratelimit.Limiter
	config        config.StorefrontConfig
	baseURL       *url.URL
	httpClient    *resty.Client
	proxySupplier proxy.ProxySupplier
	throttle      *throttleGuard
}

func NewStorefrontClient(cfg config.StorefrontConfig, proxySupplier proxy.ProxySupplier) (StorefrontClient, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid storefront base URL %q: %w", cfg.BaseURL, err)
	}

	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36").
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "pl-PL,pl;q=0.9,en;q=0.5").
		SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		})

	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			client.SetProxy(proxyURL)
			log.Infof("🔗 Using initial proxy: %s", proxyURL)
		}
	}

	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	return &storefrontClient{
		rl:            rl,
		config:        cfg,
		baseURL:       baseURL,
		httpClient:    client,
		proxySupplier: proxySupplier,
		throttle:      newThrottleGuard(time.Duration(cfg.CooldownSeconds) * time.Second),
	}, nil
}

func (c *storefrontClient) GetCategoryTree(ctx context.Context) ([]domain.Category, error) {
	html, err := c.fetchHTML(ctx, c.resolve(c.config.StartPath))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HTML for category menu: %w", err)
	}

	return ExtractCategories(html)
}

func (c *storefrontClient) GetListingPage(ctx context.Context, categoryLink string, pageNumber int) (*domain.ListingPage, error) {
	pageURL, err := withPage(c.resolve(categoryLink), pageNumber)
	if err != nil {
		return nil, err
	}

	html, err := c.fetchHTML(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing page %d of %s: %w", pageNumber, categoryLink, err)
	}

	page, err := ExtractListingPage(html, pageNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}
	for i, link := range page.ProductLinks {
		page.ProductLinks[i] = c.resolve(link)
	}
	return page, nil
}

func (c *storefrontClient) GetProduct(ctx context.Context, productLink, category string) (*domain.Product, []domain.GalleryImage, error) {
	html, err := c.fetchHTML(ctx, productLink)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch HTML for product %s: %w", productLink, err)
	}

	return ExtractProduct(html, productLink, category)
}

// resolve turns a storefront-relative link into an absolute URL.
func (c *storefrontClient) resolve(link string) string {
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return c.baseURL.ResolveReference(ref).String()
}

func withPage(rawURL string, pageNumber int) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid listing URL %q: %w", rawURL, err)
	}
	if pageNumber > 1 {
		q := u.Query()
		q.Set("page", fmt.Sprint(pageNumber))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *storefrontClient) fetchHTML(ctx context.Context, pageURL string) (string, error) {
	if err := c.throttle.allow(); err != nil {
		return "", err
	}

	c.rl.Take()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return "", ErrPageNotFound
	case resp.StatusCode() == http.StatusTooManyRequests:
		return c.throttle.handle(ctx, pageURL, c.switchProxy, func(ctx context.Context) (string, bool) {
			resp, err := c.httpClient.R().SetContext(ctx).Get(pageURL)
			if err != nil || resp.IsError() {
				return "", false
			}
			return resp.String(), true
		})
	case resp.IsError():
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	return resp.String(), nil
}

func (c *storefrontClient) switchProxy() bool {
	if c.proxySupplier == nil {
		return false
	}
	newProxy := c.proxySupplier.Get()
	if newProxy == "" {
		return false
	}
	log.Infof("🔄 Switching to new proxy: %s", newProxy)
	c.httpClient.SetProxy(newProxy)
	return true
}

// IsNotFound reports whether err marks a missing storefront page.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPageNotFound)
}
