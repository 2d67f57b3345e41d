package prestashop

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"catalog/mirror/internal/config"
	"catalog/mirror/internal/domain"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// Client talks to the target shop's XML webservice.
type Client interface {
	// List enumerates every id of kind, page by page.
	List(ctx context.Context, kind domain.EntityKind) ([]int, error)
	GetCategory(ctx context.Context, id int) (*Category, error)
	GetManufacturer(ctx context.Context, id int) (*Manufacturer, error)
	GetProduct(ctx context.Context, id int) (*Product, error)
	GetStockAvailable(ctx context.Context, id int) (*StockAvailable, error)
	// FindByName dereferences every listed entity of kind until one is named
	// name. Absence is (0, false, nil).
	FindByName(ctx context.Context, kind domain.EntityKind, name string) (int, bool, error)
	Create(ctx context.Context, payload Payload) (int, error)
	Update(ctx context.Context, id int, payload Payload) error
	Delete(ctx context.Context, kind domain.EntityKind, id int) error
	UploadImage(ctx context.Context, productID int, fileName string, content io.Reader) error
	ListProductImages(ctx context.Context, productID int) ([]int, error)
	DeleteProductImage(ctx context.Context, productID, imageID int) error
}

type client struct {
	http       *resty.Client
	pageSize   int
	languageID int
}

func NewClient(cfg config.PrestaShopConfig) Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetBasicAuth(cfg.APIKey, "").
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Second).
		SetHeader("Accept", "application/xml").
		SetTLSClientConfig(&tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify})

	pageSize := cfg.ListPageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	return &client{
		http:       httpClient,
		pageSize:   pageSize,
		languageID: cfg.LanguageID,
	}
}

type reference struct {
	ID int `xml:"id,attr"`
}

type listResponse struct {
	XMLName    xml.Name `xml:"prestashop"`
	Collection struct {
		Items []reference `xml:",any"`
	} `xml:",any"`
}

type createdResponse struct {
	XMLName xml.Name `xml:"prestashop"`
	Entity  struct {
		ID int `xml:"id"`
	} `xml:",any"`
}

type imageResponse struct {
	XMLName xml.Name `xml:"prestashop"`
	Image   struct {
		Declinations []reference `xml:"declination"`
	} `xml:"image"`
}

func (c *client) List(ctx context.Context, kind domain.EntityKind) ([]int, error) {
	var ids []int
	for offset := 0; ; offset += c.pageSize {
		var page listResponse
		err := c.get(ctx, "/"+string(kind), map[string]string{
			"limit": fmt.Sprintf("%d,%d", offset, c.pageSize),
		}, &page)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", kind, err)
		}

		for _, item := range page.Collection.Items {
			ids = append(ids, item.ID)
		}
		if len(page.Collection.Items) < c.pageSize {
			return ids, nil
		}
	}
}

func (c *client) GetCategory(ctx context.Context, id int) (*Category, error) {
	var resp struct {
		Category Category `xml:"category"`
	}
	if err := c.get(ctx, entityPath(domain.EntityCategory, id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Category, nil
}

func (c *client) GetManufacturer(ctx context.Context, id int) (*Manufacturer, error) {
	var resp struct {
		Manufacturer Manufacturer `xml:"manufacturer"`
	}
	if err := c.get(ctx, entityPath(domain.EntityManufacturer, id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Manufacturer, nil
}

func (c *client) GetProduct(ctx context.Context, id int) (*Product, error) {
	var resp struct {
		Product Product `xml:"product"`
	}
	if err := c.get(ctx, entityPath(domain.EntityProduct, id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

func (c *client) GetStockAvailable(ctx context.Context, id int) (*StockAvailable, error) {
	var resp struct {
		Stock StockAvailable `xml:"stock_available"`
	}
	if err := c.get(ctx, entityPath(domain.EntityStock, id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Stock, nil
}

func (c *client) FindByName(ctx context.Context, kind domain.EntityKind, name string) (int, bool, error) {
	ids, err := c.List(ctx, kind)
	if err != nil {
		return 0, false, err
	}

	for _, id := range ids {
		remoteName, err := c.nameOf(ctx, kind, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, false, fmt.Errorf("failed to read %s %d: %w", kind, id, err)
		}
		if remoteName == name {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (c *client) nameOf(ctx context.Context, kind domain.EntityKind, id int) (string, error) {
	switch kind {
	case domain.EntityCategory:
		category, err := c.GetCategory(ctx, id)
		if err != nil {
			return "", err
		}
		return category.Name.Value(c.languageID), nil
	case domain.EntityManufacturer:
		manufacturer, err := c.GetManufacturer(ctx, id)
		if err != nil {
			return "", err
		}
		return manufacturer.Name, nil
	case domain.EntityProduct:
		product, err := c.GetProduct(ctx, id)
		if err != nil {
			return "", err
		}
		return product.Name.Value(c.languageID), nil
	}
	return "", fmt.Errorf("lookup by name is not supported for %s", kind)
}

func (c *client) Create(ctx context.Context, payload Payload) (int, error) {
	if err := payload.Validate(); err != nil {
		return 0, err
	}
	body, err := marshalPayload(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s: %w", payload.Kind(), err)
	}

	path := "/" + string(payload.Kind())
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/xml").
		SetBody(body).
		Post(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", payload.Kind(), err)
	}
	if resp.IsError() {
		return 0, newRemoteError(http.MethodPost, path, resp.StatusCode(), resp.String())
	}

	var created createdResponse
	if err := xml.Unmarshal(resp.Bytes(), &created); err != nil {
		return 0, fmt.Errorf("failed to decode created %s: %w", payload.Kind(), err)
	}
	if created.Entity.ID == 0 {
		return 0, fmt.Errorf("created %s response has no id", payload.Kind())
	}
	return created.Entity.ID, nil
}

func (c *client) Update(ctx context.Context, id int, payload Payload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	body, err := marshalPayload(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", payload.Kind(), err)
	}

	path := entityPath(payload.Kind(), id)
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/xml").
		SetBody(body).
		Put(path)
	if err != nil {
		return fmt.Errorf("failed to update %s %d: %w", payload.Kind(), id, err)
	}
	if resp.IsError() {
		return newRemoteError(http.MethodPut, path, resp.StatusCode(), resp.String())
	}
	return nil
}

func (c *client) Delete(ctx context.Context, kind domain.EntityKind, id int) error {
	return c.delete(ctx, entityPath(kind, id))
}

func (c *client) UploadImage(ctx context.Context, productID int, fileName string, content io.Reader) error {
	path := fmt.Sprintf("/images/products/%d", productID)
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("image", fileName, content).
		Post(path)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", fileName, err)
	}
	if resp.IsError() {
		return newRemoteError(http.MethodPost, path, resp.StatusCode(), resp.String())
	}
	return nil
}

func (c *client) ListProductImages(ctx context.Context, productID int) ([]int, error) {
	var resp imageResponse
	err := c.get(ctx, fmt.Sprintf("/images/products/%d", productID), nil, &resp)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(resp.Image.Declinations))
	for _, d := range resp.Image.Declinations {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (c *client) DeleteProductImage(ctx context.Context, productID, imageID int) error {
	return c.delete(ctx, fmt.Sprintf("/images/products/%d/%d", productID, imageID))
}

func (c *client) get(ctx context.Context, path string, query map[string]string, out any) error {
	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.IsError() {
		return newRemoteError(http.MethodGet, path, resp.StatusCode(), resp.String())
	}

	if err := xml.Unmarshal(resp.Bytes(), out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (c *client) delete(ctx context.Context, path string) error {
	resp, err := c.http.R().SetContext(ctx).Delete(path)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	if resp.IsError() {
		return newRemoteError(http.MethodDelete, path, resp.StatusCode(), resp.String())
	}
	log.Debugf("🗑️ Deleted %s", path)
	return nil
}

func entityPath(kind domain.EntityKind, id int) string {
	return "/" + string(kind) + "/" + strconv.Itoa(id)
}
