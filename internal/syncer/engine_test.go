package syncer

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"slices"
	"testing"

	"catalog/mirror/internal/cache"
	"catalog/mirror/internal/config"
	"catalog/mirror/internal/domain"
	"catalog/mirror/internal/metrics"
	"catalog/mirror/internal/prestashop"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory shop that records every call.
type fakeClient struct {
	names      map[domain.EntityKind]map[int]string
	parents    map[int]int
	products   map[int]*prestashop.Product
	stocks     map[int]*prestashop.StockAvailable
	images     map[int][]int
	nextID     int
	createFail map[string]bool
	deleteFail map[int]bool

	calls   []string
	creates int
	updates []prestashop.Payload
	uploads map[int][]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		names: map[domain.EntityKind]map[int]string{
			domain.EntityCategory:     {1: "Root", 2: "Home"},
			domain.EntityManufacturer: {},
			domain.EntityProduct:      {},
		},
		parents:    map[int]int{},
		products:   map[int]*prestashop.Product{},
		stocks:     map[int]*prestashop.StockAvailable{},
		images:     map[int][]int{},
		nextID:     10,
		createFail: map[string]bool{},
		deleteFail: map[int]bool{},
		uploads:    map[int][]string{},
	}
}

func (f *fakeClient) List(_ context.Context, kind domain.EntityKind) ([]int, error) {
	f.calls = append(f.calls, "list "+kind.String())
	ids := make([]int, 0, len(f.names[kind]))
	for id := range f.names[kind] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (f *fakeClient) GetCategory(_ context.Context, id int) (*prestashop.Category, error) {
	name, ok := f.names[domain.EntityCategory][id]
	if !ok {
		return nil, prestashop.ErrNotFound
	}
	return &prestashop.Category{ID: id, IDParent: f.parents[id], Name: prestashop.Text(1, name)}, nil
}

func (f *fakeClient) GetManufacturer(_ context.Context, id int) (*prestashop.Manufacturer, error) {
	name, ok := f.names[domain.EntityManufacturer][id]
	if !ok {
		return nil, prestashop.ErrNotFound
	}
	return &prestashop.Manufacturer{ID: id, Name: name}, nil
}

func (f *fakeClient) GetProduct(_ context.Context, id int) (*prestashop.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, prestashop.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeClient) GetStockAvailable(_ context.Context, id int) (*prestashop.StockAvailable, error) {
	s, ok := f.stocks[id]
	if !ok {
		return nil, prestashop.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeClient) FindByName(_ context.Context, kind domain.EntityKind, name string) (int, bool, error) {
	f.calls = append(f.calls, "find "+kind.String()+" "+name)
	ids := make([]int, 0)
	for id := range f.names[kind] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if f.names[kind][id] == name {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeClient) Create(_ context.Context, payload prestashop.Payload) (int, error) {
	if err := payload.Validate(); err != nil {
		return 0, err
	}

	var name string
	switch p := payload.(type) {
	case *prestashop.Category:
		name = p.Name.Value(1)
	case *prestashop.Manufacturer:
		name = p.Name
	case *prestashop.Product:
		name = p.Name.Value(1)
	}
	f.calls = append(f.calls, "create "+payload.Kind().String()+" "+name)
	if f.createFail[name] {
		return 0, &prestashop.RemoteError{Method: http.MethodPost, StatusCode: http.StatusInternalServerError}
	}

	f.creates++
	f.nextID++
	id := f.nextID
	f.names[payload.Kind()][id] = name

	switch p := payload.(type) {
	case *prestashop.Category:
		f.parents[id] = p.IDParent
	case *prestashop.Product:
		stored := *p
		stored.ID = id
		stored.Associations = &prestashop.ProductAssociations{
			Categories:      p.Associations.Categories,
			StockAvailables: []prestashop.StockRef{{ID: 1000 + id}},
		}
		f.products[id] = &stored
		f.stocks[1000+id] = &prestashop.StockAvailable{ID: 1000 + id, IDProduct: id, IDShop: 1, OutOfStock: 2, Location: "A-12"}
	}
	return id, nil
}

func (f *fakeClient) Update(_ context.Context, id int, payload prestashop.Payload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	f.calls = append(f.calls, fmt.Sprintf("update %s %d", payload.Kind(), id))
	f.updates = append(f.updates, payload)
	return nil
}

func (f *fakeClient) Delete(_ context.Context, kind domain.EntityKind, id int) error {
	f.calls = append(f.calls, fmt.Sprintf("delete %s %d", kind, id))
	if f.deleteFail[id] {
		return &prestashop.RemoteError{Method: http.MethodDelete, StatusCode: http.StatusInternalServerError}
	}
	delete(f.names[kind], id)
	return nil
}

func (f *fakeClient) UploadImage(_ context.Context, productID int, fileName string, content io.Reader) error {
	if _, err := io.ReadAll(content); err != nil {
		return err
	}
	f.uploads[productID] = append(f.uploads[productID], fileName)
	return nil
}

func (f *fakeClient) ListProductImages(_ context.Context, productID int) ([]int, error) {
	return f.images[productID], nil
}

func (f *fakeClient) DeleteProductImage(_ context.Context, productID, imageID int) error {
	f.calls = append(f.calls, fmt.Sprintf("delete image %d/%d", productID, imageID))
	return nil
}

type harness struct {
	engine        *Engine
	client        *fakeClient
	fs            afero.Fs
	metrics       *metrics.Metrics
	categories    *cache.Store
	manufacturers *cache.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	fs := afero.NewMemMapFs()

	categories, err := cache.Open(ctx, "categories", cache.NewFileBackend(fs, "category_ids.json"))
	require.NoError(t, err)
	manufacturers, err := cache.Open(ctx, "manufacturers", cache.NewFileBackend(fs, "manufacturers_ids.json"))
	require.NoError(t, err)

	client := newFakeClient()
	m := metrics.New()
	engine := NewEngine(client, categories, manufacturers, fs, m, rand.New(rand.NewPCG(1, 2)), Options{
		LanguageID:           1,
		RootCategoryID:       2,
		ProtectedCategoryIDs: []int{1, 2},
		ImagesDir:            "images",
		Stock:                config.StockConfig{Enabled: true, Min: 1, Max: 100},
		Weights:              config.WeightsConfig{First: 100, Min: 0.01, Max: 0.7},
	})

	return &harness{
		engine:        engine,
		client:        client,
		fs:            fs,
		metrics:       m,
		categories:    categories,
		manufacturers: manufacturers,
	}
}

func handlesTree() []domain.Category {
	tree := []domain.Category{
		{Name: "Handles", Children: []domain.Category{
			{Name: "Door Handles", Children: []domain.Category{}},
			{Name: "Cabinet Handles", Children: []domain.Category{}},
		}},
		{Name: "Knobs", Children: []domain.Category{}},
	}
	domain.AttachParents(tree)
	return tree
}

func TestSyncCategories_ParentBeforeChildren(t *testing.T) {
	h := newHarness(t)

	summary, err := h.engine.SyncCategories(context.Background(), handlesTree())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Created)

	handles, ok := h.categories.Get("Handles")
	require.True(t, ok)
	door, _ := h.categories.Get("Door Handles")
	cabinet, _ := h.categories.Get("Cabinet Handles")
	knobs, _ := h.categories.Get("Knobs")

	assert.Equal(t, 2, h.client.parents[handles], "top level goes under the root")
	assert.Equal(t, handles, h.client.parents[door])
	assert.Equal(t, handles, h.client.parents[cabinet])
	assert.Equal(t, 2, h.client.parents[knobs])
	assert.Less(t, handles, door)
	assert.Less(t, door, cabinet)
}

func TestSyncCategories_RerunReusesCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.SyncCategories(ctx, handlesTree())
	require.NoError(t, err)
	creates := h.client.creates

	summary, err := h.engine.SyncCategories(ctx, handlesTree())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Reused)
	assert.Zero(t, summary.Created)
	assert.Equal(t, creates, h.client.creates)
}

func TestSyncCategories_FailedParentSkipsSubtree(t *testing.T) {
	h := newHarness(t)
	h.client.createFail["Handles"] = true

	summary, err := h.engine.SyncCategories(context.Background(), handlesTree())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Created)

	_, ok := h.categories.Get("Door Handles")
	assert.False(t, ok)
	_, ok = h.categories.Get("Knobs")
	assert.True(t, ok)
	assert.NotContains(t, h.client.calls, "create categories Door Handles")
}

func TestSyncManufacturers_RemoteMatchIsReused(t *testing.T) {
	h := newHarness(t)
	h.client.names[domain.EntityManufacturer][42] = "Viefe"

	summary, err := h.engine.SyncManufacturers(context.Background(), []domain.Manufacturer{{Name: "Viefe"}})
	require.NoError(t, err)

	id, ok := h.manufacturers.Get("Viefe")
	require.True(t, ok)
	assert.Equal(t, 42, id)
	assert.Equal(t, 1, summary.Reused)
	assert.Zero(t, h.client.creates)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SyncOutcomes.WithLabelValues("manufacturers", "reused")))

	persisted, err := cache.NewFileBackend(h.fs, "manufacturers_ids.json").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Viefe": 42}, persisted)
}

func TestSyncManufacturers_CreatesOnceAcrossCalls(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	list := []domain.Manufacturer{{Name: "Viefe"}, {Name: "GTV"}, {Name: ""}}

	summary, err := h.engine.SyncManufacturers(ctx, list)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.Skipped)

	_, err = h.engine.SyncManufacturers(ctx, list)
	require.NoError(t, err)
	assert.Equal(t, 2, h.client.creates)
}

func TestSyncProducts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.categories.Put(ctx, "Door Handles", 20))
	require.NoError(t, h.manufacturers.Put(ctx, "Viefe", 42))
	require.NoError(t, afero.WriteFile(h.fs, "images/large_Handle_0.jpg", []byte("jpeg"), 0o644))

	products := []*domain.Product{
		{Name: "No category", Category: "Unknown", Manufacturer: "Viefe", Price: 1, Description: domain.NoDescription},
		{Name: "No manufacturer", Category: "Door Handles", Manufacturer: "Nobody", Price: 1, Description: domain.NoDescription},
		{Name: "Broken", Category: "Door Handles", Manufacturer: "Viefe", Price: 1, Description: domain.NoDescription},
		{
			Name: "Handle", Category: "Door Handles", Manufacturer: "Viefe", Price: 21.37,
			Description: []string{"Solid brass."},
			Images:      []string{"large_Handle_0.jpg", "default_Handle_0.jpg"},
		},
	}
	h.client.createFail["Broken"] = true

	summary, err := h.engine.SyncProducts(ctx, products)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Created)

	var id int
	for pid, name := range h.client.names[domain.EntityProduct] {
		if name == "Handle" {
			id = pid
		}
	}
	require.NotZero(t, id)

	product := h.client.products[id]
	assert.Equal(t, 20, product.IDCategoryDefault)
	assert.Equal(t, 42, product.IDManufacturer)
	assert.Equal(t, "21.370000", product.Price)

	assert.Equal(t, []string{"large_Handle_0.jpg"}, h.client.uploads[id], "missing files are skipped")

	require.Len(t, h.client.updates, 1)
	stock, ok := h.client.updates[0].(*prestashop.StockAvailable)
	require.True(t, ok)
	assert.Equal(t, 1000+id, stock.ID)
	assert.GreaterOrEqual(t, stock.Quantity, 1)
	assert.LessOrEqual(t, stock.Quantity, 100)
	assert.Equal(t, 2, stock.OutOfStock, "sibling fields survive the rewrite")
	assert.Equal(t, "A-12", stock.Location)
}

func TestSyncProducts_StockDisabled(t *testing.T) {
	h := newHarness(t)
	h.engine.opts.Stock.Enabled = false
	ctx := context.Background()
	require.NoError(t, h.categories.Put(ctx, "Door Handles", 20))
	require.NoError(t, h.manufacturers.Put(ctx, "Viefe", 42))

	_, err := h.engine.SyncProducts(ctx, []*domain.Product{
		{Name: "Handle", Category: "Door Handles", Manufacturer: "Viefe", Price: 5, Description: domain.NoDescription},
	})
	require.NoError(t, err)
	assert.Empty(t, h.client.updates)
}

func TestTeardownAll_CategoriesKeepProtectedAndContinue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.SyncCategories(ctx, handlesTree())
	require.NoError(t, err)

	knobs, _ := h.categories.Get("Knobs")
	h.client.deleteFail[knobs] = true

	summary, err := h.engine.TeardownAll(ctx, domain.EntityCategory)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.Deleted)

	assert.NotContains(t, h.client.calls, "delete categories 1")
	assert.NotContains(t, h.client.calls, "delete categories 2")
	assert.Contains(t, h.client.names[domain.EntityCategory], 1)
	assert.Contains(t, h.client.names[domain.EntityCategory], 2)

	assert.Equal(t, map[string]int{"Knobs": knobs}, h.categories.Snapshot())
}

func TestTeardownAll_ProductImagesGoFirst(t *testing.T) {
	h := newHarness(t)
	h.client.names[domain.EntityProduct][7] = "Handle"
	h.client.images[7] = []int{51, 52}

	summary, err := h.engine.TeardownAll(context.Background(), domain.EntityProduct)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Deleted)
	assert.Equal(t, []string{
		"list products",
		"delete image 7/51",
		"delete image 7/52",
		"delete products 7",
	}, h.client.calls)
}

func TestSetWeights(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, id := range []int{3, 4, 5} {
		h.client.names[domain.EntityProduct][id] = fmt.Sprintf("p%d", id)
		h.client.products[id] = prestashop.NewProduct(&domain.Product{Name: fmt.Sprintf("p%d", id), Price: 9}, 20, 42, 1)
	}

	summary, err := h.engine.SetWeights(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Updated)
	require.Len(t, h.client.updates, 3)

	first := h.client.updates[0].(*prestashop.ProductWeight)
	assert.Equal(t, 3, first.ID)
	assert.Equal(t, "100.00", first.Weight)

	for _, u := range h.client.updates[1:] {
		w := u.(*prestashop.ProductWeight)
		var weight float64
		_, err := fmt.Sscanf(w.Weight, "%f", &weight)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, weight, 0.01)
		assert.LessOrEqual(t, weight, 0.7)
		assert.Regexp(t, `^\d+\.\d{2}$`, w.Weight)
	}
}

func TestNewEngine_NilMetricsUsesOwnRegistry(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	categories, err := cache.Open(ctx, "categories", cache.NewFileBackend(fs, "category_ids.json"))
	require.NoError(t, err)
	manufacturers, err := cache.Open(ctx, "manufacturers", cache.NewFileBackend(fs, "manufacturers_ids.json"))
	require.NoError(t, err)

	engine := NewEngine(newFakeClient(), categories, manufacturers, fs, nil, rand.New(rand.NewPCG(1, 2)), Options{RootCategoryID: 2})
	require.NotNil(t, engine.metrics)

	summary, err := engine.SyncCategories(ctx, handlesTree())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Created)
}
