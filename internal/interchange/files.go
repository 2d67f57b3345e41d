// Package interchange reads and writes the JSON files that connect the
// crawl phase to the sync phase.
package interchange

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"

	"catalog/mirror/internal/domain"

	"github.com/spf13/afero"
)

const (
	CategoriesFile    = "categories.json"
	ProductsFile      = "products.json"
	ManufacturersFile = "manufacturers.json"
)

type Files struct {
	fs  afero.Fs
	dir string
}

func New(fs afero.Fs, dir string) *Files {
	return &Files{fs: fs, dir: dir}
}

func (f *Files) WriteCategories(categories []domain.Category) error {
	return f.write(CategoriesFile, categories)
}

func (f *Files) WriteProducts(products []*domain.Product) error {
	return f.write(ProductsFile, products)
}

func (f *Files) WriteManufacturers(manufacturers []domain.Manufacturer) error {
	return f.write(ManufacturersFile, manufacturers)
}

// ReadCategories loads the tree and restores parent names and empty child lists.
func (f *Files) ReadCategories() ([]domain.Category, error) {
	var categories []domain.Category
	if err := f.read(CategoriesFile, &categories); err != nil {
		return nil, err
	}
	normalize(categories)
	domain.AttachParents(categories)
	return categories, nil
}

func (f *Files) ReadProducts() ([]*domain.Product, error) {
	var products []*domain.Product
	if err := f.read(ProductsFile, &products); err != nil {
		return nil, err
	}
	products = slices.DeleteFunc(products, func(p *domain.Product) bool { return p == nil })
	for _, p := range products {
		if len(p.Description) == 0 {
			p.Description = append([]string(nil), domain.NoDescription...)
		}
		if p.Images == nil {
			p.Images = make([]string, 0)
		}
	}
	return products, nil
}

// ReadManufacturers returns manufacturers.json, or the manufacturers of
// products.json when the former was never written.
func (f *Files) ReadManufacturers() ([]domain.Manufacturer, error) {
	exists, err := afero.Exists(f.fs, f.path(ManufacturersFile))
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", ManufacturersFile, err)
	}
	if !exists {
		products, err := f.ReadProducts()
		if err != nil {
			return nil, err
		}
		return domain.ManufacturersOf(products), nil
	}

	var manufacturers []domain.Manufacturer
	if err := f.read(ManufacturersFile, &manufacturers); err != nil {
		return nil, err
	}
	return manufacturers, nil
}

func normalize(categories []domain.Category) {
	for i := range categories {
		if categories[i].Children == nil {
			categories[i].Children = make([]domain.Category, 0)
		}
		normalize(categories[i].Children)
	}
}

func (f *Files) path(name string) string {
	return filepath.Join(f.dir, name)
}

func (f *Files) write(name string, v any) error {
	if err := f.fs.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", f.dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	if err := afero.WriteFile(f.fs, f.path(name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (f *Files) read(name string, v any) error {
	data, err := afero.ReadFile(f.fs, f.path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}
