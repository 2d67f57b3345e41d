package domain

import "sort"

// NoDescription replaces an absent or empty product description.
var NoDescription = []string{"Brak opisu"}

type Product struct {
	Name         string   `json:"name"`
	SourceLink   string   `json:"link"`
	Images       []string `json:"images"`
	Price        float64  `json:"price"`
	Manufacturer string   `json:"manufacturer"`
	Description  []string `json:"description"`
	Category     string   `json:"category"`
}

// NewProduct returns the empty shell the extractor fills in.
func NewProduct(sourceLink, category string) *Product {
	return &Product{
		SourceLink: sourceLink,
		Category:   category,
		Images:     make([]string, 0),
	}
}

type Manufacturer struct {
	Name string `json:"name"`
}

// ManufacturersOf returns the unique manufacturer names of products, sorted.
func ManufacturersOf(products []*Product) []Manufacturer {
	seen := make(map[string]struct{}, len(products))
	names := make([]string, 0, len(products))
	for _, p := range products {
		if p.Manufacturer == "" {
			continue
		}
		if _, ok := seen[p.Manufacturer]; ok {
			continue
		}
		seen[p.Manufacturer] = struct{}{}
		names = append(names, p.Manufacturer)
	}
	sort.Strings(names)

	manufacturers := make([]Manufacturer, 0, len(names))
	for _, name := range names {
		manufacturers = append(manufacturers, Manufacturer{Name: name})
	}
	return manufacturers
}
