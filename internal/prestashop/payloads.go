package prestashop

import (
	"encoding/xml"
	"strconv"
	"unicode/utf8"

	"catalog/mirror/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	xlinkNamespace       = "http://www.w3.org/1999/xlink"
	shortDescriptionSize = 600
)

// Payload is one writable webservice entity. Each kind has its own type with
// its own required fields, checked by Validate before anything is sent.
type Payload interface {
	Kind() domain.EntityKind
	Validate() error
}

type envelope struct {
	XMLName xml.Name `xml:"prestashop"`
	XLink   string   `xml:"xmlns:xlink,attr"`
	Payload Payload
}

func marshalPayload(p Payload) ([]byte, error) {
	body, err := xml.Marshal(envelope{XLink: xlinkNamespace, Payload: p})
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

type Language struct {
	ID    int    `xml:"id,attr"`
	Value string `xml:",chardata"`
}

// LangText is a multilingual field.
type LangText struct {
	Languages []Language `xml:"language"`
}

func Text(languageID int, value string) LangText {
	return LangText{Languages: []Language{{ID: languageID, Value: value}}}
}

// Value returns the text for languageID, or the first translation.
func (t LangText) Value(languageID int) string {
	for _, l := range t.Languages {
		if l.ID == languageID {
			return l.Value
		}
	}
	if len(t.Languages) > 0 {
		return t.Languages[0].Value
	}
	return ""
}

type Category struct {
	XMLName     xml.Name `xml:"category"`
	ID          int      `xml:"id,omitempty"`
	IDParent    int      `xml:"id_parent"`
	Active      int      `xml:"active"`
	Name        LangText `xml:"name"`
	LinkRewrite LangText `xml:"link_rewrite"`
}

func NewCategory(name string, parentID, languageID int) *Category {
	return &Category{
		IDParent:    parentID,
		Active:      1,
		Name:        Text(languageID, name),
		LinkRewrite: Text(languageID, Slugify(name)),
	}
}

func (c *Category) Kind() domain.EntityKind { return domain.EntityCategory }

func (c *Category) Validate() error {
	switch {
	case c.Name.Value(0) == "":
		return invalid("category", "without name")
	case c.IDParent <= 0:
		return invalid("category", "without parent id")
	case c.LinkRewrite.Value(0) == "":
		return invalid("category", "without link_rewrite")
	}
	return nil
}

type Manufacturer struct {
	XMLName xml.Name `xml:"manufacturer"`
	ID      int      `xml:"id,omitempty"`
	Active  int      `xml:"active"`
	Name    string   `xml:"name"`
}

func NewManufacturer(name string) *Manufacturer {
	return &Manufacturer{Active: 1, Name: name}
}

func (m *Manufacturer) Kind() domain.EntityKind { return domain.EntityManufacturer }

func (m *Manufacturer) Validate() error {
	if m.Name == "" {
		return invalid("manufacturer", "without name")
	}
	return nil
}

type IDRef struct {
	ID int `xml:"id"`
}

type StockRef struct {
	ID                 int `xml:"id"`
	IDProductAttribute int `xml:"id_product_attribute"`
}

type ProductAssociations struct {
	Categories      []IDRef    `xml:"categories>category"`
	StockAvailables []StockRef `xml:"stock_availables>stock_available,omitempty"`
}

type Product struct {
	XMLName           xml.Name             `xml:"product"`
	ID                int                  `xml:"id,omitempty"`
	IDManufacturer    int                  `xml:"id_manufacturer"`
	IDCategoryDefault int                  `xml:"id_category_default"`
	IDTaxRulesGroup   int                  `xml:"id_tax_rules_group"`
	Active            int                  `xml:"active"`
	Price             string               `xml:"price"`
	Weight            string               `xml:"weight,omitempty"`
	Visibility        string               `xml:"visibility"`
	Name              LangText             `xml:"name"`
	DescriptionShort  LangText             `xml:"description_short"`
	Description       LangText             `xml:"description"`
	LinkRewrite       LangText             `xml:"link_rewrite"`
	Associations      *ProductAssociations `xml:"associations,omitempty"`
}

// NewProduct maps a crawled product onto a create payload.
func NewProduct(p *domain.Product, categoryID, manufacturerID, languageID int) *Product {
	description := ""
	if len(p.Description) > 0 {
		description = p.Description[0]
	}

	return &Product{
		IDManufacturer:    manufacturerID,
		IDCategoryDefault: categoryID,
		Active:            1,
		Price:             decimal.NewFromFloat(p.Price).StringFixed(6),
		Visibility:        "both",
		Name:              Text(languageID, p.Name),
		DescriptionShort:  Text(languageID, truncateRunes(description, shortDescriptionSize)),
		Description:       Text(languageID, description),
		LinkRewrite:       Text(languageID, Slugify(p.Name)),
		Associations: &ProductAssociations{
			Categories: []IDRef{{ID: categoryID}},
		},
	}
}

func (p *Product) Kind() domain.EntityKind { return domain.EntityProduct }

func (p *Product) Validate() error {
	switch {
	case p.Name.Value(0) == "":
		return invalid("product", "without name")
	case p.IDCategoryDefault <= 0:
		return invalid("product", "without category id")
	case p.IDManufacturer <= 0:
		return invalid("product", "without manufacturer id")
	case p.LinkRewrite.Value(0) == "":
		return invalid("product", "without link_rewrite")
	}
	price, err := decimal.NewFromString(p.Price)
	if err != nil || price.IsNegative() {
		return invalid("product", "with price "+strconv.Quote(p.Price))
	}
	return nil
}

// WeightUpdate builds the partial product PUT that changes only the weight,
// carrying the fields the webservice insists on.
func (p *Product) WeightUpdate(weight decimal.Decimal) *ProductWeight {
	return &ProductWeight{
		ID:              p.ID,
		Price:           p.Price,
		IDTaxRulesGroup: p.IDTaxRulesGroup,
		Weight:          weight.StringFixed(2),
		Name:            p.Name,
		LinkRewrite:     p.LinkRewrite,
	}
}

type ProductWeight struct {
	XMLName         xml.Name `xml:"product"`
	ID              int      `xml:"id"`
	Price           string   `xml:"price"`
	IDTaxRulesGroup int      `xml:"id_tax_rules_group"`
	Weight          string   `xml:"weight"`
	Name            LangText `xml:"name"`
	LinkRewrite     LangText `xml:"link_rewrite"`
}

func (w *ProductWeight) Kind() domain.EntityKind { return domain.EntityProduct }

func (w *ProductWeight) Validate() error {
	switch {
	case w.ID <= 0:
		return invalid("product weight", "without product id")
	case w.Name.Value(0) == "":
		return invalid("product weight", "without name")
	}
	weight, err := decimal.NewFromString(w.Weight)
	if err != nil || weight.IsNegative() {
		return invalid("product weight", "with weight "+strconv.Quote(w.Weight))
	}
	return nil
}

// StockAvailable carries every field of the stock resource so a PUT keeps
// the values it does not mean to change.
type StockAvailable struct {
	XMLName            xml.Name `xml:"stock_available"`
	ID                 int      `xml:"id"`
	IDProduct          int      `xml:"id_product"`
	IDProductAttribute int      `xml:"id_product_attribute"`
	IDShop             int      `xml:"id_shop"`
	IDShopGroup        int      `xml:"id_shop_group"`
	Quantity           int      `xml:"quantity"`
	DependsOnStock     int      `xml:"depends_on_stock"`
	OutOfStock         int      `xml:"out_of_stock"`
	Location           string   `xml:"location"`
}

func (s *StockAvailable) Kind() domain.EntityKind { return domain.EntityStock }

func (s *StockAvailable) Validate() error {
	switch {
	case s.ID <= 0:
		return invalid("stock_available", "without id")
	case s.IDProduct <= 0:
		return invalid("stock_available", "without product id")
	case s.Quantity < 0:
		return invalid("stock_available", "with negative quantity")
	}
	return nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
