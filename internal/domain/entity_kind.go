package domain

import "fmt"

// EntityKind names a remote resource collection.
type EntityKind string

func (k EntityKind) String() string {
	return string(k)
}

const (
	EntityCategory     EntityKind = "categories"
	EntityManufacturer EntityKind = "manufacturers"
	EntityProduct      EntityKind = "products"
	EntityStock        EntityKind = "stock_availables"
)

// TeardownKinds are the kinds that can be bulk-deleted, in safe deletion order.
var TeardownKinds = []EntityKind{
	EntityProduct,
	EntityManufacturer,
	EntityCategory,
}

func ParseEntityKind(s string) (EntityKind, error) {
	switch EntityKind(s) {
	case EntityCategory, EntityManufacturer, EntityProduct:
		return EntityKind(s), nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
}
