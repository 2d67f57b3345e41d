package domain

// Category is a storefront menu entry. The tree has two levels: top-level
// entries and their subcategories.
type Category struct {
	Name       string     `json:"name"`
	Link       string     `json:"link"`
	ParentName string     `json:"-"` // lookup key of the parent, empty for top-level
	Children   []Category `json:"subcategories"`
}

// IsLeaf reports whether the category has no subcategories.
func (c Category) IsLeaf() bool {
	return len(c.Children) == 0
}

// Leaves returns the categories products are listed under: every subcategory,
// plus top-level categories that have none.
func Leaves(tree []Category) []Category {
	leaves := make([]Category, 0, len(tree))
	for _, top := range tree {
		if top.IsLeaf() {
			leaves = append(leaves, top)
			continue
		}
		leaves = append(leaves, top.Children...)
	}
	return leaves
}

// AttachParents fills ParentName on every child from its owning node.
// Interchange files do not carry the back-reference.
func AttachParents(tree []Category) {
	for i := range tree {
		tree[i].ParentName = ""
		for j := range tree[i].Children {
			tree[i].Children[j].ParentName = tree[i].Name
		}
	}
}
