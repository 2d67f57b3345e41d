package domain

// ListingPage is one page of a category's product listing.
type ListingPage struct {
	Number       int      `json:"number"`
	TotalPages   int      `json:"total_pages"` // as reported by the pager
	Articles     int      `json:"articles"`    // product tiles found on the page
	ProductLinks []string `json:"product_links"`
	NotFound     bool     `json:"not_found"`
}

// GalleryImage holds the two captured resolutions of one gallery entry.
type GalleryImage struct {
	Large   string `json:"large"`
	Default string `json:"default"`
}
