package client

import (
	"errors"
	"fmt"
)

// ErrPageNotFound is returned for listing pages the storefront answers with 404.
var ErrPageNotFound = errors.New("page not found")

// StructureError means a structural element every page is expected to have is
// missing. The markup changed or the storefront is down; crawling cannot go on.
type StructureError struct {
	Selector string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("storefront structure missing: %s", e.Selector)
}

// ExtractionError means a required product field could not be read.
type ExtractionError struct {
	Field      string
	SourceLink string
	Err        error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to extract %s from %s: %v", e.Field, e.SourceLink, e.Err)
	}
	return fmt.Sprintf("failed to extract %s from %s", e.Field, e.SourceLink)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
