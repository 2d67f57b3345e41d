package assets

import (
	"fmt"
	"strings"
)

var forbiddenReplacer = strings.NewReplacer(
	`\`, "_",
	"/", "_",
	"*", "_",
	"?", "_",
	":", "_",
	`"`, "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SanitizeFilename replaces every character that is not allowed in a file
// name on common filesystems with an underscore.
func SanitizeFilename(name string) string {
	return forbiddenReplacer.Replace(name)
}

// ImageName builds the stored name of a product image variant.
func ImageName(variant, productName string, index int) string {
	return fmt.Sprintf("%s_%s_%d.jpg", variant, SanitizeFilename(productName), index)
}
