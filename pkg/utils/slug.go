package utils

import (
	"github.com/gosimple/slug"
)

// NormalizeSlug creates a URL-friendly slug using the gosimple/slug library
// This handles all Unicode characters including accented and non-Latin names
func NormalizeSlug(text string) string {
	if text == "" {
		return ""
	}

	return slug.Make(text)
}

// JobSlug creates a stable slug for a job name, used as a log and
// metric key across dispatches.
func JobSlug(name string) string {
	if name == "" {
		return "job"
	}
	return NormalizeSlug(name)
}
