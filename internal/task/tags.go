package task

import (
	"fmt"
	"sort"
	"strings"
)

const (
	maxTagLength   = 64
	maxTagsPerTask = 20
)

// NormalizeTag trims whitespace and lowercases a tag string.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeTags normalizes tags, drops empties and duplicates, and returns
// them sorted. Tag order carries no meaning, so a sorted set keeps record
// files stable across rewrites.
func NormalizeTags(tags []string) []string {
	result := deduplicateStrings(tags, NormalizeTag)
	sort.Strings(result)
	return result
}

// ValidateTag checks that a single normalized tag is non-empty, bounded in
// length, and free of separators.
func ValidateTag(tag string) error {
	if tag == "" {
		return &ValidationError{Field: "tags", Reason: "tag cannot be empty"}
	}
	if len(tag) > maxTagLength {
		return &ValidationError{Field: "tags", Reason: fmt.Sprintf("tag %q exceeds maximum length of %d characters", tag, maxTagLength)}
	}
	if strings.ContainsAny(tag, ",\n\r") {
		return &ValidationError{Field: "tags", Reason: fmt.Sprintf("tag %q must not contain commas or newlines", tag)}
	}
	return nil
}

// ValidateTags validates each tag and checks the per-task count.
func ValidateTags(tags []string) error {
	for _, tag := range tags {
		if err := ValidateTag(tag); err != nil {
			return err
		}
	}
	if len(tags) > maxTagsPerTask {
		return &ValidationError{Field: "tags", Reason: fmt.Sprintf("too many tags: %d exceeds maximum of %d per task", len(tags), maxTagsPerTask)}
	}
	return nil
}

// HasTag reports whether the task carries the normalized form of tag.
func (t *Task) HasTag(tag string) bool {
	want := NormalizeTag(tag)
	for _, have := range t.Tags {
		if have == want {
			return true
		}
	}
	return false
}

// deduplicateStrings normalizes each item, filters empties, and returns
// unique items in first-occurrence order.
func deduplicateStrings(items []string, normalize func(string) string) []string {
	seen := make(map[string]bool, len(items))
	var result []string
	for _, item := range items {
		normalized := normalize(item)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		result = append(result, normalized)
	}
	return result
}
