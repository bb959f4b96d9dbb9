// Package schema translates source custom-field definitions and record values
// into destination property definitions and property values.
package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	maxPropertyNameLen   = 50
	maxNamespacedNameLen = 100
	maxOptionValueLen    = 100

	fallbackPropertyName = "custom"
	fallbackOptionValue  = "option"
)

// PropertyNameFromLabel converts a label to a destination property name.
// Rules:
// - Always lower-case, diacritics folded to their base letter
// - Any run of characters outside [a-z0-9] becomes a single underscore
// - Leading/trailing underscores removed
// - Max length: 50 bytes
// - Empty result falls back to "custom"
func PropertyNameFromLabel(label string) string {
	return slugify(label, maxPropertyNameLen, fallbackPropertyName)
}

// NamespacedPropertyName prefixes a label with a namespace and slugs the
// result with the longer 100 byte cap.
func NamespacedPropertyName(namespace, label string) string {
	if namespace == "" {
		return slugify(label, maxNamespacedNameLen, fallbackPropertyName)
	}
	return slugify(namespace+"_"+label, maxNamespacedNameLen, fallbackPropertyName)
}

// OptionValue converts an enumeration option label to its internal value
func OptionValue(label string) string {
	return slugify(label, maxOptionValueLen, fallbackOptionValue)
}

func slugify(s string, maxLen int, fallback string) string {
	s = strings.ToLower(foldDiacritics(s))

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	out := b.String()
	if len(out) > maxLen {
		out = strings.TrimRight(out[:maxLen], "_")
	}
	if out == "" {
		return fallback
	}
	return out
}

// foldDiacritics decomposes to NFD and drops combining marks so "é" slugs as "e"
func foldDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
