package normalize

import "strings"

// waLinkPrefix builds the deep link rendered next to each normalized number.
const waLinkPrefix = "https://wa.me/"

func isPhoneSeparator(r rune) bool {
	switch r {
	case ',', '/', '|', ';', '\n', '\r':
		return true
	}
	return false
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SplitPhoneNumbers splits a raw multi-number phone cell on the separators
// suppliers actually use (comma, slash, pipe, semicolon, newline), strips
// everything but digits, and prefixes defaultCC when the remaining digits
// look like a local number without a country code. Duplicates are dropped
// while preserving first-seen order. The second slice holds one wa.me deep
// link per normalized number, index-aligned with the first.
func SplitPhoneNumbers(raw, defaultCC string) (numbers, links []string) {
	seen := make(map[string]struct{})
	for _, part := range strings.FieldsFunc(raw, isPhoneSeparator) {
		digits := digitsOnly(part)
		if digits == "" {
			continue
		}
		// A ten-digit string is a local number; anything longer is assumed
		// to already carry its country code.
		if len(digits) == 10 && defaultCC != "" && !strings.HasPrefix(digits, defaultCC) {
			digits = defaultCC + digits
		}
		if _, dup := seen[digits]; dup {
			continue
		}
		seen[digits] = struct{}{}
		numbers = append(numbers, digits)
		links = append(links, waLinkPrefix+digits)
	}
	return numbers, links
}

// MergePhoneNumbers unions already-normalized number/link pairs while
// preserving first-seen order, used when aggregating products of the same
// supplier into one result row.
func MergePhoneNumbers(numbers, links, addNumbers, addLinks []string) ([]string, []string) {
	seen := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		seen[n] = struct{}{}
	}
	for i, n := range addNumbers {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
		if i < len(addLinks) {
			links = append(links, addLinks[i])
		}
	}
	return numbers, links
}
