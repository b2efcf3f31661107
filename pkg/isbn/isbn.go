// Package isbn finds ISBNs in OCR output.
package isbn

import (
	"regexp"
	"strings"
	"unicode"
)

var candidateRegex = regexp.MustCompile(`(ISBN[-]*(1[03])*[ ]*(: ){0,1})*(([0-9Xx][- ]*){13}|([0-9Xx][- ]*){10})`)

// FindCandidates returns every substring of text that looks like an ISBN, in
// order of appearance.
func FindCandidates(text string) []string {
	matches := candidateRegex.FindAllString(text, -1)
	candidates := make([]string, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, strings.TrimSpace(m))
	}
	return candidates
}

// Normalize removes hyphens, spaces, and the ISBN prefix.
func Normalize(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if rest, ok := strings.CutPrefix(value, "ISBN"); ok {
		rest = strings.TrimLeft(rest, "-")
		if strings.HasPrefix(rest, "10") || strings.HasPrefix(rest, "13") {
			rest = rest[2:]
		}
		value = rest
	}

	var result strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) || r == 'X' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Valid reports whether a normalized value carries a correct ISBN-10 or
// ISBN-13 checksum.
func Valid(isbn string) bool {
	switch len(isbn) {
	case 10:
		return validISBN10(isbn)
	case 13:
		return validISBN13(isbn)
	default:
		return false
	}
}

// Extract returns the normalized, de-duplicated ISBNs found in text. Values
// with a valid checksum come first; OCR noise often breaks the checksum, so
// the others are still returned after them.
func Extract(text string) []string {
	seen := map[string]bool{}
	var valid, invalid []string
	for _, c := range FindCandidates(text) {
		n := Normalize(c)
		if (len(n) != 10 && len(n) != 13) || seen[n] {
			continue
		}
		seen[n] = true
		if Valid(n) {
			valid = append(valid, n)
		} else {
			invalid = append(invalid, n)
		}
	}
	return append(valid, invalid...)
}

// ISBN-10 uses modulo 11 with weights 10,9,8,7,6,5,4,3,2,1.
func validISBN10(isbn string) bool {
	var sum int
	for i, r := range isbn {
		var digit int
		switch {
		case r == 'X':
			if i != 9 {
				return false
			}
			digit = 10
		case unicode.IsDigit(r):
			digit = int(r - '0')
		default:
			return false
		}
		sum += digit * (10 - i)
	}
	return sum%11 == 0
}

// ISBN-13 uses alternating weights of 1 and 3.
func validISBN13(isbn string) bool {
	var sum int
	for i, r := range isbn {
		if !unicode.IsDigit(r) {
			return false
		}
		digit := int(r - '0')
		if i%2 == 0 {
			sum += digit
		} else {
			sum += digit * 3
		}
	}
	return sum%10 == 0
}
