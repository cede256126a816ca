// Package textutil holds the small regex-based text helpers used on raw and
// rendered page sources: cutting out the <body>, splitting it into lines,
// truncating scraped descriptions and turning split price parts into a
// number.
package textutil

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrNoBody is returned when a document has no <body>...</body> section.
var ErrNoBody = errors.New("no <body> element found")

var (
	// bodyRegex spans newlines; attributes on <body> are allowed.
	bodyRegex = regexp.MustCompile(`(?is)<body\b[^>]*>.+</body>`)

	// lineRegex matches each non-empty line.
	lineRegex = regexp.MustCompile(`.+`)
)

// Body returns the first <body ...>...</body> section of html, tags included.
func Body(html string) (string, error) {
	body := bodyRegex.FindString(html)
	if body == "" {
		return "", ErrNoBody
	}
	return body, nil
}

// Lines returns every non-empty line of s.
func Lines(s string) []string {
	return lineRegex.FindAllString(s, -1)
}

// BodyLines returns the first n non-empty lines of the document body.
// n <= 0 returns all lines; fewer than n lines returns what exists.
func BodyLines(html string, n int) ([]string, error) {
	body, err := Body(html)
	if err != nil {
		return nil, err
	}
	lines := Lines(body)
	if n > 0 && n < len(lines) {
		lines = lines[:n]
	}
	return lines, nil
}

// Truncate returns at most n runes of s. n <= 0 returns s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// nonDigits strips everything but digits from a price part.
var nonDigits = regexp.MustCompile(`[^0-9]`)

// ParsePrice combines the whole and fraction parts of a displayed price,
// for example "1,299." and "99" into 1299.99. Currency symbols, thousands
// separators and the trailing decimal point of the whole part are ignored.
// ok is false when there is no whole part.
func ParsePrice(whole, fraction string) (price float64, ok bool) {
	whole = strings.TrimSpace(whole)
	if whole == "" {
		return 0, false
	}
	// Anything after a decimal point in the whole part is dropped; the
	// fraction is read from its own element.
	if i := strings.IndexAny(whole, ".\n"); i >= 0 {
		whole = whole[:i]
	}
	digits := nonDigits.ReplaceAllString(whole, "")
	if digits == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}

	frac := nonDigits.ReplaceAllString(fraction, "")
	if frac != "" {
		f, err := strconv.ParseFloat("0."+frac, 64)
		if err == nil {
			v += f
		}
	}
	return v, true
}

// FormatPrice renders a parsed price with two decimals, or "" when ok is
// false.
func FormatPrice(price float64, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatFloat(price, 'f', 2, 64)
}
