// Package fingerprint normalizes noisy business attributes and derives a
// stable identity key from them. Everything here is pure and deterministic:
// two independently scraped records of the same real business should
// normalize to identical field values even when punctuation, legal suffixes,
// or formatting differ.
package fingerprint

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are corporate suffix tokens stripped from business names as
// whole-word matches. A trailing "s" on a token also matches (holding vs
// holdings, enterprise vs enterprises).
var legalSuffixes = map[string]bool{
	"inc":           true,
	"ltd":           true,
	"limited":       true,
	"corp":          true,
	"corporation":   true,
	"llc":           true,
	"incorporated":  true,
	"co":            true,
	"company":       true,
	"enterprise":    true,
	"enterprises":   true,
	"group":         true,
	"holding":       true,
	"holdings":      true,
	"international": true,
}

// directionTokens are compass words and abbreviations stripped from streets.
var directionTokens = map[string]bool{
	"north": true, "south": true, "east": true, "west": true,
	"n": true, "s": true, "e": true, "w": true,
	"ne": true, "nw": true, "se": true, "sw": true,
}

// streetTypeTokens are street-type words and abbreviations stripped from
// streets so "123 Main St" and "123 Main Street" normalize identically.
var streetTypeTokens = map[string]bool{
	"street": true, "st": true,
	"avenue": true, "ave": true, "av": true,
	"road": true, "rd": true,
	"drive": true, "dr": true,
	"boulevard": true, "blvd": true,
	"lane": true, "ln": true,
	"court": true, "ct": true,
	"place": true, "pl": true,
	"crescent": true, "cres": true,
	"circle": true, "cir": true,
	"way": true, "terrace": true, "ter": true,
	"parkway": true, "pkwy": true,
	"highway": true, "hwy": true,
	"trail": true, "trl": true,
	"square": true, "sq": true,
}

// unitTokens mark unit or suite designators; the token and any digits that
// follow it are dropped.
var unitTokens = map[string]bool{
	"unit": true, "suite": true, "ste": true, "apt": true, "apartment": true,
	"floor": true, "fl": true, "#": true, "no": true,
}

var (
	leadingNumberRe = regexp.MustCompile(`^(\d+)`)
	nonDigitRe      = regexp.MustCompile(`\D`)
)

// foldTransformer strips combining marks after NFD decomposition, turning
// "Café Montréal" into "Cafe Montreal". Scraped directory data mixes accented
// and plain spellings of the same business constantly.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldDiacritics(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return out
}

// stripPunct replaces every rune that is not a letter, digit, or space with
// a space, so punctuation never glues words together.
func stripPunct(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// NormalizeName canonicalizes a business name: lowercase, diacritics folded,
// " and "/" & " collapsed to a word break, punctuation stripped, legal
// suffixes removed as whole words, whitespace collapsed.
func NormalizeName(name string) string {
	s := foldDiacritics(strings.ToLower(strings.TrimSpace(name)))
	s = strings.ReplaceAll(s, " & ", " ")
	s = strings.ReplaceAll(s, " and ", " ")
	s = stripPunct(s)

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if legalSuffixes[w] || legalSuffixes[strings.TrimSuffix(w, "s")] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// StreetNumber extracts the leading civic number from a street line, or ""
// when the line does not start with digits.
func StreetNumber(street string) string {
	return leadingNumberRe.FindString(strings.TrimSpace(street))
}

// NormalizeStreet canonicalizes the street-name portion of an address line:
// lowercase, punctuation stripped, directional and street-type tokens
// removed, unit/suite markers removed, and all digit runs dropped (the civic
// number is captured separately by StreetNumber).
func NormalizeStreet(street string) string {
	s := foldDiacritics(strings.ToLower(strings.TrimSpace(street)))
	s = stripPunct(s)

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		// Strip digits first: pure-number tokens (civic number, unit
		// remnants like "12b") vanish or shrink to their letter part.
		w = strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) {
				return -1
			}
			return r
		}, w)
		if w == "" {
			continue
		}
		if directionTokens[w] || streetTypeTokens[w] || unitTokens[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// NormalizeCity lowercases and trims a city name.
func NormalizeCity(city string) string {
	return strings.Join(strings.Fields(foldDiacritics(strings.ToLower(city))), " ")
}

// NormalizePostal uppercases, removes spaces, and keeps the first three
// characters — the forward sortation area for Canadian codes, the ZIP prefix
// for US ones. The prefix survives the inconsistent spacing scrapers produce.
func NormalizePostal(postal string) string {
	s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(postal), " ", ""))
	if len(s) > 3 {
		s = s[:3]
	}
	return s
}

// NormalizePhone reduces a phone number to its last ten digits, dropping a
// leading country code 1.
func NormalizePhone(phone string) string {
	digits := nonDigitRe.ReplaceAllString(phone, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}

// NormalizeDomain reduces a website URL to its bare domain: lowercase, no
// protocol, no www prefix, no path, port, or query.
func NormalizeDomain(website string) string {
	s := strings.ToLower(strings.TrimSpace(website))
	for _, prefix := range []string{"https://", "http://", "//"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	s = strings.TrimPrefix(s, "www.")
	for _, cut := range []string{"/", "?", "#", ":"} {
		if i := strings.Index(s, cut); i >= 0 {
			s = s[:i]
		}
	}
	return s
}
