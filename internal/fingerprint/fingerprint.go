package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
)

// sep joins the normalized components before hashing. A control character
// cannot survive any of the normalizers, so components can never contain it.
const sep = "\x1f"

// Components holds the raw attribute values a fingerprint is derived from.
type Components struct {
	Name       string
	Street     string
	City       string
	PostalCode string
	Phone      string
	Website    string
}

// Fingerprint computes the stable 16-hex-character identity key for a
// business. Missing fields normalize to empty strings and still participate
// in the digest, so two incomplete records of different businesses never
// collide merely because both are missing the same fields.
func Fingerprint(c Components) string {
	if strings.TrimSpace(c.Name) == "" {
		zap.L().Warn("fingerprinting record with empty name")
	}

	parts := []string{
		NormalizeName(c.Name),
		StreetNumber(c.Street),
		NormalizeStreet(c.Street),
		NormalizeCity(c.City),
		NormalizePostal(c.PostalCode),
		NormalizePhone(c.Phone),
		NormalizeDomain(c.Website),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, sep)))
	return hex.EncodeToString(sum[:])[:16]
}

// FromRecord computes the fingerprint of a raw record.
func FromRecord(r model.RawRecord) string {
	return Fingerprint(Components{
		Name:       r.Name,
		Street:     r.Street,
		City:       r.City,
		PostalCode: r.PostalCode,
		Phone:      r.Phone,
		Website:    r.Website,
	})
}

// AreDuplicates reports whether two records describe the same business.
// Exact fingerprint equality always matches. When strict is false, records
// with differing fingerprints still match if their normalized names and
// cities agree and either the civic street number or the ten-digit phone
// agrees — this catches records missing an address but sharing a phone, and
// keeps chain locations in the same city apart when both anchors differ.
func AreDuplicates(a, b model.RawRecord, strict bool) bool {
	if FromRecord(a) == FromRecord(b) {
		return true
	}
	if strict {
		return false
	}

	if NormalizeName(a.Name) == "" || NormalizeCity(a.City) == "" {
		return false
	}
	if NormalizeName(a.Name) != NormalizeName(b.Name) {
		return false
	}
	if NormalizeCity(a.City) != NormalizeCity(b.City) {
		return false
	}

	numA, numB := StreetNumber(a.Street), StreetNumber(b.Street)
	if numA != "" && numA == numB {
		return true
	}
	phoneA, phoneB := NormalizePhone(a.Phone), NormalizePhone(b.Phone)
	return phoneA != "" && phoneA == phoneB
}
