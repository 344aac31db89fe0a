// Package consensus reconciles every raw record that collapsed onto one
// fingerprint into a single canonical entity. Field values are resolved by
// majority vote over their normalized forms; disagreements become
// human-readable validation issues and lower the entity's confidence rather
// than blocking output.
package consensus

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/prospector/internal/fingerprint"
	"github.com/sells-group/prospector/internal/model"
)

const (
	singleSourceConfidence = 0.6
	issuePenalty           = 0.15
	threeSourceBonus       = 0.20
	twoSourceBonus         = 0.10
	completenessBonus      = 0.10
	completenessSlots      = 6
)

// candidate is one distinct normalized value of a field, with the first raw
// spelling seen for display and its vote count.
type candidate struct {
	raw   string
	count int
	first int // arrival index of the first record carrying this value
}

// Validate reduces an entity group to one resolved entity. It never fails:
// conflicts are reported as issues, not errors.
func Validate(group model.EntityGroup) model.ResolvedEntity {
	sources := group.Sources()

	if len(group.Records) == 1 {
		r := group.Records[0]
		return model.ResolvedEntity{
			Name:                 r.Name,
			Street:               r.Street,
			City:                 r.City,
			Province:             r.Province,
			PostalCode:           r.PostalCode,
			Phone:                r.Phone,
			Website:              r.Website,
			Industry:             r.Industry,
			Fingerprint:          group.Fingerprint,
			SourceCount:          1,
			DataSources:          sources,
			ValidationConfidence: singleSourceConfidence,
		}
	}

	var issues []string

	name, _ := vote(group.Records,
		func(r model.RawRecord) string { return r.Name },
		fingerprint.NormalizeName)
	street, streetCands := vote(group.Records,
		func(r model.RawRecord) string { return r.Street },
		normalizeAddress)
	phone, phoneCands := vote(group.Records,
		func(r model.RawRecord) string { return r.Phone },
		fingerprint.NormalizePhone)
	website, siteCands := vote(group.Records,
		func(r model.RawRecord) string { return r.Website },
		fingerprint.NormalizeDomain)
	industry, indCands := vote(group.Records,
		func(r model.RawRecord) string { return r.Industry },
		normalizeIndustry)
	city, _ := vote(group.Records,
		func(r model.RawRecord) string { return r.City },
		fingerprint.NormalizeCity)
	province, _ := vote(group.Records,
		func(r model.RawRecord) string { return r.Province },
		func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) })
	postal, _ := vote(group.Records,
		func(r model.RawRecord) string { return r.PostalCode },
		fingerprint.NormalizePostal)

	if len(streetCands) > 1 {
		issues = append(issues, conflictIssue("Address conflict", streetCands))
	}
	if len(phoneCands) > 1 {
		issues = append(issues, conflictIssue("Phone conflict", phoneCands))
	}
	if len(siteCands) > 1 {
		// Two live domains under one fingerprint usually means a false merge
		// or a franchise location mismatch.
		issues = append(issues, "CRITICAL: "+conflictIssue("Website conflict", siteCands))
	}
	if len(indCands) > 1 {
		issues = append(issues, conflictIssue("Industry conflict", indCands))
	}

	if issue := nameConsistencyIssue(group.Records); issue != "" {
		issues = append(issues, issue)
	}

	confidence := 1.0 - issuePenalty*float64(len(issues))
	switch {
	case len(sources) >= 3:
		confidence += threeSourceBonus
	case len(sources) == 2:
		confidence += twoSourceBonus
	}
	if completeness(group.Records) >= completenessSlots {
		confidence += completenessBonus
	}
	confidence = clamp01(confidence)

	return model.ResolvedEntity{
		Name:                 name,
		Street:               street,
		City:                 city,
		Province:             province,
		PostalCode:           postal,
		Phone:                phone,
		Website:              website,
		Industry:             industry,
		Fingerprint:          group.Fingerprint,
		SourceCount:          len(sources),
		DataSources:          sources,
		ValidationConfidence: confidence,
		ValidationIssues:     issues,
	}
}

// vote tallies the normalized values of one field across the group and
// returns the representative raw value of the winner plus all distinct
// candidates, ordered by count descending with first-seen breaking ties.
// Empty values do not vote and never count as conflicts.
func vote(records []model.RawRecord, get func(model.RawRecord) string, norm func(string) string) (string, []candidate) {
	byKey := make(map[string]*candidate)
	var order []string

	for i, r := range records {
		raw := strings.TrimSpace(get(r))
		key := norm(raw)
		if key == "" {
			continue
		}
		if c, ok := byKey[key]; ok {
			c.count++
			continue
		}
		byKey[key] = &candidate{raw: raw, count: 1, first: i}
		order = append(order, key)
	}

	cands := make([]candidate, 0, len(order))
	for _, key := range order {
		cands = append(cands, *byKey[key])
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].count != cands[j].count {
			return cands[i].count > cands[j].count
		}
		return cands[i].first < cands[j].first
	})

	if len(cands) == 0 {
		return "", nil
	}
	return cands[0].raw, cands
}

func conflictIssue(label string, cands []candidate) string {
	parts := make([]string, len(cands))
	for i, c := range cands {
		parts[i] = fmt.Sprintf("%s (%dx)", c.raw, c.count)
	}
	return label + ": " + strings.Join(parts, ", ")
}

// nameConsistencyIssue flags records whose normalized name differs from the
// group's most common normalized name. One issue lists every outlier.
func nameConsistencyIssue(records []model.RawRecord) string {
	_, cands := vote(records,
		func(r model.RawRecord) string { return r.Name },
		fingerprint.NormalizeName)
	if len(cands) < 2 {
		return ""
	}

	winner := fingerprint.NormalizeName(cands[0].raw)
	var outliers []string
	for i, r := range records {
		if fingerprint.NormalizeName(r.Name) != winner {
			outliers = append(outliers, fmt.Sprintf("#%d %s=%q", i, r.SourceID, r.Name))
		}
	}
	return fmt.Sprintf("Name mismatch with consensus %q: %s", cands[0].raw, strings.Join(outliers, ", "))
}

// completeness counts non-empty (record, field) slots over the three
// corroborating fields: website, phone, and street address.
func completeness(records []model.RawRecord) int {
	n := 0
	for _, r := range records {
		if strings.TrimSpace(r.Website) != "" {
			n++
		}
		if strings.TrimSpace(r.Phone) != "" {
			n++
		}
		if strings.TrimSpace(r.Street) != "" {
			n++
		}
	}
	return n
}

// normalizeAddress keys an address on civic number plus normalized street
// name, so "123 Main St" and "123 Main Street" vote together.
func normalizeAddress(street string) string {
	return strings.TrimSpace(fingerprint.StreetNumber(street) + " " + fingerprint.NormalizeStreet(street))
}

func normalizeIndustry(industry string) string {
	return strings.ToLower(strings.TrimSpace(industry))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
