package source

import (
	"context"
	"strings"

	"github.com/sells-group/prospector/internal/model"
)

// StaticAdapter serves a fixed record list as a prioritized source. Curated
// seed lists enter the engine through this type instead of being
// special-cased in the orchestrator.
type StaticAdapter struct {
	name     string
	priority int
	records  []model.RawRecord
}

// NewStaticAdapter wraps a record slice as an adapter. The adapter stamps
// its own name as SourceID on every record it returns.
func NewStaticAdapter(name string, priority int, records []model.RawRecord) *StaticAdapter {
	return &StaticAdapter{name: name, priority: priority, records: records}
}

// Name implements Adapter.
func (s *StaticAdapter) Name() string { return s.name }

// Priority implements Adapter.
func (s *StaticAdapter) Priority() int { return s.priority }

// ValidateConfig implements Adapter; a static list is usable when non-empty.
func (s *StaticAdapter) ValidateConfig() bool { return len(s.records) > 0 }

// IsAvailable implements Adapter.
func (s *StaticAdapter) IsAvailable() bool { return s.ValidateConfig() }

// FetchBusinesses returns the stored records matching the query, up to
// MaxResults. Records without a city or industry pass the corresponding
// filter: a seed list entry is not dropped for being incomplete.
func (s *StaticAdapter) FetchBusinesses(_ context.Context, q Query) ([]model.RawRecord, error) {
	var out []model.RawRecord
	for _, r := range s.records {
		if !matchesLocation(r, q.Location) || !matchesIndustry(r, q.Industry) {
			continue
		}
		r.SourceID = s.name
		if r.Confidence == 0 {
			r.Confidence = 0.9 // curated data, high self-reported trust
		}
		out = append(out, r)
		if q.MaxResults > 0 && len(out) >= q.MaxResults {
			break
		}
	}
	return out, nil
}

func matchesLocation(r model.RawRecord, location string) bool {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return true
	}
	city := strings.ToLower(strings.TrimSpace(r.City))
	province := strings.ToLower(strings.TrimSpace(r.Province))
	if city == "" && province == "" {
		return true
	}
	// "Hamilton", "Hamilton, ON", and "ON" all select a Hamilton, ON record.
	if city != "" && strings.Contains(loc, city) {
		return true
	}
	return province != "" && strings.Contains(loc, province)
}

func matchesIndustry(r model.RawRecord, industry string) bool {
	want := strings.ToLower(strings.TrimSpace(industry))
	if want == "" || r.Industry == "" {
		return true
	}
	return strings.ToLower(r.Industry) == want
}
