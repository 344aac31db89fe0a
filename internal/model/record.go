// Package model defines the shared record types flowing through the
// aggregation engine: raw per-source observations, fingerprint groups,
// and resolved canonical entities.
package model

// RawRecord is a single observation of a business reported by exactly one
// source adapter. Records are immutable once produced; the orchestrator
// consumes each record exactly once.
type RawRecord struct {
	Name       string         `json:"name"`
	Street     string         `json:"street,omitempty"`
	City       string         `json:"city,omitempty"`
	Province   string         `json:"province,omitempty"`
	PostalCode string         `json:"postal_code,omitempty"`
	Phone      string         `json:"phone,omitempty"`
	Website    string         `json:"website,omitempty"`
	Email      string         `json:"email,omitempty"`
	Industry   string         `json:"industry,omitempty"`
	SourceID   string         `json:"source_id"`
	Confidence float64        `json:"confidence"`
	Raw        map[string]any `json:"raw,omitempty"`
}

// EntityGroup collects every raw record that resolved (exactly or fuzzily)
// to the same identity. Records keep arrival order across sources. Groups
// live only for the duration of a run; consensus output replaces them.
type EntityGroup struct {
	Fingerprint string      `json:"fingerprint"`
	Records     []RawRecord `json:"records"`
}

// Add appends a record to the group, preserving arrival order.
func (g *EntityGroup) Add(r RawRecord) {
	g.Records = append(g.Records, r)
}

// ResolvedEntity is the output unit of the engine: one canonical business
// assembled by cross-source consensus.
type ResolvedEntity struct {
	Name       string `json:"name"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Website    string `json:"website,omitempty"`
	Industry   string `json:"industry,omitempty"`

	Fingerprint          string   `json:"fingerprint"`
	SourceCount          int      `json:"source_count"`
	DataSources          []string `json:"data_sources"`
	ValidationConfidence float64  `json:"validation_confidence"`
	ValidationIssues     []string `json:"validation_issues,omitempty"`
}

// Sources returns the distinct source IDs present in the group, in
// first-seen order. SourceCount on the resolved entity always equals the
// length of this set.
func (g *EntityGroup) Sources() []string {
	seen := make(map[string]bool, len(g.Records))
	var out []string
	for _, r := range g.Records {
		if !seen[r.SourceID] {
			seen[r.SourceID] = true
			out = append(out, r.SourceID)
		}
	}
	return out
}
