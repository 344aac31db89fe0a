package aggregate

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/fingerprint"
	"github.com/sells-group/prospector/internal/model"
)

// dedupIndex groups incoming records by identity. It is created per run and
// discarded with it. Only the orchestrator mutates the index; in the default
// sequential mode no locking is needed, and the concurrent mode serializes
// access with its own mutex.
type dedupIndex struct {
	strict bool
	byFP   map[string]*model.EntityGroup
	groups []*model.EntityGroup // insertion order = discovery order
}

func newDedupIndex(strict bool) *dedupIndex {
	return &dedupIndex{
		strict: strict,
		byFP:   make(map[string]*model.EntityGroup),
	}
}

// insert routes a record to its entity group, creating one when the record
// is a new identity. Returns true for new identities. Records without a
// name cannot be grouped and are dropped with a warning.
func (ix *dedupIndex) insert(r model.RawRecord) bool {
	if strings.TrimSpace(r.Name) == "" {
		zap.L().Warn("dropping record without name",
			zap.String("source", r.SourceID),
		)
		return false
	}

	fp := fingerprint.FromRecord(r)
	if g, ok := ix.byFP[fp]; ok {
		g.Add(r)
		return false
	}

	if !ix.strict {
		// Fuzzy fallback for records too sparse to fingerprint identically:
		// compare against each group's first record, the one whose
		// fingerprint named the group.
		for _, g := range ix.groups {
			if fingerprint.AreDuplicates(g.Records[0], r, false) {
				g.Add(r)
				return false
			}
		}
	}

	g := &model.EntityGroup{Fingerprint: fp}
	g.Add(r)
	ix.byFP[fp] = g
	ix.groups = append(ix.groups, g)
	return true
}

// unique returns the number of distinct identities seen so far.
func (ix *dedupIndex) unique() int { return len(ix.groups) }
