package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/prospector/internal/aggregate"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/monitoring"
)

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("12345678-abcd-efgh"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestFormatRunsList(t *testing.T) {
	var sb strings.Builder
	formatRunsList(&sb, []aggregate.RunSummary{
		{
			RunID:          "aaaaaaaa-1111-2222",
			Location:       "Hamilton, ON",
			Industry:       "manufacturing",
			TargetCount:    25,
			UniqueEntities: 31,
			Returned:       25,
			StartedAt:      time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
			Duration:       1500 * time.Millisecond,
		},
	})

	out := sb.String()
	assert.Contains(t, out, "aaaaaaaa")
	assert.Contains(t, out, "Hamilton, ON")
	assert.Contains(t, out, "2026-03-14 09:30")
	assert.Contains(t, out, "1.5s")
}

func TestFormatSnapshot(t *testing.T) {
	var sb strings.Builder
	formatSnapshot(&sb, &monitoring.Snapshot{
		RunsTotal:      3,
		RecordsFetched: 90,
		EntitiesFound:  60,
		AvgRunDuration: 2 * time.Second,
		AvgYieldPerRun: 20,
	})

	out := sb.String()
	assert.Contains(t, out, "Runs:")
	assert.Contains(t, out, "90")
	assert.Contains(t, out, "20.0")
}

func TestFormatEntities_TruncatesLongNames(t *testing.T) {
	var sb strings.Builder
	formatEntities(&sb, []model.ResolvedEntity{
		{
			Name:                 "An Extremely Long Business Name That Keeps Going",
			City:                 "Guelph",
			SourceCount:          2,
			ValidationConfidence: 0.95,
		},
	})

	out := sb.String()
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "Guelph")
	assert.NotContains(t, out, "That Keeps Going")
}
