package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/internal/source"
)

// scriptedAdapter returns canned records or failures and counts calls.
type scriptedAdapter struct {
	name     string
	priority int
	records  []model.RawRecord
	err      error
	panics   bool
	calls    int
}

func (a *scriptedAdapter) Name() string         { return a.name }
func (a *scriptedAdapter) Priority() int        { return a.priority }
func (a *scriptedAdapter) ValidateConfig() bool { return true }
func (a *scriptedAdapter) IsAvailable() bool    { return true }

func (a *scriptedAdapter) FetchBusinesses(_ context.Context, q source.Query) ([]model.RawRecord, error) {
	a.calls++
	if a.panics {
		panic("scraper blew up")
	}
	if a.err != nil {
		return nil, a.err
	}
	out := make([]model.RawRecord, 0, len(a.records))
	for _, r := range a.records {
		r.SourceID = a.name
		out = append(out, r)
		if q.MaxResults > 0 && len(out) >= q.MaxResults {
			break
		}
	}
	return out, nil
}

func rec(name, street, city, phone string) model.RawRecord {
	return model.RawRecord{Name: name, Street: street, City: city, Phone: phone, Confidence: 0.8}
}

func fastRetry() resilience.RetryPolicy {
	return resilience.RetryPolicy{MaxAttempts: 1, InitialBackoff: time.Millisecond}
}

func newTestOrchestrator(t *testing.T, adapters []*scriptedAdapter, opts ...Option) *Orchestrator {
	t.Helper()
	reg := source.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	opts = append([]Option{WithRetryPolicy(fastRetry())}, opts...)
	return NewOrchestrator(reg, opts...)
}

func TestFetchFromAllSources_DedupAcrossSources(t *testing.T) {
	a1 := &scriptedAdapter{name: "seed", priority: 100, records: []model.RawRecord{
		rec("ABC Manufacturing Inc.", "123 Main St", "Hamilton", "905-555-1234"),
		rec("Beta Bakery", "10 Oak Ave", "Hamilton", ""),
	}}
	a2 := &scriptedAdapter{name: "gov", priority: 70, records: []model.RawRecord{
		// Same business as seed's first record, different formatting.
		rec("ABC Manufacturing", "123 Main Street", "Hamilton", "(905) 555-1234"),
		rec("Gamma Glass", "77 King St", "Hamilton", ""),
	}}

	o := newTestOrchestrator(t, []*scriptedAdapter{a1, a2})
	got, err := o.FetchFromAllSources(context.Background(), 10, "Hamilton", "")
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "ABC Manufacturing Inc.", got[0].Name)
	assert.Equal(t, 2, got[0].SourceCount)
	assert.Equal(t, []string{"seed", "gov"}, got[0].DataSources)
	assert.Equal(t, 1, got[1].SourceCount)
	assert.Equal(t, 1, got[2].SourceCount)
}

func TestFetchFromAllSources_Deterministic(t *testing.T) {
	adapters := func() []*scriptedAdapter {
		return []*scriptedAdapter{
			{name: "seed", priority: 100, records: []model.RawRecord{
				rec("ABC Manufacturing", "123 Main St", "Hamilton", "905-555-1234"),
				rec("Beta Bakery", "10 Oak Ave", "Hamilton", ""),
			}},
			{name: "scraper", priority: 30, records: []model.RawRecord{
				rec("Gamma Glass", "77 King St", "Hamilton", ""),
				rec("ABC Manufacturing", "123 Main St", "Hamilton", "905-555-1234"),
			}},
		}
	}

	first, err := newTestOrchestrator(t, adapters()).FetchFromAllSources(context.Background(), 10, "Hamilton", "")
	require.NoError(t, err)
	second, err := newTestOrchestrator(t, adapters()).FetchFromAllSources(context.Background(), 10, "Hamilton", "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFetchFromAllSources_TargetCountShortCircuit(t *testing.T) {
	a1 := &scriptedAdapter{name: "seed", priority: 100, records: []model.RawRecord{
		rec("One", "1 First St", "Hamilton", ""),
		rec("Two", "2 Second St", "Hamilton", ""),
		rec("Three", "3 Third St", "Hamilton", ""),
		rec("Four", "4 Fourth St", "Hamilton", ""),
		rec("Five", "5 Fifth St", "Hamilton", ""),
	}}
	a2 := &scriptedAdapter{name: "scraper", priority: 30, records: []model.RawRecord{
		rec("Six", "6 Sixth St", "Hamilton", ""),
	}}

	o := newTestOrchestrator(t, []*scriptedAdapter{a1, a2})
	got, err := o.FetchFromAllSources(context.Background(), 3, "Hamilton", "")
	require.NoError(t, err)

	assert.Len(t, got, 3)
	assert.Equal(t, 1, a1.calls)
	assert.Equal(t, 0, a2.calls, "lower-priority source must not be invoked once target met")
}

func TestFetchFromAllSources_PartialFailureResilience(t *testing.T) {
	failing := &scriptedAdapter{name: "flaky", priority: 100, err: errors.New("scraper exploded")}
	healthy := &scriptedAdapter{name: "backup", priority: 50, records: []model.RawRecord{
		rec("One", "1 First St", "Hamilton", ""),
		rec("Two", "2 Second St", "Hamilton", ""),
		rec("Three", "3 Third St", "Hamilton", ""),
		rec("Four", "4 Fourth St", "Hamilton", ""),
		rec("Five", "5 Fifth St", "Hamilton", ""),
	}}

	o := newTestOrchestrator(t, []*scriptedAdapter{failing, healthy})
	got, err := o.FetchFromAllSources(context.Background(), 5, "Hamilton", "")
	require.NoError(t, err)

	assert.Len(t, got, 5)
	for _, e := range got {
		assert.Equal(t, []string{"backup"}, e.DataSources)
	}

	for _, snap := range o.GetSourceMetrics() {
		if snap.Source == "flaky" {
			assert.Equal(t, snap.Runs, snap.Errors, "every attempt on the failing source counts an error")
			assert.Equal(t, 0, snap.RecordsFound)
		}
	}
}

func TestFetchFromAllSources_PanicIsAFailedFetch(t *testing.T) {
	panicky := &scriptedAdapter{name: "boom", priority: 100, panics: true}
	healthy := &scriptedAdapter{name: "backup", priority: 50, records: []model.RawRecord{
		rec("One", "1 First St", "Hamilton", ""),
	}}

	o := newTestOrchestrator(t, []*scriptedAdapter{panicky, healthy})
	got, err := o.FetchFromAllSources(context.Background(), 1, "Hamilton", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "One", got[0].Name)
}

func TestFetchFromAllSources_NoSources(t *testing.T) {
	o := NewOrchestrator(source.NewRegistry())
	got, err := o.FetchFromAllSources(context.Background(), 5, "Hamilton", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchFromAllSources_InvalidTarget(t *testing.T) {
	o := NewOrchestrator(source.NewRegistry())
	_, err := o.FetchFromAllSources(context.Background(), 0, "Hamilton", "")
	assert.Error(t, err)
}

func TestFetchFromAllSources_CancelReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	a1 := &scriptedAdapter{name: "seed", priority: 100, records: []model.RawRecord{
		rec("One", "1 First St", "Hamilton", ""),
	}}
	a2 := &scriptedAdapter{name: "scraper", priority: 30, records: []model.RawRecord{
		rec("Two", "2 Second St", "Hamilton", ""),
	}}

	reg := source.NewRegistry()
	reg.Register(a1)
	// cancelAdapter cancels the run as a side effect of its fetch.
	reg.Register(&cancelAdapter{inner: a1, cancel: cancel})
	reg.Register(a2)

	o := NewOrchestrator(reg, WithRetryPolicy(fastRetry()))
	got, err := o.FetchFromAllSources(ctx, 10, "Hamilton", "")
	require.NoError(t, err, "cancellation yields partial results, not an error")
	assert.NotEmpty(t, got)
	assert.Equal(t, 0, a2.calls, "no further sources after cancellation")
}

// cancelAdapter wraps an adapter and cancels the run after fetching.
type cancelAdapter struct {
	inner  *scriptedAdapter
	cancel context.CancelFunc
}

func (c *cancelAdapter) Name() string         { return "canceller" }
func (c *cancelAdapter) Priority() int        { return 90 }
func (c *cancelAdapter) ValidateConfig() bool { return true }
func (c *cancelAdapter) IsAvailable() bool    { return true }
func (c *cancelAdapter) FetchBusinesses(ctx context.Context, q source.Query) ([]model.RawRecord, error) {
	defer c.cancel()
	return nil, nil
}

func TestFetchFromAllSources_CancelDoesNotPenalizeSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	reg := source.NewRegistry()
	reg.Register(&abortAdapter{cancel: cancel})

	o := NewOrchestrator(reg, WithRetryPolicy(fastRetry()))
	_, err := o.FetchFromAllSources(ctx, 10, "Hamilton", "")
	require.NoError(t, err)

	// The fetch died because the caller cancelled the run, not because the
	// source failed: no error counted, no breaker strike.
	for _, snap := range o.GetSourceMetrics() {
		assert.Zero(t, snap.Errors, "source %s charged an error for the caller's cancellation", snap.Source)
	}
	assert.Equal(t, resilience.BreakerClosed, o.BreakerStates()["aborter"])
}

// abortAdapter cancels the run mid-fetch and surfaces the cancellation, the
// shape of a fetch killed by the caller giving up.
type abortAdapter struct {
	cancel context.CancelFunc
}

func (a *abortAdapter) Name() string         { return "aborter" }
func (a *abortAdapter) Priority() int        { return 90 }
func (a *abortAdapter) ValidateConfig() bool { return true }
func (a *abortAdapter) IsAvailable() bool    { return true }
func (a *abortAdapter) FetchBusinesses(ctx context.Context, q source.Query) ([]model.RawRecord, error) {
	a.cancel()
	return nil, ctx.Err()
}

func TestFetchFromAllSources_MalformedRecordsSkipped(t *testing.T) {
	a := &scriptedAdapter{name: "seed", priority: 100, records: []model.RawRecord{
		{Street: "1 Ghost Rd", City: "Hamilton"}, // no name: dropped
		rec("Real Business", "2 Main St", "Hamilton", ""),
	}}

	o := newTestOrchestrator(t, []*scriptedAdapter{a})
	got, err := o.FetchFromAllSources(context.Background(), 10, "Hamilton", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Real Business", got[0].Name)
}

func TestFetchFromAllSources_BreakerSkipsRepeatOffender(t *testing.T) {
	failing := &scriptedAdapter{name: "flaky", priority: 100, err: errors.New("down")}

	o := newTestOrchestrator(t, []*scriptedAdapter{failing},
		WithBreakerConfig(resilience.BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour}))

	_, err := o.FetchFromAllSources(context.Background(), 1, "Hamilton", "")
	require.NoError(t, err)
	require.Equal(t, 1, failing.calls)

	// Second run: breaker is open, adapter must not be invoked again.
	_, err = o.FetchFromAllSources(context.Background(), 1, "Hamilton", "")
	require.NoError(t, err)
	assert.Equal(t, 1, failing.calls)

	assert.Equal(t, resilience.BreakerOpen, o.BreakerStates()["flaky"])
}

func TestFetchFromAllSources_ConcurrentMode(t *testing.T) {
	adapters := []*scriptedAdapter{
		{name: "a", priority: 100, records: []model.RawRecord{rec("One", "1 First St", "Hamilton", "")}},
		{name: "b", priority: 70, records: []model.RawRecord{rec("Two", "2 Second St", "Hamilton", "")}},
		{name: "c", priority: 30, records: []model.RawRecord{rec("Three", "3 Third St", "Hamilton", "")}},
	}

	o := newTestOrchestrator(t, adapters, WithConcurrency(3))
	got, err := o.FetchFromAllSources(context.Background(), 10, "Hamilton", "")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestRunSummary(t *testing.T) {
	a := &scriptedAdapter{name: "seed", priority: 100, records: []model.RawRecord{
		rec("One", "1 First St", "Hamilton", ""),
		rec("One", "1 First St", "Hamilton", ""), // duplicate within source
	}}

	o := newTestOrchestrator(t, []*scriptedAdapter{a})
	entities, summary, err := o.Run(context.Background(), 5, "Hamilton", "manufacturing")
	require.NoError(t, err)

	require.NotNil(t, summary)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, "Hamilton", summary.Location)
	assert.Equal(t, "manufacturing", summary.Industry)
	assert.Equal(t, 5, summary.TargetCount)
	assert.Equal(t, 1, summary.SourcesTried)
	assert.Equal(t, 2, summary.RecordsFetched)
	assert.Equal(t, 1, summary.UniqueEntities)
	assert.Equal(t, len(entities), summary.Returned)
}

func TestDedupIndex_FuzzyGrouping(t *testing.T) {
	ix := newDedupIndex(false)

	assert.True(t, ix.insert(rec("Steel City Fabrication", "12 Dock Rd", "Hamilton", "905-555-9999")))
	// No street, same phone: fuzzy-merges into the first group.
	assert.False(t, ix.insert(rec("Steel City Fabrication Ltd", "", "Hamilton", "905-555-9999")))
	assert.Equal(t, 1, ix.unique())
	assert.Len(t, ix.groups[0].Records, 2)

	// Strict mode keeps them apart.
	strict := newDedupIndex(true)
	assert.True(t, strict.insert(rec("Steel City Fabrication", "12 Dock Rd", "Hamilton", "905-555-9999")))
	assert.True(t, strict.insert(rec("Steel City Fabrication Ltd", "", "Hamilton", "905-555-9999")))
	assert.Equal(t, 2, strict.unique())
}
