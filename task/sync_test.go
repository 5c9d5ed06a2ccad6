package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/inverter"
	"github.com/icodeforyou/pvsoiling/notify"
	"github.com/icodeforyou/pvsoiling/reading"
	"github.com/icodeforyou/pvsoiling/types"
	"github.com/icodeforyou/pvsoiling/types/maybe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var syncNow = time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC)

type fakeSyncStore struct {
	due      []types.InverterIntegration
	plants   map[string]types.Plant
	dates    map[days.Date]bool
	statuses []types.SyncStatus
	results  map[string]types.SyncResult
}

func (s *fakeSyncStore) GetDueIntegrations(_ context.Context, now time.Time) ([]types.InverterIntegration, error) {
	return s.due, nil
}

func (s *fakeSyncStore) SetSyncStatus(_ context.Context, id string, status types.SyncStatus) error {
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *fakeSyncStore) SaveSyncResult(ctx context.Context, id string, r types.SyncResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.results[id] = r
	return nil
}

func (s *fakeSyncStore) GetPlant(_ context.Context, id string) (types.Plant, error) {
	p, ok := s.plants[id]
	if !ok {
		return types.Plant{}, types.ErrNotFound
	}
	return p, nil
}

func (s *fakeSyncStore) GetReadingDates(_ context.Context, plantID string, from, to days.Date) (map[days.Date]bool, error) {
	out := make(map[days.Date]bool)
	for d := range s.dates {
		if !d.Before(from) && !d.After(to) {
			out[d] = true
		}
	}
	return out, nil
}

type fakeVault struct {
	err error
}

func (v fakeVault) Open(p inverter.Provider, _ types.EncryptedCredentials) (inverter.Credentials, error) {
	if v.err != nil {
		return nil, v.err
	}
	return inverter.SolarEdgeCredentials{APIKey: "K", SiteID: "42"}, nil
}

type fetchCall struct {
	siteID   string
	from, to days.Date
}

type fakeFetcher struct {
	readings []types.DailyReading
	err      error
	calls    []fetchCall
	hook     func()
}

func (f *fakeFetcher) FetchReadings(ctx context.Context, _ inverter.Credentials, siteID string, start, end days.Date) ([]types.DailyReading, error) {
	f.calls = append(f.calls, fetchCall{siteID, start, end})
	if f.hook != nil {
		f.hook()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return f.readings, f.err
}

type fakeProcessor struct {
	errs   map[string]error
	inputs []reading.Input
	hook   func()
}

func (p *fakeProcessor) Process(_ context.Context, in reading.Input) (reading.Result, error) {
	if p.hook != nil {
		p.hook()
	}
	p.inputs = append(p.inputs, in)
	if err := p.errs[in.Date]; err != nil {
		return reading.Result{}, err
	}
	return reading.Result{Reading: types.ProductionReading{Date: days.Date(in.Date), KWhReal: in.KWhReal}}, nil
}

type fixture struct {
	store     *fakeSyncStore
	fetcher   *fakeFetcher
	processor *fakeProcessor
	events    []notify.Event
	syncer    *Syncer
}

func newFixture(t *testing.T, integrations ...types.InverterIntegration) *fixture {
	t.Helper()
	if len(integrations) == 0 {
		integrations = []types.InverterIntegration{integration("int-1", 0)}
	}
	f := &fixture{
		store: &fakeSyncStore{
			due:     integrations,
			plants:  map[string]types.Plant{"plant-1": {ID: "plant-1", UserID: "user-1", ModuleCount: 20, ModulePowerW: 440}},
			dates:   map[days.Date]bool{},
			results: map[string]types.SyncResult{},
		},
		fetcher: &fakeFetcher{readings: []types.DailyReading{
			{Date: "2025-06-08", KWh: 38.1},
			{Date: "2025-06-09", KWh: 41.7},
		}},
		processor: &fakeProcessor{errs: map[string]error{}},
	}
	publisher := notify.PublisherFunc(func(_ context.Context, e notify.Event) error {
		f.events = append(f.events, e)
		return nil
	})
	f.syncer = NewSyncer(slog.New(slog.DiscardHandler), f.store, fakeVault{}, f.fetcher, f.processor, publisher, time.Minute)
	f.syncer.now = func() time.Time { return syncNow }
	return f
}

func (f *fixture) withVault(v fakeVault) *fixture {
	f.syncer.vault = v
	return f
}

func integration(id string, failures int) types.InverterIntegration {
	return types.InverterIntegration{
		ID:                  id,
		PlantID:             "plant-1",
		Provider:            "solaredge",
		ExternalSiteID:      "42",
		IsActive:            true,
		SyncEnabled:         true,
		LastSyncStatus:      types.SyncIdle,
		ConsecutiveFailures: failures,
	}
}

func TestNextSyncAfter(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{-1, time.Hour},
		{0, time.Hour},
		{1, 2 * time.Hour},
		{3, 8 * time.Hour},
		{4, 16 * time.Hour},
		{5, 24 * time.Hour},
		{64, 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.failures), func(t *testing.T) {
			assert.Equal(t, syncNow.Add(tt.want), NextSyncAfter(syncNow, tt.failures))
		})
	}
}

func TestSyncSkipsExistingDates(t *testing.T) {
	f := newFixture(t)
	f.store.dates["2025-06-08"] = true

	summary, err := f.syncer.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, days.Date("2025-06-08"), summary.From)
	assert.Equal(t, days.Date("2025-06-09"), summary.To)
	assert.Equal(t, []fetchCall{{"42", "2025-06-08", "2025-06-09"}}, f.fetcher.calls)

	require.Len(t, summary.Results, 1)
	res := summary.Results[0]
	assert.Equal(t, types.SyncSuccess, res.Status)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Errored)

	require.Len(t, f.processor.inputs, 1)
	in := f.processor.inputs[0]
	assert.Equal(t, "2025-06-09", in.Date)
	assert.Equal(t, 41.7, in.KWhReal)
	assert.Equal(t, "user-1", in.UserID)
	assert.Equal(t, "daily", in.Type)
	assert.False(t, in.IsCleaningDay)
	assert.Nil(t, in.Irradiance)

	assert.Equal(t, []types.SyncStatus{types.SyncSyncing}, f.store.statuses)
	assert.Equal(t, types.SyncResult{
		At:     syncNow,
		Status: types.SyncSuccess,
		Count:  1,
	}, f.store.results["int-1"])

	require.Len(t, f.events, 2)
	assert.Equal(t, notify.ReadingCreated, f.events[0].Kind)
	assert.Equal(t, days.Date("2025-06-09"), f.events[0].Date)
	assert.Equal(t, notify.SyncCompleted, f.events[1].Kind)
	assert.Equal(t, "plant-1", f.events[1].PlantID)
}

func TestSyncSuccessResetsFailures(t *testing.T) {
	in := integration("int-1", 3)
	in.LastSyncStatus = types.SyncError
	in.NextSyncAfter = maybe.Some(syncNow.Add(-time.Minute))
	f := newFixture(t, in)

	_, err := f.syncer.Run(context.Background())
	require.NoError(t, err)

	r := f.store.results["int-1"]
	assert.Equal(t, types.SyncSuccess, r.Status)
	assert.Equal(t, 0, r.ConsecutiveFailures)
	assert.False(t, r.NextSyncAfter.IsValid())
	assert.Equal(t, 2, r.Count)
}

func TestSyncPartial(t *testing.T) {
	f := newFixture(t, integration("int-1", 2))
	f.processor.errs["2025-06-08"] = errors.New("weather provider down")

	summary, err := f.syncer.Run(context.Background())
	require.NoError(t, err)

	res := summary.Results[0]
	assert.Equal(t, types.SyncPartial, res.Status)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 1, res.Errored)

	r := f.store.results["int-1"]
	assert.Equal(t, types.SyncPartial, r.Status)
	assert.Equal(t, 0, r.ConsecutiveFailures)
	assert.False(t, r.NextSyncAfter.IsValid())
}

func TestSyncEveryDateFailing(t *testing.T) {
	f := newFixture(t)
	f.processor.errs["2025-06-08"] = errors.New("boom")
	f.processor.errs["2025-06-09"] = errors.New("boom")

	summary, err := f.syncer.Run(context.Background())
	require.NoError(t, err)

	res := summary.Results[0]
	assert.Equal(t, types.SyncError, res.Status)
	assert.Equal(t, "all 2 readings failed", res.Error)

	r := f.store.results["int-1"]
	assert.Equal(t, 1, r.ConsecutiveFailures)
	assert.Equal(t, maybe.Some(syncNow.Add(2*time.Hour)), r.NextSyncAfter)
}

func TestSyncDuplicateCountsAsSkipped(t *testing.T) {
	f := newFixture(t)
	f.processor.errs["2025-06-09"] = fmt.Errorf("%w: %w", reading.ErrReadingExists, types.ErrDuplicate)

	summary, err := f.syncer.Run(context.Background())
	require.NoError(t, err)

	res := summary.Results[0]
	assert.Equal(t, types.SyncSuccess, res.Status)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 1, res.Skipped)
}

func TestSyncProviderFailureBacksOff(t *testing.T) {
	f := newFixture(t, integration("int-1", 3))
	f.fetcher.err = errors.New("connection refused")

	summary, err := f.syncer.Run(context.Background())
	require.NoError(t, err)

	res := summary.Results[0]
	assert.Equal(t, types.SyncError, res.Status)
	assert.Contains(t, res.Error, "connection refused")
	assert.Empty(t, f.processor.inputs)

	r := f.store.results["int-1"]
	assert.Equal(t, types.SyncError, r.Status)
	assert.Equal(t, 4, r.ConsecutiveFailures)
	assert.Equal(t, maybe.Some(syncNow.Add(16*time.Hour)), r.NextSyncAfter)
	assert.Equal(t, r.NextSyncAfter, res.NextSyncAfter)
}

func TestSyncSavesResultWhenCancelled(t *testing.T) {
	f := newFixture(t, integration("int-1", 1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.fetcher.hook = cancel

	summary, _ := f.syncer.Run(ctx)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, types.SyncError, summary.Results[0].Status)
	assert.Contains(t, summary.Results[0].Error, context.Canceled.Error())

	r, ok := f.store.results["int-1"]
	require.True(t, ok, "result must be saved after the caller went away")
	assert.Equal(t, types.SyncError, r.Status)
	assert.Equal(t, 2, r.ConsecutiveFailures)
	assert.Equal(t, maybe.Some(syncNow.Add(4*time.Hour)), r.NextSyncAfter)
	require.Len(t, f.events, 1)
	assert.Equal(t, notify.SyncCompleted, f.events[0].Kind)
}

func TestSyncCannotDecrypt(t *testing.T) {
	f := newFixture(t).withVault(fakeVault{err: inverter.ErrCannotDecrypt})

	summary, err := f.syncer.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "cannot decrypt credentials, please reconfigure the integration", summary.Results[0].Error)
	assert.Empty(t, f.fetcher.calls)
	assert.Equal(t, 1, f.store.results["int-1"].ConsecutiveFailures)
}

func TestSyncFailureIsIsolatedPerIntegration(t *testing.T) {
	broken := integration("int-1", 0)
	broken.Provider = "enphase"
	f := newFixture(t, broken, integration("int-2", 0))

	summary, err := f.syncer.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)

	assert.Equal(t, types.SyncError, summary.Results[0].Status)
	assert.Contains(t, summary.Results[0].Error, inverter.ErrUnknownProvider.Error())
	assert.Equal(t, types.SyncSuccess, summary.Results[1].Status)
	assert.Equal(t, 2, summary.Results[1].Synced)
}

func TestSyncRejectsRunsTooSoon(t *testing.T) {
	f := newFixture(t)
	now := syncNow
	f.syncer.now = func() time.Time { return now }

	var reentry error
	f.processor.hook = func() {
		if reentry == nil {
			_, reentry = f.syncer.Run(context.Background())
		}
	}

	_, err := f.syncer.Run(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, reentry, ErrSyncTooSoon)

	now = now.Add(30 * time.Second)
	_, err = f.syncer.Run(context.Background())
	assert.ErrorIs(t, err, ErrSyncTooSoon)

	now = now.Add(31 * time.Second)
	_, err = f.syncer.Run(context.Background())
	assert.NoError(t, err)
}

func TestSyncMachine(t *testing.T) {
	ctx := context.Background()
	var entered []types.SyncStatus
	m := newSyncMachine(types.SyncSuccess, func(s types.SyncStatus) { entered = append(entered, s) })

	require.NoError(t, m.trigger(ctx, eventStart))
	require.NoError(t, m.finish(ctx, types.SyncPartial))
	assert.Equal(t, types.SyncPartial, m.status())
	assert.Equal(t, []types.SyncStatus{types.SyncSyncing, types.SyncPartial}, entered)

	assert.Error(t, m.trigger(ctx, eventSucceed))

	stale := newSyncMachine(types.SyncSyncing, nil)
	assert.Equal(t, types.SyncIdle, stale.status())
	require.NoError(t, stale.trigger(ctx, eventStart))
	require.NoError(t, stale.finish(ctx, types.SyncError))
	assert.Equal(t, types.SyncError, stale.status())
}
