package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/inverter"
	"github.com/icodeforyou/pvsoiling/notify"
	"github.com/icodeforyou/pvsoiling/reading"
	"github.com/icodeforyou/pvsoiling/types"
	"github.com/icodeforyou/pvsoiling/types/maybe"
)

var ErrSyncTooSoon = errors.New("sync ran recently, try again later")

const maxBackoff = 24 * time.Hour

// The outcome of an attempt is written even when the run was cancelled,
// otherwise the integration stays in syncing with a stale failure count.
const saveResultTimeout = 10 * time.Second

type SyncStore interface {
	GetDueIntegrations(ctx context.Context, now time.Time) ([]types.InverterIntegration, error)
	SetSyncStatus(ctx context.Context, id string, status types.SyncStatus) error
	SaveSyncResult(ctx context.Context, id string, r types.SyncResult) error
	GetPlant(ctx context.Context, id string) (types.Plant, error)
	GetReadingDates(ctx context.Context, plantID string, from, to days.Date) (map[days.Date]bool, error)
}

type CredentialOpener interface {
	Open(p inverter.Provider, ec types.EncryptedCredentials) (inverter.Credentials, error)
}

type ReadingFetcher interface {
	FetchReadings(ctx context.Context, c inverter.Credentials, externalSiteID string, start, end days.Date) ([]types.DailyReading, error)
}

type ReadingProcessor interface {
	Process(ctx context.Context, in reading.Input) (reading.Result, error)
}

type IntegrationSummary struct {
	IntegrationID string                 `json:"integration_id"`
	PlantID       string                 `json:"plant_id"`
	Provider      string                 `json:"provider"`
	Status        types.SyncStatus       `json:"status"`
	Synced        int                    `json:"synced"`
	Skipped       int                    `json:"skipped"`
	Errored       int                    `json:"errored"`
	Error         string                 `json:"error,omitempty"`
	NextSyncAfter maybe.Maybe[time.Time] `json:"next_sync_after"`
}

type Summary struct {
	StartedAt time.Time            `json:"started_at"`
	From      days.Date            `json:"from"`
	To        days.Date            `json:"to"`
	Results   []IntegrationSummary `json:"results"`
}

// NextSyncAfter is the backoff gate after the given number of consecutive
// failures: 2^failures hours, never more than a day.
func NextSyncAfter(now time.Time, failures int) time.Time {
	if failures < 0 {
		failures = 0
	}
	wait := maxBackoff
	if failures < 5 {
		wait = min(time.Duration(1<<failures)*time.Hour, maxBackoff)
	}
	return now.Add(wait)
}

// Syncer pulls recent daily readings from every due inverter integration and
// feeds them through the reading pipeline, one integration at a time.
type Syncer struct {
	logger      *slog.Logger
	store       SyncStore
	vault       CredentialOpener
	fetcher     ReadingFetcher
	pipeline    ReadingProcessor
	publisher   notify.Publisher
	minInterval time.Duration

	mu        sync.Mutex
	running   bool
	lastStart time.Time
	now       func() time.Time
}

func NewSyncer(
	logger *slog.Logger,
	store SyncStore,
	vault CredentialOpener,
	fetcher ReadingFetcher,
	pipeline ReadingProcessor,
	publisher notify.Publisher,
	minInterval time.Duration) *Syncer {

	if publisher == nil {
		publisher = notify.Discard
	}
	return &Syncer{
		logger:      logger,
		store:       store,
		vault:       vault,
		fetcher:     fetcher,
		pipeline:    pipeline,
		publisher:   publisher,
		minInterval: minInterval,
		now:         time.Now,
	}
}

func (s *Syncer) Run(ctx context.Context) (Summary, error) {
	now, err := s.acquire()
	if err != nil {
		return Summary{}, err
	}
	defer s.release()

	// Today is still producing, sync the two days before it.
	today := days.FromTime(now)
	summary := Summary{StartedAt: now, From: today.AddDays(-2), To: today.AddDays(-1)}

	due, err := s.store.GetDueIntegrations(ctx, now)
	if err != nil {
		return summary, fmt.Errorf("error getting due integrations: %w", err)
	}
	s.logger.Debug("running inverter sync...", slog.Int("integrations", len(due)))

	for _, in := range due {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Results = append(summary.Results, s.syncIntegration(ctx, in, summary.From, summary.To))
	}

	s.logger.Info("inverter sync done", slog.Int("integrations", len(summary.Results)))
	return summary, nil
}

func (s *Syncer) acquire() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.running || (!s.lastStart.IsZero() && now.Sub(s.lastStart) < s.minInterval) {
		return time.Time{}, ErrSyncTooSoon
	}
	s.running = true
	s.lastStart = now
	return now, nil
}

func (s *Syncer) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *Syncer) syncIntegration(ctx context.Context, in types.InverterIntegration, from, to days.Date) IntegrationSummary {
	logger := s.logger.With(
		slog.String("integration", in.ID),
		slog.String("plant", in.PlantID),
		slog.String("provider", in.Provider))

	res := IntegrationSummary{IntegrationID: in.ID, PlantID: in.PlantID, Provider: in.Provider}

	machine := newSyncMachine(in.LastSyncStatus, func(status types.SyncStatus) {
		logger.Debug("sync state changed", slog.String("status", string(status)))
	})
	if err := machine.trigger(ctx, eventStart); err != nil {
		logger.Error("sync state error", slog.Any("error", err))
	}
	if err := s.store.SetSyncStatus(ctx, in.ID, types.SyncSyncing); err != nil {
		logger.Warn("failed to mark integration as syncing", slog.Any("error", err))
	}

	if err := s.fetchAndProcess(ctx, logger, in, from, to, &res); err != nil {
		logger.Error("inverter sync failed", slog.Any("error", err))
		res.Status = types.SyncError
		res.Error = err.Error()
	} else {
		res.Status = outcome(res.Synced, res.Errored)
		if res.Status == types.SyncError {
			res.Error = fmt.Sprintf("all %d readings failed", res.Errored)
		}
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveResultTimeout)
	defer cancel()

	if err := machine.finish(saveCtx, res.Status); err != nil {
		logger.Error("sync state error", slog.Any("error", err))
	}

	now := s.now()
	result := types.SyncResult{At: now, Status: machine.status(), Error: res.Error, Count: res.Synced}
	if result.Status == types.SyncError {
		result.ConsecutiveFailures = in.ConsecutiveFailures + 1
		result.NextSyncAfter = maybe.Some(NextSyncAfter(now, result.ConsecutiveFailures))
	}
	res.NextSyncAfter = result.NextSyncAfter

	if err := s.store.SaveSyncResult(saveCtx, in.ID, result); err != nil {
		logger.Error("failed to save sync result", slog.Any("error", err))
	}

	if err := s.publisher.Publish(saveCtx, notify.Event{
		Kind:    notify.SyncCompleted,
		PlantID: in.PlantID,
		At:      now,
		Payload: res,
	}); err != nil {
		logger.Warn("failed to publish sync event", slog.Any("error", err))
	}

	logger.Info("inverter sync finished",
		slog.String("status", string(res.Status)),
		slog.Int("synced", res.Synced),
		slog.Int("skipped", res.Skipped),
		slog.Int("errored", res.Errored))
	return res
}

// fetchAndProcess returns an error only when the integration as a whole
// failed. Failing dates are counted in res.
func (s *Syncer) fetchAndProcess(ctx context.Context, logger *slog.Logger, in types.InverterIntegration, from, to days.Date, res *IntegrationSummary) error {
	plant, err := s.store.GetPlant(ctx, in.PlantID)
	if err != nil {
		return fmt.Errorf("error getting plant: %w", err)
	}

	provider, err := inverter.ParseProvider(in.Provider)
	if err != nil {
		return err
	}

	creds, err := s.vault.Open(provider, in.Credentials)
	if err != nil {
		return err
	}

	readings, err := s.fetcher.FetchReadings(ctx, creds, in.ExternalSiteID, from, to)
	if err != nil {
		return fmt.Errorf("error fetching %s readings: %w", provider, err)
	}

	existing, err := s.store.GetReadingDates(ctx, plant.ID, from, to)
	if err != nil {
		return fmt.Errorf("error getting stored reading dates: %w", err)
	}

	for _, r := range readings {
		if existing[r.Date] {
			res.Skipped++
			continue
		}

		result, err := s.pipeline.Process(ctx, reading.Input{
			Plant:   plant,
			UserID:  plant.UserID,
			Date:    r.Date.String(),
			KWhReal: r.KWh,
			Type:    string(types.ReadingDaily),
		})
		switch {
		case errors.Is(err, reading.ErrReadingExists):
			res.Skipped++
		case err != nil:
			res.Errored++
			logger.Warn("failed to process reading", slog.String("date", r.Date.String()), slog.Any("error", err))
		default:
			res.Synced++
			existing[r.Date] = true
			if err := s.publisher.Publish(ctx, notify.Event{
				Kind:    notify.ReadingCreated,
				PlantID: plant.ID,
				Date:    r.Date,
				At:      s.now(),
				Payload: result,
			}); err != nil {
				logger.Warn("failed to publish reading event", slog.Any("error", err))
			}
		}
	}
	return nil
}

func outcome(synced, errored int) types.SyncStatus {
	switch {
	case errored == 0:
		return types.SyncSuccess
	case synced > 0:
		return types.SyncPartial
	default:
		return types.SyncError
	}
}
