package reading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/icodeforyou/pvsoiling/calc"
	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/types"
	"github.com/icodeforyou/pvsoiling/types/maybe"
)

var (
	// ErrReadingExists is a user facing conflict, not a system failure.
	ErrReadingExists = errors.New("a reading already exists for this date")
	// ErrIrradianceUnavailable wraps failures of the weather provider.
	ErrIrradianceUnavailable = errors.New("irradiance data unavailable")
)

type Store interface {
	// Performance ratio of the latest cleaning day before the date with a ratio inside the valid band.
	GetBaselinePR(ctx context.Context, plantID string, before days.Date) (maybe.Maybe[float64], error)
	// Latest cleaning day before the date, outliers included.
	GetLastCleaningDate(ctx context.Context, plantID string, before days.Date) (maybe.Maybe[days.Date], error)
	// Losses of readings strictly between after (open when None) and before, ordered by date.
	GetLossesBetween(ctx context.Context, plantID string, after maybe.Maybe[days.Date], before days.Date) ([]calc.LossPoint, error)
	InsertReading(ctx context.Context, r types.ProductionReading) error
	DeleteReading(ctx context.Context, plantID string, date days.Date) error
}

type IrradianceSource interface {
	GetOrFetch(ctx context.Context, lat, lon float64, date days.Date, tilt float64) (types.IrradianceData, error)
}

type Input struct {
	Plant         types.Plant
	UserID        string
	Date          string
	KWhReal       float64
	Type          string
	IsCleaningDay bool
	// Resolved through the irradiance service when nil.
	Irradiance *types.IrradianceData
}

type Result struct {
	Reading                types.ProductionReading `json:"reading"`
	SoilingPercent         maybe.Maybe[float64]    `json:"soiling_percent"`
	Recommendation         calc.Recommendation     `json:"recommendation"`
	CumulativeLossCurrency float64                 `json:"cumulative_loss_currency"`
	DaysToBreakeven        maybe.Maybe[int]        `json:"days_to_breakeven"`
}

type Pipeline struct {
	logger     *slog.Logger
	store      Store
	irradiance IrradianceSource
	now        func() time.Time
}

func NewPipeline(logger *slog.Logger, store Store, irradiance IrradianceSource) *Pipeline {
	return &Pipeline{
		logger:     logger,
		store:      store,
		irradiance: irradiance,
		now:        time.Now,
	}
}

func (p *Pipeline) Process(ctx context.Context, in Input) (Result, error) {
	date, readingType, err := validate(in)
	if err != nil {
		return Result{}, err
	}

	plant := in.Plant
	logger := p.logger.With(slog.String("plant", plant.ID), slog.String("date", date.String()))

	var irr types.IrradianceData
	if in.Irradiance != nil {
		irr = *in.Irradiance
	} else {
		irr, err = p.irradiance.GetOrFetch(ctx, plant.Latitude, plant.Longitude, date, plant.Tilt)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrIrradianceUnavailable, err)
		}
	}

	th := calc.TheoreticalKWh(irr.Ghi, plant.Tilt, ambientTemperature(irr), plant.Noct, plant.TempCoefficient, plant.TotalPowerKW())
	pr := calc.PerformanceRatio(in.KWhReal, th.EnergyKWh)
	outlier := pr.IsValid() && calc.IsOutlierReading(pr.Value())
	if outlier {
		logger.Warn("performance ratio outside valid band, storing as outlier", slog.Float64("pr", pr.Value()))
	}

	baseline, err := p.store.GetBaselinePR(ctx, plant.ID, date)
	if err != nil {
		return Result{}, fmt.Errorf("looking up baseline: %w", err)
	}
	if in.IsCleaningDay && pr.IsValid() && !outlier {
		baseline = pr
	}

	soiling := calc.SoilingPercent(pr, baseline)
	lossKWh := calc.DailyLossKWh(in.KWhReal, th.EnergyKWh, baseline)
	lossCurrency := lossKWh * plant.EnergyPrice

	var cumulative calc.Loss
	if !in.IsCleaningDay {
		cumulative, err = p.cumulativeLoss(ctx, plant.ID, calc.LossPoint{Date: date, KWh: lossKWh, Currency: lossCurrency})
		if err != nil {
			return Result{}, err
		}
	}

	advice := calc.CleaningRecommendation(soiling, cumulative.Currency, plant.CleaningCost, lossCurrency)

	r := types.ProductionReading{
		ID:                     uuid.NewString(),
		PlantID:                plant.ID,
		UserID:                 in.UserID,
		Date:                   date,
		KWhReal:                in.KWhReal,
		Type:                   readingType,
		IsCleaningDay:          in.IsCleaningDay,
		Ghi:                    irr.Ghi,
		Poa:                    th.Poa.KWh,
		TempMax:                irr.TempMax,
		TempMean:               irr.TempMean,
		IrradianceSource:       irr.Source,
		CellTemp:               th.CellTemp,
		KWhTheoretical:         th.EnergyKWh,
		KWhLoss:                lossKWh,
		LossPercent:            calc.LossPercent(in.KWhReal, th.EnergyKWh),
		LossCurrency:           lossCurrency,
		PRCurrent:              pr,
		PRBaseline:             baseline,
		IsOutlier:              outlier,
		SoilingPercent:         soiling,
		CumulativeLossKWh:      cumulative.KWh,
		CumulativeLossCurrency: cumulative.Currency,
		Recommendation:         advice.Recommendation,
		DaysToBreakeven:        advice.DaysToBreakeven,
		CreatedAt:              p.now().UTC(),
	}

	if err := p.store.InsertReading(ctx, r); err != nil {
		if errors.Is(err, types.ErrDuplicate) {
			return Result{}, fmt.Errorf("%w: %w", ErrReadingExists, err)
		}
		return Result{}, err
	}

	logger.Info("reading processed",
		slog.Float64("kwhReal", r.KWhReal),
		slog.Float64("kwhTheoretical", r.KWhTheoretical),
		slog.Any("soilingPercent", r.SoilingPercent),
		slog.String("recommendation", string(r.Recommendation)))

	return Result{
		Reading:                r,
		SoilingPercent:         soiling,
		Recommendation:         advice.Recommendation,
		CumulativeLossCurrency: cumulative.Currency,
		DaysToBreakeven:        advice.DaysToBreakeven,
	}, nil
}

// Delete removes a reading so a corrected one can be inserted.
func (p *Pipeline) Delete(ctx context.Context, plantID string, date string) error {
	d, err := days.Parse(date)
	if err != nil {
		return ValidationErrors{{Field: "date", Message: err.Error()}}
	}
	return p.store.DeleteReading(ctx, plantID, d)
}

// cumulativeLoss integrates the losses since the last cleaning day,
// including the reading being processed.
func (p *Pipeline) cumulativeLoss(ctx context.Context, plantID string, current calc.LossPoint) (calc.Loss, error) {
	lastCleaning, err := p.store.GetLastCleaningDate(ctx, plantID, current.Date)
	if err != nil {
		return calc.Loss{}, fmt.Errorf("looking up last cleaning day: %w", err)
	}

	points, err := p.store.GetLossesBetween(ctx, plantID, lastCleaning, current.Date)
	if err != nil {
		return calc.Loss{}, fmt.Errorf("looking up losses since last cleaning: %w", err)
	}

	return calc.CumulativeLoss(append(points, current)), nil
}

// Production peaks around solar noon so the day's max is the better proxy.
func ambientTemperature(irr types.IrradianceData) float64 {
	return irr.TempMax
}
