// Package report runs one reporting pass over the configured cities.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/weather-report/internal/fetch"
	"github.com/i474232898/weather-report/internal/weather"
	"github.com/i474232898/weather-report/internal/wechat"
)

// WeatherLookup finds today's weather for a city.
type WeatherLookup interface {
	Lookup(ctx context.Context, city string) (weather.Record, error)
}

// NoteProvider supplies the daily note; it never fails.
type NoteProvider interface {
	Note(ctx context.Context) string
}

// Sender delivers a report to one recipient.
type Sender interface {
	Send(ctx context.Context, rec weather.Record, note, recipientID, templateID string) error
}

// Recipient identifies who receives the report and with which template.
type Recipient struct {
	OpenID     string
	TemplateID string
}

// Result is the outcome for one city.
type Result struct {
	City   string
	Record weather.Record
	Err    error
}

// Summary is the outcome of a whole run.
type Summary struct {
	RunID     string
	Results   []Result
	Succeeded int
}

// Orchestrator processes cities one after another with a fixed pause between
// them.
type Orchestrator struct {
	lookup    WeatherLookup
	notes     NoteProvider
	sender    Sender
	recipient Recipient
	cityDelay time.Duration
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// New creates a new Orchestrator.
func New(lookup WeatherLookup, notes NoteProvider, sender Sender, recipient Recipient, cityDelay time.Duration, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		lookup:    lookup,
		notes:     notes,
		sender:    sender,
		recipient: recipient,
		cityDelay: cityDelay,
		logger:    logger,
		sleep:     fetch.Sleep,
	}
}

// Run reports every city in order. A failure for one city never stops the
// remaining ones; only context cancellation ends the run early.
func (o *Orchestrator) Run(ctx context.Context, cities []string) Summary {
	summary := Summary{RunID: uuid.NewString()}
	log := o.logger.With(zap.String("run_id", summary.RunID))

	if len(cities) == 0 {
		log.Warn("no cities configured; nothing to report")
		return summary
	}
	log.Info("report run started", zap.Strings("cities", cities))

	for i, city := range cities {
		if i > 0 && o.cityDelay > 0 {
			if err := o.sleep(ctx, o.cityDelay); err != nil {
				log.Warn("report run interrupted", zap.Error(err))
				break
			}
		}

		res := o.reportCity(ctx, log.With(zap.String("city", city)), city)
		summary.Results = append(summary.Results, res)
		if res.Err == nil {
			summary.Succeeded++
		}
	}

	log.Info("report run completed",
		zap.Int("cities", len(cities)),
		zap.Int("succeeded", summary.Succeeded),
	)
	return summary
}

func (o *Orchestrator) reportCity(ctx context.Context, log *zap.Logger, city string) Result {
	res := Result{City: city}

	rec, err := o.lookup.Lookup(ctx, city)
	if err != nil {
		res.Err = err
		switch {
		case errors.Is(err, weather.ErrNotFound):
			log.Warn("city not listed on any region page", zap.Error(err))
		case errors.Is(err, weather.ErrSourcesUnavailable):
			log.Error("weather sources unreachable", zap.Error(err))
		default:
			log.Error("weather lookup failed", zap.Error(err))
		}
		return res
	}
	res.Record = rec
	log.Info("weather found",
		zap.String("temperature", rec.TemperatureRange),
		zap.String("weather", rec.WeatherType),
		zap.String("wind", rec.Wind),
	)

	note := o.notes.Note(ctx)
	log.Debug("daily note", zap.String("note", note))

	if err := o.sender.Send(ctx, rec, note, o.recipient.OpenID, o.recipient.TemplateID); err != nil {
		res.Err = err
		if errors.Is(err, wechat.ErrAuth) {
			log.Error("access token unavailable", zap.Error(err))
		} else {
			log.Error("report delivery failed", zap.Error(err))
		}
		return res
	}

	log.Info("report delivered")
	return res
}
