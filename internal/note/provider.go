// Package note picks the short "daily note" printed at the bottom of a report.
package note

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Source yields a candidate note.
type Source interface {
	Name() string
	Note(ctx context.Context) (string, error)
}

// Provider tries each source in order and falls back to a local pool.
type Provider struct {
	sources []Source
	pool    []string
	now     func() time.Time
	logger  *zap.Logger
}

// NewProvider creates a Provider. An empty pool selects DefaultPool; a nil
// now selects time.Now.
func NewProvider(sources []Source, pool []string, now func() time.Time, logger *zap.Logger) *Provider {
	if len(pool) == 0 {
		pool = DefaultPool
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		sources: sources,
		pool:    pool,
		now:     now,
		logger:  logger,
	}
}

// Note never fails: the first source returning non-blank text wins, otherwise
// the pool entry for the current day of year is used.
func (p *Provider) Note(ctx context.Context) string {
	for _, src := range p.sources {
		text, err := src.Note(ctx)
		if err != nil {
			p.logger.Warn("note source failed", zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			p.logger.Debug("note selected", zap.String("source", src.Name()))
			return text
		}
		p.logger.Debug("note source returned nothing", zap.String("source", src.Name()))
	}
	return p.Fallback()
}

// Fallback returns the pool entry for today. The same day always yields the
// same entry.
func (p *Provider) Fallback() string {
	return p.pool[p.now().YearDay()%len(p.pool)]
}

// DefaultPool is used when every remote source is unavailable.
var DefaultPool = []string{
	"愿你的一天充满阳光和微笑！",
	"记得按时吃饭，照顾好自己。",
	"今天也要元气满满哦！",
	"出门看看天，心情也会变好。",
	"慢慢来，一切都来得及。",
	"无论晴雨，都有人在惦记你。",
	"多喝水，少熬夜，好好生活。",
	"风有约，花不误，岁岁如此。",
	"愿所有的美好都如期而至。",
	"今天的你也很棒！",
}
