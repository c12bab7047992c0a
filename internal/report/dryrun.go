package report

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/i474232898/weather-report/internal/weather"
	"github.com/i474232898/weather-report/internal/wechat"
)

// LogSender logs the message that would be sent instead of sending it.
type LogSender struct {
	Link   string
	Logger *zap.Logger
}

// Send logs the message payload as JSON. A nil Logger discards it.
func (s LogSender) Send(_ context.Context, rec weather.Record, note, recipientID, templateID string) error {
	payload, err := json.Marshal(wechat.BuildMessage(rec, note, recipientID, templateID, s.Link))
	if err != nil {
		return err
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("dry run: message not sent", zap.ByteString("payload", payload))
	return nil
}
