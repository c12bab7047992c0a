package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/i474232898/weather-report/internal/fetch"
	"github.com/i474232898/weather-report/internal/weather"
)

const (
	defaultSendEndpoint = "https://api.weixin.qq.com/cgi-bin/message/template/send"
	defaultMessageLink  = "https://mp.weixin.qq.com"

	colorText = "#173177"
	colorTemp = "#FF0000"
	colorNote = "#FF00FF"
)

// authFailureCodes signal an invalid or expired access token.
var authFailureCodes = map[int]bool{
	40001: true, // invalid credential
	40014: true, // invalid access_token
	42001: true, // access_token expired
}

// IsAuthFailure reports whether err is an API answer rejecting the token.
func IsAuthFailure(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && authFailureCodes[apiErr.Code]
}

// SendError is a terminal failure to deliver a message.
type SendError struct {
	Attempts int
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send template message: %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Field is one template slot.
type Field struct {
	Value string `json:"value"`
	Color string `json:"color"`
}

// Message is the template message body.
type Message struct {
	ToUser     string           `json:"touser"`
	TemplateID string           `json:"template_id"`
	URL        string           `json:"url"`
	Data       map[string]Field `json:"data"`
}

// BuildMessage lays a weather record and note out on the template fields.
func BuildMessage(rec weather.Record, note, recipientID, templateID, link string) Message {
	return Message{
		ToUser:     recipientID,
		TemplateID: templateID,
		URL:        link,
		Data: map[string]Field{
			"date":       {Value: rec.Date, Color: colorText},
			"region":     {Value: rec.City, Color: colorText},
			"weather":    {Value: rec.WeatherType, Color: colorText},
			"temp":       {Value: rec.TemperatureRange, Color: colorTemp},
			"wind_dir":   {Value: rec.Wind, Color: colorText},
			"today_note": {Value: note, Color: colorNote},
		},
	}
}

// TokenSource hands out access tokens. *TokenManager satisfies it.
type TokenSource interface {
	Token(ctx context.Context, forceRefresh bool) (string, error)
}

// Dispatcher sends template messages, refreshing the token once if the
// platform rejects it.
type Dispatcher struct {
	doer     Doer
	tokens   TokenSource
	endpoint string
	link     string
	logger   *zap.Logger
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSendEndpoint overrides the template send endpoint.
func WithSendEndpoint(endpoint string) DispatcherOption {
	return func(d *Dispatcher) { d.endpoint = endpoint }
}

// WithMessageLink sets the page a tap on the message opens.
func WithMessageLink(link string) DispatcherOption {
	return func(d *Dispatcher) {
		if link != "" {
			d.link = link
		}
	}
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(doer Doer, tokens TokenSource, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		doer:     doer,
		tokens:   tokens,
		endpoint: defaultSendEndpoint,
		link:     defaultMessageLink,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send delivers one weather report. A token rejection triggers exactly one
// forced refresh and one more attempt; any other API error is terminal.
func (d *Dispatcher) Send(ctx context.Context, rec weather.Record, note, recipientID, templateID string) error {
	if recipientID == "" || templateID == "" {
		return &SendError{Err: errors.New("recipient or template id not configured")}
	}
	log := d.logger.With(zap.String("city", rec.City))

	body, err := encodeMessage(BuildMessage(rec, note, recipientID, templateID, d.link))
	if err != nil {
		return &SendError{Err: err}
	}

	token, err := d.tokens.Token(ctx, false)
	if err != nil {
		return err
	}

	err = d.post(ctx, token, body)
	if err == nil {
		log.Info("template message sent")
		return nil
	}
	if !IsAuthFailure(err) {
		return &SendError{Attempts: 1, Err: err}
	}

	log.Warn("access token rejected; refreshing", zap.Error(err))
	token, err = d.tokens.Token(ctx, true)
	if err != nil {
		return err
	}
	if err := d.post(ctx, token, body); err != nil {
		return &SendError{Attempts: 2, Err: err}
	}
	log.Info("template message sent after token refresh")
	return nil
}

func (d *Dispatcher) post(ctx context.Context, token string, body []byte) error {
	resp, err := d.doer.Do(ctx, fetch.Request{
		Method: http.MethodPost,
		URL:    d.endpoint + "?access_token=" + url.QueryEscape(token),
		Header: http.Header{"Content-Type": {"application/json; charset=utf-8"}},
		Body:   body,
	})
	if err != nil {
		return err
	}

	var result struct {
		APIError
		MsgID int64 `json:"msgid"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return fmt.Errorf("decode send response: %w", err)
	}
	if result.Code != 0 {
		apiErr := result.APIError
		return &apiErr
	}
	return nil
}

// encodeMessage marshals msg without HTML escaping.
func encodeMessage(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(msg); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
