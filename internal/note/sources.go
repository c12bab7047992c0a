package note

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"
)

const (
	sweetNothingsURL = "https://api.lovelive.tools/api/SweetNothings/Serialization/Json"
	hitokotoURL      = "https://v1.hitokoto.cn/?encode=json"
)

var errEmptyNote = errors.New("response carried no note")

// TextFetcher retrieves a URL as text. *fetch.Fetcher satisfies it.
type TextFetcher interface {
	GetText(ctx context.Context, url string, header http.Header) (string, error)
}

// ParseFunc extracts a note from a response body.
type ParseFunc func(body string) (string, error)

// RemoteSource pairs an endpoint with the parser for its response shape.
type RemoteSource struct {
	name     string
	endpoint string
	header   http.Header
	fetcher  TextFetcher
	parse    ParseFunc
}

// NewRemoteSource creates a RemoteSource.
func NewRemoteSource(name, endpoint string, fetcher TextFetcher, parse ParseFunc) *RemoteSource {
	return &RemoteSource{
		name:     name,
		endpoint: endpoint,
		header:   http.Header{"Accept": {"application/json, application/rss+xml, */*"}},
		fetcher:  fetcher,
		parse:    parse,
	}
}

// Name identifies the source in logs.
func (s *RemoteSource) Name() string {
	return s.name
}

// Note fetches the endpoint and parses the note out of the body.
func (s *RemoteSource) Note(ctx context.Context) (string, error) {
	body, err := s.fetcher.GetText(ctx, s.endpoint, s.header)
	if err != nil {
		return "", err
	}
	text, err := s.parse(body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", s.name, err)
	}
	return text, nil
}

// DefaultSources returns the remote sources in priority order. feedURL is
// optional.
func DefaultSources(fetcher TextFetcher, feedURL string) []Source {
	sources := []Source{
		NewRemoteSource("sweet-nothings", sweetNothingsURL, fetcher, ParseSweetNothings),
		NewRemoteSource("hitokoto", hitokotoURL, fetcher, ParseHitokoto),
	}
	if feedURL != "" {
		sources = append(sources, NewRemoteSource("feed", feedURL, fetcher, ParseFeed))
	}
	return sources
}

// ParseSweetNothings reads {"returnObj": ["..."]}.
func ParseSweetNothings(body string) (string, error) {
	var payload struct {
		ReturnObj []string `json:"returnObj"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return "", err
	}
	for _, s := range payload.ReturnObj {
		if s = strings.TrimSpace(s); s != "" {
			return s, nil
		}
	}
	return "", errEmptyNote
}

// ParseHitokoto reads {"hitokoto": "...", "from": "..."}.
func ParseHitokoto(body string) (string, error) {
	var payload struct {
		Hitokoto string `json:"hitokoto"`
		From     string `json:"from"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return "", err
	}
	text := strings.TrimSpace(payload.Hitokoto)
	if text == "" {
		return "", errEmptyNote
	}
	if from := strings.TrimSpace(payload.From); from != "" {
		text += " —— " + from
	}
	return text, nil
}

// ParseFeed takes the title of the newest RSS/Atom/JSON feed item.
func ParseFeed(body string) (string, error) {
	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return "", err
	}
	for _, item := range feed.Items {
		if t := strings.TrimSpace(item.Title); t != "" {
			return t, nil
		}
	}
	return "", errEmptyNote
}
