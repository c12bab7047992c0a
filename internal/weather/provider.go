package weather

import (
	"context"
	"net/http"
)

// DocumentFetcher retrieves a region page as decoded text.
// *fetch.Fetcher satisfies it.
type DocumentFetcher interface {
	GetText(ctx context.Context, url string, header http.Header) (string, error)
}

// browserHeader is sent with every page request; the source rejects default clients.
func browserHeader() http.Header {
	return http.Header{
		"User-Agent":      {"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"},
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": {"zh-CN,zh;q=0.9,en;q=0.8"},
	}
}
