package fetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/stackhound/stackhound/internal/config"
	"github.com/stackhound/stackhound/internal/proxy"
	"github.com/stackhound/stackhound/internal/types"
)

// HTTPFetcher implements Fetcher using net/http. Proxying is chosen per
// request by tier, so the fetcher keeps one client per tier, built
// lazily and sharing nothing but the configuration.
type HTTPFetcher struct {
	cfg        *config.FetcherConfig
	timeout    time.Duration
	proxies    *proxy.Manager
	logger     *slog.Logger
	userAgents []string
	uaIndex    atomic.Int64

	mu      sync.Mutex
	clients map[proxy.Tier]*http.Client
}

// NewHTTPFetcher creates an HTTP fetcher. The timeout is the per-request
// ceiling, normally the engine's handler budget.
func NewHTTPFetcher(cfg *config.FetcherConfig, timeout time.Duration, proxies *proxy.Manager, logger *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		cfg:        cfg,
		timeout:    timeout,
		proxies:    proxies,
		logger:     logger.With("component", "http_fetcher"),
		userAgents: cfg.UserAgents,
		clients:    make(map[proxy.Tier]*http.Client),
	}
}

// Fetch retrieves the request URL and returns a rendered-or-not snapshot.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.CrawlRequest, tier proxy.Tier) (*types.PageSnapshot, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URLString(), nil)
	if err != nil {
		return nil, &types.PageError{URL: req.URLString(), Class: types.FailureContentNotFound, Err: err}
	}

	httpReq.Header.Set("User-Agent", f.nextUserAgent())
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	httpReq.Header.Set("Connection", "keep-alive")

	start := time.Now()
	httpResp, err := f.clientFor(tier).Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		return nil, &types.PageError{URL: req.URLString(), Class: types.FailurePageLoadTimeout, Err: err}
	}
	defer httpResp.Body.Close()

	var reader io.Reader = httpResp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}
	reader, err = decompressReader(httpResp.Header.Get("Content-Encoding"), reader)
	if err != nil {
		return nil, &types.PageError{URL: req.URLString(), Class: types.FailurePageLoadTimeout, Err: err}
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.PageError{URL: req.URLString(), Class: types.FailurePageLoadTimeout, Err: err}
	}
	html := string(body)

	if IsBlocked(httpResp.StatusCode, html) {
		return nil, &types.PageError{
			URL:        req.URLString(),
			Class:      types.FailureBlockDetected,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("blocked response (HTTP %d)", httpResp.StatusCode),
		}
	}
	if httpResp.StatusCode == http.StatusNotFound || httpResp.StatusCode == http.StatusGone {
		return nil, &types.PageError{
			URL:        req.URLString(),
			Class:      types.FailureContentNotFound,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", httpResp.StatusCode),
		}
	}
	if httpResp.StatusCode >= 400 {
		return nil, &types.PageError{
			URL:        req.URLString(),
			Class:      types.FailurePageLoadTimeout,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", httpResp.StatusCode),
		}
	}

	snap := &types.PageSnapshot{
		URL:           req.URLString(),
		FinalURL:      httpResp.Request.URL.String(),
		StatusCode:    httpResp.StatusCode,
		HTML:          html,
		FetchedVia:    ViaHTTP,
		FetchDuration: duration,
		FetchedAt:     time.Now().UTC(),
	}
	markRendered(snap, req.Label)

	f.logger.Debug("fetch complete",
		"url", req.URLString(),
		"status", snap.StatusCode,
		"size", len(body),
		"tier", tier.String(),
		"duration", duration,
	)
	return snap, nil
}

// Close releases idle connections across all tier clients.
func (f *HTTPFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, client := range f.clients {
		client.CloseIdleConnections()
	}
	return nil
}

func (f *HTTPFetcher) clientFor(tier proxy.Tier) *http.Client {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[tier]; ok {
		return client
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        f.cfg.MaxIdleConns,
		MaxIdleConnsPerHost: f.cfg.MaxIdleConns / 2,
		IdleConnTimeout:     f.cfg.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: f.cfg.TLSInsecure,
		},
		// Decompression is handled here so brotli works too.
		DisableCompression: true,
	}
	if f.proxies != nil {
		transport.Proxy = func(*http.Request) (*url.URL, error) {
			return f.proxies.ServerFor(tier), nil
		}
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   f.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !f.cfg.FollowRedirects {
				return http.ErrUseLastResponse
			}
			if len(via) >= f.cfg.MaxRedirects {
				return fmt.Errorf("max redirects (%d) reached", f.cfg.MaxRedirects)
			}
			return nil
		},
	}
	if jar, err := cookiejar.New(nil); err == nil {
		client.Jar = jar
	}

	f.clients[tier] = client
	return client
}

func (f *HTTPFetcher) nextUserAgent() string {
	if len(f.userAgents) == 0 {
		return "stackhound/" + config.Version
	}
	idx := f.uaIndex.Add(1) % int64(len(f.userAgents))
	return f.userAgents[idx]
}

// decompressReader wraps a reader with the decompressor matching the
// Content-Encoding header. Handles gzip, deflate, and brotli.
func decompressReader(encoding string, reader io.Reader) (io.Reader, error) {
	switch encoding {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}
