package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/net/publicsuffix"

	"github.com/aluiziolira/go-scrape-kym/config"
	"github.com/aluiziolira/go-scrape-kym/models"
	"github.com/aluiziolira/go-scrape-kym/parser"
)

const (
	phaseList   = "list"
	phaseDetail = "detail"
)

// Scraper fetches the newest listing and entry pages from one site.
// It holds no per-call state and is safe for concurrent use.
type Scraper struct {
	cfg       *config.Config
	base      *url.URL
	collector *colly.Collector
	logger    *slog.Logger
	Metrics   *Metrics
	now       func() time.Time
}

// Option customises a Scraper at construction.
type Option func(*Scraper)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics shares a metrics bundle, e.g. with a Dispatcher.
func WithMetrics(m *Metrics) Option {
	return func(s *Scraper) {
		s.Metrics = m
	}
}

// NewScraper builds a scraper configured from cfg.
func NewScraper(cfg *config.Config, opts ...Option) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	// Domain checks happen in NormalizeDetailURL so that www. and other subdomains of the
	// site stay reachable.
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
	)
	collector.SetRequestTimeout(cfg.Timeout)

	s := &Scraper{
		cfg:       cfg,
		base:      parsed,
		collector: collector,
		logger:    slog.Default(),
		Metrics:   NewMetrics(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scraper")

	s.SetTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})
	return s, nil
}

// SetTransport replaces the underlying round tripper. Response decoding is kept.
func (s *Scraper) SetTransport(rt http.RoundTripper) {
	s.collector.WithTransport(newDecodingTransport(rt))
}

// BaseURL returns the site root entries are resolved against.
func (s *Scraper) BaseURL() string {
	return s.base.String()
}

// ListNewest returns up to limit entries from the newest-submissions listing, in listing
// order. A non-positive limit returns an empty slice without making a request. Markup that
// yields no entries is logged and returned as an empty slice.
func (s *Scraper) ListNewest(ctx context.Context, limit int) ([]models.Entry, error) {
	entries, _, err := s.listNewest(ctx, limit)
	return entries, err
}

// ListNewestWithDiagnostics is ListNewest, plus the raw listing page when it was fetched but
// yielded no entries. The diagnostic is nil whenever entries were found or no request was made.
func (s *Scraper) ListNewestWithDiagnostics(ctx context.Context, limit int) ([]models.Entry, *models.EmptyListing, error) {
	entries, pg, err := s.listNewest(ctx, limit)
	if err != nil || len(entries) > 0 || pg == nil {
		return entries, nil, err
	}
	return entries, &models.EmptyListing{
		Reason:     models.NoEntriesFound,
		URL:        pg.FinalURL,
		StatusCode: pg.StatusCode,
		HTML:       string(pg.Body),
	}, nil
}

func (s *Scraper) listNewest(ctx context.Context, limit int) ([]models.Entry, *page, error) {
	if limit <= 0 {
		return []models.Entry{}, nil, nil
	}

	target := s.cfg.ListingURL()
	pg, err := s.fetch(ctx, phaseList, target)
	if err != nil {
		return nil, nil, err
	}

	entries, err := parser.ParseListing(string(pg.Body), pg.FinalURL)
	if err != nil {
		var parseErr *parser.ParseError
		if !errors.As(err, &parseErr) {
			return nil, nil, err
		}
		s.logger.Warn("listing markup could not be parsed",
			slog.String("url", target),
			slog.Int("bytes", len(pg.Body)),
			slog.Any("error", err),
		)
		s.Metrics.IncParseEmpty()
		return []models.Entry{}, pg, nil
	}

	if len(entries) == 0 {
		s.logger.Warn("listing matched no entries",
			slog.String("url", target),
			slog.String("selector", parser.EntrySelector),
			slog.Int("status", pg.StatusCode),
			slog.Int("bytes", len(pg.Body)),
		)
		s.Metrics.IncParseEmpty()
		return entries, pg, nil
	}

	if len(entries) > limit {
		entries = entries[:limit:limit]
	}
	s.Metrics.AddEntries(len(entries))
	s.logger.Debug("listing parsed", slog.Int("entries", len(entries)), slog.Int("limit", limit))
	return entries, pg, nil
}

// GetDetail fetches one entry page and returns its raw HTML. Site paths such as
// "/memes/doge" or "memes/doge" are resolved against the base URL; anything outside the site's entry
// pages fails with ErrInvalidArgument before a request is made.
func (s *Scraper) GetDetail(ctx context.Context, rawURL string) (*models.DetailResult, error) {
	target, err := s.NormalizeDetailURL(rawURL)
	if err != nil {
		s.Metrics.IncError(errorTypeLabel(err))
		return nil, err
	}

	pg, err := s.fetch(ctx, phaseDetail, target)
	if err != nil {
		return nil, err
	}

	return &models.DetailResult{
		URL:        target,
		FinalURL:   pg.FinalURL,
		StatusCode: pg.StatusCode,
		HTML:       string(pg.Body),
		FetchedAt:  s.now().UTC(),
	}, nil
}

// NormalizeDetailURL validates rawURL as an entry page on the configured site. Absolute
// URLs are returned unchanged. Site paths, with or without the leading slash, are joined
// to the base URL.
func (s *Scraper) NormalizeDetailURL(rawURL string) (string, error) {
	target := strings.TrimSpace(rawURL)
	if target == "" {
		return "", fmt.Errorf("%w: url is empty", ErrInvalidArgument)
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("%w: url %q: %v", ErrInvalidArgument, rawURL, err)
	}
	if u.Scheme == "" && u.Host == "" && !strings.HasPrefix(target, "//") {
		target = strings.TrimSuffix(s.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(target, "/")
		if u, err = url.Parse(target); err != nil {
			return "", fmt.Errorf("%w: url %q: %v", ErrInvalidArgument, rawURL, err)
		}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: url %q must be an absolute http(s) URL or a site path", ErrInvalidArgument, rawURL)
	}
	if !s.sameSite(u.Hostname()) {
		return "", fmt.Errorf("%w: url %q is not on %s", ErrInvalidArgument, rawURL, s.base.Hostname())
	}
	if !parser.IsEntryPath(u.EscapedPath()) {
		return "", fmt.Errorf("%w: url %q is not an entry page", ErrInvalidArgument, rawURL)
	}
	return target, nil
}

func (s *Scraper) sameSite(host string) bool {
	want := s.base.Hostname()
	if strings.EqualFold(host, want) {
		return true
	}
	got, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(host))
	if err != nil {
		return false
	}
	root, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(want))
	if err != nil {
		return false
	}
	return got == root
}
