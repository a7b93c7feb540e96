package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/gocolly/colly/v2"
)

// Headers sent with every request, matching a desktop browser.
var defaultHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Accept-Encoding":           acceptEncoding,
	"Upgrade-Insecure-Requests": "1",
	"Cache-Control":             "max-age=0",
}

type page struct {
	StatusCode int
	Body       []byte
	FinalURL   string
}

// fetch issues a GET for target, retrying transient failures with capped exponential
// backoff. Non-2xx/3xx statuses are returned as *NetworkError.
func (s *Scraper) fetch(ctx context.Context, phase, target string) (*page, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			netErr := classifyError(target, err, 0)
			s.Metrics.IncError(errorTypeLabel(netErr))
			return nil, netErr
		}

		pg, err := s.fetchOnce(ctx, phase, target)
		if err == nil {
			return pg, nil
		}

		if !isRetryable(err) || attempt > s.cfg.MaxRetries {
			s.Metrics.IncError(errorTypeLabel(err))
			s.logger.Debug("request failed",
				slog.String("url", target),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			return nil, err
		}

		delay := s.backoff(attempt)
		s.Metrics.IncRetries()
		s.logger.Debug("retrying request",
			slog.String("url", target),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.Metrics.IncError(errorTypeLabel(err))
			return nil, err
		case <-timer.C:
		}
	}
}

// fetchOnce performs a single request on a clone of the base collector. Clones share the
// HTTP client and its connection pool but not callbacks, so concurrent calls are isolated.
func (s *Scraper) fetchOnce(ctx context.Context, phase, target string) (*page, error) {
	c := s.collector.Clone()
	c.Context = ctx

	var got *page
	c.OnRequest(func(r *colly.Request) {
		for k, v := range defaultHeaders {
			r.Headers.Set(k, v)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		got = &page{
			StatusCode: r.StatusCode,
			Body:       r.Body,
			FinalURL:   r.Request.URL.String(),
		}
	})

	start := time.Now()
	s.Metrics.IncRequest(phase)
	err := c.Visit(target)
	s.Metrics.ObserveDuration(time.Since(start))

	if err != nil {
		status := 0
		if got != nil {
			status = got.StatusCode
		}
		return nil, classifyError(target, err, status)
	}
	if got == nil {
		return nil, classifyError(target, nil, 0)
	}
	if err := classifyError(target, nil, got.StatusCode); err != nil {
		return nil, err
	}

	s.logger.Debug("fetch complete",
		slog.String("url", target),
		slog.Int("status", got.StatusCode),
		slog.Int("bytes", len(got.Body)),
		slog.Duration("duration", time.Since(start)),
	)
	return got, nil
}

func (s *Scraper) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := s.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := s.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}
