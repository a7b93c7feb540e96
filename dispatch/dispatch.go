// Package dispatch exposes the scraper to agent callers through named operations.
//
// Dispatch is the only error boundary: every failure, including argument validation and
// panics inside an operation, comes back as an Envelope rather than an error.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-scrape-kym/models"
	"github.com/aluiziolira/go-scrape-kym/scraper"
)

// ErrUnknownOperation is returned for names outside the registered set.
var ErrUnknownOperation = errors.New("unknown operation")

// Operation names.
const (
	OpListNewest = "list_newest"
	OpGetDetail  = "get_detail"
)

// DefaultLimit is used when list_newest is called without a limit.
const DefaultLimit = 5

// Service is the scraping surface the dispatcher calls into.
type Service interface {
	ListNewest(ctx context.Context, limit int) ([]models.Entry, error)
	ListNewestWithDiagnostics(ctx context.Context, limit int) ([]models.Entry, *models.EmptyListing, error)
	GetDetail(ctx context.Context, url string) (*models.DetailResult, error)
}

// Operation is one registered entry point with its argument schema.
type Operation struct {
	Name        string
	Description string
	Fields      []Field
	run         func(ctx context.Context, svc Service, args Args) (any, error)
}

var registry = []Operation{
	{
		Name:        OpListNewest,
		Description: "Get the newest meme submissions from Know Your Meme",
		Fields: []Field{
			{Name: "limit", Kind: KindInteger, Default: DefaultLimit, Description: "Maximum number of memes to return"},
			{Name: "return_html_on_failure", Kind: KindBoolean, Default: false, Description: "Return the raw listing HTML when no memes are found"},
		},
		run: func(ctx context.Context, svc Service, args Args) (any, error) {
			limit := args.Int("limit")
			if args.Bool("return_html_on_failure") {
				entries, empty, err := svc.ListNewestWithDiagnostics(ctx, limit)
				if err != nil {
					return nil, err
				}
				if empty != nil {
					return empty, nil
				}
				if entries == nil {
					entries = []models.Entry{}
				}
				return entries, nil
			}

			entries, err := svc.ListNewest(ctx, limit)
			if err != nil {
				return nil, err
			}
			if entries == nil {
				entries = []models.Entry{}
			}
			return entries, nil
		},
	},
	{
		Name:        OpGetDetail,
		Description: "Get the raw HTML page for a specific meme",
		Fields: []Field{
			{Name: "url", Kind: KindString, Required: true, Description: "URL of the meme to fetch details for"},
		},
		run: func(ctx context.Context, svc Service, args Args) (any, error) {
			result, err := svc.GetDetail(ctx, args.String("url"))
			if err != nil {
				return nil, err
			}
			if result == nil {
				return nil, errors.New("get_detail: empty result")
			}
			return result, nil
		},
	},
}

// Operations returns the registered operations in a stable order.
func Operations() []Operation {
	out := make([]Operation, len(registry))
	copy(out, registry)
	return out
}

// Dispatcher maps operation names to Service calls. It keeps no per-call state and is
// safe for concurrent use.
type Dispatcher struct {
	svc     Service
	ops     map[string]Operation
	logger  *slog.Logger
	metrics *scraper.Metrics
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records dispatch outcomes on m.
func WithMetrics(m *scraper.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// New builds a dispatcher over svc.
func New(svc Service, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		svc:    svc,
		ops:    make(map[string]Operation, len(registry)),
		logger: slog.Default(),
	}
	for _, op := range registry {
		d.ops[op.Name] = op
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatch")
	return d
}

// Dispatch runs the named operation with args and wraps the outcome in an Envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (env Envelope) {
	if ctx == nil {
		ctx = context.Background()
	}

	op, ok := d.ops[name]
	if !ok {
		d.logger.Warn("unknown operation", slog.String("operation", name))
		d.metrics.IncDispatch("unknown", "unknown_operation")
		return Fail(ErrUnknownOperation)
	}

	validated, err := validate(op.Name, op.Fields, args)
	if err != nil {
		d.logger.Warn("invalid arguments", slog.String("operation", name), slog.Any("error", err))
		d.metrics.IncDispatch(name, "invalid_arguments")
		return Fail(err)
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("operation panicked", slog.String("operation", name), slog.Any("panic", r))
			d.metrics.IncDispatch(name, "panic")
			env = Fail(fmt.Errorf("%s: internal error: %v", name, r))
		}
	}()

	d.logger.Debug("dispatching", slog.String("operation", name), slog.Any("args", map[string]any(validated)))
	data, err := op.run(ctx, d.svc, validated)
	if err != nil {
		d.logger.Warn("operation failed", slog.String("operation", name), slog.Any("error", err))
		d.metrics.IncDispatch(name, "error")
		return Fail(err)
	}

	d.metrics.IncDispatch(name, "success")
	return Ok(data)
}
