// Package resolver is the service layer over linemap: it builds mappers with
// a shared scanner configuration, caches them by input digest, and records
// traces, RED metrics and debug logs for every build.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/linemap/pkg/cache"
	"github.com/Sumatoshi-tech/linemap/pkg/linemap"
	"github.com/Sumatoshi-tech/linemap/pkg/observability"
)

const (
	tracerName = "linemap/resolver"
	spanBuild  = "resolver.build"
	opBuild    = "build"
)

// Span attribute keys.
const (
	attrLines    = "linemap.lines"
	attrRecords  = "linemap.records"
	attrCacheHit = "linemap.cache_hit"
	attrTopLevel = "linemap.top_level"
)

// Error kinds recorded on failed spans.
const (
	errKindInput    = "input"
	errKindCanceled = "canceled"
)

// Attribution is the inclusion chain of one flattened line.
type Attribution struct {
	Line  int           `json:"line"  yaml:"line"`
	Stack linemap.Stack `json:"stack" yaml:"stack"`
}

// Options configures a Resolver. Zero values are usable.
type Options struct {
	// Pattern is the directive pattern. Empty selects linemap.DefaultPattern.
	Pattern string

	// MatchTimeout bounds a single directive match. Zero keeps the scanner default.
	MatchTimeout time.Duration

	// TopLevel names the file assumed when the caller passes an empty name.
	TopLevel string

	// Cache holds built mappers. Nil disables caching.
	Cache *cache.MapperCache

	// Tracer creates build spans. Nil uses the global provider.
	Tracer trace.Tracer

	// Metrics records RED metrics. Nil disables them.
	Metrics *observability.REDMetrics

	// Logger receives debug logs. Nil uses slog.Default().
	Logger *slog.Logger
}

// Resolver builds and queries mappers. It is safe for concurrent use.
type Resolver struct {
	scanner  *linemap.Scanner
	cache    *cache.MapperCache
	tracer   trace.Tracer
	metrics  *observability.REDMetrics
	logger   *slog.Logger
	topLevel string
}

// New validates the pattern and returns a resolver.
func New(opts Options) (*Resolver, error) {
	scanOpts := []linemap.ScannerOption{linemap.WithPattern(opts.Pattern)}
	if opts.MatchTimeout > 0 {
		scanOpts = append(scanOpts, linemap.WithMatchTimeout(opts.MatchTimeout))
	}

	scanner, err := linemap.NewScanner(scanOpts...)
	if err != nil {
		return nil, fmt.Errorf("new resolver: %w", err)
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		scanner:  scanner,
		cache:    opts.Cache,
		tracer:   tracer,
		metrics:  opts.Metrics,
		logger:   logger,
		topLevel: opts.TopLevel,
	}, nil
}

// Pattern returns the directive pattern in use.
func (r *Resolver) Pattern() string {
	return r.scanner.Pattern()
}

// Mapper returns the mapper for text, building it on a cache miss.
func (r *Resolver) Mapper(ctx context.Context, text, topLevel string) (*linemap.Mapper, error) {
	if topLevel == "" {
		topLevel = r.topLevel
	}

	ctx, span := r.tracer.Start(ctx, spanBuild, trace.WithAttributes(
		attribute.String(attrTopLevel, topLevel),
	))
	defer span.End()

	err := ctx.Err()
	if err != nil {
		observability.RecordSpanError(span, err, errKindCanceled)

		return nil, fmt.Errorf("resolve: %w", err)
	}

	key := cache.Digest(text, topLevel, r.scanner.Pattern())

	if r.cache != nil {
		if m := r.cache.Get(key); m != nil {
			span.SetAttributes(attribute.Bool(attrCacheHit, true), attribute.Int(attrLines, m.Lines()))

			return m, nil
		}
	}

	span.SetAttributes(attribute.Bool(attrCacheHit, false))

	m, err := r.build(ctx, text, topLevel)
	if err != nil {
		observability.RecordSpanError(span, err, errKindInput)

		return nil, fmt.Errorf("resolve: %w", err)
	}

	span.SetAttributes(attribute.Int(attrLines, m.Lines()), attribute.Int(attrRecords, m.Tree().Len()))

	if r.cache != nil {
		r.cache.Put(key, m, int64(len(text)))
	}

	return m, nil
}

func (r *Resolver) build(ctx context.Context, text, topLevel string) (*linemap.Mapper, error) {
	start := time.Now()

	if r.metrics != nil {
		done := r.metrics.TrackInflight(ctx, opBuild)
		defer done()
	}

	m, err := r.scanner.Build(linemap.SplitLines(text), topLevel)

	if r.metrics != nil {
		r.metrics.Observe(ctx, opBuild, start, err)
	}

	if err != nil {
		r.logger.DebugContext(ctx, "build failed", slog.String("top_level", topLevel), slog.Any("error", err))

		return nil, err
	}

	r.logger.DebugContext(ctx, "mapper built",
		slog.String("top_level", m.Source()),
		slog.Int("lines", m.Lines()),
		slog.Int("records", m.Tree().Len()),
		slog.Int("height", m.Tree().Height()),
		slog.Duration("elapsed", time.Since(start)),
	)

	return m, nil
}

// MapLines attributes each requested line of text. It fails on the first
// line outside the text.
func (r *Resolver) MapLines(ctx context.Context, text, topLevel string, lines []int) ([]Attribution, error) {
	m, err := r.Mapper(ctx, text, topLevel)
	if err != nil {
		return nil, err
	}

	return Attribute(m, lines)
}

// MapAll attributes every line of text.
func (r *Resolver) MapAll(ctx context.Context, text, topLevel string) ([]Attribution, error) {
	m, err := r.Mapper(ctx, text, topLevel)
	if err != nil {
		return nil, err
	}

	return AttributeAll(m)
}

// Records returns the directive records of text.
func (r *Resolver) Records(ctx context.Context, text, topLevel string) ([]linemap.Record, error) {
	m, err := r.Mapper(ctx, text, topLevel)
	if err != nil {
		return nil, err
	}

	return m.Records(), nil
}

// Attribute maps lines through m.
func Attribute(m *linemap.Mapper, lines []int) ([]Attribution, error) {
	out := make([]Attribution, 0, len(lines))

	for _, line := range lines {
		stack, err := m.MapLine(line)
		if err != nil {
			return nil, fmt.Errorf("resolve: %w", err)
		}

		out = append(out, Attribution{Line: line, Stack: stack})
	}

	return out, nil
}

// AttributeAll maps every line of m.
func AttributeAll(m *linemap.Mapper) ([]Attribution, error) {
	lines := make([]int, m.Lines())
	for i := range lines {
		lines[i] = i
	}

	return Attribute(m, lines)
}
