// Package interceptor implements the authenticated request pipeline: bearer
// token attachment, the global loading and error signals, and the
// 401 → refresh → single retry protocol.
package interceptor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/GreenShadeZhang/BotSharp-UI/pkg/logger"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/metrics"
	"github.com/GreenShadeZhang/BotSharp-UI/pkg/tracing"
)

// ErrUnauthorized is returned when a request was rejected with 401 and the
// token could not be refreshed. A login redirect has already been requested.
var ErrUnauthorized = errors.New("interceptor: unauthorized")

// DefaultErrorDuration is how long the global error flag stays raised.
const DefaultErrorDuration = 2500 * time.Millisecond

// TokenProvider supplies and refreshes bearer tokens.
type TokenProvider interface {
	CurrentToken(ctx context.Context) string
	Refresh(ctx context.Context) bool
}

// Redirector starts interactive re-authentication.
type Redirector interface {
	RedirectToLogin(ctx context.Context) error
}

// Pipeline is an http.RoundTripper applying the request protocol to every
// outbound call.
type Pipeline struct {
	base          http.RoundTripper
	tokens        TokenProvider
	redirector    Redirector
	flags         *Flags
	quietLoading  *RuleSet
	quietErrors   *RuleSet
	errorDuration time.Duration
	tracer        trace.Tracer
	logger        *logger.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBase sets the underlying transport.
func WithBase(rt http.RoundTripper) Option {
	return func(p *Pipeline) { p.base = rt }
}

// WithRedirector sets the login redirect collaborator.
func WithRedirector(r Redirector) Option {
	return func(p *Pipeline) { p.redirector = r }
}

// WithRules replaces the quiet rule sets.
func WithRules(quietLoading, quietErrors *RuleSet) Option {
	return func(p *Pipeline) {
		p.quietLoading = quietLoading
		p.quietErrors = quietErrors
	}
}

// WithErrorDuration sets how long the global error flag stays raised.
func WithErrorDuration(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.errorDuration = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) { p.logger = logger.OrNop(l).Component("interceptor") }
}

// New creates a pipeline. flags may be nil, in which case a private set is used.
func New(tokens TokenProvider, flags *Flags, opts ...Option) *Pipeline {
	if flags == nil {
		flags = NewFlags()
	}
	p := &Pipeline{
		base:          http.DefaultTransport,
		tokens:        tokens,
		flags:         flags,
		quietLoading:  QuietLoading(),
		quietErrors:   QuietErrors(),
		errorDuration: DefaultErrorDuration,
		tracer:        tracing.Tracer(),
		logger:        logger.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Flags returns the shared UI flags.
func (p *Pipeline) Flags() *Flags { return p.flags }

// Client returns an http.Client using the pipeline.
func (p *Pipeline) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: p, Timeout: timeout}
}

// RoundTrip implements http.RoundTripper.
func (p *Pipeline) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := p.tracer.Start(req.Context(), "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
		),
	)
	defer span.End()

	body, err := rewindableBody(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp, err := p.send(ctx, req, body)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		finishSpan(span, resp, err)
		return resp, err
	}

	log := p.logger.With(zap.String("method", req.Method), zap.String("url", req.URL.String()))
	log.Info("request unauthorized, refreshing token")

	if !p.tokens.Refresh(ctx) {
		drain(resp)
		if p.redirector != nil {
			if rerr := p.redirector.RedirectToLogin(ctx); rerr != nil {
				log.Warn("login redirect failed", zap.Error(rerr))
			}
		}
		span.SetStatus(codes.Error, ErrUnauthorized.Error())
		return nil, ErrUnauthorized
	}

	if p.tokens.CurrentToken(ctx) == "" {
		log.Warn("refresh succeeded without a token")
		finishSpan(span, resp, nil)
		return resp, nil
	}

	drain(resp)
	metrics.RequestRetriesTotal.Inc()
	span.AddEvent("retry")
	log.Debug("retrying request with refreshed token")

	resp, err = p.send(ctx, req, body)
	finishSpan(span, resp, err)
	return resp, err
}

// send performs one attempt: token attach, loading indicator and error flag.
// It never handles 401.
func (p *Pipeline) send(ctx context.Context, req *http.Request, body func() (io.ReadCloser, error)) (*http.Response, error) {
	out := req.Clone(ctx)
	if body != nil {
		rc, err := body()
		if err != nil {
			return nil, err
		}
		out.Body = rc
	}
	if token := p.tokens.CurrentToken(ctx); token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(out.Header))

	rawURL := req.URL.String()
	if !p.quietLoading.Match(req.Method, rawURL) {
		p.flags.SetLoading(true)
	}

	start := time.Now()
	resp, err := p.base.RoundTrip(out)
	duration := time.Since(start).Seconds()

	p.flags.SetLoading(false)

	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	metrics.RecordRequest(req.Method, status, duration)

	failed := err != nil || (resp.StatusCode >= 400 && resp.StatusCode != http.StatusUnauthorized)
	if failed && !p.quietErrors.Match(req.Method, rawURL) {
		p.flags.RaiseError(p.errorDuration)
	}
	if err != nil {
		p.logger.Warn("request failed",
			zap.String("method", req.Method),
			zap.String("url", rawURL),
			zap.Error(err),
		)
	}
	return resp, err
}

// rewindableBody returns a function producing a fresh copy of the request
// body for each attempt, or nil when the request has none.
func rewindableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		first := true
		return func() (io.ReadCloser, error) {
			if first {
				first = false
				return req.Body, nil
			}
			return req.GetBody()
		}, nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func finishSpan(span trace.Span, resp *http.Response, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, resp.Status)
	}
}
