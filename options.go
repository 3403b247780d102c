package pollagent

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/skosovsky/pollagent/coordinator"
)

// Defaults used by NewClient and NewAgent.
const (
	DefaultEndpoint        = "http://localhost:4000"
	DefaultPollLimit       = 10
	DefaultPollWaitTime    = 20 * time.Second
	DefaultJobPollInterval = time.Second
	DefaultJobWaitTime     = 10 * time.Second
	DefaultFailureBackoff  = time.Second
	DefaultMaxFailureDelay = 30 * time.Second
)

// toolOptions hold optional tool settings (timeout, strict, tags, config).
type toolOptions struct {
	strict  bool
	timeout time.Duration
	tags    []string
	config  map[string]any
}

// ToolOption configures a tool (e.g. WithStrict, WithTimeout).
type ToolOption func(*toolOptions)

func applyToolOptions(opts []ToolOption) toolOptions {
	var o toolOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithStrict sets additionalProperties: false on every object of the input schema and makes all
// properties required.
func WithStrict() ToolOption {
	return func(o *toolOptions) {
		o.strict = true
	}
}

// WithTimeout bounds a single execution of the tool. The deadline is delivered through the handler's
// context; handlers that ignore ctx are not interrupted.
func WithTimeout(d time.Duration) ToolOption {
	return func(o *toolOptions) {
		o.timeout = d
	}
}

// WithTags sets tool tags, pushed to the coordinator under config["tags"].
func WithTags(tags ...string) ToolOption {
	return func(o *toolOptions) {
		o.tags = tags
	}
}

// WithConfig sets opaque metadata passed through to the coordinator on registration.
func WithConfig(cfg map[string]any) ToolOption {
	return func(o *toolOptions) {
		o.config = maps.Clone(cfg)
	}
}

// Option configures a Client or an Agent. Transport options (endpoint, machine id, HTTP client) only
// apply to NewClient.
type Option func(*options)

type options struct {
	endpoint        string
	machineID       string
	httpClient      *http.Client
	api             coordinator.API
	clusterID       string
	logger          *slog.Logger
	tracerProvider  trace.TracerProvider
	retryAfter      time.Duration
	failureBackoff  time.Duration
	pollLimit       int
	pollWaitTime    time.Duration
	jobPollInterval time.Duration
	jobWaitTime     time.Duration
	maxConcurrency  int
	middlewares     []Middleware
	onJobStart      func(context.Context, coordinator.Job)
	onJobResult     func(context.Context, coordinator.Job, Result)
}

func defaultOptions() options {
	return options{
		endpoint:        DefaultEndpoint,
		failureBackoff:  DefaultFailureBackoff,
		pollLimit:       DefaultPollLimit,
		pollWaitTime:    DefaultPollWaitTime,
		jobPollInterval: DefaultJobPollInterval,
		jobWaitTime:     DefaultJobWaitTime,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithEndpoint sets the coordinator base URL.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithMachineID sets the machine identity sent with every call. Defaults to a random UUID per Client.
func WithMachineID(id string) Option {
	return func(o *options) {
		o.machineID = id
	}
}

// WithHTTPClient sets the *http.Client used by the default coordinator client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithCoordinator replaces the HTTP coordinator client entirely.
func WithCoordinator(api coordinator.API) Option {
	return func(o *options) {
		o.api = api
	}
}

// WithClusterID sets the cluster used when the coordinator does not return one on registration, and
// by CreateAndPollJob before Listen.
func WithClusterID(id string) Option {
	return func(o *options) {
		o.clusterID = id
	}
}

// WithLogger sets the base logger; components log on channels derived from it.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracerProvider sets the OpenTelemetry provider for poll and job spans.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithRetryAfter sets the pause between poll iterations. Zero polls back-to-back.
func WithRetryAfter(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.retryAfter = d
		}
	}
}

// WithFailureBackoff sets the initial pause after a failed iteration. Consecutive failures grow it
// exponentially up to 30s; a successful iteration resets it.
func WithFailureBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.failureBackoff = d
		}
	}
}

// WithPollLimit sets the maximum number of jobs claimed per poll.
func WithPollLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pollLimit = n
		}
	}
}

// WithPollWaitTime sets how long the coordinator may hold a poll open.
func WithPollWaitTime(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.pollWaitTime = d
		}
	}
}

// WithJobPollInterval sets the fixed interval between status checks in CreateAndPollJob.
func WithJobPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.jobPollInterval = d
		}
	}
}

// WithJobWaitTime sets the server-side wait passed to createJob and getJob.
func WithJobWaitTime(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.jobWaitTime = d
		}
	}
}

// WithMaxConcurrency limits how many jobs of one batch execute at once.
// Pass 0 or negative for no limit (the poll limit still bounds a batch).
func WithMaxConcurrency(n int) Option {
	return func(o *options) {
		o.maxConcurrency = n
	}
}

// WithMiddleware wraps every tool handler (first middleware is outermost).
func WithMiddleware(middlewares ...Middleware) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, middlewares...)
	}
}

// WithOnJobStart sets a hook called before a claimed job for a known tool is processed.
// It runs on the job's goroutine and must be safe for concurrent use. A panic in the hook is logged
// and does not affect the job.
func WithOnJobStart(fn func(context.Context, coordinator.Job)) Option {
	return func(o *options) {
		o.onJobStart = fn
	}
}

// WithOnJobResult sets a hook called with the result of every processed job, before it is reported.
// It runs on the job's goroutine and must be safe for concurrent use. A panic in the hook is logged
// and the result is still reported.
func WithOnJobResult(fn func(context.Context, coordinator.Job, Result)) Option {
	return func(o *options) {
		o.onJobResult = fn
	}
}
