package pollagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skosovsky/pollagent/coordinator"
	"github.com/skosovsky/pollagent/internal/logging"
)

const tracerName = "github.com/skosovsky/pollagent"

// AgentState is the lifecycle position of an Agent.
type AgentState int32

const (
	StateIdle AgentState = iota
	StateRegistering
	StatePolling
	StateStopped
)

func (s AgentState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRegistering:
		return "registering"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("AgentState(%d)", int32(s))
	}
}

// Agent registers a fixed set of tools with the coordinator and runs the poll, dispatch, report loop.
//
// An Agent moves idle -> registering -> polling -> stopped exactly once; it cannot be restarted.
// Jobs of one batch run concurrently and the next poll starts only after the whole batch has reported.
type Agent struct {
	api      coordinator.API
	tools    map[string]*Tool
	handlers map[string]Handler
	names    []string
	opts     options
	logger   *slog.Logger
	tracer   trace.Tracer
	sem      chan struct{}

	mu        sync.Mutex
	state     AgentState
	clusterID string

	polling  atomic.Bool
	failures atomic.Int64
	wake     chan struct{}
	wakeOnce sync.Once
	done     chan struct{}
}

// NewAgent builds an idle Agent for tools. The tool set is fixed for the Agent's lifetime.
// Client-only transport options are ignored.
func NewAgent(api coordinator.API, tools []*Tool, opts ...Option) (*Agent, error) {
	if api == nil {
		return nil, configError(ErrInvalidEndpoint, "coordinator client is nil")
	}
	reg := NewRegistry()
	if err := reg.Register(tools...); err != nil {
		return nil, err
	}
	if reg.Len() == 0 {
		return nil, configError(ErrNoTools, "")
	}
	return newAgent(api, reg.Tools(), buildOptions(opts)), nil
}

func newAgent(api coordinator.API, tools []*Tool, o options) *Agent {
	a := &Agent{
		api:      api,
		tools:    make(map[string]*Tool, len(tools)),
		handlers: make(map[string]Handler, len(tools)),
		names:    make([]string, 0, len(tools)),
		opts:     o,
		logger:   logging.Component(o.logger, "agent"),
		wake:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	a.tracer = tp.Tracer(tracerName, trace.WithInstrumentationVersion(Version))
	if o.maxConcurrency > 0 {
		a.sem = make(chan struct{}, o.maxConcurrency)
	}
	for _, t := range tools {
		a.tools[t.name] = t
		a.handlers[t.name] = chain(t, o.middlewares)
		a.names = append(a.names, t.name)
	}
	return a
}

// State returns the current lifecycle state.
func (a *Agent) State() AgentState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// ClusterID returns the cluster assigned on registration ("" before Start).
func (a *Agent) ClusterID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clusterID
}

// ConsecutiveFailures returns the number of poll iterations that failed in a row.
func (a *Agent) ConsecutiveFailures() int64 { return a.failures.Load() }

// Done is closed once the Agent is stopped and its loop has exited.
func (a *Agent) Done() <-chan struct{} { return a.done }

// Start registers the machine and its tools with the coordinator, then starts polling in the background
// and returns. ctx bounds registration only; the loop runs until Stop. A failed registration leaves the
// Agent idle so Start may be retried.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case StateIdle:
	case StateStopped:
		a.mu.Unlock()
		return configError(ErrAgentStopped, "")
	default:
		a.mu.Unlock()
		return configError(ErrAlreadyStarted, "")
	}
	a.state = StateRegistering
	a.mu.Unlock()

	clusterID, err := a.register(ctx)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateRegistering {
		return configError(ErrAgentStopped, "stopped during registration")
	}
	if err != nil {
		a.state = StateIdle
		return err
	}
	a.clusterID = clusterID
	a.state = StatePolling
	a.polling.Store(true)
	a.logger.InfoContext(ctx, "agent polling", "cluster_id", clusterID, "tools", a.names)
	go a.run(context.WithoutCancel(ctx))
	return nil
}

func (a *Agent) register(ctx context.Context) (string, error) {
	defs := make([]coordinator.ToolDefinition, 0, len(a.names))
	for _, name := range a.names {
		def, err := a.tools[name].Definition()
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}
	res, err := a.api.CreateMachine(ctx, coordinator.CreateMachineRequest{Tools: defs})
	if err != nil {
		return "", fmt.Errorf("register machine: %w", err)
	}
	if res.ClusterID != "" {
		return res.ClusterID, nil
	}
	return a.opts.clusterID, nil
}

// Stop asks the loop to exit at its next iteration boundary and waits for it, or for ctx to end.
// In-flight jobs and an in-flight poll are not cancelled. Stop is idempotent.
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case StateIdle, StateRegistering:
		a.state = StateStopped
		a.wakeOnce.Do(func() { close(a.wake) })
		close(a.done)
		a.mu.Unlock()
		return nil
	case StatePolling:
		if a.polling.Swap(false) {
			a.logger.InfoContext(ctx, "agent stopping")
		}
		a.wakeOnce.Do(func() { close(a.wake) })
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Agent) run(ctx context.Context) {
	defer func() {
		a.mu.Lock()
		a.state = StateStopped
		a.mu.Unlock()
		a.logger.InfoContext(ctx, "agent stopped")
		close(a.done)
	}()

	failureDelay := backoff.NewExponentialBackOff()
	failureDelay.InitialInterval = a.opts.failureBackoff
	failureDelay.MaxInterval = DefaultMaxFailureDelay

	for a.polling.Load() {
		delay := a.opts.retryAfter
		if err := a.iterate(ctx); err != nil {
			n := a.failures.Add(1)
			a.logger.ErrorContext(ctx, "poll iteration failed", "error", err, "consecutive_failures", n)
			delay = max(delay, failureDelay.NextBackOff())
		} else {
			if n := a.failures.Swap(0); n > 0 {
				a.logger.InfoContext(ctx, "polling recovered", "after_failures", n)
			}
			failureDelay.Reset()
		}
		a.sleep(delay)
	}
}

func (a *Agent) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-a.wake:
	}
}

// iterate runs one poll and settles the whole returned batch.
func (a *Agent) iterate(ctx context.Context) error {
	clusterID := a.ClusterID()
	if clusterID == "" {
		return configError(ErrMissingClusterID, "")
	}
	ctx, span := a.tracer.Start(ctx, "pollagent.poll", trace.WithAttributes(
		attribute.String("pollagent.cluster_id", clusterID),
	))
	defer span.End()

	jobs, err := a.api.ListJobs(ctx, coordinator.ListJobsRequest{
		ClusterID:   clusterID,
		Tools:       a.names,
		Status:      coordinator.StatusPending,
		Acknowledge: true,
		Limit:       a.opts.pollLimit,
		WaitTime:    a.opts.pollWaitTime,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("list jobs: %w", err)
	}
	span.SetAttributes(attribute.Int("pollagent.jobs", len(jobs)))
	if len(jobs) > 0 {
		a.logger.DebugContext(ctx, "claimed jobs", "count", len(jobs))
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		if a.sem != nil {
			a.sem <- struct{}{}
		}
		wg.Go(func() {
			if a.sem != nil {
				defer func() { <-a.sem }()
			}
			a.handleJob(ctx, clusterID, job)
		})
	}
	wg.Wait()
	return nil
}

func (a *Agent) handleJob(ctx context.Context, clusterID string, job coordinator.Job) {
	tool, ok := a.tools[job.Function]
	if !ok {
		a.logger.WarnContext(ctx, "dropping job for unknown function", "job_id", job.ID, "function", job.Function)
		return
	}
	ctx, span := a.tracer.Start(ctx, "pollagent.job", trace.WithAttributes(
		attribute.String("pollagent.job_id", job.ID),
		attribute.String("pollagent.function", job.Function),
	))
	defer span.End()

	if a.opts.onJobStart != nil {
		a.runHook(ctx, "start", job, func() { a.opts.onJobStart(ctx, job) })
	}
	res := a.process(ctx, tool, job)
	span.SetAttributes(
		attribute.String("pollagent.result_type", string(res.Type)),
		attribute.Int64("pollagent.function_execution_ms", res.FunctionExecutionTime.Milliseconds()),
	)
	if res.Type == ResultRejection {
		span.SetStatus(codes.Error, "rejection")
	}
	if a.opts.onJobResult != nil {
		a.runHook(ctx, "result", job, func() { a.opts.onJobResult(ctx, job, res) })
	}
	if err := a.report(ctx, clusterID, job, res); err != nil {
		span.RecordError(err)
		a.logger.ErrorContext(ctx, "report job result", "job_id", job.ID, "function", job.Function, "error", err)
		return
	}
	a.logger.DebugContext(ctx, "job reported", "job_id", job.ID, "function", job.Function,
		"result_type", res.Type, "duration", res.FunctionExecutionTime)
}

// runHook isolates a job hook: a panic is logged and the job carries on.
func (a *Agent) runHook(ctx context.Context, hook string, job coordinator.Job, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.ErrorContext(ctx, "job hook panicked", "hook", hook, "job_id", job.ID, "panic", r)
		}
	}()
	fn()
}

// process validates the job input and runs the tool. It never fails: every problem becomes a rejection.
func (a *Agent) process(ctx context.Context, tool *Tool, job coordinator.Job) Result {
	input, err := decodeJobInput(job.Input)
	if err != nil {
		return Result{Type: ResultRejection, Content: SerializeError(err)}
	}
	args, err := tool.schema.Validate(input)
	if err != nil {
		return Result{Type: ResultRejection, Content: SerializeError(err)}
	}
	return Execute(ctx, a.handlers[tool.name], args)
}

func (a *Agent) report(ctx context.Context, clusterID string, job coordinator.Job, res Result) error {
	content, err := json.Marshal(res.Content)
	if err != nil {
		res.Type = ResultRejection
		content, err = json.Marshal(SerializeError(fmt.Errorf("encode result: %w", err)))
		if err != nil {
			return err
		}
	}
	return a.api.CreateJobResult(ctx, coordinator.CreateJobResultRequest{
		ClusterID:  clusterID,
		JobID:      job.ID,
		Result:     content,
		ResultType: res.Type,
		Meta:       coordinator.ResultMeta{FunctionExecutionTime: res.FunctionExecutionTime.Milliseconds()},
	})
}

// decodeJobInput accepts only a JSON object; null, arrays and primitives are an *InputError. Numbers
// are kept as json.Number so integers beyond 2^53 survive validation and decoding.
func decodeJobInput(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &InputError{Reason: "input is empty"}
	}
	switch trimmed[0] {
	case '{':
	case 'n':
		return nil, &InputError{Reason: "input is null, expected an object"}
	case '[':
		return nil, &InputError{Reason: "input is an array, expected an object"}
	default:
		return nil, &InputError{Reason: "input is a primitive, expected an object"}
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(trimmed))
	if err != nil {
		return nil, &InputError{Reason: err.Error()}
	}
	input, ok := doc.(map[string]any)
	if !ok {
		return nil, &InputError{Reason: fmt.Sprintf("input decoded to %T, expected an object", doc)}
	}
	return input, nil
}
