// Package testutil provides test helpers for pollagent: an in-memory coordinator and job builders.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/skosovsky/pollagent/coordinator"
)

// DefaultClusterID is returned by CreateMachine unless FakeCoordinator.ClusterID is set.
const DefaultClusterID = "cluster-test"

// ErrUnknownJob is returned by GetJob for ids the fake never created.
var ErrUnknownJob = errors.New("testutil: unknown job")

// FakeCoordinator is a scripted, in-memory coordinator.API. It records every call. Exported fields must
// be set before the fake is used concurrently.
type FakeCoordinator struct {
	// ClusterID returned by CreateMachine. Set to a single space to return an empty id.
	ClusterID string
	// IdleWait is how long ListJobs blocks when nothing is queued (bounded by the request WaitTime).
	IdleWait time.Duration
	// CreateMachineErr fails every CreateMachine call.
	CreateMachineErr error
	// ResultErr fails every CreateJobResult call (the call is still recorded).
	ResultErr error

	mu        sync.Mutex
	batches   [][]coordinator.Job
	listErrs  []error
	machines  []coordinator.CreateMachineRequest
	listCalls []coordinator.ListJobsRequest
	results   []coordinator.CreateJobResultRequest
	created   []coordinator.CreateJobRequest
	scripts   [][]coordinator.JobState
	jobs      map[string]*scriptedJob
	getCalls  int
	nextID    int
}

type scriptedJob struct {
	states []coordinator.JobState
	pos    int
}

var _ coordinator.API = (*FakeCoordinator)(nil)

// NewFakeCoordinator returns an empty fake.
func NewFakeCoordinator() *FakeCoordinator {
	return &FakeCoordinator{IdleWait: time.Millisecond, jobs: make(map[string]*scriptedJob)}
}

// EnqueueJobs queues one batch; each ListJobs call without a pending error returns the next batch.
func (f *FakeCoordinator) EnqueueJobs(jobs ...coordinator.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, slices.Clone(jobs))
}

// FailNextListJobs makes the next n ListJobs calls return err.
func (f *FakeCoordinator) FailNextListJobs(err error, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for range n {
		f.listErrs = append(f.listErrs, err)
	}
}

// ScriptJob queues the states of the next job created with CreateJob: CreateJob answers with states[0],
// each GetJob with the following state, the last one repeating.
func (f *FakeCoordinator) ScriptJob(states ...coordinator.JobState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, slices.Clone(states))
}

func (f *FakeCoordinator) CreateMachine(_ context.Context, req coordinator.CreateMachineRequest) (coordinator.CreateMachineResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.machines = append(f.machines, req)
	if f.CreateMachineErr != nil {
		return coordinator.CreateMachineResponse{}, f.CreateMachineErr
	}
	switch f.ClusterID {
	case "":
		return coordinator.CreateMachineResponse{ClusterID: DefaultClusterID}, nil
	case " ":
		return coordinator.CreateMachineResponse{}, nil
	default:
		return coordinator.CreateMachineResponse{ClusterID: f.ClusterID}, nil
	}
}

func (f *FakeCoordinator) ListJobs(ctx context.Context, req coordinator.ListJobsRequest) ([]coordinator.Job, error) {
	f.mu.Lock()
	req.Tools = slices.Clone(req.Tools)
	f.listCalls = append(f.listCalls, req)
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		f.mu.Unlock()
		return nil, err
	}
	if len(f.batches) > 0 {
		batch := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return batch, nil
	}
	wait := f.IdleWait
	f.mu.Unlock()

	if req.WaitTime > 0 && req.WaitTime < wait {
		wait = req.WaitTime
	}
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, nil
}

func (f *FakeCoordinator) CreateJobResult(_ context.Context, req coordinator.CreateJobResultRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, req)
	return f.ResultErr
}

func (f *FakeCoordinator) CreateJob(_ context.Context, req coordinator.CreateJobRequest) (coordinator.JobState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	f.nextID++
	id := fmt.Sprintf("job-%d", f.nextID)
	states := []coordinator.JobState{{Status: coordinator.StatusPending}}
	if len(f.scripts) > 0 {
		states = f.scripts[0]
		f.scripts = f.scripts[1:]
	}
	f.jobs[id] = &scriptedJob{states: states}
	st := states[0]
	st.ID = id
	return st, nil
}

func (f *FakeCoordinator) GetJob(_ context.Context, req coordinator.GetJobRequest) (coordinator.JobState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	job, ok := f.jobs[req.JobID]
	if !ok {
		return coordinator.JobState{}, fmt.Errorf("%w: %s", ErrUnknownJob, req.JobID)
	}
	if job.pos < len(job.states)-1 {
		job.pos++
	}
	st := job.states[job.pos]
	st.ID = req.JobID
	return st, nil
}

// Machines returns every CreateMachine request.
func (f *FakeCoordinator) Machines() []coordinator.CreateMachineRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.machines)
}

// ListCalls returns every ListJobs request.
func (f *FakeCoordinator) ListCalls() []coordinator.ListJobsRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.listCalls)
}

// Results returns every CreateJobResult request in arrival order.
func (f *FakeCoordinator) Results() []coordinator.CreateJobResultRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.results)
}

// ResultsFor returns the CreateJobResult requests for jobID.
func (f *FakeCoordinator) ResultsFor(jobID string) []coordinator.CreateJobResultRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []coordinator.CreateJobResultRequest
	for _, r := range f.results {
		if r.JobID == jobID {
			out = append(out, r)
		}
	}
	return out
}

// CreatedJobs returns every CreateJob request.
func (f *FakeCoordinator) CreatedJobs() []coordinator.CreateJobRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.created)
}

// GetJobCalls returns how many times GetJob was called.
func (f *FakeCoordinator) GetJobCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

// Pending reports how many queued batches have not been polled yet.
func (f *FakeCoordinator) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

// WaitForResults blocks until at least n results were recorded or timeout elapses.
func (f *FakeCoordinator) WaitForResults(n int, timeout time.Duration) bool {
	return waitFor(timeout, func() bool { return len(f.Results()) >= n })
}

// WaitForListCalls blocks until at least n ListJobs calls were recorded or timeout elapses.
func (f *FakeCoordinator) WaitForListCalls(n int, timeout time.Duration) bool {
	return waitFor(timeout, func() bool { return len(f.ListCalls()) >= n })
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
