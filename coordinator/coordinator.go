// Package coordinator defines the wire types and the RPC surface an agent uses to talk to the
// remote job coordinator, plus an HTTP JSON implementation of that surface.
package coordinator

import (
	"context"
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle status the coordinator tracks for a job.
type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusFailure JobStatus = "failure"
)

// Terminal reports whether no further status change is expected.
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailure
}

// ResultType tells the coordinator how a claimed job settled.
type ResultType string

const (
	ResultSuccess   ResultType = "success"
	ResultRejection ResultType = "rejection"
)

// ToolDefinition is the capability metadata pushed on machine registration.
// Schema is a stringified JSON Schema document.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      string         `json:"schema"`
	Config      map[string]any `json:"config,omitempty"`
}

// CreateMachineRequest upserts the capability set of one machine.
type CreateMachineRequest struct {
	Tools []ToolDefinition `json:"tools"`
}

// CreateMachineResponse carries the cluster the machine was registered into.
type CreateMachineResponse struct {
	ClusterID string `json:"clusterId"`
}

// Job is one coordinator-issued invocation request for a tool.
type Job struct {
	ID       string          `json:"id"`
	Function string          `json:"function"`
	Input    json.RawMessage `json:"input"`
}

// ListJobsRequest is a long-poll fetch. With Acknowledge set, returned jobs are claimed by the caller
// and must each receive exactly one result.
type ListJobsRequest struct {
	ClusterID   string
	Tools       []string
	Status      JobStatus
	Acknowledge bool
	Limit       int
	WaitTime    time.Duration
}

// ResultMeta is reported alongside a job result.
type ResultMeta struct {
	// FunctionExecutionTime is in milliseconds.
	FunctionExecutionTime int64 `json:"functionExecutionTime"`
}

// CreateJobResultRequest is the terminal report for a claimed job.
type CreateJobResultRequest struct {
	ClusterID  string          `json:"-"`
	JobID      string          `json:"-"`
	Result     json.RawMessage `json:"result"`
	ResultType ResultType      `json:"resultType"`
	Meta       ResultMeta      `json:"meta"`
}

// CreateJobRequest asks the coordinator to create a job for a tool.
type CreateJobRequest struct {
	ClusterID string          `json:"-"`
	Tool      string          `json:"function"`
	Input     json.RawMessage `json:"input"`
	WaitTime  time.Duration   `json:"-"`
}

// GetJobRequest fetches the state of one job, waiting up to WaitTime for it to settle.
type GetJobRequest struct {
	ClusterID string
	JobID     string
	WaitTime  time.Duration
}

// JobState is the coordinator's view of a job. Result and ResultType are set once the job settles.
type JobState struct {
	ID         string          `json:"id,omitempty"`
	Status     JobStatus       `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	ResultType ResultType      `json:"resultType,omitempty"`
}

// API is the coordinator RPC surface. Implementations must be safe for concurrent use.
type API interface {
	CreateMachine(ctx context.Context, req CreateMachineRequest) (CreateMachineResponse, error)
	ListJobs(ctx context.Context, req ListJobsRequest) ([]Job, error)
	CreateJobResult(ctx context.Context, req CreateJobResultRequest) error
	CreateJob(ctx context.Context, req CreateJobRequest) (JobState, error)
	GetJob(ctx context.Context, req GetJobRequest) (JobState, error)
}
