package pollagent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/skosovsky/pollagent/coordinator"
)

// Version is reported to the coordinator in the X-Machine-SDK-Version header.
const Version = "0.4.0"

// ResultType tells the coordinator how a claimed job settled.
type ResultType = coordinator.ResultType

const (
	ResultSuccess   = coordinator.ResultSuccess
	ResultRejection = coordinator.ResultRejection
)

// Handler runs a tool for one job. input is the value returned by the tool's Schema.Validate:
// a T for tools built with NewTool, the decoded JSON object for dynamic tools.
type Handler func(ctx context.Context, input any) (any, error)

// Result is the settled outcome of one claimed job. Rejections carry a SerializedError in Content;
// inspect it to tell handler failures from input validation failures.
type Result struct {
	Type                  ResultType
	Content               any
	FunctionExecutionTime time.Duration
}

// JobOutcome is what CreateAndPollJob returns once a job reached a terminal status.
type JobOutcome struct {
	JobID      string
	Status     coordinator.JobStatus
	Result     json.RawMessage
	ResultType ResultType
}

// Succeeded reports whether the job finished with a success result.
func (o JobOutcome) Succeeded() bool {
	return o.Status == coordinator.StatusDone && o.ResultType == ResultSuccess
}
