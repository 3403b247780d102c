package testutil

import (
	"encoding/json"
	"testing"

	"github.com/skosovsky/pollagent/coordinator"
)

// NewJob builds a job whose input is the JSON encoding of input.
func NewJob(tb testing.TB, id, function string, input any) coordinator.Job {
	tb.Helper()
	data, err := json.Marshal(input)
	if err != nil {
		tb.Fatalf("testutil: encode job input: %v", err)
	}
	return coordinator.Job{ID: id, Function: function, Input: data}
}

// RawJob builds a job with a literal JSON input.
func RawJob(id, function, input string) coordinator.Job {
	return coordinator.Job{ID: id, Function: function, Input: json.RawMessage(input)}
}

// DecodeResult unmarshals the reported result content into v.
func DecodeResult(tb testing.TB, r coordinator.CreateJobResultRequest, v any) {
	tb.Helper()
	if err := json.Unmarshal(r.Result, v); err != nil {
		tb.Fatalf("testutil: decode result of job %s: %v (%s)", r.JobID, err, r.Result)
	}
}
