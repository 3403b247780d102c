package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/pollagent/coordinator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFakeCoordinator_CreateMachine(t *testing.T) {
	f := NewFakeCoordinator()
	res, err := f.CreateMachine(context.Background(), coordinator.CreateMachineRequest{
		Tools: []coordinator.ToolDefinition{{Name: "echo"}},
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultClusterID, res.ClusterID)
	require.Len(t, f.Machines(), 1)

	f.ClusterID = " "
	res, err = f.CreateMachine(context.Background(), coordinator.CreateMachineRequest{})
	require.NoError(t, err)
	assert.Empty(t, res.ClusterID)

	f.CreateMachineErr = errors.New("down")
	_, err = f.CreateMachine(context.Background(), coordinator.CreateMachineRequest{})
	require.EqualError(t, err, "down")
}

func TestFakeCoordinator_ListJobs(t *testing.T) {
	f := NewFakeCoordinator()
	f.EnqueueJobs(RawJob("j1", "echo", `{}`), RawJob("j2", "echo", `{}`))
	f.FailNextListJobs(errors.New("flaky"), 1)

	_, err := f.ListJobs(context.Background(), coordinator.ListJobsRequest{ClusterID: "c"})
	require.EqualError(t, err, "flaky")

	jobs, err := f.ListJobs(context.Background(), coordinator.ListJobsRequest{ClusterID: "c"})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, 0, f.Pending())

	jobs, err = f.ListJobs(context.Background(), coordinator.ListJobsRequest{ClusterID: "c", WaitTime: time.Second})
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Len(t, f.ListCalls(), 3)
}

func TestFakeCoordinator_ListJobsHonorsContext(t *testing.T) {
	f := NewFakeCoordinator()
	f.IdleWait = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.ListJobs(ctx, coordinator.ListJobsRequest{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFakeCoordinator_Results(t *testing.T) {
	f := NewFakeCoordinator()
	require.NoError(t, f.CreateJobResult(context.Background(), coordinator.CreateJobResultRequest{JobID: "a"}))
	require.NoError(t, f.CreateJobResult(context.Background(), coordinator.CreateJobResultRequest{JobID: "b"}))
	assert.True(t, f.WaitForResults(2, 10*time.Millisecond))
	assert.False(t, f.WaitForResults(3, 5*time.Millisecond))
	assert.Len(t, f.ResultsFor("a"), 1)
	assert.Empty(t, f.ResultsFor("c"))

	f.ResultErr = errors.New("rejected")
	require.Error(t, f.CreateJobResult(context.Background(), coordinator.CreateJobResultRequest{JobID: "c"}))
	assert.Len(t, f.ResultsFor("c"), 1)
}

func TestFakeCoordinator_ScriptedJob(t *testing.T) {
	f := NewFakeCoordinator()
	f.ScriptJob(
		coordinator.JobState{Status: coordinator.StatusPending},
		coordinator.JobState{Status: coordinator.StatusRunning},
		coordinator.JobState{Status: coordinator.StatusDone, ResultType: coordinator.ResultSuccess, Result: []byte(`1`)},
	)
	st, err := f.CreateJob(context.Background(), coordinator.CreateJobRequest{Tool: "echo"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", st.ID)
	assert.Equal(t, coordinator.StatusPending, st.Status)

	for _, want := range []coordinator.JobStatus{coordinator.StatusRunning, coordinator.StatusDone, coordinator.StatusDone} {
		st, err = f.GetJob(context.Background(), coordinator.GetJobRequest{JobID: "job-1"})
		require.NoError(t, err)
		assert.Equal(t, want, st.Status)
	}
	assert.Equal(t, 3, f.GetJobCalls())

	_, err = f.GetJob(context.Background(), coordinator.GetJobRequest{JobID: "nope"})
	require.ErrorIs(t, err, ErrUnknownJob)
}

func TestNewJob(t *testing.T) {
	job := NewJob(t, "j1", "echo", map[string]int{"a": 1})
	assert.JSONEq(t, `{"a":1}`, string(job.Input))

	var v map[string]int
	DecodeResult(t, coordinator.CreateJobResultRequest{JobID: "j1", Result: job.Input}, &v)
	assert.Equal(t, map[string]int{"a": 1}, v)
}
