package pollagent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skosovsky/pollagent/coordinator"
	"github.com/skosovsky/pollagent/testutil"
)

func testCreateMachineRequest() coordinator.CreateMachineRequest {
	return coordinator.CreateMachineRequest{Tools: []coordinator.ToolDefinition{{Name: "echo", Schema: `{"type":"object"}`}}}
}

func TestCreateAndPollJob_PollsUntilTerminal(t *testing.T) {
	fake := testutil.NewFakeCoordinator()
	fake.ScriptJob(
		coordinator.JobState{Status: coordinator.StatusPending},
		coordinator.JobState{Status: coordinator.StatusRunning},
		coordinator.JobState{Status: coordinator.StatusRunning},
		coordinator.JobState{Status: coordinator.StatusDone, ResultType: coordinator.ResultSuccess, Result: []byte(`{"sum":3}`)},
	)
	c := newTestClient(t, fake, WithClusterID("c-1"), WithJobPollInterval(time.Millisecond), WithJobWaitTime(5*time.Second))

	out, err := c.CreateAndPollJob(context.Background(), "add", addArgs{A: 1, B: 2})
	require.NoError(t, err)
	assert.Equal(t, "job-1", out.JobID)
	assert.Equal(t, coordinator.StatusDone, out.Status)
	assert.Equal(t, ResultSuccess, out.ResultType)
	assert.JSONEq(t, `{"sum":3}`, string(out.Result))
	assert.True(t, out.Succeeded())
	assert.Equal(t, 3, fake.GetJobCalls())

	created := fake.CreatedJobs()
	require.Len(t, created, 1)
	assert.Equal(t, "c-1", created[0].ClusterID)
	assert.Equal(t, "add", created[0].Tool)
	assert.JSONEq(t, `{"a":1,"b":2}`, string(created[0].Input))
	assert.Equal(t, 5*time.Second, created[0].WaitTime)
}

func TestCreateAndPollJob_Failure(t *testing.T) {
	fake := testutil.NewFakeCoordinator()
	fake.ScriptJob(
		coordinator.JobState{Status: coordinator.StatusRunning},
		coordinator.JobState{Status: coordinator.StatusFailure, ResultType: coordinator.ResultRejection, Result: []byte(`{"name":"Error"}`)},
	)
	c := newTestClient(t, fake, WithClusterID("c-1"), WithJobPollInterval(time.Millisecond))

	out, err := c.CreateAndPollJob(context.Background(), "add", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, coordinator.StatusFailure, out.Status)
	assert.Equal(t, ResultRejection, out.ResultType)
	assert.False(t, out.Succeeded())
}

func TestCreateAndPollJob_SettledOnCreate(t *testing.T) {
	fake := testutil.NewFakeCoordinator()
	fake.ScriptJob(coordinator.JobState{Status: coordinator.StatusDone, ResultType: coordinator.ResultSuccess, Result: []byte(`1`)})
	c := newTestClient(t, fake, WithClusterID("c-1"))

	out, err := c.CreateAndPollJob(context.Background(), "add", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, coordinator.StatusDone, out.Status)
	assert.Zero(t, fake.GetJobCalls())
}

func TestCreateAndPollJob_RespectsContext(t *testing.T) {
	fake := testutil.NewFakeCoordinator()
	c := newTestClient(t, fake, WithClusterID("c-1"), WithJobPollInterval(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.CreateAndPollJob(ctx, "add", map[string]any{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, fake.GetJobCalls(), 1)
}

type failingGetJob struct {
	*testutil.FakeCoordinator
}

func (failingGetJob) GetJob(context.Context, coordinator.GetJobRequest) (coordinator.JobState, error) {
	return coordinator.JobState{}, errors.New("connection reset")
}

func TestCreateAndPollJob_TransportError(t *testing.T) {
	fake := testutil.NewFakeCoordinator()
	c, err := NewClient("sk_x", WithCoordinator(failingGetJob{fake}), WithClusterID("c-1"), WithJobPollInterval(time.Millisecond))
	require.NoError(t, err)

	_, err = c.CreateAndPollJob(context.Background(), "add", map[string]any{})
	require.ErrorContains(t, err, "get job job-1: connection reset")
}

func TestCreateAndPollJob_NeedsCluster(t *testing.T) {
	c := newTestClient(t, testutil.NewFakeCoordinator())
	_, err := c.CreateAndPollJob(context.Background(), "add", map[string]any{})
	require.ErrorIs(t, err, ErrMissingClusterID)

	_, err = newTestClient(t, testutil.NewFakeCoordinator(), WithClusterID("c")).CreateAndPollJob(context.Background(), "add", make(chan int))
	require.ErrorContains(t, err, "encode job input")
}
