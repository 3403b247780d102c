package pollagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/skosovsky/pollagent/coordinator"
)

var errJobNotSettled = errors.New("job not settled")

// CreateAndPollJob creates a job for tool and polls it at the job poll interval until its status is
// done or failure. There is no attempt limit: bound the call with ctx. Transport errors end the call.
func (c *Client) CreateAndPollJob(ctx context.Context, tool string, input any) (JobOutcome, error) {
	clusterID := c.ClusterID()
	if clusterID == "" {
		return JobOutcome{}, configError(ErrMissingClusterID, "call Listen or use WithClusterID")
	}
	data, err := json.Marshal(input)
	if err != nil {
		return JobOutcome{}, fmt.Errorf("encode job input: %w", err)
	}
	created, err := c.api.CreateJob(ctx, coordinator.CreateJobRequest{
		ClusterID: clusterID,
		Tool:      tool,
		Input:     data,
		WaitTime:  c.opts.jobWaitTime,
	})
	if err != nil {
		return JobOutcome{}, fmt.Errorf("create job: %w", err)
	}
	log := c.logger.With("job_id", created.ID, "tool", tool)
	if created.Status.Terminal() {
		return outcomeOf(created), nil
	}

	poll := func() (coordinator.JobState, error) {
		st, err := c.api.GetJob(ctx, coordinator.GetJobRequest{
			ClusterID: clusterID,
			JobID:     created.ID,
			WaitTime:  c.opts.jobWaitTime,
		})
		if err != nil {
			return st, backoff.Permanent(fmt.Errorf("get job %s: %w", created.ID, err))
		}
		if !st.Status.Terminal() {
			return st, errJobNotSettled
		}
		return st, nil
	}
	state, err := backoff.Retry(ctx, poll,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.opts.jobPollInterval)),
		backoff.WithMaxElapsedTime(time.Duration(math.MaxInt64)),
		backoff.WithNotify(func(_ error, next time.Duration) {
			log.DebugContext(ctx, "job pending", "next_poll", next)
		}),
	)
	if err != nil {
		return JobOutcome{}, err
	}
	if state.ID == "" {
		state.ID = created.ID
	}
	return outcomeOf(state), nil
}

func outcomeOf(st coordinator.JobState) JobOutcome {
	return JobOutcome{JobID: st.ID, Status: st.Status, Result: st.Result, ResultType: st.ResultType}
}
