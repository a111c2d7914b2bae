package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakeSchedulerConfig struct {
	redisURL string
	queue    string
}

func (c fakeSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c fakeSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c fakeSchedulerConfig) GetAsynqQueueName() string { return c.queue }
func (c fakeSchedulerConfig) GetAsynqConcurrency() int  { return 1 }

func newTestClient(t *testing.T) *Client {
	t.Helper()

	srv := miniredis.RunT(t)
	client, err := NewClient(fakeSchedulerConfig{
		redisURL: "redis://" + srv.Addr(),
		queue:    "engagement",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(fakeSchedulerConfig{}); err == nil {
		t.Fatal("expected error for missing redis url")
	}
}

func TestScheduleWaveIsIdempotent(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	jobID := uuid.New()
	runAt := time.Now().Add(time.Hour)

	if err := client.ScheduleWave(ctx, jobID, 1, runAt); err != nil {
		t.Fatalf("first ScheduleWave: %v", err)
	}
	// Same job and wave must collapse into the existing trigger.
	if err := client.ScheduleWave(ctx, jobID, 1, runAt); err != nil {
		t.Fatalf("duplicate ScheduleWave: %v", err)
	}

	tasks, err := client.inspector.ListScheduledTasks("engagement")
	if err != nil {
		t.Fatalf("ListScheduledTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("scheduled tasks = %d, want 1", len(tasks))
	}
	if tasks[0].ID != WaveTaskID(jobID.String(), 1) {
		t.Fatalf("task ID = %q, want %q", tasks[0].ID, WaveTaskID(jobID.String(), 1))
	}
}

func TestCancelWaveDeletesScheduledTrigger(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	jobID := uuid.New()

	if err := client.ScheduleWave(ctx, jobID, 2, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("ScheduleWave: %v", err)
	}
	if err := client.CancelWave(ctx, jobID, 2); err != nil {
		t.Fatalf("CancelWave: %v", err)
	}

	tasks, err := client.inspector.ListScheduledTasks("engagement")
	if err != nil {
		t.Fatalf("ListScheduledTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("scheduled tasks = %d, want 0", len(tasks))
	}
}

func TestCancelWaveToleratesMissingTask(t *testing.T) {
	client := newTestClient(t)

	// A wave that already fired has no scheduled task left.
	if err := client.CancelWave(context.Background(), uuid.New(), 1); err != nil {
		t.Fatalf("CancelWave on missing task: %v", err)
	}
}

func TestScheduleLeadCallback(t *testing.T) {
	client := newTestClient(t)
	leadID := uuid.New()

	if err := client.ScheduleLeadCallback(context.Background(), leadID, time.Now().Add(30*time.Minute)); err != nil {
		t.Fatalf("ScheduleLeadCallback: %v", err)
	}

	tasks, err := client.inspector.ListScheduledTasks("engagement")
	if err != nil {
		t.Fatalf("ListScheduledTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("scheduled tasks = %d, want 1", len(tasks))
	}

	payload, err := ParseLeadCallbackPayload(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	if err != nil {
		t.Fatalf("ParseLeadCallbackPayload: %v", err)
	}
	if payload.LeadID != leadID.String() {
		t.Fatalf("lead ID = %q, want %q", payload.LeadID, leadID)
	}
}
