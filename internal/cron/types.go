package cron

import (
	"context"
	"time"

	"github.com/DewminaUdayashan/meridian/internal/config"
)

// JobType identifies the handler for a cron job.
type JobType string

const (
	JobTypeMessage JobType = "message"
	JobTypeAgent   JobType = "agent"
	JobTypeWebhook JobType = "webhook"
	JobTypeCustom  JobType = "custom"
)

// Schedule represents a parsed schedule.
type Schedule struct {
	Kind     string
	CronExpr string
	Every    time.Duration
	At       time.Time
	Timezone string
}

// JobStatus is the outcome of the most recent execution of a job.
type JobStatus string

const (
	JobStatusOK      JobStatus = "ok"
	JobStatusError   JobStatus = "error"
	JobStatusSkipped JobStatus = "skipped"
	JobStatusTimeout JobStatus = "timeout"
)

// backoffSchedule is the cooldown ladder applied between consecutive
// failures of the same job, indexed by consecutiveErrors-1 and capped at
// the last entry.
var backoffSchedule = []time.Duration{
	30 * time.Second,
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
}

// backoffForErrors returns the cooldown window for a job that has failed
// consecutiveErrors times in a row. Zero means no backoff.
func backoffForErrors(consecutiveErrors int) time.Duration {
	if consecutiveErrors <= 0 {
		return 0
	}
	idx := consecutiveErrors - 1
	if idx >= len(backoffSchedule) {
		idx = len(backoffSchedule) - 1
	}
	return backoffSchedule[idx]
}

// minRefireGap guards against a spin loop on jobs whose schedule and
// backoff would otherwise fire faster than the scheduler tick.
const minRefireGap = 2 * time.Second

// defaultJobTimeout bounds a single run when the job does not configure one.
const defaultJobTimeout = 10 * time.Minute

// Job represents a scheduled job.
type Job struct {
	ID             string
	Name           string
	Type           JobType
	Enabled        bool
	Schedule       Schedule
	TargetAgentID  string
	DeleteAfterRun bool
	TimeoutMs      int64

	Message *config.CronMessageConfig
	Webhook *config.CronWebhookConfig
	Custom  *config.CronCustomConfig
	Retry   config.CronRetryConfig

	NextRun    time.Time
	LastRun    time.Time
	LastError  string
	RetryCount int

	// State mirrors the spec's CronJob.state: run-in-progress guard,
	// consecutive-failure counter driving backoff, and last-run summary.
	RunningAtMs       int64
	LastStatus        JobStatus
	LastDurationMs    int64
	ConsecutiveErrors int
}

// IsRunning reports whether a tick of this job is currently executing.
func (j *Job) IsRunning() bool {
	return j != nil && j.RunningAtMs != 0
}

// MessageSender executes outbound cron message jobs.
type MessageSender interface {
	Send(ctx context.Context, message *config.CronMessageConfig) error
}

// MessageSenderFunc adapts a function to a MessageSender.
type MessageSenderFunc func(ctx context.Context, message *config.CronMessageConfig) error

// Send executes the message sender function.
func (f MessageSenderFunc) Send(ctx context.Context, message *config.CronMessageConfig) error {
	return f(ctx, message)
}

// AgentRunner executes agent cron jobs.
type AgentRunner interface {
	Run(ctx context.Context, job *Job) error
}

// AgentRunnerFunc adapts a function to an AgentRunner.
type AgentRunnerFunc func(ctx context.Context, job *Job) error

// Run executes the agent runner function.
func (f AgentRunnerFunc) Run(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// CustomHandler executes custom cron jobs.
type CustomHandler interface {
	Handle(ctx context.Context, job *Job, args map[string]any) error
}

// CustomHandlerFunc adapts a function to a CustomHandler.
type CustomHandlerFunc func(ctx context.Context, job *Job, args map[string]any) error

// Handle executes the custom handler function.
func (f CustomHandlerFunc) Handle(ctx context.Context, job *Job, args map[string]any) error {
	return f(ctx, job, args)
}
