package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"storefront-backend/internal/domains/payment/job"
	"storefront-backend/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
}

func NewScheduler(redisAddress string) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddress},
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
	}
}

// RegisterPaymentJobs wires the recurring payment maintenance tasks
func (s *Scheduler) RegisterPaymentJobs() error {
	return s.registerPollStaleTransactionsJob()
}

// ================================================
// JOB: Poll Stale Transactions (every 5 minutes)
// ================================================
// Pending transactions past the staleness threshold are asked about
// at the gateway and finalized when a terminal answer comes back.
func (s *Scheduler) registerPollStaleTransactionsJob() error {
	payload, err := json.Marshal(job.PollStalePayload{})
	if err != nil {
		return err
	}

	task := asynq.NewTask(job.TypePollStaleTransactions, payload)

	_, err = s.scheduler.Register(
		"*/5 * * * *",
		task,
		asynq.Queue("default"),
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
	)

	if err != nil {
		logger.Error("Failed to register PollStaleTransactions job", err)
		return err
	}

	logger.Info("Registered PollStaleTransactions job", map[string]interface{}{
		"schedule": "*/5 * * * *",
	})
	return nil
}

// Start runs the scheduler loop. Blocks until Shutdown.
func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

// Shutdown stops the scheduler
func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
