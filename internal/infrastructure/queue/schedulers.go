package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"sokoni-backend/internal/config"
	"sokoni-backend/internal/shared"
	"sokoni-backend/pkg/logger"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	jobConfig config.JobConfig
}

func NewScheduler(redisAddress string, jobConfig config.JobConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: redisAddress},
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		jobConfig: jobConfig,
	}
}

func (s *Scheduler) RegisterJobs() error {
	return s.registerSweepStaleIntentsJob()
}

// ================================================
// JOB 1: Sweep Stale Payment Intents (Every 5 minutes)
// ================================================
// Pending intents whose confirmation callback never arrived get one
// gateway query per sweep. Five minutes keeps the window between a
// lost callback and a settled record short without hammering the
// provider.
func (s *Scheduler) registerSweepStaleIntentsJob() error {
	payload, err := json.Marshal(map[string]interface{}{})
	if err != nil {
		return err
	}

	task := asynq.NewTask(shared.TypeSweepStaleIntent, payload)

	_, err = s.scheduler.Register(
		"*/5 * * * *", // Every 5 minutes
		task,
		asynq.Queue(shared.QueuePayment),
		asynq.MaxRetry(2),
		asynq.Timeout(4*time.Minute),
	)

	if err != nil {
		logger.Error("Failed to register SweepStaleIntents job", err)
		return err
	}

	logger.Info("✓ Registered SweepStaleIntents: every 5 minutes", map[string]interface{}{
		"batch_size": s.jobConfig.SweepBatchSize,
	})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
