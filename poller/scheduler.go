package poller

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/plateful/plateful-client/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// CronScheduler is the production PollScheduler. Fixed-interval schedules
// only; the polled endpoints are idempotent reads, so no jitter or
// backoff is applied and a failed tick simply waits for the next one.
type CronScheduler struct {
	logger          types.Logger
	cron            *cron.Cron
	state           atomic.Value
	shutdownTimeout time.Duration
}

func NewCronScheduler(logger types.Logger) *CronScheduler {
	cronL := cronLogger{logger: logger}

	s := &CronScheduler{
		logger: logger,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronL)),
		),
		shutdownTimeout: 10 * time.Second,
	}

	s.state.Store(StateStopped)

	return s
}

func (s *CronScheduler) Start() error {
	if !s.state.CompareAndSwap(StateStopped, StateStarting) {
		return types.ErrSchedulerAlreadyRunning
	}

	s.cron.Start()
	s.state.Store(StateRunning)
	s.logger.Debug("Poll scheduler started")

	return nil
}

func (s *CronScheduler) Stop() error {
	if !s.state.CompareAndSwap(StateRunning, StateStopping) {
		return types.ErrSchedulerNotRunning
	}

	defer s.state.Store(StateStopped)

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Debug("Poll scheduler stopped gracefully")
	case <-time.After(s.shutdownTimeout):
		s.logger.Warn("Poll scheduler stop timeout, a tick may still be running")
	}

	return nil
}

func (s *CronScheduler) IsRunning() bool {
	return s.state.Load().(State) == StateRunning
}

// Schedule re-runs task every interval until the returned cancel is
// called. Sub-second intervals are rounded up by the cron runner.
func (s *CronScheduler) Schedule(interval time.Duration, task func()) (func(), error) {
	if interval <= 0 {
		return nil, types.ErrIntervalInvalid
	}
	if !s.IsRunning() {
		return nil, types.ErrSchedulerNotRunning
	}

	id := s.cron.Schedule(cron.Every(interval), cron.FuncJob(task))

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.cron.Remove(id)
		})
	}

	return cancel, nil
}

type cronLogger struct {
	logger types.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
