package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/aperoland/aperoland-chat/globals"
	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
)

const retentionTimeout = time.Minute

// cronLogger routes the cron library's log output to an hclog logger.
type cronLogger struct {
	logger hclog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// RetentionJob periodically purges chat messages older than the retention period.
type RetentionJob struct {
	gateway   Gateway
	retention time.Duration
	now       func() time.Time
	cron      *cron.Cron
}

// NewRetentionJob schedules the purge according to spec (standard cron syntax or descriptors like "@daily").
func NewRetentionJob(gw Gateway, retention time.Duration, spec string) (*RetentionJob, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("invalid retention %s", retention)
	}
	logger := cronLogger{logger: globals.AppLogger.Named("retention")}
	j := &RetentionJob{
		gateway:   gw,
		retention: retention,
		now:       time.Now,
		cron:      cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger))),
	}
	_, err := j.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), retentionTimeout)
		defer cancel()
		_, _ = j.RunOnce(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid purge spec %q: %w", spec, err)
	}
	return j, nil
}

// RunOnce removes every message received before now minus the retention period.
func (j *RetentionJob) RunOnce(ctx context.Context) (int, error) {
	before := j.now().Add(-j.retention)
	n, err := j.gateway.Purge(ctx, before)
	if err != nil {
		globals.AppLogger.Error("could not purge chat history", "before", before, "error", err)
		return 0, err
	}
	globals.AppLogger.Info("purged chat history", "before", before, "count", n)
	return n, nil
}

func (j *RetentionJob) Start() {
	j.cron.Start()
}

// Stop stops the schedule and waits for a running purge.
func (j *RetentionJob) Stop() {
	<-j.cron.Stop().Done()
}
