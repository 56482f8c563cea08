package Scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/BaseW/MyGitHubNotification/Models"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Notifier interface {
	CreateNotification(ctx context.Context, trigger string) Models.NotificationRun
}

// TickClaimer lets replicas sharing a database send each scheduled
// notification once. Only the first claim for a tick returns true.
type TickClaimer interface {
	ClaimScheduledTick(ctx context.Context, scheduledAt time.Time) (bool, error)
}

type Scheduler struct {
	cron        *cron.Cron
	schedule    cron.Schedule
	timeout     time.Duration
	logger      zerolog.Logger
	notifier    Notifier
	tickClaimer TickClaimer
	now         func() time.Time
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New accepts standard five field cron expressions and descriptors such as
// "@hourly" or "@every 30m". tickClaimer may be nil.
func New(spec string, timeout time.Duration, logger zerolog.Logger, notifier Notifier, tickClaimer TickClaimer) (*Scheduler, error) {
	schedule, parseError := parser.Parse(spec)
	if parseError != nil {
		return nil, fmt.Errorf("invalid notification schedule %q: %w", spec, parseError)
	}

	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	s := &Scheduler{
		cron:        c,
		schedule:    schedule,
		timeout:     timeout,
		logger:      logger.With().Str("component", "scheduler").Logger(),
		notifier:    notifier,
		tickClaimer: tickClaimer,
		now:         time.Now,
	}
	c.Schedule(schedule, cron.FuncJob(s.run))
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Time("next", s.schedule.Next(s.now())).Msg("scheduler started")
}

// Stop waits for a running notification to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// scheduledTick maps the firing time to the tick it belongs to. Every replica
// fires when its own clock reaches the tick, so five field schedules land on
// the same minute regardless of skew between hosts. "@every" schedules count
// from process start and are bucketed by their interval.
func (s *Scheduler) scheduledTick(firedAt time.Time) time.Time {
	if every, ok := s.schedule.(cron.ConstantDelaySchedule); ok {
		return firedAt.Truncate(every.Delay).UTC()
	}
	return firedAt.Truncate(time.Minute).UTC()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	tick := s.scheduledTick(s.now())
	logger := s.logger.With().Time("tick", tick).Logger()

	if s.tickClaimer != nil {
		claimed, claimTickError := s.tickClaimer.ClaimScheduledTick(ctx, tick)
		if claimTickError != nil {
			logger.Error().Err(claimTickError).Msg("Scheduler:run#Error while claiming the tick")
			return
		}
		if !claimed {
			logger.Info().Msg("scheduled notification already sent by another replica")
			return
		}
	}

	run := s.notifier.CreateNotification(ctx, Models.TriggerSchedule)
	logger.Info().
		Bool("delivered", run.Delivered).
		Int("issues", run.IssueCount).
		Msg("scheduled notification finished")
}
