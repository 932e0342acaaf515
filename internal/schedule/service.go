// Package schedule runs the recurring maintenance jobs: the nightly
// consolidation sweep anchored shortly after midnight.
package schedule

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	rcron "github.com/robfig/cron/v3"
)

type Service struct {
	consolidateAt string
	onConsolidate func(ctx context.Context)

	cron   *rcron.Cron
	cancel context.CancelFunc
}

// NewService schedules onConsolidate daily at consolidateAt ("HH:MM",
// local time).
func NewService(consolidateAt string, onConsolidate func(ctx context.Context)) *Service {
	return &Service{
		consolidateAt: consolidateAt,
		onConsolidate: onConsolidate,
	}
}

// cronSpec turns "HH:MM" into a daily cron expression.
func cronSpec(at string) (string, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(at), ":")
	if !ok {
		return "", fmt.Errorf("bad time %q, want HH:MM", at)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("bad hour in %q", at)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("bad minute in %q", at)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func (s *Service) Start(ctx context.Context) error {
	spec, err := cronSpec(s.consolidateAt)
	if err != nil {
		return fmt.Errorf("consolidation schedule: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.cron = rcron.New()
	if _, err := s.cron.AddFunc(spec, func() {
		log.Printf("[schedule] running daily consolidation")
		s.onConsolidate(runCtx)
	}); err != nil {
		cancel()
		return fmt.Errorf("register consolidation job: %w", err)
	}

	s.cron.Start()
	log.Printf("[schedule] started, consolidation daily at %s", s.consolidateAt)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		stopCtx := s.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[schedule] stop timeout waiting for running jobs")
		}
	}
	log.Printf("[schedule] stopped")
}
