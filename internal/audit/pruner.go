// Package audit maintains the connection audit trail over time.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wsbridge/backend/internal/repository"
)

// sweepTimeout bounds one retention sweep.
const sweepTimeout = 30 * time.Second

// Pruner deletes closed-connection records older than the retention window
// on a cron schedule.
type Pruner struct {
	repo      *repository.ConnectionRepository
	retention time.Duration
	cron      *cron.Cron
}

// NewPruner creates a Pruner sweeping on the given cron schedule
// (e.g. "@hourly").
func NewPruner(repo *repository.ConnectionRepository, retention time.Duration, schedule string) (*Pruner, error) {
	p := &Pruner{
		repo:      repo,
		retention: retention,
		cron:      cron.New(),
	}
	if _, err := p.cron.AddFunc(schedule, p.sweep); err != nil {
		return nil, err
	}
	return p, nil
}

// Start begins the schedule. It returns immediately; sweeps run on the cron's
// own goroutine.
func (p *Pruner) Start() {
	p.cron.Start()
}

// Stop halts the schedule, waiting for an in-flight sweep to finish.
func (p *Pruner) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
}

// Sweep removes records older than the retention window. Exposed so callers
// can force a sweep outside the schedule.
func (p *Pruner) Sweep() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	return p.repo.DeleteOlderThan(ctx, time.Now().Add(-p.retention))
}

func (p *Pruner) sweep() {
	n, err := p.Sweep()
	if err != nil {
		log.Printf("audit: prune failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("audit: pruned %d connection records", n)
	}
}
