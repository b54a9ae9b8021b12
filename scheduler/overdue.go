// Package scheduler runs the periodic overdue sweep.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/abefas/todoboard/models"
)

// UserLister lists every registered user.
type UserLister interface {
	GetAll(ctx context.Context) ([]models.User, error)
}

// OverdueMarker flags one user's past-due tasks and returns how many changed.
type OverdueMarker interface {
	MarkOverdueForUser(ctx context.Context, userID string) (int, error)
}

// SweepResult summarizes one pass over all users.
type SweepResult struct {
	Users   int
	Flipped int
	Failed  int
}

// Overdue marks past-due tasks for every user on a fixed interval.
type Overdue struct {
	users    UserLister
	tasks    OverdueMarker
	interval time.Duration
	logger   *log.Logger

	cancel   context.CancelFunc
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewOverdue creates a scheduler. It does nothing until Start.
func NewOverdue(users UserLister, tasks OverdueMarker, interval time.Duration, logger *log.Logger) *Overdue {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Overdue{
		users:    users,
		tasks:    tasks,
		interval: interval,
		logger:   logger.WithPrefix("scheduler"),
	}
}

// Start launches the sweep loop in the background.
func (o *Overdue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.stopChan = make(chan struct{})
	o.doneChan = make(chan struct{})

	go o.run(ctx)

	o.logger.Info("overdue sweep started", "interval", o.interval)
}

func (o *Overdue) run(ctx context.Context) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	defer close(o.doneChan)

	for {
		select {
		case <-o.stopChan:
			return
		case <-ticker.C:
			res := o.RunOnce(ctx)
			if res.Flipped > 0 || res.Failed > 0 {
				o.logger.Info("overdue sweep finished",
					"users", res.Users, "flipped", res.Flipped, "failed", res.Failed)
			}
		}
	}
}

// Stop ends the loop and waits for an in-flight sweep, or for ctx.
func (o *Overdue) Stop(ctx context.Context) error {
	if o.stopChan == nil {
		return nil
	}

	o.stopOnce.Do(func() {
		close(o.stopChan)
		o.cancel()
	})

	select {
	case <-o.doneChan:
		o.logger.Info("overdue sweep stopped")
	case <-ctx.Done():
		o.logger.Warn("overdue sweep shutdown timeout exceeded")
		return ctx.Err()
	}
	return nil
}

// RunOnce sweeps every user once. A failing user is logged and skipped.
func (o *Overdue) RunOnce(ctx context.Context) SweepResult {
	var res SweepResult

	users, err := o.users.GetAll(ctx)
	if err != nil {
		o.logger.Error("failed to list users for overdue sweep", "err", err)
		return res
	}

	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		res.Users++
		n, err := o.tasks.MarkOverdueForUser(ctx, u.ID)
		if err != nil {
			res.Failed++
			o.logger.Error("overdue sweep failed for user", "user", u.ID, "err", err)
			continue
		}
		res.Flipped += n
	}
	return res
}

// RefreshUser marks one user's tasks synchronously, ahead of a read.
func (o *Overdue) RefreshUser(ctx context.Context, userID string) (int, error) {
	n, err := o.tasks.MarkOverdueForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		o.logger.Debug("marked tasks overdue", "user", userID, "count", n)
	}
	return n, nil
}
