package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/changefeed"
	"github.com/starford/notemind/internal/models"
)

// Reader lists one owner's rows in projection order.
type Reader interface {
	ListNotes(ctx context.Context, owner string) ([]models.Note, error)
	ListTasks(ctx context.Context, owner string) ([]models.Task, error)
	ListEvents(ctx context.Context, owner string) ([]models.Event, error)
}

// Feed is the change subscription primitive.
type Feed interface {
	Subscribe(tables ...string) *changefeed.Subscription
	Unsubscribe(s *changefeed.Subscription)
}

const refetchTimeout = 10 * time.Second

// Listener subscribes to notes, tasks and events and answers every change
// with a full refetch of all three for its owner. Change payloads are
// ignored.
//
// Changes that arrive while a refetch runs are coalesced into one follow-up
// refetch. Each refetch reads the complete current contents on its own, so
// correctness does not depend on the coalescing.
type Listener struct {
	owner  string
	reader Reader
	feed   Feed
	state  *State
	log    *slog.Logger
	now    func() time.Time

	refetchMu sync.Mutex

	mu      sync.Mutex
	sub     *changefeed.Subscription
	started bool
	closed  bool
	done    chan struct{}
}

// NewListener builds a Listener that writes into state.
func NewListener(owner string, reader Reader, feed Feed, state *State, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	return &Listener{
		owner:  owner,
		reader: reader,
		feed:   feed,
		state:  state,
		log:    log,
		now:    time.Now,
		done:   make(chan struct{}),
	}
}

// Start subscribes and runs the initial load. It returns once the
// subscription is registered; the loop runs until ctx ends or Close.
// Calling Start again is a no-op.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return apperr.ErrSessionClosed
	}
	if l.started {
		l.mu.Unlock()
		return nil
	}
	l.started = true
	l.sub = l.feed.Subscribe(changefeed.TableNotes, changefeed.TableTasks, changefeed.TableEvents)
	sub := l.sub
	l.mu.Unlock()

	if err := l.Refresh(ctx); err != nil {
		l.log.Warn("initial workspace load failed", slog.String("error", err.Error()))
	}
	go l.run(ctx, sub)
	return nil
}

func (l *Listener) run(ctx context.Context, sub *changefeed.Subscription) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.C:
			if !ok {
				return
			}
			drain(sub.C)
			if err := l.Refresh(ctx); err != nil && ctx.Err() == nil {
				l.log.Warn("workspace refetch failed", slog.String("error", err.Error()))
			}
		}
	}
}

// drain discards changes already queued; the next refetch observes them.
func drain(c <-chan changefeed.Change) {
	for {
		select {
		case _, ok := <-c:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Refresh reads notes, tasks and events for the owner and replaces the
// State only if all three reads succeed. Refetches never overlap.
func (l *Listener) Refresh(ctx context.Context) error {
	l.refetchMu.Lock()
	defer l.refetchMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, refetchTimeout)
	defer cancel()

	var (
		notes  []models.Note
		tasks  []models.Task
		events []models.Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		notes, err = l.reader.ListNotes(gctx, l.owner)
		return err
	})
	g.Go(func() (err error) {
		tasks, err = l.reader.ListTasks(gctx, l.owner)
		return err
	})
	g.Go(func() (err error) {
		events, err = l.reader.ListEvents(gctx, l.owner)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("workspace: refetch: %w", err)
	}

	l.state.replace(notes, tasks, events, l.now())
	l.log.Debug("workspace refreshed",
		slog.Int("notes", len(notes)),
		slog.Int("tasks", len(tasks)),
		slog.Int("events", len(events)),
		slog.Uint64("version", l.state.Version()))
	return nil
}

// Close releases the subscription and waits for the loop to exit. It is
// safe to call more than once.
func (l *Listener) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	started, sub := l.started, l.sub
	l.mu.Unlock()

	if !started {
		return
	}
	l.feed.Unsubscribe(sub)
	<-l.done
}
