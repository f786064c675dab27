package services

import (
	"assignment-wizard-service/internal/domain"
	"assignment-wizard-service/internal/platform/obs"
	"assignment-wizard-service/internal/ports"
	"assignment-wizard-service/internal/wizard"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSuperseded is returned by a fetch that a newer fetch for the same
	// session replaced before its result could be applied.
	ErrSuperseded = errors.New("request superseded by a newer one")
	// ErrStaleResult is returned when a long call finished after its session
	// was reset, cancelled or moved past the point the call was started from.
	ErrStaleResult = errors.New("result no longer applies to the session")
	// ErrBackend marks failures of the delivery backend. The session is left
	// unchanged and an error notification describes the failure.
	ErrBackend = errors.New("backend request failed")
	// ErrSaveInProgress rejects a second save, and any edit, while a save of
	// the session is still running.
	ErrSaveInProgress = errors.New("save already in progress")
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user-facing message produced by a controller call.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Result is what every controller call hands back to the shell.
type Result struct {
	SessionID     string
	View          wizard.SessionView
	Notifications []Notification
	// Created is only set by a successful Save.
	Created []domain.Assignment
}

func (r *Result) notify(level Level, format string, args ...any) {
	r.Notifications = append(r.Notifications, Notification{Level: level, Message: fmt.Sprintf(format, args...)})
}

type Deps struct {
	Recipients ports.RecipientSource
	Couriers   ports.CourierSource
	Optimizer  ports.RouteOptimizer
	Legs       ports.LegCalculator
	Writer     ports.AssignmentWriter
	Store      ports.SessionStore
}

type Options struct {
	Policy wizard.CapacityPolicy
	// QuietPeriod debounces searches; zero applies searches immediately.
	QuietPeriod time.Duration
	// TSPConcurrency bounds concurrent optimizer and leg calls; <= 0 means 4.
	TSPConcurrency int
	// CallTimeout bounds optimizer and save calls; <= 0 means 2 minutes.
	CallTimeout time.Duration
	Depot       *domain.Location
	Metrics     *obs.Metrics
	Logger      *zap.Logger
	NewID       func() string
	Now         func() time.Time
}

// Controller drives wizard sessions: it owns every side effect around the
// pure reducer and serializes dispatches per session.
type Controller struct {
	deps    Deps
	opts    Options
	reducer wizard.Reducer
	locks   *keyedMutex
	search  *debouncer
	saving  *inflight
}

func NewController(deps Deps, opts Options) *Controller {
	if opts.TSPConcurrency <= 0 {
		opts.TSPConcurrency = 4
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 2 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		deps:    deps,
		opts:    opts,
		reducer: wizard.Reducer{Policy: opts.Policy},
		locks:   newKeyedMutex(),
		search:  newDebouncer(),
		saving:  newInflight(),
	}
}

func (c *Controller) logger(ctx context.Context) *zap.Logger {
	if l := obs.Logger(ctx); l != zap.L() {
		return l
	}
	return c.opts.Logger
}

func (c *Controller) result(sess ports.Session) Result {
	return Result{SessionID: sess.ID, View: wizard.View(sess.State, c.opts.Policy)}
}

func (c *Controller) load(ctx context.Context, id string) (ports.Session, error) {
	sess, err := c.deps.Store.Load(ctx, id)
	if err != nil {
		return ports.Session{}, fmt.Errorf("load session %s: %w", id, err)
	}
	return sess, nil
}

func (c *Controller) store(ctx context.Context, sess *ports.Session) error {
	sess.UpdatedAt = c.opts.Now().UTC()
	if err := c.deps.Store.Save(ctx, *sess); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// update runs fn on the session under its lock and stores the outcome.
func (c *Controller) update(ctx context.Context, id string, fn func(*ports.Session) error) (ports.Session, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	if c.saving.busy(id) {
		return ports.Session{}, ErrSaveInProgress
	}
	sess, err := c.load(ctx, id)
	if err != nil {
		return ports.Session{}, err
	}
	if err := fn(&sess); err != nil {
		return sess, err
	}
	if err := c.store(ctx, &sess); err != nil {
		return ports.Session{}, err
	}
	return sess, nil
}

// detach keeps ctx's values but not its cancellation, so a backend call and
// the write of its result survive the client going away. The call is still
// bounded by CallTimeout.
func (c *Controller) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.opts.CallTimeout)
}

// applyIfCurrent applies the result of a call started at epoch. It refuses
// with ErrStaleResult when the session is gone or its epoch moved on.
func (c *Controller) applyIfCurrent(
	ctx context.Context,
	id string,
	epoch uint64,
	fn func(wizard.State) (wizard.State, error),
) (ports.Session, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	sess, err := c.deps.Store.Load(ctx, id)
	if errors.Is(err, ports.ErrSessionNotFound) || (err == nil && sess.Epoch != epoch) {
		c.logger(ctx).Info("dropping stale result",
			zap.String("session_id", id),
			zap.Uint64("epoch", epoch),
		)
		return ports.Session{}, ErrStaleResult
	}
	if err != nil {
		return ports.Session{}, fmt.Errorf("load session %s: %w", id, err)
	}

	next, err := fn(sess.State)
	if err != nil {
		return sess, err
	}
	sess.State = next
	if err := c.store(ctx, &sess); err != nil {
		return ports.Session{}, err
	}
	return sess, nil
}

// backendMessage returns the backend's own explanation of err, or fallback.
func backendMessage(err error, fallback string) string {
	var d interface{ Detail() string }
	if errors.As(err, &d) {
		if msg := d.Detail(); msg != "" {
			return msg
		}
	}
	return fallback
}
