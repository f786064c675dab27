package services

import (
	"assignment-wizard-service/internal/domain"
	"assignment-wizard-service/internal/platform/obs"
	"assignment-wizard-service/internal/ports"
	"assignment-wizard-service/internal/wizard"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	initialPage    = 1
	initialPerPage = 10
)

// Create starts a session and loads the first recipient and courier pages
// concurrently. A failed load still yields a session; the failure is reported
// as a notification and the list stays empty.
func (c *Controller) Create(ctx context.Context) (_ Result, err error) {
	defer obs.Time(ctx, "wizard.Create")(&err)

	var (
		g          errgroup.Group
		recipients domain.RecipientPage
		couriers   domain.CourierPage
		recErr     error
		courErr    error
	)
	g.Go(func() error {
		recipients, recErr = c.deps.Recipients.ListUnassignedRecipients(ctx, initialPage, initialPerPage, "")
		return recErr
	})
	g.Go(func() error {
		couriers, courErr = c.deps.Couriers.ListCouriers(ctx, initialPage, initialPerPage)
		return courErr
	})
	_ = g.Wait()

	state := wizard.NewState()
	var res Result
	if recErr != nil {
		res.notify(LevelError, "Failed to load recipients: %s", backendMessage(recErr, "please try again"))
	} else {
		state = c.reducer.Reduce(state, wizard.SetRecipients{Recipients: recipients.Items, Pagination: recipients.Pagination})
	}
	if courErr != nil {
		res.notify(LevelError, "Failed to load couriers: %s", backendMessage(courErr, "please try again"))
	} else {
		state = c.reducer.Reduce(state, wizard.SetCouriers{Couriers: couriers.Items})
	}

	sess := ports.Session{ID: c.opts.NewID(), Epoch: 1, State: state}
	if err := c.store(ctx, &sess); err != nil {
		return Result{}, err
	}

	c.logger(ctx).Info("wizard session created", zap.String("session_id", sess.ID))
	out := c.result(sess)
	out.Notifications = res.Notifications
	return out, nil
}

func (c *Controller) Get(ctx context.Context, id string) (Result, error) {
	sess, err := c.load(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return c.result(sess), nil
}

// Cancel discards the session. Results of calls still running for it are
// dropped when they finish.
func (c *Controller) Cancel(ctx context.Context, id string) error {
	unlock := c.locks.Lock(id)
	defer unlock()

	if _, err := c.load(ctx, id); err != nil {
		return err
	}
	if err := c.deps.Store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	c.logger(ctx).Info("wizard session cancelled", zap.String("session_id", id))
	return nil
}

// invalidatesResults reports whether a transition makes in-flight optimizer
// and fetch results meaningless for the new state.
func invalidatesResults(prev, next wizard.State, a wizard.Action) bool {
	if _, ok := a.(wizard.ResetWizard); ok {
		return true
	}
	return prev.CurrentStep >= wizard.StepPreview && next.CurrentStep < wizard.StepPreview
}

// Dispatch applies one action. Actions the reducer ignores leave the session
// as it was and are not an error; NextStep goes through Next.
func (c *Controller) Dispatch(ctx context.Context, id string, a wizard.Action) (Result, error) {
	if _, ok := a.(wizard.NextStep); ok {
		return c.Next(ctx, id)
	}

	applied := false
	sess, err := c.update(ctx, id, func(sess *ports.Session) error {
		next := c.reducer.Reduce(sess.State, a)
		applied = !reflect.DeepEqual(next, sess.State)
		if invalidatesResults(sess.State, next, a) {
			sess.Epoch++
		}
		sess.State = next
		return nil
	})
	c.opts.Metrics.ObserveAction(wizard.TypeOf(a), applied)
	if err != nil {
		return Result{}, err
	}
	if !applied {
		c.logger(ctx).Debug("action ignored",
			zap.String("session_id", id),
			zap.String("type", wizard.TypeOf(a)),
		)
	}
	return c.result(sess), nil
}

// Next leaves the current step if its gate passes. Entering Step 3 without
// routes runs the optimization.
func (c *Controller) Next(ctx context.Context, id string) (Result, error) {
	sess, err := c.update(ctx, id, func(sess *ports.Session) error {
		if sess.State.CurrentStep >= wizard.StepConfirm {
			return &wizard.ValidationError{Field: "currentStep", Message: "already on the last step"}
		}
		if err := wizard.ValidateStep(sess.State, c.opts.Policy); err != nil {
			return err
		}
		sess.State = c.reducer.Reduce(sess.State, wizard.NextStep{})
		return nil
	})
	c.opts.Metrics.ObserveAction(wizard.TypeNextStep, err == nil)
	if err != nil {
		return Result{}, err
	}

	if sess.State.CurrentStep != wizard.StepPreview || len(sess.State.Assignments) > 0 {
		return c.result(sess), nil
	}

	res, err := c.Optimize(ctx, id)
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, ErrBackend):
		// Step 3 stays open with no routes; the notification tells why.
		return res, nil
	case errors.Is(err, ErrStaleResult):
		return c.Get(ctx, id)
	}
	return Result{}, err
}

func (c *Controller) Back(ctx context.Context, id string) (Result, error) {
	return c.Dispatch(ctx, id, wizard.PreviousStep{})
}

// AddGroup adds an empty manual group named after the first free "Group N".
func (c *Controller) AddGroup(ctx context.Context, id string) (Result, error) {
	sess, err := c.update(ctx, id, func(sess *ports.Session) error {
		g := wizard.ManualGroup{ID: c.opts.NewID(), Name: nextGroupName(sess.State.ManualGroups)}
		next := c.reducer.Reduce(sess.State, wizard.AddManualGroup{Group: g})
		if len(next.ManualGroups) == len(sess.State.ManualGroups) {
			return &wizard.ValidationError{Field: "manualGroups", Message: "groups cannot change once routes are being previewed"}
		}
		sess.State = next
		return nil
	})
	c.opts.Metrics.ObserveAction(wizard.TypeAddManualGroup, err == nil)
	if err != nil {
		return Result{}, err
	}
	return c.result(sess), nil
}

func nextGroupName(groups []wizard.ManualGroup) string {
	taken := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		taken[g.Name] = struct{}{}
	}
	for n := len(groups) + 1; ; n++ {
		name := fmt.Sprintf("Group %d", n)
		if _, ok := taken[name]; !ok {
			return name
		}
	}
}

// FetchRecipients loads one page of unassigned recipients. Calls with a search
// term wait out the quiet period first; any newer fetch for the same session
// supersedes this one. On failure the previous page stays in place.
func (c *Controller) FetchRecipients(ctx context.Context, id string, page, perPage int, search string) (_ Result, err error) {
	defer obs.Time(ctx, "wizard.FetchRecipients")(&err)

	search = strings.TrimSpace(search)
	sess, err := c.load(ctx, id)
	if err != nil {
		return Result{}, err
	}

	token := c.search.begin(id)
	defer c.search.finish(id, token)

	if search != "" {
		latest, err := c.search.wait(ctx, id, token, c.opts.QuietPeriod)
		if err != nil {
			return Result{}, err
		}
		if !latest {
			return Result{}, ErrSuperseded
		}
	}

	recipients, ferr := c.deps.Recipients.ListUnassignedRecipients(ctx, page, perPage, search)
	if !c.search.current(id, token) {
		return Result{}, ErrSuperseded
	}
	if ferr != nil {
		res, gerr := c.Get(ctx, id)
		if gerr != nil {
			return Result{}, gerr
		}
		res.notify(LevelError, "Failed to load recipients: %s", backendMessage(ferr, "please try again"))
		return res, fmt.Errorf("fetch recipients: %w: %w", ErrBackend, ferr)
	}

	sess, err = c.applyIfCurrent(ctx, id, sess.Epoch, func(s wizard.State) (wizard.State, error) {
		return c.reducer.Reduce(s, wizard.SetRecipients{Recipients: recipients.Items, Pagination: recipients.Pagination}), nil
	})
	if err != nil {
		return Result{}, err
	}
	return c.result(sess), nil
}

// FetchCouriers loads one page of couriers, keeping the previous list on
// failure.
func (c *Controller) FetchCouriers(ctx context.Context, id string, page, perPage int) (_ Result, err error) {
	defer obs.Time(ctx, "wizard.FetchCouriers")(&err)

	sess, err := c.load(ctx, id)
	if err != nil {
		return Result{}, err
	}

	couriers, ferr := c.deps.Couriers.ListCouriers(ctx, page, perPage)
	if ferr != nil {
		res := c.result(sess)
		res.notify(LevelError, "Failed to load couriers: %s", backendMessage(ferr, "please try again"))
		return res, fmt.Errorf("fetch couriers: %w: %w", ErrBackend, ferr)
	}

	sess, err = c.applyIfCurrent(ctx, id, sess.Epoch, func(s wizard.State) (wizard.State, error) {
		return c.reducer.Reduce(s, wizard.SetCouriers{Couriers: couriers.Items}), nil
	})
	if err != nil {
		return Result{}, err
	}
	return c.result(sess), nil
}
