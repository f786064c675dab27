package services

import (
	"assignment-wizard-service/internal/domain"
	"assignment-wizard-service/internal/platform/obs"
	"assignment-wizard-service/internal/ports"
	"assignment-wizard-service/internal/wizard"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	saveSuccess = "success"
	savePartial = "partial"
	saveFailed  = "failed"
	saveInvalid = "invalid"
)

// Save persists the Step 3 routes. Legs are recomputed for every final
// sequence; one route is created with a single call and several with one bulk
// call. Edits to the session are rejected until the save settles. On success
// the session is discarded. On failure it is left untouched so the user can
// retry.
func (c *Controller) Save(ctx context.Context, id string) (_ Result, err error) {
	defer obs.Time(ctx, "wizard.Save")(&err)

	if !c.saving.acquire(id) {
		return Result{}, ErrSaveInProgress
	}
	defer c.saving.release(id)

	// Edits that started before acquire have finished once the lock is ours.
	unlock := c.locks.Lock(id)
	sess, err := c.load(ctx, id)
	unlock()
	if err != nil {
		return Result{}, err
	}
	if sess.State.CurrentStep != wizard.StepConfirm {
		c.opts.Metrics.ObserveSave(saveInvalid, 0)
		return Result{}, &wizard.ValidationError{Field: "currentStep", Message: "routes can only be saved from the confirmation step"}
	}
	if err := wizard.ValidateSave(sess.State); err != nil {
		c.opts.Metrics.ObserveSave(saveInvalid, 0)
		return Result{}, err
	}

	// Once creates start, the session must be discarded even if the client
	// has gone away.
	ctx, cancel := c.detach(ctx)
	defer cancel()

	routes := make([]wizard.PreviewAssignment, 0, len(sess.State.Assignments))
	for _, a := range sess.State.Assignments {
		if len(a.RecipientIDs) > 0 {
			routes = append(routes, a)
		}
	}

	fail := func(cause error, fallback string) (Result, error) {
		c.opts.Metrics.ObserveSave(saveFailed, 0)
		res := c.result(sess)
		res.notify(LevelError, "Failed to save routes: %s", backendMessage(cause, fallback))
		return res, fmt.Errorf("save routes: %w: %w", ErrBackend, cause)
	}

	legs, cached, err := c.computeLegs(ctx, routes)
	if err != nil {
		return fail(err, "could not compute route distances")
	}

	reqs := buildRequests(sess.State.AssignmentMetadata, routes, legs)

	var created []domain.Assignment
	if len(reqs) == 1 {
		var a domain.Assignment
		a, err = c.deps.Writer.CreateAssignment(ctx, reqs[0])
		if err == nil {
			created = []domain.Assignment{a}
		}
	} else {
		created, err = c.deps.Writer.CreateBulkAssignments(ctx, reqs)
	}
	if err == nil && len(created) == 0 {
		err = errors.New("no routes were created")
	}
	if err != nil {
		return fail(err, "please try again")
	}

	var res Result
	if len(cached) > 0 {
		res.notify(LevelWarning, "Distance service unavailable; saved %s with previously computed distances",
			strings.Join(cached, ", "))
	}
	outcome := saveSuccess
	if len(created) < len(reqs) {
		outcome = savePartial
		res.notify(LevelWarning, "Saved %d of %d routes; the rest could not be created", len(created), len(reqs))
	} else {
		res.notify(LevelSuccess, "Saved %s", routeCount(len(created)))
	}
	c.opts.Metrics.ObserveSave(outcome, len(created))

	if err := c.discard(ctx, id); err != nil {
		c.logger(ctx).Warn("discard saved session", zap.String("session_id", id), zap.Error(err))
	}

	c.logger(ctx).Info("routes saved",
		zap.String("session_id", id),
		zap.Int("created", len(created)),
		zap.Int("requested", len(reqs)),
	)

	res.SessionID = id
	res.View = wizard.View(wizard.NewState(), c.opts.Policy)
	res.Created = created
	return res, nil
}

func (c *Controller) discard(ctx context.Context, id string) error {
	unlock := c.locks.Lock(id)
	defer unlock()
	return c.deps.Store.Delete(ctx, id)
}

// computeLegs fetches legs for every route concurrently. A route whose leg
// count differs from its stop count fails the whole save. The names of routes
// whose legs came from the cache instead of the backend are returned in route
// order.
func (c *Controller) computeLegs(ctx context.Context, routes []wizard.PreviewAssignment) ([][]domain.RouteLeg, []string, error) {
	legs := make([][]domain.RouteLeg, len(routes))
	fromCache := make([]bool, len(routes))
	fallback, _ := c.deps.Legs.(ports.FallbackLegCalculator)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.TSPConcurrency)
	for i, r := range routes {
		g.Go(func() error {
			var (
				out []domain.RouteLeg
				err error
			)
			if fallback != nil {
				out, fromCache[i], err = fallback.ComputeLegsOrCached(gctx, r.RecipientIDs)
			} else {
				out, err = c.deps.Legs.ComputeLegs(gctx, r.RecipientIDs)
			}
			if err != nil {
				return fmt.Errorf("legs for %s: %w", r.Name, err)
			}
			if len(out) != len(r.RecipientIDs) {
				return fmt.Errorf("legs for %s: got %d legs for %d stops", r.Name, len(out), len(r.RecipientIDs))
			}
			legs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var cached []string
	for i, r := range routes {
		if fromCache[i] {
			cached = append(cached, r.Name)
		}
	}
	return legs, cached, nil
}

// buildRequests turns the final routes into create requests. Totals come from
// the optimizer when it produced them, otherwise from the fresh legs.
func buildRequests(meta wizard.AssignmentMetadata, routes []wizard.PreviewAssignment, legs [][]domain.RouteLeg) []domain.NewAssignment {
	meta.AssignmentName = strings.TrimSpace(meta.AssignmentName)
	reqs := make([]domain.NewAssignment, 0, len(routes))
	for i, r := range routes {
		name := meta.AssignmentName
		if len(routes) > 1 {
			name = fmt.Sprintf("%s - %s", meta.AssignmentName, r.Name)
		}

		stops := make([]domain.AssignmentStop, 0, len(r.RecipientIDs))
		var dist, dur int
		for j, id := range r.RecipientIDs {
			leg := legs[i][j]
			dist += leg.DistanceMeters
			dur += leg.DurationSeconds
			stops = append(stops, domain.AssignmentStop{
				RecipientID:                 id,
				SequenceOrder:               j + 1,
				DistanceFromPreviousMeters:  leg.DistanceMeters,
				DurationFromPreviousSeconds: leg.DurationSeconds,
			})
		}

		optimized := false
		if r.RouteData != nil {
			dist = r.RouteData.TotalDistanceMeters
			dur = r.RouteData.TotalDurationSeconds
			optimized = r.RouteData.Optimized
		}

		reqs = append(reqs, domain.NewAssignment{
			Name:      name,
			CourierID: r.CourierID,
			RouteData: map[string]any{
				"delivery_date": meta.DeliveryDate,
				"notes":         meta.Notes,
				"route_name":    r.Name,
				"optimized":     optimized,
			},
			TotalDistanceMeters:  dist,
			TotalDurationSeconds: dur,
			Stops:                stops,
		})
	}
	return reqs
}
