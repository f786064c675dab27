package services

import (
	"assignment-wizard-service/internal/domain"
	"assignment-wizard-service/internal/platform/obs"
	"assignment-wizard-service/internal/wizard"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	kindTSP  = "tsp"
	kindCVRP = "cvrp"
)

// Optimize builds the Step 3 routes from the Step 2 input: one TSP call per
// manual group, or a single CVRP call in automatic mode. The session must be
// on Step 3. The optimizer runs without the session lock and detached from the
// caller, so its output lands even if the client disconnects. It is applied
// only if the session was not reset or sent back meanwhile, and never when the
// call timed out.
func (c *Controller) Optimize(ctx context.Context, id string) (_ Result, err error) {
	defer obs.Time(ctx, "wizard.Optimize")(&err)

	sess, err := c.load(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if sess.State.CurrentStep != wizard.StepPreview {
		return Result{}, &wizard.ValidationError{Field: "currentStep", Message: "routes can only be optimized on the preview step"}
	}

	ctx, cancel := c.detach(ctx)
	defer cancel()

	var (
		res    Result
		routes []wizard.PreviewAssignment
	)
	if sess.State.AssignmentMode == wizard.ModeManual {
		routes = c.optimizeManual(ctx, sess.State, &res)
	} else {
		routes, err = c.optimizeAutomatic(ctx, sess.State, &res)
		if err != nil {
			out := c.result(sess)
			out.Notifications = res.Notifications
			return out, err
		}
	}

	if err := ctx.Err(); err != nil {
		out := c.result(sess)
		out.notify(LevelError, "Route optimization timed out, please try again")
		return out, fmt.Errorf("optimize: %w: %w", ErrBackend, err)
	}

	sess, err = c.applyIfCurrent(ctx, id, sess.Epoch, func(s wizard.State) (wizard.State, error) {
		if s.CurrentStep != wizard.StepPreview {
			return s, ErrStaleResult
		}
		return c.reducer.Reduce(s, wizard.SetAssignments{Assignments: routes}), nil
	})
	if err != nil {
		return Result{}, err
	}

	out := c.result(sess)
	out.Notifications = res.Notifications
	return out, nil
}

// optimizeManual orders every non-empty group with its own TSP call. All calls
// settle before anything is returned; a failed or malformed answer keeps the
// group's own order and adds a warning.
func (c *Controller) optimizeManual(ctx context.Context, s wizard.State, res *Result) []wizard.PreviewAssignment {
	groups := make([]wizard.ManualGroup, 0, len(s.ManualGroups))
	for _, g := range s.ManualGroups {
		if len(g.RecipientIDs) > 0 {
			groups = append(groups, g)
		}
	}

	results := make([]domain.TSPResult, len(groups))
	errs := make([]error, len(groups))

	var g errgroup.Group
	g.SetLimit(c.opts.TSPConcurrency)
	for i, grp := range groups {
		g.Go(func() error {
			start := time.Now()
			results[i], errs[i] = c.deps.Optimizer.OptimizeTSP(ctx, grp.RecipientIDs, c.opts.Depot)
			if errs[i] == nil && !samePermutation(results[i].OptimizedSequence, grp.RecipientIDs) {
				errs[i] = fmt.Errorf("optimized sequence does not match group %s", grp.ID)
			}
			c.opts.Metrics.ObserveOptimization(kindTSP, errs[i], time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	routes := make([]wizard.PreviewAssignment, 0, len(groups))
	optimized := 0
	for i, grp := range groups {
		route := wizard.PreviewAssignment{
			ID:           c.opts.NewID(),
			Name:         grp.Name,
			CourierID:    grp.CourierID,
			RecipientIDs: append([]string{}, grp.RecipientIDs...),
		}
		if errs[i] != nil {
			c.logger(ctx).Warn("tsp failed, keeping group order",
				zap.String("group_id", grp.ID),
				zap.Error(errs[i]),
			)
			res.notify(LevelWarning, "Could not optimize %s, keeping the original order: %s",
				grp.Name, backendMessage(errs[i], "optimizer unavailable"))
		} else {
			route.RecipientIDs = append([]string{}, results[i].OptimizedSequence...)
			route.RouteData = &wizard.RouteData{
				TotalDistanceMeters:  results[i].TotalDistanceMeters,
				TotalDurationSeconds: results[i].TotalDurationSeconds,
				Optimized:            true,
			}
			optimized++
		}
		routes = append(routes, route)
	}

	if optimized > 0 {
		res.notify(LevelSuccess, "Optimized %d of %d routes", optimized, len(groups))
	}
	return routes
}

// optimizeAutomatic asks the CVRP solver to split the selection across the
// selected couriers. A failure leaves the session without routes.
func (c *Controller) optimizeAutomatic(ctx context.Context, s wizard.State, res *Result) ([]wizard.PreviewAssignment, error) {
	d := wizard.ComputeDistribution(s)
	if d.CapacityPerCourier <= 0 || d.NumCouriers == 0 {
		return nil, &wizard.ValidationError{Field: "selectedCourierIds", Message: "select couriers and a capacity before optimizing"}
	}
	if !d.IsCapacitySufficient {
		if c.opts.Policy.Blocks() {
			return nil, &wizard.ValidationError{Field: "capacityPerCourier", Message: d.Shortfall()}
		}
		res.notify(LevelWarning, "Capacity is insufficient: %s", d.Shortfall())
	}

	start := time.Now()
	out, err := c.deps.Optimizer.OptimizeCVRP(ctx, domain.CVRPRequest{
		RecipientIDs:       append([]string{}, s.SelectedRecipientIDs...),
		NumCouriers:        len(s.SelectedCourierIDs),
		CapacityPerCourier: *s.CapacityPerCourier,
		Depot:              c.opts.Depot,
	})
	c.opts.Metrics.ObserveOptimization(kindCVRP, err, time.Since(start))
	if err != nil {
		res.notify(LevelError, "Route optimization failed: %s", backendMessage(err, "please try again"))
		return nil, fmt.Errorf("optimize cvrp: %w: %w", ErrBackend, err)
	}

	routes := ConvertCVRP(out, s.SelectedCourierIDs, c.opts.NewID)
	res.notify(LevelSuccess, "Created %s (%s): %s, %s",
		routeCount(len(routes)), balanceLabel(out.RouteBalanceStatus),
		wizard.FormatDistance(out.TotalDistanceMeters), wizard.FormatDuration(out.TotalDurationSeconds))
	return routes, nil
}

// ConvertCVRP maps solver routes to preview routes. courier_index i binds the
// i-th selected courier; an index outside the selection leaves the route
// without a courier for the user to pick.
func ConvertCVRP(res domain.CVRPResult, courierIDs []string, newID func() string) []wizard.PreviewAssignment {
	routes := make([]wizard.PreviewAssignment, 0, len(res.Routes))
	for i, r := range res.Routes {
		courier := ""
		if r.CourierIndex >= 0 && r.CourierIndex < len(courierIDs) {
			courier = courierIDs[r.CourierIndex]
		}
		routes = append(routes, wizard.PreviewAssignment{
			ID:           newID(),
			Name:         fmt.Sprintf("Route %d", i+1),
			CourierID:    courier,
			RecipientIDs: append([]string{}, r.RecipientSequence...),
			RouteData: &wizard.RouteData{
				TotalDistanceMeters:  r.TotalDistanceMeters,
				TotalDurationSeconds: r.TotalDurationSeconds,
				Optimized:            true,
			},
		})
	}
	return routes
}

func routeCount(n int) string {
	if n == 1 {
		return "1 route"
	}
	return fmt.Sprintf("%d routes", n)
}

func balanceLabel(status string) string {
	if status == "" {
		return "balance unknown"
	}
	return status
}

func samePermutation(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(b))
	for _, id := range b {
		counts[id]++
	}
	for _, id := range a {
		if counts[id] == 0 {
			return false
		}
		counts[id]--
	}
	return true
}
