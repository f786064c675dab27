package services

import (
	"assignment-wizard-service/internal/adapters/backend"
	"assignment-wizard-service/internal/adapters/sessions"
	"assignment-wizard-service/internal/domain"
	"assignment-wizard-service/internal/platform/obs"
	"assignment-wizard-service/internal/ports"
	"assignment-wizard-service/internal/wizard"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func recipients(pkgs ...int) []domain.Recipient {
	out := make([]domain.Recipient, 0, len(pkgs))
	for i, n := range pkgs {
		out = append(out, domain.Recipient{
			ID:          fmt.Sprintf("r%d", i+1),
			Name:        fmt.Sprintf("Recipient %d", i+1),
			Status:      domain.RecipientUnassigned,
			NumPackages: n,
		})
	}
	return out
}

// meshLegs connects the depot and every recipient in both directions:
// 1000 m from the depot, 500 m between recipients.
func meshLegs(rs []domain.Recipient) []backend.MockLeg {
	var legs []backend.MockLeg
	for _, a := range rs {
		legs = append(legs, backend.MockLeg{From: backend.DepotKey, To: a.ID, Meters: 1000, Seconds: 120})
		for _, b := range rs {
			if a.ID != b.ID {
				legs = append(legs, backend.MockLeg{From: a.ID, To: b.ID, Meters: 500, Seconds: 60})
			}
		}
	}
	return legs
}

func newMock(rs []domain.Recipient) *backend.MockBackend {
	m := backend.NewMockBackend(meshLegs(rs))
	m.Recipients = rs
	m.Couriers = []domain.Courier{{ID: "c1", Name: "Budi"}, {ID: "c2", Name: "Sari"}, {ID: "c3", Name: "Joko"}}
	return m
}

func newTestController(t *testing.T, m *backend.MockBackend, opts Options) *Controller {
	t.Helper()
	var n atomic.Int64
	opts.NewID = func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
	return NewController(Deps{
		Recipients: m,
		Couriers:   m,
		Optimizer:  m,
		Legs:       m,
		Writer:     m,
		Store:      sessions.NewMemoryStore(time.Hour),
	}, opts)
}

func dispatch(t *testing.T, c *Controller, id string, actions ...wizard.Action) Result {
	t.Helper()
	var res Result
	for _, a := range actions {
		var err error
		res, err = c.Dispatch(context.Background(), id, a)
		require.NoError(t, err, wizard.TypeOf(a))
	}
	return res
}

func next(t *testing.T, c *Controller, id string) Result {
	t.Helper()
	res, err := c.Next(context.Background(), id)
	require.NoError(t, err)
	return res
}

// automaticPreview walks a fresh session to Step 3 in automatic mode.
func automaticPreview(t *testing.T, c *Controller, couriers ...string) Result {
	t.Helper()
	res, err := c.Create(context.Background())
	require.NoError(t, err)
	id := res.SessionID

	dispatch(t, c, id,
		wizard.ToggleRecipient{RecipientID: "r1"},
		wizard.ToggleRecipient{RecipientID: "r2"},
		wizard.ToggleRecipient{RecipientID: "r3"},
		wizard.SetCapacity{Capacity: intPtr(20)},
	)
	next(t, c, id)
	for _, cid := range couriers {
		dispatch(t, c, id, wizard.ToggleCourier{CourierID: cid})
	}
	return next(t, c, id)
}

func confirm(t *testing.T, c *Controller, id string) {
	t.Helper()
	dispatch(t, c, id, wizard.SetAssignmentMetadata{Metadata: wizard.AssignmentMetadata{
		AssignmentName: "Batch",
		DeliveryDate:   "2026-10-20",
		Notes:          "fragile",
	}})
	res := next(t, c, id)
	require.Equal(t, wizard.StepConfirm, res.View.CurrentStep)
}

func levels(ns []Notification) []Level {
	out := make([]Level, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Level)
	}
	return out
}

func TestCreateLoadsFirstPages(t *testing.T) {
	m := newMock(recipients(1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1))
	c := newTestController(t, m, Options{})

	res, err := c.Create(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
	assert.Len(t, res.View.Recipients, 10)
	assert.Equal(t, 12, res.View.RecipientPagination.TotalItems)
	assert.Equal(t, 2, res.View.RecipientPagination.TotalPages)
	assert.Len(t, res.View.Couriers, 3)
	assert.Empty(t, res.Notifications)
	assert.Equal(t, 1, m.Calls("ListUnassignedRecipients"))
	assert.Equal(t, 1, m.Calls("ListCouriers"))
}

func TestCreateReportsLoadFailure(t *testing.T) {
	m := newMock(recipients(1, 2))
	m.ListErr = &backend.StatusError{Code: 503, Body: `{"detail":"maintenance"}`}
	c := newTestController(t, m, Options{})

	res, err := c.Create(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.View.Recipients)
	require.Len(t, res.Notifications, 2)
	assert.Equal(t, "Failed to load recipients: maintenance", res.Notifications[0].Message)

	_, err = c.Get(context.Background(), res.SessionID)
	assert.NoError(t, err)
}

func TestNextIsGated(t *testing.T) {
	c := newTestController(t, newMock(recipients(1)), Options{})
	res, err := c.Create(context.Background())
	require.NoError(t, err)

	_, err = c.Next(context.Background(), res.SessionID)
	var verr *wizard.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "selectedRecipientIds", verr.Field)

	got, err := c.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, wizard.StepSelectRecipients, got.View.CurrentStep)
}

func TestManualFlowOptimizesEachGroupAndSaves(t *testing.T) {
	m := newMock(recipients(2, 3, 4))
	m.TSPFunc = func(ids []string) (domain.TSPResult, error) {
		seq := slices.Clone(ids)
		slices.Reverse(seq)
		return domain.TSPResult{OptimizedSequence: seq, TotalDistanceMeters: 1500 * len(ids), TotalDurationSeconds: 300, NumStops: len(ids)}, nil
	}
	c := newTestController(t, m, Options{})

	res, err := c.Create(context.Background())
	require.NoError(t, err)
	id := res.SessionID

	dispatch(t, c, id,
		wizard.ToggleRecipient{RecipientID: "r1"},
		wizard.ToggleRecipient{RecipientID: "r2"},
		wizard.ToggleRecipient{RecipientID: "r3"},
		wizard.SetAssignmentMode{Mode: wizard.ModeManual},
	)
	next(t, c, id)

	_, err = c.AddGroup(context.Background(), id)
	require.NoError(t, err)
	res, err = c.AddGroup(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, res.View.ManualGroups, 2)
	g1, g2 := res.View.ManualGroups[0], res.View.ManualGroups[1]
	assert.Equal(t, "Group 1", g1.Name)
	assert.Equal(t, "Group 2", g2.Name)

	res = dispatch(t, c, id,
		wizard.DropRecipient{RecipientID: "r1", OverID: g1.ID},
		wizard.DropRecipient{RecipientID: "r2", OverID: g1.ID},
		wizard.DropRecipient{RecipientID: "r3", OverID: g2.ID},
		wizard.UpdateManualGroup{GroupID: g1.ID, CourierID: strPtr("c1")},
		wizard.UpdateManualGroup{GroupID: g2.ID, CourierID: strPtr("c2")},
	)
	assert.True(t, res.View.CanProceed)

	res = next(t, c, id)
	assert.Equal(t, wizard.StepPreview, res.View.CurrentStep)
	assert.Equal(t, 2, m.Calls("OptimizeTSP"))
	require.Len(t, res.View.Assignments, 2)
	assert.Equal(t, []string{"r2", "r1"}, res.View.Assignments[0].RecipientIDs)
	assert.Equal(t, "c1", res.View.Assignments[0].CourierID)
	assert.Equal(t, "Group 1", res.View.Assignments[0].Name)
	assert.Equal(t, 3000, res.View.Assignments[0].RouteData.TotalDistanceMeters)
	assert.Equal(t, []Level{LevelSuccess}, levels(res.Notifications))

	confirm(t, c, id)
	res, err = c.Save(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, res.Created, 2)
	assert.Equal(t, 1, m.Calls("CreateBulkAssignments"))
	assert.Equal(t, 0, m.Calls("CreateAssignment"))

	created := m.Created()
	require.Len(t, created, 2)
	assert.Equal(t, "Batch - Group 1", created[0].Name)
	assert.Equal(t, 3000, created[0].TotalDistanceMeters)
	assert.Equal(t, []domain.AssignmentStop{
		{RecipientID: "r2", SequenceOrder: 1, DistanceFromPreviousMeters: 1000, DurationFromPreviousSeconds: 120},
		{RecipientID: "r1", SequenceOrder: 2, DistanceFromPreviousMeters: 500, DurationFromPreviousSeconds: 60},
	}, created[0].Stops)
	assert.Equal(t, map[string]any{
		"delivery_date": "2026-10-20",
		"notes":         "fragile",
		"route_name":    "Group 1",
		"optimized":     true,
	}, created[0].RouteData)

	_, err = c.Get(context.Background(), id)
	assert.True(t, errors.Is(err, ports.ErrSessionNotFound))
}

func TestManualFallsBackWhenTSPFails(t *testing.T) {
	m := newMock(recipients(1, 1, 1))
	m.TSPFunc = func(ids []string) (domain.TSPResult, error) {
		if slices.Contains(ids, "r3") {
			return domain.TSPResult{}, &backend.StatusError{Code: 504, Body: `{"detail":"solver timed out"}`}
		}
		// A sequence that is not a permutation of the input is also rejected.
		return domain.TSPResult{OptimizedSequence: []string{"r1"}}, nil
	}
	c := newTestController(t, m, Options{})

	res, err := c.Create(context.Background())
	require.NoError(t, err)
	id := res.SessionID
	dispatch(t, c, id,
		wizard.ToggleRecipient{RecipientID: "r1"},
		wizard.ToggleRecipient{RecipientID: "r2"},
		wizard.ToggleRecipient{RecipientID: "r3"},
		wizard.SetAssignmentMode{Mode: wizard.ModeManual},
		wizard.NextStep{},
	)
	res, _ = c.AddGroup(context.Background(), id)
	g1 := res.View.ManualGroups[0]
	res, _ = c.AddGroup(context.Background(), id)
	g2 := res.View.ManualGroups[1]
	dispatch(t, c, id,
		wizard.MoveRecipientToGroup{RecipientID: "r2", ToGroupID: g1.ID},
		wizard.MoveRecipientToGroup{RecipientID: "r1", ToGroupID: g1.ID},
		wizard.MoveRecipientToGroup{RecipientID: "r3", ToGroupID: g2.ID},
		wizard.UpdateManualGroup{GroupID: g1.ID, CourierID: strPtr("c1")},
		wizard.UpdateManualGroup{GroupID: g2.ID, CourierID: strPtr("c2")},
	)

	res = next(t, c, id)
	require.Len(t, res.View.Assignments, 2)
	for _, a := range res.View.Assignments {
		assert.Nil(t, a.RouteData)
	}
	assert.Equal(t, []string{"r2", "r1"}, res.View.Assignments[0].RecipientIDs)
	assert.Equal(t, []string{"r3"}, res.View.Assignments[1].RecipientIDs)
	assert.Equal(t, []Level{LevelWarning, LevelWarning}, levels(res.Notifications))
	assert.Contains(t, res.Notifications[1].Message, "solver timed out")
}

func TestAutomaticConvertsCVRPRoutes(t *testing.T) {
	m := newMock(recipients(5, 5, 5))
	m.CVRPFunc = func(req domain.CVRPRequest) (domain.CVRPResult, error) {
		return domain.CVRPResult{
			Routes: []domain.CVRPRoute{
				{CourierIndex: 1, RecipientSequence: []string{"r3", "r1"}, TotalDistanceMeters: 2500, TotalDurationSeconds: 600},
				{CourierIndex: 7, RecipientSequence: []string{"r2"}, TotalDistanceMeters: 1000, TotalDurationSeconds: 240},
			},
			NumRoutes:            2,
			TotalDistanceMeters:  3500,
			TotalDurationSeconds: 3900,
			RouteBalanceStatus:   "balanced",
		}, nil
	}
	c := newTestController(t, m, Options{Depot: &domain.Location{Lat: -6.2, Lng: 106.8}})

	res := automaticPreview(t, c, "c2", "c1")
	require.Len(t, res.View.Assignments, 2)
	assert.Equal(t, "Route 1", res.View.Assignments[0].Name)
	assert.Equal(t, "c1", res.View.Assignments[0].CourierID)
	assert.Equal(t, "", res.View.Assignments[1].CourierID)
	assert.Equal(t, []Notification{{Level: LevelSuccess, Message: "Created 2 routes (balanced): 3.5 km, 1h 5m"}}, res.Notifications)

	reqs := m.CVRPRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, 2, reqs[0].NumCouriers)
	assert.Equal(t, 20, reqs[0].CapacityPerCourier)
	assert.Equal(t, []string{"r1", "r2", "r3"}, reqs[0].RecipientIDs)
	assert.Equal(t, -6.2, reqs[0].Depot.Lat)

	// The route without a courier blocks the way to Step 4.
	_, err := c.Next(context.Background(), res.SessionID)
	var verr *wizard.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestCVRPFailureLeavesNoRoutes(t *testing.T) {
	m := newMock(recipients(1, 1, 1))
	m.CVRPFunc = func(domain.CVRPRequest) (domain.CVRPResult, error) {
		return domain.CVRPResult{}, &backend.StatusError{Code: 500, Body: "boom"}
	}
	c := newTestController(t, m, Options{})

	res := automaticPreview(t, c, "c1")
	assert.Equal(t, wizard.StepPreview, res.View.CurrentStep)
	assert.Empty(t, res.View.Assignments)
	assert.Equal(t, []Notification{{Level: LevelError, Message: "Route optimization failed: please try again"}}, res.Notifications)

	_, err := c.Optimize(context.Background(), res.SessionID)
	assert.True(t, errors.Is(err, ErrBackend))
	assert.Equal(t, 0, m.Calls("OptimizeTSP"))
}

func TestWarnPolicyOptimizesWithInsufficientCapacity(t *testing.T) {
	m := newMock(recipients(15, 15, 15))
	c := newTestController(t, m, Options{Policy: wizard.CapacityWarn})

	res := automaticPreview(t, c, "c1")
	assert.Equal(t, wizard.StepPreview, res.View.CurrentStep)
	assert.Equal(t, []Level{LevelWarning, LevelSuccess}, levels(res.Notifications))
	assert.Equal(t, 1, m.Calls("OptimizeCVRP"))
}

func TestBlockPolicyRefusesInsufficientCapacity(t *testing.T) {
	m := newMock(recipients(15, 15, 15))
	c := newTestController(t, m, Options{})

	res, err := c.Create(context.Background())
	require.NoError(t, err)
	id := res.SessionID
	dispatch(t, c, id,
		wizard.ToggleRecipient{RecipientID: "r1"},
		wizard.ToggleRecipient{RecipientID: "r2"},
		wizard.ToggleRecipient{RecipientID: "r3"},
		wizard.SetCapacity{Capacity: intPtr(20)},
		wizard.NextStep{},
		wizard.ToggleCourier{CourierID: "c1"},
	)

	_, err = c.Next(context.Background(), id)
	var verr *wizard.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "capacityPerCourier", verr.Field)
	assert.Equal(t, 0, m.Calls("OptimizeCVRP"))
}

func TestResetDropsInFlightOptimization(t *testing.T) {
	m := newMock(recipients(1, 1, 1))
	started := make(chan struct{})
	release := make(chan struct{})
	m.CVRPFunc = func(req domain.CVRPRequest) (domain.CVRPResult, error) {
		close(started)
		<-release
		return domain.CVRPResult{Routes: []domain.CVRPRoute{{RecipientSequence: req.RecipientIDs}}}, nil
	}
	c := newTestController(t, m, Options{})

	res, err := c.Create(context.Background())
	require.NoError(t, err)
	id := res.SessionID
	dispatch(t, c, id,
		wizard.ToggleRecipient{RecipientID: "r1"},
		wizard.SetCapacity{Capacity: intPtr(5)},
		wizard.NextStep{},
		wizard.ToggleCourier{CourierID: "c1"},
	)

	done := make(chan error, 1)
	go func() {
		_, err := c.Next(context.Background(), id)
		done <- err
	}()

	<-started
	dispatch(t, c, id, wizard.ResetWizard{})
	close(release)
	require.NoError(t, <-done)

	got, err := c.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, wizard.StepSelectRecipients, got.View.CurrentStep)
	assert.Empty(t, got.View.Assignments)
	assert.Empty(t, got.View.SelectedRecipientIDs)
}

// slowOptimizer answers TSP calls after delay unless the call's context ends
// first.
type slowOptimizer struct {
	*backend.MockBackend
	delay time.Duration
}

func (s slowOptimizer) OptimizeTSP(ctx context.Context, ids []string, depot *domain.Location) (domain.TSPResult, error) {
	select {
	case <-ctx.Done():
		return domain.TSPResult{}, ctx.Err()
	case <-time.After(s.delay):
	}
	return s.MockBackend.OptimizeTSP(ctx, ids, depot)
}

// oneManualGroup walks a fresh session to the end of Step 2 in manual mode
// with r1..r3 in a single group driven by c1.
func oneManualGroup(t *testing.T, c *Controller) string {
	t.Helper()
	res, err := c.Create(context.Background())
	require.NoError(t, err)
	id := res.SessionID
	dispatch(t, c, id,
		wizard.ToggleRecipient{RecipientID: "r1"},
		wizard.ToggleRecipient{RecipientID: "r2"},
		wizard.ToggleRecipient{RecipientID: "r3"},
		wizard.SetAssignmentMode{Mode: wizard.ModeManual},
		wizard.NextStep{},
	)
	res, err = c.AddGroup(context.Background(), id)
	require.NoError(t, err)
	g := res.View.ManualGroups[0]
	dispatch(t, c, id,
		wizard.MoveRecipientToGroup{RecipientID: "r1", ToGroupID: g.ID},
		wizard.MoveRecipientToGroup{RecipientID: "r2", ToGroupID: g.ID},
		wizard.MoveRecipientToGroup{RecipientID: "r3", ToGroupID: g.ID},
		wizard.UpdateManualGroup{GroupID: g.ID, CourierID: strPtr("c1")},
	)
	return id
}

func TestOptimizationOutlivesCallerContext(t *testing.T) {
	m := newMock(recipients(1, 1, 1))
	c := newTestController(t, m, Options{})
	c.deps.Optimizer = slowOptimizer{MockBackend: m, delay: 100 * time.Millisecond}
	id := oneManualGroup(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	res, err := c.Next(ctx, id)
	require.NoError(t, err)
	require.Len(t, res.View.Assignments, 1)
	assert.NotNil(t, res.View.Assignments[0].RouteData, "route was optimized, not a fallback")
	assert.Equal(t, []Level{LevelSuccess}, levels(res.Notifications))

	got, err := c.Get(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, got.View.Assignments, 1)
	assert.NotNil(t, got.View.Assignments[0].RouteData)
}

func TestOptimizationTimeoutStoresNoFallback(t *testing.T) {
	m := newMock(recipients(1, 1, 1))
	c := newTestController(t, m, Options{CallTimeout: 10 * time.Millisecond})
	c.deps.Optimizer = slowOptimizer{MockBackend: m, delay: time.Second}
	id := oneManualGroup(t, c)

	res, err := c.Next(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, wizard.StepPreview, res.View.CurrentStep)
	assert.Empty(t, res.View.Assignments)
	assert.Equal(t, LevelError, res.Notifications[len(res.Notifications)-1].Level)

	got, err := c.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, got.View.Assignments)
}

func TestSaveSingleRouteUsesSingleCreate(t *testing.T) {
	m := newMock(recipients(2, 2, 2))
	c := newTestController(t, m, Options{})

	res := automaticPreview(t, c, "c1")
	id := res.SessionID
	// The default mock CVRP answer carries no totals, so the fresh legs are summed.
	dispatch(t, c, id, wizard.UpdateRouteData{AssignmentID: res.View.Assignments[0].ID})
	confirm(t, c, id)

	res, err := c.Save(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Calls("CreateAssignment"))
	assert.Equal(t, 0, m.Calls("CreateBulkAssignments"))
	assert.Equal(t, []Notification{{Level: LevelSuccess, Message: "Saved 1 route"}}, res.Notifications)

	created := m.Created()
	require.Len(t, created, 1)
	assert.Equal(t, "Batch", created[0].Name)
	assert.Equal(t, "c1", created[0].CourierID)
	assert.Equal(t, 2000, created[0].TotalDistanceMeters)
	assert.Equal(t, 240, created[0].TotalDurationSeconds)
	assert.Equal(t, false, created[0].RouteData["optimized"])
	assert.Len(t, created[0].Stops, 3)
}

func TestSaveSkipsRemovedRecipients(t *testing.T) {
	m := newMock(recipients(1, 1, 1))
	c := newTestController(t, m, Options{})

	res := automaticPreview(t, c, "c1")
	id := res.SessionID
	route := res.View.Assignments[0]
	res = dispatch(t, c, id, wizard.RemoveRecipientFromAssignment{AssignmentID: route.ID, RecipientID: "r2"})
	assert.Equal(t, []string{"r2"}, res.View.RemovedRecipientIDs)
	confirm(t, c, id)

	_, err := c.Save(context.Background(), id)
	require.NoError(t, err)
	created := m.Created()
	require.Len(t, created, 1)
	assert.Equal(t, []string{"r1", "r3"}, []string{created[0].Stops[0].RecipientID, created[0].Stops[1].RecipientID})
}

func twoRoutes(req domain.CVRPRequest) (domain.CVRPResult, error) {
	return domain.CVRPResult{Routes: []domain.CVRPRoute{
		{CourierIndex: 0, RecipientSequence: req.RecipientIDs[:1], TotalDistanceMeters: 1000},
		{CourierIndex: 1, RecipientSequence: req.RecipientIDs[1:], TotalDistanceMeters: 2000},
	}}, nil
}

func TestSavePartialSuccessWarns(t *testing.T) {
	m := newMock(recipients(1, 1, 1))
	m.CVRPFunc = twoRoutes
	m.BulkFunc = func(reqs []domain.NewAssignment) ([]domain.Assignment, error) {
		return []domain.Assignment{{ID: "asg-1", Name: reqs[0].Name}}, nil
	}
	c := newTestController(t, m, Options{})

	res := automaticPreview(t, c, "c1", "c2")
	confirm(t, c, res.SessionID)

	res, err := c.Save(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Len(t, res.Created, 1)
	assert.Equal(t, []Notification{{Level: LevelWarning, Message: "Saved 1 of 2 routes; the rest could not be created"}}, res.Notifications)
	names := []string{m.Created()[0].Name, m.Created()[1].Name}
	assert.Equal(t, []string{"Batch - Route 1", "Batch - Route 2"}, names)
}

func TestSaveFailureKeepsSession(t *testing.T) {
	m := newMock(recipients(1, 1, 1))
	m.CVRPFunc = twoRoutes
	m.CreateErr = &backend.StatusError{Code: 400, Body: `{"detail":{"message":"All assignments failed","errors":[]}}`}
	c := newTestController(t, m, Options{})

	res := automaticPreview(t, c, "c1", "c2")
	id := res.SessionID
	confirm(t, c, id)

	res, err := c.Save(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackend))
	assert.Equal(t, []Notification{{Level: LevelError, Message: "Failed to save routes: All assignments failed"}}, res.Notifications)

	got, err := c.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, wizard.StepConfirm, got.View.CurrentStep)
	assert.Len(t, got.View.Assignments, 2)
}

func TestSaveRejectsEditsWhileRunning(t *testing.T) {
	m := newMock(recipients(1, 1, 1))
	m.CVRPFunc = twoRoutes
	started := make(chan struct{})
	release := make(chan struct{})
	m.BulkFunc = func(reqs []domain.NewAssignment) ([]domain.Assignment, error) {
		close(started)
		<-release
		return []domain.Assignment{{ID: "asg-1"}, {ID: "asg-2"}}, nil
	}
	c := newTestController(t, m, Options{})

	res := automaticPreview(t, c, "c1", "c2")
	id := res.SessionID
	confirm(t, c, id)

	done := make(chan error, 1)
	go func() {
		_, err := c.Save(context.Background(), id)
		done <- err
	}()
	<-started

	_, err := c.Dispatch(context.Background(), id, wizard.SetAssignmentMetadata{Metadata: wizard.AssignmentMetadata{AssignmentName: "Renamed"}})
	assert.True(t, errors.Is(err, ErrSaveInProgress))
	_, err = c.Back(context.Background(), id)
	assert.True(t, errors.Is(err, ErrSaveInProgress))
	_, err = c.Save(context.Background(), id)
	assert.True(t, errors.Is(err, ErrSaveInProgress))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "Batch - Route 1", m.Created()[0].Name)

	_, err = c.Get(context.Background(), id)
	assert.True(t, errors.Is(err, ports.ErrSessionNotFound))
}

// cachedLegs answers every route from its cache, as a leg calculator does
// while the distance service is down.
type cachedLegs struct{}

func (cachedLegs) ComputeLegs(ctx context.Context, ids []string) ([]domain.RouteLeg, error) {
	legs, _, err := cachedLegs{}.ComputeLegsOrCached(ctx, ids)
	return legs, err
}

func (cachedLegs) ComputeLegsOrCached(ctx context.Context, ids []string) ([]domain.RouteLeg, bool, error) {
	legs := make([]domain.RouteLeg, len(ids))
	for i := range legs {
		legs[i] = domain.RouteLeg{DistanceMeters: 700, DurationSeconds: 70}
	}
	return legs, true, nil
}

func TestSaveWarnsAboutCachedLegs(t *testing.T) {
	m := newMock(recipients(1, 1, 1))
	c := newTestController(t, m, Options{})
	c.deps.Legs = cachedLegs{}

	res := automaticPreview(t, c, "c1")
	confirm(t, c, res.SessionID)

	res, err := c.Save(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []Notification{
		{Level: LevelWarning, Message: "Distance service unavailable; saved Route 1 with previously computed distances"},
		{Level: LevelSuccess, Message: "Saved 1 route"},
	}, res.Notifications)
	assert.Equal(t, 700, m.Created()[0].Stops[0].DistanceFromPreviousMeters)
}

type shortLegs struct{}

func (shortLegs) ComputeLegs(ctx context.Context, ids []string) ([]domain.RouteLeg, error) {
	return make([]domain.RouteLeg, len(ids)-1), nil
}

func TestSaveRejectsLegCountMismatch(t *testing.T) {
	m := newMock(recipients(1, 1, 1))
	c := newTestController(t, m, Options{})
	c.deps.Legs = shortLegs{}

	res := automaticPreview(t, c, "c1")
	confirm(t, c, res.SessionID)

	_, err := c.Save(context.Background(), res.SessionID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 2 legs for 3 stops")
	assert.Empty(t, m.Created())
}

func TestSaveRequiresMetadata(t *testing.T) {
	m := newMock(recipients(1, 1, 1))
	metrics := obs.NewMetrics()
	c := newTestController(t, m, Options{Metrics: metrics})
	res := automaticPreview(t, c, "c1")
	res = next(t, c, res.SessionID)
	require.Equal(t, wizard.StepConfirm, res.View.CurrentStep)

	_, err := c.Save(context.Background(), res.SessionID)
	var verr *wizard.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "assignmentMetadata.assignmentName", verr.Field)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `wizard_saves_total{outcome="invalid"} 1`)
}

func TestFetchKeepsPreviousPageOnError(t *testing.T) {
	m := newMock(recipients(1, 2, 3))
	c := newTestController(t, m, Options{})
	res, err := c.Create(context.Background())
	require.NoError(t, err)

	m.ListErr = errors.New("connection refused")
	res, err = c.FetchRecipients(context.Background(), res.SessionID, 2, 10, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackend))
	assert.Len(t, res.View.Recipients, 3)
	assert.Equal(t, []Notification{{Level: LevelError, Message: "Failed to load recipients: please try again"}}, res.Notifications)
}

func TestFetchDebouncesSearch(t *testing.T) {
	m := newMock(recipients(1, 2, 3))
	c := newTestController(t, m, Options{QuietPeriod: 100 * time.Millisecond})
	res, err := c.Create(context.Background())
	require.NoError(t, err)
	id := res.SessionID

	first := make(chan error, 1)
	go func() {
		_, err := c.FetchRecipients(context.Background(), id, 1, 10, "Recipient")
		first <- err
	}()
	time.Sleep(20 * time.Millisecond)

	res, err = c.FetchRecipients(context.Background(), id, 1, 10, "Recipient 2")
	require.NoError(t, err)
	assert.True(t, errors.Is(<-first, ErrSuperseded))

	assert.Equal(t, []string{"", "Recipient 2"}, m.Searches())
	require.Len(t, res.View.Recipients, 1)
	assert.Equal(t, "r2", res.View.Recipients[0].ID)
}

func TestCancelDiscardsSession(t *testing.T) {
	c := newTestController(t, newMock(recipients(1)), Options{})
	res, err := c.Create(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Cancel(context.Background(), res.SessionID))
	_, err = c.Get(context.Background(), res.SessionID)
	assert.True(t, errors.Is(err, ports.ErrSessionNotFound))
	assert.True(t, errors.Is(c.Cancel(context.Background(), res.SessionID), ports.ErrSessionNotFound))
}

func TestConvertCVRP(t *testing.T) {
	n := 0
	newID := func() string { n++; return fmt.Sprintf("p%d", n) }
	got := ConvertCVRP(domain.CVRPResult{Routes: []domain.CVRPRoute{
		{CourierIndex: 0, RecipientSequence: []string{"a"}},
		{CourierIndex: -1, RecipientSequence: []string{"b"}},
	}}, []string{"c9"}, newID)

	require.Len(t, got, 2)
	assert.Equal(t, wizard.PreviewAssignment{
		ID:           "p1",
		Name:         "Route 1",
		CourierID:    "c9",
		RecipientIDs: []string{"a"},
		RouteData:    &wizard.RouteData{Optimized: true},
	}, got[0])
	assert.Equal(t, "", got[1].CourierID)
	assert.Equal(t, "Route 2", got[1].Name)
}

func TestNextGroupNameSkipsTakenNames(t *testing.T) {
	groups := []wizard.ManualGroup{{Name: "Group 2"}}
	assert.Equal(t, "Group 3", nextGroupName(groups))
	assert.Equal(t, "Group 1", nextGroupName(nil))
}
