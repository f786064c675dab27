package backend

import (
	"assignment-wizard-service/internal/domain"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DepotKey is the origin name of a route's first leg in MockLeg pairs.
const DepotKey = "depot"

type MockLeg struct {
	From, To string
	Meters   int
	Seconds  int
}

// MockBackend is an in-memory stand-in for the delivery backend. Zero-value
// hooks give deterministic defaults: TSP keeps the input order, CVRP puts
// everything on courier 0, creates succeed.
type MockBackend struct {
	Recipients []domain.Recipient
	Couriers   []domain.Courier

	ListErr   error
	CreateErr error

	TSPFunc  func(ids []string) (domain.TSPResult, error)
	CVRPFunc func(req domain.CVRPRequest) (domain.CVRPResult, error)
	// BulkFunc decides which requests of a bulk create succeed.
	BulkFunc func(reqs []domain.NewAssignment) ([]domain.Assignment, error)

	mu       sync.Mutex
	legs     map[string]domain.RouteLeg
	calls    map[string]int
	created  []domain.NewAssignment
	cvrpReqs []domain.CVRPRequest
	searches []string
}

func NewMockBackend(legs []MockLeg) *MockBackend {
	m := make(map[string]domain.RouteLeg, len(legs))
	for _, l := range legs {
		m[l.From+"|"+l.To] = domain.RouteLeg{DistanceMeters: l.Meters, DurationSeconds: l.Seconds}
	}
	return &MockBackend{legs: m, calls: map[string]int{}}
}

func (m *MockBackend) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[op]++
}

// Calls returns how many times op (e.g. "OptimizeTSP") was invoked.
func (m *MockBackend) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Created returns every assignment request received, in arrival order.
func (m *MockBackend) Created() []domain.NewAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.NewAssignment(nil), m.created...)
}

func (m *MockBackend) CVRPRequests() []domain.CVRPRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CVRPRequest(nil), m.cvrpReqs...)
}

func (m *MockBackend) Searches() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.searches...)
}

func paginate[T any](items []T, page, perPage int) ([]T, domain.Pagination) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	p := domain.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: len(items),
		TotalPages: (len(items) + perPage - 1) / perPage,
	}
	start := min((page-1)*perPage, len(items))
	end := min(start+perPage, len(items))
	return append([]T{}, items[start:end]...), p
}

func (m *MockBackend) ListUnassignedRecipients(ctx context.Context, page, perPage int, search string) (domain.RecipientPage, error) {
	m.record("ListUnassignedRecipients")
	m.mu.Lock()
	m.searches = append(m.searches, search)
	m.mu.Unlock()
	if m.ListErr != nil {
		return domain.RecipientPage{}, m.ListErr
	}

	matches := []domain.Recipient{}
	for _, r := range m.Recipients {
		if r.Status != domain.RecipientUnassigned {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(search)) {
			continue
		}
		matches = append(matches, r)
	}
	items, p := paginate(matches, page, perPage)
	return domain.RecipientPage{Items: items, Pagination: p}, nil
}

func (m *MockBackend) ListCouriers(ctx context.Context, page, perPage int) (domain.CourierPage, error) {
	m.record("ListCouriers")
	if m.ListErr != nil {
		return domain.CourierPage{}, m.ListErr
	}
	items, p := paginate(m.Couriers, page, perPage)
	return domain.CourierPage{Items: items, Pagination: p}, nil
}

func (m *MockBackend) OptimizeTSP(ctx context.Context, ids []string, depot *domain.Location) (domain.TSPResult, error) {
	m.record("OptimizeTSP")
	if m.TSPFunc != nil {
		return m.TSPFunc(ids)
	}
	legs, err := m.legsFor(ids)
	if err != nil {
		return domain.TSPResult{}, err
	}
	res := domain.TSPResult{OptimizedSequence: append([]string{}, ids...), NumStops: len(ids)}
	for _, l := range legs {
		res.TotalDistanceMeters += l.DistanceMeters
		res.TotalDurationSeconds += l.DurationSeconds
	}
	return res, nil
}

func (m *MockBackend) OptimizeCVRP(ctx context.Context, req domain.CVRPRequest) (domain.CVRPResult, error) {
	m.record("OptimizeCVRP")
	m.mu.Lock()
	m.cvrpReqs = append(m.cvrpReqs, req)
	m.mu.Unlock()
	if m.CVRPFunc != nil {
		return m.CVRPFunc(req)
	}
	route := domain.CVRPRoute{
		CourierIndex:      0,
		RecipientSequence: append([]string{}, req.RecipientIDs...),
		NumStops:          len(req.RecipientIDs),
	}
	return domain.CVRPResult{Routes: []domain.CVRPRoute{route}, NumRoutes: 1, RouteBalanceStatus: "balanced"}, nil
}

// ComputeLegs returns the configured leg for each consecutive pair starting at
// DepotKey. Unknown pairs are an error.
func (m *MockBackend) ComputeLegs(ctx context.Context, ids []string) ([]domain.RouteLeg, error) {
	m.record("ComputeLegs")
	return m.legsFor(ids)
}

func (m *MockBackend) legsFor(ids []string) ([]domain.RouteLeg, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.RouteLeg, 0, len(ids))
	prev := DepotKey
	for _, id := range ids {
		leg, ok := m.legs[prev+"|"+id]
		if !ok {
			return nil, fmt.Errorf("missing leg %q -> %q", prev, id)
		}
		out = append(out, leg)
		prev = id
	}
	return out, nil
}

func (m *MockBackend) CreateAssignment(ctx context.Context, req domain.NewAssignment) (domain.Assignment, error) {
	m.record("CreateAssignment")
	if m.CreateErr != nil {
		return domain.Assignment{}, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, req)
	return m.assignmentFor(req, len(m.created)), nil
}

func (m *MockBackend) CreateBulkAssignments(ctx context.Context, reqs []domain.NewAssignment) ([]domain.Assignment, error) {
	m.record("CreateBulkAssignments")
	m.mu.Lock()
	m.created = append(m.created, reqs...)
	m.mu.Unlock()

	if m.BulkFunc != nil {
		return m.BulkFunc(reqs)
	}
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	out := make([]domain.Assignment, 0, len(reqs))
	for i, r := range reqs {
		out = append(out, m.assignmentFor(r, i+1))
	}
	return out, nil
}

func (m *MockBackend) assignmentFor(req domain.NewAssignment, n int) domain.Assignment {
	return domain.Assignment{
		ID:                   fmt.Sprintf("asg-%d", n),
		Name:                 req.Name,
		CourierID:            req.CourierID,
		TotalDistanceMeters:  req.TotalDistanceMeters,
		TotalDurationSeconds: req.TotalDurationSeconds,
		CreatedAt:            time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
