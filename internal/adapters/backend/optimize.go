package backend

import (
	"assignment-wizard-service/internal/domain"
	"assignment-wizard-service/internal/platform/obs"
	"context"
	"fmt"
	"net/http"
)

// Solver time limits sent with each optimizer request.
const (
	tspTimeoutSeconds  = 5
	cvrpTimeoutSeconds = 60
)

type tspRequest struct {
	RecipientIDs   []string         `json:"recipient_ids"`
	DepotLocation  *domain.Location `json:"depot_location,omitempty"`
	TimeoutSeconds int              `json:"timeout_seconds,omitempty"`
}

type tspResponse struct {
	OptimizedSequence    []string `json:"optimized_sequence"`
	TotalDistanceMeters  int      `json:"total_distance_meters"`
	TotalDurationSeconds int      `json:"total_duration_seconds"`
	NumStops             int      `json:"num_stops"`
}

type cvrpRequest struct {
	RecipientIDs       []string         `json:"recipient_ids"`
	NumCouriers        int              `json:"num_couriers"`
	CapacityPerCourier int              `json:"capacity_per_courier"`
	DepotLocation      *domain.Location `json:"depot_location,omitempty"`
	TimeoutSeconds     int              `json:"timeout_seconds,omitempty"`
}

type cvrpRoute struct {
	CourierIndex         int      `json:"courier_index"`
	RecipientSequence    []string `json:"recipient_sequence"`
	NumStops             int      `json:"num_stops"`
	TotalLoad            int      `json:"total_load"`
	TotalDistanceMeters  int      `json:"total_distance_meters"`
	TotalDurationSeconds int      `json:"total_duration_seconds"`
}

type cvrpResponse struct {
	Routes               []cvrpRoute `json:"routes"`
	NumRoutes            int         `json:"num_routes"`
	TotalDistanceMeters  int         `json:"total_distance_meters"`
	TotalDurationSeconds int         `json:"total_duration_seconds"`
	RouteBalanceStatus   string      `json:"route_balance_status"`
}

type legsRequest struct {
	RecipientIDs []string `json:"recipient_ids"`
}

type legsResponse struct {
	Legs []domain.RouteLeg `json:"legs"`
}

func (c *Client) OptimizeTSP(
	ctx context.Context,
	recipientIDs []string,
	depot *domain.Location,
) (out domain.TSPResult, err error) {
	defer obs.Time(ctx, "backend.OptimizeTSP")(&err)

	req := tspRequest{
		RecipientIDs:   recipientIDs,
		DepotLocation:  depot,
		TimeoutSeconds: tspTimeoutSeconds,
	}
	var resp tspResponse
	if err := c.call(ctx, http.MethodPost, "/optimize/tsp", req, &resp, true); err != nil {
		return domain.TSPResult{}, fmt.Errorf("optimize tsp: %w", err)
	}

	return domain.TSPResult{
		OptimizedSequence:    resp.OptimizedSequence,
		TotalDistanceMeters:  resp.TotalDistanceMeters,
		TotalDurationSeconds: resp.TotalDurationSeconds,
		NumStops:             resp.NumStops,
	}, nil
}

func (c *Client) OptimizeCVRP(ctx context.Context, in domain.CVRPRequest) (out domain.CVRPResult, err error) {
	defer obs.Time(ctx, "backend.OptimizeCVRP")(&err)

	req := cvrpRequest{
		RecipientIDs:       in.RecipientIDs,
		NumCouriers:        in.NumCouriers,
		CapacityPerCourier: in.CapacityPerCourier,
		DepotLocation:      in.Depot,
		TimeoutSeconds:     cvrpTimeoutSeconds,
	}
	var resp cvrpResponse
	if err := c.call(ctx, http.MethodPost, "/optimize/cvrp", req, &resp, true); err != nil {
		return domain.CVRPResult{}, fmt.Errorf("optimize cvrp: %w", err)
	}

	out = domain.CVRPResult{
		Routes:               make([]domain.CVRPRoute, 0, len(resp.Routes)),
		NumRoutes:            resp.NumRoutes,
		TotalDistanceMeters:  resp.TotalDistanceMeters,
		TotalDurationSeconds: resp.TotalDurationSeconds,
		RouteBalanceStatus:   resp.RouteBalanceStatus,
	}
	for _, r := range resp.Routes {
		out.Routes = append(out.Routes, domain.CVRPRoute{
			CourierIndex:         r.CourierIndex,
			RecipientSequence:    r.RecipientSequence,
			NumStops:             r.NumStops,
			TotalLoad:            r.TotalLoad,
			TotalDistanceMeters:  r.TotalDistanceMeters,
			TotalDurationSeconds: r.TotalDurationSeconds,
		})
	}
	return out, nil
}

// ComputeLegs asks the backend's distance matrix for the legs of an ordered route.
func (c *Client) ComputeLegs(ctx context.Context, recipientIDs []string) (out []domain.RouteLeg, err error) {
	defer obs.Time(ctx, "backend.ComputeLegs")(&err)

	var resp legsResponse
	if err := c.call(ctx, http.MethodPost, "/optimize/distance-matrix-legs", legsRequest{RecipientIDs: recipientIDs}, &resp, true); err != nil {
		return nil, fmt.Errorf("compute legs: %w", err)
	}
	return resp.Legs, nil
}
