package domain

// Distance and travel duration between two consecutive stops.
// The first leg of a route starts at the depot.
type RouteLeg struct {
	DistanceMeters  int `json:"distance_meters"`
	DurationSeconds int `json:"duration_seconds"`
}

// Identifies a leg independently of the route it appears in.
type LegKey struct {
	Origin      string
	Destination string
}

// Output of a single-vehicle sequencing call.
type TSPResult struct {
	OptimizedSequence    []string
	TotalDistanceMeters  int
	TotalDurationSeconds int
	NumStops             int
}

// Input of a capacity-constrained vehicle routing call.
type CVRPRequest struct {
	RecipientIDs       []string
	NumCouriers        int
	CapacityPerCourier int
	Depot              *Location
}

// One vehicle route of a CVRP solution. CourierIndex is a position in the
// courier list the caller supplied, not a courier id.
type CVRPRoute struct {
	CourierIndex         int
	RecipientSequence    []string
	NumStops             int
	TotalLoad            int
	TotalDistanceMeters  int
	TotalDurationSeconds int
}

type CVRPResult struct {
	Routes               []CVRPRoute
	NumRoutes            int
	TotalDistanceMeters  int
	TotalDurationSeconds int
	RouteBalanceStatus   string
}
