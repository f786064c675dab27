package backend

import (
	"assignment-wizard-service/internal/domain"
	"assignment-wizard-service/internal/platform/obs"
	"context"
	"fmt"
	"net/http"
)

type assignmentStop struct {
	RecipientID                 string `json:"recipient_id"`
	SequenceOrder               int    `json:"sequence_order"`
	DistanceFromPreviousMeters  int    `json:"distance_from_previous_meters"`
	DurationFromPreviousSeconds int    `json:"duration_from_previous_seconds"`
}

type assignmentRequest struct {
	Name                 string           `json:"name"`
	CourierID            string           `json:"courier_id"`
	RouteData            map[string]any   `json:"route_data"`
	TotalDistanceMeters  int              `json:"total_distance_meters"`
	TotalDurationSeconds int              `json:"total_duration_seconds"`
	Recipients           []assignmentStop `json:"recipients"`
}

type bulkRequest struct {
	Assignments []assignmentRequest `json:"assignments"`
}

func toRequest(a domain.NewAssignment) assignmentRequest {
	stops := make([]assignmentStop, 0, len(a.Stops))
	for _, s := range a.Stops {
		stops = append(stops, assignmentStop{
			RecipientID:                 s.RecipientID,
			SequenceOrder:               s.SequenceOrder,
			DistanceFromPreviousMeters:  s.DistanceFromPreviousMeters,
			DurationFromPreviousSeconds: s.DurationFromPreviousSeconds,
		})
	}
	return assignmentRequest{
		Name:                 a.Name,
		CourierID:            a.CourierID,
		RouteData:            a.RouteData,
		TotalDistanceMeters:  a.TotalDistanceMeters,
		TotalDurationSeconds: a.TotalDurationSeconds,
		Recipients:           stops,
	}
}

// Creates are not idempotent and are never retried.
func (c *Client) CreateAssignment(ctx context.Context, in domain.NewAssignment) (out domain.Assignment, err error) {
	defer obs.Time(ctx, "backend.CreateAssignment")(&err)

	if err := c.call(ctx, http.MethodPost, "/assignments", toRequest(in), &out, false); err != nil {
		return domain.Assignment{}, fmt.Errorf("create assignment: %w", err)
	}
	return out, nil
}

func (c *Client) CreateBulkAssignments(ctx context.Context, in []domain.NewAssignment) (out []domain.Assignment, err error) {
	defer obs.Time(ctx, "backend.CreateBulkAssignments")(&err)

	req := bulkRequest{Assignments: make([]assignmentRequest, 0, len(in))}
	for _, a := range in {
		req.Assignments = append(req.Assignments, toRequest(a))
	}

	if err := c.call(ctx, http.MethodPost, "/assignments/bulk", req, &out, false); err != nil {
		return nil, fmt.Errorf("create bulk assignments: %w", err)
	}
	if out == nil {
		out = []domain.Assignment{}
	}
	return out, nil
}
