package domain

import "time"

// One stop of an assignment to be persisted, with the leg that leads to it.
type AssignmentStop struct {
	RecipientID                 string
	SequenceOrder               int
	DistanceFromPreviousMeters  int
	DurationFromPreviousSeconds int
}

// Creation request for a persisted route.
// Stops are ordered; SequenceOrder starts at 1.
type NewAssignment struct {
	Name                 string
	CourierID            string
	RouteData            map[string]any
	TotalDistanceMeters  int
	TotalDurationSeconds int
	Stops                []AssignmentStop
}

// A persisted route as returned by the backend.
type Assignment struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	CourierID            string    `json:"courier_id"`
	TotalDistanceMeters  int       `json:"total_distance_meters"`
	TotalDurationSeconds int       `json:"total_duration_seconds"`
	CreatedAt            time.Time `json:"created_at"`
}
