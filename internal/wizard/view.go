package wizard

import (
	"errors"
	"fmt"
)

// Distribution is the automatic-mode preview shown before the optimizer runs.
type Distribution struct {
	TotalRecipients         int     `json:"totalRecipients"`
	TotalPackages           int     `json:"totalPackages"`
	NumCouriers             int     `json:"numCouriers"`
	AvgRecipientsPerCourier float64 `json:"avgRecipientsPerCourier"`
	AvgPackagesPerCourier   float64 `json:"avgPackagesPerCourier"`
	CapacityPerCourier      int     `json:"capacityPerCourier"`
	TotalCapacity           int     `json:"totalCapacity"`
	IsCapacitySufficient    bool    `json:"isCapacitySufficient"`
	MinCouriersNeeded       int     `json:"minCouriersNeeded"`
}

func ComputeDistribution(s State) Distribution {
	d := Distribution{
		TotalRecipients: len(s.SelectedRecipientIDs),
		TotalPackages:   packagesOf(s, s.SelectedRecipientIDs),
		NumCouriers:     len(s.SelectedCourierIDs),
	}
	if s.CapacityPerCourier != nil {
		d.CapacityPerCourier = *s.CapacityPerCourier
	}
	if d.NumCouriers > 0 {
		d.AvgRecipientsPerCourier = float64(d.TotalRecipients) / float64(d.NumCouriers)
		d.AvgPackagesPerCourier = float64(d.TotalPackages) / float64(d.NumCouriers)
	}
	if d.CapacityPerCourier > 0 {
		d.TotalCapacity = d.CapacityPerCourier * d.NumCouriers
		d.MinCouriersNeeded = (d.TotalPackages + d.CapacityPerCourier - 1) / d.CapacityPerCourier
	}
	d.IsCapacitySufficient = d.CapacityPerCourier > 0 && d.NumCouriers > 0 && d.TotalCapacity >= d.TotalPackages
	return d
}

// Shortfall describes how far total capacity falls short of the selection.
func (d Distribution) Shortfall() string {
	return fmt.Sprintf("total capacity %d is below %d packages; at least %d couriers are needed",
		d.TotalCapacity, d.TotalPackages, d.MinCouriersNeeded)
}

func packagesOf(s State, ids []string) int {
	total := 0
	for _, id := range ids {
		if r, ok := s.Recipient(id); ok {
			total += r.NumPackages
		}
	}
	return total
}

// UnassignedRecipientIDs lists selected recipients that sit in no manual group,
// in selection order.
func UnassignedRecipientIDs(s State) []string {
	grouped := make(map[string]struct{})
	for _, g := range s.ManualGroups {
		for _, id := range g.RecipientIDs {
			grouped[id] = struct{}{}
		}
	}
	out := []string{}
	for _, id := range s.SelectedRecipientIDs {
		if _, ok := grouped[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// RouteSummary carries per-route load. OverCapacity is advisory and never
// blocks editing or saving.
type RouteSummary struct {
	AssignmentID  string `json:"assignmentId"`
	NumStops      int    `json:"numStops"`
	TotalPackages int    `json:"totalPackages"`
	OverCapacity  bool   `json:"overCapacity"`
}

func RouteSummaries(s State) []RouteSummary {
	out := make([]RouteSummary, 0, len(s.Assignments))
	for _, a := range s.Assignments {
		pkgs := packagesOf(s, a.RecipientIDs)
		out = append(out, RouteSummary{
			AssignmentID:  a.ID,
			NumStops:      len(a.RecipientIDs),
			TotalPackages: pkgs,
			OverCapacity:  s.CapacityPerCourier != nil && pkgs > *s.CapacityPerCourier,
		})
	}
	return out
}

// SessionView is what the host shell renders: the state plus derived values.
type SessionView struct {
	State
	Distribution           Distribution     `json:"distribution"`
	UnassignedRecipientIDs []string         `json:"unassignedRecipientIds"`
	RouteSummaries         []RouteSummary   `json:"routeSummaries"`
	CapacityWarning        string           `json:"capacityWarning,omitempty"`
	CanProceed             bool             `json:"canProceed"`
	BlockReason            *ValidationError `json:"blockReason,omitempty"`
}

func View(s State, policy CapacityPolicy) SessionView {
	d := ComputeDistribution(s)
	v := SessionView{
		State:                  s,
		Distribution:           d,
		UnassignedRecipientIDs: UnassignedRecipientIDs(s),
		RouteSummaries:         RouteSummaries(s),
	}
	if s.AssignmentMode == ModeAutomatic && d.CapacityPerCourier > 0 && d.NumCouriers > 0 && !d.IsCapacitySufficient {
		v.CapacityWarning = d.Shortfall()
	}

	if s.CurrentStep < lastStep {
		err := ValidateStep(s, policy)
		v.CanProceed = err == nil
		errors.As(err, &v.BlockReason)
	}
	return v
}
