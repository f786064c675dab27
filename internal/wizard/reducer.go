package wizard

import (
	"fmt"

	"assignment-wizard-service/internal/domain"
)

// CapacityPolicy decides what insufficient automatic-mode capacity does at the
// Step 2 gate. The zero value blocks.
type CapacityPolicy string

const (
	CapacityBlock CapacityPolicy = "block"
	CapacityWarn  CapacityPolicy = "warn"
)

func (p CapacityPolicy) Blocks() bool { return p != CapacityWarn }

func ParseCapacityPolicy(v string) (CapacityPolicy, error) {
	switch CapacityPolicy(v) {
	case "", CapacityBlock:
		return CapacityBlock, nil
	case CapacityWarn:
		return CapacityWarn, nil
	}
	return "", fmt.Errorf("invalid capacity policy %q (want block or warn)", v)
}

// Reducer applies actions under a capacity policy.
type Reducer struct {
	Policy CapacityPolicy
}

// Reduce applies a with the default (blocking) capacity policy.
func Reduce(s State, a Action) State {
	return Reducer{}.Reduce(s, a)
}

// Reduce is total: invalid or unknown actions return s unchanged, and s itself
// is never modified.
func (r Reducer) Reduce(s State, a Action) State {
	switch act := a.(type) {
	case SetStep:
		if !act.Step.valid() || act.Step >= s.CurrentStep {
			return s
		}
		next := s.Clone()
		next.CurrentStep = act.Step
		return next

	case NextStep:
		if s.CurrentStep >= lastStep || ValidateStep(s, r.Policy) != nil {
			return s
		}
		next := s.Clone()
		next.CurrentStep++
		return next

	case PreviousStep:
		if s.CurrentStep <= firstStep {
			return s
		}
		next := s.Clone()
		next.CurrentStep--
		return next

	case SetViewMode:
		if act.Mode != ViewAll && act.Mode != ViewCity {
			return s
		}
		next := s.Clone()
		next.ViewMode = act.Mode
		return next

	case SetAssignmentMode:
		if (act.Mode != ModeManual && act.Mode != ModeAutomatic) || act.Mode == s.AssignmentMode || upstreamLocked(s) {
			return s
		}
		next := s.Clone()
		next.AssignmentMode = act.Mode
		invalidatePreview(&next)
		return next

	case ToggleRecipient:
		if act.RecipientID == "" || upstreamLocked(s) {
			return s
		}
		next := s.Clone()
		if next.isSelected(act.RecipientID) {
			next.SelectedRecipientIDs = removeID(next.SelectedRecipientIDs, act.RecipientID)
			if g := next.groupOf(act.RecipientID); g >= 0 {
				next.ManualGroups[g].RecipientIDs = removeID(next.ManualGroups[g].RecipientIDs, act.RecipientID)
			}
		} else {
			next.SelectedRecipientIDs = append(next.SelectedRecipientIDs, act.RecipientID)
		}
		invalidatePreview(&next)
		return next

	case SelectAllRecipients:
		if upstreamLocked(s) {
			return s
		}
		ids := make([]string, 0, len(s.Recipients))
		for _, rec := range s.Recipients {
			if rec.Status == domain.RecipientUnassigned {
				ids = append(ids, rec.ID)
			}
		}
		next := s.Clone()
		next.SelectedRecipientIDs = dedupe(ids)
		pruneGroups(&next)
		invalidatePreview(&next)
		return next

	case DeselectAllRecipients:
		if upstreamLocked(s) {
			return s
		}
		next := s.Clone()
		next.SelectedRecipientIDs = []string{}
		pruneGroups(&next)
		invalidatePreview(&next)
		return next

	case SetCapacity:
		if upstreamLocked(s) || (act.Capacity != nil && *act.Capacity <= 0) {
			return s
		}
		next := s.Clone()
		next.CapacityPerCourier = nil
		if act.Capacity != nil {
			c := *act.Capacity
			next.CapacityPerCourier = &c
		}
		invalidatePreview(&next)
		return next

	case AddManualGroup:
		g := act.Group
		if upstreamLocked(s) || g.ID == "" || g.ID == UnassignedColumnID || s.groupIndex(g.ID) >= 0 {
			return s
		}
		next := s.Clone()
		next.ManualGroups = append(next.ManualGroups, ManualGroup{
			ID:           g.ID,
			Name:         g.Name,
			RecipientIDs: []string{},
			CourierID:    g.CourierID,
		})
		invalidatePreview(&next)
		return next

	case RemoveManualGroup:
		i := s.groupIndex(act.GroupID)
		if i < 0 || upstreamLocked(s) {
			return s
		}
		next := s.Clone()
		next.ManualGroups = append(next.ManualGroups[:i], next.ManualGroups[i+1:]...)
		invalidatePreview(&next)
		return next

	case UpdateManualGroup:
		i := s.groupIndex(act.GroupID)
		if i < 0 || upstreamLocked(s) {
			return s
		}
		next := s.Clone()
		if act.Name != nil {
			next.ManualGroups[i].Name = *act.Name
		}
		if act.CourierID != nil && *act.CourierID != s.ManualGroups[i].CourierID {
			next.ManualGroups[i].CourierID = *act.CourierID
			invalidatePreview(&next)
		}
		return next

	case MoveRecipientToGroup:
		return MoveItem(s, act.RecipientID, act.FromGroupID, act.ToGroupID, act.Index)

	case DropRecipient:
		from, to, ok := resolveDrop(s, act.RecipientID, act.OverID)
		if !ok {
			return s
		}
		return MoveItem(s, act.RecipientID, from, to, nil)

	case ToggleCourier:
		if act.CourierID == "" || upstreamLocked(s) {
			return s
		}
		next := s.Clone()
		if indexOf(next.SelectedCourierIDs, act.CourierID) >= 0 {
			next.SelectedCourierIDs = removeID(next.SelectedCourierIDs, act.CourierID)
		} else {
			next.SelectedCourierIDs = append(next.SelectedCourierIDs, act.CourierID)
		}
		invalidatePreview(&next)
		return next

	case SelectAllCouriers:
		if upstreamLocked(s) {
			return s
		}
		ids := make([]string, 0, len(s.Couriers))
		for _, c := range s.Couriers {
			ids = append(ids, c.ID)
		}
		next := s.Clone()
		next.SelectedCourierIDs = dedupe(ids)
		invalidatePreview(&next)
		return next

	case DeselectAllCouriers:
		if upstreamLocked(s) {
			return s
		}
		next := s.Clone()
		next.SelectedCourierIDs = []string{}
		invalidatePreview(&next)
		return next

	case SetAssignments:
		next := s.Clone()
		next.Assignments, next.RemovedRecipientIDs = normalizeAssignments(s, act.Assignments)
		return next

	case UpdateAssignment:
		i := s.assignmentIndex(act.AssignmentID)
		if i < 0 {
			return s
		}
		next := s.Clone()
		if act.Name != nil {
			next.Assignments[i].Name = *act.Name
		}
		if act.CourierID != nil {
			next.Assignments[i].CourierID = *act.CourierID
		}
		return next

	case UpdateRouteData:
		i := s.assignmentIndex(act.AssignmentID)
		if i < 0 {
			return s
		}
		next := s.Clone()
		next.Assignments[i].RouteData = nil
		if act.RouteData != nil {
			rd := *act.RouteData
			next.Assignments[i].RouteData = &rd
		}
		return next

	case MoveRecipientBetweenAssignments:
		fi, ti := s.assignmentIndex(act.FromAssignmentID), s.assignmentIndex(act.ToAssignmentID)
		if fi < 0 || ti < 0 || indexOf(s.Assignments[fi].RecipientIDs, act.RecipientID) < 0 {
			return s
		}
		next := s.Clone()
		next.Assignments[fi].RecipientIDs = removeID(next.Assignments[fi].RecipientIDs, act.RecipientID)
		next.Assignments[ti].RecipientIDs = insertAt(next.Assignments[ti].RecipientIDs, act.RecipientID, act.Index)
		return next

	case ReorderRecipientsInAssignment:
		i := s.assignmentIndex(act.AssignmentID)
		if i < 0 || !isPermutation(s.Assignments[i].RecipientIDs, act.RecipientIDs) {
			return s
		}
		next := s.Clone()
		next.Assignments[i].RecipientIDs = cloneIDs(act.RecipientIDs)
		return next

	case RemoveRecipientFromAssignment:
		i := s.assignmentIndex(act.AssignmentID)
		if i < 0 || indexOf(s.Assignments[i].RecipientIDs, act.RecipientID) < 0 {
			return s
		}
		next := s.Clone()
		next.Assignments[i].RecipientIDs = removeID(next.Assignments[i].RecipientIDs, act.RecipientID)
		next.RemovedRecipientIDs = append(next.RemovedRecipientIDs, act.RecipientID)
		return next

	case AddRecipientToAssignment:
		i := s.assignmentIndex(act.AssignmentID)
		if i < 0 || indexOf(s.RemovedRecipientIDs, act.RecipientID) < 0 {
			return s
		}
		next := s.Clone()
		next.RemovedRecipientIDs = removeID(next.RemovedRecipientIDs, act.RecipientID)
		next.Assignments[i].RecipientIDs = insertAt(next.Assignments[i].RecipientIDs, act.RecipientID, act.Index)
		return next

	case SetAssignmentMetadata:
		next := s.Clone()
		next.AssignmentMetadata = act.Metadata
		return next

	case SetRecipients:
		next := s.Clone()
		next.Recipients = append([]domain.Recipient{}, act.Recipients...)
		next.RecipientPagination = act.Pagination
		for _, rec := range act.Recipients {
			next.KnownRecipients[rec.ID] = rec
		}
		return next

	case SetCouriers:
		next := s.Clone()
		next.Couriers = append([]domain.Courier{}, act.Couriers...)
		return next

	case ResetWizard:
		return NewState()
	}
	return s
}

// MoveItem moves a recipient between columns of the manual board. from and to
// are group ids; "" or UnassignedColumnID name the unassigned column. The move
// is refused unless the recipient is selected and currently sits in from.
func MoveItem(s State, recipientID, from, to string, index *int) State {
	if upstreamLocked(s) || !s.isSelected(recipientID) {
		return s
	}
	from, to = columnID(from), columnID(to)
	if from == to {
		return s
	}

	cur := s.groupOf(recipientID)
	if from == UnassignedColumnID {
		if cur >= 0 {
			return s
		}
	} else if fi := s.groupIndex(from); fi < 0 || fi != cur {
		return s
	}

	ti := -1
	if to != UnassignedColumnID {
		if ti = s.groupIndex(to); ti < 0 {
			return s
		}
	}

	next := s.Clone()
	if cur >= 0 {
		next.ManualGroups[cur].RecipientIDs = removeID(next.ManualGroups[cur].RecipientIDs, recipientID)
	}
	if ti >= 0 {
		next.ManualGroups[ti].RecipientIDs = insertAt(next.ManualGroups[ti].RecipientIDs, recipientID, index)
	}
	invalidatePreview(&next)
	return next
}

func columnID(id string) string {
	if id == "" {
		return UnassignedColumnID
	}
	return id
}

// columnOf returns the id of the board column holding recipientID.
func (s State) columnOf(recipientID string) string {
	if g := s.groupOf(recipientID); g >= 0 {
		return s.ManualGroups[g].ID
	}
	return UnassignedColumnID
}

// resolveDrop maps a drop target to source and destination columns. overID may
// be a column id or a card id, in which case the card's column is the target.
func resolveDrop(s State, recipientID, overID string) (string, string, bool) {
	if recipientID == "" || overID == "" || !s.isSelected(recipientID) {
		return "", "", false
	}
	from := s.columnOf(recipientID)
	switch {
	case overID == UnassignedColumnID:
		return from, UnassignedColumnID, true
	case s.groupIndex(overID) >= 0:
		return from, overID, true
	case s.isSelected(overID):
		return from, s.columnOf(overID), true
	}
	return "", "", false
}

// Selection, mode, capacity, groups and couriers are frozen once routes exist
// in Step 3 or later; going back to Step 2 unlocks them.
func upstreamLocked(s State) bool {
	return s.CurrentStep >= StepPreview
}

// invalidatePreview drops the Step 3 working set after an upstream edit. Step 3
// re-optimizes on entry when it finds no routes.
func invalidatePreview(s *State) {
	s.Assignments = []PreviewAssignment{}
	s.RemovedRecipientIDs = []string{}
}

// pruneGroups removes deselected recipients from every manual group.
func pruneGroups(s *State) {
	for i := range s.ManualGroups {
		kept := make([]string, 0, len(s.ManualGroups[i].RecipientIDs))
		for _, id := range s.ManualGroups[i].RecipientIDs {
			if s.isSelected(id) {
				kept = append(kept, id)
			}
		}
		s.ManualGroups[i].RecipientIDs = kept
	}
}

// normalizeAssignments fits optimizer output to the selection: routes without
// an id or with a repeated id are skipped, unknown recipients dropped, repeats
// keep their first position, and selected recipients placed nowhere are
// returned as removed.
func normalizeAssignments(s State, in []PreviewAssignment) ([]PreviewAssignment, []string) {
	placed := make(map[string]struct{}, len(s.SelectedRecipientIDs))
	seenRoutes := make(map[string]struct{}, len(in))
	out := make([]PreviewAssignment, 0, len(in))

	for _, a := range in {
		if a.ID == "" {
			continue
		}
		if _, dup := seenRoutes[a.ID]; dup {
			continue
		}
		seenRoutes[a.ID] = struct{}{}

		a = a.clone()
		ids := make([]string, 0, len(a.RecipientIDs))
		for _, id := range a.RecipientIDs {
			if !s.isSelected(id) {
				continue
			}
			if _, ok := placed[id]; ok {
				continue
			}
			placed[id] = struct{}{}
			ids = append(ids, id)
		}
		a.RecipientIDs = ids
		out = append(out, a)
	}

	removed := []string{}
	for _, id := range s.SelectedRecipientIDs {
		if _, ok := placed[id]; !ok {
			removed = append(removed, id)
		}
	}
	return out, removed
}
