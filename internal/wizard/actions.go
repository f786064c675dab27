package wizard

import (
	"assignment-wizard-service/internal/domain"
)

// Action is a user intent applied by Reduce. The set of actions is closed:
// only types declared in this package implement it.
type Action interface {
	actionType() string
}

// TypeOf returns the wire name of an action, e.g. "TOGGLE_RECIPIENT".
func TypeOf(a Action) string {
	if a == nil {
		return ""
	}
	return a.actionType()
}

// UnassignedColumnID is the drop target id of the manual board's unassigned column.
const UnassignedColumnID = "unassigned"

const (
	TypeSetStep                         = "SET_STEP"
	TypeNextStep                        = "NEXT_STEP"
	TypePreviousStep                    = "PREVIOUS_STEP"
	TypeSetViewMode                     = "SET_VIEW_MODE"
	TypeSetAssignmentMode               = "SET_ASSIGNMENT_MODE"
	TypeToggleRecipient                 = "TOGGLE_RECIPIENT"
	TypeSelectAllRecipients             = "SELECT_ALL_RECIPIENTS"
	TypeDeselectAllRecipients           = "DESELECT_ALL"
	TypeSetCapacity                     = "SET_CAPACITY"
	TypeAddManualGroup                  = "ADD_MANUAL_GROUP"
	TypeRemoveManualGroup               = "REMOVE_MANUAL_GROUP"
	TypeUpdateManualGroup               = "UPDATE_MANUAL_GROUP"
	TypeMoveRecipientToGroup            = "MOVE_RECIPIENT_TO_GROUP"
	TypeDropRecipient                   = "DROP_RECIPIENT"
	TypeToggleCourier                   = "TOGGLE_COURIER"
	TypeSelectAllCouriers               = "SELECT_ALL_COURIERS"
	TypeDeselectAllCouriers             = "DESELECT_ALL_COURIERS"
	TypeSetAssignments                  = "SET_ASSIGNMENTS"
	TypeUpdateAssignment                = "UPDATE_ASSIGNMENT"
	TypeUpdateRouteData                 = "UPDATE_ROUTE_DATA"
	TypeMoveRecipientBetweenAssignments = "MOVE_RECIPIENT_BETWEEN_ASSIGNMENTS"
	TypeReorderRecipientsInAssignment   = "REORDER_RECIPIENTS_IN_ASSIGNMENT"
	TypeRemoveRecipientFromAssignment   = "REMOVE_RECIPIENT_FROM_ASSIGNMENT"
	TypeAddRecipientToAssignment        = "ADD_RECIPIENT_TO_ASSIGNMENT"
	TypeSetAssignmentMetadata           = "SET_ASSIGNMENT_METADATA"
	TypeSetRecipients                   = "SET_RECIPIENTS"
	TypeSetCouriers                     = "SET_COURIERS"
	TypeResetWizard                     = "RESET_WIZARD"
)

// SetStep jumps back to an earlier step. Forward jumps go through NextStep.
type SetStep struct {
	Step Step `json:"step"`
}

type NextStep struct{}

type PreviousStep struct{}

type SetViewMode struct {
	Mode ViewMode `json:"mode"`
}

type SetAssignmentMode struct {
	Mode AssignmentMode `json:"mode"`
}

type ToggleRecipient struct {
	RecipientID string `json:"recipientId"`
}

// SelectAllRecipients replaces the selection with the Unassigned recipients of
// the loaded page.
type SelectAllRecipients struct{}

type DeselectAllRecipients struct{}

// SetCapacity sets the per-courier package capacity. Nil clears it.
type SetCapacity struct {
	Capacity *int `json:"capacity"`
}

// AddManualGroup appends an empty group. Group.ID must be set and unused;
// any RecipientIDs are ignored.
type AddManualGroup struct {
	Group ManualGroup `json:"group"`
}

type RemoveManualGroup struct {
	GroupID string `json:"groupId"`
}

// UpdateManualGroup renames a group or rebinds its courier. Nil fields are left as is.
type UpdateManualGroup struct {
	GroupID   string  `json:"groupId"`
	Name      *string `json:"name,omitempty"`
	CourierID *string `json:"courierId,omitempty"`
}

// MoveRecipientToGroup moves a card between board columns. An empty or
// UnassignedColumnID column id means the unassigned column.
type MoveRecipientToGroup struct {
	RecipientID string `json:"recipientId"`
	FromGroupID string `json:"fromGroupId"`
	ToGroupID   string `json:"toGroupId"`
	Index       *int   `json:"index,omitempty"`
}

// DropRecipient is a drag end on the manual board. OverID is either a column
// id or the id of the card the recipient was dropped on.
type DropRecipient struct {
	RecipientID string `json:"recipientId"`
	OverID      string `json:"overId"`
}

type ToggleCourier struct {
	CourierID string `json:"courierId"`
}

type SelectAllCouriers struct{}

type DeselectAllCouriers struct{}

// SetAssignments installs the optimizer output as the Step 3 working set.
type SetAssignments struct {
	Assignments []PreviewAssignment `json:"assignments"`
}

type UpdateAssignment struct {
	AssignmentID string  `json:"assignmentId"`
	Name         *string `json:"name,omitempty"`
	CourierID    *string `json:"courierId,omitempty"`
}

type UpdateRouteData struct {
	AssignmentID string     `json:"assignmentId"`
	RouteData    *RouteData `json:"routeData"`
}

type MoveRecipientBetweenAssignments struct {
	RecipientID      string `json:"recipientId"`
	FromAssignmentID string `json:"fromAssignmentId"`
	ToAssignmentID   string `json:"toAssignmentId"`
	Index            *int   `json:"index,omitempty"`
}

// ReorderRecipientsInAssignment replaces a route's sequence. RecipientIDs must
// be a permutation of the current sequence.
type ReorderRecipientsInAssignment struct {
	AssignmentID string   `json:"assignmentId"`
	RecipientIDs []string `json:"recipientIds"`
}

type RemoveRecipientFromAssignment struct {
	AssignmentID string `json:"assignmentId"`
	RecipientID  string `json:"recipientId"`
}

// AddRecipientToAssignment re-inserts a removed recipient. A nil Index appends.
type AddRecipientToAssignment struct {
	AssignmentID string `json:"assignmentId"`
	RecipientID  string `json:"recipientId"`
	Index        *int   `json:"index,omitempty"`
}

type SetAssignmentMetadata struct {
	Metadata AssignmentMetadata `json:"metadata"`
}

type SetRecipients struct {
	Recipients []domain.Recipient `json:"recipients"`
	Pagination domain.Pagination  `json:"pagination"`
}

type SetCouriers struct {
	Couriers []domain.Courier `json:"couriers"`
}

type ResetWizard struct{}

func (SetStep) actionType() string                         { return TypeSetStep }
func (NextStep) actionType() string                        { return TypeNextStep }
func (PreviousStep) actionType() string                    { return TypePreviousStep }
func (SetViewMode) actionType() string                     { return TypeSetViewMode }
func (SetAssignmentMode) actionType() string               { return TypeSetAssignmentMode }
func (ToggleRecipient) actionType() string                 { return TypeToggleRecipient }
func (SelectAllRecipients) actionType() string             { return TypeSelectAllRecipients }
func (DeselectAllRecipients) actionType() string           { return TypeDeselectAllRecipients }
func (SetCapacity) actionType() string                     { return TypeSetCapacity }
func (AddManualGroup) actionType() string                  { return TypeAddManualGroup }
func (RemoveManualGroup) actionType() string               { return TypeRemoveManualGroup }
func (UpdateManualGroup) actionType() string               { return TypeUpdateManualGroup }
func (MoveRecipientToGroup) actionType() string            { return TypeMoveRecipientToGroup }
func (DropRecipient) actionType() string                   { return TypeDropRecipient }
func (ToggleCourier) actionType() string                   { return TypeToggleCourier }
func (SelectAllCouriers) actionType() string               { return TypeSelectAllCouriers }
func (DeselectAllCouriers) actionType() string             { return TypeDeselectAllCouriers }
func (SetAssignments) actionType() string                  { return TypeSetAssignments }
func (UpdateAssignment) actionType() string                { return TypeUpdateAssignment }
func (UpdateRouteData) actionType() string                 { return TypeUpdateRouteData }
func (MoveRecipientBetweenAssignments) actionType() string { return TypeMoveRecipientBetweenAssignments }
func (ReorderRecipientsInAssignment) actionType() string   { return TypeReorderRecipientsInAssignment }
func (RemoveRecipientFromAssignment) actionType() string   { return TypeRemoveRecipientFromAssignment }
func (AddRecipientToAssignment) actionType() string        { return TypeAddRecipientToAssignment }
func (SetAssignmentMetadata) actionType() string           { return TypeSetAssignmentMetadata }
func (SetRecipients) actionType() string                   { return TypeSetRecipients }
func (SetCouriers) actionType() string                     { return TypeSetCouriers }
func (ResetWizard) actionType() string                     { return TypeResetWizard }
