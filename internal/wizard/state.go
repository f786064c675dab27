package wizard

import (
	"assignment-wizard-service/internal/domain"
)

// Position in the wizard flow.
type Step int

const (
	StepSelectRecipients Step = iota + 1
	StepGroupCouriers
	StepPreview
	StepConfirm
)

const (
	firstStep = StepSelectRecipients
	lastStep  = StepConfirm
)

func (s Step) valid() bool { return s >= firstStep && s <= lastStep }

type ViewMode string

const (
	ViewAll  ViewMode = "all"
	ViewCity ViewMode = "city"
)

// How selected recipients are split into routes.
// ModeManual lets the user build groups; ModeAutomatic delegates grouping to the
// capacity-constrained optimizer.
type AssignmentMode string

const (
	ModeManual    AssignmentMode = "manual"
	ModeAutomatic AssignmentMode = "rekomendasi"
)

// A user-built column of the manual board, bound to one courier.
type ManualGroup struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	RecipientIDs []string `json:"recipientIds"`
	CourierID    string   `json:"courierId"`
}

// Route-level totals reported by the optimizer.
type RouteData struct {
	TotalDistanceMeters  int  `json:"totalDistanceMeters"`
	TotalDurationSeconds int  `json:"totalDurationSeconds"`
	Optimized            bool `json:"optimized"`
}

// A route in the Step 3 working set. RecipientIDs order is the delivery sequence.
type PreviewAssignment struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	CourierID    string     `json:"courierId"`
	RecipientIDs []string   `json:"recipientIds"`
	RouteData    *RouteData `json:"routeData,omitempty"`
}

type AssignmentMetadata struct {
	AssignmentName string `json:"assignmentName" validate:"required"`
	DeliveryDate   string `json:"deliveryDate" validate:"required,datetime=2006-01-02"`
	Notes          string `json:"notes"`
}

// State is the whole in-progress assignment-creation session.
//
// Recipients and Couriers hold the page most recently fetched and are replaced
// wholesale. KnownRecipients accumulates every recipient seen so far so that a
// selection spanning several pages still resolves to package counts.
type State struct {
	CurrentStep          Step                        `json:"currentStep"`
	ViewMode             ViewMode                    `json:"viewMode"`
	AssignmentMode       AssignmentMode              `json:"assignmentMode"`
	SelectedRecipientIDs []string                    `json:"selectedRecipientIds"`
	ManualGroups         []ManualGroup               `json:"manualGroups"`
	CapacityPerCourier   *int                        `json:"capacityPerCourier"`
	SelectedCourierIDs   []string                    `json:"selectedCourierIds"`
	Assignments          []PreviewAssignment         `json:"assignments"`
	RemovedRecipientIDs  []string                    `json:"removedRecipientIds"`
	AssignmentMetadata   AssignmentMetadata          `json:"assignmentMetadata"`
	Recipients           []domain.Recipient          `json:"recipients"`
	RecipientPagination  domain.Pagination           `json:"recipientPagination"`
	Couriers             []domain.Courier            `json:"couriers"`
	KnownRecipients      map[string]domain.Recipient `json:"knownRecipients"`
}

// NewState returns the canonical initial state. Every call allocates fresh
// slices and maps.
func NewState() State {
	return State{
		CurrentStep:          StepSelectRecipients,
		ViewMode:             ViewAll,
		AssignmentMode:       ModeAutomatic,
		SelectedRecipientIDs: []string{},
		ManualGroups:         []ManualGroup{},
		SelectedCourierIDs:   []string{},
		Assignments:          []PreviewAssignment{},
		RemovedRecipientIDs:  []string{},
		Recipients:           []domain.Recipient{},
		Couriers:             []domain.Courier{},
		KnownRecipients:      map[string]domain.Recipient{},
	}
}

// Clone returns a deep copy; the reducer never writes to its input.
func (s State) Clone() State {
	out := s
	out.SelectedRecipientIDs = cloneIDs(s.SelectedRecipientIDs)
	out.SelectedCourierIDs = cloneIDs(s.SelectedCourierIDs)
	out.RemovedRecipientIDs = cloneIDs(s.RemovedRecipientIDs)

	if s.CapacityPerCourier != nil {
		c := *s.CapacityPerCourier
		out.CapacityPerCourier = &c
	}

	out.ManualGroups = make([]ManualGroup, len(s.ManualGroups))
	for i, g := range s.ManualGroups {
		g.RecipientIDs = cloneIDs(g.RecipientIDs)
		out.ManualGroups[i] = g
	}

	out.Assignments = make([]PreviewAssignment, len(s.Assignments))
	for i, a := range s.Assignments {
		out.Assignments[i] = a.clone()
	}

	out.Recipients = append([]domain.Recipient{}, s.Recipients...)
	out.Couriers = append([]domain.Courier{}, s.Couriers...)

	out.KnownRecipients = make(map[string]domain.Recipient, len(s.KnownRecipients))
	for id, r := range s.KnownRecipients {
		out.KnownRecipients[id] = r
	}
	return out
}

func (a PreviewAssignment) clone() PreviewAssignment {
	a.RecipientIDs = cloneIDs(a.RecipientIDs)
	if a.RouteData != nil {
		rd := *a.RouteData
		a.RouteData = &rd
	}
	return a
}

// Recipient resolves a recipient from the current page or any page seen before.
func (s State) Recipient(id string) (domain.Recipient, bool) {
	if r, ok := s.KnownRecipients[id]; ok {
		return r, true
	}
	for _, r := range s.Recipients {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Recipient{}, false
}

func (s State) isSelected(id string) bool {
	return indexOf(s.SelectedRecipientIDs, id) >= 0
}

func (s State) groupIndex(id string) int {
	for i, g := range s.ManualGroups {
		if g.ID == id {
			return i
		}
	}
	return -1
}

// groupOf returns the index of the group holding recipientID, or -1.
func (s State) groupOf(recipientID string) int {
	for i, g := range s.ManualGroups {
		if indexOf(g.RecipientIDs, recipientID) >= 0 {
			return i
		}
	}
	return -1
}

func (s State) assignmentIndex(id string) int {
	for i, a := range s.Assignments {
		if a.ID == id {
			return i
		}
	}
	return -1
}
