package wizard

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownAction = errors.New("unknown action type")

// Actions travel as flat JSON objects with a "type" discriminator, e.g.
// {"type":"TOGGLE_RECIPIENT","recipientId":"r-1"}.
var decoders = map[string]func([]byte) (Action, error){
	TypeSetStep:                         decodeAs[SetStep],
	TypeNextStep:                        decodeAs[NextStep],
	TypePreviousStep:                    decodeAs[PreviousStep],
	TypeSetViewMode:                     decodeAs[SetViewMode],
	TypeSetAssignmentMode:               decodeAs[SetAssignmentMode],
	TypeToggleRecipient:                 decodeAs[ToggleRecipient],
	TypeSelectAllRecipients:             decodeAs[SelectAllRecipients],
	TypeDeselectAllRecipients:           decodeAs[DeselectAllRecipients],
	TypeSetCapacity:                     decodeAs[SetCapacity],
	TypeAddManualGroup:                  decodeAs[AddManualGroup],
	TypeRemoveManualGroup:               decodeAs[RemoveManualGroup],
	TypeUpdateManualGroup:               decodeAs[UpdateManualGroup],
	TypeMoveRecipientToGroup:            decodeAs[MoveRecipientToGroup],
	TypeDropRecipient:                   decodeAs[DropRecipient],
	TypeToggleCourier:                   decodeAs[ToggleCourier],
	TypeSelectAllCouriers:               decodeAs[SelectAllCouriers],
	TypeDeselectAllCouriers:             decodeAs[DeselectAllCouriers],
	TypeSetAssignments:                  decodeAs[SetAssignments],
	TypeUpdateAssignment:                decodeAs[UpdateAssignment],
	TypeUpdateRouteData:                 decodeAs[UpdateRouteData],
	TypeMoveRecipientBetweenAssignments: decodeAs[MoveRecipientBetweenAssignments],
	TypeReorderRecipientsInAssignment:   decodeAs[ReorderRecipientsInAssignment],
	TypeRemoveRecipientFromAssignment:   decodeAs[RemoveRecipientFromAssignment],
	TypeAddRecipientToAssignment:        decodeAs[AddRecipientToAssignment],
	TypeSetAssignmentMetadata:           decodeAs[SetAssignmentMetadata],
	TypeSetRecipients:                   decodeAs[SetRecipients],
	TypeSetCouriers:                     decodeAs[SetCouriers],
	TypeResetWizard:                     decodeAs[ResetWizard],
}

func decodeAs[T Action](data []byte) (Action, error) {
	var a T
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return a, nil
}

func DecodeAction(data []byte) (Action, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}
	decode, ok := decoders[head.Type]
	if !ok {
		return nil, fmt.Errorf("decode action %q: %w", head.Type, ErrUnknownAction)
	}
	a, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode action %s: %w", head.Type, err)
	}
	return a, nil
}

func EncodeAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("encode action: %w", ErrUnknownAction)
	}
	body, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode action %s: %w", a.actionType(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode action %s: %w", a.actionType(), err)
	}
	fields["type"], _ = json.Marshal(a.actionType())
	return json.Marshal(fields)
}
