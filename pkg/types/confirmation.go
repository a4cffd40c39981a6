package types

// ConfirmationOutcome is what the human chose for a pending confirmation.
type ConfirmationOutcome string

const (
	OutcomeProceedOnce         ConfirmationOutcome = "proceed_once"
	OutcomeProceedAlways       ConfirmationOutcome = "proceed_always"
	OutcomeProceedAlwaysTool   ConfirmationOutcome = "proceed_always_tool"
	OutcomeProceedAlwaysServer ConfirmationOutcome = "proceed_always_server"
	OutcomeModifyWithEditor    ConfirmationOutcome = "modify_with_editor"
	OutcomeCancel              ConfirmationOutcome = "cancel"
)

// Proceed reports whether the outcome lets the action run.
func (o ConfirmationOutcome) Proceed() bool {
	switch o {
	case OutcomeProceedOnce, OutcomeProceedAlways, OutcomeProceedAlwaysTool, OutcomeProceedAlwaysServer:
		return true
	}
	return false
}

// RemembersCommand reports whether the outcome adds the confirmed command to
// the session allowlist so identical proposals skip confirmation.
func (o ConfirmationOutcome) RemembersCommand() bool {
	return o == OutcomeProceedOnce || o == OutcomeProceedAlways
}

// TypeToolConfirmationResponse is the wire discriminator for confirmation
// responses on the message bus.
const TypeToolConfirmationResponse = "TOOL_CONFIRMATION_RESPONSE"

// ConfirmationResponse is the message published on the bus when a pending
// confirmation is resolved. Exactly one response is published per pending
// entry.
type ConfirmationResponse struct {
	Type          string              `json:"type"`
	CorrelationID string              `json:"correlationId"`
	Confirmed     bool                `json:"confirmed"`
	Outcome       ConfirmationOutcome `json:"outcome"`

	// RequiresUserConfirmation is true when the response came out of the
	// user-facing queue; auto-approved calls answer with it false.
	RequiresUserConfirmation bool `json:"requiresUserConfirmation"`

	Payload any `json:"payload,omitempty"`
}
