package types

// Decision is the outcome of a policy check for a proposed tool call.
type Decision string

const (
	DecisionAllow   Decision = "allow"
	DecisionDeny    Decision = "deny"
	DecisionAskUser Decision = "ask_user"
)

// Valid reports whether d is one of the known decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionAllow, DecisionDeny, DecisionAskUser:
		return true
	}
	return false
}

// ApprovalMode is the session-wide approval posture. Rules may restrict
// themselves to a subset of modes.
type ApprovalMode string

const (
	ApprovalModeDefault  ApprovalMode = "default"
	ApprovalModeAutoEdit ApprovalMode = "auto_edit"
	ApprovalModeYolo     ApprovalMode = "yolo"
	ApprovalModePlan     ApprovalMode = "plan"
)

// Valid reports whether m is one of the known approval modes.
func (m ApprovalMode) Valid() bool {
	switch m {
	case ApprovalModeDefault, ApprovalModeAutoEdit, ApprovalModeYolo, ApprovalModePlan:
		return true
	}
	return false
}
