package types

import "time"

// ErrorCode is a closed set of machine-readable verdict/error tags used in
// Deny verdicts and surfaced error messages.
type ErrorCode string

const (
	ErrCodeInsufficientPrivilege ErrorCode = "insufficient_privilege"
	ErrCodePermissionDenied      ErrorCode = "permission_denied"
	ErrCodeValidationFailed      ErrorCode = "validation_failed"
)

// Condition is attached to an Allow verdict describing an obligation the
// caller must satisfy alongside the action (e.g. MustPassTests for writes,
// MustReview for commits).
type Condition string

const (
	ConditionMustPassTests Condition = "must_pass_tests"
	ConditionMustReview    Condition = "must_review"
)

// VerdictKind discriminates the Verdict tagged variant.
type VerdictKind string

const (
	VerdictAllow        VerdictKind = "allow"
	VerdictDeny         VerdictKind = "deny"
	VerdictRequireHuman VerdictKind = "require_human"
	VerdictModify       VerdictKind = "modify"
	VerdictDefer        VerdictKind = "defer"
)

// Verdict is the Decision Engine's adjudication of an Intent. Kind selects
// which variant-specific field group applies; the constructors also set
// Action on Deny and RequireHuman verdicts and Reason on Modify verdicts.
type Verdict struct {
	Kind VerdictKind `json:"kind"`

	// Allow
	Action     Action      `json:"-"`
	Privilege  Privilege   `json:"privilege,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`

	// Deny
	Reason    string    `json:"reason,omitempty"`
	ErrorCode ErrorCode `json:"error_code,omitempty"`

	// RequireHuman
	Question string         `json:"question,omitempty"`
	Context  map[string]any `json:"context,omitempty"`
	Timeout  *time.Duration `json:"timeout,omitempty"`

	// Modify
	NewAction Action   `json:"-"`
	Warnings  []string `json:"warnings,omitempty"`

	// Defer
	RequiredInfo []string       `json:"required_info,omitempty"`
	RetryAfter   *time.Duration `json:"retry_after,omitempty"`
}

// AllowVerdict builds an Allow verdict.
func AllowVerdict(action Action, privilege Privilege, conditions ...Condition) Verdict {
	return Verdict{Kind: VerdictAllow, Action: action, Privilege: privilege, Conditions: conditions}
}

// DenyVerdict builds a Deny verdict.
func DenyVerdict(action Action, code ErrorCode, reason string) Verdict {
	return Verdict{Kind: VerdictDeny, Action: action, ErrorCode: code, Reason: reason}
}

// RequireHumanVerdict builds a RequireHuman verdict.
func RequireHumanVerdict(action Action, question string, context map[string]any, timeout *time.Duration) Verdict {
	return Verdict{Kind: VerdictRequireHuman, Action: action, Question: question, Context: context, Timeout: timeout}
}

// ModifyVerdict builds a Modify verdict.
func ModifyVerdict(newAction Action, reason string, warnings ...string) Verdict {
	return Verdict{Kind: VerdictModify, NewAction: newAction, Reason: reason, Warnings: warnings}
}

// DeferVerdict builds a Defer verdict.
func DeferVerdict(requiredInfo []string, retryAfter *time.Duration) Verdict {
	return Verdict{Kind: VerdictDefer, RequiredInfo: requiredInfo, RetryAfter: retryAfter}
}

// IsAllow reports whether the verdict permits the action to proceed.
func (v Verdict) IsAllow() bool { return v.Kind == VerdictAllow }
