package security

import (
	"os"
	"strings"
)

// PolicyAction is the configured disposition for an enforcement point.
type PolicyAction string

const (
	PolicyAllow PolicyAction = "allow"
	PolicyAsk   PolicyAction = "ask"
	PolicyDeny  PolicyAction = "deny"
)

// PermissionName is the closed set of enforcement points the Security
// Gateway recognizes, per the environment policy variables.
type PermissionName string

const (
	PermExternalDirectory PermissionName = "external_directory"
	PermShellHighRisk     PermissionName = "shell_high_risk"
	PermShellMediumRisk   PermissionName = "shell_medium_risk"
	PermGitCommit         PermissionName = "git_commit"
)

// Policy holds the Security Gateway's configured enforcement actions,
// read once from environment variables at startup (NDC_SECURITY_*).
type Policy struct {
	Enabled           bool
	ExternalDirectory PolicyAction
	MediumRisk        PolicyAction
	GitCommit         PolicyAction
	Overrides         map[PermissionName]bool
}

// PolicyFromEnv builds a Policy from the NDC_SECURITY_* environment
// variables described in the external interfaces section, defaulting to
// "ask" for any enforcement point left unset and enforcement enabled.
func PolicyFromEnv() Policy {
	return Policy{
		Enabled:           boolEnv("NDC_SECURITY_PERMISSION_ENFORCE_GATEWAY", true),
		ExternalDirectory: actionEnv("NDC_SECURITY_EXTERNAL_DIRECTORY_ACTION", PolicyAsk),
		MediumRisk:        actionEnv("NDC_SECURITY_MEDIUM_RISK_ACTION", PolicyAsk),
		GitCommit:         actionEnv("NDC_SECURITY_GIT_COMMIT_ACTION", PolicyAsk),
		Overrides:         overridesEnv("NDC_SECURITY_OVERRIDE_PERMISSIONS"),
	}
}

func boolEnv(name string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func actionEnv(name string, def PolicyAction) PolicyAction {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch PolicyAction(v) {
	case PolicyAllow, PolicyAsk, PolicyDeny:
		return PolicyAction(v)
	default:
		return def
	}
}

func overridesEnv(name string) map[PermissionName]bool {
	out := map[PermissionName]bool{}
	raw := os.Getenv(name)
	if raw == "" {
		return out
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out[PermissionName(part)] = true
		}
	}
	return out
}

// resolve applies a per-call override to a configured action: an override
// can only turn "ask" into "allow", never "deny" and never anything at
// "critical" risk (callers must not pass critical actions through here).
func (p Policy) resolve(name PermissionName, configured PolicyAction) PolicyAction {
	if configured == PolicyAsk && p.Overrides[name] {
		return PolicyAllow
	}
	return configured
}
