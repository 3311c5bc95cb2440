package obs

import "context"

// CheckResult is the outcome of one named health probe.
type CheckResult struct {
	Healthy bool
	Message string
}

// HealthStatus aggregates every probe a HealthChecker ran.
type HealthStatus struct {
	Status string
	Checks map[string]*CheckResult
}

// Healthy reports whether every check in the status passed.
func (s *HealthStatus) Healthy() bool {
	for _, c := range s.Checks {
		if !c.Healthy {
			return false
		}
	}
	return true
}

// Checkable is implemented by anything a HealthChecker can probe — the
// built index reports whether it has completed a build. Speed map load
// state is not probed.
type Checkable interface {
	Sealed() bool
}

// HealthChecker runs a fixed set of probes against a Checkable target,
// used to back a liveness/readiness endpoint without coupling obs to the
// rest of the module.
type HealthChecker struct {
	target Checkable
}

// NewHealthChecker returns a HealthChecker over target.
func NewHealthChecker(target Checkable) *HealthChecker {
	return &HealthChecker{target: target}
}

// Check runs every probe and returns the aggregated status.
func (hc *HealthChecker) Check(ctx context.Context) (*HealthStatus, error) {
	checks := map[string]*CheckResult{
		"index_built": {
			Healthy: hc.target.Sealed(),
			Message: sealedMessage(hc.target.Sealed()),
		},
	}

	status := "healthy"
	for _, c := range checks {
		if !c.Healthy {
			status = "unhealthy"
			break
		}
	}
	return &HealthStatus{Status: status, Checks: checks}, nil
}

func sealedMessage(sealed bool) string {
	if sealed {
		return "index build complete"
	}
	return "index not yet built"
}
