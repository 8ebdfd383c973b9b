package timeoff

import (
	"context"
	"fmt"

	"github.com/lumina/policy-engine/generic"
)

// RedactedReason replaces the free-text reason of purged requests.
const RedactedReason = "[redacted]"

// PurgeReasons redacts the reason text of decided requests whose leave
// ended more than years ago. Dates, type and status are kept so balances
// and reports stay intact. It returns the number of redacted requests.
func (s *RequestService) PurgeReasons(ctx context.Context, years int) (int, error) {
	if years <= 0 {
		return 0, &generic.ValidationError{Field: "years", Code: "invalid_retention", Message: "retention must be at least one year"}
	}
	cutoff := generic.DateOf(s.Engine.Now()).AddYears(-years)

	candidates, err := s.Requests.List(ctx, RequestFilter{EndedBefore: &cutoff})
	if err != nil {
		return 0, fmt.Errorf("list requests: %w", err)
	}

	purged := 0
	for _, req := range candidates {
		if !req.Status.Decided() || req.Redacted {
			continue
		}
		_, err := s.Requests.Update(ctx, req.ID, func(current LeaveRequest) (LeaveRequest, error) {
			current.Reason = RedactedReason
			current.Redacted = true
			return current, nil
		})
		if err != nil {
			return purged, fmt.Errorf("redact %s: %w", req.ID, err)
		}
		purged++
	}

	s.audit(ctx, generic.AuditEntry{
		ActorID: "system",
		Action:  generic.AuditRetentionPurge,
		Target:  cutoff.String(),
		Details: fmt.Sprintf("redacted %d request reasons ended before %s", purged, cutoff),
		Outcome: generic.OutcomeSuccess,
	})
	return purged, nil
}
