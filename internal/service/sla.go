package service

import "time"

// SLA time accounting. Pure functions; all decisions about when they run and
// where results are stored belong to the state machine.

// RemainingToFinalize computes the countdown budget in seconds, derived once
// at ticket creation. The maximum budget is authoritative when configured,
// the target budget otherwise. Returns nil when the service has neither.
func RemainingToFinalize(targetHours, maxHours *int) *int64 {
	hours := maxHours
	if hours == nil {
		hours = targetHours
	}
	if hours == nil {
		return nil
	}
	seconds := int64(*hours) * 3600
	return &seconds
}

// IsWithinTarget reports whether the ticket closed within its target budget.
// Returns nil while the ticket is not closed or no target is configured.
func IsWithinTarget(createdAt time.Time, closedAt *time.Time, targetHours *int) *bool {
	if closedAt == nil || targetHours == nil {
		return nil
	}
	within := closedAt.Sub(createdAt) <= time.Duration(*targetHours)*time.Hour
	return &within
}

// AttentionSeconds computes the wall-clock attention delta. Time spent in
// Pendiente counts: the pending sub-state records why work stalled, it does
// not pause the SLA clock.
func AttentionSeconds(attentionStartedAt *time.Time, now time.Time) *int64 {
	if attentionStartedAt == nil {
		return nil
	}
	seconds := int64(now.Sub(*attentionStartedAt) / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	return &seconds
}
