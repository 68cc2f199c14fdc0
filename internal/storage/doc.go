package storage

// Package storage persists the daemon's audit trail:
//
//   - scheduler run outcomes (completed / failed / skipped)
//   - daily plan artifacts (what was materialized, when, how complete)
//
// Callers treat appends as best-effort; a storage failure is logged and
// never fails the job that produced the record.
