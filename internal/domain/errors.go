package domain

import "errors"

// Sentinel errors for the engine's error taxonomy. Callers discriminate
// with errors.Is; packages wrap these with fmt.Errorf("...: %w", err).
var (
	// ErrDuplicateEvent marks a repeat requestId. Recoverable; the event
	// is silently ignored rather than double-applied.
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrOverRedemption marks a proof submission that would push a task's
	// completed amount past its required amount. The plan is unchanged.
	ErrOverRedemption = errors.New("proof exceeds required amount")

	// ErrPlanExpired marks a submission against an expired plan.
	ErrPlanExpired = errors.New("atonement plan expired")

	// ErrPlanCompleted marks a submission against an already-completed plan.
	ErrPlanCompleted = errors.New("atonement plan already completed")

	// ErrLifecycleTransition marks a failed death/rebirth transition.
	// Fatal to that transition only; the identity remains alive and the
	// transition is retried on the next qualifying mutation.
	ErrLifecycleTransition = errors.New("lifecycle transition failed")

	// ErrConcurrentConflict marks an optimistic version mismatch. The whole
	// event handling is retried a bounded number of times before this
	// surfaces to the caller as a transient failure.
	ErrConcurrentConflict = errors.New("concurrent profile modification")

	// ErrProfileNotFound marks a lookup for an unknown identity.
	ErrProfileNotFound = errors.New("karma profile not found")

	// ErrPlanNotFound marks a lookup for an unknown atonement plan.
	ErrPlanNotFound = errors.New("atonement plan not found")

	// ErrActionNotFound marks a lookup for an unknown action record.
	ErrActionNotFound = errors.New("action record not found")

	// ErrIdentityDeceased marks an event addressed to an identity that has
	// already transitioned. Events must target the reborn successor.
	ErrIdentityDeceased = errors.New("identity is deceased")

	// ErrAlreadyAppealed marks a second appeal against the same action.
	ErrAlreadyAppealed = errors.New("action already appealed")

	// ErrNotAppealable marks an appeal against a non-negative action.
	ErrNotAppealable = errors.New("action is not appealable")
)
