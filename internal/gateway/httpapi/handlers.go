package httpapi

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jkaninda/okapi"

	"github.com/jkaninda/samsara/internal/domain"
	"github.com/jkaninda/samsara/internal/engine"
)

func (g *Gateway) handleAction(c *okapi.Context) error {
	if err := g.rateLimit(c); err != nil {
		return err
	}

	var req ActionRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.RequestID == "" {
		return c.AbortBadRequest("request_id is required")
	}
	if req.Action == "" {
		return c.AbortBadRequest("action is required")
	}
	identityID, err := uuid.Parse(req.IdentityID)
	if err != nil {
		return c.AbortBadRequest("invalid identity_id")
	}
	if req.Intensity < 0 || req.Intensity > 2 {
		return c.AbortBadRequest("intensity must be in [0, 2]")
	}

	g.logger.Info("http action",
		slog.String("request_id", req.RequestID),
		slog.String("identity_id", req.IdentityID),
		slog.String("action", req.Action),
	)

	res, err := g.engine.HandleAction(c.Context(), &engine.ActionEvent{
		RequestID:    req.RequestID,
		IdentityID:   identityID,
		Action:       req.Action,
		Intensity:    req.Intensity,
		Context:      req.Context,
		Counterparty: req.Counterparty,
	})
	if err != nil {
		g.logger.Error("action handling failed",
			slog.String("request_id", req.RequestID),
			slog.String("error", err.Error()),
		)
		return domainError(c, err)
	}

	return c.OK(toActionResponse(res))
}

func (g *Gateway) handleProof(c *okapi.Context) error {
	if err := g.rateLimit(c); err != nil {
		return err
	}

	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid plan ID")
	}

	var req ProofRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.RequestID == "" {
		return c.AbortBadRequest("request_id is required")
	}
	if req.Amount <= 0 {
		return c.AbortBadRequest("amount must be positive")
	}
	mechanism := domain.Mechanism(req.Mechanism)
	if !validMechanism(mechanism) {
		return c.AbortBadRequest("unknown mechanism")
	}

	res, err := g.engine.SubmitProof(c.Context(), &engine.ProofSubmission{
		RequestID: req.RequestID,
		PlanID:    planID,
		Mechanism: mechanism,
		Amount:    req.Amount,
	})
	if err != nil {
		g.logger.Error("proof submission failed",
			slog.String("request_id", req.RequestID),
			slog.String("plan_id", planID.String()),
			slog.String("error", err.Error()),
		)
		return domainError(c, err)
	}

	return c.OK(toProofResponse(res))
}

func (g *Gateway) handleAppeal(c *okapi.Context) error {
	if err := g.rateLimit(c); err != nil {
		return err
	}

	var req AppealRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.RequestID == "" {
		return c.AbortBadRequest("request_id is required")
	}
	identityID, err := uuid.Parse(req.IdentityID)
	if err != nil {
		return c.AbortBadRequest("invalid identity_id")
	}
	actionID, err := uuid.Parse(req.ActionRecordID)
	if err != nil {
		return c.AbortBadRequest("invalid action_record_id")
	}

	res, err := g.engine.FileAppeal(c.Context(), &engine.AppealRequest{
		RequestID:      req.RequestID,
		IdentityID:     identityID,
		ActionRecordID: actionID,
		Reason:         req.Reason,
	})
	if err != nil {
		g.logger.Error("appeal failed",
			slog.String("request_id", req.RequestID),
			slog.String("error", err.Error()),
		)
		return domainError(c, err)
	}

	return c.OK(toAppealResponse(res))
}

func (g *Gateway) handleProfile(c *okapi.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid identity ID")
	}

	profile, err := g.store.GetProfile(c.Context(), id)
	if err != nil {
		return domainError(c, err)
	}

	return c.OK(toProfileResponse(profile))
}

func (g *Gateway) handleActionHistory(c *okapi.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid identity ID")
	}
	from, to, err := timeWindow(c)
	if err != nil {
		return c.AbortBadRequest(err.Error())
	}

	actions, err := g.store.ListActions(c.Context(), id, from, to)
	if err != nil {
		return domainError(c, err)
	}

	resp := make([]ActionRecordResponse, len(actions))
	for i := range actions {
		resp[i] = toActionRecordResponse(&actions[i])
	}
	return c.OK(resp)
}

func (g *Gateway) handlePlans(c *okapi.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid identity ID")
	}

	plans, err := g.store.ListPlansByIdentity(c.Context(), id)
	if err != nil {
		return domainError(c, err)
	}

	resp := make([]PlanResponse, len(plans))
	for i := range plans {
		resp[i] = toPlanResponse(&plans[i])
	}
	return c.OK(resp)
}

func (g *Gateway) handleAppeals(c *okapi.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid identity ID")
	}
	from, to, err := timeWindow(c)
	if err != nil {
		return c.AbortBadRequest(err.Error())
	}

	appeals, err := g.store.ListAppealsByIdentity(c.Context(), id, from, to)
	if err != nil {
		return domainError(c, err)
	}

	resp := make([]AppealRecordResponse, len(appeals))
	for i := range appeals {
		resp[i] = toAppealRecordResponse(&appeals[i])
	}
	return c.OK(resp)
}

func (g *Gateway) handleLifecycle(c *okapi.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid identity ID")
	}
	from, to, err := timeWindow(c)
	if err != nil {
		return c.AbortBadRequest(err.Error())
	}

	events, err := g.store.ListLifecycleEvents(c.Context(), id, from, to)
	if err != nil {
		return domainError(c, err)
	}

	resp := make([]LifecycleEventResponse, len(events))
	for i := range events {
		resp[i] = toLifecycleEventResponse(&events[i])
	}
	return c.OK(resp)
}

func (g *Gateway) handleAudit(c *okapi.Context) error {
	if err := g.rateLimit(c); err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid identity ID")
	}

	report, err := g.engine.AuditProfile(c.Context(), id)
	if err != nil {
		return domainError(c, err)
	}
	return c.OK(toAuditResponse(report))
}

var errInvalidWindow = errors.New("from/to must be RFC 3339 timestamps")

// timeWindow parses optional RFC 3339 "from"/"to" query parameters.
// Defaults to an unbounded start and a now end.
func timeWindow(c *okapi.Context) (time.Time, time.Time, error) {
	q := c.Request().URL.Query()
	var from, to time.Time
	to = time.Now().UTC()

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, errInvalidWindow
		}
		from = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, errInvalidWindow
		}
		to = t
	}
	return from, to, nil
}

func validMechanism(m domain.Mechanism) bool {
	for _, known := range domain.Mechanisms() {
		if m == known {
			return true
		}
	}
	return false
}
