package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"autokami/internal/app/harvest"
	"autokami/internal/app/operator"
	"autokami/internal/app/ports"
	"autokami/internal/app/signer"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

type Handler struct {
	Operator operator.UseCase
	Manual   harvest.Manual
	KPI      kpiSnapshotProvider
	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken string
}

func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.Use(corsMiddleware())

	api := s.Group("/api", tokenMiddleware(h.APIToken))
	api.GET("/kamis/:agent_id", h.profile)
	api.PUT("/kamis/:agent_id/automation", h.updateAutomation)
	api.POST("/kamis/:agent_id/start", h.start)
	api.POST("/kamis/:agent_id/stop", h.stop)
	api.PUT("/crafting/:operator", h.upsertCrafting)
	api.PUT("/operators/:operator/credential", h.storeCredential)
	api.PUT("/operators/:operator/notification", h.setRecipient)
	api.GET("/audit", h.audit)

	s.GET("/ops/kpi", h.kpi)
}

type automationRequest struct {
	Operator           string `json:"operator"`
	HarvestMinutes     *int   `json:"harvest_duration,omitempty"`
	RestMinutes        *int   `json:"rest_duration,omitempty"`
	MinHealthThreshold *int   `json:"min_health_threshold,omitempty"`
	AutoHarvestEnabled *bool  `json:"auto_harvest_enabled,omitempty"`
	AutoCollectEnabled *bool  `json:"auto_collect_enabled,omitempty"`
	AutoRestartEnabled *bool  `json:"auto_restart_enabled,omitempty"`
	TargetNodeIndex    *int   `json:"target_node_index,omitempty"`
}

type startRequest struct {
	Operator  string `json:"operator"`
	NodeIndex *int   `json:"node_index,omitempty"`
}

type stopRequest struct {
	Operator string `json:"operator"`
}

type craftingRequest struct {
	RecipeID        int  `json:"recipe_id"`
	AmountPerRun    int  `json:"amount_per_run"`
	IntervalMinutes int  `json:"interval_minutes"`
	IsEnabled       bool `json:"is_enabled"`
}

type credentialRequest struct {
	PrivateKey string `json:"private_key"`
}

type recipientRequest struct {
	ChatID string `json:"chat_id"`
}

func (h Handler) profile(c context.Context, ctx *app.RequestContext) {
	p, err := h.Operator.Profile(c, ctx.Param("agent_id"), string(ctx.Query("operator")))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, p)
}

func (h Handler) updateAutomation(c context.Context, ctx *app.RequestContext) {
	var body automationRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	p, err := h.Operator.UpdateAutomation(c, operator.AutomationRequest{
		AgentID:            ctx.Param("agent_id"),
		Operator:           body.Operator,
		HarvestMinutes:     body.HarvestMinutes,
		RestMinutes:        body.RestMinutes,
		MinHealthThreshold: body.MinHealthThreshold,
		AutoHarvestEnabled: body.AutoHarvestEnabled,
		AutoCollectEnabled: body.AutoCollectEnabled,
		AutoRestartEnabled: body.AutoRestartEnabled,
		TargetNodeIndex:    body.TargetNodeIndex,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, p)
}

// start falls back to the profile's target node when the body names none.
func (h Handler) start(c context.Context, ctx *app.RequestContext) {
	var body startRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	agentID := ctx.Param("agent_id")
	node := 0
	if body.NodeIndex != nil {
		node = *body.NodeIndex
	} else if strings.TrimSpace(body.Operator) != "" {
		p, err := h.Operator.Profile(c, agentID, body.Operator)
		if err != nil {
			writeError(ctx, err)
			return
		}
		node = p.TargetNodeIndex
	}
	resp, err := h.Manual.Start(c, harvest.ManualStartRequest{AgentID: agentID, Operator: body.Operator, NodeIndex: node})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) stop(c context.Context, ctx *app.RequestContext) {
	var body stopRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	resp, err := h.Manual.Stop(c, harvest.ManualStopRequest{AgentID: ctx.Param("agent_id"), Operator: body.Operator})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) upsertCrafting(c context.Context, ctx *app.RequestContext) {
	var body craftingRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	s, err := h.Operator.UpsertCrafting(c, operator.CraftingRequest{
		Operator:        ctx.Param("operator"),
		RecipeID:        body.RecipeID,
		AmountPerRun:    body.AmountPerRun,
		IntervalMinutes: body.IntervalMinutes,
		IsEnabled:       body.IsEnabled,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, s)
}

func (h Handler) storeCredential(c context.Context, ctx *app.RequestContext) {
	var body credentialRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if err := h.Operator.StoreCredential(c, ctx.Param("operator"), body.PrivateKey); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.SetStatusCode(consts.StatusNoContent)
}

func (h Handler) setRecipient(c context.Context, ctx *app.RequestContext) {
	var body recipientRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if err := h.Operator.SetRecipient(c, ctx.Param("operator"), body.ChatID); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.SetStatusCode(consts.StatusNoContent)
}

func (h Handler) audit(c context.Context, ctx *app.RequestContext) {
	limit := 0
	if raw := string(ctx.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", "limit must be an integer")
			return
		}
		limit = n
	}
	resp, err := h.Operator.Audit(c, operator.AuditRequest{
		Operator: string(ctx.Query("operator")),
		AgentID:  string(ctx.Query("agent_id")),
		Limit:    limit,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

type kpiSnapshotProvider interface {
	SnapshotAny() any
}

func (h Handler) kpi(_ context.Context, ctx *app.RequestContext) {
	if h.KPI == nil {
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", "kpi provider not configured")
		return
	}
	ctx.JSON(consts.StatusOK, h.KPI.SnapshotAny())
}

func decodeJSON(ctx *app.RequestContext, out any) error {
	body := ctx.Request.Body()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

var ErrMissingToken = errors.New("missing or invalid bearer token")

func bearerToken(ctx *app.RequestContext) string {
	raw := strings.TrimSpace(string(ctx.GetHeader("Authorization")))
	if len(raw) < 7 || !strings.EqualFold(raw[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(raw[7:])
}

func writeError(ctx *app.RequestContext, err error) {
	switch {
	case errors.Is(err, ErrMissingToken):
		writeErrorBody(ctx, consts.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, operator.ErrUnknownRecipe):
		writeErrorBody(ctx, consts.StatusBadRequest, "unknown_recipe", err.Error())
	case errors.Is(err, harvest.ErrInvalidRequest),
		errors.Is(err, operator.ErrInvalidRequest):
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, harvest.ErrOperatorMismatch),
		errors.Is(err, operator.ErrOperatorMismatch):
		writeErrorBody(ctx, consts.StatusForbidden, "operator_mismatch", err.Error())
	case errors.Is(err, harvest.ErrAlreadyHarvesting):
		writeErrorBody(ctx, consts.StatusConflict, "already_harvesting", err.Error())
	case errors.Is(err, harvest.ErrNotHarvesting):
		writeErrorBody(ctx, consts.StatusConflict, "not_harvesting", err.Error())
	case errors.Is(err, harvest.ErrLocationMismatch):
		writeErrorBody(ctx, consts.StatusConflict, "location_mismatch", err.Error())
	case errors.Is(err, harvest.ErrHarvestUnresolved):
		writeErrorBody(ctx, consts.StatusConflict, "harvest_unresolved", err.Error())
	case errors.Is(err, signer.ErrNoCredential):
		writeErrorBody(ctx, consts.StatusPreconditionFailed, "no_credential", err.Error())
	case errors.Is(err, ports.ErrTxFailed):
		writeErrorBody(ctx, consts.StatusBadGateway, "tx_failed", err.Error())
	case errors.Is(err, ports.ErrTimeout):
		writeErrorBody(ctx, consts.StatusGatewayTimeout, "ledger_timeout", err.Error())
	case errors.Is(err, ports.ErrUnavailable):
		writeErrorBody(ctx, consts.StatusServiceUnavailable, "ledger_unavailable", err.Error())
	case errors.Is(err, ports.ErrNotFound):
		writeErrorBody(ctx, consts.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ports.ErrConflict):
		writeErrorBody(ctx, consts.StatusConflict, "conflict", err.Error())
	default:
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
