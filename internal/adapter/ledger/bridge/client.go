// Package bridge talks to the ledger through its JSON bridge: every method is
// a POST to {base}/v1/{method}.
package bridge

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"autokami/internal/app/ports"

	"github.com/cloudwego/hertz/pkg/app/client"
	errs "github.com/cloudwego/hertz/pkg/common/errors"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const DefaultTimeout = 30 * time.Second

// Error is a failure reported by the bridge itself.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ledger %s (status %d): %s", e.Code, e.Status, e.Message)
}

// Unwrap classifies the bridge code into the ledger port's sentinels.
func (e *Error) Unwrap() error {
	switch strings.ToLower(e.Code) {
	case "reverted", "tx_failed":
		return ports.ErrTxFailed
	case "timeout":
		return ports.ErrTimeout
	case "not_found":
		return ports.ErrNotFound
	}
	if e.Status >= 500 {
		return ports.ErrUnavailable
	}
	return nil
}

type Client struct {
	baseURL string
	timeout time.Duration
	hc      *client.Client
	logger  zerolog.Logger
}

func New(baseURL string, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("ledger base url is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc, err := client.NewClient(client.WithDialTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("new hertz client: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		hc:      hc,
		logger:  logger,
	}, nil
}

func (c *Client) AgentState(ctx context.Context, agentID string) (ports.AgentState, error) {
	var out agentStateResponse
	if err := c.call(ctx, "agent_state", map[string]any{"agent_id": agentID}, &out); err != nil {
		return ports.AgentState{}, err
	}
	return out.toPort(), nil
}

func (c *Client) AccountState(ctx context.Context, accountID string) (ports.AccountState, error) {
	var out accountStateResponse
	if err := c.call(ctx, "account_state", map[string]any{"account_id": accountID}, &out); err != nil {
		return ports.AccountState{}, err
	}
	return ports.AccountState{Room: out.Room, Stamina: out.Stamina}, nil
}

func (c *Client) AccountOf(ctx context.Context, operator string) (string, error) {
	var out accountOfResponse
	if err := c.call(ctx, "account_of", map[string]any{"operator": operator}, &out); err != nil {
		return "", err
	}
	if out.AccountID == "" {
		return "", fmt.Errorf("account of %s: %w", operator, ports.ErrNotFound)
	}
	return out.AccountID, nil
}

func (c *Client) Inventory(ctx context.Context, accountID string) (map[int]int, error) {
	var out inventoryResponse
	if err := c.call(ctx, "inventory", map[string]any{"account_id": accountID}, &out); err != nil {
		return nil, err
	}
	return out.toPort()
}

func (c *Client) HarvestsByTarget(ctx context.Context, agentID string) ([]ports.HarvestEntity, error) {
	var out harvestsResponse
	if err := c.call(ctx, "harvests_by_target", map[string]any{"agent_id": agentID}, &out); err != nil {
		return nil, err
	}
	harvests := make([]ports.HarvestEntity, 0, len(out.Harvests))
	for _, h := range out.Harvests {
		harvests = append(harvests, ports.HarvestEntity{ID: h.ID, Active: h.Active})
	}
	return harvests, nil
}

func (c *Client) StartHarvest(ctx context.Context, agentID string, nodeIndex int, cred ports.Credential) (ports.StartReceipt, error) {
	var out submitResponse
	params := map[string]any{"agent_id": agentID, "node_index": nodeIndex}
	if err := c.submit(ctx, "start_harvest", params, cred, &out); err != nil {
		return ports.StartReceipt{}, err
	}
	return ports.StartReceipt{TxHash: out.TxHash, HarvestID: out.HarvestID}, nil
}

func (c *Client) StopHarvest(ctx context.Context, harvestID string, cred ports.Credential) (ports.TxReceipt, error) {
	var out submitResponse
	if err := c.submit(ctx, "stop_harvest", map[string]any{"harvest_id": harvestID}, cred, &out); err != nil {
		return ports.TxReceipt{}, err
	}
	return ports.TxReceipt{TxHash: out.TxHash}, nil
}

func (c *Client) Craft(ctx context.Context, recipeID, amount int, cred ports.Credential) (ports.TxReceipt, error) {
	var out submitResponse
	params := map[string]any{"recipe_id": recipeID, "amount": amount}
	if err := c.submit(ctx, "craft", params, cred, &out); err != nil {
		return ports.TxReceipt{}, err
	}
	return ports.TxReceipt{TxHash: out.TxHash}, nil
}

func (c *Client) submit(ctx context.Context, method string, params map[string]any, cred ports.Credential, out any) error {
	if cred.Empty() {
		return fmt.Errorf("%s: empty credential", method)
	}
	body, err := encodeSubmit(params, cred.Bytes())
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	defer wipe(body)
	return c.do(ctx, method, body, out)
}

// encodeSubmit renders params as a JSON object with the hex signing key as
// its last field. The key only ever lives in the returned buffer, which the
// caller zeroes.
func encodeSubmit(params map[string]any, secret []byte) ([]byte, error) {
	base, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	const field = `"private_key":"`
	body := make([]byte, 0, len(base)+len(field)+hex.EncodedLen(len(secret))+3)
	body = append(body, base[:len(base)-1]...)
	if len(params) > 0 {
		body = append(body, ',')
	}
	body = append(body, field...)
	body = hex.AppendEncode(body, secret)
	body = append(body, '"', '}')
	return body, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	return c.do(ctx, method, body, out)
}

func (c *Client) do(ctx context.Context, method string, body []byte, out any) error {
	requestID := uuid.NewString()

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetMethod(consts.MethodPost)
	req.SetRequestURI(c.baseURL + "/v1/" + method)
	req.Header.SetContentTypeBytes([]byte("application/json"))
	req.Header.Set("X-Request-ID", requestID)
	req.SetBodyRaw(body)

	started := time.Now()
	err := c.hc.DoTimeout(ctx, req, resp, c.timeout)
	log := c.logger.With().Str("method", method).Str("request_id", requestID).Dur("elapsed", time.Since(started)).Logger()
	if err != nil {
		log.Warn().Err(err).Msg("ledger call failed")
		if isTimeout(ctx, err) {
			return fmt.Errorf("%s: %w: %v", method, ports.ErrTimeout, err)
		}
		return fmt.Errorf("%s: %w: %v", method, ports.ErrUnavailable, err)
	}

	status := resp.StatusCode()
	payload := resp.Body()
	if status < 200 || status >= 300 {
		bridgeErr := decodeError(status, payload)
		log.Warn().Int("status", status).Str("code", bridgeErr.Code).Msg("ledger call rejected")
		return fmt.Errorf("%s: %w", method, bridgeErr)
	}
	log.Debug().Int("status", status).Msg("ledger call ok")
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s: %w", method, err)
	}
	return nil
}

func decodeError(status int, payload []byte) *Error {
	var envelope errorEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Error.Code == "" {
		return &Error{Status: status, Code: "http_status", Message: strings.TrimSpace(string(payload))}
	}
	return &Error{Status: status, Code: envelope.Error.Code, Message: envelope.Error.Message}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, errs.ErrTimeout) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
