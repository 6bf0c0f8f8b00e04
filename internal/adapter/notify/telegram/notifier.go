// Package telegram delivers operator notifications through the Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const DefaultAPIBase = "https://api.telegram.org"

var ErrDisabled = errors.New("telegram notifier has no bot token")

type Notifier struct {
	apiBase string
	token   string
	timeout time.Duration
	hc      *client.Client
}

func New(apiBase, token string, timeout time.Duration) (*Notifier, error) {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc, err := client.NewClient(client.WithDialTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("new hertz client: %w", err)
	}
	return &Notifier{apiBase: strings.TrimRight(apiBase, "/"), token: token, timeout: timeout, hc: hc}, nil
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (n *Notifier) Notify(ctx context.Context, recipient, text string) error {
	if n.token == "" {
		return ErrDisabled
	}
	body, err := json.Marshal(sendMessageRequest{ChatID: recipient, Text: text})
	if err != nil {
		return err
	}
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetMethod(consts.MethodPost)
	req.SetRequestURI(n.apiBase + "/bot" + n.token + "/sendMessage")
	req.Header.SetContentTypeBytes([]byte("application/json"))
	req.SetBody(body)

	timeout := n.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("telegram sendMessage: %w", context.DeadlineExceeded)
	}
	if err := n.hc.DoTimeout(ctx, req, resp, timeout); err != nil {
		// The request URI carries the token; keep it out of the error.
		return fmt.Errorf("telegram sendMessage: %s", strings.ReplaceAll(err.Error(), n.token, "***"))
	}
	var out apiResponse
	_ = json.Unmarshal(resp.Body(), &out)
	if resp.StatusCode() != consts.StatusOK || !out.OK {
		return fmt.Errorf("telegram sendMessage: status %d: %s", resp.StatusCode(), out.Description)
	}
	return nil
}
