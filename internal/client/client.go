// Package client talks to a running daemon through its popup endpoint,
// the same way the extension popup does.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/lotas/tabflow/internal/server"
	"github.com/lotas/tabflow/internal/types"
)

const defaultTimeout = 35 * time.Second

// ErrGroupFailed is returned when the daemon reports success=false without
// an error message.
var ErrGroupFailed = errors.New("grouping failed")

// Client sends popup requests to a running daemon. Each request uses its
// own WebSocket connection.
type Client struct {
	url     string
	timeout time.Duration
}

// New returns a client for the daemon listening on 127.0.0.1:port.
func New(port int) *Client {
	return NewWithURL(fmt.Sprintf("ws://127.0.0.1:%d/popup", port))
}

// NewWithURL returns a client for an explicit popup WebSocket URL.
func NewWithURL(url string) *Client {
	return &Client{url: strings.TrimRight(url, "/"), timeout: defaultTimeout}
}

// WithTimeout returns a copy of c with a different per-request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	clone := *c
	clone.timeout = d
	return &clone
}

// Stats fetches the per-domain tab statistics.
func (c *Client) Stats(ctx context.Context) (types.StatsResponse, error) {
	resp, err := c.do(ctx, server.ActionGetDomainStats)
	if err != nil {
		return types.StatsResponse{}, err
	}
	if resp.Error != "" {
		return types.StatsResponse{}, fmt.Errorf("stats: %s", resp.Error)
	}
	out := types.StatsResponse{Stats: resp.Stats}
	if out.Stats == nil {
		out.Stats = map[string]*types.DomainStat{}
	}
	if resp.TotalDomains != nil {
		out.TotalDomains = *resp.TotalDomains
	}
	return out, nil
}

// GroupNow asks the daemon to group every open tab by domain.
func (c *Client) GroupNow(ctx context.Context) error {
	resp, err := c.do(ctx, server.ActionGroupTabsByDomain)
	if err != nil {
		return err
	}
	if resp.Success != nil && *resp.Success {
		return nil
	}
	if resp.Error != "" {
		return fmt.Errorf("group: %s", resp.Error)
	}
	return ErrGroupFailed
}

func (c *Client) do(ctx context.Context, action string) (server.PopupResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return server.PopupResponse{}, fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(16 << 20)

	req := server.PopupRequest{ID: uuid.NewString(), Action: action}
	data, err := json.Marshal(req)
	if err != nil {
		return server.PopupResponse{}, err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return server.PopupResponse{}, fmt.Errorf("send %s: %w", action, err)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return server.PopupResponse{}, fmt.Errorf("read %s: %w", action, err)
		}
		var resp server.PopupResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return server.PopupResponse{}, fmt.Errorf("decode %s: %w", action, err)
		}
		if resp.ID != req.ID {
			continue
		}
		conn.Close(websocket.StatusNormalClosure, "")
		return resp, nil
	}
}
