package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// MatrixClient speaks the Matrix client-server API directly. The registrar
// only needs login, direct room creation, message send and a sync loop, so a
// full SDK would be more surface than it is worth.
type MatrixClient struct {
	homeserver string
	userID     string
	token      string
	http       *http.Client
	logger     *slog.Logger
}

func NewMatrixClient(ctx context.Context, homeserver, username, password string, logger *slog.Logger) (*MatrixClient, error) {
	c := &MatrixClient{
		homeserver: homeserver,
		http:       &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
	if err := c.login(ctx, username, password); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *MatrixClient) login(ctx context.Context, username, password string) error {
	var resp struct {
		UserID      string `json:"user_id"`
		AccessToken string `json:"access_token"`
	}
	err := c.call(ctx, http.MethodPost, "/_matrix/client/v3/login", map[string]any{
		"type":     "m.login.password",
		"user":     username,
		"password": password,
	}, &resp)
	if err != nil {
		return fmt.Errorf("matrix login: %w", err)
	}
	c.userID = resp.UserID
	c.token = resp.AccessToken
	return nil
}

func (c *MatrixClient) CreateDirectRoom(ctx context.Context, handle string) (string, error) {
	var resp struct {
		RoomID string `json:"room_id"`
	}
	err := c.call(ctx, http.MethodPost, "/_matrix/client/v3/createRoom", map[string]any{
		"invite":    []string{handle},
		"is_direct": true,
		"preset":    "trusted_private_chat",
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("create direct room with %s: %w", handle, err)
	}
	return resp.RoomID, nil
}

func (c *MatrixClient) SendMessage(ctx context.Context, roomID, body string) error {
	path := fmt.Sprintf("/_matrix/client/v3/rooms/%s/send/m.room.message/%s",
		url.PathEscape(roomID), uuid.NewString())
	err := c.call(ctx, http.MethodPut, path, map[string]any{
		"msgtype": "m.text",
		"body":    body,
	}, nil)
	if err != nil {
		return fmt.Errorf("send message to %s: %w", roomID, err)
	}
	return nil
}

// Listen runs the sync loop, feeding inbound text messages from other users
// into the service until ctx is cancelled.
func (c *MatrixClient) Listen(ctx context.Context, svc *Service) error {
	since := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := c.sync(ctx, since, svc)
		if err != nil {
			c.logger.Warn("matrix sync failed, retrying", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		since = batch
	}
}

func (c *MatrixClient) sync(ctx context.Context, since string, svc *Service) (string, error) {
	path := "/_matrix/client/v3/sync?timeout=30000"
	if since != "" {
		path += "&since=" + url.QueryEscape(since)
	}

	var resp struct {
		NextBatch string `json:"next_batch"`
		Rooms     struct {
			Join map[string]struct {
				Timeline struct {
					Events []struct {
						Type    string `json:"type"`
						Sender  string `json:"sender"`
						Content struct {
							MsgType string `json:"msgtype"`
							Body    string `json:"body"`
						} `json:"content"`
					} `json:"events"`
				} `json:"timeline"`
			} `json:"join"`
		} `json:"rooms"`
	}
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}

	// The initial sync returns history; only deliveries after that count.
	if since == "" {
		return resp.NextBatch, nil
	}

	for roomID, room := range resp.Rooms.Join {
		for _, ev := range room.Timeline.Events {
			if ev.Type != "m.room.message" || ev.Content.MsgType != "m.text" || ev.Sender == c.userID {
				continue
			}
			if err := svc.HandleIncoming(ctx, roomID, ev.Sender, ev.Content.Body); err != nil {
				c.logger.Error("handling inbound chat message",
					slog.String("room", roomID),
					slog.String("sender", ev.Sender),
					slog.Any("error", err))
			}
		}
	}
	return resp.NextBatch, nil
}

func (c *MatrixClient) call(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.homeserver+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("homeserver returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
