package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/suufi/mit-lobby7-verification/internal/config"
	"github.com/suufi/mit-lobby7-verification/internal/domain"
)

// Role is a guild role as returned by the Discord API.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Member is a guild member. Roles holds role ids, not names.
type Member struct {
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Nick  string   `json:"nick"`
	Roles []string `json:"roles"`
}

// Client is a minimal Discord REST adapter. The gateway process owns the
// websocket connection; this service only mutates roles and posts audit
// lines, so a thin client over the REST API is all it needs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    cfg.DiscordAPIBaseURL,
		token:      cfg.DiscordBotToken,
	}
}

// GuildRoles lists all roles in a guild. An unknown guild maps to
// domain.ErrNotFound.
func (c *Client) GuildRoles(ctx context.Context, guildID string) ([]Role, error) {
	var roles []Role
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/roles", guildID), nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// GuildMember fetches one member. An unknown guild or member maps to
// domain.ErrNotFound.
func (c *Client) GuildMember(ctx context.Context, guildID, userID string) (*Member, error) {
	var m Member
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/members/%s", guildID, userID), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, userID, roleID), nil, nil)
}

func (c *Client) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/guilds/%s/members/%s/roles/%s", guildID, userID, roleID), nil, nil)
}

// SendChannelMessage posts a plain-text message to a channel.
func (c *Client) SendChannelMessage(ctx context.Context, channelID, content string) error {
	body := map[string]string{"content": content}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", channelID), body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("discord %s %s: %w", method, path, domain.ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord %s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
