// Package api is a thin consumer of the backend's REST surface: just
// enough to authenticate and discover rooms so a voice room can be
// selected. The backend itself is an external collaborator.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/voxium/client/internal/domain"
)

type Client struct {
	base  string
	token string
	http  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type authResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Login authenticates and keeps the bearer token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (*domain.User, error) {
	body, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login: status %d", resp.StatusCode)
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	c.token = auth.Token
	return &domain.User{ID: domain.UserID(auth.UserID), Username: auth.Username}, nil
}

// ListRooms fetches the rooms visible to the authenticated user.
func (c *Client) ListRooms(ctx context.Context) ([]domain.Room, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/rooms", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list rooms: status %d", resp.StatusCode)
	}

	var rooms []domain.Room
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}
