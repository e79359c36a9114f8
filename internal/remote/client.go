// Package remote is the HTTP client for the vendor heating-control
// API: authentication (session and token flavors), device listing,
// and setpoint commands. Callers depend only on success/failure and
// payload shape, not on the transport details here.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"heating_bridge/internal/models"
	"heating_bridge/internal/session"
)

const defaultTimeout = 30 * time.Second

// Client talks to one vendor API endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
	UserInfo  struct {
		UserID string `json:"userID"`
	} `json:"userInfo"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

// Login performs the session-flavor authentication.
func (c *Client) Login(ctx context.Context, creds session.Credentials) (session.Session, error) {
	body := map[string]string{
		"username":      creds.Username,
		"password":      creds.Password,
		"applicationId": creds.ApplicationID,
	}
	var resp sessionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/session", nil, body, &resp); err != nil {
		return session.Session{}, err
	}
	return session.Session{SessionID: resp.SessionID, UserID: resp.UserInfo.UserID}, nil
}

// RequestToken performs the token-flavor authentication.
func (c *Client) RequestToken(ctx context.Context, creds session.Credentials) (session.TokenGrant, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {creds.Username},
		"password":   {creds.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return session.TokenGrant{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp tokenResponse
	if err := c.send(req, &resp); err != nil {
		return session.TokenGrant{}, err
	}
	return session.TokenGrant{
		AccessToken: resp.AccessToken,
		ExpiresIn:   time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

// GetDevices fetches every device visible to the session's account.
func (c *Client) GetDevices(ctx context.Context, s session.Session) ([]models.Device, error) {
	headers := map[string]string{"SessionId": s.SessionID}
	var devices []models.Device
	path := "/devices?userId=" + url.QueryEscape(s.UserID)
	if err := c.doJSON(ctx, http.MethodGet, path, headers, nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// SetHeatSetpoint issues a manual override for a zone.
func (c *Client) SetHeatSetpoint(ctx context.Context, s session.Session, deviceID string, setpoint float64, mode string) error {
	headers := map[string]string{"SessionId": s.SessionID}
	body := map[string]any{
		"heatSetpoint": setpoint,
		"setpointMode": mode,
	}
	path := fmt.Sprintf("/devices/%s/thermostat/setpoint", url.PathEscape(deviceID))
	return c.doJSON(ctx, http.MethodPut, path, headers, body, nil)
}

// CancelOverride returns a zone to its programmed schedule.
func (c *Client) CancelOverride(ctx context.Context, s session.Session, deviceID string) error {
	headers := map[string]string{"SessionId": s.SessionID}
	body := map[string]any{"setpointMode": models.SetpointModeScheduled}
	path := fmt.Sprintf("/devices/%s/thermostat/setpoint", url.PathEscape(deviceID))
	return c.doJSON(ctx, http.MethodPut, path, headers, body, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &Error{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(detail))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote api: decode response: %w", err)
	}
	return nil
}
