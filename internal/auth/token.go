// Package auth acquires Microsoft identity tokens via the OAuth2 device-code
// flow and keeps the refresh token in the OS keyring (file fallback).
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultAuthority = "https://login.microsoftonline.com/common"

// ErrNotLoggedIn is returned when no token is cached and no refresh token is
// available. Callers should direct the user to the login command.
var ErrNotLoggedIn = errors.New("not logged in: run `ms365-mcp login` first")

// DeviceCodePrompt receives the user-facing verification message
// ("To sign in, use a web browser to open ... and enter the code ...").
type DeviceCodePrompt func(message string)

// Manager implements graph.TokenSource.
type Manager struct {
	clientID   string
	authority  string
	scopes     []string
	httpClient *http.Client
	cache      CredentialCache

	mu           sync.Mutex
	accessToken  string
	expiresAt    time.Time
	refreshToken string
}

// NewManager creates a token manager. authority may be empty for the common
// endpoint; scopes default to the Graph delegated set used by the facade.
func NewManager(clientID, authority string, scopes []string, cache CredentialCache) *Manager {
	if authority == "" {
		authority = defaultAuthority
	}
	if len(scopes) == 0 {
		scopes = []string{
			"Mail.ReadWrite", "Mail.Send", "Calendars.ReadWrite",
			"Team.ReadBasic.All", "ChannelMessage.Read.All",
			"Files.ReadWrite", "Sites.Read.All",
			"Tasks.ReadWrite", "offline_access",
		}
	}
	return &Manager{
		clientID:   clientID,
		authority:  strings.TrimRight(authority, "/"),
		scopes:     scopes,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

// Token returns a valid access token, refreshing or failing with
// ErrNotLoggedIn as appropriate.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accessToken != "" && time.Until(m.expiresAt) > time.Minute {
		return m.accessToken, nil
	}

	if m.refreshToken == "" && m.cache != nil {
		cached, err := m.cache.Load()
		if err != nil {
			slog.Warn("token cache read failed", "error", err)
		}
		m.refreshToken = cached
	}
	if m.refreshToken == "" {
		return "", ErrNotLoggedIn
	}

	form := url.Values{
		"client_id":     {m.clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {m.refreshToken},
		"scope":         {strings.Join(m.scopes, " ")},
	}
	tok, err := m.tokenRequest(ctx, form)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	m.adopt(tok)
	return m.accessToken, nil
}

// Login runs the device-code flow to completion. prompt is called once with
// the verification message; the call then blocks polling until the user
// approves, the code expires, or ctx is canceled.
func (m *Manager) Login(ctx context.Context, prompt DeviceCodePrompt) error {
	form := url.Values{
		"client_id": {m.clientID},
		"scope":     {strings.Join(m.scopes, " ")},
	}
	resp, err := m.postForm(ctx, m.authority+"/oauth2/v2.0/devicecode", form)
	if err != nil {
		return fmt.Errorf("device code request: %w", err)
	}
	var dc struct {
		DeviceCode string `json:"device_code"`
		Message    string `json:"message"`
		ExpiresIn  int    `json:"expires_in"`
		Interval   int    `json:"interval"`
	}
	if err := json.Unmarshal(resp, &dc); err != nil {
		return fmt.Errorf("device code response: %w", err)
	}
	if prompt != nil {
		prompt(dc.Message)
	}

	interval := time.Duration(dc.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)

	pollForm := url.Values{
		"client_id":   {m.clientID},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"device_code": {dc.DeviceCode},
	}
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		tok, err := m.tokenRequest(ctx, pollForm)
		if err != nil {
			var pending *pendingError
			if errors.As(err, &pending) {
				continue
			}
			return err
		}
		m.mu.Lock()
		m.adopt(tok)
		m.mu.Unlock()
		slog.Info("login complete")
		return nil
	}
	return errors.New("device code expired before sign-in completed")
}

// Logout discards in-memory and persisted credentials.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.accessToken = ""
	m.refreshToken = ""
	m.expiresAt = time.Time{}
	m.mu.Unlock()
	if m.cache != nil {
		return m.cache.Clear()
	}
	return nil
}

// adopt stores a fresh token pair; caller holds the lock (or is single-owner).
func (m *Manager) adopt(tok *tokenResponse) {
	m.accessToken = tok.AccessToken
	m.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if tok.RefreshToken != "" {
		m.refreshToken = tok.RefreshToken
		if m.cache != nil {
			if err := m.cache.Store(tok.RefreshToken); err != nil {
				slog.Warn("token cache write failed", "error", err)
			}
		}
	}
}

// pendingError marks the authorization_pending poll response.
type pendingError struct{ desc string }

func (e *pendingError) Error() string { return "authorization pending: " + e.desc }

func (m *Manager) tokenRequest(ctx context.Context, form url.Values) (*tokenResponse, error) {
	body, err := m.postForm(ctx, m.authority+"/oauth2/v2.0/token", form)
	if err != nil {
		return nil, err
	}
	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("token response: %w", err)
	}
	switch tok.Error {
	case "":
	case "authorization_pending", "slow_down":
		return nil, &pendingError{desc: tok.Error}
	default:
		return nil, fmt.Errorf("token endpoint: %s: %s", tok.Error, tok.ErrorDesc)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("token endpoint returned no access token")
	}
	return &tok, nil
}

func (m *Manager) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
