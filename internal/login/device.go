// Package login obtains a GitHub token through the OAuth device flow and
// stores it in the .env file of the home directory.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://github.com"

var (
	ErrExpired      = errors.New("device code expired, please try again")
	ErrAccessDenied = errors.New("access denied by user")
	// ErrNoClientID means no OAuth App was configured for the device flow.
	ErrNoClientID = errors.New("no OAuth client ID: register an OAuth App with device flow enabled and set GITHUB_DISCUSSIONS_CLIENT_ID or --client-id")
)

// DeviceCode is the response of the device code endpoint.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// accessTokenResponse is the response of the access token endpoint.
type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

// DeviceFlow talks to GitHub's device flow endpoints.
type DeviceFlow struct {
	ClientID   string
	BaseURL    string
	HTTPClient *http.Client
	// MinInterval is the shortest wait between polls.
	MinInterval time.Duration
	// SlowDown is added to the interval when GitHub answers slow_down.
	SlowDown time.Duration
	now      func() time.Time
}

// NewDeviceFlow returns a flow against github.com for the OAuth App
// identified by clientID.
func NewDeviceFlow(clientID string) *DeviceFlow {
	return &DeviceFlow{
		ClientID:    clientID,
		BaseURL:     defaultBaseURL,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		MinInterval: 5 * time.Second,
		SlowDown:    5 * time.Second,
		now:         time.Now,
	}
}

// RequestCode starts the flow.
func (f *DeviceFlow) RequestCode(ctx context.Context) (*DeviceCode, error) {
	data := url.Values{}
	data.Set("client_id", f.ClientID)
	data.Set("scope", "repo read:discussion")

	body, err := f.post(ctx, "/login/device/code", data)
	if err != nil {
		return nil, err
	}

	var code DeviceCode
	if err := json.Unmarshal(body, &code); err != nil {
		return nil, fmt.Errorf("failed to parse device code response: %w", err)
	}
	if code.DeviceCode == "" {
		return nil, fmt.Errorf("no device code in response: %s", string(body))
	}
	return &code, nil
}

// PollToken waits until the user authorizes the code and returns the access
// token. Network errors and unparsable responses are retried until the code
// expires.
func (f *DeviceFlow) PollToken(ctx context.Context, code *DeviceCode) (string, error) {
	interval := time.Duration(code.Interval) * time.Second
	if interval < f.MinInterval {
		interval = f.MinInterval
	}
	now := f.now
	if now == nil {
		now = time.Now
	}
	expiresAt := now().Add(time.Duration(code.ExpiresIn) * time.Second)

	for now().Before(expiresAt) {
		if err := sleep(ctx, interval); err != nil {
			return "", err
		}

		data := url.Values{}
		data.Set("client_id", f.ClientID)
		data.Set("device_code", code.DeviceCode)
		data.Set("grant_type", "urn:ietf:params:oauth:grant-type:device_code")

		body, err := f.post(ctx, "/login/oauth/access_token", data)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}

		var resp accessTokenResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			continue
		}

		switch resp.Error {
		case "":
			if resp.AccessToken != "" {
				return resp.AccessToken, nil
			}
		case "authorization_pending":
			continue
		case "slow_down":
			interval += f.SlowDown
		case "expired_token":
			return "", ErrExpired
		case "access_denied":
			return "", ErrAccessDenied
		default:
			return "", fmt.Errorf("%s: %s", resp.Error, resp.ErrorDesc)
		}
	}

	return "", fmt.Errorf("timeout waiting for authorization: %w", ErrExpired)
}

func (f *DeviceFlow) post(ctx context.Context, path string, data url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(f.BaseURL, "/")+path, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
