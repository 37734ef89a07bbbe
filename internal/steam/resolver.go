// Package steam calls the Steam Web API to resolve human-chosen vanity
// URLs to account ids.
package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/drops-stats/drops/internal/steamid"
)

const defaultBaseURL = "https://api.steampowered.com"

// Steam reports "no match" as success code 42 on an otherwise successful
// response.
const successNoMatch = 42

// ErrNoMatch means the API answered but no player owns that vanity url.
// It is an absence, not a fault; the name may be claimed later.
var ErrNoMatch = errors.New("no player with that vanity url")

// Client resolves vanity urls via ISteamUser/ResolveVanityURL.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Steam Web API client.
func NewClient(apiKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		logger:     logger,
	}
}

type resolveResponse struct {
	Response struct {
		Success int    `json:"success"`
		SteamID string `json:"steamid"`
		Message string `json:"message"`
	} `json:"response"`
}

// Resolve maps a vanity url to a SteamID. ErrNoMatch signals that the
// API found no owner; any other failure is a transport or service fault.
func (c *Client) Resolve(ctx context.Context, name string) (steamid.SteamID, error) {
	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("vanityurl", name)
	endpoint := fmt.Sprintf("%s/ISteamUser/ResolveVanityURL/v1/?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("building resolve request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling steam api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("steam api returned status %d", resp.StatusCode)
	}

	var body resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decoding steam api response: %w", err)
	}

	switch body.Response.Success {
	case 1:
		id, err := steamid.Parse(body.Response.SteamID)
		if err != nil {
			return 0, fmt.Errorf("decoding resolved steam id %q: %w", body.Response.SteamID, err)
		}
		return id, nil
	case successNoMatch:
		return 0, ErrNoMatch
	default:
		c.logger.Warn("unexpected steam api response",
			"success", body.Response.Success,
			"message", body.Response.Message,
		)
		return 0, fmt.Errorf("steam api error %d: %s", body.Response.Success, body.Response.Message)
	}
}
