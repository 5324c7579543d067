// Package dataapi is the HTTP client for the external campaign data API.
// The authority uses it for two best-effort operations: membership lookup
// when a GM adds a character-backed entity, and character snapshot upserts
// at encounter end or on death.
package dataapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// requestTimeout keeps external calls from stalling combat progression.
const requestTimeout = 5 * time.Second

// Client talks to the campaign data API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a data API client. An empty baseURL yields a disabled client
// whose calls fail fast; callers treat those failures as warnings.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Enabled reports whether a base URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// CharacterSnapshot is the upsert payload for a characters row.
type CharacterSnapshot struct {
	ID            string         `json:"id"`
	Wounds        map[string]int `json:"wounds"`
	EnergyCurrent int            `json:"energy_current"`
	IsAlive       *bool          `json:"is_alive,omitempty"`
	DeathTime     *time.Time     `json:"death_timestamp,omitempty"`
}

type membershipResponse struct {
	PlayerUserID string `json:"playerUserId"`
}

// LookupMembership resolves the player owning a character in a campaign.
func (c *Client) LookupMembership(ctx context.Context, campaignID, characterID string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("data api is not configured")
	}
	endpoint := fmt.Sprintf(
		"%s/campaigns/%s/characters/%s/membership",
		c.baseURL,
		url.PathEscape(campaignID),
		url.PathEscape(characterID),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build membership request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("membership lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("membership lookup: unexpected status %d", resp.StatusCode)
	}
	var body membershipResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode membership response: %w", err)
	}
	if strings.TrimSpace(body.PlayerUserID) == "" {
		return "", fmt.Errorf("membership lookup: empty player id")
	}
	return body.PlayerUserID, nil
}

// UpsertCharacterSnapshot writes a character's post-combat state.
func (c *Client) UpsertCharacterSnapshot(ctx context.Context, snapshot CharacterSnapshot) error {
	if !c.Enabled() {
		return fmt.Errorf("data api is not configured")
	}
	if strings.TrimSpace(snapshot.ID) == "" {
		return fmt.Errorf("character id is required")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	endpoint := fmt.Sprintf("%s/characters/%s", c.baseURL, url.PathEscape(snapshot.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build snapshot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("snapshot upsert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("snapshot upsert: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
