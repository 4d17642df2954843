package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/youssefsiam38/arenawatch/types"
)

// Fetcher loads agent details for the cache.
type Fetcher interface {
	Agent(ctx context.Context, id types.AgentID) (*types.Agent, error)
}

// APIClient calls the platform's agent endpoints.
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a client for the platform at baseURL. A nil client
// uses http.DefaultClient.
func NewAPIClient(baseURL string, client *http.Client) *APIClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Agent fetches one agent.
func (a *APIClient) Agent(ctx context.Context, id types.AgentID) (*types.Agent, error) {
	var agent types.Agent
	if err := a.get(ctx, "/api/agent?agent="+url.QueryEscape(id.String()), &agent); err != nil {
		return nil, fmt.Errorf("agent %s: %w", id, err)
	}
	return &agent, nil
}

// Leaderboard fetches the ordered agent leaderboard.
func (a *APIClient) Leaderboard(ctx context.Context) ([]types.LeaderboardEntry, error) {
	var entries []types.LeaderboardEntry
	if err := a.get(ctx, "/api/agent_leaderboard", &entries); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return entries, nil
}

func (a *APIClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
