package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/suufi/mit-lobby7-verification/internal/config"
	"github.com/suufi/mit-lobby7-verification/internal/domain"
)

// Client queries the MIT People API by kerb. Every Lookup is a fresh network
// read; affiliation data is never cached or persisted.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		baseURL:      cfg.PeopleAPIURL,
		clientID:     cfg.PeopleAPIClientID,
		clientSecret: cfg.PeopleAPIClientSecret,
	}
}

// Lookup fetches the directory record for a kerb. A 400 or 404 from the API
// means the kerb does not exist and maps to domain.ErrNotFound; any other
// failure wraps domain.ErrLookupFailed.
func (c *Client) Lookup(ctx context.Context, kerb string) (*domain.PersonRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(kerb), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("client_id", c.clientID)
	req.Header.Set("client_secret", c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("people api request: %v: %w", err, domain.ErrLookupFailed)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("kerb %q not in directory: %w", kerb, domain.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("people api status %d: %w", resp.StatusCode, domain.ErrLookupFailed)
	}

	var payload struct {
		Item *domain.PersonRecord `json:"item"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode people api response: %v: %w", err, domain.ErrLookupFailed)
	}
	if payload.Item == nil {
		return nil, fmt.Errorf("kerb %q not in directory: %w", kerb, domain.ErrNotFound)
	}
	return payload.Item, nil
}
