package menu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ai-waiter-service/internal/pkg/logger"
)

// Fetcher pulls the tenant's menu from the storefront catalog API and
// refreshes a Catalog. The catalog service itself is an external
// collaborator; we only consume its read contract.
type Fetcher struct {
	baseURL string
	tenant  string
	branch  string
	client  *http.Client
	log     logger.ILogger
}

func NewFetcher(baseURL, tenant, branch string, log logger.ILogger) *Fetcher {
	return &Fetcher{
		baseURL: baseURL,
		tenant:  tenant,
		branch:  branch,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Fetch returns the current menu items for the configured tenant/branch.
func (f *Fetcher) Fetch(ctx context.Context) ([]Item, error) {
	u := fmt.Sprintf("%s/api/menu?tenant=%s&branch=%s",
		f.baseURL, url.QueryEscape(f.tenant), url.QueryEscape(f.branch))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build menu request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("menu fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("menu fetch returned status %d", resp.StatusCode)
	}

	var payload struct {
		Items []Item `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode menu payload: %w", err)
	}

	return payload.Items, nil
}

// Refresh fetches the menu and swaps it into the catalog. Errors leave the
// previous index in place.
func (f *Fetcher) Refresh(ctx context.Context, catalog *Catalog) error {
	items, err := f.Fetch(ctx)
	if err != nil {
		return err
	}
	catalog.Swap(items)
	f.log.Info("Menu", "Catalog refreshed", map[string]interface{}{
		"tenant": f.tenant,
		"items":  len(items),
	})
	return nil
}
