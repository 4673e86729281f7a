package registryclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mcpctl/orchestrator/internal/logger"
	"github.com/mcpctl/orchestrator/internal/orcherr"
)

// TTL is how long a fetched catalog is considered fresh.
const TTL = 10 * time.Minute

const userAgent = "mcpctl-orchestrator/1"

// Client fetches the remote registry catalog and caches it in memory.
// Concurrent callers that both observe a stale cache are coalesced onto a
// single in-flight HTTP request via singleflight.
type Client struct {
	url        string
	httpClient *http.Client
	group      singleflight.Group

	mu        sync.Mutex
	cached    *Catalog
	fetchedAt time.Time
}

// New builds a Client for the given registry URL. httpClient may be nil,
// in which case a client with a 30s timeout is used; net/http's default
// transport transparently requests and decodes gzip, satisfying the
// "must tolerate gzip" requirement without extra code.
func New(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{url: url, httpClient: httpClient}
}

// GetRegistry returns the cached catalog if it is still within TTL,
// otherwise fetches a fresh copy. On fetch failure, a still-present stale
// cache is returned instead of the error; the error only surfaces when
// there is nothing cached yet.
func (c *Client) GetRegistry(ctx context.Context) (*Catalog, error) {
	c.mu.Lock()
	if c.cached != nil && time.Since(c.fetchedAt) < TTL {
		cached := c.cached
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("registry", func() (any, error) {
		c.mu.Lock()
		if c.cached != nil && time.Since(c.fetchedAt) < TTL {
			cached := c.cached
			c.mu.Unlock()
			return cached, nil
		}
		c.mu.Unlock()

		fresh, ferr := c.fetch(ctx)
		if ferr != nil {
			c.mu.Lock()
			stale := c.cached
			c.mu.Unlock()
			if stale != nil {
				return stale, nil
			}
			return nil, ferr
		}

		c.mu.Lock()
		c.cached = fresh
		c.fetchedAt = time.Now()
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Catalog), nil
}

// GetToolByID returns one tool from the (possibly cached) registry.
func (c *Client) GetToolByID(ctx context.Context, id string) (RegistryTool, error) {
	reg, err := c.GetRegistry(ctx)
	if err != nil {
		return RegistryTool{}, err
	}
	for _, t := range reg.Tools {
		if t.ID == id {
			return t, nil
		}
	}
	return RegistryTool{}, orcherr.New(orcherr.NotFound, fmt.Sprintf("registry tool %q not found", id))
}

func (c *Client) fetch(ctx context.Context) (*Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.RegistryError, err, "building registry request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.RegistryError, err, "fetching registry from %s", c.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, orcherr.New(orcherr.RegistryError, fmt.Sprintf("registry %s returned status %d", c.url, resp.StatusCode))
	}

	var cat Catalog
	if err := json.NewDecoder(resp.Body).Decode(&cat); err != nil {
		return nil, orcherr.Wrap(orcherr.RegistryError, err, "parsing registry response")
	}

	valid := cat.Tools[:0]
	for _, tool := range cat.Tools {
		if result := Validate(tool); !result.Valid {
			logger.AddLog("WARN", fmt.Sprintf("registry entry %q failed validation: %v", tool.ID, result.Errors))
			continue
		}
		valid = append(valid, tool)
	}
	cat.Tools = valid
	return &cat, nil
}
