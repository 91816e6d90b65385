package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Errors
var (
	ErrProfileNotFound = errors.New("profile not found")
)

// Profile is the public part of a user account.
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Name returns the display name, falling back to the username.
func (p *Profile) Name() string {
	if strings.TrimSpace(p.DisplayName) != "" {
		return p.DisplayName
	}
	return p.Username
}

type profileResponse struct {
	Success bool     `json:"success"`
	Data    *Profile `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type cachedProfile struct {
	profile   *Profile
	expiresAt time.Time
}

// ProfileClient looks up user profiles over HTTP. Results are cached for
// cacheTTL and concurrent lookups of one id share a single request.
type ProfileClient struct {
	baseURL    string
	httpClient *http.Client
	cache      map[string]*cachedProfile
	cacheTTL   time.Duration
	mu         sync.RWMutex
	sf         singleflight.Group
	now        func() time.Time
}

// NewProfileClient creates a new user profile client.
func NewProfileClient(baseURL string, timeout, cacheTTL time.Duration) *ProfileClient {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &ProfileClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache:    make(map[string]*cachedProfile),
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// GetProfile returns the profile for userID.
func (c *ProfileClient) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if p := c.getFromCache(userID); p != nil {
		return p, nil
	}

	v, err, _ := c.sf.Do(userID, func() (interface{}, error) {
		p, err := c.fetch(ctx, userID)
		if err != nil {
			return nil, err
		}
		c.addToCache(userID, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	p, ok := v.(*Profile)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return p, nil
}

func (c *ProfileClient) fetch(ctx context.Context, userID string) (*Profile, error) {
	endpoint := fmt.Sprintf("%s/api/v1/users/%s", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrProfileNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile service returned status: %d", resp.StatusCode)
	}

	var body profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !body.Success || body.Data == nil {
		msg := "empty response"
		if body.Error != nil {
			msg = body.Error.Message
		}
		return nil, fmt.Errorf("profile service error: %s", msg)
	}
	return body.Data, nil
}

func (c *ProfileClient) getFromCache(userID string) *Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if cached, ok := c.cache[userID]; ok && c.now().Before(cached.expiresAt) {
		return cached.profile
	}
	return nil
}

func (c *ProfileClient) addToCache(userID string, p *Profile) {
	if c.cacheTTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[userID] = &cachedProfile{
		profile:   p,
		expiresAt: c.now().Add(c.cacheTTL),
	}
}
