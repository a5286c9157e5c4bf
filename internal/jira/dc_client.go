package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const searchFields = "summary,description,issuetype,status,resolution,resolutiondate,priority," +
	"labels,assignee,comment,fixVersions,parent,issuelinks,project,customfield_10001,created,updated"

type httpClient struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter

	// Session Cache
	cache      map[string]*cacheEntry
	cacheMutex sync.Mutex
}

type cacheEntry struct {
	Value       any
	Expiration  time.Time
	AccessCount int
	OriginalTTL time.Duration
}

func newHTTPClient(cfg Config) *httpClient {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	limit := rate.Inf
	if cfg.RequestDelay > 0 {
		limit = rate.Every(cfg.RequestDelay)
	}
	return &httpClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		cache:      make(map[string]*cacheEntry),
	}
}

func (c *httpClient) getFromCache(key string) (any, bool) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		log.Debug().Str("key", key).Msg("Cache miss")
		return nil, false
	}

	if time.Now().After(entry.Expiration) {
		delete(c.cache, key)
		return nil, false
	}
	log.Debug().Str("key", key).Msg("Cache hit")

	// Sliding window extension
	if entry.AccessCount < 6 {
		entry.Expiration = time.Now().Add(entry.OriginalTTL)
		entry.AccessCount++
		log.Trace().Str("key", key).Int("count", entry.AccessCount).Msg("Extended cache TTL")
	}

	return entry.Value, true
}

func (c *httpClient) addToCache(key string, value any, ttl time.Duration) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	c.cache[key] = &cacheEntry{
		Value:       value,
		Expiration:  time.Now().Add(ttl),
		OriginalTTL: ttl,
		AccessCount: 1,
	}
}

func (c *httpClient) authenticateRequest(req *http.Request) {
	// 1. Personal Access Token
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		return
	}

	// 2. Cloud API token
	if c.cfg.Username != "" && c.cfg.APIToken != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.APIToken)
		return
	}

	// 3. Fallback to session cookies
	cookies := []struct {
		name  string
		value string
	}{
		{"atlassian.xsrf.token", c.cfg.XsrfToken},
		{"JSESSIONID", c.cfg.SessionID},
		{"seraph.rememberme.cookie", c.cfg.RememberMe},
	}

	var cookiePairs []string
	for _, cookie := range cookies {
		if cookie.value != "" {
			// Built by hand: net/http drops cookie values containing double quotes.
			cookiePairs = append(cookiePairs, fmt.Sprintf("%s=%s", cookie.name, cookie.value))
		}
	}

	if len(cookiePairs) > 0 {
		req.Header.Set("Cookie", strings.Join(cookiePairs, "; "))
	}
}

// get performs an authenticated GET and decodes the JSON body into out.
// Search requests wait on the rate limiter; metadata requests do not.
func (c *httpClient) get(ctx context.Context, endpoint string, throttle bool, what string, out any) error {
	if throttle {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("throttling %s: %w", what, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	c.authenticateRequest(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w (%d). Please check your credentials", ErrUnauthorized, resp.StatusCode)
		case http.StatusTooManyRequests:
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				return fmt.Errorf("%w (429). Retry after %s seconds", ErrRateLimited, retryAfter)
			}
			return fmt.Errorf("%w (429)", ErrRateLimited)
		default:
			return fmt.Errorf("Jira API returned status %d for %s", resp.StatusCode, what)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", what, err)
	}
	return nil
}

func (c *httpClient) SearchIssues(ctx context.Context, jql string, startAt int, maxResults int) (*SearchResponse, error) {
	cacheKey := fmt.Sprintf("search:%s:%d:%d", jql, startAt, maxResults)
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.(*SearchResponse), nil
	}

	params := url.Values{}
	params.Set("jql", jql)
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("fields", searchFields)
	params.Set("expand", "changelog")

	searchURL := fmt.Sprintf("%s/rest/api/%s/search?%s", c.cfg.BaseURL, c.cfg.APIVersion, params.Encode())
	log.Info().Int("startAt", startAt).Msg("Requesting issues from Jira")
	log.Debug().Str("url", searchURL).Str("jql", jql).Msg("Jira search details")

	var result SearchResponse
	if err := c.get(ctx, searchURL, true, "search", &result); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, &result, 10*time.Minute)
	return &result, nil
}

func (c *httpClient) GetProject(ctx context.Context, key string) (*ProjectDTO, error) {
	cacheKey := "project:" + key
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.(*ProjectDTO), nil
	}

	projectURL := fmt.Sprintf("%s/rest/api/%s/project/%s", c.cfg.BaseURL, c.cfg.APIVersion, url.PathEscape(key))
	var project ProjectDTO
	if err := c.get(ctx, projectURL, false, "project "+key, &project); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, &project, 5*time.Minute)
	return &project, nil
}

// BrowseURL returns the permalink of an issue on the given server.
func BrowseURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/browse/" + key
}
