package jira

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("Jira authentication failed")
	ErrRateLimited  = errors.New("Jira rate limit exceeded")
)

// Client is the fetch layer used by ingestion. It only ever reads.
type Client interface {
	// SearchIssues runs a JQL search with the changelog expanded.
	SearchIssues(ctx context.Context, jql string, startAt int, maxResults int) (*SearchResponse, error)
	GetProject(ctx context.Context, key string) (*ProjectDTO, error)
}

// Config holds the authentication and connection settings for Jira.
type Config struct {
	BaseURL    string
	APIVersion string

	// Personal Access Token (Data Center) or API token with Username (Cloud)
	Token    string
	Username string
	APIToken string

	// Data Center Cookies
	XsrfToken  string
	SessionID  string
	RememberMe string

	// Minimum spacing between search requests. Metadata requests are not
	// throttled.
	RequestDelay time.Duration
	Timeout      time.Duration
}

// NewClient creates a new Jira client based on the provided configuration.
func NewClient(cfg Config) Client {
	return newHTTPClient(cfg)
}
