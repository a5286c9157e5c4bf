package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"eng-metrics/internal/busday"
	"eng-metrics/internal/jira"
	"eng-metrics/internal/ticket"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// NamedQuery is a JQL query refreshed on a schedule and stored under Label.
type NamedQuery struct {
	Label string
	JQL   string
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Jira     jira.Config
	DataPath string
	LogDir   string
	CacheDir string

	BeginStatus      string
	ResolutionStatus string
	Unit             busday.Unit

	HTTPAddr       string
	RefreshCron    string
	RefreshQueries []NamedQuery

	EnableMermaidCharts bool
}

// TicketOptions returns the metric options derived from the configuration.
func (c *AppConfig) TicketOptions() ticket.Options {
	return ticket.Options{
		Unit:             c.Unit,
		BeginStatus:      c.BeginStatus,
		ResolutionStatus: c.ResolutionStatus,
	}
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve Data Paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs"))
	cacheDir := filepath.Join(dataPath, "cache")

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", cacheDir).Msg("Failed to create cache directory")
	}

	unit, err := busday.ParseUnit(getEnv("DURATION_UNIT", string(busday.Hours)))
	if err != nil {
		return nil, fmt.Errorf("DURATION_UNIT: %w", err)
	}
	if unit == busday.Composite {
		return nil, fmt.Errorf("DURATION_UNIT: composite cannot be stored as a metric")
	}

	queries, err := parseQueries(getEnv("REFRESH_QUERIES", ""))
	if err != nil {
		return nil, fmt.Errorf("REFRESH_QUERIES: %w", err)
	}

	cfg := &AppConfig{
		Jira: jira.Config{
			BaseURL:      getEnv("JIRA_URL", ""),
			APIVersion:   getEnv("JIRA_API_VERSION", "2"),
			Token:        getEnv("JIRA_TOKEN", ""),
			Username:     getEnv("JIRA_USERNAME", ""),
			APIToken:     getEnv("JIRA_API_TOKEN", ""),
			XsrfToken:    getEnv("JIRA_XSRF_TOKEN", ""),
			SessionID:    getEnv("JIRA_SESSION_ID", ""),
			RememberMe:   getEnv("JIRA_REMEMBERME_COOKIE", ""),
			RequestDelay: time.Duration(getEnvInt("JIRA_REQUEST_DELAY_SECONDS", 2)) * time.Second,
		},
		DataPath:            dataPath,
		LogDir:              logDir,
		CacheDir:            cacheDir,
		BeginStatus:         getEnv("BEGIN_STATUS", ticket.DefaultBeginStatus),
		ResolutionStatus:    getEnv("RESOLUTION_STATUS", ticket.DefaultResolutionStatus),
		Unit:                unit,
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		RefreshCron:         getEnv("REFRESH_CRON", "0 6 * * 1-5"),
		RefreshQueries:      queries,
		EnableMermaidCharts: getEnvBool("ENABLE_MERMAID_CHARTS", false),
	}

	return cfg, nil
}

// parseQueries reads "label=jql;label=jql". The JQL may itself contain '='.
func parseQueries(s string) ([]NamedQuery, error) {
	var out []NamedQuery
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, jql, ok := strings.Cut(part, "=")
		label, jql = strings.TrimSpace(label), strings.TrimSpace(jql)
		if !ok || label == "" || jql == "" {
			return nil, fmt.Errorf("invalid entry %q, want label=jql", part)
		}
		out = append(out, NamedQuery{Label: label, JQL: jql})
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric setting")
	}
	return fallback
}
