package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"eng-metrics/internal/busday"
)

func TestLoad_DotEnvQuoting(t *testing.T) {
	dir := t.TempDir()
	content := "JIRA_XSRF_TOKEN='value with \"double quotes\"'\nJIRA_REQUEST_DELAY_SECONDS=5\nDURATION_UNIT=days\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("DATA_PATH", dir)
	// Values loaded by godotenv land in the process environment; register
	// them with t.Setenv so they are restored afterwards.
	for _, k := range []string{"JIRA_XSRF_TOKEN", "JIRA_REQUEST_DELAY_SECONDS", "DURATION_UNIT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if want := `value with "double quotes"`; cfg.Jira.XsrfToken != want {
		t.Errorf("XsrfToken = %q, want %q", cfg.Jira.XsrfToken, want)
	}
	if cfg.Jira.RequestDelay != 5*time.Second {
		t.Errorf("RequestDelay = %v, want 5s", cfg.Jira.RequestDelay)
	}
	if cfg.Unit != busday.Days {
		t.Errorf("Unit = %q, want days", cfg.Unit)
	}
	if cfg.CacheDir != filepath.Join(dir, "cache") {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if _, err := os.Stat(cfg.CacheDir); err != nil {
		t.Errorf("cache directory not created: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATA_PATH", t.TempDir())
	for _, k := range []string{"BEGIN_STATUS", "RESOLUTION_STATUS", "DURATION_UNIT", "REFRESH_QUERIES"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	opts := cfg.TicketOptions()
	if opts.BeginStatus != "In Progress" || opts.ResolutionStatus != "Done" || opts.Unit != busday.Hours {
		t.Errorf("TicketOptions() = %+v", opts)
	}
	if len(cfg.RefreshQueries) != 0 {
		t.Errorf("RefreshQueries = %v, want none", cfg.RefreshQueries)
	}
}

func TestLoad_RejectsCompositeUnit(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("DURATION_UNIT", "composite")

	if _, err := Load(); err == nil {
		t.Error("Load() with composite unit succeeded")
	}
}

func TestParseQueries(t *testing.T) {
	tests := []struct {
		in      string
		want    []NamedQuery
		wantErr bool
	}{
		{"", nil, false},
		{"bugs=type = Bug", []NamedQuery{{"bugs", "type = Bug"}}, false},
		{" a = project = A ; b=project = B;", []NamedQuery{{"a", "project = A"}, {"b", "project = B"}}, false},
		{"noequals", nil, true},
		{"=project = A", nil, true},
	}

	for _, tt := range tests {
		got, err := parseQueries(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseQueries(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("parseQueries(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseQueries(%q)[%d] = %v, want %v", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CFG_TEST_BOOL", "true")
	t.Setenv("CFG_TEST_INT", "oops")

	if !getEnvBool("CFG_TEST_BOOL", false) {
		t.Error("getEnvBool() = false, want true")
	}
	if got := getEnvInt("CFG_TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt() = %d, want fallback 7", got)
	}
	if got := getEnv("CFG_TEST_MISSING", "x"); got != "x" {
		t.Errorf("getEnv() = %q, want x", got)
	}
}
