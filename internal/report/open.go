package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
)

// WriteFile creates path (and its directory) and fills it with write.
func WriteFile(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	log.Info().Str("path", path).Msg("Report written")
	return nil
}

// Open shows a written report with the system's default application.
func Open(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	browser.Stdout = os.Stderr
	if err := browser.OpenFile(abs); err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	return nil
}
