package login

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Setting is one KEY=value line of a .env file.
type Setting struct {
	Key   string
	Value string
}

// SaveEnv writes settings into the .env file at path. Existing lines for the
// same keys are replaced, a setting with an empty value removes its line, and
// every other line is kept as is. The file is written with mode 0600.
func SaveEnv(path string, settings ...Setting) error {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	var lines []string
	if len(existing) > 0 {
		lines = strings.Split(strings.TrimRight(string(existing), "\n"), "\n")
	}

	for _, s := range settings {
		line := s.Key + "=" + s.Value
		found := false
		kept := lines[:0:0]
		for _, l := range lines {
			if !strings.HasPrefix(strings.TrimSpace(l), s.Key+"=") {
				kept = append(kept, l)
				continue
			}
			if !found && s.Value != "" {
				kept = append(kept, line)
			}
			found = true
		}
		if !found && s.Value != "" {
			kept = append(kept, line)
		}
		lines = kept
	}

	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, 0o600)
}
