// Package artifact manages the run directory and the files written into it.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wham/github-discussions/internal/github"
	"github.com/wham/github-discussions/internal/serialize"
)

const (
	// AggregateName is the file holding every serialized discussion of a run.
	AggregateName = "all_discussions_llm_ready.md"
	// LogName is the debug log written next to the artifacts.
	LogName = "run.log"

	runDirLayout = "20060102_150405"
)

// Store reads and writes the artifacts of one run directory.
type Store struct {
	dir string
}

// NewRunDir creates a fresh timestamped directory under parent.
func NewRunDir(parent string, now time.Time) (*Store, error) {
	dir := filepath.Join(parent, now.Format(runDirLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Open reuses an existing run directory so an interrupted run can resume.
func Open(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("failed to open run directory: %s is not a directory", dir)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the run directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) DetailPath(number int) string {
	return filepath.Join(s.dir, fmt.Sprintf("discussion_%d.json", number))
}

func (s *Store) TextPath(number int) string {
	return filepath.Join(s.dir, fmt.Sprintf("discussion_%d.md", number))
}

func (s *Store) AggregatePath() string {
	return filepath.Join(s.dir, AggregateName)
}

func (s *Store) LogPath() string {
	return filepath.Join(s.dir, LogName)
}

// HasDetail reports whether the detail artifact of number is on disk.
func (s *Store) HasDetail(number int) bool {
	return exists(s.DetailPath(number))
}

// HasText reports whether the serialized artifact of number is on disk.
func (s *Store) HasText(number int) bool {
	return exists(s.TextPath(number))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteDetail stores d as indented JSON.
func (s *Store) WriteDetail(d *github.DiscussionDetail) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode discussion #%d: %w", d.Number, err)
	}
	return writeFile(s.DetailPath(d.Number), data)
}

// ReadDetail loads a detail artifact written by WriteDetail.
func (s *Store) ReadDetail(number int) (*github.DiscussionDetail, error) {
	data, err := os.ReadFile(s.DetailPath(number))
	if err != nil {
		return nil, fmt.Errorf("failed to read discussion #%d: %w", number, err)
	}
	var d github.DiscussionDetail
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode discussion #%d: %w", number, err)
	}
	if d.Number != number {
		return nil, fmt.Errorf("failed to decode discussion #%d: artifact holds #%d", number, d.Number)
	}
	return &d, nil
}

// WriteText stores the serialized form of discussion number.
func (s *Store) WriteText(number int, text string) error {
	return writeFile(s.TextPath(number), []byte(text))
}

// WriteAggregate stores the aggregate of the run.
func (s *Store) WriteAggregate(text string) error {
	return writeFile(s.AggregatePath(), []byte(text))
}

// Entries loads every text artifact of the directory for aggregation,
// including those written by earlier invocations on a resumed run. The
// creation time comes from the matching detail artifact; texts without a
// readable detail are left out.
func (s *Store) Entries() ([]serialize.Entry, error) {
	names, err := filepath.Glob(filepath.Join(s.dir, "discussion_*.md"))
	if err != nil {
		return nil, fmt.Errorf("failed to list text artifacts: %w", err)
	}

	var numbers []int
	for _, name := range names {
		base := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(name), "discussion_"), ".md")
		if n, err := strconv.Atoi(base); err == nil && n > 0 {
			numbers = append(numbers, n)
		}
	}
	sort.Ints(numbers)

	entries := make([]serialize.Entry, 0, len(numbers))
	for _, n := range numbers {
		text, err := os.ReadFile(s.TextPath(n))
		if err != nil {
			return nil, fmt.Errorf("failed to read text of discussion #%d: %w", n, err)
		}
		d, err := s.ReadDetail(n)
		if err != nil {
			slog.Warn("Leaving discussion out of the aggregate", "number", n, "error", err)
			continue
		}
		entries = append(entries, serialize.Entry{CreatedAt: d.CreatedAt, Text: string(text)})
	}
	return entries, nil
}

// writeFile writes through a temporary file so a crash never leaves a
// truncated artifact that would later be mistaken for a finished one.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, 0o644)
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		if removeErr := os.Remove(tmpName); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			err = errors.Join(err, removeErr)
		}
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
