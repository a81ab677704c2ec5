package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/ragcorpus/ragd/internal/apperr"
)

// line is one physical line of the options file: either a value line
// (key set, tracked for rewriting) or a passthrough line (comment,
// blank, or anything the tokenizer didn't recognize as KEY=VALUE).
type line struct {
	key        string
	raw        string
	isValue    bool
}

// Store owns the on-disk options file and hands out atomically-replaced
// Snapshots. Reload re-parses the file; Update rewrites it, preserving
// line order and comments and appending any previously unknown key at
// the end — per spec.md §6 and §3's "replaced atomically on reload"
// invariant.
type Store struct {
	path string

	mu    sync.RWMutex
	snap  *Snapshot
	lines []line
}

// Open loads the options file at path and returns a Store holding its
// first Snapshot. A missing file is treated as empty (no lines, no
// values) so a fresh deployment can boot and then be configured via
// PUT /config.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.reloadLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the Store's current Snapshot. Safe for concurrent use.
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Reload re-reads the options file from disk and swaps in a new
// Snapshot. Requests already in flight keep using the Snapshot they
// started with; only requests beginning after Reload returns observe
// the new values.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked()
}

func (s *Store) reloadLocked() error {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		s.lines = nil
		s.snap = newSnapshot(map[string]string{})
		return nil
	}
	if err != nil {
		return apperr.Wrap(apperr.KindConfigInvalid, "open options file", err)
	}
	defer f.Close()

	var parsed []line
	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			parsed = append(parsed, line{raw: raw})
			continue
		}
		kv, err := godotenv.Unmarshal(raw)
		if err != nil || len(kv) == 0 {
			parsed = append(parsed, line{raw: raw})
			continue
		}
		for k, v := range kv {
			values[k] = v
			parsed = append(parsed, line{key: k, raw: raw, isValue: true})
		}
	}
	if err := scanner.Err(); err != nil {
		return apperr.Wrap(apperr.KindConfigInvalid, "scan options file", err)
	}

	s.lines = parsed
	s.snap = newSnapshot(values)
	return nil
}

// Update merges updates into the options file and returns the set of
// keys whose value actually changed. Existing line order and comments
// are preserved; keys not already present are appended at the end, in
// Go's map iteration order over updates, so the relative order of
// several appended keys is not deterministic.
func (s *Store) Update(updates map[string]string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := make([]string, 0, len(updates))
	seen := make(map[string]bool, len(updates))

	newLines := make([]line, len(s.lines))
	copy(newLines, s.lines)

	for i, ln := range newLines {
		if !ln.isValue {
			continue
		}
		newVal, ok := updates[ln.key]
		if !ok {
			continue
		}
		seen[ln.key] = true
		if s.snap.values[ln.key] == newVal {
			continue
		}
		changed = append(changed, ln.key)
		newLines[i] = line{key: ln.key, raw: formatKV(ln.key, newVal), isValue: true}
	}

	for k, v := range updates {
		if seen[k] {
			continue
		}
		changed = append(changed, k)
		newLines = append(newLines, line{key: k, raw: formatKV(k, v), isValue: true})
	}

	if err := s.writeLocked(newLines); err != nil {
		return nil, err
	}

	values := make(map[string]string, len(s.snap.values))
	for k, v := range s.snap.values {
		values[k] = v
	}
	for k, v := range updates {
		values[k] = v
	}

	s.lines = newLines
	s.snap = newSnapshot(values)
	return changed, nil
}

func (s *Store) writeLocked(lines []line) error {
	f, err := os.Create(s.path)
	if err != nil {
		return apperr.Wrap(apperr.KindConfigInvalid, "write options file", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, ln := range lines {
		if _, err := fmt.Fprintln(w, ln.raw); err != nil {
			return apperr.Wrap(apperr.KindConfigInvalid, "write options file", err)
		}
	}
	return w.Flush()
}

func formatKV(key, value string) string {
	if strings.ContainsAny(value, " #\"'") {
		return fmt.Sprintf("%s=%q", key, value)
	}
	return fmt.Sprintf("%s=%s", key, value)
}
