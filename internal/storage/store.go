// Package storage owns the durable state of a single report directory:
// the current outline file, the append-only audit log, timestamped backups,
// and the advisory lock serializing mutations.
package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/briefkit/brief/internal/outline"
)

// File names inside one report directory.
const (
	OutlineFile = "outline.json"
	AuditFile   = "audit.jsonl"
	BackupsDir  = "backups"
	LockFile    = "report.lock"
)

// Distinguishable storage failure kinds.
var (
	// ErrOutlineNotFound means the report has no outline file at all.
	ErrOutlineNotFound = errors.New("outline file not found")
	// ErrOutlineCorrupted means the outline file is not parseable JSON.
	ErrOutlineCorrupted = errors.New("outline file corrupted")
	// ErrOutlineInvalid means the outline parsed but fails model validation.
	ErrOutlineInvalid = errors.New("outline file invalid")
	// ErrLockHeld means another process holds the report lock.
	ErrLockHeld = errors.New("report lock held")
	// ErrBackupMissing means a recorded backup file is gone from disk.
	ErrBackupMissing = errors.New("backup file missing")
	// ErrBackupCorrupted means a backup file exists but cannot be parsed.
	ErrBackupCorrupted = errors.New("backup file corrupted")
)

// Store manages one report directory.
type Store struct {
	dir      string
	lockWait time.Duration
}

// New creates a store for the given report directory. lockWait bounds how
// long Lock waits before failing with ErrLockHeld.
func New(dir string, lockWait time.Duration) *Store {
	return &Store{dir: dir, lockWait: lockWait}
}

// Dir returns the report directory path.
func (s *Store) Dir() string { return s.dir }

// Init creates the report directory and its backups subdirectory.
func (s *Store) Init() error {
	if err := os.MkdirAll(filepath.Join(s.dir, BackupsDir), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	return nil
}

// Exists reports whether the report directory holds an outline file.
func (s *Store) Exists() bool {
	_, err := os.Stat(filepath.Join(s.dir, OutlineFile))
	return err == nil
}

// LoadOutline reads and validates the current outline. The error wraps
// ErrOutlineNotFound, ErrOutlineCorrupted, or ErrOutlineInvalid so callers
// can tell "report does not exist" apart from "report is damaged".
func (s *Store) LoadOutline() (outline.Outline, error) {
	path := filepath.Join(s.dir, OutlineFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return outline.Outline{}, fmt.Errorf("%s: %w", path, ErrOutlineNotFound)
		}
		return outline.Outline{}, fmt.Errorf("read outline: %w", err)
	}
	var o outline.Outline
	if err := json.Unmarshal(data, &o); err != nil {
		return outline.Outline{}, fmt.Errorf("%s: %v: %w", path, err, ErrOutlineCorrupted)
	}
	if err := o.Validate(); err != nil {
		return outline.Outline{}, fmt.Errorf("%s: %v: %w", path, err, ErrOutlineInvalid)
	}
	return o, nil
}

// SaveOutline persists a new outline version. If a previous outline exists
// it is first copied into backups/ under a name embedding the report id,
// the action type, and a microsecond-precision timestamp, so two mutations
// within the same second never collide. The outline itself is written to a
// temp file and renamed into place, so a concurrent reader never observes
// a partial write. Returns the backup filename, empty on first save.
func (s *Store) SaveOutline(o *outline.Outline, actionType string) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, OutlineFile)

	backupName := ""
	if prev, err := os.ReadFile(path); err == nil {
		backupName = backupFileName(o.ReportID, actionType, time.Now().UTC())
		backupPath := filepath.Join(s.dir, BackupsDir, backupName)
		if err := os.WriteFile(backupPath, prev, 0o644); err != nil {
			return "", fmt.Errorf("write backup: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read previous outline: %w", err)
	}

	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal outline: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, OutlineFile+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp outline: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write temp outline: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("sync temp outline: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close temp outline: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename outline into place: %w", err)
	}
	return backupName, nil
}

// backupFileName builds <report_id>_<action>_<YYYYMMDD_HHMMSS_ffffff>.json.bak.
func backupFileName(reportID, actionType string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%06d.json.bak",
		reportID, actionType, t.Format("20060102_150405"), t.Nanosecond()/1000)
}

// AppendAuditEvent appends one JSON line to the audit log. Prior lines are
// never rewritten.
func (s *Store) AppendAuditEvent(ev outline.AuditEvent) error {
	if err := s.Init(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(s.dir, AuditFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// LoadAuditEvents returns all audit events in append order. A corrupted
// line is skipped with a warning rather than making history unrecoverable.
func (s *Store) LoadAuditEvents() ([]outline.AuditEvent, error) {
	path := filepath.Join(s.dir, AuditFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []outline.AuditEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev outline.AuditEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			log.Warn().Str("file", path).Int("line", lineNo).Err(err).Msg("skipping unparsable audit line")
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return events, nil
}

// FindAuditEvent returns the event with the given action id, or false.
func (s *Store) FindAuditEvent(actionID string) (outline.AuditEvent, bool, error) {
	events, err := s.LoadAuditEvents()
	if err != nil {
		return outline.AuditEvent{}, false, err
	}
	for _, ev := range events {
		if ev.ActionID == actionID {
			return ev, true, nil
		}
	}
	return outline.AuditEvent{}, false, nil
}

// DetectManualEdits reports whether the on-disk outline exists but no
// longer parses or validates, which signals an edit from outside brief.
func (s *Store) DetectManualEdits() bool {
	_, err := s.LoadOutline()
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrOutlineNotFound)
}

// ReadBackup loads and validates one backup file by name.
func (s *Store) ReadBackup(name string) (outline.Outline, error) {
	path := filepath.Join(s.dir, BackupsDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return outline.Outline{}, fmt.Errorf("%s: %w", name, ErrBackupMissing)
		}
		return outline.Outline{}, fmt.Errorf("read backup: %w", err)
	}
	var o outline.Outline
	if err := json.Unmarshal(data, &o); err != nil {
		return outline.Outline{}, fmt.Errorf("%s: %v: %w", name, err, ErrBackupCorrupted)
	}
	if err := o.Validate(); err != nil {
		return outline.Outline{}, fmt.Errorf("%s: %v: %w", name, err, ErrBackupCorrupted)
	}
	return o, nil
}

// ListBackups returns backup filenames sorted oldest first by mtime.
func (s *Store) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, BackupsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	type item struct {
		name string
		mod  time.Time
	}
	items := make([]item, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, item{name: e.Name(), mod: info.ModTime()})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].mod.Equal(items[j].mod) {
			return items[i].name < items[j].name
		}
		return items[i].mod.Before(items[j].mod)
	})
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.name
	}
	return names, nil
}
