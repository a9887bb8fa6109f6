package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RetentionPolicy controls backup pruning. Zero values keep everything.
type RetentionPolicy struct {
	KeepLast int
	KeepDays int
}

// PruneResult summarizes a prune pass.
type PruneResult struct {
	Considered int
	Kept       int
	Deleted    int
	Skipped    int
}

// PruneBackups deletes old backups per the policy. Pruning never runs
// implicitly; operators invoke it. The report's earliest backup is always
// kept so the original state stays recoverable.
func (s *Store) PruneBackups(policy RetentionPolicy, dryRun bool) (PruneResult, error) {
	if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
		return PruneResult{}, nil
	}
	names, err := s.ListBackups()
	if err != nil {
		return PruneResult{}, err
	}
	res := PruneResult{Considered: len(names)}
	if len(names) == 0 {
		return res, nil
	}

	cutoff := time.Time{}
	if policy.KeepDays > 0 {
		cutoff = time.Now().UTC().Add(-time.Duration(policy.KeepDays) * 24 * time.Hour)
	}

	backupsDir := filepath.Join(s.dir, BackupsDir)
	for idx, name := range names {
		keep := false
		if idx == 0 {
			// Earliest backup is exempt.
			keep = true
		}
		if !keep && policy.KeepLast > 0 && idx >= len(names)-policy.KeepLast {
			keep = true
		}
		if !keep && policy.KeepDays > 0 {
			info, err := os.Stat(filepath.Join(backupsDir, name))
			if err != nil {
				res.Skipped++
				continue
			}
			if info.ModTime().After(cutoff) {
				keep = true
			}
		}
		if keep {
			res.Kept++
			continue
		}
		if dryRun {
			res.Deleted++
			continue
		}
		if err := os.Remove(filepath.Join(backupsDir, name)); err != nil && !os.IsNotExist(err) {
			return res, fmt.Errorf("remove backup %s: %w", name, err)
		}
		res.Deleted++
	}
	return res, nil
}
