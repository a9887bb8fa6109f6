package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/briefkit/brief/internal/outline"
)

// Archive sets the report status to archived (or back to active). Like
// every mutation it produces a new outline version.
func (s *Service) Archive(ctx context.Context, sel string, archived bool, actor string) (outline.Outline, error) {
	status := outline.StatusArchived
	if !archived {
		status = outline.StatusActive
	}
	return s.mutateMetadata(ctx, sel, outline.ActionArchive, actorOr(actor),
		map[string]any{"status": status},
		func(o *outline.Outline) {
			o.Metadata[outline.MetaStatus] = status
		})
}

// Tag adds and removes tags on a report.
func (s *Service) Tag(ctx context.Context, sel string, add, remove []string, actor string) (outline.Outline, error) {
	if len(add) == 0 && len(remove) == 0 {
		return outline.Outline{}, fmt.Errorf("nothing to tag")
	}
	return s.mutateMetadata(ctx, sel, outline.ActionTag, actorOr(actor),
		map[string]any{"tags_added": add, "tags_removed": remove},
		func(o *outline.Outline) {
			drop := make(map[string]bool, len(remove))
			for _, t := range remove {
				drop[t] = true
			}
			var tags []string
			for _, t := range o.Tags() {
				if !drop[t] {
					tags = append(tags, t)
				}
			}
			for _, t := range add {
				present := false
				for _, have := range tags {
					if have == t {
						present = true
						break
					}
				}
				if !present {
					tags = append(tags, t)
				}
			}
			o.SetTags(tags)
		})
}

// mutateMetadata runs the common lock/load/mutate/save/audit/index cycle
// for status and tag bookkeeping.
func (s *Service) mutateMetadata(ctx context.Context, sel, actionType, actor string, payload map[string]any, mutate func(*outline.Outline)) (outline.Outline, error) {
	id, err := s.Resolve(sel)
	if err != nil {
		return outline.Outline{}, err
	}
	st := s.store(id)
	lock, err := st.Lock(ctx)
	if err != nil {
		return outline.Outline{}, err
	}
	defer func() { _ = lock.Release() }()

	current, err := st.LoadOutline()
	if err != nil {
		return outline.Outline{}, err
	}
	next := current.Clone()
	if next.Metadata == nil {
		next.Metadata = map[string]any{}
	}
	mutate(&next)
	next.OutlineVersion = current.OutlineVersion + 1
	next.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	backup, err := st.SaveOutline(&next, actionType)
	if err != nil {
		return outline.Outline{}, err
	}
	payload[outline.PayloadBackupFile] = backup
	if err := st.AppendAuditEvent(outline.NewAuditEvent(id, actor, actionType, payload)); err != nil {
		return outline.Outline{}, err
	}
	if err := s.ix.Update(outline.EntryFor(&next, s.entryPath(id))); err != nil {
		return outline.Outline{}, err
	}
	return next, nil
}

// Delete moves the report directory to the trash — never erases it — and
// removes the index entry. Returns the trash location for manual recovery.
func (s *Service) Delete(ctx context.Context, sel, actor string) (string, error) {
	id, err := s.Resolve(sel)
	if err != nil {
		return "", err
	}
	st := s.store(id)
	lock, err := st.Lock(ctx)
	if err != nil {
		return "", err
	}

	if _, err := st.LoadOutline(); err != nil {
		_ = lock.Release()
		return "", err
	}
	trashPath := filepath.Join(s.cfg.TrashDir(), id)
	if _, err := os.Stat(trashPath); err == nil {
		trashPath = fmt.Sprintf("%s_%d", trashPath, time.Now().UTC().UnixMicro())
	}
	// The delete event travels with the directory into the trash.
	ev := outline.NewAuditEvent(id, actorOr(actor), outline.ActionDelete, map[string]any{
		"trash_path": trashPath,
	})
	if err := st.AppendAuditEvent(ev); err != nil {
		_ = lock.Release()
		return "", err
	}

	// The lock file lives inside the directory being moved, so release
	// before the rename.
	if err := lock.Release(); err != nil {
		return "", fmt.Errorf("release lock: %w", err)
	}
	if err := os.MkdirAll(s.cfg.TrashDir(), 0o755); err != nil {
		return "", fmt.Errorf("create trash dir: %w", err)
	}
	if err := os.Rename(st.Dir(), trashPath); err != nil {
		return "", fmt.Errorf("move report to trash: %w", err)
	}
	if err := s.ix.Remove(id); err != nil {
		return "", err
	}
	log.Info().Str("report_id", id).Str("trash_path", trashPath).Msg("report deleted")
	return trashPath, nil
}
