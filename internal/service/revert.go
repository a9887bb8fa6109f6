package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/briefkit/brief/internal/outline"
)

// Revert restores a report's outline content to the backup recorded by a
// past audit event. A fresh safety backup of the current state is taken
// first, so the revert is itself revertible, and the restored outline gets
// the next version number: revert moves content backward, never the
// version counter.
func (s *Service) Revert(ctx context.Context, sel, actionID, actor string) (outline.Outline, error) {
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
	ev, found, err := st.FindAuditEvent(actionID)
	if err != nil {
		return outline.Outline{}, err
	}
	if !found {
		return outline.Outline{}, fmt.Errorf("action %s: %w", actionID, ErrActionNotFound)
	}
	backupName := ev.BackupFile()
	if backupName == "" {
		return outline.Outline{}, fmt.Errorf("action %s (%s): %w", actionID, ev.ActionType, ErrNoBackup)
	}
	restored, err := st.ReadBackup(backupName)
	if err != nil {
		return outline.Outline{}, err
	}

	restored.OutlineVersion = current.OutlineVersion + 1
	restored.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	// SaveOutline snapshots the pre-revert state before writing, which is
	// exactly the safety backup the revert audit event must record.
	safetyBackup, err := st.SaveOutline(&restored, outline.ActionRevert)
	if err != nil {
		return outline.Outline{}, err
	}
	revertEv := outline.NewAuditEvent(id, actorOr(actor), outline.ActionRevert, map[string]any{
		outline.PayloadBackupFile: safetyBackup,
		"reverted_action":         actionID,
		"restored_backup":         backupName,
	})
	if err := st.AppendAuditEvent(revertEv); err != nil {
		return outline.Outline{}, err
	}
	if err := s.ix.Update(outline.EntryFor(&restored, s.entryPath(id))); err != nil {
		return outline.Outline{}, err
	}
	log.Info().Str("report_id", id).Str("action_id", actionID).Msg("report reverted")
	return restored, nil
}
