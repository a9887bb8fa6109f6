package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/briefkit/brief/internal/apply"
	"github.com/briefkit/brief/internal/changes"
	"github.com/briefkit/brief/internal/outline"
)

// EvolveOptions controls one evolve call.
type EvolveOptions struct {
	// ExpectedVersion, when non-zero, rejects the batch unless it matches
	// the loaded outline's version (optimistic concurrency control).
	ExpectedVersion int
	// AllowUncited disables citation enforcement for this batch.
	AllowUncited bool
	// DryRun validates and computes the result without persisting anything.
	DryRun bool
	Actor  string
}

// EvolveResult summarizes a successful (or dry-run) evolve.
type EvolveResult struct {
	Outline  outline.Outline
	Summary  apply.Summary
	Warnings []string
	ActionID string
	DryRun   bool
}

// Evolve applies a batch of proposed changes to a report. The sequence is
// fixed: resolve, lock, load, version check, validate (schema then
// semantics, each accumulating every error), apply, backup-and-save, audit,
// index update. Either all durable effects happen or none do.
func (s *Service) Evolve(ctx context.Context, sel string, raw map[string]any, opts EvolveOptions) (EvolveResult, error) {
	id, err := s.Resolve(sel)
	if err != nil {
		return EvolveResult{}, err
	}
	st := s.store(id)
	lock, err := st.Lock(ctx)
	if err != nil {
		return EvolveResult{}, err
	}
	defer func() { _ = lock.Release() }()

	current, err := st.LoadOutline()
	if err != nil {
		return EvolveResult{}, err
	}
	if opts.ExpectedVersion != 0 && opts.ExpectedVersion != current.OutlineVersion {
		return EvolveResult{}, &VersionMismatchError{Expected: opts.ExpectedVersion, Actual: current.OutlineVersion}
	}

	cs, warnings, decodeErrs := changes.Decode(raw)
	if len(decodeErrs) > 0 {
		return EvolveResult{Warnings: warnings}, &ValidationFailedError{Errors: decodeErrs, Warnings: warnings}
	}
	if schemaErrs := changes.ValidateSchema(cs); len(schemaErrs) > 0 {
		return EvolveResult{Warnings: warnings}, &ValidationFailedError{Errors: schemaErrs, Warnings: warnings}
	}
	vopts := changes.Options{
		AllowUncited: opts.AllowUncited || !s.cfg.CitationsRequired(),
		Resolver:     s.resolver,
	}
	if semErrs := changes.ValidateSemantics(ctx, &current, cs, vopts); len(semErrs) > 0 {
		return EvolveResult{Warnings: warnings}, &ValidationFailedError{Errors: semErrs, Warnings: warnings}
	}

	// An empty batch is a legal discovery call: report the current state
	// without bumping the version, writing a backup, or touching the audit
	// log.
	if cs.Empty() {
		log.Debug().Str("report_id", id).Msg("empty change-set, nothing to apply")
		return EvolveResult{Outline: current, Warnings: warnings}, nil
	}

	next, sum := apply.Apply(&current, cs, time.Now())
	if opts.DryRun {
		return EvolveResult{Outline: next, Summary: sum, Warnings: warnings, DryRun: true}, nil
	}

	backup, err := st.SaveOutline(&next, outline.ActionEvolve)
	if err != nil {
		return EvolveResult{}, err
	}
	ev := outline.NewAuditEvent(id, actorOr(opts.Actor), outline.ActionEvolve, map[string]any{
		outline.PayloadBackupFile: backup,
		"summary":                 sum,
	})
	if err := st.AppendAuditEvent(ev); err != nil {
		return EvolveResult{}, err
	}
	if err := s.ix.Update(outline.EntryFor(&next, s.entryPath(id))); err != nil {
		return EvolveResult{}, err
	}
	log.Debug().Str("report_id", id).Int("version", next.OutlineVersion).Msg("report evolved")
	return EvolveResult{Outline: next, Summary: sum, Warnings: warnings, ActionID: ev.ActionID}, nil
}
