package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briefkit/brief/internal/changes"
	"github.com/briefkit/brief/internal/config"
	"github.com/briefkit/brief/internal/index"
	"github.com/briefkit/brief/internal/outline"
	"github.com/briefkit/brief/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.RootDir = filepath.Join(t.TempDir(), ".brief")
	cfg.LockWaitMS = 500
	ix, err := index.Load(cfg.IndexPath())
	require.NoError(t, err)
	return New(cfg, ix, nil)
}

// rawChanges round-trips a change-set through JSON so the service sees the
// same payload shape an external caller would submit.
func rawChanges(t *testing.T, cs changes.ChangeSet) map[string]any {
	t.Helper()
	data, err := json.Marshal(cs)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	return raw
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func citedInsight(summary string, importance int) changes.InsightSpec {
	return changes.InsightSpec{
		Summary:    summary,
		Importance: intPtr(importance),
		Citations:  []outline.DatasetSource{{ExecutionID: uuid.NewString()}},
	}
}

func TestCreateEvolveRevert_EndToEnd(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "March Sales", "monthly_sales", []string{"sales"}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, o.OutlineVersion)
	require.Len(t, o.Sections, 5)

	spec := citedInsight("revenue up 12% month over month", 8)
	spec.SectionIDs = []string{o.Sections[0].SectionID}
	res, err := svc.Evolve(ctx, o.ReportID, rawChanges(t, changes.ChangeSet{
		InsightsToAdd: []changes.InsightSpec{spec},
	}), EvolveOptions{ExpectedVersion: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Outline.OutlineVersion)
	require.Len(t, res.Outline.Insights, 1)
	assert.True(t, res.Outline.Sections[0].HasInsight(res.Outline.Insights[0].InsightID))
	require.NotEmpty(t, res.ActionID)

	// Reverting the evolve action restores the pre-evolve content while the
	// version keeps moving forward.
	reverted, err := svc.Revert(ctx, o.ReportID, res.ActionID, "")
	require.NoError(t, err)
	assert.Equal(t, 3, reverted.OutlineVersion)
	assert.Empty(t, reverted.Insights)
	assert.Empty(t, reverted.Sections[0].InsightIDs)

	events, err := svc.History(o.ReportID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, outline.ActionCreate, events[0].ActionType)
	assert.Equal(t, outline.ActionEvolve, events[1].ActionType)
	assert.Equal(t, outline.ActionRevert, events[2].ActionType)
	assert.Equal(t, res.ActionID, events[2].Payload["reverted_action"])
}

func TestRevert_ContentStableWhileAuditGrows(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	o, err := svc.Create(ctx, "Churn", "default", nil, "")
	require.NoError(t, err)
	res, err := svc.Evolve(ctx, o.ReportID, rawChanges(t, changes.ChangeSet{
		InsightsToAdd: []changes.InsightSpec{citedInsight("churn flat", 4)},
	}), EvolveOptions{})
	require.NoError(t, err)

	first, err := svc.Revert(ctx, o.ReportID, res.ActionID, "")
	require.NoError(t, err)
	second, err := svc.Revert(ctx, o.ReportID, res.ActionID, "")
	require.NoError(t, err)

	assert.Empty(t, first.Insights)
	assert.Empty(t, second.Insights)
	assert.Equal(t, first.OutlineVersion+1, second.OutlineVersion)

	events, err := svc.History(o.ReportID)
	require.NoError(t, err)
	assert.Len(t, events, 4, "every revert is audited")
}

func TestEvolve_VersionMismatch(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	o, err := svc.Create(ctx, "Report", "", nil, "")
	require.NoError(t, err)

	_, err = svc.Evolve(ctx, o.ReportID, rawChanges(t, changes.ChangeSet{
		TitleChange: strPtr("New"),
	}), EvolveOptions{ExpectedVersion: 7})
	var verErr *VersionMismatchError
	require.ErrorAs(t, err, &verErr)
	assert.Equal(t, 7, verErr.Expected)
	assert.Equal(t, 1, verErr.Actual)
}

func TestEvolve_DryRunPersistsNothing(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	o, err := svc.Create(ctx, "Dry", "", nil, "")
	require.NoError(t, err)

	res, err := svc.Evolve(ctx, o.ReportID, rawChanges(t, changes.ChangeSet{
		InsightsToAdd: []changes.InsightSpec{citedInsight("tentative", 2)},
	}), EvolveOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 2, res.Outline.OutlineVersion, "dry run reports the would-be version")
	assert.Empty(t, res.ActionID)

	current, err := svc.GetOutline(o.ReportID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.OutlineVersion)
	assert.Empty(t, current.Insights)

	events, err := svc.History(o.ReportID)
	require.NoError(t, err)
	assert.Len(t, events, 1, "dry run leaves no audit trace")
}

func TestEvolve_DuplicateAddRejectedAtomically(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	o, err := svc.Create(ctx, "Dup", "", nil, "")
	require.NoError(t, err)

	res, err := svc.Evolve(ctx, o.ReportID, rawChanges(t, changes.ChangeSet{
		InsightsToAdd: []changes.InsightSpec{citedInsight("first", 5)},
	}), EvolveOptions{})
	require.NoError(t, err)
	existing := res.Outline.Insights[0].InsightID

	dup := citedInsight("dup of first", 5)
	dup.InsightID = existing
	_, err = svc.Evolve(ctx, o.ReportID, rawChanges(t, changes.ChangeSet{
		InsightsToAdd: []changes.InsightSpec{dup, citedInsight("innocent bystander", 1)},
		TitleChange:   strPtr("should not land"),
	}), EvolveOptions{})
	var valErr *ValidationFailedError
	require.ErrorAs(t, err, &valErr)
	require.Len(t, valErr.Errors, 1)
	assert.Equal(t, changes.CodeDuplicateID, valErr.Errors[0].Code)
	assert.Contains(t, valErr.Errors[0].Message, "already exists")

	current, err := svc.GetOutline(o.ReportID)
	require.NoError(t, err)
	assert.Equal(t, "Dup", current.Title, "rejected batch must change nothing")
	assert.Len(t, current.Insights, 1)
}

func TestEvolve_CitationEnforcementIsTemplateIndependent(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	for _, tmpl := range []string{"default", "analyst_v1"} {
		o, err := svc.Create(ctx, "Cited "+tmpl, tmpl, nil, "")
		require.NoError(t, err)

		uncited := changes.ChangeSet{
			InsightsToAdd: []changes.InsightSpec{{Summary: "no source", Importance: intPtr(3)}},
		}
		_, err = svc.Evolve(ctx, o.ReportID, rawChanges(t, uncited), EvolveOptions{})
		var valErr *ValidationFailedError
		require.ErrorAs(t, err, &valErr, "template %s", tmpl)
		assert.Equal(t, changes.CodeMissingCitation, valErr.Errors[0].Code)

		res, err := svc.Evolve(ctx, o.ReportID, rawChanges(t, uncited), EvolveOptions{AllowUncited: true})
		require.NoError(t, err, "template %s with bypass", tmpl)
		assert.Len(t, res.Outline.Insights, 1)
	}
}

func TestEvolve_ConfigCanDisableCitationRequirement(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.RootDir = filepath.Join(t.TempDir(), ".brief")
	cfg.LockWaitMS = 500
	off := false
	cfg.RequireCitations = &off
	ix, err := index.Load(cfg.IndexPath())
	require.NoError(t, err)
	svc := New(cfg, ix, nil)

	ctx := context.Background()
	o, err := svc.Create(ctx, "Lax", "", nil, "")
	require.NoError(t, err)
	_, err = svc.Evolve(ctx, o.ReportID, rawChanges(t, changes.ChangeSet{
		InsightsToAdd: []changes.InsightSpec{{Summary: "uncited but allowed", Importance: intPtr(1)}},
	}), EvolveOptions{})
	assert.NoError(t, err)
}

func TestEvolve_UnknownKeysWarnButApply(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	o, err := svc.Create(ctx, "Warn", "", nil, "")
	require.NoError(t, err)

	raw := map[string]any{
		"title_change": "Renamed",
		"insights":     []any{},
	}
	res, err := svc.Evolve(ctx, o.ReportID, raw, EvolveOptions{})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "insights_to_add")
	assert.Equal(t, "Renamed", res.Outline.Title)
}

func TestFork_IsIndependentOfSource(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	src, err := svc.Create(ctx, "Original", "default", []string{"q3"}, "")
	require.NoError(t, err)
	_, err = svc.Evolve(ctx, src.ReportID, rawChanges(t, changes.ChangeSet{
		InsightsToAdd: []changes.InsightSpec{citedInsight("shared history", 6)},
	}), EvolveOptions{})
	require.NoError(t, err)

	fork, err := svc.Fork(ctx, src.ReportID, "Original (fork)", "")
	require.NoError(t, err)
	assert.NotEqual(t, src.ReportID, fork.ReportID)
	assert.Equal(t, 1, fork.OutlineVersion)
	assert.Equal(t, src.ReportID, fork.Metadata[outline.MetaForkedFrom])
	require.Len(t, fork.Insights, 1)

	// Mutating the fork leaves the source untouched.
	_, err = svc.Evolve(ctx, fork.ReportID, rawChanges(t, changes.ChangeSet{
		InsightsToRemove: []string{fork.Insights[0].InsightID},
	}), EvolveOptions{})
	require.NoError(t, err)

	srcNow, err := svc.GetOutline(src.ReportID)
	require.NoError(t, err)
	assert.Len(t, srcNow.Insights, 1)
}

func TestSynthesize_OneSectionPerSource(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "Alpha", "", nil, "")
	require.NoError(t, err)
	_, err = svc.Evolve(ctx, a.ReportID, rawChanges(t, changes.ChangeSet{
		InsightsToAdd: []changes.InsightSpec{citedInsight("alpha finding", 7)},
	}), EvolveOptions{})
	require.NoError(t, err)

	b, err := svc.Create(ctx, "Beta", "", nil, "")
	require.NoError(t, err)
	_, err = svc.Evolve(ctx, b.ReportID, rawChanges(t, changes.ChangeSet{
		InsightsToAdd: []changes.InsightSpec{citedInsight("beta finding", 5), citedInsight("beta extra", 2)},
	}), EvolveOptions{})
	require.NoError(t, err)

	combined, err := svc.Synthesize(ctx, []string{a.ReportID, b.ReportID}, "Alpha+Beta", "")
	require.NoError(t, err)
	require.Len(t, combined.Sections, 2)
	assert.Equal(t, "Alpha", combined.Sections[0].Title)
	assert.Equal(t, "Beta", combined.Sections[1].Title)
	assert.Len(t, combined.Insights, 3)
	assert.Len(t, combined.Sections[0].InsightIDs, 1)
	assert.Len(t, combined.Sections[1].InsightIDs, 2)
	assert.Equal(t, []any{a.ReportID, b.ReportID}, anySlice(combined.Metadata[outline.MetaSynthesizedFrom]))

	_, err = svc.Synthesize(ctx, []string{a.ReportID}, "Solo", "")
	assert.Error(t, err, "synthesize needs at least two sources")
}

func anySlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	}
	return nil
}

func TestArchiveAndTag(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	o, err := svc.Create(ctx, "Lifecycle", "", []string{"draft"}, "")
	require.NoError(t, err)

	archived, err := svc.Archive(ctx, o.ReportID, true, "")
	require.NoError(t, err)
	assert.Equal(t, outline.StatusArchived, archived.Status())
	assert.Equal(t, 2, archived.OutlineVersion)

	tagged, err := svc.Tag(ctx, o.ReportID, []string{"final"}, []string{"draft"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"final"}, tagged.Tags())
	assert.Equal(t, 3, tagged.OutlineVersion)

	entries := svc.List(index.ListOptions{Status: outline.StatusArchived})
	require.Len(t, entries, 1)
	assert.Equal(t, o.ReportID, entries[0].ReportID)
}

func TestDelete_MovesToTrash(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	o, err := svc.Create(ctx, "Doomed", "", nil, "")
	require.NoError(t, err)

	trashPath, err := svc.Delete(ctx, o.ReportID, "")
	require.NoError(t, err)

	_, err = os.Stat(trashPath)
	assert.NoError(t, err, "report directory must survive in the trash")
	_, err = os.Stat(filepath.Join(svc.cfg.ReportsDir(), o.ReportID))
	assert.True(t, os.IsNotExist(err), "report directory must leave reports/")

	_, err = svc.GetOutline(o.ReportID)
	assert.Error(t, err, "deleted report no longer resolves")
	assert.Equal(t, 0, svc.Index().Len())

	// The delete audit event travels with the directory.
	trashed := storage.New(trashPath, 0)
	events, err := trashed.LoadAuditEvents()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, outline.ActionDelete, events[1].ActionType)
}

func TestSelectorsWorkAcrossOperations(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, "Sales", "", []string{"west"}, "")
	require.NoError(t, err)
	other, err := svc.Create(ctx, "Sales Deep Dive", "", nil, "")
	require.NoError(t, err)

	byTitle, err := svc.GetOutline("Sales")
	require.NoError(t, err)
	assert.Equal(t, "Sales", byTitle.Title, "exact title beats substring match")

	byTag, err := svc.GetOutline("tag:west")
	require.NoError(t, err)
	assert.Equal(t, "Sales", byTag.Title)

	byPartial, err := svc.GetOutline("deep")
	require.NoError(t, err)
	assert.Equal(t, other.ReportID, byPartial.ReportID)
}

func TestValidateStructure_FlagsDanglingReference(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	o, err := svc.Create(ctx, "Broken", "default", nil, "")
	require.NoError(t, err)

	problems, err := svc.ValidateStructure(o.ReportID)
	require.NoError(t, err)
	assert.Empty(t, problems)

	// Damage the outline on disk the way an outside editor would.
	st := storage.New(filepath.Join(svc.cfg.ReportsDir(), o.ReportID), 0)
	damaged, err := st.LoadOutline()
	require.NoError(t, err)
	damaged.Sections[0].InsightIDs = []string{uuid.NewString()}
	_, err = st.SaveOutline(&damaged, outline.ActionEvolve)
	require.NoError(t, err)

	problems, err = svc.ValidateStructure(o.ReportID)
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "references missing insight")
}

func TestRevert_UnknownActionAndNoBackup(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	o, err := svc.Create(ctx, "NoRevert", "", nil, "")
	require.NoError(t, err)

	_, err = svc.Revert(ctx, o.ReportID, uuid.NewString(), "")
	assert.True(t, errors.Is(err, ErrActionNotFound))

	events, err := svc.History(o.ReportID)
	require.NoError(t, err)
	_, err = svc.Revert(ctx, o.ReportID, events[0].ActionID, "")
	assert.True(t, errors.Is(err, ErrNoBackup), "create has no prior state to revert to")
}

func TestRebuildIndex_RecoversFromLostIndex(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	o, err := svc.Create(ctx, "Survivor", "", nil, "")
	require.NoError(t, err)

	require.NoError(t, os.Remove(svc.cfg.IndexPath()))
	fresh, err := index.Load(svc.cfg.IndexPath())
	require.NoError(t, err)
	recovered := New(svc.cfg, fresh, nil)

	warnings, err := recovered.RebuildIndex()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	got, err := recovered.GetOutline(o.ReportID)
	require.NoError(t, err)
	assert.Equal(t, "Survivor", got.Title)
	assert.Empty(t, recovered.CheckIndex())
}

func TestEvolve_EmptyBatchIsDiscoveryNoOp(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	o, err := svc.Create(ctx, "Discovery", "", nil, "")
	require.NoError(t, err)

	res, err := svc.Evolve(ctx, o.ReportID, map[string]any{}, EvolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Outline.OutlineVersion, "empty batch must not bump the version")
	assert.Empty(t, res.ActionID)

	reloaded, err := svc.GetOutline(o.ReportID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.OutlineVersion)

	events, err := svc.History(o.ReportID)
	require.NoError(t, err)
	require.Len(t, events, 1, "only the create event, no evolve audit entry")

	backupDir := filepath.Join(svc.cfg.ReportsDir(), o.ReportID, "backups")
	entries, err := os.ReadDir(backupDir)
	if err == nil {
		assert.Empty(t, entries, "empty batch must not write a backup")
	}
}

func TestEvolve_ConcurrentWritersAssignUniqueVersions(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	o, err := svc.Create(ctx, "Contended", "", nil, "")
	require.NoError(t, err)

	const writers = 8
	payloads := make([]map[string]any, writers)
	for i := range payloads {
		payloads[i] = rawChanges(t, changes.ChangeSet{
			InsightsToAdd: []changes.InsightSpec{citedInsight(fmt.Sprintf("concurrent finding %d", i), 3)},
		})
	}

	var (
		mu       sync.Mutex
		versions []int
		lockLost int
		wg       sync.WaitGroup
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Evolve(ctx, o.ReportID, payloads[i], EvolveOptions{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				versions = append(versions, res.Outline.OutlineVersion)
			case errors.Is(err, storage.ErrLockHeld):
				lockLost++
			default:
				t.Errorf("writer %d: unexpected error %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	// Losers fail with ErrLockHeld; winners each get a distinct version with
	// no gaps and no repeats, and the persisted version counts every winner.
	require.Equal(t, writers, len(versions)+lockLost)
	require.NotEmpty(t, versions, "at least one writer must win the lock")

	final, err := svc.GetOutline(o.ReportID)
	require.NoError(t, err)
	assert.Equal(t, 1+len(versions), final.OutlineVersion)
	assert.Len(t, final.Insights, len(versions))

	sort.Ints(versions)
	for i, v := range versions {
		assert.Equal(t, 2+i, v, "versions must be gap-free and unique")
	}

	// A writer holding a stale expectation is rejected rather than clobbering
	// the winners' work.
	_, err = svc.Evolve(ctx, o.ReportID, payloads[0], EvolveOptions{ExpectedVersion: 1})
	var mismatch *VersionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, final.OutlineVersion, mismatch.Actual)
}
