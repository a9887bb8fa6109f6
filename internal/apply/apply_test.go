package apply

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briefkit/brief/internal/changes"
	"github.com/briefkit/brief/internal/outline"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func baseOutline(t *testing.T) *outline.Outline {
	t.Helper()
	o := outline.New("Quarterly Review", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	sec, err := outline.NewSection("", "Highlights", 0)
	require.NoError(t, err)
	in, err := outline.NewInsight("", "margin held at 41%", 8, []outline.DatasetSource{{SQLHash: "h1"}})
	require.NoError(t, err)
	sec.InsightIDs = []string{in.InsightID}
	o.Sections = append(o.Sections, sec)
	o.Insights = append(o.Insights, in)
	return &o
}

func TestApply_AlwaysAdvancesVersion(t *testing.T) {
	t.Parallel()

	// The engine unconditionally advances the version; the service skips
	// empty batches before ever calling Apply.
	o := baseOutline(t)
	next, sum := Apply(o, &changes.ChangeSet{}, time.Now())
	assert.Equal(t, o.OutlineVersion+1, next.OutlineVersion)
	assert.Equal(t, Summary{}, sum)
	assert.Equal(t, 1, o.OutlineVersion, "input outline must not be mutated")
}

func TestApply_InsightTargetsSectionAddedInSameBatch(t *testing.T) {
	t.Parallel()

	o := baseOutline(t)
	newSection := uuid.NewString()
	newInsight := uuid.NewString()
	next, sum := Apply(o, &changes.ChangeSet{
		InsightsToAdd: []changes.InsightSpec{{
			InsightID:  newInsight,
			Summary:    "pipeline coverage at 3.1x",
			Importance: intPtr(6),
			Citations:  []outline.DatasetSource{{SQLHash: "h2"}},
			SectionIDs: []string{newSection},
		}},
		SectionsToAdd: []changes.SectionSpec{{
			SectionID: newSection,
			Title:     "Pipeline",
			Order:     intPtr(1),
		}},
	}, time.Now())

	sec, err := next.Section(newSection)
	require.NoError(t, err)
	assert.Contains(t, sec.InsightIDs, newInsight, "link into a section added by the same batch")
	assert.Equal(t, []string{newInsight}, sum.InsightsAdded)
	assert.Equal(t, []string{newSection}, sum.SectionsAdded)
}

func TestApply_RemovalStripsSectionReferences(t *testing.T) {
	t.Parallel()

	o := baseOutline(t)
	victim := o.Insights[0].InsightID
	next, sum := Apply(o, &changes.ChangeSet{InsightsToRemove: []string{victim}}, time.Now())

	assert.Empty(t, next.Insights)
	assert.Empty(t, next.Sections[0].InsightIDs)
	assert.Equal(t, []string{victim}, sum.InsightsRemoved)
	require.Len(t, o.Sections[0].InsightIDs, 1, "input outline must not be mutated")
}

func TestApply_PatchKeepsAbsentFields(t *testing.T) {
	t.Parallel()

	o := baseOutline(t)
	id := o.Insights[0].InsightID
	next, sum := Apply(o, &changes.ChangeSet{
		InsightsToModify: []changes.InsightPatch{{InsightID: id, Importance: intPtr(2)}},
	}, time.Now())

	in, err := next.Insight(id)
	require.NoError(t, err)
	assert.Equal(t, 2, in.Importance)
	assert.Equal(t, "margin held at 41%", in.Summary, "absent patch fields keep prior values")
	assert.Equal(t, []string{id}, sum.InsightsModified)
}

func TestApply_AddLinksIntoTargetSections(t *testing.T) {
	t.Parallel()

	o := baseOutline(t)
	target := o.Sections[0].SectionID
	newID := uuid.NewString()
	next, sum := Apply(o, &changes.ChangeSet{
		InsightsToAdd: []changes.InsightSpec{{
			InsightID:  newID,
			Summary:    "opex flat",
			Importance: intPtr(5),
			SectionIDs: []string{target},
		}},
	}, time.Now())

	require.Len(t, next.Insights, 2)
	sec, err := next.Section(target)
	require.NoError(t, err)
	assert.True(t, sec.HasInsight(newID))
	assert.Equal(t, []string{newID}, sum.InsightsAdded)
}

func TestApply_RemoveAndAddSectionReferenceInOneBatch(t *testing.T) {
	t.Parallel()

	// An insight removal arriving with a section edit must not leave a
	// dangling reference, regardless of payload field order.
	o := baseOutline(t)
	victim := o.Insights[0].InsightID
	replacement := uuid.NewString()
	next, _ := Apply(o, &changes.ChangeSet{
		InsightsToRemove: []string{victim},
		InsightsToAdd: []changes.InsightSpec{{
			InsightID:  replacement,
			Summary:    "restated margin",
			Importance: intPtr(8),
			SectionIDs: []string{o.Sections[0].SectionID},
		}},
	}, time.Now())

	assert.Equal(t, []string{replacement}, next.Sections[0].InsightIDs)
}

func TestApply_SectionPatchIncrementalEdits(t *testing.T) {
	t.Parallel()

	o := baseOutline(t)
	existing := o.Insights[0].InsightID
	extra, err := outline.NewInsight("", "other", 3, nil)
	require.NoError(t, err)
	o.Insights = append(o.Insights, extra)
	secID := o.Sections[0].SectionID

	next, _ := Apply(o, &changes.ChangeSet{
		SectionsToModify: []changes.SectionPatch{{
			SectionID:          secID,
			Title:              strPtr("Key Highlights"),
			InsightIDsToAdd:    []string{extra.InsightID, existing},
			InsightIDsToRemove: []string{existing},
		}},
	}, time.Now())

	sec, err := next.Section(secID)
	require.NoError(t, err)
	assert.Equal(t, "Key Highlights", sec.Title)
	assert.Equal(t, []string{extra.InsightID}, sec.InsightIDs, "add is idempotent, then remove drops the original")
}

func TestApply_SectionRemovalKeepsOrphanInsights(t *testing.T) {
	t.Parallel()

	o := baseOutline(t)
	secID := o.Sections[0].SectionID
	next, sum := Apply(o, &changes.ChangeSet{SectionsToRemove: []string{secID}}, time.Now())

	assert.Empty(t, next.Sections)
	assert.Len(t, next.Insights, 1, "insight removal is always explicit")
	assert.Equal(t, []string{secID}, sum.SectionsRemoved)
}

func TestApply_TitleStatusAndMetadata(t *testing.T) {
	t.Parallel()

	o := baseOutline(t)
	now := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
	next, sum := Apply(o, &changes.ChangeSet{
		TitleChange:     strPtr("Q1 Review (final)"),
		StatusChange:    strPtr(outline.StatusArchived),
		MetadataUpdates: map[string]any{"owner": "data-team"},
	}, now)

	assert.Equal(t, "Q1 Review (final)", next.Title)
	assert.Equal(t, outline.StatusArchived, next.Status())
	assert.Equal(t, "data-team", next.Metadata["owner"])
	assert.True(t, sum.TitleChanged)
	assert.True(t, sum.StatusChanged)
	assert.Equal(t, "2026-04-02T10:30:00Z", next.UpdatedAt)
}
