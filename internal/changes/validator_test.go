package changes

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briefkit/brief/internal/outline"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func testOutline(t *testing.T) *outline.Outline {
	t.Helper()
	o := outline.New("Monthly Sales", time.Now())
	sec, err := outline.NewSection("", "Findings", 0)
	require.NoError(t, err)
	in, err := outline.NewInsight("", "revenue up 12%", 6, []outline.DatasetSource{{ExecutionID: uuid.NewString()}})
	require.NoError(t, err)
	sec.InsightIDs = []string{in.InsightID}
	o.Sections = append(o.Sections, sec)
	o.Insights = append(o.Insights, in)
	return &o
}

func TestDecode_WarnsOnUnknownKeysWithHint(t *testing.T) {
	t.Parallel()

	cs, warnings, errs := Decode(map[string]any{
		"insights":     []any{},
		"wibble":       true,
		"title_change": "New Title",
	})
	require.Empty(t, errs)
	require.NotNil(t, cs)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], `did you mean "insights_to_add"`)
	assert.Contains(t, warnings[1], `"wibble" ignored`)
	require.NotNil(t, cs.TitleChange)
	assert.Equal(t, "New Title", *cs.TitleChange)
}

func TestDecode_SchemaRejectsWrongTypes(t *testing.T) {
	t.Parallel()

	cs, _, errs := Decode(map[string]any{
		"insights_to_add": "not-a-list",
	})
	assert.Nil(t, cs)
	require.NotEmpty(t, errs)
	assert.Equal(t, CodeInvalidValue, errs[0].Code)
}

func TestValidateSchema_GeneratesMissingIDs(t *testing.T) {
	t.Parallel()

	cs := &ChangeSet{
		InsightsToAdd: []InsightSpec{{Summary: "x", Importance: intPtr(5)}},
		SectionsToAdd: []SectionSpec{{Title: "Risks"}},
	}
	errs := ValidateSchema(cs)
	require.Empty(t, errs)
	_, err := uuid.Parse(cs.InsightsToAdd[0].InsightID)
	assert.NoError(t, err)
	_, err = uuid.Parse(cs.SectionsToAdd[0].SectionID)
	assert.NoError(t, err)
}

func TestValidateSchema_AccumulatesAllProblems(t *testing.T) {
	t.Parallel()

	cs := &ChangeSet{
		InsightsToAdd: []InsightSpec{
			{InsightID: "bogus", Importance: intPtr(99)},
		},
		InsightsToRemove: []string{"also-bogus"},
		TitleChange:      strPtr(""),
		StatusChange:     strPtr("paused"),
	}
	errs := ValidateSchema(cs)
	codes := map[Code]int{}
	for _, e := range errs {
		codes[e.Code]++
	}
	assert.Equal(t, 2, codes[CodeMalformedUUID])
	assert.Equal(t, 1, codes[CodeOutOfRange])
	assert.Equal(t, 1, codes[CodeMissingField], "missing summary")
	assert.Equal(t, 2, codes[CodeInvalidValue], "empty title and bad status")
}

func TestValidateSemantics_DuplicateAddCaught(t *testing.T) {
	t.Parallel()

	o := testOutline(t)
	cs := &ChangeSet{
		InsightsToAdd: []InsightSpec{{
			InsightID:  o.Insights[0].InsightID,
			Summary:    "dup",
			Importance: intPtr(1),
			Citations:  []outline.DatasetSource{{SQLHash: "h"}},
		}},
	}
	require.Empty(t, ValidateSchema(cs))
	errs := ValidateSemantics(context.Background(), o, cs, Options{})
	require.Len(t, errs, 1)
	assert.Equal(t, CodeDuplicateID, errs[0].Code)
	assert.Contains(t, errs[0].Message, "already exists")
}

func TestValidateSemantics_CitationRequiredUnlessBypassed(t *testing.T) {
	t.Parallel()

	o := testOutline(t)
	cs := &ChangeSet{
		InsightsToAdd: []InsightSpec{{Summary: "no source", Importance: intPtr(3)}},
	}
	require.Empty(t, ValidateSchema(cs))

	errs := ValidateSemantics(context.Background(), o, cs, Options{})
	require.Len(t, errs, 1)
	assert.Equal(t, CodeMissingCitation, errs[0].Code)

	errs = ValidateSemantics(context.Background(), o, cs, Options{AllowUncited: true})
	assert.Empty(t, errs)
}

func TestValidateSemantics_ModifyAndRemoveMissing(t *testing.T) {
	t.Parallel()

	o := testOutline(t)
	ghost := uuid.NewString()
	cs := &ChangeSet{
		InsightsToModify: []InsightPatch{{InsightID: ghost, Summary: strPtr("x")}},
		InsightsToRemove: []string{ghost},
		SectionsToRemove: []string{uuid.NewString()},
	}
	require.Empty(t, ValidateSchema(cs))
	errs := ValidateSemantics(context.Background(), o, cs, Options{})
	require.Len(t, errs, 3)
	for _, e := range errs {
		assert.Equal(t, CodeNotFound, e.Code)
	}
}

func TestValidateSemantics_RemovedInsightCannotBeReferenced(t *testing.T) {
	t.Parallel()

	o := testOutline(t)
	victim := o.Insights[0].InsightID
	cs := &ChangeSet{
		InsightsToRemove: []string{victim},
		SectionsToAdd: []SectionSpec{{
			Title:      "Appendix",
			InsightIDs: []string{victim},
		}},
		SectionsToModify: []SectionPatch{{
			SectionID:       o.Sections[0].SectionID,
			InsightIDsToAdd: []string{victim},
		}},
	}
	require.Empty(t, ValidateSchema(cs))
	errs := ValidateSemantics(context.Background(), o, cs, Options{})
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.Equal(t, CodeConflict, e.Code)
	}
}

func TestValidateSemantics_AddCanReferenceSectionAddedInSameBatch(t *testing.T) {
	t.Parallel()

	o := testOutline(t)
	newSection := uuid.NewString()
	cs := &ChangeSet{
		SectionsToAdd: []SectionSpec{{SectionID: newSection, Title: "Fresh"}},
		InsightsToAdd: []InsightSpec{{
			Summary:    "lands in the new section",
			Importance: intPtr(4),
			Citations:  []outline.DatasetSource{{SQLHash: "h"}},
			SectionIDs: []string{newSection},
		}},
	}
	require.Empty(t, ValidateSchema(cs))
	assert.Empty(t, ValidateSemantics(context.Background(), o, cs, Options{}))
}

type mapResolver map[string]bool

func (m mapResolver) Resolve(_ context.Context, src outline.DatasetSource) (bool, error) {
	return m[src.ExecutionID] || m[src.SQLHash], nil
}

func TestValidateSemantics_ResolverChecksCitations(t *testing.T) {
	t.Parallel()

	o := testOutline(t)
	known := uuid.NewString()
	cs := &ChangeSet{
		InsightsToAdd: []InsightSpec{
			{Summary: "cited and known", Importance: intPtr(5), Citations: []outline.DatasetSource{{ExecutionID: known}}},
			{Summary: "cited but unknown", Importance: intPtr(5), Citations: []outline.DatasetSource{{ExecutionID: uuid.NewString()}}},
		},
	}
	require.Empty(t, ValidateSchema(cs))
	errs := ValidateSemantics(context.Background(), o, cs, Options{Resolver: mapResolver{known: true}})
	require.Len(t, errs, 1)
	assert.Equal(t, CodeUnresolvedCitation, errs[0].Code)
}

func TestEmpty(t *testing.T) {
	t.Parallel()

	var cs ChangeSet
	assert.True(t, cs.Empty())
	cs.TitleChange = strPtr("x")
	assert.False(t, cs.Empty())
}
