// Package outline defines the report outline model: reports, sections,
// insights, audit events, and index entries.
//
// Construction validates field-level invariants only (ranges, UUID syntax,
// enum membership). Cross-entity invariants such as a section referencing a
// missing insight are the change validator's job, because a batch under
// assembly is allowed to be transiently inconsistent.
package outline

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Insight status values.
const (
	InsightActive   = "active"
	InsightArchived = "archived"
	InsightKilled   = "killed"
)

// Section content formats.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatPlain    = "plain"
)

// Report status values.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Audit actors.
const (
	ActorCLI    = "cli"
	ActorAgent  = "agent"
	ActorSystem = "system"
)

// Audit action types.
const (
	ActionCreate     = "create"
	ActionEvolve     = "evolve"
	ActionRevert     = "revert"
	ActionFork       = "fork"
	ActionSynthesize = "synthesize"
	ActionArchive    = "archive"
	ActionTag        = "tag"
	ActionDelete     = "delete"
)

// Metadata keys with reserved meaning.
const (
	MetaStatus          = "status"
	MetaTags            = "tags"
	MetaTemplate        = "template"
	MetaForkedFrom      = "forked_from"
	MetaSynthesizedFrom = "synthesized_from"
)

// DatasetSource cites the prior query execution an insight is based on.
// At least one of ExecutionID or SQLHash must be set.
type DatasetSource struct {
	ExecutionID string `json:"execution_id,omitempty"`
	SQLHash     string `json:"sql_hash,omitempty"`
	Description string `json:"description,omitempty"`
}

// Empty reports whether the source carries no reference at all.
func (d DatasetSource) Empty() bool {
	return d.ExecutionID == "" && d.SQLHash == ""
}

// Insight is one atomic, citable finding.
type Insight struct {
	InsightID  string          `json:"insight_id"`
	Summary    string          `json:"summary"`
	Importance int             `json:"importance"`
	Status     string          `json:"status"`
	Citations  []DatasetSource `json:"citations,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

// NewInsight constructs a validated insight. An empty id is auto-generated.
func NewInsight(id, summary string, importance int, citations []DatasetSource) (Insight, error) {
	if id == "" {
		id = uuid.NewString()
	}
	in := Insight{
		InsightID:  id,
		Summary:    summary,
		Importance: importance,
		Status:     InsightActive,
		Citations:  citations,
	}
	if err := in.Validate(); err != nil {
		return Insight{}, err
	}
	return in, nil
}

// Validate checks field-level invariants.
func (i Insight) Validate() error {
	if _, err := uuid.Parse(i.InsightID); err != nil {
		return fmt.Errorf("insight_id %q is not a valid UUID", i.InsightID)
	}
	if i.Importance < 0 || i.Importance > 10 {
		return fmt.Errorf("insight %s: importance %d outside range 0-10", i.InsightID, i.Importance)
	}
	switch i.Status {
	case InsightActive, InsightArchived, InsightKilled:
	default:
		return fmt.Errorf("insight %s: invalid status %q", i.InsightID, i.Status)
	}
	return nil
}

// Section is one ordered unit of report structure.
type Section struct {
	SectionID     string   `json:"section_id"`
	Title         string   `json:"title"`
	Order         int      `json:"order"`
	InsightIDs    []string `json:"insight_ids,omitempty"`
	Content       string   `json:"content,omitempty"`
	ContentFormat string   `json:"content_format,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// NewSection constructs a validated section. An empty id is auto-generated.
func NewSection(id, title string, order int) (Section, error) {
	if id == "" {
		id = uuid.NewString()
	}
	sec := Section{
		SectionID:     id,
		Title:         title,
		Order:         order,
		ContentFormat: FormatMarkdown,
	}
	if err := sec.Validate(); err != nil {
		return Section{}, err
	}
	return sec, nil
}

// Validate checks field-level invariants.
func (s Section) Validate() error {
	if _, err := uuid.Parse(s.SectionID); err != nil {
		return fmt.Errorf("section_id %q is not a valid UUID", s.SectionID)
	}
	if s.Title == "" {
		return fmt.Errorf("section %s: title is required", s.SectionID)
	}
	if s.Order < 0 {
		return fmt.Errorf("section %s: order %d must be >= 0", s.SectionID, s.Order)
	}
	switch s.ContentFormat {
	case "", FormatMarkdown, FormatHTML, FormatPlain:
	default:
		return fmt.Errorf("section %s: invalid content_format %q", s.SectionID, s.ContentFormat)
	}
	return nil
}

// HasInsight reports whether the section references the given insight id.
func (s Section) HasInsight(id string) bool {
	for _, ref := range s.InsightIDs {
		if ref == id {
			return true
		}
	}
	return false
}

// Outline is the full mutable state of one report at one point in time.
type Outline struct {
	ReportID       string         `json:"report_id"`
	Title          string         `json:"title"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
	OutlineVersion int            `json:"outline_version"`
	Sections       []Section      `json:"sections"`
	Insights       []Insight      `json:"insights"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// New constructs a fresh version-1 outline with a generated report id.
func New(title string, now time.Time) Outline {
	ts := now.UTC().Format(time.RFC3339)
	return Outline{
		ReportID:       uuid.NewString(),
		Title:          title,
		CreatedAt:      ts,
		UpdatedAt:      ts,
		OutlineVersion: 1,
		Sections:       []Section{},
		Insights:       []Insight{},
		Metadata:       map[string]any{MetaStatus: StatusActive},
	}
}

// Validate checks the outline's field-level invariants and id uniqueness.
func (o *Outline) Validate() error {
	if _, err := uuid.Parse(o.ReportID); err != nil {
		return fmt.Errorf("report_id %q is not a valid UUID", o.ReportID)
	}
	if o.Title == "" {
		return fmt.Errorf("report %s: title is required", o.ReportID)
	}
	if o.OutlineVersion < 1 {
		return fmt.Errorf("report %s: outline_version %d must be >= 1", o.ReportID, o.OutlineVersion)
	}
	seenSections := make(map[string]bool, len(o.Sections))
	for _, sec := range o.Sections {
		if err := sec.Validate(); err != nil {
			return err
		}
		if seenSections[sec.SectionID] {
			return fmt.Errorf("report %s: duplicate section id %s", o.ReportID, sec.SectionID)
		}
		seenSections[sec.SectionID] = true
	}
	seenInsights := make(map[string]bool, len(o.Insights))
	for _, in := range o.Insights {
		if err := in.Validate(); err != nil {
			return err
		}
		if seenInsights[in.InsightID] {
			return fmt.Errorf("report %s: duplicate insight id %s", o.ReportID, in.InsightID)
		}
		seenInsights[in.InsightID] = true
	}
	return nil
}

// NotFoundError reports a lookup miss inside one outline.
type NotFoundError struct {
	Kind string // "insight" or "section"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Insight returns the insight with the given id.
func (o *Outline) Insight(id string) (*Insight, error) {
	for idx := range o.Insights {
		if o.Insights[idx].InsightID == id {
			return &o.Insights[idx], nil
		}
	}
	return nil, &NotFoundError{Kind: "insight", ID: id}
}

// Section returns the section with the given id.
func (o *Outline) Section(id string) (*Section, error) {
	for idx := range o.Sections {
		if o.Sections[idx].SectionID == id {
			return &o.Sections[idx], nil
		}
	}
	return nil, &NotFoundError{Kind: "section", ID: id}
}

// Clone returns a deep copy sharing no mutable state with the original.
func (o *Outline) Clone() Outline {
	out := *o
	out.Sections = make([]Section, len(o.Sections))
	for i, sec := range o.Sections {
		out.Sections[i] = sec
		out.Sections[i].InsightIDs = append([]string(nil), sec.InsightIDs...)
	}
	out.Insights = make([]Insight, len(o.Insights))
	for i, in := range o.Insights {
		out.Insights[i] = in
		out.Insights[i].Citations = append([]DatasetSource(nil), in.Citations...)
		out.Insights[i].Metadata = cloneMap(in.Metadata)
	}
	out.Metadata = cloneMap(o.Metadata)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SortedSections returns sections ordered by Order ascending. Ties keep the
// outline's list order (stable sort), which is insertion order.
func (o *Outline) SortedSections() []Section {
	out := append([]Section(nil), o.Sections...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Status returns the report status from metadata, defaulting to active.
func (o *Outline) Status() string {
	if s, ok := o.Metadata[MetaStatus].(string); ok && s != "" {
		return s
	}
	return StatusActive
}

// Tags returns the report tags from metadata. Tolerates both []string and
// the []any produced by a JSON round trip.
func (o *Outline) Tags() []string {
	switch v := o.Metadata[MetaTags].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// SetTags writes the tag list into metadata.
func (o *Outline) SetTags(tags []string) {
	if o.Metadata == nil {
		o.Metadata = map[string]any{}
	}
	o.Metadata[MetaTags] = tags
}

// AuditEvent is one immutable record of a mutation.
type AuditEvent struct {
	ActionID   string         `json:"action_id"`
	ReportID   string         `json:"report_id"`
	TS         string         `json:"ts"`
	Actor      string         `json:"actor"`
	ActionType string         `json:"action_type"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// PayloadBackupFile is the payload key carrying the pre-mutation backup name.
const PayloadBackupFile = "backup_file"

// NewAuditEvent constructs an audit event stamped with the current time.
func NewAuditEvent(reportID, actor, actionType string, payload map[string]any) AuditEvent {
	return AuditEvent{
		ActionID:   uuid.NewString(),
		ReportID:   reportID,
		TS:         time.Now().UTC().Format(time.RFC3339),
		Actor:      actor,
		ActionType: actionType,
		Payload:    payload,
	}
}

// BackupFile returns the backup filename recorded in the payload, if any.
func (e AuditEvent) BackupFile() string {
	if e.Payload == nil {
		return ""
	}
	name, _ := e.Payload[PayloadBackupFile].(string)
	return name
}

// IndexEntry is the denormalized per-report summary held by the global index.
type IndexEntry struct {
	ReportID     string   `json:"report_id"`
	CurrentTitle string   `json:"current_title"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
	Status       string   `json:"status"`
	Tags         []string `json:"tags,omitempty"`
	Path         string   `json:"path"`
}

// EntryFor projects an outline into its index entry.
func EntryFor(o *Outline, path string) IndexEntry {
	return IndexEntry{
		ReportID:     o.ReportID,
		CurrentTitle: o.Title,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
		Status:       o.Status(),
		Tags:         o.Tags(),
		Path:         path,
	}
}

// HasTag reports whether the entry carries the given tag.
func (e IndexEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
