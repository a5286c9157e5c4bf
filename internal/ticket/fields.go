package ticket

import (
	"slices"
	"strings"
)

// Canonical field names, in export order.
const (
	FieldID              = "id"
	FieldKey             = "key"
	FieldURL             = "url"
	FieldType            = "type"
	FieldSummary         = "summary"
	FieldDescription     = "description"
	FieldLabels          = "labels"
	FieldPriority        = "priority"
	FieldStatus          = "status"
	FieldAssigneeName    = "assigneeName"
	FieldAssigneeEmail   = "assigneeEmail"
	FieldLastComment     = "lastComment"
	FieldLastCommentDate = "lastCommentDate"
	FieldCreated         = "created"
	FieldUpdatedAt       = "updatedAt"
	FieldResolution      = "resolution"
	FieldResolutionDate  = "resolutionDate"
	FieldFixVersion      = "fixVersion"
	FieldProject         = "project"
	FieldProjectName     = "projectName"
	FieldParent          = "parent"
	FieldEpicLink        = "epicLink"
	FieldEpicName        = "epicName"
	FieldIssueLinks      = "issueLinks"
	FieldLeadTime        = "leadTime"
	FieldCycleTime       = "cycleTime"
)

var allFields = []string{
	FieldID, FieldKey, FieldURL, FieldType, FieldSummary, FieldDescription,
	FieldLabels, FieldPriority, FieldStatus, FieldAssigneeName, FieldAssigneeEmail,
	FieldLastComment, FieldLastCommentDate, FieldCreated, FieldUpdatedAt,
	FieldResolution, FieldResolutionDate, FieldFixVersion, FieldProject,
	FieldProjectName, FieldParent, FieldEpicLink, FieldEpicName, FieldIssueLinks,
	FieldLeadTime, FieldCycleTime,
}

// parent is only exported on request.
var defaultFields = slices.DeleteFunc(slices.Clone(allFields), func(f string) bool {
	return f == FieldParent
})

// ProtectedFields survive every filtered copy.
var ProtectedFields = []string{FieldKey, FieldType}

// Older payloads and reports spell some fields differently.
var fieldAliases = map[string]string{
	"ttype":     FieldType,
	"issuetype": FieldType,
	"updated":   FieldUpdatedAt,
	"assignee":  FieldAssigneeName,
	"comment":   FieldLastComment,
	"link":      FieldURL,
	"permalink": FieldURL,
}

var canonicalByFold = func() map[string]string {
	m := make(map[string]string, len(allFields)+len(fieldAliases))
	for _, f := range allFields {
		m[foldName(f)] = f
	}
	for alias, f := range fieldAliases {
		m[foldName(alias)] = f
	}
	return m
}()

func foldName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

// CanonicalField maps any known spelling of a core field (cycle_time,
// cycleTime, CYCLE-TIME) to its canonical name. The second result is false
// for names that are not core fields, such as flow-log status columns.
func CanonicalField(name string) (string, bool) {
	f, ok := canonicalByFold[foldName(name)]
	return f, ok
}

// DefaultFields returns the fields a freshly built ticket exposes.
func DefaultFields() []string {
	return slices.Clone(defaultFields)
}

// Get returns the value of a core field or flow-log column. Unset optional
// values are returned as nil.
func (t *Ticket) Get(name string) (any, bool) {
	f, extra, ok := t.resolve(name)
	if !ok {
		return nil, false
	}
	if extra {
		return t.Extra[f], true
	}
	switch f {
	case FieldID:
		return t.ID, true
	case FieldKey:
		return t.Key, true
	case FieldURL:
		return t.URL, true
	case FieldType:
		return t.Type, true
	case FieldSummary:
		return t.Summary, true
	case FieldDescription:
		return t.Description, true
	case FieldLabels:
		return slices.Clone(t.Labels), true
	case FieldPriority:
		return t.Priority, true
	case FieldStatus:
		return t.Status, true
	case FieldAssigneeName:
		return t.AssigneeName, true
	case FieldAssigneeEmail:
		return t.AssigneeEmail, true
	case FieldLastComment:
		return t.LastComment, true
	case FieldLastCommentDate:
		if t.LastCommentDate == nil {
			return nil, true
		}
		return *t.LastCommentDate, true
	case FieldCreated:
		return t.Created, true
	case FieldUpdatedAt:
		return t.Updated, true
	case FieldResolution:
		return t.Resolution, true
	case FieldResolutionDate:
		if t.ResolutionDate == nil {
			return nil, true
		}
		return *t.ResolutionDate, true
	case FieldFixVersion:
		return t.FixVersion, true
	case FieldProject:
		return t.Project, true
	case FieldProjectName:
		return t.ProjectName, true
	case FieldParent:
		return t.Parent, true
	case FieldEpicLink:
		return t.EpicLink, true
	case FieldEpicName:
		return t.EpicName, true
	case FieldIssueLinks:
		return slices.Clone(t.IssueLinks), true
	case FieldLeadTime:
		return t.LeadTime, true
	case FieldCycleTime:
		return t.CycleTime, true
	}
	return nil, false
}

// FieldNames lists the visible core fields followed by flow-log columns in
// the order they were added.
func (t *Ticket) FieldNames() []string {
	out := slices.Clone(t.visible)
	return append(out, t.extraOrder...)
}

// Fields returns the visible fields as a flat map for row-oriented export.
func (t *Ticket) Fields() map[string]any {
	names := t.FieldNames()
	out := make(map[string]any, len(names))
	for _, name := range names {
		if v, ok := t.Get(name); ok {
			out[name] = v
		}
	}
	return out
}

// HasField reports whether name is part of the visible field set.
func (t *Ticket) HasField(name string) bool {
	f, extra, ok := t.resolve(name)
	if !ok {
		return false
	}
	if extra {
		return true
	}
	return slices.Contains(t.visible, f)
}

// resolve prefers an exactly named flow-log column ("Created") over the
// folded spelling of a core field ("created"). Exact core names always win.
func (t *Ticket) resolve(name string) (string, bool, bool) {
	if !isCoreName(name) {
		if _, ok := t.Extra[name]; ok {
			return name, true, true
		}
	}
	f, ok := CanonicalField(name)
	return f, false, ok
}

func isCoreName(name string) bool {
	return slices.Contains(allFields, name)
}
