package catalog

import (
	"fmt"
	"regexp"
	"slices"
)

// Entry types of a layout.
const (
	EntryGroup  = "group"
	EntryButton = "button"
)

// Tag match modes.
const (
	MatchContains = "contains"
	MatchSequence = "sequence"
)

// Spec is a designer's description of a board: its targets and the layout
// that arranges them into scan groups.
type Spec struct {
	Label   string       `yaml:"label"`
	Cycle   int          `yaml:"cycle"`
	Targets []TargetSpec `yaml:"targets"`
	Groups  []EntrySpec  `yaml:"groups"`
}

// TargetSpec describes one target (a content row bound to a button).
type TargetSpec struct {
	ID      string         `yaml:"id"`
	Name    string         `yaml:"name"`
	Label   string         `yaml:"label"`
	Element string         `yaml:"element"`
	Tags    []string       `yaml:"tags"`
	Row     int            `yaml:"row"`
	Column  int            `yaml:"column"`
	Data    map[string]any `yaml:"data"`
	Cycle   int            `yaml:"cycle"`
	OnClick func()         `yaml:"-"`
}

// EntrySpec is one layout entry. A "group" entry nests Children. A "button"
// entry selects targets: by IDs, else by Name, else by Tags, else by Label.
// When a button entry selects by something other than its label, Label is
// the group label and may reference target fields as #field or $field.
type EntrySpec struct {
	Type     string      `yaml:"type"`
	Label    string      `yaml:"label"`
	Cycle    int         `yaml:"cycle"`
	Children []EntrySpec `yaml:"children"`

	IDs     []string `yaml:"ids"`
	Name    string   `yaml:"name"`
	Tags    []string `yaml:"tags"`
	Match   string   `yaml:"match"`
	GroupBy string   `yaml:"groupBy"`
}

// selectsByLabel reports whether the entry's label is a target selector.
func (e EntrySpec) selectsByLabel() bool {
	return len(e.IDs) == 0 && e.Name == "" && len(e.Tags) == 0
}

// item is the result of expanding one layout entry: either a group, or a
// run of bare targets that becomes part of the parent.
type item struct {
	group   *Group
	targets []*Target
	label   string
	cycle   int
}

// builder carries state across the expansion of a Spec.
type builder struct {
	targets  []*Target
	byID     map[TargetID]*Target
	assigned map[*Target]bool
	probs    problems
}

// Build expands spec into a validated Catalogue. Every target must be placed
// in exactly one group; a spec without a layout places all targets in the
// root in declaration order.
func Build(spec Spec) (*Catalogue, error) {
	b := &builder{
		byID:     make(map[TargetID]*Target),
		assigned: make(map[*Target]bool),
	}

	for i, ts := range spec.Targets {
		if ts.ID == "" {
			b.probs.addf("target %d (%q) has no id", i, ts.Label)
			continue
		}
		t := &Target{
			ID:      TargetID(ts.ID),
			Label:   ts.Label,
			Element: ElementID(ts.Element),
			Tags:    ts.Tags,
			Row:     ts.Row,
			Column:  ts.Column,
			Cycle:   ts.Cycle,
			OnClick: ts.OnClick,
			Action:  ActionRef{Name: ts.Name, Data: ts.Data},
		}
		if _, dup := b.byID[t.ID]; dup {
			b.probs.addf("duplicate target id %q", t.ID)
			continue
		}
		b.byID[t.ID] = t
		b.targets = append(b.targets, t)
	}

	root := &Group{Label: spec.Label, Cycle: spec.Cycle}
	if len(spec.Groups) == 0 {
		root.Targets = b.targets
		for _, t := range b.targets {
			b.assigned[t] = true
		}
	} else {
		var items []item
		for _, e := range spec.Groups {
			items = append(items, b.expand(e)...)
		}
		attach(root, items)
	}

	for _, t := range b.targets {
		if !b.assigned[t] {
			b.probs.addf("target %q is not placed in any group", t.ID)
		}
	}
	if err := b.probs.err(); err != nil {
		return nil, err
	}
	return New(root)
}

// expand turns one layout entry into items.
func (b *builder) expand(e EntrySpec) []item {
	switch e.Type {
	case EntryGroup:
		g := &Group{Label: e.Label, Cycle: e.Cycle}
		var items []item
		for _, child := range e.Children {
			items = append(items, b.expand(child)...)
		}
		attach(g, items)
		return []item{{group: g}}

	case EntryButton, "":
		selected := b.selectTargets(e)
		if e.GroupBy != "" {
			return b.groupBy(e, selected)
		}
		if !e.selectsByLabel() && e.Label != "" {
			return []item{{group: &Group{Label: e.Label, Cycle: e.Cycle, Targets: selected}}}
		}
		label := e.Label
		if label == "" {
			label = e.Name
		}
		return []item{{targets: selected, label: label, cycle: e.Cycle}}

	default:
		b.probs.addf("unknown layout entry type %q", e.Type)
		return nil
	}
}

// selectTargets picks the targets an entry refers to, in declaration order.
// Targets already placed elsewhere are skipped, except when named by id,
// which is reported as a duplicate placement.
func (b *builder) selectTargets(e EntrySpec) []*Target {
	var out []*Target
	if len(e.IDs) > 0 {
		for _, id := range e.IDs {
			t, ok := b.byID[TargetID(id)]
			if !ok {
				b.probs.addf("layout references unknown target %q", id)
				continue
			}
			if b.assigned[t] {
				b.probs.addf("target %q belongs to more than one group", id)
				continue
			}
			b.assigned[t] = true
			out = append(out, t)
		}
		return out
	}

	for _, t := range b.targets {
		if b.assigned[t] || !e.matches(t) {
			continue
		}
		b.assigned[t] = true
		out = append(out, t)
	}
	return out
}

// matches reports whether t is selected by the entry.
func (e EntrySpec) matches(t *Target) bool {
	switch {
	case e.Name != "":
		return t.Action.Name == e.Name
	case len(e.Tags) > 0:
		return MatchTags(t.Tags, e.Tags, e.Match)
	case e.Label != "":
		return t.Label == e.Label
	default:
		return false
	}
}

// MatchTags reports whether have satisfies want. With MatchSequence the tag
// lists must be identical; otherwise every wanted tag must be present.
func MatchTags(have, want []string, mode string) bool {
	if mode == MatchSequence {
		return slices.Equal(have, want)
	}
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

// groupBy splits targets into one group per distinct field value, in order of
// first appearance. Each synthesised group takes the entry's cycle.
func (b *builder) groupBy(e EntrySpec, targets []*Target) []item {
	field := trimFieldMarker(e.GroupBy)
	var order []string
	buckets := make(map[string][]*Target)
	for _, t := range targets {
		v, _ := t.Field(field)
		key := fmt.Sprint(v)
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], t)
		if e.Cycle > 0 {
			t.Cycle = e.Cycle
		}
	}

	items := make([]item, 0, len(order))
	for _, key := range order {
		members := buckets[key]
		label := e.Label
		if label == "" {
			label = field + " " + key
		} else {
			label = ExpandLabel(label, members[0])
		}
		items = append(items, item{group: &Group{Label: label, Cycle: e.Cycle, Targets: members}})
	}
	return items
}

// attach places items under g. When every item is a run of bare targets the
// group becomes a leaf; otherwise each run is wrapped in its own group.
func attach(g *Group, items []item) {
	allBare := true
	for _, it := range items {
		if it.group != nil {
			allBare = false
			break
		}
	}
	if allBare {
		for _, it := range items {
			g.Targets = append(g.Targets, it.targets...)
		}
		return
	}
	for _, it := range items {
		if it.group != nil {
			g.Children = append(g.Children, it.group)
			continue
		}
		g.Children = append(g.Children, &Group{Label: it.label, Cycle: it.cycle, Targets: it.targets})
	}
}

var fieldRef = regexp.MustCompile(`[#$]([A-Za-z_][A-Za-z0-9_]*)`)

// ExpandLabel replaces #field and $field references in tmpl with values from t.
// Unknown fields are left untouched.
func ExpandLabel(tmpl string, t *Target) string {
	return fieldRef.ReplaceAllStringFunc(tmpl, func(ref string) string {
		v, ok := t.Field(ref[1:])
		if !ok {
			return ref
		}
		return fmt.Sprint(v)
	})
}

func trimFieldMarker(s string) string {
	if len(s) > 0 && (s[0] == '#' || s[0] == '$') {
		return s[1:]
	}
	return s
}
