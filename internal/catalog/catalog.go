package catalog

import (
	"maps"
	"slices"
	"sync/atomic"
)

// TargetID identifies a target for its whole lifetime.
type TargetID string

// ElementID identifies a rendered element. The catalogue only maps element
// identities to targets; it never owns the elements themselves.
type ElementID string

// ActionRef is the handle the external dispatcher resolves on selection.
type ActionRef struct {
	// Name is the rule name handed to the dispatcher.
	Name string

	// Data is passed through to the dispatcher unchanged.
	Data map[string]any
}

// Target is a selectable element of the board.
type Target struct {
	ID      TargetID
	Label   string
	Element ElementID
	Tags    []string
	Row     int
	Column  int
	Action  ActionRef

	// Cycle is the number of scan passes for a group synthesised from this
	// target's layout entry. Defaults to 1.
	Cycle int

	// OnClick, when set, replaces the generic dispatcher for this target.
	OnClick func()

	// GroupPath locates the target's group from the root (child indices).
	GroupPath []int

	// Index is the target's position within its group.
	Index int
}

// Position returns the full scan path of the target: GroupPath followed by Index.
func (t *Target) Position() []int {
	p := make([]int, 0, len(t.GroupPath)+1)
	p = append(p, t.GroupPath...)
	return append(p, t.Index)
}

// Field returns a named attribute of the target, falling back to Action.Data.
func (t *Target) Field(name string) (any, bool) {
	switch name {
	case "id":
		return string(t.ID), true
	case "name":
		return t.Action.Name, true
	case "label":
		return t.Label, true
	case "row":
		return t.Row, true
	case "column":
		return t.Column, true
	}
	v, ok := t.Action.Data[name]
	return v, ok
}

// clone returns a copy that shares nothing mutable with t.
func (t *Target) clone() *Target {
	c := *t
	c.Tags = slices.Clone(t.Tags)
	c.Action.Data = maps.Clone(t.Action.Data)
	c.GroupPath = nil
	return &c
}

// Group is a node of the scan hierarchy. A group holds either child groups or
// targets, never both.
type Group struct {
	Label string

	// Cycle is how many passes the scanner makes over this group's members
	// before moving on. When unset, a leaf group takes the largest Cycle of
	// its targets, and any other group defaults to 1.
	Cycle int

	Children []*Group
	Targets  []*Target

	// Path is the group's location from the root (child indices).
	Path []int
}

// IsLeaf reports whether the group holds targets rather than child groups.
func (g *Group) IsLeaf() bool {
	return len(g.Children) == 0
}

// Len returns the number of targets under g, recursively.
func (g *Group) Len() int {
	if g == nil {
		return 0
	}
	n := len(g.Targets)
	for _, c := range g.Children {
		n += c.Len()
	}
	return n
}

// Node is either a group or a target of the hierarchy.
type Node struct {
	Group  *Group
	Target *Target
}

// IsTarget reports whether the node is a target.
func (n Node) IsTarget() bool {
	return n.Target != nil
}

// Label returns the node's display label.
func (n Node) Label() string {
	if n.Target != nil {
		return n.Target.Label
	}
	if n.Group != nil {
		return n.Group.Label
	}
	return ""
}

// Catalogue is an immutable, validated scan hierarchy.
type Catalogue struct {
	root      *Group
	targets   []*Target
	byID      map[TargetID]*Target
	byElement map[ElementID]TargetID
	groups    int
	depth     int
	epoch     uint64
}

var epochs atomic.Uint64

// New validates the hierarchy under root and returns a catalogue built from
// a deep copy of it, so later changes to root do not leak into the result.
func New(root *Group) (*Catalogue, error) {
	if root == nil {
		return nil, ErrNilRoot
	}

	c := &Catalogue{
		byID:      make(map[TargetID]*Target),
		byElement: make(map[ElementID]TargetID),
	}

	var probs problems
	seenGroups := make(map[*Group]bool)
	seenTargets := make(map[*Target]bool)
	c.root = c.copyGroup(root, nil, seenGroups, seenTargets, &probs)
	if err := probs.err(); err != nil {
		return nil, err
	}

	c.epoch = epochs.Add(1)
	return c, nil
}

// copyGroup validates g and returns its copy with paths assigned.
func (c *Catalogue) copyGroup(g *Group, path []int, seenGroups map[*Group]bool, seenTargets map[*Target]bool, probs *problems) *Group {
	if seenGroups[g] {
		probs.addf("group %q at %v is reachable more than once (cycle or shared node)", g.Label, path)
		return &Group{Label: g.Label, Path: path}
	}
	seenGroups[g] = true
	c.groups++
	if len(path) > c.depth {
		c.depth = len(path)
	}

	out := &Group{
		Label: g.Label,
		Cycle: g.Cycle,
		Path:  slices.Clone(path),
	}
	if out.Cycle <= 0 {
		out.Cycle = 1
	}

	if len(g.Children) > 0 && len(g.Targets) > 0 {
		probs.addf("group %q at %v holds both groups and targets", g.Label, path)
	}

	for i, child := range g.Children {
		if child == nil {
			probs.addf("group %q at %v has a nil child at %d", g.Label, path, i)
			continue
		}
		childPath := append(slices.Clone(path), i)
		out.Children = append(out.Children, c.copyGroup(child, childPath, seenGroups, seenTargets, probs))
	}

	for i, t := range g.Targets {
		if t == nil {
			probs.addf("group %q at %v has a nil target at %d", g.Label, path, i)
			continue
		}
		if seenTargets[t] {
			probs.addf("target %q belongs to more than one group", t.ID)
			continue
		}
		seenTargets[t] = true
		if t.ID == "" {
			probs.addf("target %d of group %q has no id", i, g.Label)
			continue
		}
		if _, dup := c.byID[t.ID]; dup {
			probs.addf("duplicate target id %q", t.ID)
			continue
		}

		ct := t.clone()
		ct.GroupPath = slices.Clone(path)
		ct.Index = i
		if ct.Cycle <= 0 {
			ct.Cycle = 1
		}
		if ct.Element == "" {
			ct.Element = ElementID(ct.ID)
		}
		if other, dup := c.byElement[ct.Element]; dup {
			probs.addf("element %q is bound to both %q and %q", ct.Element, other, ct.ID)
			continue
		}

		out.Targets = append(out.Targets, ct)
		c.targets = append(c.targets, ct)
		c.byID[ct.ID] = ct
		c.byElement[ct.Element] = ct.ID
	}

	if g.Cycle <= 0 {
		for _, t := range out.Targets {
			out.Cycle = max(out.Cycle, t.Cycle)
		}
	}
	return out
}

// Root returns the root group.
func (c *Catalogue) Root() *Group {
	return c.root
}

// Epoch identifies this catalogue among all catalogues built by the process.
// Later catalogues have larger epochs.
func (c *Catalogue) Epoch() uint64 {
	return c.epoch
}

// Len returns the number of targets.
func (c *Catalogue) Len() int {
	return len(c.targets)
}

// Targets returns all targets in depth-first declaration order.
func (c *Catalogue) Targets() []*Target {
	return slices.Clone(c.targets)
}

// Target returns the target with the given id.
func (c *Catalogue) Target(id TargetID) (*Target, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// Has reports whether id names a target of this catalogue.
func (c *Catalogue) Has(id TargetID) bool {
	_, ok := c.byID[id]
	return ok
}

// Lookup resolves a rendered element to its target.
func (c *Catalogue) Lookup(el ElementID) (TargetID, bool) {
	id, ok := c.byElement[el]
	return id, ok
}

// Node returns the group or target at path. The empty path is the root.
func (c *Catalogue) Node(path []int) (Node, bool) {
	g := c.root
	for i, idx := range path {
		if idx < 0 {
			return Node{}, false
		}
		if g.IsLeaf() {
			if i != len(path)-1 || idx >= len(g.Targets) {
				return Node{}, false
			}
			return Node{Target: g.Targets[idx]}, true
		}
		if idx >= len(g.Children) {
			return Node{}, false
		}
		g = g.Children[idx]
	}
	return Node{Group: g}, true
}

// Summary describes the shape of the catalogue.
type Summary struct {
	Epoch   uint64
	Targets int
	Groups  int
	Depth   int
}

// Summary returns counts describing the catalogue.
func (c *Catalogue) Summary() Summary {
	return Summary{
		Epoch:   c.epoch,
		Targets: len(c.targets),
		Groups:  c.groups,
		Depth:   c.depth,
	}
}

// HasPrefix reports whether path starts with prefix.
func HasPrefix(path, prefix []int) bool {
	if len(prefix) > len(path) {
		return false
	}
	return slices.Equal(path[:len(prefix)], prefix)
}
