package access

import (
	"testing"
	"time"

	"github.com/dshills/scanboard/internal/catalog"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

// groupsAB is group A {a1, a2} and group B {b1}.
func groupsAB(t *testing.T) *catalog.Catalogue {
	t.Helper()
	cat, err := catalog.New(&catalog.Group{
		Label: "root",
		Children: []*catalog.Group{
			{Label: "A", Targets: []*catalog.Target{
				{ID: "a1", Action: catalog.ActionRef{Name: "say", Data: map[string]any{"text": "a1"}}},
				{ID: "a2", Action: catalog.ActionRef{Name: "say", Data: map[string]any{"text": "a2"}}},
			}},
			{Label: "B", Targets: []*catalog.Target{
				{ID: "b1", Action: catalog.ActionRef{Name: "say", Data: map[string]any{"text": "b1"}}},
			}},
		},
	})
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	return cat
}

// flat is a single leaf group with the given target ids.
func flat(t *testing.T, ids ...string) *catalog.Catalogue {
	t.Helper()
	root := &catalog.Group{Label: "root"}
	for _, id := range ids {
		root.Targets = append(root.Targets, &catalog.Target{ID: catalog.TargetID(id)})
	}
	cat, err := catalog.New(root)
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	return cat
}

// commits records committed targets.
type commits struct {
	list []Commit
}

func (c *commits) handle(cm Commit) {
	c.list = append(c.list, cm)
}

func (c *commits) ids() []catalog.TargetID {
	out := make([]catalog.TargetID, len(c.list))
	for i, cm := range c.list {
		out[i] = cm.Target.ID
	}
	return out
}

func newTestEngine(t *testing.T, cat *catalog.Catalogue, cfg Config) (*Engine, *commits) {
	t.Helper()
	rec := &commits{}
	e := NewEngine(WithStart(t0), WithCommitHandler(rec.handle))
	if err := e.Load(cat, cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return e, rec
}

func over(el string, ms int) RawEvent {
	return RawEvent{Kind: RawOver, Element: catalog.ElementID(el), Time: at(ms)}
}

func out(el string, ms int) RawEvent {
	return RawEvent{Kind: RawOut, Element: catalog.ElementID(el), Time: at(ms)}
}

func down(el string, ms int) RawEvent {
	return RawEvent{Kind: RawDown, Element: catalog.ElementID(el), Time: at(ms)}
}

func up(el string, ms int) RawEvent {
	return RawEvent{Kind: RawUp, Element: catalog.ElementID(el), Time: at(ms)}
}
