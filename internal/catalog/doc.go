// Package catalog holds the target catalogue consumed by the access engine.
//
// A Catalogue is an immutable scan hierarchy: a tree of Groups whose leaves
// are Targets. It is built once per board design and replaced wholesale when
// the design changes; nothing in a published Catalogue is mutated afterwards.
//
// # Identity
//
// Targets are addressed by a stable TargetID. Rendered elements are
// associated with targets through a lookup table keyed by ElementID, so the
// catalogue never holds a reference to a UI element:
//
//	id, ok := cat.Lookup(catalog.ElementID("btn-17"))
//
// # Building
//
// Build turns a designer Spec into a Catalogue. A Spec lists the targets
// (content rows) and a layout of entries. A "group" entry nests other
// entries; a "button" entry selects targets by id, name, tags, or label and
// can split them into one group per distinct field value with groupBy:
//
//	groups:
//	  - type: button
//	    name: kb
//	    groupBy: row
//	    label: "row #row"
//	    cycle: 2
//
// Each Catalogue gets a fresh epoch so consumers can recognise work that
// belongs to a replaced catalogue.
package catalog
