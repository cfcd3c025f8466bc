package event

import "github.com/dshills/scanboard/internal/event/topic"

// Topics published by the access engine and its collaborators.
const (
	// TopicCueChanged carries the []cue.Descriptor of the new cue whenever a
	// highlighted node or its source changes.
	TopicCueChanged topic.Topic = "cue.changed"

	// TopicSelectionCommitted carries a bridge.Selection for every commit.
	TopicSelectionCommitted topic.Topic = "selection.committed"

	// TopicCatalogueLoaded carries a catalog.Summary after a successful load.
	TopicCatalogueLoaded topic.Topic = "catalogue.loaded"

	// TopicConfigReloaded carries the new access configuration.
	TopicConfigReloaded topic.Topic = "config.reloaded"

	// TopicDispatchFailed carries the error of a failed dispatch.
	TopicDispatchFailed topic.Topic = "selection.failed"

	// TopicRuleEmitted carries a rules.Emission raised by a rule script.
	TopicRuleEmitted topic.Topic = "rules.emitted"
)
