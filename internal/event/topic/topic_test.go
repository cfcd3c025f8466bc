package topic

import "testing"

func TestTopic_Segments(t *testing.T) {
	tests := []struct {
		topic    Topic
		expected []string
	}{
		{Topic("selection.committed"), []string{"selection", "committed"}},
		{Topic("single"), []string{"single"}},
		{Topic(""), nil},
	}

	for _, tt := range tests {
		t.Run(tt.topic.String(), func(t *testing.T) {
			got := tt.topic.Segments()
			if len(got) != len(tt.expected) {
				t.Fatalf("Topic.Segments() = %v, want %v", got, tt.expected)
			}
			for i, seg := range got {
				if seg != tt.expected[i] {
					t.Errorf("Topic.Segments()[%d] = %v, want %v", i, seg, tt.expected[i])
				}
			}
		})
	}
}

func TestTopic_Matches(t *testing.T) {
	tests := []struct {
		topic    Topic
		pattern  Topic
		expected bool
	}{
		{"cue.changed", "cue.changed", true},
		{"cue.changed", "cue.*", true},
		{"cue.changed", "*.changed", true},
		{"cue.changed", "**", true},
		{"access.engine.degraded", "access.**", true},
		{"access", "access.**", true},
		{"access.engine.degraded", "access.*", false},
		{"cue.changed", "selection.*", false},
		{"cue", "cue.changed", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.topic)+"~"+string(tt.pattern), func(t *testing.T) {
			if got := tt.topic.Matches(tt.pattern); got != tt.expected {
				t.Errorf("Topic(%q).Matches(%q) = %v, want %v", tt.topic, tt.pattern, got, tt.expected)
			}
		})
	}
}

func TestTopic_IsValid(t *testing.T) {
	tests := []struct {
		topic    Topic
		expected bool
	}{
		{"cue.changed", true},
		{"", false},
		{".cue", false},
		{"cue.", false},
		{"cue..changed", false},
	}
	for _, tt := range tests {
		if got := tt.topic.IsValid(); got != tt.expected {
			t.Errorf("Topic(%q).IsValid() = %v, want %v", tt.topic, got, tt.expected)
		}
	}
}

func TestTopic_ChildAndJoin(t *testing.T) {
	if got := Topic("selection").Child("committed"); got != "selection.committed" {
		t.Errorf("Child() = %q", got)
	}
	if got := Topic("").Child("cue"); got != "cue" {
		t.Errorf("Child() on empty = %q", got)
	}
	if got := Join("cue", "changed"); got != "cue.changed" {
		t.Errorf("Join() = %q", got)
	}
	if !Topic("cue.*").IsWildcard() || Topic("cue.changed").IsWildcard() {
		t.Error("IsWildcard() wrong")
	}
}
