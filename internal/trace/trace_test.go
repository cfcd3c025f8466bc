package trace

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/scanboard/internal/access"
	"github.com/dshills/scanboard/internal/bridge"
	"github.com/dshills/scanboard/internal/catalog"
	"github.com/dshills/scanboard/internal/event"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	in := `
# pointer then switch
{"at": 0, "kind": "over", "element": "yes"}
{"at": 1500.5, "kind": "down", "element": "yes", "pointer": 2}

{"at": "2s", "kind": "switchdown"}
{"at": 3000, "kind": "tick"}
`
	steps, err := Parse(strings.NewReader(in), t0)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(steps) != 4 {
		t.Fatalf("Parse() = %d steps, want 4", len(steps))
	}

	down := steps[1]
	if down.Raw.Kind != access.RawDown || down.Raw.Element != "yes" || down.Raw.PointerID != 2 {
		t.Errorf("steps[1] = %+v", down)
	}
	if want := t0.Add(1500*time.Millisecond + 500*time.Microsecond); !down.Raw.Time.Equal(want) {
		t.Errorf("steps[1].Raw.Time = %v, want %v", down.Raw.Time, want)
	}
	if steps[2].Raw.Kind != access.RawSwitchDown || steps[2].At != 2*time.Second {
		t.Errorf("steps[2] = %+v", steps[2])
	}
	if !steps[3].Tick {
		t.Errorf("steps[3].Tick = false, want true")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		line int
		want error
	}{
		{"bad json", `{"at": 0,`, 1, ErrInvalidJSON},
		{"no time", `{"kind": "over"}`, 1, ErrMissingTime},
		{"bad kind", "{\"at\": 0, \"kind\": \"over\"}\n{\"at\": 1, \"kind\": \"hover\"}", 2, ErrUnknownKind},
		{"backwards", "{\"at\": 10, \"kind\": \"tick\"}\n{\"at\": 5, \"kind\": \"tick\"}", 2, ErrOutOfOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in), t0)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Parse() error = %v, want %v", err, tt.want)
			}
			var le *LineError
			if !errors.As(err, &le) || le.Line != tt.line {
				t.Errorf("Parse() error = %v, want line %d", err, tt.line)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	sel := bridge.Selection{
		Serial:  4,
		Target:  "b1",
		Label:   "Bee",
		Action:  "say",
		Data:    map[string]any{"text": "b1"},
		Gesture: bridge.GesturePress,
		Trigger: access.TriggerSwitch,
		Time:    t0.Add(2500 * time.Millisecond),
		Epoch:   9,
	}
	line, err := Encode(sel, t0)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	tests := []struct {
		path string
		want string
	}{
		{"serial", "4"},
		{"at", "2500"},
		{"target", "b1"},
		{"label", "Bee"},
		{"action", "say"},
		{"trigger", "switch"},
		{"epoch", "9"},
		{"data.text", "b1"},
	}
	for _, tt := range tests {
		if got := gjson.GetBytes(line, tt.path).String(); got != tt.want {
			t.Errorf("Encode() %s = %q, want %q (%s)", tt.path, got, tt.want, line)
		}
	}

	sel.Data, sel.Label = nil, ""
	line, _ = Encode(sel, t0)
	if gjson.GetBytes(line, "data").Exists() || gjson.GetBytes(line, "label").Exists() {
		t.Errorf("Encode() wrote empty fields: %s", line)
	}
}

func TestReplayRecordsSelections(t *testing.T) {
	cat, err := catalog.New(&catalog.Group{
		Label: "root",
		Children: []*catalog.Group{
			{Label: "A", Targets: []*catalog.Target{{ID: "a1"}, {ID: "a2"}}},
			{Label: "B", Targets: []*catalog.Target{
				{ID: "b1", Action: catalog.ActionRef{Name: "say", Data: map[string]any{"text": "b1"}}},
			}},
		},
	})
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}

	bus := event.NewBus()
	if err := bus.Start(); err != nil {
		t.Fatal(err)
	}
	defer bus.Stop(context.Background())

	var out bytes.Buffer
	rec := NewRecorder(&out, t0)
	if _, err := bus.Subscribe(event.TopicSelectionCommitted, rec.Handler()); err != nil {
		t.Fatal(err)
	}

	br := bridge.New(nil, bridge.WithBus(bus))
	eng := access.NewEngine(access.WithStart(t0), access.WithCommitHandler(br.Commit))
	if err := eng.Load(cat, access.DefaultConfig()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	steps, err := Parse(strings.NewReader(`
{"at": 1200, "kind": "down", "element": "a1"}
{"at": 1250, "kind": "up", "element": "a1"}
{"at": 1500, "kind": "down", "element": "b1"}
{"at": 1550, "kind": "up", "element": "b1"}
`), t0)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	Replay(eng, steps, t0, time.Second)

	if rec.Count() != 1 {
		t.Fatalf("recorded %d selections, want 1: %s", rec.Count(), out.String())
	}
	line := out.Bytes()
	if got := gjson.GetBytes(line, "target").String(); got != "b1" {
		t.Errorf("target = %q, want b1", got)
	}
	if got := gjson.GetBytes(line, "at").Int(); got != 1500 {
		t.Errorf("at = %d, want 1500", got)
	}
	if !eng.Now().Equal(t0.Add(2550 * time.Millisecond)) {
		t.Errorf("Now() = %v, want tail applied", eng.Now())
	}
}
