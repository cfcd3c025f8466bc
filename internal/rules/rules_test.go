package rules

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestApplyRulesGlobalFunction(t *testing.T) {
	var got []Emission
	d, err := NewLuaDispatcher(`
		function apply_rules(name, gesture, data)
			board.emit(name, { gesture = gesture, text = data.text, words = data.words })
		end
	`, WithEmitter(func(e Emission) { got = append(got, e) }))
	if err != nil {
		t.Fatalf("NewLuaDispatcher() error = %v", err)
	}
	defer d.Close()

	err = d.ApplyRules("say", "press", map[string]any{"text": "hello", "words": []any{"a", "b"}})
	if err != nil {
		t.Fatalf("ApplyRules() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("emissions = %v, want 1", got)
	}
	e := got[0]
	if e.Rule != "say" || e.Kind != "say" {
		t.Errorf("emission = %+v, want rule and kind say", e)
	}
	p, ok := e.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload = %T, want map", e.Payload)
	}
	if p["gesture"] != "press" || p["text"] != "hello" {
		t.Errorf("payload = %v", p)
	}
	if words, _ := p["words"].([]any); !slices.Equal(words, []any{"a", "b"}) {
		t.Errorf("payload words = %v, want [a b]", p["words"])
	}
}

func TestApplyRulesTable(t *testing.T) {
	var got []Emission
	d, err := NewLuaDispatcher(`
		rules = {
			speak = function(gesture, data) board.emit("speech", data.text) end,
			clear = function(gesture, data) return false end,
		}
	`, WithEmitter(func(e Emission) { got = append(got, e) }))
	if err != nil {
		t.Fatalf("NewLuaDispatcher() error = %v", err)
	}
	defer d.Close()

	if err := d.ApplyRules("speak", "press", map[string]any{"text": "yes"}); err != nil {
		t.Fatalf("ApplyRules(speak) error = %v", err)
	}
	if len(got) != 1 || got[0].Payload != "yes" || got[0].Rule != "speak" {
		t.Errorf("emissions = %+v", got)
	}

	tests := []struct {
		name string
		want error
	}{
		{"clear", ErrNoRule},
		{"missing", ErrNoRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.ApplyRules(tt.name, "press", nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("ApplyRules(%q) error = %v, want %v", tt.name, err, tt.want)
			}
			var re *RuleError
			if !errors.As(err, &re) || re.Name != tt.name {
				t.Errorf("ApplyRules(%q) error = %v, want RuleError", tt.name, err)
			}
		})
	}

	names := d.Names()
	slices.Sort(names)
	if !slices.Equal(names, []string{"clear", "speak"}) {
		t.Errorf("Names() = %v, want [clear speak]", names)
	}
}

func TestApplyRulesRuntimeError(t *testing.T) {
	d, err := NewLuaDispatcher(`function apply_rules() error("broken rule") end`)
	if err != nil {
		t.Fatalf("NewLuaDispatcher() error = %v", err)
	}
	defer d.Close()

	err = d.ApplyRules("x", "press", nil)
	if err == nil || !strings.Contains(err.Error(), "broken rule") {
		t.Errorf("ApplyRules() error = %v, want broken rule", err)
	}
}

func TestSandbox(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"dofile", "dofile"},
		{"loadstring", "loadstring"},
		{"require", "require"},
		{"os", "os"},
		{"io", "io"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewLuaDispatcher(`
				function apply_rules()
					if ` + tt.expr + ` ~= nil then error("exposed") end
				end
			`)
			if err != nil {
				t.Fatalf("NewLuaDispatcher() error = %v", err)
			}
			defer d.Close()
			if err := d.ApplyRules("probe", "press", nil); err != nil {
				t.Errorf("%s is reachable from rules: %v", tt.expr, err)
			}
		})
	}
}

func TestTimeout(t *testing.T) {
	d, err := NewLuaDispatcher(`function apply_rules() while true do end end`, WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewLuaDispatcher() error = %v", err)
	}
	defer d.Close()

	start := time.Now()
	if err := d.ApplyRules("spin", "press", nil); err == nil {
		t.Fatal("ApplyRules() error = nil, want timeout")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("ApplyRules() took %v", elapsed)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.lua")
	if err := os.WriteFile(path, []byte(`rules = { ok = function() end }`), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if err := d.ApplyRules("ok", "press", nil); err != nil {
		t.Errorf("ApplyRules() error = %v", err)
	}
	d.Close()
	if err := d.ApplyRules("ok", "press", nil); !errors.Is(err, ErrStateClosed) {
		t.Errorf("ApplyRules() after Close error = %v, want %v", err, ErrStateClosed)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.lua")); err == nil {
		t.Error("LoadFile(missing) error = nil")
	}
	if _, err := NewLuaDispatcher(`this is not lua`); err == nil {
		t.Error("NewLuaDispatcher(bad syntax) error = nil")
	}
}

func TestConvertRoundTrip(t *testing.T) {
	d, err := NewLuaDispatcher(`
		function apply_rules(name, gesture, data) board.emit("echo", data) end
	`)
	if err != nil {
		t.Fatalf("NewLuaDispatcher() error = %v", err)
	}
	defer d.Close()

	var got any
	d.emit = func(e Emission) { got = e.Payload }
	in := map[string]any{"n": 3, "f": 1.5, "ok": true, "tags": []string{"x"}}
	if err := d.ApplyRules("echo", "press", in); err != nil {
		t.Fatalf("ApplyRules() error = %v", err)
	}
	m, _ := got.(map[string]any)
	if m["n"] != int64(3) || m["f"] != 1.5 || m["ok"] != true {
		t.Errorf("round trip = %v", m)
	}
	if tags, _ := m["tags"].([]any); len(tags) != 1 || tags[0] != "x" {
		t.Errorf("round trip tags = %v", m["tags"])
	}
}
