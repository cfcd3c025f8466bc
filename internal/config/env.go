package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// EnvLoader reads overrides from prefixed environment variables.
type EnvLoader struct {
	prefix  string
	lookup  func() []string
	mapping map[string]string
}

// NewEnvLoader creates a loader for variables starting with prefix, which
// should include the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix: prefix,
		lookup: os.Environ,
		mapping: map[string]string{
			prefix + "LOG_LEVEL": "logging.level",
			prefix + "BOARD":     "board.catalogue",
			prefix + "RULES":     "board.rules",
		},
	}
}

// Load returns the overrides as a nested map.
func (l *EnvLoader) Load() map[string]any {
	out := make(map[string]any)
	for _, kv := range l.lookup() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		SetByPath(out, path, parseValue(value))
	}
	return out
}

// envToPath converts SCANBOARD_ACCESS_COMMIT_ON to access.commitOn.
func (l *EnvLoader) envToPath(env string) string {
	parts := strings.Split(strings.TrimPrefix(env, l.prefix), "_")
	if len(parts) < 2 || parts[0] == "" {
		return ""
	}
	setting := strings.ToLower(parts[1])
	for _, p := range parts[2:] {
		if p != "" {
			setting += strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
		}
	}
	return strings.ToLower(parts[0]) + "." + setting
}

// parseValue converts an environment string to a bool, number, JSON list
// or string. Durations stay strings.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	if strings.HasPrefix(s, "[") {
		var v []any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}
