package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/scanboard/internal/access"
	"github.com/dshills/scanboard/internal/cue"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SCANBOARD_"

// Config is a snapshot of all settings.
type Config struct {
	Access  AccessConfig  `toml:"access"`
	Cue     CueConfig     `toml:"cue"`
	Logging LoggingConfig `toml:"logging"`
	Board   BoardConfig   `toml:"board"`

	// Path is the file the config was read from, if any.
	Path string `toml:"-"`
}

// AccessConfig holds the scanning settings. Durations use Go syntax ("1s").
type AccessConfig struct {
	Mode               string   `toml:"mode"`
	Interval           string   `toml:"interval"`
	Hold               string   `toml:"hold"`
	CommitOn           string   `toml:"commitOn"`
	RestartAfterSelect bool     `toml:"restartAfterSelect"`
	Triggers           []string `toml:"triggers"`
	RootCycle          int      `toml:"rootCycle"`
	History            int      `toml:"history"`
}

// CueConfig picks a cue style and optionally overrides its look.
type CueConfig struct {
	Style     string  `toml:"style"`
	Color     string  `toml:"color"`
	Opacity   float64 `toml:"opacity"`
	Direction string  `toml:"direction"`
	Repeat    bool    `toml:"repeat"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	File    string `toml:"file"`
	Journal bool   `toml:"journal"`
}

// BoardConfig locates the board files.
type BoardConfig struct {
	Catalogue string `toml:"catalogue"`
	Rules     string `toml:"rules"`
	Columns   int    `toml:"columns"`
}

// Default returns the built-in settings.
func Default() Config {
	ac := access.DefaultConfig()
	return Config{
		Access: AccessConfig{
			Mode:               ac.Mode.String(),
			Interval:           ac.Interval.String(),
			Hold:               ac.Hold.String(),
			CommitOn:           ac.CommitOn.String(),
			RestartAfterSelect: ac.RestartAfterSelect,
			Triggers:           slices.Clone(ac.Triggers),
			RootCycle:          ac.RootCycle,
			History:            ac.HistorySize,
		},
		Cue: CueConfig{
			Style: "overlay",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Board: BoardConfig{
			Columns: 4,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error. The result is not validated.
func Load(path string) (*Config, error) {
	base, err := toMap(Default())
	if err != nil {
		return nil, err
	}

	if path != "" {
		file, err := readTOML(path)
		if err != nil {
			return nil, err
		}
		base = DeepMerge(base, file)
	}

	// Unknown environment names are ignored rather than rejected.
	env := pruneUnknown(NewEnvLoader(EnvPrefix).Load(), base)
	base = DeepMerge(base, env)

	cfg, err := fromMap(base)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes TOML data over the defaults without environment overrides.
func Parse(data []byte) (*Config, error) {
	base, err := toMap(Default())
	if err != nil {
		return nil, err
	}
	var file map[string]any
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, &ParseError{Path: "<data>", Err: err}
	}
	cfg, err := fromMap(DeepMerge(base, file))
	if err != nil {
		return nil, &ParseError{Path: "<data>", Err: err}
	}
	return cfg, nil
}

func readTOML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return m, nil
}

func toMap(c Config) (map[string]any, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding defaults: %w", err)
	}
	return m, nil
}

func fromMap(m map[string]any) (*Config, error) {
	data, err := toml.Marshal(m)
	if err != nil {
		return nil, err
	}
	var c Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every section and reports all invalid settings.
func (c *Config) Validate() error {
	var fe fieldErrors
	c.Access.validate(&fe)
	c.Cue.validate(&fe)
	c.Logging.validate(&fe)
	if c.Board.Columns < 0 {
		fe.add("board.columns", c.Board.Columns, "must not be negative")
	}
	return fe.err()
}

func (a AccessConfig) validate(fe *fieldErrors) {
	_, _ = a.engine(fe)
}

// Engine converts the section to the engine's configuration. Unparseable
// fields are left invalid in the result so that the engine degrades, and
// are reported in the returned *ValidationError.
func (a AccessConfig) Engine() (access.Config, error) {
	var fe fieldErrors
	return a.engine(&fe)
}

func (a AccessConfig) engine(fe *fieldErrors) (access.Config, error) {
	cfg := access.Config{
		RestartAfterSelect: a.RestartAfterSelect,
		Triggers:           slices.Clone(a.Triggers),
		RootCycle:          a.RootCycle,
		HistorySize:        a.History,
	}

	// Unknown values map to out-of-range constants so the engine degrades.
	mode, err := access.ParseMode(a.Mode)
	if err != nil {
		fe.add("access.mode", a.Mode, "want scan or direct")
		mode = access.Mode(^uint8(0))
	}
	cfg.Mode = mode

	commit, err := access.ParseCommitOn(a.CommitOn)
	if err != nil {
		fe.add("access.commitOn", a.CommitOn, "want press or release")
		commit = access.CommitOn(^uint8(0))
	}
	cfg.CommitOn = commit

	cfg.Interval = parseDuration(fe, "access.interval", a.Interval)
	cfg.Hold = parseDuration(fe, "access.hold", a.Hold)

	if _, err := access.NewTriggers(a.Triggers); err != nil {
		fe.add("access.triggers", a.Triggers, err.Error())
	}
	if a.RootCycle < 0 {
		fe.add("access.rootCycle", a.RootCycle, "must not be negative")
	}
	if a.History < 0 {
		fe.add("access.history", a.History, "must not be negative")
	}
	if err := cfg.Validate(); err != nil && len(*fe) == 0 {
		fe.add("access", cfg.String(), err.Error())
	}
	return cfg, fe.err()
}

func parseDuration(fe *fieldErrors, path, s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		fe.add(path, s, "not a duration")
		return 0
	}
	if d <= 0 {
		fe.add(path, s, "must be positive")
	}
	return d
}

func (c CueConfig) validate(fe *fieldErrors) {
	if _, err := c.Resolve(cue.DefaultList()); err != nil {
		fe.add("cue", c.Style, err.Error())
	}
}

// Resolve picks the configured style from list and applies the overrides.
func (c CueConfig) Resolve(list *cue.List) (cue.Style, error) {
	s, err := list.Select(c.Style)
	if err != nil {
		return cue.Style{}, err
	}
	if c.Color != "" {
		s.Color = c.Color
	}
	if c.Opacity != 0 {
		s.Opacity = c.Opacity
	}
	if c.Direction != "" {
		s.Direction = cue.Direction(c.Direction)
	}
	if c.Repeat {
		s.Repeat = true
	}
	if err := s.Validate(); err != nil {
		return cue.Style{}, err
	}
	return s, nil
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

func (l LoggingConfig) validate(fe *fieldErrors) {
	if !slices.Contains(logLevels, l.Level) {
		fe.add("logging.level", l.Level, "must be one of debug, info, warn, error")
	}
	if !slices.Contains(logFormats, l.Format) {
		fe.add("logging.format", l.Format, "must be text or json")
	}
}
