package rules

import (
	"fmt"
	"log/slog"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Emission is an effect a rule handed to the host with board.emit.
type Emission struct {
	Rule    string
	Kind    string
	Payload any
}

// Option configures a LuaDispatcher.
type Option func(*LuaDispatcher)

// WithEmitter sets the function that receives board.emit calls.
func WithEmitter(fn func(Emission)) Option {
	return func(d *LuaDispatcher) {
		d.emit = fn
	}
}

// WithLogger sets the logger used by board.log.
func WithLogger(l *slog.Logger) Option {
	return func(d *LuaDispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithTimeout bounds each script call.
func WithTimeout(t time.Duration) Option {
	return func(d *LuaDispatcher) {
		d.timeout = t
	}
}

// LuaDispatcher applies actions by calling into a rules script. It
// satisfies bridge.Dispatcher.
type LuaDispatcher struct {
	state   *state
	emit    func(Emission)
	logger  *slog.Logger
	timeout time.Duration

	// current is the rule being applied, for board.emit attribution.
	current string
}

func newDispatcher(opts []Option) *LuaDispatcher {
	d := &LuaDispatcher{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.state = newState(d.timeout)
	d.installBoard()
	return d
}

// NewLuaDispatcher compiles and runs src, which must define the rules.
func NewLuaDispatcher(src string, opts ...Option) (*LuaDispatcher, error) {
	d := newDispatcher(opts)
	if err := d.state.doString(src); err != nil {
		d.Close()
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	return d, nil
}

// LoadFile loads a rules script from path.
func LoadFile(path string, opts ...Option) (*LuaDispatcher, error) {
	d := newDispatcher(opts)
	if err := d.state.doFile(path); err != nil {
		d.Close()
		return nil, fmt.Errorf("loading rules %s: %w", path, err)
	}
	return d, nil
}

// installBoard registers the board module.
func (d *LuaDispatcher) installBoard() {
	L := d.state.L
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"emit": d.luaEmit,
		"log":  d.luaLog,
	})
	L.SetGlobal("board", mod)
}

func (d *LuaDispatcher) luaEmit(L *lua.LState) int {
	kind := L.CheckString(1)
	e := Emission{Rule: d.current, Kind: kind, Payload: toGo(L.Get(2))}
	if d.emit != nil {
		d.emit(e)
	}
	return 0
}

func (d *LuaDispatcher) luaLog(L *lua.LState) int {
	d.logger.Info("rule log", "rule", d.current, "msg", L.CheckString(1))
	return 0
}

// ApplyRules runs the rule for name. The global apply_rules function takes
// precedence over the rules table. A rule that returns false did not handle
// the action and yields ErrNoRule.
func (d *LuaDispatcher) ApplyRules(name, gesture string, data map[string]any) error {
	err := d.state.run(func(L *lua.LState) error {
		d.current = name
		defer func() { d.current = "" }()

		var fn lua.LValue
		var args []lua.LValue
		if f, ok := L.GetGlobal("apply_rules").(*lua.LFunction); ok {
			fn = f
			args = []lua.LValue{lua.LString(name), lua.LString(gesture), toLua(L, data)}
		} else if tbl, ok := L.GetGlobal("rules").(*lua.LTable); ok {
			if f, ok := tbl.RawGetString(name).(*lua.LFunction); ok {
				fn = f
				args = []lua.LValue{lua.LString(gesture), toLua(L, data)}
			}
		}
		if fn == nil {
			return ErrNoRule
		}

		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
			return err
		}
		ret := L.Get(-1)
		L.Pop(1)
		if ret == lua.LFalse {
			return ErrNoRule
		}
		return nil
	})
	if err != nil {
		return &RuleError{Name: name, Err: err}
	}
	return nil
}

// Names returns the actions of the rules table, if the script defines one.
func (d *LuaDispatcher) Names() []string {
	var names []string
	_ = d.state.run(func(L *lua.LState) error {
		tbl, ok := L.GetGlobal("rules").(*lua.LTable)
		if !ok {
			return nil
		}
		tbl.ForEach(func(k, v lua.LValue) {
			if _, ok := v.(*lua.LFunction); ok {
				names = append(names, k.String())
			}
		})
		return nil
	})
	return names
}

// Close releases the interpreter.
func (d *LuaDispatcher) Close() {
	d.state.close()
}
