package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/scanboard/internal/access"
	"github.com/dshills/scanboard/internal/catalog"
)

// KindTick advances the clock without an input event.
const KindTick = "tick"

// Errors returned while parsing a trace.
var (
	ErrInvalidJSON = errors.New("invalid JSON")
	ErrMissingTime = errors.New(`missing "at"`)
	ErrUnknownKind = errors.New("unknown event kind")
	ErrOutOfOrder  = errors.New("time goes backwards")
)

// LineError locates a parse failure.
type LineError struct {
	Line int
	Err  error
}

// Error implements the error interface.
func (e *LineError) Error() string {
	return fmt.Sprintf("trace line %d: %v", e.Line, e.Err)
}

// Unwrap returns the underlying error.
func (e *LineError) Unwrap() error {
	return e.Err
}

// Step is one line of a trace.
type Step struct {
	At   time.Duration
	Tick bool
	Raw  access.RawEvent
}

// Parse reads a trace. Event times are start plus each line's offset, and
// offsets must not decrease.
func Parse(r io.Reader, start time.Time) ([]Step, error) {
	var steps []Step
	var last time.Duration
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		step, err := parseLine(text, start)
		if err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		if step.At < last {
			return nil, &LineError{Line: line, Err: fmt.Errorf("%w: %v after %v", ErrOutOfOrder, step.At, last)}
		}
		last = step.At
		steps = append(steps, step)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return steps, nil
}

func parseLine(text string, start time.Time) (Step, error) {
	if !gjson.Valid(text) {
		return Step{}, ErrInvalidJSON
	}
	fields := gjson.GetMany(text, "at", "kind", "element", "pointer")

	at, err := offset(fields[0])
	if err != nil {
		return Step{}, err
	}
	step := Step{At: at}

	kind := fields[1].String()
	if kind == KindTick {
		step.Tick = true
		return step, nil
	}
	rk, ok := access.ParseRawKind(kind)
	if !ok {
		return Step{}, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	step.Raw = access.RawEvent{
		Kind:      rk,
		Element:   catalog.ElementID(fields[2].String()),
		PointerID: int(fields[3].Int()),
		Time:      start.Add(at),
	}
	return step, nil
}

func offset(v gjson.Result) (time.Duration, error) {
	switch v.Type {
	case gjson.Number:
		return time.Duration(v.Float() * float64(time.Millisecond)), nil
	case gjson.String:
		d, err := time.ParseDuration(v.Str)
		if err != nil {
			return 0, fmt.Errorf("bad time %q: %w", v.Str, err)
		}
		return d, nil
	default:
		return 0, ErrMissingTime
	}
}

// Clock is the part of the engine a replay drives.
type Clock interface {
	Advance(now time.Time) int
	Handle(raw access.RawEvent) access.Disposition
}

// Replay feeds steps to the engine in order, advancing its clock to each
// step's time before handling its event, and finally to start plus tail
// past the last step so that trailing timers fire.
func Replay(c Clock, steps []Step, start time.Time, tail time.Duration) {
	var end time.Duration
	for _, s := range steps {
		c.Advance(start.Add(s.At))
		if !s.Tick {
			c.Handle(s.Raw)
		}
		end = s.At
	}
	c.Advance(start.Add(end + tail))
}
