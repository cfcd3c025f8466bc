package trace

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tidwall/sjson"

	"github.com/dshills/scanboard/internal/bridge"
	"github.com/dshills/scanboard/internal/event"
)

// Encode renders a selection as one JSON object. Times are milliseconds
// since start.
func Encode(sel bridge.Selection, start time.Time) ([]byte, error) {
	doc := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			doc, err = sjson.SetBytes(doc, path, v)
		}
	}
	set("serial", sel.Serial)
	set("at", sel.Time.Sub(start).Milliseconds())
	set("target", string(sel.Target))
	if sel.Label != "" {
		set("label", sel.Label)
	}
	set("action", sel.Action)
	set("gesture", sel.Gesture)
	set("trigger", sel.Trigger)
	set("epoch", sel.Epoch)
	if len(sel.Data) > 0 {
		set("data", sel.Data)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding selection %d: %w", sel.Serial, err)
	}
	return doc, nil
}

// Recorder writes selections to w as JSON lines.
type Recorder struct {
	mu    sync.Mutex
	w     io.Writer
	start time.Time
	n     int
}

// NewRecorder creates a recorder with times relative to start.
func NewRecorder(w io.Writer, start time.Time) *Recorder {
	return &Recorder{w: w, start: start}
}

// Record writes one selection.
func (r *Recorder) Record(sel bridge.Selection) error {
	line, err := Encode(sel, r.start)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(append(line, '\n')); err != nil {
		return err
	}
	r.n++
	return nil
}

// Count returns the number of selections written.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Handler adapts the recorder to the event bus.
func (r *Recorder) Handler() event.Handler {
	return event.AsHandlerFunc(func(_ context.Context, ev event.Event[bridge.Selection]) error {
		return r.Record(ev.Payload)
	})
}
