// Package event provides the in-process event bus that connects the access
// engine to its observers.
//
// The engine itself never depends on the bus. The application publishes cue
// changes, committed selections and reload notices so that the renderer, the
// dispatch bridge and the trace recorder stay decoupled from each other.
//
// # Topics
//
// Events use hierarchical topics with dot notation:
//
//	cue.changed           - the highlighted node changed
//	selection.committed   - a target was selected
//	catalogue.loaded      - a new catalogue replaced the old one
//	config.reloaded       - the configuration file changed on disk
//
// Subscriptions may use "*" for one segment and "**" for any number of
// segments.
//
// # Delivery
//
// Sync subscriptions run in the publisher's goroutine in priority order.
// Async subscriptions are queued to a single worker, so they observe events
// in publish order. A full queue drops the delivery and Publish reports
// ErrQueueFull.
//
// # Example
//
//	bus := event.NewBus(event.WithLogger(logger))
//	_ = bus.Start()
//	defer bus.Stop(ctx)
//
//	bus.Subscribe(event.TopicSelectionCommitted, event.AsHandlerFunc(
//	    func(ctx context.Context, ev event.Event[bridge.Selection]) error {
//	        fmt.Println(ev.Payload.Target)
//	        return nil
//	    }))
package event
