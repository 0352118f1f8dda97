// Package tui implements the interactive service browser behind
// `argo browse`.
//
// The browser sends a probe on start, then lists every service the local
// response listener accepts while it runs. Built on Bubble Tea, it follows
// the Model-Update-View pattern with value-receiver updates.
//
// # Screens
//
//   - List: services from the listener cache with filtering (bubbles/list),
//     a spinner and progress bar while a probe is in flight
//   - Detail: one service rendered by ui.RenderService in a scrolling
//     viewport
//
// Both screens use RenderApplicationContainer for the shared frame: app
// header with live counts, content, and context-sensitive help at the bottom.
//
// # Wiring
//
// The browser does not own the network. The caller supplies a Config:
//
//	l, _ := listener.New(listener.Config{}, nil)
//	updates, cancel := l.Subscribe()
//	defer cancel()
//
//	err := tui.Run(ctx, tui.Config{
//	    Probe:     func(ctx context.Context) error { return sender.Send(ctx, probe) },
//	    Responses: updates,
//	    Services:  l.Cache().Values,
//	    Clear:     l.Cache().Clear,
//	})
//
// # Keys
//
//	↑/↓ or k/j   move
//	enter        service details
//	/            filter by id, contract or name
//	p            probe again
//	c            clear the cache
//	esc          back from details
//	q            quit
package tui
