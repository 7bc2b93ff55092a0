// Package workers runs the long-lived parts of a miniservice host side by
// side: the HTTP server, the event journal and anything else with a
// blocking Run.
package workers

import "context"

// Worker blocks in Run until ctx is done or it fails.
//
// Example implementation:
//
//	type Ticker struct{}
//
//	func (Ticker) Name() string { return "ticker" }
//
//	func (Ticker) Run(ctx context.Context) error {
//	    <-ctx.Done()
//	    return nil
//	}
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}
