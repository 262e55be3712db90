package interfaces

import "context"

// Runnable is a long-lived component driven by a context, like the bridge monitor
// or the http server
type Runnable interface {
	Run(ctx context.Context) error
}
