// Package delivery holds the inbound transports of the service.
package delivery

import "context"

// Delivery is a transport started by the application and stopped through its fx lifecycle.
type Delivery interface {
	Serve(ctx context.Context) error
}
