package supervisor

import (
	"crypto/tls"
	"errors"
	"net"
)

// ListenerController abstracts TCP listener operations so the supervisor's
// entrypoint binding can be exercised without opening real sockets.
// All methods must be idempotent where applicable.
type ListenerController interface {
	// Listen creates a TCP listener on the given address.
	// tlsCfg is reserved: the production implementation ignores it and
	// always returns a plaintext listener.
	// Returns the listener and any error.
	Listen(addr string, tlsCfg *tls.Config) (net.Listener, error)

	// Close closes the given listener.
	// Idempotent: closing an already-closed listener returns nil.
	Close(listener net.Listener) error
}

// netListenerController is the production ListenerController: a plain
// net.Listen, TLS reserved but unwired (spec.md §9's TLS open question —
// entrypoints serve plaintext regardless of tlsCfg).
type netListenerController struct{}

// NewListenerController returns the default, real-socket ListenerController.
func NewListenerController() ListenerController {
	return netListenerController{}
}

func (netListenerController) Listen(addr string, tlsCfg *tls.Config) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

func (netListenerController) Close(listener net.Listener) error {
	if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
