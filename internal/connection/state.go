package connection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/core-coin/bursa/internal/connector"
	"github.com/core-coin/bursa/internal/models"
)

// Event names the transition that produced a State.
type Event int

const (
	EventNone Event = iota
	EventConnectRequested
	EventConnectSucceeded
	EventConnectFailed
	EventDisconnected
	EventChainChanged
)

func (e Event) String() string {
	switch e {
	case EventConnectRequested:
		return "connect-requested"
	case EventConnectSucceeded:
		return "connected"
	case EventConnectFailed:
		return "connect-failed"
	case EventDisconnected:
		return "disconnected"
	case EventChainChanged:
		return "chain-changed"
	}
	return "none"
}

// State is a snapshot of the connection. ChainID 0 means no chain.
type State struct {
	Account   string
	Client    models.NetworkClient
	ChainID   uint64
	Connector connector.Connector
	Active    bool
	Err       error

	// Event is the transition that produced this snapshot.
	Event Event
	// Requested is the connector named by a connect-requested or
	// connect-failed transition.
	Requested connector.Connector
}

// UnsupportedNetworkError is reported when the wallet is on a chain outside
// the allowed set.
type UnsupportedNetworkError struct {
	ChainID uint64
	Allowed []uint64
}

func (e *UnsupportedNetworkError) Error() string {
	allowed := make([]string, 0, len(e.Allowed))
	for _, id := range e.Allowed {
		allowed = append(allowed, fmt.Sprint(id))
	}
	return fmt.Sprintf("unsupported network %d (supported: %s)", e.ChainID, strings.Join(allowed, ", "))
}

// IsUnsupportedNetwork reports whether err is an UnsupportedNetworkError.
func IsUnsupportedNetwork(err error) bool {
	var target *UnsupportedNetworkError
	return errors.As(err, &target)
}
