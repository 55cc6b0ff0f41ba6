package controller

import (
	"context"
	"errors"
	"sync"

	"github.com/core-coin/bursa/internal/connection"
	"github.com/core-coin/bursa/internal/connector"
)

// ErrControlDisabled is returned when the connect control is pressed while
// activating, connected or errored.
var ErrControlDisabled = errors.New("connect control is disabled")

// Status is the rendered state of the connect control.
type Status int

const (
	StatusIdle Status = iota
	StatusActivating
	StatusConnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusActivating:
		return "activating"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	}
	return "idle"
}

// Activator starts a connector session.
type Activator interface {
	Activate(ctx context.Context, c connector.Connector) error
}

// Controller drives the single connect control.
type Controller struct {
	connector connector.Connector
	activator Activator

	mu         sync.Mutex
	activating connector.Connector
}

func New(c connector.Connector, activator Activator) *Controller {
	return &Controller{connector: c, activator: activator}
}

// Connector returns the configured connector.
func (c *Controller) Connector() connector.Connector {
	return c.connector
}

// Activating reports whether an activation started by the control is in flight.
func (c *Controller) Activating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return connector.Same(c.activating, c.connector)
}

func (c *Controller) connected(s connection.State) bool {
	return connector.Same(c.connector, s.Connector)
}

// Disabled reports whether the control ignores clicks.
func (c *Controller) Disabled(s connection.State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activating != nil || c.connected(s) || s.Err != nil
}

// Status derives the control state from the local activating marker and s.
func (c *Controller) Status(s connection.State) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case s.Err != nil:
		return StatusError
	case c.connected(s):
		return StatusConnected
	case connector.Same(c.activating, c.connector):
		return StatusActivating
	}
	return StatusIdle
}

// Observe clears the activating marker once the state shows its connector.
func (c *Controller) Observe(s connection.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activating != nil && connector.Same(c.activating, s.Connector) {
		c.activating = nil
	}
}

// OnConnectClick marks the connector as activating and returns the
// activation to run. It returns false and changes nothing when the control
// is disabled. The marker is cleared again if the activation fails.
func (c *Controller) OnConnectClick(s connection.State) (func(ctx context.Context) error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activating != nil || c.connected(s) || s.Err != nil {
		return nil, false
	}

	target := c.connector
	c.activating = target
	return func(ctx context.Context) error {
		err := c.activator.Activate(ctx, target)
		if err != nil {
			c.mu.Lock()
			if c.activating == target {
				c.activating = nil
			}
			c.mu.Unlock()
		}
		return err
	}, true
}
