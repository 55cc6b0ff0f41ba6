package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/core-coin/bursa/internal/connector"
	"github.com/core-coin/bursa/internal/feed"
	"github.com/core-coin/bursa/internal/models"
	"github.com/core-coin/bursa/pkg/logger"
)

// LibraryFactory turns the raw provider handle of a live session into a
// network client.
type LibraryFactory func(provider models.Provider) (models.NetworkClient, error)

// Store owns the connection state. It changes only through Activate,
// Deactivate and the chain watcher; every change is published to subscribers.
type Store struct {
	logger  *logger.Logger
	factory LibraryFactory
	allowed []uint64

	mu    sync.RWMutex
	state State
	// stopWatch stops the chain watcher of the current session.
	stopWatch context.CancelFunc
	wg        sync.WaitGroup

	feed *feed.Feed[State]
}

// NewStore creates a store. An empty allowed list accepts every chain.
func NewStore(factory LibraryFactory, allowed []uint64, logger *logger.Logger) *Store {
	return &Store{
		logger:  logger,
		factory: factory,
		allowed: allowed,
		feed:    feed.New[State](),
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe returns a channel of snapshots, one per transition.
func (s *Store) Subscribe() (<-chan State, func()) {
	return s.feed.Subscribe()
}

func (s *Store) isAllowed(chainID uint64) bool {
	if len(s.allowed) == 0 {
		return true
	}
	for _, id := range s.allowed {
		if id == chainID {
			return true
		}
	}
	return false
}

// publish must be called with s.mu held.
func (s *Store) publish() {
	if dropped := s.feed.Send(s.state); dropped > 0 {
		s.logger.Warn("Slow state subscriber, dropped ", dropped, " snapshots")
	}
}

// Activate runs the connector's session negotiation and moves the state to
// connected or failed. At most one connector is active: a previous session is
// closed once the new one is live.
func (s *Store) Activate(ctx context.Context, c connector.Connector) error {
	s.mu.Lock()
	s.state.Event = EventConnectRequested
	s.state.Requested = c
	s.publish()
	s.mu.Unlock()
	s.logger.Debug("Activating connector ", c.Name())

	act, err := c.Activate(ctx)
	if err != nil {
		s.fail(c, fmt.Errorf("failed to activate %s: %w", c.Name(), err))
		return err
	}

	if !s.isAllowed(act.ChainID) {
		s.deactivate(c)
		err := &UnsupportedNetworkError{ChainID: act.ChainID, Allowed: s.allowed}
		s.fail(c, err)
		return err
	}

	client, err := s.factory(act.Provider)
	if err != nil {
		s.deactivate(c)
		s.fail(c, fmt.Errorf("failed to build network client: %w", err))
		return err
	}

	s.mu.Lock()
	previous := s.endSessionLocked()
	watchCtx, cancel := context.WithCancel(context.Background())
	s.stopWatch = cancel
	s.state = State{
		Account:   act.Account,
		Client:    client,
		ChainID:   act.ChainID,
		Connector: c,
		Active:    true,
		Event:     EventConnectSucceeded,
	}
	s.publish()
	s.mu.Unlock()

	s.closeSession(previous, c)
	s.logger.Infow("Connected", "connector", c.Name(), "account", act.Account, "chain", act.ChainID)

	s.wg.Add(1)
	go s.watchChain(watchCtx, client)
	return nil
}

// Deactivate ends the active session, if any, and clears the error.
func (s *Store) Deactivate() error {
	s.mu.Lock()
	previous := s.endSessionLocked()
	wasSet := previous.Connector != nil || s.state.Err != nil
	s.state = State{Event: EventDisconnected}
	s.publish()
	s.mu.Unlock()

	s.closeSession(previous, nil)
	if !wasSet {
		return connector.ErrNotActive
	}
	s.logger.Info("Disconnected")
	return nil
}

// Close stops the chain watcher and ends the session without publishing.
func (s *Store) Close() {
	s.mu.Lock()
	previous := s.endSessionLocked()
	s.mu.Unlock()
	s.closeSession(previous, nil)
	s.wg.Wait()
}

// fail records a connect failure. The current session, if any, stays up.
func (s *Store) fail(c connector.Connector, err error) {
	s.logger.Errorw("Connection failed", "connector", c.Name(), "error", err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Err = err
	s.state.Event = EventConnectFailed
	s.state.Requested = c
	s.publish()
}

// endSessionLocked stops the watcher and returns the state of the session
// being replaced. Must be called with s.mu held.
func (s *Store) endSessionLocked() State {
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
	return s.state
}

// closeSession releases the client and connector of an ended session. The
// connector is left alone when it is the one that just became active.
func (s *Store) closeSession(previous State, keep connector.Connector) {
	if previous.Client != nil {
		previous.Client.Close()
	}
	if previous.Connector != nil && previous.Connector != keep {
		s.deactivate(previous.Connector)
	}
}

func (s *Store) deactivate(c connector.Connector) {
	if err := c.Deactivate(); err != nil && !errors.Is(err, connector.ErrNotActive) {
		s.logger.Warnw("Failed to deactivate connector", "connector", c.Name(), "error", err)
	}
}

// watchChain polls the client's chain id every polling interval. A switch
// to an allowed chain is published as chain-changed, a switch to any other
// chain ends the session with an UnsupportedNetworkError.
func (s *Store) watchChain(ctx context.Context, client models.NetworkClient) {
	defer s.wg.Done()

	interval := client.PollingInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		id, err := client.ChainID(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("Failed to poll chain id: ", err)
			}
			continue
		}

		s.mu.Lock()
		if ctx.Err() != nil || s.state.Client != client {
			s.mu.Unlock()
			return
		}
		if id == s.state.ChainID {
			s.mu.Unlock()
			continue
		}
		if !s.isAllowed(id) {
			previous := s.endSessionLocked()
			s.state = State{
				Err:       &UnsupportedNetworkError{ChainID: id, Allowed: s.allowed},
				Event:     EventConnectFailed,
				Requested: previous.Connector,
			}
			s.publish()
			s.mu.Unlock()
			s.logger.Warn("Switched to unsupported network ", id)
			s.closeSession(previous, nil)
			return
		}
		s.logger.Info("Chain changed ", s.state.ChainID, " -> ", id)
		s.state.ChainID = id
		s.state.Event = EventChainChanged
		s.publish()
		s.mu.Unlock()
	}
}
