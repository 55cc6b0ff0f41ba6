package connector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/core-coin/bursa/internal/config"
	"github.com/core-coin/bursa/internal/models"
	"github.com/core-coin/bursa/pkg/validation"
)

// Kind tags a connector variant.
type Kind string

const (
	KindNode  Kind = config.ConnectorNode
	KindWatch Kind = config.ConnectorWatch
)

var (
	// ErrNoAccounts is returned when the node manages no accounts.
	ErrNoAccounts = errors.New("node has no accounts")
	// ErrNotActive is returned when deactivating a connector without a session.
	ErrNotActive = errors.New("connector is not active")
)

// Activation is what a connector yields once its session is live.
type Activation struct {
	Account  string
	ChainID  uint64
	Provider models.Provider
}

// Connector is an abstraction over a wallet connection protocol.
type Connector interface {
	Kind() Kind
	Name() string
	// Activate negotiates a session. It blocks until the session is live or fails.
	Activate(ctx context.Context) (*Activation, error)
	Deactivate() error
}

// Dialer opens a raw provider handle to url.
type Dialer func(ctx context.Context, url string) (models.Provider, error)

// Same reports whether a and b are the same connector variant.
func Same(a, b Connector) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Kind() == b.Kind()
}

// New builds the connector configured in cfg.
func New(cfg *config.Config, dial Dialer) (Connector, error) {
	switch Kind(cfg.Connector) {
	case KindNode:
		return NewNodeConnector(cfg.BlockchainServiceURL, dial), nil
	case KindWatch:
		return NewWatchConnector(cfg.BlockchainServiceURL, cfg.WatchAddress, dial)
	}
	return nil, fmt.Errorf("unknown connector %q", cfg.Connector)
}

// session holds the provider of a live connection.
type session struct {
	mu       sync.Mutex
	provider models.Provider
}

func (s *session) open(p models.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider != nil {
		s.provider.Close()
	}
	s.provider = p
}

func (s *session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider == nil {
		return ErrNotActive
	}
	s.provider.Close()
	s.provider = nil
	return nil
}

func networkID(ctx context.Context, p models.Provider) (uint64, error) {
	var version string
	if err := p.CallContext(ctx, &version, "net_version"); err != nil {
		return 0, fmt.Errorf("failed to get network id: %w", err)
	}
	id, err := strconv.ParseUint(version, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid network id %q: %w", version, err)
	}
	return id, nil
}

// NodeConnector uses the first account managed by the RPC node, the way a
// browser wallet exposes its selected account.
type NodeConnector struct {
	url  string
	dial Dialer
	session
}

func NewNodeConnector(url string, dial Dialer) *NodeConnector {
	return &NodeConnector{url: url, dial: dial}
}

func (c *NodeConnector) Kind() Kind   { return KindNode }
func (c *NodeConnector) Name() string { return "Core Node" }

func (c *NodeConnector) Activate(ctx context.Context) (*Activation, error) {
	provider, err := c.dial(ctx, c.url)
	if err != nil {
		return nil, err
	}

	var accounts []string
	if err := provider.CallContext(ctx, &accounts, "xcb_accounts"); err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		provider.Close()
		return nil, ErrNoAccounts
	}

	id, err := networkID(ctx, provider)
	if err != nil {
		provider.Close()
		return nil, err
	}

	c.open(provider)
	return &Activation{Account: accounts[0], ChainID: id, Provider: provider}, nil
}

func (c *NodeConnector) Deactivate() error {
	return c.close()
}

// WatchConnector follows a fixed address without any signing capability.
type WatchConnector struct {
	url     string
	address string
	dial    Dialer
	session
}

func NewWatchConnector(url, address string, dial Dialer) (*WatchConnector, error) {
	normalized, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return nil, fmt.Errorf("invalid watch address: %w", err)
	}
	return &WatchConnector{url: url, address: normalized, dial: dial}, nil
}

func (c *WatchConnector) Kind() Kind   { return KindWatch }
func (c *WatchConnector) Name() string { return "Watch " + validation.ShortenAddress(c.address) }

func (c *WatchConnector) Activate(ctx context.Context) (*Activation, error) {
	provider, err := c.dial(ctx, c.url)
	if err != nil {
		return nil, err
	}

	id, err := networkID(ctx, provider)
	if err != nil {
		provider.Close()
		return nil, err
	}

	c.open(provider)
	return &Activation{Account: c.address, ChainID: id, Provider: provider}, nil
}

func (c *WatchConnector) Deactivate() error {
	return c.close()
}
