// Package connectiontest provides in-memory connectors and network clients.
package connectiontest

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/core-coin/bursa/internal/connector"
	"github.com/core-coin/bursa/internal/models"
)

// Connector is a connector whose activation outcome is scripted.
type Connector struct {
	KindValue connector.Kind
	Account   string
	ChainID   uint64
	Err       error
	// Gate, when set, blocks Activate until it is closed.
	Gate chan struct{}

	// DeactivateErr is returned by every Deactivate call.
	DeactivateErr error

	mu          sync.Mutex
	activations int
	deactivated int
}

func (c *Connector) Kind() connector.Kind {
	if c.KindValue == "" {
		return connector.KindNode
	}
	return c.KindValue
}

func (c *Connector) Name() string { return "Fake " + string(c.Kind()) }

func (c *Connector) Activate(ctx context.Context) (*connector.Activation, error) {
	c.mu.Lock()
	c.activations++
	c.mu.Unlock()

	if c.Gate != nil {
		select {
		case <-c.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.Err != nil {
		return nil, c.Err
	}
	return &connector.Activation{Account: c.Account, ChainID: c.ChainID, Provider: Provider{}}, nil
}

func (c *Connector) Deactivate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deactivated++
	return c.DeactivateErr
}

func (c *Connector) Activations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activations
}

func (c *Connector) Deactivations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deactivated
}

// Provider is an inert provider handle.
type Provider struct{}

func (Provider) CallContext(context.Context, interface{}, string, ...interface{}) error {
	return errors.New("not implemented")
}
func (Provider) Close() {}

// BalanceCall is one pending BalanceAt call. Answer it with Resolve or Reject.
type BalanceCall struct {
	Account string
	result  chan balanceResult
}

type balanceResult struct {
	amount *big.Int
	err    error
}

func (c *BalanceCall) Resolve(amount *big.Int) { c.result <- balanceResult{amount: amount} }
func (c *BalanceCall) Reject(err error)        { c.result <- balanceResult{err: err} }

// Client is a network client. With Calls set, every BalanceAt call is handed
// to the test and blocks until answered. Otherwise Balance/BalanceErr are returned.
type Client struct {
	Balance    *big.Int
	BalanceErr error
	Calls      chan *BalanceCall
	Interval   time.Duration

	mu      sync.Mutex
	chainID uint64
	closed  int
}

func NewClient(chainID uint64) *Client {
	return &Client{chainID: chainID}
}

func (c *Client) BalanceAt(ctx context.Context, account string) (*big.Int, error) {
	if c.Calls == nil {
		return c.Balance, c.BalanceErr
	}
	call := &BalanceCall{Account: account, result: make(chan balanceResult, 1)}
	select {
	case c.Calls <- call:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-call.result:
		return r.amount, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chainID, nil
}

func (c *Client) SetChainID(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chainID = id
}

func (c *Client) PollingInterval() time.Duration { return c.Interval }

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

func (c *Client) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Factory returns a library factory handing out client for every provider.
func Factory(client models.NetworkClient) func(models.Provider) (models.NetworkClient, error) {
	return func(models.Provider) (models.NetworkClient, error) {
		return client, nil
	}
}
