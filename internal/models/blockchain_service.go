package models

import (
	"context"
	"math/big"
	"time"
)

// Provider is the raw handle a wallet connector hands out once a session is
// live. It is opaque to everything except the library factory.
type Provider interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

// NetworkClient represents a client bound to one blockchain network.
// Implementations must be pointer types: client identity is compared with ==.
type NetworkClient interface {
	// BalanceAt returns the latest balance of account in the smallest denomination.
	BalanceAt(ctx context.Context, account string) (*big.Int, error)
	// ChainID returns the network id the client is currently talking to.
	ChainID(ctx context.Context) (uint64, error)
	// PollingInterval is how often the client should be polled for changes.
	PollingInterval() time.Duration
	Close()
}
