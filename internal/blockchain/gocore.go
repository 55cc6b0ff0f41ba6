package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/core-coin/go-core/v2/common"
	"github.com/core-coin/go-core/v2/rpc"
	"github.com/core-coin/go-core/v2/xcbclient"

	"github.com/core-coin/bursa/internal/models"
	"github.com/core-coin/bursa/pkg/logger"
)

// Gocore is a network client backed by a go-core RPC connection.
type Gocore struct {
	logger          *logger.Logger
	client          *xcbclient.Client
	pollingInterval time.Duration
}

// Dial opens a raw RPC connection. It is the provider handle connectors hand out.
func Dial(ctx context.Context, url string) (models.Provider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the core RPC server: %w", err)
	}
	return client, nil
}

// NewLibrary wraps a raw provider handle into a network client polling every
// pollingInterval.
func NewLibrary(provider models.Provider, pollingInterval time.Duration, logger *logger.Logger) (*Gocore, error) {
	raw, ok := provider.(*rpc.Client)
	if !ok {
		return nil, fmt.Errorf("unsupported provider type %T", provider)
	}
	return &Gocore{
		logger:          logger,
		client:          xcbclient.NewClient(raw),
		pollingInterval: pollingInterval,
	}, nil
}

// LibraryFactory returns a factory building clients with the given polling interval.
func LibraryFactory(pollingInterval time.Duration, logger *logger.Logger) func(models.Provider) (models.NetworkClient, error) {
	return func(provider models.Provider) (models.NetworkClient, error) {
		return NewLibrary(provider, pollingInterval, logger)
	}
}

func (g *Gocore) PollingInterval() time.Duration {
	return g.pollingInterval
}

// BalanceAt returns the latest balance of account in ore.
func (g *Gocore) BalanceAt(ctx context.Context, account string) (*big.Int, error) {
	address, err := common.HexToAddress(account)
	if err != nil {
		return nil, fmt.Errorf("failed to parse account address: %w", err)
	}
	balance, err := g.client.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	g.logger.Debugw("Balance fetched", "account", account, "balance", balance)
	return balance, nil
}

// ChainID returns the network id reported by the node.
func (g *Gocore) ChainID(ctx context.Context) (uint64, error) {
	id, err := g.client.NetworkID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get network id: %w", err)
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("network id out of range: %s", id)
	}
	return id.Uint64(), nil
}

// Close releases the underlying connection.
func (g *Gocore) Close() {
	if g.client != nil {
		g.client.Close()
	}
}
