package balance

import (
	"context"
	"math/big"
	"sync"

	"github.com/core-coin/bursa/internal/models"
)

// State is the state of the displayed balance.
type State int

const (
	// Empty is shown when there is no account or client, or while loading.
	Empty State = iota
	Loaded
	Failed
)

// Value is the displayed balance.
type Value struct {
	State  State
	Amount *big.Int
}

// Key is the input a balance is fetched for. The client is part of the key
// by identity: a new client means a new fetch even on the same chain.
type Key struct {
	Account string
	Client  models.NetworkClient
	ChainID uint64
}

// Request is one balance query issued by an observation.
type Request struct {
	Token uint64
	Key   Key
}

// Fetch runs the query. It is not cancelled when the request goes stale;
// Observer.Apply drops its result instead.
func (r Request) Fetch(ctx context.Context) Result {
	amount, err := r.Key.Client.BalanceAt(ctx, r.Key.Account)
	return Result{Token: r.Token, Account: r.Key.Account, ChainID: r.Key.ChainID, Amount: amount, Err: err}
}

// Result is the outcome of a Request.
type Result struct {
	Token   uint64
	Account string
	ChainID uint64
	Amount  *big.Int
	Err     error
}

// Observer keeps the displayed balance in step with the connection. Every
// observation of a new key takes a new generation token; only the result
// carrying the current token is applied.
type Observer struct {
	mu       sync.Mutex
	key      Key
	observed bool
	token    uint64
	value    Value
}

func NewObserver() *Observer {
	return &Observer{}
}

// Observe records key. When key differs from the last observed one the
// displayed balance is reset to empty and, if both account and client are
// present, a request for it is returned.
func (o *Observer) Observe(key Key) (Request, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.observed && key == o.key {
		return Request{}, false
	}
	o.observed = true
	o.key = key
	o.token++
	o.value = Value{}

	if key.Account == "" || key.Client == nil {
		return Request{}, false
	}
	return Request{Token: o.token, Key: key}, true
}

// Apply stores r if it belongs to the current observation. It reports
// whether r was applied.
func (o *Observer) Apply(r Result) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if r.Token != o.token || o.key.Account == "" || o.key.Client == nil {
		return false
	}
	if r.Err != nil || r.Amount == nil {
		o.value = Value{State: Failed}
		return true
	}
	o.value = Value{State: Loaded, Amount: new(big.Int).Set(r.Amount)}
	return true
}

// Value returns the displayed balance.
func (o *Observer) Value() Value {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}
