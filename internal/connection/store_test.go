package connection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/core-coin/bursa/internal/connection/connectiontest"
	"github.com/core-coin/bursa/internal/connector"
	"github.com/core-coin/bursa/internal/models"
	"github.com/core-coin/bursa/pkg/logger"
)

func nextState(t *testing.T, ch <-chan State) State {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no state published")
	}
	return State{}
}

func newStore(t *testing.T, client models.NetworkClient, allowed ...uint64) *Store {
	t.Helper()
	s := NewStore(connectiontest.Factory(client), allowed, logger.NewNop())
	t.Cleanup(s.Close)
	return s
}

func TestActivateSuccess(t *testing.T) {
	client := connectiontest.NewClient(1)
	s := newStore(t, client, 1, 3)
	states, unsubscribe := s.Subscribe()
	defer unsubscribe()

	c := &connectiontest.Connector{Account: "0xABC", ChainID: 1}
	require.NoError(t, s.Activate(context.Background(), c))

	requested := nextState(t, states)
	assert.Equal(t, EventConnectRequested, requested.Event)
	assert.Same(t, c, requested.Requested)
	assert.Nil(t, requested.Connector)

	connected := nextState(t, states)
	assert.Equal(t, EventConnectSucceeded, connected.Event)
	assert.Equal(t, "0xABC", connected.Account)
	assert.Equal(t, uint64(1), connected.ChainID)
	assert.Same(t, client, connected.Client)
	assert.True(t, connected.Active)
	assert.NoError(t, connected.Err)

	assert.Equal(t, connected, s.State())
}

func TestActivateFailure(t *testing.T) {
	s := newStore(t, connectiontest.NewClient(1))
	rejected := errors.New("user rejected the request")
	c := &connectiontest.Connector{Err: rejected}

	err := s.Activate(context.Background(), c)
	assert.ErrorIs(t, err, rejected)

	st := s.State()
	assert.Equal(t, EventConnectFailed, st.Event)
	assert.ErrorIs(t, st.Err, rejected)
	assert.False(t, st.Active)
	assert.Nil(t, st.Connector)
}

func TestActivateUnsupportedNetwork(t *testing.T) {
	s := newStore(t, connectiontest.NewClient(5), 1, 3)
	c := &connectiontest.Connector{Account: "0xABC", ChainID: 5}

	err := s.Activate(context.Background(), c)
	require.Error(t, err)
	assert.True(t, IsUnsupportedNetwork(err))
	assert.EqualError(t, err, "unsupported network 5 (supported: 1, 3)")

	st := s.State()
	assert.True(t, IsUnsupportedNetwork(st.Err))
	assert.Empty(t, st.Account)
	assert.Equal(t, 1, c.Deactivations())
}

func TestEmptyAllowListAcceptsAnyChain(t *testing.T) {
	s := newStore(t, connectiontest.NewClient(77))
	require.NoError(t, s.Activate(context.Background(), &connectiontest.Connector{Account: "0xABC", ChainID: 77}))
	assert.Equal(t, uint64(77), s.State().ChainID)
}

func TestActivateFactoryFailure(t *testing.T) {
	factoryErr := errors.New("bad provider")
	s := NewStore(func(models.Provider) (models.NetworkClient, error) { return nil, factoryErr }, nil, logger.NewNop())
	defer s.Close()
	c := &connectiontest.Connector{Account: "0xABC", ChainID: 1}

	assert.ErrorIs(t, s.Activate(context.Background(), c), factoryErr)
	assert.ErrorIs(t, s.State().Err, factoryErr)
	assert.Equal(t, 1, c.Deactivations())
}

func TestDeactivate(t *testing.T) {
	client := connectiontest.NewClient(1)
	s := newStore(t, client)
	c := &connectiontest.Connector{Account: "0xABC", ChainID: 1}
	require.NoError(t, s.Activate(context.Background(), c))

	require.NoError(t, s.Deactivate())
	st := s.State()
	assert.Equal(t, EventDisconnected, st.Event)
	assert.Empty(t, st.Account)
	assert.Nil(t, st.Client)
	assert.Nil(t, st.Connector)
	assert.Equal(t, 1, client.Closed())
	assert.Equal(t, 1, c.Deactivations())

	assert.ErrorIs(t, s.Deactivate(), connector.ErrNotActive)
}

func TestRejectedSessionDeactivateErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewStore(connectiontest.Factory(connectiontest.NewClient(5)), []uint64{1}, &logger.Logger{SugaredLogger: zap.New(core).Sugar()})
	defer s.Close()
	c := &connectiontest.Connector{Account: "0xABC", ChainID: 5, DeactivateErr: errors.New("socket closed")}

	require.Error(t, s.Activate(context.Background(), c))
	assert.Equal(t, 1, c.Deactivations())

	entries := logs.FilterMessage("Failed to deactivate connector").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "socket closed", entries[0].ContextMap()["error"])
}

func TestDeactivateClearsError(t *testing.T) {
	s := newStore(t, connectiontest.NewClient(1))
	_ = s.Activate(context.Background(), &connectiontest.Connector{Err: errors.New("boom")})
	require.Error(t, s.State().Err)

	require.NoError(t, s.Deactivate())
	assert.NoError(t, s.State().Err)
}

func TestAtMostOneActiveConnector(t *testing.T) {
	first := connectiontest.NewClient(1)
	second := connectiontest.NewClient(1)
	clients := []models.NetworkClient{first, second}
	s := NewStore(func(models.Provider) (models.NetworkClient, error) {
		c := clients[0]
		clients = clients[1:]
		return c, nil
	}, nil, logger.NewNop())
	defer s.Close()

	node := &connectiontest.Connector{Account: "0xABC", ChainID: 1}
	watch := &connectiontest.Connector{KindValue: connector.KindWatch, Account: "0xDEF", ChainID: 1}
	require.NoError(t, s.Activate(context.Background(), node))
	require.NoError(t, s.Activate(context.Background(), watch))

	st := s.State()
	assert.Same(t, watch, st.Connector)
	assert.Equal(t, "0xDEF", st.Account)
	assert.Equal(t, 1, node.Deactivations())
	assert.Equal(t, 0, watch.Deactivations())
	assert.Equal(t, 1, first.Closed())
}

func TestChainWatcherPublishesChainChange(t *testing.T) {
	client := connectiontest.NewClient(1)
	client.Interval = 5 * time.Millisecond
	s := newStore(t, client, 1, 3)
	require.NoError(t, s.Activate(context.Background(), &connectiontest.Connector{Account: "0xABC", ChainID: 1}))

	states, unsubscribe := s.Subscribe()
	defer unsubscribe()
	client.SetChainID(3)

	st := nextState(t, states)
	assert.Equal(t, EventChainChanged, st.Event)
	assert.Equal(t, uint64(3), st.ChainID)
	assert.Equal(t, "0xABC", st.Account)
	assert.Same(t, client, st.Client)
}

func TestChainWatcherFailsOnUnsupportedNetwork(t *testing.T) {
	client := connectiontest.NewClient(1)
	client.Interval = 5 * time.Millisecond
	s := newStore(t, client, 1)
	c := &connectiontest.Connector{Account: "0xABC", ChainID: 1}
	require.NoError(t, s.Activate(context.Background(), c))

	states, unsubscribe := s.Subscribe()
	defer unsubscribe()
	client.SetChainID(9)

	st := nextState(t, states)
	assert.Equal(t, EventConnectFailed, st.Event)
	assert.True(t, IsUnsupportedNetwork(st.Err))
	assert.Empty(t, st.Account)
	assert.Nil(t, st.Client)
	assert.Same(t, c, st.Requested)
	assert.Eventually(t, func() bool { return c.Deactivations() == 1 }, time.Second, 5*time.Millisecond)
}
