package bursa

import (
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/bursa/internal/config"
	"github.com/core-coin/bursa/internal/connection"
	"github.com/core-coin/bursa/internal/connection/connectiontest"
	"github.com/core-coin/bursa/internal/controller"
	"github.com/core-coin/bursa/internal/metrics"
	"github.com/core-coin/bursa/internal/models"
	"github.com/core-coin/bursa/pkg/logger"
)

const waitFor = 2 * time.Second

func oneEther() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}

type fixture struct {
	bursa     *Bursa
	store     *connection.Store
	connector *connectiontest.Connector
	client    *connectiontest.Client
	metrics   *metrics.Metrics
	repo      *memoryRepo
	notes     *noteRecorder
}

func newFixture(t *testing.T, c *connectiontest.Connector, client *connectiontest.Client, allowed ...uint64) *fixture {
	t.Helper()
	log := logger.NewNop()
	store := connection.NewStore(connectiontest.Factory(client), allowed, log)
	m := metrics.New()
	repo := &memoryRepo{}
	notes := &noteRecorder{}
	b := NewBursa(store, controller.New(c, store), repo, notes, m, log, &config.Config{CurrencyGlyph: "Ξ"})
	b.Start()
	t.Cleanup(b.Stop)
	return &fixture{bursa: b, store: store, connector: c, client: client, metrics: m, repo: repo, notes: notes}
}

func (f *fixture) eventuallyView(t *testing.T, check func(models.View) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return check(f.bursa.View()) }, waitFor, 5*time.Millisecond,
		"last view: %+v", f.bursa.View())
}

func TestConnectShowsBalance(t *testing.T) {
	client := connectiontest.NewClient(1)
	client.Balance = oneEther()
	f := newFixture(t, &connectiontest.Connector{Account: "0xABC", ChainID: 1}, client)

	v := f.bursa.View()
	assert.Equal(t, "idle", v.Status)
	assert.False(t, v.Disabled)
	assert.Equal(t, "", v.Balance)

	require.NoError(t, f.bursa.Connect())
	f.eventuallyView(t, func(v models.View) bool { return v.Balance == "Ξ1.0" })

	v = f.bursa.View()
	assert.Equal(t, "connected", v.Status)
	assert.True(t, v.Disabled)
	assert.Equal(t, "0xABC", v.Account)
	assert.Equal(t, uint64(1), v.ChainID)
	assert.Equal(t, "xcb", v.Network)
	assert.Equal(t, 1.0, f.metrics.BalanceQueries(metrics.BalanceOK))

	assert.ErrorIs(t, f.bursa.Connect(), controller.ErrControlDisabled)
}

func TestConnectIsActivatingBeforeResolution(t *testing.T) {
	gate := make(chan struct{})
	c := &connectiontest.Connector{Account: "0xABC", ChainID: 1, Gate: gate}
	f := newFixture(t, c, connectiontest.NewClient(1))

	views, unsubscribe := f.bursa.Subscribe()
	defer unsubscribe()

	require.NoError(t, f.bursa.Connect())
	v := f.bursa.View()
	assert.Equal(t, "activating", v.Status)
	assert.True(t, v.Disabled)

	select {
	case v := <-views:
		assert.Equal(t, "activating", v.Status)
	case <-time.After(waitFor):
		t.Fatal("no view published on click")
	}

	assert.ErrorIs(t, f.bursa.Connect(), controller.ErrControlDisabled)
	close(gate)
	f.eventuallyView(t, func(v models.View) bool { return v.Status == "connected" })
	assert.Equal(t, 1, c.Activations())
}

func TestBalanceFailureRendersError(t *testing.T) {
	client := connectiontest.NewClient(1)
	client.BalanceErr = errors.New("rpc down")
	f := newFixture(t, &connectiontest.Connector{Account: "0xABC", ChainID: 1}, client)

	require.NoError(t, f.bursa.Connect())
	f.eventuallyView(t, func(v models.View) bool { return v.Balance == "Error" })
	assert.Equal(t, "connected", f.bursa.View().Status)
	assert.NoError(t, f.store.State().Err)
}

func TestActivationFailureDisablesControl(t *testing.T) {
	c := &connectiontest.Connector{Err: errors.New("user rejected")}
	f := newFixture(t, c, connectiontest.NewClient(1))

	require.NoError(t, f.bursa.Connect())
	f.eventuallyView(t, func(v models.View) bool { return v.Status == "error" })

	v := f.bursa.View()
	assert.True(t, v.Disabled)
	assert.Contains(t, v.Error, "user rejected")
	assert.Equal(t, "", v.Balance)
	assert.ErrorIs(t, f.bursa.Connect(), controller.ErrControlDisabled)

	// disconnect clears the error and re-enables the control
	require.NoError(t, f.bursa.Disconnect())
	f.eventuallyView(t, func(v models.View) bool { return v.Status == "idle" && !v.Disabled })
}

func TestUnsupportedNetworkIsError(t *testing.T) {
	f := newFixture(t, &connectiontest.Connector{Account: "0xABC", ChainID: 5}, connectiontest.NewClient(5), 1)

	require.NoError(t, f.bursa.Connect())
	f.eventuallyView(t, func(v models.View) bool { return v.Status == "error" })
	assert.Contains(t, f.bursa.View().Error, "unsupported network 5")
}

func TestDisconnectEmptiesBalance(t *testing.T) {
	client := connectiontest.NewClient(1)
	client.Balance = oneEther()
	f := newFixture(t, &connectiontest.Connector{Account: "0xABC", ChainID: 1}, client)

	require.NoError(t, f.bursa.Connect())
	f.eventuallyView(t, func(v models.View) bool { return v.Balance == "Ξ1.0" })

	require.NoError(t, f.bursa.Disconnect())
	f.eventuallyView(t, func(v models.View) bool { return v.Status == "idle" })
	assert.Equal(t, "", f.bursa.View().Balance)
	assert.Empty(t, f.bursa.View().Account)
}

func TestDisconnectIsAppliedBeforeItReturns(t *testing.T) {
	client := connectiontest.NewClient(1)
	client.Balance = oneEther()
	f := newFixture(t, &connectiontest.Connector{Account: "0xABC", ChainID: 1}, client)

	for i := 0; i < 25; i++ {
		require.NoError(t, f.bursa.Connect())
		f.eventuallyView(t, func(v models.View) bool { return v.Status == "connected" })

		require.NoError(t, f.bursa.Disconnect())
		v := f.bursa.View()
		require.Equal(t, "idle", v.Status, "iteration %d", i)
		require.False(t, v.Disabled, "iteration %d", i)
		require.Empty(t, v.Account, "iteration %d", i)
		require.Empty(t, v.Balance, "iteration %d", i)
	}

	require.NoError(t, f.bursa.Connect())
	assert.Equal(t, "activating", f.bursa.View().Status)
}

func TestConnectSeesStoreErrors(t *testing.T) {
	f := newFixture(t, &connectiontest.Connector{Account: "0xABC", ChainID: 1}, connectiontest.NewClient(1))

	// a failure published by the store disables the control at once
	_ = f.store.Activate(f.bursa.ctx, &connectiontest.Connector{Err: errors.New("user rejected")})
	assert.ErrorIs(t, f.bursa.Connect(), controller.ErrControlDisabled)
	assert.Equal(t, "error", f.bursa.View().Status)
}

func TestLateBalanceOfPreviousAccountIsDiscarded(t *testing.T) {
	client := connectiontest.NewClient(1)
	client.Calls = make(chan *connectiontest.BalanceCall)
	f := newFixture(t, &connectiontest.Connector{Account: "0xA", ChainID: 1}, client)

	require.NoError(t, f.bursa.Connect())
	callA := nextCall(t, client)
	require.Equal(t, "0xA", callA.Account)

	// the wallet switches to account B before A's balance arrives
	other := &connectiontest.Connector{Account: "0xB", ChainID: 1}
	require.NoError(t, f.store.Activate(f.bursa.ctx, other))
	callB := nextCall(t, client)
	require.Equal(t, "0xB", callB.Account)

	callB.Resolve(new(big.Int).Mul(big.NewInt(2), oneEther()))
	f.eventuallyView(t, func(v models.View) bool { return v.Balance == "Ξ2.0" })

	callA.Resolve(oneEther())
	require.Eventually(t, func() bool { return f.metrics.BalanceQueries(metrics.BalanceStale) == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, "Ξ2.0", f.bursa.View().Balance)
	assert.Equal(t, "0xB", f.bursa.View().Account)
}

func TestHistoryAndNotifications(t *testing.T) {
	client := connectiontest.NewClient(1)
	client.Balance = oneEther()
	f := newFixture(t, &connectiontest.Connector{Account: "0xABC", ChainID: 1}, client)

	require.NoError(t, f.bursa.Connect())
	f.eventuallyView(t, func(v models.View) bool { return v.Balance == "Ξ1.0" })

	snapshots, err := f.bursa.History("0xABC", 10)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, oneEther().String(), snapshots[0].Amount)
	assert.NotZero(t, snapshots[0].SessionID)

	require.NoError(t, f.bursa.Disconnect())
	require.Eventually(t, func() bool { return len(f.repo.openSessions()) == 0 }, waitFor, 5*time.Millisecond)

	require.Eventually(t, func() bool { return len(f.notes.events()) == 2 }, waitFor, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"connected", "disconnected"}, f.notes.events())
}

func TestStartClosesDanglingSessions(t *testing.T) {
	log := logger.NewNop()
	store := connection.NewStore(connectiontest.Factory(connectiontest.NewClient(1)), nil, log)
	repo := &memoryRepo{}
	require.NoError(t, repo.OpenSession(&models.Session{Connector: "node", Account: "0xABC", ConnectedAt: 1}))
	require.NoError(t, repo.OpenSession(&models.Session{Connector: "node", Account: "0xDEF", ConnectedAt: 2}))

	b := NewBursa(store, controller.New(&connectiontest.Connector{}, store), repo, nil, metrics.New(), log, &config.Config{})
	b.Start()
	defer b.Stop()

	assert.Empty(t, repo.openSessions())
}

func TestHistoryDisabledWithoutRepository(t *testing.T) {
	log := logger.NewNop()
	store := connection.NewStore(connectiontest.Factory(connectiontest.NewClient(1)), nil, log)
	b := NewBursa(store, controller.New(&connectiontest.Connector{}, store), nil, nil, metrics.New(), log, &config.Config{})
	b.Start()
	defer b.Stop()

	_, err := b.History("0xABC", 1)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func nextCall(t *testing.T, client *connectiontest.Client) *connectiontest.BalanceCall {
	t.Helper()
	select {
	case call := <-client.Calls:
		return call
	case <-time.After(waitFor):
		t.Fatal("no balance query issued")
	}
	return nil
}

type memoryRepo struct {
	mu        sync.Mutex
	sessions  []*models.Session
	snapshots []*models.BalanceSnapshot
}

func (r *memoryRepo) OpenSession(s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = int64(len(r.sessions) + 1)
	r.sessions = append(r.sessions, s)
	return nil
}

func (r *memoryRepo) CloseSession(id int64, ts int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == id {
			s.DisconnectedAt = ts
			return nil
		}
	}
	return errors.New("not found")
}

func (r *memoryRepo) GetOpenSessions() ([]*models.Session, error) {
	return r.openSessions(), nil
}

func (r *memoryRepo) openSessions() []*models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var open []*models.Session
	for _, s := range r.sessions {
		if s.DisconnectedAt == 0 {
			open = append(open, s)
		}
	}
	return open
}

func (r *memoryRepo) AddBalanceSnapshot(s *models.BalanceSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
	return nil
}

func (r *memoryRepo) GetBalanceSnapshots(account string, limit int) ([]*models.BalanceSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.BalanceSnapshot
	for i := len(r.snapshots) - 1; i >= 0 && len(out) < limit; i-- {
		if r.snapshots[i].Account == account {
			out = append(out, r.snapshots[i])
		}
	}
	return out, nil
}

func (r *memoryRepo) Close() error { return nil }

type noteRecorder struct {
	mu  sync.Mutex
	got []string
}

func (n *noteRecorder) SendNotification(note *models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, note.Event)
}

func (n *noteRecorder) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.got...)
}
