package bursa

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/core-coin/bursa/internal/balance"
	"github.com/core-coin/bursa/internal/config"
	"github.com/core-coin/bursa/internal/connection"
	"github.com/core-coin/bursa/internal/controller"
	"github.com/core-coin/bursa/internal/feed"
	"github.com/core-coin/bursa/internal/metrics"
	"github.com/core-coin/bursa/internal/models"
	"github.com/core-coin/bursa/pkg/logger"
)

// ErrHistoryDisabled is returned by History when no database is configured.
var ErrHistoryDisabled = errors.New("balance history is disabled")

// Bursa is the main struct for the bursa application.
// It applies connection states and balance results one at a time on its
// event loop and publishes the resulting view to front-ends.
type Bursa struct {
	logger  *logger.Logger
	config  *config.Config
	metrics *metrics.Metrics

	store       *connection.Store
	controller  *controller.Controller
	observer    *balance.Observer
	repo        models.Repository
	notificator models.NotificationService

	results chan balance.Result
	views   *feed.Feed[models.View]
	// settles asks the event loop to catch up with the store
	settles chan chan struct{}
	running atomic.Bool

	mu        sync.RWMutex
	state     connection.State
	sessionID int64

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBursa creates a new Bursa instance. repo and notificator may be nil.
func NewBursa(
	store *connection.Store,
	controller *controller.Controller,
	repo models.Repository,
	notificator models.NotificationService,
	metrics *metrics.Metrics,
	logger *logger.Logger,
	config *config.Config,
) *Bursa {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bursa{
		logger:      logger,
		config:      config,
		metrics:     metrics,
		store:       store,
		controller:  controller,
		observer:    balance.NewObserver(),
		repo:        repo,
		notificator: notificator,
		results:     make(chan balance.Result),
		views:       feed.New[models.View](),
		settles:     make(chan chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start closes sessions left open by a previous run and starts the event
// loop. It returns immediately.
func (b *Bursa) Start() {
	b.closeDanglingSessions()

	states, unsubscribe := b.store.Subscribe()
	b.handleState(b.store.State())
	b.running.Store(true)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer unsubscribe()
		for {
			select {
			case <-b.ctx.Done():
				return
			case s := <-states:
				b.handleState(s)
			case r := <-b.results:
				b.handleBalance(r)
			case done := <-b.settles:
				b.drain(states)
				close(done)
			}
		}
	}()
}

// drain applies every state already queued by the store.
func (b *Bursa) drain(states <-chan connection.State) {
	for {
		select {
		case s := <-states:
			b.handleState(s)
		default:
			return
		}
	}
}

// settle returns once the event loop has applied every state the store
// published before the call. The store queues a snapshot before its
// operations return, so after settle the view matches the store.
func (b *Bursa) settle() {
	if !b.running.Load() {
		return
	}
	done := make(chan struct{})
	select {
	case b.settles <- done:
	case <-b.ctx.Done():
		return
	}
	select {
	case <-done:
	case <-b.ctx.Done():
	}
}

// Stop stops the event loop, waits for in-flight work and ends the session.
func (b *Bursa) Stop() {
	b.cancel()
	b.wg.Wait()
	b.store.Close()
	b.closeSession()
}

// Subscribe returns a channel receiving every published view.
func (b *Bursa) Subscribe() (<-chan models.View, func()) {
	return b.views.Subscribe()
}

func (b *Bursa) currentState() connection.State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// View returns the current view.
func (b *Bursa) View() models.View {
	s := b.currentState()
	view := models.View{
		Connector: b.controller.Connector().Name(),
		Status:    b.controller.Status(s).String(),
		Disabled:  b.controller.Disabled(s),
		Account:   s.Account,
		ChainID:   s.ChainID,
		Balance:   balance.Render(b.observer.Value(), b.config.CurrencyGlyph),
	}
	if s.ChainID != 0 {
		view.Network = config.GetNetworkName(s.ChainID)
	}
	if s.Err != nil {
		view.Error = s.Err.Error()
	}
	return view
}

func (b *Bursa) publish() {
	b.views.Send(b.View())
}

// Connect presses the connect control. The view turns to activating before
// Connect returns; the activation itself runs in the background.
func (b *Bursa) Connect() error {
	b.settle()
	activate, ok := b.controller.OnConnectClick(b.currentState())
	if !ok {
		return controller.ErrControlDisabled
	}
	b.publish()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := activate(b.ctx); err != nil {
			b.logger.Warnw("Activation failed", "error", err)
			b.publish()
		}
	}()
	return nil
}

// Disconnect ends the active session and clears the connection error. The
// view is idle once it returns.
func (b *Bursa) Disconnect() error {
	err := b.store.Deactivate()
	b.settle()
	return err
}

// History returns the latest balance snapshots recorded for account.
func (b *Bursa) History(account string, limit int) ([]*models.BalanceSnapshot, error) {
	if b.repo == nil {
		return nil, ErrHistoryDisabled
	}
	return b.repo.GetBalanceSnapshots(account, limit)
}

func (b *Bursa) handleState(s connection.State) {
	b.controller.Observe(s)

	b.mu.Lock()
	previous := b.state
	b.state = s
	b.mu.Unlock()

	key := balance.Key{Account: s.Account, Client: s.Client, ChainID: s.ChainID}
	if req, ok := b.observer.Observe(key); ok {
		b.fetch(req)
	}
	if previous.Account != s.Account {
		b.metrics.ResetBalances()
	}

	b.trackActivation(s)
	b.record(s)
	b.notify(s)
	b.metrics.SetStatus(b.controller.Status(s).String())
	b.publish()
}

// fetch runs req in the background and hands the result to the event loop.
// A stale request is left to finish; its result is dropped by the observer.
func (b *Bursa) fetch(req balance.Request) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		r := req.Fetch(b.ctx)
		select {
		case b.results <- r:
		case <-b.ctx.Done():
		}
	}()
}

func (b *Bursa) handleBalance(r balance.Result) {
	if !b.observer.Apply(r) {
		b.metrics.ObserveBalanceQuery(metrics.BalanceStale)
		b.logger.Debugw("Dropping stale balance", "account", r.Account)
		return
	}

	if r.Err != nil || r.Amount == nil {
		b.metrics.ObserveBalanceQuery(metrics.BalanceError)
		b.logger.Warnw("Failed to fetch balance", "account", r.Account, "error", r.Err)
	} else {
		b.metrics.ObserveBalanceQuery(metrics.BalanceOK)
		amount, _ := big.NewFloat(0).Quo(new(big.Float).SetInt(r.Amount), big.NewFloat(1e18)).Float64()
		b.metrics.SetBalance(r.Account, amount)
		b.snapshot(r)
	}
	b.publish()
}

func (b *Bursa) trackActivation(s connection.State) {
	switch s.Event {
	case connection.EventConnectSucceeded:
		b.metrics.ObserveActivation(string(s.Connector.Kind()), true)
	case connection.EventConnectFailed:
		if s.Requested != nil {
			b.metrics.ObserveActivation(string(s.Requested.Kind()), false)
		}
	}
}

func (b *Bursa) notify(s connection.State) {
	if b.notificator == nil {
		return
	}
	switch s.Event {
	case connection.EventConnectSucceeded, connection.EventConnectFailed, connection.EventDisconnected:
	default:
		return
	}

	notification := &models.Notification{
		Event:     s.Event.String(),
		Connector: b.controller.Connector().Name(),
		Account:   s.Account,
		ChainID:   s.ChainID,
	}
	if s.Err != nil {
		notification.Error = s.Err.Error()
	}
	b.logger.Infow("Sending notification", "notification", notification.String())
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.notificator.SendNotification(notification)
	}()
}

// record keeps the session history in step with the state.
func (b *Bursa) record(s connection.State) {
	if b.repo == nil {
		return
	}
	if s.Event == connection.EventConnectSucceeded {
		b.closeSession()
		session := &models.Session{
			Connector:   string(s.Connector.Kind()),
			Account:     s.Account,
			ChainID:     s.ChainID,
			ConnectedAt: time.Now().Unix(),
		}
		if err := b.repo.OpenSession(session); err != nil {
			b.logger.Errorw("Failed to record session", "error", err)
			return
		}
		b.mu.Lock()
		b.sessionID = session.ID
		b.mu.Unlock()
		return
	}
	if s.Connector == nil {
		b.closeSession()
	}
}

func (b *Bursa) closeDanglingSessions() {
	if b.repo == nil {
		return
	}
	sessions, err := b.repo.GetOpenSessions()
	if err != nil {
		b.logger.Errorw("Failed to load open sessions", "error", err)
		return
	}
	now := time.Now().Unix()
	for _, session := range sessions {
		if err := b.repo.CloseSession(session.ID, now); err != nil {
			b.logger.Errorw("Failed to close session", "id", session.ID, "error", err)
			continue
		}
		b.logger.Infow("Closed session left open", "id", session.ID, "account", session.Account)
	}
}

func (b *Bursa) closeSession() {
	if b.repo == nil {
		return
	}
	b.mu.Lock()
	id := b.sessionID
	b.sessionID = 0
	b.mu.Unlock()
	if id == 0 {
		return
	}
	if err := b.repo.CloseSession(id, time.Now().Unix()); err != nil {
		b.logger.Errorw("Failed to close session", "id", id, "error", err)
	}
}

func (b *Bursa) snapshot(r balance.Result) {
	if b.repo == nil {
		return
	}
	b.mu.RLock()
	id := b.sessionID
	b.mu.RUnlock()
	err := b.repo.AddBalanceSnapshot(&models.BalanceSnapshot{
		SessionID: id,
		Account:   r.Account,
		ChainID:   r.ChainID,
		Amount:    r.Amount.String(),
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		b.logger.Errorw("Failed to record balance", "error", err)
	}
}
