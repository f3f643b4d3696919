// Package game holds the round engine and wager arbiter. One goroutine owns
// the authoritative round state; transport goroutines talk to it through a
// bounded mailbox, never by touching the state directly.
package game

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"crashd/domain/apperr"
	"crashd/domain/entities"
	"crashd/domain/events"
	"crashd/domain/interfaces"
	"crashd/domain/services"
	"crashd/fair"
	"crashd/infrastructure/observability"

	"github.com/sirupsen/logrus"
)

const (
	mailboxSize       = 256
	settlementRetries = 3
	maxPauseBackoff   = 30 * time.Second

	// Every persistence call gets its own deadline so a wedged database
	// cannot stall the loop or the shutdown drain indefinitely.
	persistTimeout = 30 * time.Second
)

// Config holds the engine's operator-tunable parameters
type Config struct {
	Countdown      time.Duration
	TickInterval   time.Duration
	PostCrashPause time.Duration
	MinBet         int64
	MaxBet         int64
	GuestBalance   int64
}

// Engine drives the round state machine. All fields below the mailbox are
// owned by the Run goroutine.
type Engine struct {
	cfg         Config
	oracle      *fair.Oracle
	uowFactory  interfaces.UnitOfWorkFactory
	broadcaster Broadcaster
	publisher   interfaces.EventPublisher
	log         *logrus.Entry

	mailbox  chan any
	snapshot atomic.Value

	phase         Phase
	round         *entities.Round
	countdown     int
	countdownStep time.Duration
	startedAt     time.Time
	multiplier    int64
	history       []int64
	maintenance   bool
	nextNonce     int64
	backoff       time.Duration
	delay         time.Duration
	liveWagers    map[string]*liveWager
	guestBalances map[string]int64
}

// NewEngine creates a round engine. publisher receives out-of-band alerts
// that have no surrounding transaction, such as degraded-consistency events.
func NewEngine(cfg Config, oracle *fair.Oracle, uowFactory interfaces.UnitOfWorkFactory, broadcaster Broadcaster, publisher interfaces.EventPublisher) *Engine {
	return &Engine{
		cfg:           cfg,
		oracle:        oracle,
		uowFactory:    uowFactory,
		broadcaster:   broadcaster,
		publisher:     publisher,
		log:           logrus.WithField("component", "engine"),
		mailbox:       make(chan any, mailboxSize),
		liveWagers:    make(map[string]*liveWager),
		guestBalances: make(map[string]int64),
	}
}

// Run drives the state machine until the context is cancelled
func (e *Engine) Run(ctx context.Context) error {
	if err := e.initNonce(ctx); err != nil {
		return fmt.Errorf("failed to initialize round nonce: %w", err)
	}

	e.enterBetting(ctx)
	timer := time.NewTimer(e.delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.drain()
			return ctx.Err()
		case msg := <-e.mailbox:
			e.dispatch(ctx, msg)
		case <-timer.C:
			e.onTimer(ctx)
			timer.Reset(e.delay)
		}
	}
}

// PlaceBet submits a wager request to the engine and waits for the verdict
func (e *Engine) PlaceBet(ctx context.Context, session SessionInfo, amount, autoCashout int64) (*BetAck, error) {
	resp := make(chan betReply, 1)
	select {
	case e.mailbox <- placeBetMsg{session: session, amount: amount, autoCashout: autoCashout, resp: resp}:
	default:
		return nil, apperr.New(apperr.ResourceExhausted, "server is busy, try again")
	}
	select {
	case r := <-resp:
		return r.ack, r.err
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.DeadlineExceeded, "bet timed out", ctx.Err())
	}
}

// Cashout submits a cashout request for the session's live wager
func (e *Engine) Cashout(ctx context.Context, session SessionInfo) (*CashoutAck, error) {
	resp := make(chan cashoutReply, 1)
	select {
	case e.mailbox <- cashoutMsg{session: session, resp: resp}:
	default:
		return nil, apperr.New(apperr.ResourceExhausted, "server is busy, try again")
	}
	select {
	case r := <-resp:
		return r.ack, r.err
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.DeadlineExceeded, "cashout timed out", ctx.Err())
	}
}

// Snapshot returns the most recently broadcast game state
func (e *Engine) Snapshot() Snapshot {
	if snap, ok := e.snapshot.Load().(Snapshot); ok {
		return snap
	}
	return Snapshot{Phase: PhasePaused, Maintenance: true}
}

func (e *Engine) dispatch(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case placeBetMsg:
		e.handlePlaceBet(ctx, m)
	case cashoutMsg:
		e.handleCashout(ctx, m)
	case betPersistedMsg:
		e.handleBetPersisted(m)
	case cashoutPersistedMsg:
		e.handleCashoutPersisted(m)
	case sessionClosedMsg:
		e.handleSessionClosed(m)
	}
}

// SessionClosed tells the engine a transport session ended. Guest balances
// are session-scoped, so the matching virtual wallet and any live wager are
// discarded; authenticated sessions leave no engine state behind.
func (e *Engine) SessionClosed(session SessionInfo) {
	if !session.Guest {
		return
	}
	select {
	case e.mailbox <- sessionClosedMsg{key: session.Key}:
	default:
	}
}

func (e *Engine) handleSessionClosed(msg sessionClosedMsg) {
	delete(e.guestBalances, msg.key)
	delete(e.liveWagers, msg.key)
}

func (e *Engine) onTimer(ctx context.Context) {
	switch e.phase {
	case PhaseBetting:
		e.countdown--
		if e.countdown <= 0 {
			e.enterRunning(ctx)
			return
		}
		e.broadcast()
	case PhaseRunning:
		e.tick(ctx)
	case PhaseCrashed, PhasePaused:
		e.enterBetting(ctx)
	}
}

// multiplierAt maps elapsed running time to the multiplier in hundredths.
// The growth curve is m(t) = 1 + t/3 with t in seconds, so the multiplier
// climbs one hundredth every 30ms.
func multiplierAt(elapsed time.Duration) int64 {
	return 100 + elapsed.Milliseconds()/30
}

func (e *Engine) enterBetting(ctx context.Context) {
	seed, err := e.oracle.NextRound(e.nextNonce)
	if err != nil {
		e.pause(err)
		return
	}
	round, err := e.persistNewRound(ctx, seed)
	if err != nil {
		e.pause(err)
		return
	}

	e.round = round
	e.nextNonce = round.Number + 1
	e.phase = PhaseBetting
	e.maintenance = false
	e.backoff = 0
	e.multiplier = 100
	e.liveWagers = make(map[string]*liveWager)

	e.countdown = int((e.cfg.Countdown + time.Second - 1) / time.Second)
	if e.countdown < 1 {
		e.countdown = 1
	}
	e.countdownStep = e.cfg.Countdown / time.Duration(e.countdown)
	e.delay = e.countdownStep

	e.log.WithFields(logrus.Fields{
		"roundId":     round.ID,
		"roundNumber": round.Number,
		"seedHash":    round.ServerSeedHash,
	}).Info("Betting opened")
	e.broadcast()
}

func (e *Engine) enterRunning(ctx context.Context) {
	now := time.Now().UTC()
	e.phase = PhaseRunning
	e.startedAt = now
	e.multiplier = 100
	e.delay = e.cfg.TickInterval

	if err := e.persistStatus(ctx, entities.RoundStatusRunning, &now, nil); err != nil {
		// Fatal for the round: end it at the committed crash point and
		// settle whatever was placed.
		e.log.WithError(err).Error("Failed to mark round running, ending round")
		e.enterCrashed(ctx)
		return
	}
	e.broadcast()
}

func (e *Engine) tick(ctx context.Context) {
	current := multiplierAt(time.Since(e.startedAt))
	if current >= e.round.CrashPoint {
		// Thresholds at or below the crash point still cash out on the
		// crash tick; everything else loses.
		e.fireAutoCashouts(ctx, e.round.CrashPoint)
		e.enterCrashed(ctx)
		return
	}
	e.fireAutoCashouts(ctx, current)
	e.multiplier = current
	e.broadcast()
}

func (e *Engine) fireAutoCashouts(ctx context.Context, limit int64) {
	for _, w := range e.liveWagers {
		if w.pending || w.cashedOut || w.autoCashout == 0 || w.autoCashout > limit {
			continue
		}
		e.beginCashout(ctx, w, w.autoCashout, nil)
	}
}

func (e *Engine) enterCrashed(ctx context.Context) {
	crash := e.round.CrashPoint
	e.phase = PhaseCrashed
	e.multiplier = crash
	e.history = append(e.history, crash)
	if len(e.history) > historySize {
		e.history = e.history[len(e.history)-historySize:]
	}
	e.delay = e.cfg.PostCrashPause

	e.settle(ctx)
	observability.GetMetrics().RecordRoundCompleted()
	e.log.WithFields(logrus.Fields{
		"roundId":    e.round.ID,
		"crashPoint": crash,
	}).Info("Round crashed")
	e.broadcast()
}

// drain ends an in-flight round before the loop exits so no round is left
// betting or running in the database across restarts. The run context is
// already cancelled here, so the drain gets its own deadline.
func (e *Engine) drain() {
	if e.phase != PhaseBetting && e.phase != PhaseRunning {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	e.log.WithField("roundId", e.round.ID).Info("Draining round before shutdown")
	e.fireAutoCashouts(ctx, e.round.CrashPoint)
	e.enterCrashed(ctx)
}

func (e *Engine) pause(cause error) {
	e.phase = PhasePaused
	e.maintenance = true
	if e.backoff == 0 {
		e.backoff = time.Second
	} else if e.backoff < maxPauseBackoff {
		e.backoff *= 2
		if e.backoff > maxPauseBackoff {
			e.backoff = maxPauseBackoff
		}
	}
	e.delay = e.backoff
	e.log.WithError(cause).WithField("retryIn", e.backoff).Error("Engine paused")
	e.broadcast()
}

func (e *Engine) settle(ctx context.Context) {
	var lastErr error
	for attempt := 1; attempt <= settlementRetries; attempt++ {
		lost, err := e.persistSettlement(ctx)
		if err == nil {
			observability.GetMetrics().RecordWagersLost(int64(lost))
			e.log.WithFields(logrus.Fields{
				"roundId":    e.round.ID,
				"wagersLost": lost,
			}).Info("Round settled")
			return
		}
		lastErr = err
		e.log.WithError(err).WithField("attempt", attempt).Warn("Settlement attempt failed")
	}

	e.log.WithError(lastErr).Error("Settlement unresolved, flagging degraded consistency")
	if e.publisher != nil {
		_ = e.publisher.Publish(events.DegradedConsistencyEvent{
			RoundID: e.round.ID,
			Detail:  lastErr.Error(),
		})
	}
}

// cashoutsInFlight lists wager ids whose cashout transaction may still be
// running when settlement starts. On the crash tick those wagers already won
// in memory; settlement must not race them into a loss.
func (e *Engine) cashoutsInFlight() []int64 {
	var ids []int64
	for _, w := range e.liveWagers {
		if w.cashedOut && w.wagerID != 0 {
			ids = append(ids, w.wagerID)
		}
	}
	return ids
}

func (e *Engine) broadcast() {
	snap := e.buildSnapshot()
	e.snapshot.Store(snap)
	e.broadcaster.BroadcastState(snap)
}

func (e *Engine) buildSnapshot() Snapshot {
	snap := Snapshot{
		Phase:       e.phase,
		Countdown:   e.countdown,
		Multiplier:  e.multiplier,
		History:     append([]int64(nil), e.history...),
		Maintenance: e.maintenance,
	}
	if e.round != nil {
		snap.RoundID = e.round.ID
		snap.RoundNumber = e.round.Number
		snap.ServerSeedHash = e.round.ServerSeedHash
		if e.phase == PhaseCrashed {
			snap.CrashPoint = e.round.CrashPoint
		}
	}
	for _, w := range e.liveWagers {
		if w.pending {
			continue
		}
		snap.Wagers = append(snap.Wagers, LiveWager{
			SessionKey: w.session.Key,
			Username:   w.session.Username,
			Amount:     w.amount,
			CashedOut:  w.cashedOut,
			Multiplier: w.multiplier,
			Payout:     w.payout,
		})
	}
	return snap
}

// send delivers a persistence-result message back to the loop. The loop
// never blocks sending to its own mailbox, so this cannot deadlock.
func (e *Engine) send(ctx context.Context, msg any) {
	select {
	case e.mailbox <- msg:
	case <-ctx.Done():
	}
}

func (e *Engine) initNonce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	count, err := uow.RoundRepository().Count(ctx)
	if err != nil {
		return err
	}
	e.nextNonce = count + 1
	return nil
}

func (e *Engine) persistNewRound(ctx context.Context, seed *fair.RoundSeed) (*entities.Round, error) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	round, err := uow.RoundRepository().Create(ctx, &entities.Round{
		ServerSeed:     seed.ServerSeed,
		ServerSeedHash: seed.ServerSeedHash,
		ClientSeed:     seed.ClientSeed,
		Nonce:          seed.Nonce,
		CrashPoint:     seed.CrashPoint,
		Status:         entities.RoundStatusBetting,
	})
	if err != nil {
		return nil, err
	}
	_ = uow.EventPublisher().Publish(events.RoundStartedEvent{
		RoundID:        round.ID,
		RoundNumber:    round.Number,
		ServerSeedHash: round.ServerSeedHash,
	})
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return round, nil
}

func (e *Engine) persistStatus(ctx context.Context, status entities.RoundStatus, startedAt, endedAt *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.RoundRepository().UpdateStatus(ctx, e.round.ID, status, startedAt, endedAt); err != nil {
		return err
	}
	return uow.Commit()
}

func (e *Engine) persistSettlement(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	now := time.Now().UTC()
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, err
	}
	defer uow.Rollback()

	svc := services.NewWageringService(uow)
	lost, err := svc.SettleCrashedRound(ctx, e.round.ID, e.round.CrashPoint, e.cashoutsInFlight())
	if err != nil {
		return 0, err
	}
	if err := uow.RoundRepository().UpdateStatus(ctx, e.round.ID, entities.RoundStatusCrashed, nil, &now); err != nil {
		return 0, err
	}
	_ = uow.EventPublisher().Publish(events.RoundCrashedEvent{
		RoundID:     e.round.ID,
		RoundNumber: e.round.Number,
		CrashPoint:  e.round.CrashPoint,
		WagersLost:  lost,
	})
	if err := uow.Commit(); err != nil {
		return 0, err
	}
	return lost, nil
}
