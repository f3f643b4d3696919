package game

import (
	"context"
	"time"

	"crashd/domain/apperr"
	"crashd/domain/entities"
	"crashd/domain/services"
	"crashd/infrastructure/observability"
)

// The arbiter half of the engine: admission decisions for bets and cashouts.
// All handlers run on the engine's state-owning goroutine, so the one-wager-
// per-key-per-round invariant needs no locks. Persistence runs on spawned
// goroutines; the in-memory record stays pending (bets) or optimistically
// final (cashouts) until the transaction reports back.

func (e *Engine) handlePlaceBet(ctx context.Context, msg placeBetMsg) {
	if e.phase != PhaseBetting {
		msg.resp <- betReply{err: apperr.New(apperr.FailedPrecondition, "betting is closed")}
		return
	}
	if msg.amount < e.cfg.MinBet || msg.amount > e.cfg.MaxBet {
		msg.resp <- betReply{err: apperr.Newf(apperr.InvalidArgument,
			"stake must be between %d and %d", e.cfg.MinBet, e.cfg.MaxBet)}
		return
	}
	if msg.autoCashout != 0 && msg.autoCashout < 101 {
		msg.resp <- betReply{err: apperr.New(apperr.InvalidArgument, "auto-cashout must exceed 1.00x")}
		return
	}
	if _, exists := e.liveWagers[msg.session.Key]; exists {
		msg.resp <- betReply{err: apperr.New(apperr.AlreadyExists, "wager already placed this round")}
		return
	}

	if msg.session.Guest {
		balance, seen := e.guestBalances[msg.session.Key]
		if !seen {
			balance = e.cfg.GuestBalance
		}
		if balance < msg.amount {
			msg.resp <- betReply{err: apperr.New(apperr.InsufficientFunds, "insufficient balance")}
			return
		}
		e.guestBalances[msg.session.Key] = balance - msg.amount
		e.liveWagers[msg.session.Key] = &liveWager{
			session:     msg.session,
			amount:      msg.amount,
			autoCashout: msg.autoCashout,
		}
		e.broadcaster.BroadcastBetPlaced(BetNotice{Username: msg.session.Username, Amount: msg.amount})
		observability.GetMetrics().RecordWagerPlaced("guest")
		msg.resp <- betReply{ack: &BetAck{Balance: balance - msg.amount}}
		return
	}

	// Reserve the slot, then persist off the engine goroutine. The pending
	// record blocks duplicates while the transaction is in flight.
	e.liveWagers[msg.session.Key] = &liveWager{
		session:     msg.session,
		amount:      msg.amount,
		autoCashout: msg.autoCashout,
		pending:     true,
	}

	key := msg.session.Key
	userID, roundID := msg.session.UserID, e.round.ID
	amount, autoCashout := msg.amount, msg.autoCashout
	resp := msg.resp
	go func() {
		wagerID, balance, err := e.persistPlaceWager(ctx, userID, roundID, amount, autoCashout)
		e.send(ctx, betPersistedMsg{key: key, wagerID: wagerID, newBalance: balance, err: err, resp: resp})
	}()
}

func (e *Engine) handleBetPersisted(msg betPersistedMsg) {
	w, ok := e.liveWagers[msg.key]
	if msg.err != nil {
		if ok && w.pending {
			delete(e.liveWagers, msg.key)
		}
		msg.resp <- betReply{err: msg.err}
		return
	}
	if ok {
		w.pending = false
		w.wagerID = msg.wagerID
		e.broadcaster.BroadcastBetPlaced(BetNotice{Username: w.session.Username, Amount: w.amount})
		observability.GetMetrics().RecordWagerPlaced("user")
	}
	msg.resp <- betReply{ack: &BetAck{WagerID: msg.wagerID, Balance: msg.newBalance}}
}

func (e *Engine) handleCashout(ctx context.Context, msg cashoutMsg) {
	w, ok := e.liveWagers[msg.session.Key]
	if !ok || w.pending {
		msg.resp <- cashoutReply{err: apperr.New(apperr.NotFound, "no live wager this round")}
		return
	}
	if e.phase != PhaseRunning {
		msg.resp <- cashoutReply{err: apperr.New(apperr.FailedPrecondition, "round is not running")}
		return
	}
	if w.cashedOut {
		msg.resp <- cashoutReply{err: apperr.New(apperr.AlreadyExists, "wager already cashed out")}
		return
	}

	current := multiplierAt(time.Since(e.startedAt))
	if current > e.round.CrashPoint {
		current = e.round.CrashPoint
	}
	e.beginCashout(ctx, w, current, msg.resp)
}

// beginCashout finalizes the wager in memory at the given multiplier. Guest
// wagers settle entirely here; persisted wagers are confirmed or reverted by
// handleCashoutPersisted.
func (e *Engine) beginCashout(ctx context.Context, w *liveWager, multiplier int64, resp chan cashoutReply) {
	w.cashedOut = true
	w.multiplier = multiplier
	w.payout = entities.PayoutFor(w.amount, multiplier)

	if w.session.Guest {
		e.guestBalances[w.session.Key] += w.payout
		e.broadcaster.BroadcastCashedOut(CashoutNotice{
			Username:   w.session.Username,
			Multiplier: multiplier,
			Payout:     w.payout,
		})
		observability.GetMetrics().RecordWagerCashedOut("guest")
		if resp != nil {
			resp <- cashoutReply{ack: &CashoutAck{
				Multiplier: multiplier,
				Payout:     w.payout,
				Balance:    e.guestBalances[w.session.Key],
			}}
		}
		return
	}

	key, wagerID := w.session.Key, w.wagerID
	go func() {
		payout, balance, err := e.persistCashout(ctx, wagerID, multiplier)
		e.send(ctx, cashoutPersistedMsg{key: key, payout: payout, newBalance: balance, err: err, resp: resp})
	}()
}

func (e *Engine) handleCashoutPersisted(msg cashoutPersistedMsg) {
	w, ok := e.liveWagers[msg.key]
	if msg.err != nil {
		// Revert the optimistic mark so the wager can still settle. Once
		// the round crashed the database record is authoritative anyway.
		if ok && e.phase == PhaseRunning {
			w.cashedOut = false
			w.multiplier = 0
			w.payout = 0
		}
		e.log.WithError(msg.err).WithField("key", msg.key).Error("Cashout persistence failed")
		if msg.resp != nil {
			msg.resp <- cashoutReply{err: msg.err}
		}
		return
	}

	if ok {
		w.payout = msg.payout
		e.broadcaster.BroadcastCashedOut(CashoutNotice{
			Username:   w.session.Username,
			Multiplier: w.multiplier,
			Payout:     msg.payout,
		})
		observability.GetMetrics().RecordWagerCashedOut("user")
		if msg.resp != nil {
			msg.resp <- cashoutReply{ack: &CashoutAck{
				Multiplier: w.multiplier,
				Payout:     msg.payout,
				Balance:    msg.newBalance,
			}}
		}
		return
	}
	if msg.resp != nil {
		msg.resp <- cashoutReply{ack: &CashoutAck{Payout: msg.payout, Balance: msg.newBalance}}
	}
}

func (e *Engine) persistPlaceWager(ctx context.Context, userID, roundID, amount, autoCashout int64) (int64, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, 0, err
	}
	defer uow.Rollback()

	svc := services.NewWageringService(uow)
	result, err := svc.PlaceWager(ctx, userID, roundID, amount, autoCashout)
	if err != nil {
		return 0, 0, err
	}
	if err := uow.Commit(); err != nil {
		return 0, 0, err
	}
	return result.Wager.ID, result.NewBalance, nil
}

func (e *Engine) persistCashout(ctx context.Context, wagerID, multiplier int64) (int64, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, 0, err
	}
	defer uow.Rollback()

	svc := services.NewWageringService(uow)
	result, err := svc.CashoutWager(ctx, wagerID, multiplier)
	if err != nil {
		return 0, 0, err
	}
	if err := uow.Commit(); err != nil {
		return 0, 0, err
	}
	return result.Payout, result.NewBalance, nil
}
