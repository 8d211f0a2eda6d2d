package matching

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Pool is the staged candidate pool for one company and window.
type Pool struct {
	Payouts []models.StagedPayout
	Bank    []models.StagedBankTransaction
	Ledger  []models.StagedLedgerObject
}

// Attempt records one strategy tried against a record and why it failed, so a
// reviewer can audit the engine's reasoning without re-running it.
type Attempt struct {
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

// Result is one engine run: the matches written plus the unmatched remainder
// with its per-record attempt traces.
type Result struct {
	Matches          []models.Match
	NewMatches       int
	UnmatchedPayouts []models.StagedPayout
	UnmatchedBank    []models.StagedBankTransaction
	UnmatchedLedger  []models.StagedLedgerObject
	Attempts         map[string][]Attempt // "<entity_type>:<ref>" -> attempts
}

// TraceKey builds the Attempts map key for an entity reference.
func TraceKey(entityType, ref string) string {
	return entityType + ":" + ref
}

// Engine runs the multi-pass matcher, highest-precision strategy first. Each
// pass removes matched records from the candidate pool of later passes; a
// record keeps at most one match per counterparty type, so chains
// payout -> bank -> ledger are allowed.
type Engine struct {
	cfg     Config
	matches *repository.MatchRepository
	log     zerolog.Logger
}

func NewEngine(cfg Config, matches *repository.MatchRepository, log zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, matches: matches, log: log}
}

// matchState tracks which pair types each record has already used up.
type matchState struct {
	payoutBank   map[string]bool
	payoutLedger map[string]bool
	bankPayout   map[string]bool
	bankLedger   map[string]bool
	ledgerPayout map[string]bool
	ledgerBank   map[string]bool
}

func newMatchState() *matchState {
	return &matchState{
		payoutBank:   map[string]bool{},
		payoutLedger: map[string]bool{},
		bankPayout:   map[string]bool{},
		bankLedger:   map[string]bool{},
		ledgerPayout: map[string]bool{},
		ledgerBank:   map[string]bool{},
	}
}

// Run executes every pass over the pool and persists the resulting matches.
// Matches are committed as each pass completes, so a later pass failing never
// discards earlier passes' results. Re-running over identical staged data
// yields an identical match set.
func (e *Engine) Run(companyID uuid.UUID, pool *Pool) (*Result, error) {
	state := newMatchState()
	result := &Result{Attempts: map[string][]Attempt{}}

	// 1. Exact reference match
	e.passExactRef(pool, state, result)
	if err := e.commit(companyID, result); err != nil {
		return result, err
	}

	// 2. Payout -> bank deposit on amount + date proximity
	e.passPayoutBank(pool, state, result)
	if err := e.commit(companyID, result); err != nil {
		return result, err
	}

	// 3. Bank -> ledger deposit/payment, same logic
	e.passBankLedger(pool, state, result)
	if err := e.commit(companyID, result); err != nil {
		return result, err
	}

	// 4. Aggregate: several entries summing to one payout's net
	e.passAggregate(pool, state, result)
	if err := e.commit(companyID, result); err != nil {
		return result, err
	}

	e.collectUnmatched(pool, state, result)

	e.log.Info().
		Str("company_id", companyID.String()).
		Int("matches", len(result.Matches)).
		Int("new_matches", result.NewMatches).
		Int("unmatched_payouts", len(result.UnmatchedPayouts)).
		Int("unmatched_bank", len(result.UnmatchedBank)).
		Int("unmatched_ledger", len(result.UnmatchedLedger)).
		Msg("matching run complete")

	return result, nil
}

// commit persists matches not yet written, leaving already-written ones alone.
func (e *Engine) commit(companyID uuid.UUID, result *Result) error {
	for i := range result.Matches {
		m := &result.Matches[i]
		if m.ID != uuid.Nil {
			continue // committed by an earlier pass
		}
		m.CompanyID = companyID
		created, err := e.matches.Insert(m)
		if err != nil {
			return fmt.Errorf("commit match %s/%s: %w", m.LeftRef, m.RightRef, err)
		}
		if created {
			result.NewMatches++
		}
	}
	return nil
}

func (e *Engine) passExactRef(pool *Pool, state *matchState, result *Result) {
	payoutsByID := make(map[string]*models.StagedPayout, len(pool.Payouts))
	for i := range pool.Payouts {
		payoutsByID[pool.Payouts[i].ProviderPayoutID] = &pool.Payouts[i]
	}
	bankByID := make(map[string]*models.StagedBankTransaction, len(pool.Bank))
	for i := range pool.Bank {
		bankByID[pool.Bank[i].ProviderTxnID] = &pool.Bank[i]
	}

	for i := range pool.Ledger {
		obj := &pool.Ledger[i]
		if obj.ExternalRef == "" {
			e.addAttempt(result, models.EntityLedger, obj.LedgerID,
				models.StrategyExactRef, "no external reference present")
			continue
		}
		if p, ok := payoutsByID[obj.ExternalRef]; ok && !state.ledgerPayout[obj.LedgerID] && !state.payoutLedger[p.ProviderPayoutID] {
			result.Matches = append(result.Matches, models.Match{
				LeftType:   models.EntityPayout,
				LeftRef:    p.ProviderPayoutID,
				RightType:  models.EntityLedger,
				RightRef:   obj.LedgerID,
				Strategy:   models.StrategyExactRef,
				Confidence: 1.0,
				Details:    evidenceJSON(map[string]interface{}{"external_ref": obj.ExternalRef}),
			})
			state.ledgerPayout[obj.LedgerID] = true
			state.payoutLedger[p.ProviderPayoutID] = true
			continue
		}
		if b, ok := bankByID[obj.ExternalRef]; ok && !state.ledgerBank[obj.LedgerID] && !state.bankLedger[b.ProviderTxnID] {
			result.Matches = append(result.Matches, models.Match{
				LeftType:   models.EntityBank,
				LeftRef:    b.ProviderTxnID,
				RightType:  models.EntityLedger,
				RightRef:   obj.LedgerID,
				Strategy:   models.StrategyExactRef,
				Confidence: 1.0,
				Details:    evidenceJSON(map[string]interface{}{"external_ref": obj.ExternalRef}),
			})
			state.ledgerBank[obj.LedgerID] = true
			state.bankLedger[b.ProviderTxnID] = true
			continue
		}
		e.addAttempt(result, models.EntityLedger, obj.LedgerID,
			models.StrategyExactRef, "external reference resolves to no staged record")
	}
}

func (e *Engine) passPayoutBank(pool *Pool, state *matchState, result *Result) {
	for i := range pool.Payouts {
		p := &pool.Payouts[i]
		if state.payoutBank[p.ProviderPayoutID] {
			continue
		}

		var candidates []*models.StagedBankTransaction
		amountSeen := false
		for j := range pool.Bank {
			b := &pool.Bank[j]
			if state.bankPayout[b.ProviderTxnID] {
				continue
			}
			if b.Amount != p.NetAmount || b.Currency != p.Currency {
				continue
			}
			amountSeen = true
			if daysBetween(p.ArrivalDate, b.PostedDate) > float64(e.cfg.DateWindowDays) {
				continue
			}
			candidates = append(candidates, b)
		}

		if len(candidates) == 0 {
			reason := fmt.Sprintf("no bank transaction of %d %s within ±%d days of %s",
				p.NetAmount, p.Currency, e.cfg.DateWindowDays, p.ArrivalDate.Format("2006-01-02"))
			if amountSeen {
				reason = fmt.Sprintf("amount %d %s seen but outside ±%d day window",
					p.NetAmount, p.Currency, e.cfg.DateWindowDays)
			}
			e.addAttempt(result, models.EntityPayout, p.ProviderPayoutID, models.StrategyAmountDate, reason)
			continue
		}

		best := pickBest(candidates, p.ArrivalDate,
			func(b *models.StagedBankTransaction) time.Time { return b.PostedDate },
			func(b *models.StagedBankTransaction) string { return b.ProviderTxnID },
		)
		days := daysBetween(p.ArrivalDate, best.PostedDate)
		conf := e.cfg.DateConfidence(days)
		if conf < e.cfg.MinConfidence {
			e.addAttempt(result, models.EntityPayout, p.ProviderPayoutID, models.StrategyAmountDate,
				fmt.Sprintf("best candidate %s scored %.2f, below minimum %.2f", best.ProviderTxnID, conf, e.cfg.MinConfidence))
			continue
		}

		result.Matches = append(result.Matches, models.Match{
			LeftType:   models.EntityPayout,
			LeftRef:    p.ProviderPayoutID,
			RightType:  models.EntityBank,
			RightRef:   best.ProviderTxnID,
			Strategy:   models.StrategyAmountDate,
			Confidence: conf,
			Details: evidenceJSON(map[string]interface{}{
				"amount":          p.NetAmount,
				"currency":        p.Currency,
				"days_apart":      days,
				"candidate_count": len(candidates),
			}),
		})
		state.payoutBank[p.ProviderPayoutID] = true
		state.bankPayout[best.ProviderTxnID] = true
	}
}

func (e *Engine) passBankLedger(pool *Pool, state *matchState, result *Result) {
	for i := range pool.Bank {
		b := &pool.Bank[i]
		if state.bankLedger[b.ProviderTxnID] {
			continue
		}

		var candidates []*models.StagedLedgerObject
		amountSeen := false
		for j := range pool.Ledger {
			obj := &pool.Ledger[j]
			// A ledger object already matched to a payout stays eligible
			// here: bank is a different counterparty type.
			if state.ledgerBank[obj.LedgerID] {
				continue
			}
			if obj.ObjectType != models.LedgerObjectDeposit && obj.ObjectType != models.LedgerObjectPayment {
				continue
			}
			if obj.Amount != b.Amount || obj.Currency != b.Currency {
				continue
			}
			amountSeen = true
			if daysBetween(b.PostedDate, obj.TxnDate) > float64(e.cfg.DateWindowDays) {
				continue
			}
			candidates = append(candidates, obj)
		}

		if len(candidates) == 0 {
			reason := fmt.Sprintf("no ledger deposit/payment of %d %s within ±%d days of %s",
				b.Amount, b.Currency, e.cfg.DateWindowDays, b.PostedDate.Format("2006-01-02"))
			if amountSeen {
				reason = fmt.Sprintf("amount %d %s seen but outside ±%d day window",
					b.Amount, b.Currency, e.cfg.DateWindowDays)
			}
			e.addAttempt(result, models.EntityBank, b.ProviderTxnID, models.StrategyAmountDate, reason)
			continue
		}

		best := pickBest(candidates, b.PostedDate,
			func(o *models.StagedLedgerObject) time.Time { return o.TxnDate },
			func(o *models.StagedLedgerObject) string { return o.LedgerID },
		)
		days := daysBetween(b.PostedDate, best.TxnDate)
		conf := e.cfg.DateConfidence(days)
		if conf < e.cfg.MinConfidence {
			e.addAttempt(result, models.EntityBank, b.ProviderTxnID, models.StrategyAmountDate,
				fmt.Sprintf("best candidate %s scored %.2f, below minimum %.2f", best.LedgerID, conf, e.cfg.MinConfidence))
			continue
		}

		result.Matches = append(result.Matches, models.Match{
			LeftType:   models.EntityBank,
			LeftRef:    b.ProviderTxnID,
			RightType:  models.EntityLedger,
			RightRef:   best.LedgerID,
			Strategy:   models.StrategyAmountDate,
			Confidence: conf,
			Details: evidenceJSON(map[string]interface{}{
				"amount":          b.Amount,
				"currency":        b.Currency,
				"days_apart":      days,
				"candidate_count": len(candidates),
			}),
		})
		state.bankLedger[b.ProviderTxnID] = true
		state.ledgerBank[best.LedgerID] = true
	}
}

// aggCandidate is one entry eligible to join an aggregate group. Candidates
// come from the bank feed and from ledger deposits/payments alike.
type aggCandidate struct {
	entityType string
	ref        string
	amount     int64
	date       time.Time
}

// passAggregate covers batched payouts: no single entry equals the net
// amount, but a small set of bank or ledger entries does. The candidate pool
// and set size are capped; exceeding either cap counts as no aggregate match
// found.
func (e *Engine) passAggregate(pool *Pool, state *matchState, result *Result) {
	for i := range pool.Payouts {
		p := &pool.Payouts[i]
		wantBank := !state.payoutBank[p.ProviderPayoutID]
		wantLedger := !state.payoutLedger[p.ProviderPayoutID]
		if !wantBank && !wantLedger {
			continue
		}

		var candidates []aggCandidate
		if wantBank {
			for j := range pool.Bank {
				b := &pool.Bank[j]
				if state.bankPayout[b.ProviderTxnID] {
					continue
				}
				if b.Currency != p.Currency || b.Amount <= 0 {
					continue
				}
				if daysBetween(p.ArrivalDate, b.PostedDate) > float64(e.cfg.DateWindowDays) {
					continue
				}
				candidates = append(candidates, aggCandidate{
					entityType: models.EntityBank,
					ref:        b.ProviderTxnID,
					amount:     b.Amount,
					date:       b.PostedDate,
				})
			}
		}
		if wantLedger {
			for j := range pool.Ledger {
				obj := &pool.Ledger[j]
				if state.ledgerPayout[obj.LedgerID] {
					continue
				}
				if obj.ObjectType != models.LedgerObjectDeposit && obj.ObjectType != models.LedgerObjectPayment {
					continue
				}
				if obj.Currency != p.Currency || obj.Amount <= 0 {
					continue
				}
				if daysBetween(p.ArrivalDate, obj.TxnDate) > float64(e.cfg.DateWindowDays) {
					continue
				}
				candidates = append(candidates, aggCandidate{
					entityType: models.EntityLedger,
					ref:        obj.LedgerID,
					amount:     obj.Amount,
					date:       obj.TxnDate,
				})
			}
		}

		if len(candidates) > e.cfg.MaxAggregateCandidates {
			e.addAttempt(result, models.EntityPayout, p.ProviderPayoutID, models.StrategyAggregate,
				fmt.Sprintf("candidate pool of %d exceeds cap %d", len(candidates), e.cfg.MaxAggregateCandidates))
			continue
		}
		if len(candidates) < 2 {
			e.addAttempt(result, models.EntityPayout, p.ProviderPayoutID, models.StrategyAggregate,
				"fewer than two candidates in window")
			continue
		}

		// Search order: closest date first, then smallest id.
		sort.Slice(candidates, func(a, b int) bool {
			da := daysBetween(p.ArrivalDate, candidates[a].date)
			db := daysBetween(p.ArrivalDate, candidates[b].date)
			if da != db {
				return da < db
			}
			return candidates[a].ref < candidates[b].ref
		})

		group := findSubsetSum(candidates, p.NetAmount, e.cfg.MaxAggregateSize)
		if group == nil {
			e.addAttempt(result, models.EntityPayout, p.ProviderPayoutID, models.StrategyAggregate,
				fmt.Sprintf("no combination of up to %d entries sums to %d", e.cfg.MaxAggregateSize, p.NetAmount))
			continue
		}

		// Penalize relative to the single-record case at the farthest member.
		farthest := 0.0
		memberRefs := make([]string, 0, len(group))
		for _, c := range group {
			if d := daysBetween(p.ArrivalDate, c.date); d > farthest {
				farthest = d
			}
			memberRefs = append(memberRefs, TraceKey(c.entityType, c.ref))
		}
		conf := e.cfg.DateConfidence(farthest) - e.cfg.AggregatePenalty
		if conf < e.cfg.MinAggregateConfidence {
			conf = e.cfg.MinAggregateConfidence
		}
		if conf < e.cfg.MinConfidence {
			e.addAttempt(result, models.EntityPayout, p.ProviderPayoutID, models.StrategyAggregate,
				fmt.Sprintf("aggregate of %d entries scored %.2f, below minimum %.2f", len(group), conf, e.cfg.MinConfidence))
			continue
		}

		details := evidenceJSON(map[string]interface{}{
			"group":      memberRefs,
			"group_size": len(group),
			"net_amount": p.NetAmount,
		})
		for _, c := range group {
			result.Matches = append(result.Matches, models.Match{
				LeftType:   models.EntityPayout,
				LeftRef:    p.ProviderPayoutID,
				RightType:  c.entityType,
				RightRef:   c.ref,
				Strategy:   models.StrategyAggregate,
				Confidence: conf,
				Details:    details,
			})
			switch c.entityType {
			case models.EntityBank:
				state.bankPayout[c.ref] = true
				state.payoutBank[p.ProviderPayoutID] = true
			case models.EntityLedger:
				state.ledgerPayout[c.ref] = true
				state.payoutLedger[p.ProviderPayoutID] = true
			}
		}
	}
}

func (e *Engine) collectUnmatched(pool *Pool, state *matchState, result *Result) {
	for i := range pool.Payouts {
		p := pool.Payouts[i]
		if !state.payoutBank[p.ProviderPayoutID] && !state.payoutLedger[p.ProviderPayoutID] {
			result.UnmatchedPayouts = append(result.UnmatchedPayouts, p)
		}
	}
	for i := range pool.Bank {
		b := pool.Bank[i]
		if !state.bankPayout[b.ProviderTxnID] && !state.bankLedger[b.ProviderTxnID] {
			result.UnmatchedBank = append(result.UnmatchedBank, b)
		}
	}
	for i := range pool.Ledger {
		obj := pool.Ledger[i]
		if !state.ledgerPayout[obj.LedgerID] && !state.ledgerBank[obj.LedgerID] {
			result.UnmatchedLedger = append(result.UnmatchedLedger, obj)
		}
	}
}

func (e *Engine) addAttempt(result *Result, entityType, ref, strategy, reason string) {
	key := TraceKey(entityType, ref)
	result.Attempts[key] = append(result.Attempts[key], Attempt{Strategy: strategy, Reason: reason})
}

// pickBest applies the tie-break: closest date first, then smallest id
// lexicographically, so repeated runs on identical input are deterministic.
func pickBest[T any](candidates []*T, anchor time.Time, dateOf func(*T) time.Time, idOf func(*T) string) *T {
	best := candidates[0]
	bestDays := daysBetween(anchor, dateOf(best))
	for _, c := range candidates[1:] {
		days := daysBetween(anchor, dateOf(c))
		switch {
		case days < bestDays:
			best, bestDays = c, days
		case days == bestDays && idOf(c) < idOf(best):
			best = c
		}
	}
	return best
}

// findSubsetSum returns the first set of 2..maxSize entries summing exactly
// to target, searching in the caller's sorted order. Nil when none exists.
func findSubsetSum(candidates []aggCandidate, target int64, maxSize int) []aggCandidate {
	var pick []aggCandidate
	var search func(start int, remaining int64) bool
	search = func(start int, remaining int64) bool {
		if remaining == 0 {
			return len(pick) >= 2
		}
		if len(pick) == maxSize || remaining < 0 {
			return false
		}
		for i := start; i < len(candidates); i++ {
			pick = append(pick, candidates[i])
			if search(i+1, remaining-candidates[i].amount) {
				return true
			}
			pick = pick[:len(pick)-1]
		}
		return false
	}
	if search(0, target) {
		return pick
	}
	return nil
}

func daysBetween(a, b time.Time) float64 {
	return math.Abs(a.Sub(b).Hours() / 24)
}

func evidenceJSON(fields map[string]interface{}) []byte {
	raw, _ := json.Marshal(fields)
	return raw
}
