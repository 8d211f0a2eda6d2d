package actions

import (
	"encoding/json"
	"errors"
	"fmt"

	"ledger-reconciliation-backend/internal/apperrors"
	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/repository"
	"ledger-reconciliation-backend/internal/services/audit"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Executor applies a proposed corrective action against the external ledger
// exactly once per logical request. The fingerprint claim is the idempotency
// gate: concurrent duplicates race on a single atomic insert and the loser
// gets the winner's result back instead of a second ledger entry.
type Executor struct {
	exceptions   *repository.ExceptionRepository
	fingerprints *repository.FingerprintRepository
	staging      *repository.StagingRepository
	ledger       LedgerClient
	trail        *audit.Trail
	log          zerolog.Logger
}

func NewExecutor(
	exceptions *repository.ExceptionRepository,
	fingerprints *repository.FingerprintRepository,
	staging *repository.StagingRepository,
	ledger LedgerClient,
	trail *audit.Trail,
	log zerolog.Logger,
) *Executor {
	return &Executor{
		exceptions:   exceptions,
		fingerprints: fingerprints,
		staging:      staging,
		ledger:       ledger,
		trail:        trail,
		log:          log,
	}
}

// Actor identifies who triggered the action.
type Actor struct {
	Type string
	ID   string
}

// Outcome is the executor's answer. Duplicate means a prior request with the
// same fingerprint already completed; ExternalID is then the prior write's id.
type Outcome struct {
	Exception   *models.Exception `json:"exception"`
	ExternalID  string            `json:"external_id"`
	Fingerprint string            `json:"fingerprint"`
	Duplicate   bool              `json:"duplicate"`
}

// Execute resolves an open exception by writing the fix to the external
// ledger. On provider failure the exception stays open, the claim is released
// and no completed-action audit event is written.
func (e *Executor) Execute(exceptionID uuid.UUID, actionType string, req LedgerRequest, actor Actor) (*Outcome, error) {
	exc, err := e.exceptions.GetByID(exceptionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("exception %s: %w", exceptionID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !validAction(actionType) {
		return nil, apperrors.Invalid("unknown action type %q", actionType)
	}

	fingerprint := Fingerprint(exc.CompanyID, actionType, req)

	claim := &models.ActionFingerprint{
		CompanyID:   exc.CompanyID,
		Fingerprint: fingerprint,
		ActionType:  actionType,
	}
	won, err := e.fingerprints.TryClaim(claim)
	if err != nil {
		return nil, err
	}
	if !won {
		// Identical retries stay idempotent even after the exception closed.
		return e.duplicateOutcome(exc, fingerprint)
	}
	if exc.Status != models.ExceptionOpen {
		if relErr := e.fingerprints.Release(claim.ID); relErr != nil {
			e.log.Error().Err(relErr).Str("fingerprint", fingerprint).Msg("failed to release claim")
		}
		return nil, apperrors.ErrNotOpen
	}

	result, err := e.invoke(actionType, req)
	if err != nil {
		// Never commit the fingerprint for a failed write; the claim is
		// released so the caller can retry.
		if relErr := e.fingerprints.Release(claim.ID); relErr != nil {
			e.log.Error().Err(relErr).Str("fingerprint", fingerprint).Msg("failed to release claim")
		}
		e.appendAttemptEvent(exc, actionType, fingerprint, actor, err)
		return nil, apperrors.LedgerWrite(err)
	}

	resultJSON, _ := json.Marshal(result)
	if err := e.fingerprints.MarkCompleted(claim.ID, result.ExternalID, resultJSON); err != nil {
		return nil, err
	}

	fixPayload, _ := json.Marshal(map[string]interface{}{
		"request":     req,
		"external_id": result.ExternalID,
	})
	resolved, err := e.exceptions.Resolve(exc.ID, actionType, fixPayload)
	if err != nil {
		return nil, err
	}

	// Back-link the staged ledger record to the write that fixed it.
	if resolved.PrimaryType == models.EntityLedger {
		if err := e.staging.SetLedgerExternalRef(resolved.CompanyID, resolved.PrimaryRef, result.ExternalID); err != nil {
			e.log.Warn().Err(err).Str("ledger_id", resolved.PrimaryRef).Msg("failed to write back-reference")
		}
	}

	if _, err := e.trail.Append(resolved.CompanyID, audit.Entry{
		ActorType:  actor.Type,
		ActorID:    actor.ID,
		Verb:       models.VerbActionExecuted,
		EntityType: "exception",
		EntityID:   resolved.ID.String(),
		Payload: map[string]interface{}{
			"action_type": actionType,
			"fingerprint": fingerprint,
			"external_id": result.ExternalID,
		},
	}); err != nil {
		return nil, err
	}

	e.log.Info().
		Str("exception_id", resolved.ID.String()).
		Str("action_type", actionType).
		Str("external_id", result.ExternalID).
		Msg("action executed")

	return &Outcome{
		Exception:   resolved,
		ExternalID:  result.ExternalID,
		Fingerprint: fingerprint,
	}, nil
}

// duplicateOutcome is the loser's path: report the prior result, or signal
// that the winner is still in flight.
func (e *Executor) duplicateOutcome(exc *models.Exception, fingerprint string) (*Outcome, error) {
	prior, err := e.fingerprints.Get(exc.CompanyID, fingerprint)
	if err != nil {
		return nil, err
	}
	if prior == nil || prior.Status != models.FingerprintCompleted {
		return nil, apperrors.ErrDuplicateInFlight
	}
	current, err := e.exceptions.GetByID(exc.ID)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Exception:   current,
		ExternalID:  prior.ExternalID,
		Fingerprint: fingerprint,
		Duplicate:   true,
	}, nil
}

func (e *Executor) invoke(actionType string, req LedgerRequest) (*LedgerResult, error) {
	switch actionType {
	case models.ActionCreateLedgerDeposit:
		return e.ledger.CreateDeposit(req)
	case models.ActionMarkInvoicePaid:
		return e.ledger.MarkInvoicePaid(req)
	case models.ActionCreateTransfer:
		return e.ledger.CreateTransfer(req)
	case models.ActionCreateExpense:
		return e.ledger.CreateExpense(req)
	default:
		return nil, apperrors.Invalid("unknown action type %q", actionType)
	}
}

func validAction(actionType string) bool {
	switch actionType {
	case models.ActionCreateLedgerDeposit, models.ActionMarkInvoicePaid,
		models.ActionCreateTransfer, models.ActionCreateExpense:
		return true
	}
	return false
}

// appendAttemptEvent records a failed attempt distinctly from a completed
// action so trail exports can never confuse the two.
func (e *Executor) appendAttemptEvent(exc *models.Exception, actionType, fingerprint string, actor Actor, cause error) {
	if _, err := e.trail.Append(exc.CompanyID, audit.Entry{
		ActorType:  actor.Type,
		ActorID:    actor.ID,
		Verb:       models.VerbActionFailed,
		EntityType: "exception",
		EntityID:   exc.ID.String(),
		Payload: map[string]interface{}{
			"action_type": actionType,
			"fingerprint": fingerprint,
			"error":       cause.Error(),
		},
	}); err != nil {
		e.log.Error().Err(err).Msg("failed to record attempt event")
	}
}
