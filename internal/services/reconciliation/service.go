package reconciliation

import (
	"time"

	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/repository"
	"ledger-reconciliation-backend/internal/services/audit"
	"ledger-reconciliation-backend/internal/services/exceptions"
	"ledger-reconciliation-backend/internal/services/matching"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Service orchestrates a reconciliation run: load the staged pool, run the
// matching passes, classify the remainder, record the run. Runs are
// single-flight per company; matches mutate a shared candidate pool, so a
// second trigger while one is in progress joins the running one instead of
// interleaving. Companies are independent and run freely in parallel.
type Service struct {
	staging   *repository.StagingRepository
	matches   *repository.MatchRepository
	engine    *matching.Engine
	generator *exceptions.Generator
	trail     *audit.Trail
	db        *gorm.DB
	cfg       matching.Config
	log       zerolog.Logger
	runs      singleflight.Group
}

func NewService(
	staging *repository.StagingRepository,
	matches *repository.MatchRepository,
	engine *matching.Engine,
	generator *exceptions.Generator,
	trail *audit.Trail,
	cfg matching.Config,
	log zerolog.Logger,
) *Service {
	return &Service{
		staging:   staging,
		matches:   matches,
		engine:    engine,
		generator: generator,
		trail:     trail,
		db:        staging.DB(),
		cfg:       cfg,
		log:       log,
	}
}

// Summary is the caller-facing result of one run.
type Summary struct {
	RunID            uuid.UUID          `json:"run_id"`
	Matches          []models.Match     `json:"matches"`
	Exceptions       []models.Exception `json:"exceptions"`
	NewMatches       int                `json:"new_matches"`
	MatchesByType    map[string]int     `json:"matches_by_strategy"`
	ExceptionsByType map[string]int     `json:"exceptions_by_type"`
}

// Run reconciles one company, optionally bounded by [start, end). Concurrent
// duplicate triggers for the same company share a single execution.
func (s *Service) Run(companyID uuid.UUID, start, end *time.Time) (*Summary, error) {
	v, err, _ := s.runs.Do(companyID.String(), func() (interface{}, error) {
		return s.run(companyID, start, end)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Summary), nil
}

func (s *Service) run(companyID uuid.UUID, start, end *time.Time) (*Summary, error) {
	run := &models.ReconciliationRun{
		ID:          uuid.New(),
		CompanyID:   companyID,
		WindowStart: start,
		WindowEnd:   end,
		Status:      "running",
		StartedAt:   time.Now().UTC(),
	}
	if err := s.db.Create(run).Error; err != nil {
		return nil, err
	}

	pool, err := s.loadPool(companyID, start, end)
	if err != nil {
		s.failRun(run)
		return nil, err
	}

	result, err := s.engine.Run(companyID, pool)
	if err != nil {
		// Matches committed by completed passes stay durable.
		s.failRun(run)
		return nil, err
	}

	created, err := s.generator.Generate(companyID, result)
	if err != nil {
		s.failRun(run)
		return nil, err
	}

	summary := &Summary{
		RunID:            run.ID,
		Matches:          result.Matches,
		Exceptions:       created,
		NewMatches:       result.NewMatches,
		MatchesByType:    map[string]int{},
		ExceptionsByType: map[string]int{},
	}
	for _, m := range result.Matches {
		summary.MatchesByType[m.Strategy]++
	}
	for _, exc := range created {
		summary.ExceptionsByType[exc.Type]++
	}

	now := time.Now().UTC()
	run.Status = "completed"
	run.CompletedAt = &now
	run.MatchCount = len(result.Matches)
	run.ExceptionCount = len(created)
	if err := s.db.Save(run).Error; err != nil {
		return nil, err
	}

	if _, err := s.trail.Append(companyID, audit.Entry{
		ActorType:  models.ActorSystem,
		ActorID:    "reconciliation",
		Verb:       models.VerbRunCompleted,
		EntityType: "run",
		EntityID:   run.ID.String(),
		Payload: map[string]interface{}{
			"matches":     len(result.Matches),
			"new_matches": result.NewMatches,
			"exceptions":  len(created),
		},
	}); err != nil {
		return nil, err
	}

	return summary, nil
}

// loadPool reads every staged record intersecting the window plus the
// configured look-back/forward buffer.
func (s *Service) loadPool(companyID uuid.UUID, start, end *time.Time) (*matching.Pool, error) {
	buffer := time.Duration(s.cfg.BufferDays) * 24 * time.Hour
	var bufStart, bufEnd *time.Time
	if start != nil {
		t := start.Add(-buffer)
		bufStart = &t
	}
	if end != nil {
		t := end.Add(buffer)
		bufEnd = &t
	}

	payouts, err := s.staging.PayoutsInWindow(companyID, bufStart, bufEnd)
	if err != nil {
		return nil, err
	}
	bank, err := s.staging.BankTransactionsInWindow(companyID, bufStart, bufEnd)
	if err != nil {
		return nil, err
	}
	ledger, err := s.staging.LedgerObjectsInWindow(companyID, bufStart, bufEnd)
	if err != nil {
		return nil, err
	}

	return &matching.Pool{Payouts: payouts, Bank: bank, Ledger: ledger}, nil
}

// GetRun returns one run's summary row.
func (s *Service) GetRun(id uuid.UUID) (*models.ReconciliationRun, error) {
	var run models.ReconciliationRun
	if err := s.db.First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Service) failRun(run *models.ReconciliationRun) {
	now := time.Now().UTC()
	run.Status = "failed"
	run.CompletedAt = &now
	if err := s.db.Save(run).Error; err != nil {
		s.log.Error().Err(err).Str("run_id", run.ID.String()).Msg("failed to mark run failed")
	}
}
