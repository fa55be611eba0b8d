// backend/src/services/batch_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/username/commissioncalc/backend/src/apperrors"
	"github.com/username/commissioncalc/backend/src/database"
	"github.com/username/commissioncalc/backend/src/llm"
	"github.com/username/commissioncalc/backend/src/logger"
	"github.com/username/commissioncalc/backend/src/metrics"
	"github.com/username/commissioncalc/backend/src/models"
	"github.com/username/commissioncalc/backend/src/processors"
	"github.com/username/commissioncalc/backend/src/rules"
)

const (
	ckBatchReport = "batch_report_%s"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

// Row-level messages.
const (
	MsgBatchRowUndetected    = "Row must include user and amount_usd (>= 0)"
	MsgFlowRowUndetected     = "Could not detect amount_usd (>= 0) and user from this row"
	MsgMissingOriginationPct = "Missing own origination % for originator calculation."
	MsgRowCalculationFailed  = "Failed to calculate row"
	MsgRulesRequired         = "Rules are required (upload, save, or provide rulesText)"
)

type batchServiceImpl struct {
	commission  CommissionService
	model       llm.ChatModel
	rulesStore  rules.Store
	reportCache *cache.Cache
	runStore    BatchRunStore
	now         func() time.Time
}

// NewBatchService wires the pipeline. runStore may be nil, in which case
// reports live only as long as the cache keeps them.
func NewBatchService(
	commission CommissionService,
	model llm.ChatModel,
	rulesStore rules.Store,
	reportCache *cache.Cache,
	runStore BatchRunStore,
) BatchService {
	return &batchServiceImpl{
		commission:  commission,
		model:       model,
		rulesStore:  rulesStore,
		reportCache: reportCache,
		runStore:    runStore,
		now:         time.Now,
	}
}

func (s *batchServiceImpl) Run(ctx context.Context, in BatchInput) (*BatchOutput, error) {
	startTime := time.Now()
	log := logger.FromContext(ctx)

	if !llm.Configured(s.model) {
		return nil, apperrors.New(apperrors.KindModelNotConfigured, llm.NotConfiguredMessage)
	}

	snapshot, err := s.resolveRules(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(in.Rows) == 0 {
		if in.Mode == models.ModeFlow {
			return nil, apperrors.Validation("No rows found in payment file")
		}
		return nil, apperrors.Validation("No rows found in attorney data CSV")
	}

	detector := processors.NewExactDetector()
	undetected := MsgBatchRowUndetected
	if in.Mode == models.ModeFlow {
		detector = processors.NewHeuristicDetector()
		undetected = MsgFlowRowUndetected
	}

	report := &models.BatchReport{
		ID:           uuid.NewString(),
		Mode:         in.Mode,
		RulesVersion: snapshot.Version,
		Results:      make([]models.RowResult, 0, len(in.Rows)),
		CreatedAt:    s.now().UTC(),
	}
	log.Info("Batch run START", "batchID", report.ID, "mode", in.Mode, "rows", len(in.Rows), "rulesVersion", snapshot.Version)

	rulesText := snapshot.Trimmed()
	for idx, row := range in.Rows {
		if err := ctx.Err(); err != nil {
			log.Warn("Batch run cancelled", "batchID", report.ID, "processedRows", idx, "error", err)
			return nil, fmt.Errorf("batch %s cancelled after %d rows: %w", report.ID, idx, err)
		}
		result := s.processRow(ctx, detector, undetected, idx+2, row, rulesText)
		metrics.RecordRow(string(in.Mode), result.Error)
		report.Results = append(report.Results, result)
	}

	csvText, err := RenderReportCSV(report.Results)
	if err != nil {
		return nil, fmt.Errorf("error rendering batch %s: %w", report.ID, err)
	}

	s.reportCache.Set(fmt.Sprintf(ckBatchReport, report.ID), report, cache.DefaultExpiration)
	if s.runStore != nil {
		run := models.BatchRun{
			ID:           report.ID,
			Mode:         report.Mode,
			RulesVersion: report.RulesVersion,
			ResultsCount: report.ResultsCount(),
			FailedCount:  report.FailedCount(),
			CSV:          csvText,
			CreatedAt:    report.CreatedAt,
		}
		if err := s.runStore.Save(ctx, run); err != nil {
			log.Error("Failed to persist batch run", "batchID", report.ID, "error", err)
		}
	}

	elapsed := time.Since(startTime)
	metrics.RecordBatch(string(in.Mode), elapsed.Seconds())
	log.Info("Batch run END", "batchID", report.ID, "results", report.ResultsCount(), "failed", report.FailedCount(), "duration", elapsed)
	return &BatchOutput{Report: report, CSV: csvText}, nil
}

// resolveRules captures the rules once so that a concurrent save cannot change
// them mid-run.
func (s *batchServiceImpl) resolveRules(ctx context.Context, in BatchInput) (rules.Snapshot, error) {
	if text := strings.TrimSpace(in.RulesText); text != "" {
		return rules.NewSnapshot(text, s.now().UTC()), nil
	}
	if in.UseSavedRules && s.rulesStore != nil {
		snap, err := s.rulesStore.Current(ctx)
		if err != nil {
			return rules.Snapshot{}, fmt.Errorf("error reading saved rules: %w", err)
		}
		if !snap.Empty() {
			return snap, nil
		}
	}
	return rules.Snapshot{}, apperrors.Validation(MsgRulesRequired)
}

// processRow never returns an error; every failure is recorded on the row.
func (s *batchServiceImpl) processRow(
	ctx context.Context,
	detector processors.FieldDetector,
	undetectedMsg string,
	rowNumber int,
	row *models.PaymentRow,
	rulesText string,
) models.RowResult {
	detected := detector.Detect(row)
	if !processors.IsCalculable(detected) {
		return models.FailedRow(rowNumber, undetectedMsg)
	}

	userOut, err := s.commission.CalculateUserPayment(ctx, UserPaymentInput{
		Amount:         detected.Amount,
		UserName:       detected.User,
		OriginatorName: detected.Originator,
		RulesText:      rulesText,
		Context:        detected.Context,
		RowData:        row,
	})
	if err != nil {
		return rowFailure(ctx, rowNumber, err)
	}

	result := models.RowResult{
		RowNumber:       rowNumber,
		State:           models.RowFinalNoOriginator,
		AmountUSD:       floatPtr(userOut.AmountUSD),
		User:            userOut.User,
		Originator:      detected.Originator,
		RuleApplied:     userOut.RuleApplied,
		Percentage:      floatPtr(userOut.Percentage),
		UserPayment:     floatPtr(userOut.UserPayment),
		UserCalculation: userOut.Calculation,
	}
	result.AddWarning(userOut.Warning)
	if detected.HasOwnOriginationPercent() {
		result.OwnOriginationPercent = floatPtr(detected.OwnOriginationPercent)
	}

	switch {
	case processors.SamePerson(detected.User, detected.Originator):
		result.OriginatorPayment = floatPtr(0)
		result.OriginatorCalculation = processors.SamePersonCalculation
	case !detected.HasOwnOriginationPercent():
		result.AddWarning(MsgMissingOriginationPct)
	default:
		origOut, err := s.commission.CalculateOriginatorPayment(ctx, OriginatorPaymentInput{
			UserPayment:           userOut.UserPayment,
			OwnOriginationPercent: detected.OwnOriginationPercent,
			UserName:              detected.User,
			OriginatorName:        detected.Originator,
		})
		if err != nil {
			return rowFailure(ctx, rowNumber, err)
		}
		result.OriginatorPayment = floatPtr(origOut.OriginatorPayment)
		result.OriginatorCalculation = origOut.Calculation
		result.State = models.RowFinalWithOriginator
		if origOut.Warning != "" {
			result.State = models.RowFinalWithOriginatorWarning
			result.AddWarning(origOut.Warning)
		}
	}
	return result
}

func rowFailure(ctx context.Context, rowNumber int, err error) models.RowResult {
	msg := apperrors.Message(err)
	if apperrors.KindOf(err) == apperrors.KindInternal {
		msg = MsgRowCalculationFailed
	}
	logger.FromContext(ctx).Warn("Row calculation failed", "rowNumber", rowNumber, "error", err)
	return models.FailedRow(rowNumber, msg)
}

func (s *batchServiceImpl) GetBatchCSV(ctx context.Context, batchID string) (string, error) {
	if cached, found := s.reportCache.Get(fmt.Sprintf(ckBatchReport, batchID)); found {
		logger.FromContext(ctx).Debug("Cache hit for batch report", "batchID", batchID)
		return RenderReportCSV(cached.(*models.BatchReport).Results)
	}
	if s.runStore == nil {
		return "", apperrors.Newf(apperrors.KindNotFound, "Batch %s not found", batchID)
	}
	run, err := s.runStore.Get(ctx, batchID)
	if errors.Is(err, database.ErrBatchNotFound) {
		return "", apperrors.Wrap(apperrors.KindNotFound, err, fmt.Sprintf("Batch %s not found", batchID))
	}
	if err != nil {
		return "", fmt.Errorf("error loading batch %s: %w", batchID, err)
	}
	return run.CSV, nil
}

func floatPtr(f float64) *float64 {
	return &f
}
