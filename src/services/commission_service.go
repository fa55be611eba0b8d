// backend/src/services/commission_service.go
package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/username/commissioncalc/backend/src/apperrors"
	"github.com/username/commissioncalc/backend/src/llm"
	"github.com/username/commissioncalc/backend/src/logger"
	"github.com/username/commissioncalc/backend/src/metrics"
	"github.com/username/commissioncalc/backend/src/models"
	"github.com/username/commissioncalc/backend/src/processors"
)

// DriftWarning is attached when a model-reported amount was replaced.
const DriftWarning = "Model output disagreed with deterministic formula; formula result returned."

const defaultMaxTokens = 700

type commissionServiceImpl struct {
	model     llm.ChatModel
	maxTokens int
}

func NewCommissionService(model llm.ChatModel, maxTokens int) CommissionService {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &commissionServiceImpl{model: model, maxTokens: maxTokens}
}

func (s *commissionServiceImpl) CalculateUserPayment(ctx context.Context, in UserPaymentInput) (*models.UserCalculationResult, error) {
	in.UserName = strings.TrimSpace(in.UserName)
	in.OriginatorName = strings.TrimSpace(in.OriginatorName)
	in.RulesText = strings.TrimSpace(in.RulesText)

	if in.UserName == "" {
		return nil, apperrors.Validation("User name is required")
	}
	if in.RulesText == "" {
		return nil, apperrors.Validation("Rules sheet text is required")
	}
	if err := mustBeFinite(in.Amount, "amount"); err != nil {
		return nil, err
	}
	if in.Amount < 0 {
		return nil, apperrors.Validation("amount must be >= 0")
	}

	system, user := buildUserPrompt(in)
	content, err := s.model.Complete(ctx, llm.ChatRequest{
		System:      system,
		User:        user,
		Temperature: 0,
		MaxTokens:   s.maxTokens,
	})
	metrics.RecordModelCall(metrics.StepUser, err)
	if err != nil {
		return nil, err
	}

	var reply userPaymentReply
	if err := llm.ExtractJSONObject(content, &reply); err != nil {
		logger.FromContext(ctx).Warn("Unusable user-step model reply", "error", err, "reply_len", len(content))
		return nil, err
	}
	if reply.Error {
		msg := strings.TrimSpace(string(reply.ErrorMessage))
		if msg == "" {
			msg = "Rules sheet ambiguous"
		}
		return nil, apperrors.New(apperrors.KindModelReported, msg)
	}

	percentage := reply.Percentage.Float()
	reported := reply.UserPayment.Float()
	if err := mustBeFinite(percentage, "percentage"); err != nil {
		return nil, err
	}
	if err := mustBeFinite(reported, "user_payment"); err != nil {
		return nil, err
	}
	if percentage < 0 || percentage > 1 {
		return nil, apperrors.Newf(apperrors.KindValidation, "percentage must be between 0 and 1, got %s", processors.FormatNumber(percentage))
	}

	result := &models.UserCalculationResult{
		AmountUSD:   in.Amount,
		User:        in.UserName,
		Originator:  in.OriginatorName,
		RuleApplied: string(reply.RuleApplied),
		Percentage:  percentage,
		UserPayment: reported,
		Calculation: string(reply.Calculation),
	}

	expected, formula := processors.DeterministicUserPayment(in.Amount, percentage)
	if value, replaced := processors.VerifyOrReplace(reported, expected, processors.DriftTolerance); replaced {
		logger.FromContext(ctx).Warn("User payment drift corrected",
			"user", in.UserName, "model_value", reported, "formula_value", value)
		metrics.RecordDriftOverride(metrics.StepUser)
		result.UserPayment = value
		result.Calculation = formula
		result.Warning = DriftWarning
	}
	return result, nil
}

func (s *commissionServiceImpl) CalculateOriginatorPayment(ctx context.Context, in OriginatorPaymentInput) (*models.OriginatorCalculationResult, error) {
	in.UserName = strings.TrimSpace(in.UserName)
	in.OriginatorName = strings.TrimSpace(in.OriginatorName)

	if in.UserName == "" || in.OriginatorName == "" {
		return nil, apperrors.Validation("User name and originator name are required")
	}
	if err := mustBeFinite(in.UserPayment, "userPayment"); err != nil {
		return nil, err
	}
	if err := mustBeFinite(in.OwnOriginationPercent, "ownOriginationPercent"); err != nil {
		return nil, err
	}
	if in.OwnOriginationPercent < 0 || in.OwnOriginationPercent > 100 {
		return nil, apperrors.Validation("ownOriginationPercent must be between 0 and 100")
	}

	result := &models.OriginatorCalculationResult{
		UserPayment:           in.UserPayment,
		User:                  in.UserName,
		Originator:            in.OriginatorName,
		OwnOriginationPercent: in.OwnOriginationPercent,
	}

	if processors.SamePerson(in.UserName, in.OriginatorName) {
		result.OriginatorPayment = 0
		result.Calculation = processors.SamePersonCalculation
		return result, nil
	}

	system, user := buildOriginatorPrompt(in)
	content, err := s.model.Complete(ctx, llm.ChatRequest{
		System:      system,
		User:        user,
		Temperature: 0,
		MaxTokens:   s.maxTokens,
	})
	metrics.RecordModelCall(metrics.StepOriginator, err)
	if err != nil {
		return nil, err
	}

	var reply originatorPaymentReply
	if err := llm.ExtractJSONObject(content, &reply); err != nil {
		logger.FromContext(ctx).Warn("Unusable originator-step model reply", "error", err, "reply_len", len(content))
		return nil, err
	}
	reported := reply.OriginatorPayment.Float()
	if err := mustBeFinite(reported, "originator_payment"); err != nil {
		return nil, err
	}

	expected, formula := processors.DeterministicOriginatorPayment(in.UserPayment, in.OwnOriginationPercent)
	value, replaced := processors.VerifyOrReplace(reported, expected, processors.DriftTolerance)
	result.OriginatorPayment = value
	result.Calculation = string(reply.Calculation)
	if replaced {
		logger.FromContext(ctx).Warn("Originator payment drift corrected",
			"user", in.UserName, "originator", in.OriginatorName, "model_value", reported, "formula_value", value)
		metrics.RecordDriftOverride(metrics.StepOriginator)
		result.Calculation = formula
		result.Warning = DriftWarning
	}
	return result, nil
}

func mustBeFinite(n float64, field string) error {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return apperrors.Validation(fmt.Sprintf("%s must be a finite number", field))
	}
	return nil
}
