package services

import (
	"context"
	"encoding/json"

	"github.com/username/commissioncalc/backend/src/models"
	"github.com/username/commissioncalc/backend/src/rules"
)

// UserPaymentInput is everything the rule-matching step sees.
type UserPaymentInput struct {
	Amount         float64
	UserName       string
	OriginatorName string
	RulesText      string
	Context        string
	ReferenceData  string             // free-form reference text, single-row requests only
	RowData        *models.PaymentRow // the full source row, batch runs only
}

type OriginatorPaymentInput struct {
	UserPayment           float64
	OwnOriginationPercent float64
	UserName              string
	OriginatorName        string
}

// CommissionService runs the two model-assisted calculation steps.
type CommissionService interface {
	CalculateUserPayment(ctx context.Context, in UserPaymentInput) (*models.UserCalculationResult, error)
	CalculateOriginatorPayment(ctx context.Context, in OriginatorPaymentInput) (*models.OriginatorCalculationResult, error)
}

// BatchInput describes one batch or flow run. RulesText wins over the saved
// rules; UseSavedRules allows falling back to them when RulesText is blank.
type BatchInput struct {
	Mode          models.BatchMode
	RulesText     string
	UseSavedRules bool
	Rows          []*models.PaymentRow
}

type BatchOutput struct {
	Report *models.BatchReport
	CSV    string
}

// BatchService drives the per-row pipeline and keeps finished reports.
type BatchService interface {
	Run(ctx context.Context, in BatchInput) (*BatchOutput, error)
	GetBatchCSV(ctx context.Context, batchID string) (string, error)
}

// BatchRunStore persists finished runs beyond the in-memory cache.
type BatchRunStore interface {
	Save(ctx context.Context, run models.BatchRun) error
	Get(ctx context.Context, id string) (*models.BatchRun, error)
}

// RulesService reads and replaces the saved rules document.
type RulesService interface {
	Current(ctx context.Context) (rules.Snapshot, error)
	Save(ctx context.Context, text string) (rules.Snapshot, error)
	History(ctx context.Context, limit int) ([]rules.Snapshot, error)
}

type NaturalLanguageInput struct {
	UserID  string
	Input   string
	Context string
}

type FileIntakeInput struct {
	UserID          string
	BusinessContext string
	Documents       []models.UploadedDocument
}

type AIPartnerInput struct {
	UserID       string
	BusinessData json.RawMessage
	Preferences  json.RawMessage
}

// FileIntakeResult reports each categorized document and the prompts generated from them.
type FileIntakeResult struct {
	Records   []models.BusinessDataRecord `json:"records"`
	AIPrompts json.RawMessage             `json:"ai_prompts,omitempty"`
}

type SurveyInput struct {
	UserID          string
	BusinessContext json.RawMessage
	Employees       []models.Employee
}

type SurveyResponseInput struct {
	SurveyID  string
	Responses json.RawMessage
}

type ConsultationInput struct {
	UserID        string
	BusinessOwner json.RawMessage
	Preferences   json.RawMessage
}

type TranscriptInput struct {
	ConsultationID string
	Transcript     string
}

// ConsultationOutcome is the stored result record plus its decoded parts.
type ConsultationOutcome struct {
	Record *models.BusinessDataRecord `json:"record"`
	models.ConsultationResult
}

// InsightService handles the business onboarding data intake.
type InsightService interface {
	ProcessNaturalLanguage(ctx context.Context, in NaturalLanguageInput) (*models.BusinessDataRecord, error)
	ProcessFiles(ctx context.Context, in FileIntakeInput) (*FileIntakeResult, error)
	GenerateAIPartner(ctx context.Context, in AIPartnerInput) (*models.BusinessDataRecord, error)
	ListBusinessData(ctx context.Context, userID string) ([]models.BusinessDataRecord, error)

	CreateSurveys(ctx context.Context, in SurveyInput) ([]models.BusinessDataRecord, error)
	SubmitSurveyResponse(ctx context.Context, in SurveyResponseInput) (*models.BusinessDataRecord, error)
	AggregateSurveyInsights(ctx context.Context, userID string) (*models.BusinessDataRecord, error)

	CreateConsultation(ctx context.Context, in ConsultationInput) (*models.BusinessDataRecord, error)
	ProcessConsultationTranscript(ctx context.Context, in TranscriptInput) (*ConsultationOutcome, error)
}

// BusinessDataStore persists business onboarding records.
type BusinessDataStore interface {
	Insert(ctx context.Context, rec *models.BusinessDataRecord) error
	Get(ctx context.Context, id string) (*models.BusinessDataRecord, error)
	ListByUser(ctx context.Context, userID string) ([]models.BusinessDataRecord, error)
	ListByType(ctx context.Context, userID, dataType string) ([]models.BusinessDataRecord, error)
}
