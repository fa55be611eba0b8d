// backend/src/services/insight_service.go
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/username/commissioncalc/backend/src/apperrors"
	"github.com/username/commissioncalc/backend/src/llm"
	"github.com/username/commissioncalc/backend/src/logger"
	"github.com/username/commissioncalc/backend/src/metrics"
	"github.com/username/commissioncalc/backend/src/models"
	"github.com/username/commissioncalc/backend/src/security/validation"
)

const (
	insightTemperature = 0.7
	insightMaxTokens   = 2000

	MaxIntakeFiles       = 10
	maxDocumentExcerpt   = 2000
	maxNaturalInputChars = 20000
)

const insightSystemPrompt = "You are an expert business analyst and AI prompt engineer. Provide detailed, accurate, and actionable responses in the requested format."

// Document categories produced by file intake.
var intakeCategories = []string{"financials", "inventory", "operations"}

type insightServiceImpl struct {
	model llm.ChatModel
	store BusinessDataStore
	now   func() time.Time
}

func NewInsightService(model llm.ChatModel, store BusinessDataStore) InsightService {
	return &insightServiceImpl{model: model, store: store, now: time.Now}
}

func (s *insightServiceImpl) ProcessNaturalLanguage(ctx context.Context, in NaturalLanguageInput) (*models.BusinessDataRecord, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	input := strings.TrimSpace(validation.StripUnprintable(in.Input))
	if in.UserID == "" {
		return nil, apperrors.Validation("userId is required")
	}
	if input == "" {
		return nil, apperrors.Validation("input is required")
	}
	if len([]rune(input)) > maxNaturalInputChars {
		return nil, apperrors.Newf(apperrors.KindValidation, "input must be at most %d characters", maxNaturalInputChars)
	}

	prompt := fmt.Sprintf(`Process the following natural language input from a business owner and extract key business insights:

Input: %q
Context: %s

Extract and structure:
1. Business goals and objectives
2. Current challenges and pain points
3. Key processes and workflows
4. Team structure and roles
5. Market position and competition
6. Growth plans and strategies

Convert this into structured data that can be used to train an AI business partner.
Return as a JSON object with clear categories and actionable insights.`, input, jsonOrEmptyObject(in.Context))

	processed, err := s.completeJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	meta, _ := json.Marshal(map[string]string{"context": in.Context})
	rec := &models.BusinessDataRecord{
		ID:               uuid.NewString(),
		UserID:           in.UserID,
		DataType:         models.DataTypeNaturalLanguage,
		Source:           "natural_language_input",
		RawData:          input,
		ProcessedData:    processed,
		Metadata:         meta,
		ProcessingStatus: models.ProcessingCompleted,
		ModelBackend:     s.model.Name(),
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("error storing natural language record: %w", err)
	}
	logger.FromContext(ctx).Info("Natural language input processed", "userID", in.UserID, "recordID", rec.ID)
	return rec, nil
}

// ProcessFiles categorizes each document independently. A document the model
// cannot categorize is stored as failed; the others continue.
func (s *insightServiceImpl) ProcessFiles(ctx context.Context, in FileIntakeInput) (*FileIntakeResult, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return nil, apperrors.Validation("userId is required")
	}
	if len(in.Documents) == 0 {
		return nil, apperrors.Validation("At least one file is required")
	}
	if len(in.Documents) > MaxIntakeFiles {
		return nil, apperrors.Newf(apperrors.KindValidation, "At most %d files can be uploaded at once", MaxIntakeFiles)
	}
	if !llm.Configured(s.model) {
		return nil, apperrors.New(apperrors.KindModelNotConfigured, llm.NotConfiguredMessage)
	}
	log := logger.FromContext(ctx)

	merged := make(map[string]map[string]json.RawMessage, len(intakeCategories))
	for _, c := range intakeCategories {
		merged[c] = map[string]json.RawMessage{}
	}

	result := &FileIntakeResult{Records: make([]models.BusinessDataRecord, 0, len(in.Documents))}
	for _, doc := range in.Documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sum := sha256.Sum256([]byte(doc.Content))
		rec := &models.BusinessDataRecord{
			ID:               uuid.NewString(),
			UserID:           in.UserID,
			DataType:         models.DataTypeFileUpload,
			Source:           "file_upload",
			RawData:          doc.Content,
			ModelBackend:     s.model.Name(),
			OriginalFilename: filepath.Base(doc.Filename),
			FileType:         doc.ContentType,
			FileSize:         doc.Size,
			FileHash:         hex.EncodeToString(sum[:]),
			CreatedAt:        s.now().UTC(),
		}

		categories, err := s.categorize(ctx, doc)
		if err != nil {
			log.Warn("Document categorization failed", "file", rec.OriginalFilename, "error", err)
			rec.ProcessingStatus = models.ProcessingFailed
			rec.ProcessingError = apperrors.Message(err)
		} else {
			rec.ProcessingStatus = models.ProcessingCompleted
			rec.Category = strings.Join(nonEmptyCategories(categories), ",")
			rec.ProcessedData, _ = json.Marshal(categories)
			for c, fields := range categories {
				for k, v := range fields {
					merged[c][k] = v
				}
			}
		}

		if err := s.store.Insert(ctx, rec); err != nil {
			return nil, fmt.Errorf("error storing file record %s: %w", rec.OriginalFilename, err)
		}
		result.Records = append(result.Records, *rec)
	}

	prompts, err := s.generatePrompts(ctx, in.BusinessContext, merged)
	if err != nil {
		log.Warn("AI prompt generation failed", "userID", in.UserID, "error", err)
	} else {
		result.AIPrompts = prompts
	}
	log.Info("File intake processed", "userID", in.UserID, "files", len(in.Documents))
	return result, nil
}

func (s *insightServiceImpl) categorize(ctx context.Context, doc models.UploadedDocument) (map[string]map[string]json.RawMessage, error) {
	excerpt := doc.Content
	if r := []rune(excerpt); len(r) > maxDocumentExcerpt {
		excerpt = string(r[:maxDocumentExcerpt]) + "..."
	}
	prompt := fmt.Sprintf(`Analyze the following business document data and categorize it into financial, inventory, and operational information:

Filename: %s
Content: %s

Please extract and categorize:
1. Financial data (revenue, expenses, profits, cash flow, etc.)
2. Inventory data (products, quantities, values, suppliers, etc.)
3. Operational data (processes, workflows, employee info, etc.)

Return a JSON object with exactly the keys "financials", "inventory" and "operations", each an object.`, filepath.Base(doc.Filename), excerpt)

	raw, err := s.completeJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperrors.Wrap(apperrors.KindModelMalformed, err, "Failed to parse JSON from model response")
	}

	out := make(map[string]map[string]json.RawMessage, len(intakeCategories))
	for _, c := range intakeCategories {
		fields := map[string]json.RawMessage{}
		if v, ok := parsed[c]; ok {
			// Non-object categories are kept under a single "value" key.
			if err := json.Unmarshal(v, &fields); err != nil {
				fields = map[string]json.RawMessage{"value": v}
			}
		}
		out[c] = fields
	}
	return out, nil
}

func (s *insightServiceImpl) generatePrompts(ctx context.Context, businessContext string, data map[string]map[string]json.RawMessage) (json.RawMessage, error) {
	section := func(c string) string {
		b, _ := json.Marshal(data[c])
		return string(b)
	}
	prompt := fmt.Sprintf(`Based on the following business data, create comprehensive AI prompts that will help build a custom AI business partner:

Business Context: %s
Financial Data: %s
Inventory Data: %s
Operational Data: %s

Generate specific AI prompts for:
1. Financial analysis and forecasting
2. Inventory management and optimization
3. Operational efficiency improvements
4. Strategic business recommendations
5. Risk assessment and mitigation
6. Growth opportunities identification

Each prompt should be detailed and specific to this business's data and context.
Return a JSON object {"prompts": [...]} whose items have "category", "description" and "prompt".`,
		jsonOrEmptyObject(businessContext), section("financials"), section("inventory"), section("operations"))

	return s.completeJSON(ctx, prompt)
}

func (s *insightServiceImpl) GenerateAIPartner(ctx context.Context, in AIPartnerInput) (*models.BusinessDataRecord, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return nil, apperrors.Validation("userId is required")
	}
	businessData := rawOrEmptyObject(in.BusinessData)
	preferences := rawOrEmptyObject(in.Preferences)

	prompt := fmt.Sprintf(`Create a comprehensive AI partner configuration based on the following business data:

Business Data: %s
User Preferences: %s

Generate:
1. AI personality and communication style
2. Specialized knowledge areas
3. Decision-making frameworks
4. Reporting and analytics preferences
5. Integration capabilities
6. Custom prompts and responses

Return as a detailed JSON configuration object that can be used to deploy a custom AI business partner.`, businessData, preferences)

	config, err := s.completeJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	meta, _ := json.Marshal(map[string]json.RawMessage{"preferences": json.RawMessage(preferences)})
	rec := &models.BusinessDataRecord{
		ID:               uuid.NewString(),
		UserID:           in.UserID,
		DataType:         models.DataTypeAIPartnerConfig,
		Source:           "ai_partner_generator",
		RawData:          businessData,
		ProcessedData:    config,
		Metadata:         meta,
		ProcessingStatus: models.ProcessingCompleted,
		ModelBackend:     s.model.Name(),
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("error storing AI partner config: %w", err)
	}
	logger.FromContext(ctx).Info("AI partner configuration generated", "userID", in.UserID, "recordID", rec.ID)
	return rec, nil
}

func (s *insightServiceImpl) ListBusinessData(ctx context.Context, userID string) ([]models.BusinessDataRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.Validation("userId is required")
	}
	records, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing business data for %s: %w", userID, err)
	}
	return records, nil
}

// completeJSON sends prompt and returns the JSON object found in the reply.
func (s *insightServiceImpl) completeJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	content, err := s.model.Complete(ctx, llm.ChatRequest{
		System:      insightSystemPrompt,
		User:        prompt,
		Temperature: insightTemperature,
		MaxTokens:   insightMaxTokens,
	})
	metrics.RecordModelCall(metrics.StepInsight, err)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := llm.ExtractJSONObject(content, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func nonEmptyCategories(categories map[string]map[string]json.RawMessage) []string {
	var out []string
	for c, fields := range categories {
		if len(fields) > 0 {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// jsonOrEmptyObject passes JSON through and quotes anything else.
func jsonOrEmptyObject(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "{}"
	}
	if json.Valid([]byte(s)) {
		return s
	}
	b, _ := json.Marshal(s)
	return string(b)
}

func rawOrEmptyObject(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "{}"
	}
	return string(raw)
}
