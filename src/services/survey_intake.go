package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/username/commissioncalc/backend/src/apperrors"
	"github.com/username/commissioncalc/backend/src/database"
	"github.com/username/commissioncalc/backend/src/logger"
	"github.com/username/commissioncalc/backend/src/models"
)

const (
	MaxSurveyEmployees = 50
	SurveyLifetime     = 7 * 24 * time.Hour

	maxAggregatedResponses = 100
)

// defaultSurveyQuestions is used when question generation fails.
var defaultSurveyQuestions = []models.SurveyQuestion{
	{
		ID:       json.RawMessage("1"),
		Type:     "multiple_choice",
		Question: "How would you rate the efficiency of your current daily workflows?",
		Options:  []string{"Very Efficient", "Efficient", "Neutral", "Inefficient", "Very Inefficient"},
		Category: "operations",
	},
	{
		ID:       json.RawMessage("2"),
		Type:     "open_ended",
		Question: "What is the biggest challenge you face in your role?",
		Category: "challenges",
	},
	{
		ID:       json.RawMessage("3"),
		Type:     "multiple_choice",
		Question: "How often do you interact with customers or clients?",
		Options:  []string{"Daily", "Weekly", "Monthly", "Rarely", "Never"},
		Category: "customer_interaction",
	},
}

type surveyQuestions struct {
	Questions []models.SurveyQuestion `json:"questions"`
}

// CreateSurveys stores one personalized survey per employee. Question
// generation falls back to a fixed set when the model fails.
func (s *insightServiceImpl) CreateSurveys(ctx context.Context, in SurveyInput) ([]models.BusinessDataRecord, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return nil, apperrors.Validation("userId is required")
	}
	if len(in.Employees) == 0 {
		return nil, apperrors.Validation("No employees provided")
	}
	if len(in.Employees) > MaxSurveyEmployees {
		return nil, apperrors.Newf(apperrors.KindValidation, "At most %d employees can be surveyed at once", MaxSurveyEmployees)
	}
	for i, e := range in.Employees {
		if strings.TrimSpace(e.ID) == "" {
			return nil, apperrors.Newf(apperrors.KindValidation, "employees[%d].id is required", i)
		}
	}
	log := logger.FromContext(ctx)

	records := make([]models.BusinessDataRecord, 0, len(in.Employees))
	for _, employee := range in.Employees {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		employee.ID = strings.TrimSpace(employee.ID)

		source := "survey_generator"
		questions, err := s.generateSurveyQuestions(ctx, employee, in.BusinessContext)
		if err != nil {
			log.Warn("Survey question generation failed, using defaults", "employeeID", employee.ID, "error", err)
			source = "survey_default_questions"
			questions = defaultSurveyQuestions
		}

		now := s.now().UTC()
		employeeJSON, _ := json.Marshal(employee)
		processed, _ := json.Marshal(surveyQuestions{Questions: questions})
		meta, _ := json.Marshal(models.SurveyMetadata{Employee: employee, ExpiresAt: now.Add(SurveyLifetime)})
		rec := &models.BusinessDataRecord{
			ID:               uuid.NewString(),
			UserID:           in.UserID,
			DataType:         models.DataTypeEmployeeSurvey,
			Category:         employee.Department,
			Source:           source,
			RawData:          string(employeeJSON),
			ProcessedData:    processed,
			Metadata:         meta,
			ProcessingStatus: models.ProcessingCompleted,
			ModelBackend:     s.model.Name(),
			CreatedAt:        now,
		}
		if err := s.store.Insert(ctx, rec); err != nil {
			return nil, fmt.Errorf("error storing survey for employee %s: %w", employee.ID, err)
		}
		records = append(records, *rec)
	}
	log.Info("Employee surveys created", "userID", in.UserID, "surveys", len(records))
	return records, nil
}

func (s *insightServiceImpl) generateSurveyQuestions(ctx context.Context, employee models.Employee, businessContext json.RawMessage) ([]models.SurveyQuestion, error) {
	prompt := fmt.Sprintf(`Generate a comprehensive employee survey for gathering business intelligence data:

Employee Role: %s
Department: %s
Business Context: %s

Create 15-20 targeted questions that will help understand:
1. Daily workflows and processes
2. Pain points and inefficiencies
3. Team dynamics and communication
4. Resource needs and constraints
5. Innovation opportunities
6. Customer interaction insights
7. Performance metrics and KPIs
8. Training and development needs
9. Technology usage and preferences
10. Strategic insights and suggestions

Make questions specific to their role and department.
Include both multiple choice and open-ended questions.
Return a JSON object {"questions": [...]} whose items have "id", "type", "question", "options" (if applicable) and "category".`,
		employee.Role, employee.Department, rawOrEmptyObject(businessContext))

	raw, err := s.completeJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var parsed surveyQuestions
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperrors.Wrap(apperrors.KindModelMalformed, err, "Failed to parse survey questions from model response")
	}
	if len(parsed.Questions) == 0 {
		return nil, apperrors.New(apperrors.KindModelMalformed, "Model returned no survey questions")
	}
	return parsed.Questions, nil
}

// SubmitSurveyResponse stores an employee's answers with the insights the
// model extracts from them. A failed extraction is stored as a failed record.
func (s *insightServiceImpl) SubmitSurveyResponse(ctx context.Context, in SurveyResponseInput) (*models.BusinessDataRecord, error) {
	in.SurveyID = strings.TrimSpace(in.SurveyID)
	if in.SurveyID == "" {
		return nil, apperrors.Validation("surveyId is required")
	}
	responses := strings.TrimSpace(string(in.Responses))
	if responses == "" || responses == "null" || responses == "{}" || responses == "[]" {
		return nil, apperrors.Validation("responses are required")
	}
	if !json.Valid([]byte(responses)) {
		return nil, apperrors.Validation("responses must be valid JSON")
	}

	survey, err := s.loadRecord(ctx, in.SurveyID, models.DataTypeEmployeeSurvey, "Survey")
	if err != nil {
		return nil, err
	}
	var meta models.SurveyMetadata
	if err := json.Unmarshal(survey.Metadata, &meta); err != nil {
		return nil, fmt.Errorf("error decoding survey %s metadata: %w", survey.ID, err)
	}
	now := s.now().UTC()
	if !meta.ExpiresAt.IsZero() && now.After(meta.ExpiresAt) {
		return nil, apperrors.Newf(apperrors.KindValidation, "Survey %s has expired", survey.ID)
	}

	responseMeta, _ := json.Marshal(map[string]interface{}{"employee": meta.Employee})
	rec := &models.BusinessDataRecord{
		ID:           uuid.NewString(),
		UserID:       survey.UserID,
		DataType:     models.DataTypeSurveyResponse,
		ParentID:     survey.ID,
		Category:     survey.Category,
		Source:       "employee_survey_response",
		RawData:      responses,
		Metadata:     responseMeta,
		ModelBackend: s.model.Name(),
		CreatedAt:    now,
	}

	insights, err := s.extractEmployeeInsights(ctx, meta.Employee, survey.ProcessedData, responses)
	if err != nil {
		logger.FromContext(ctx).Warn("Survey insight extraction failed", "surveyID", survey.ID, "error", err)
		rec.ProcessingStatus = models.ProcessingFailed
		rec.ProcessingError = apperrors.Message(err)
	} else {
		rec.ProcessingStatus = models.ProcessingCompleted
		rec.ProcessedData = insights
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("error storing response to survey %s: %w", survey.ID, err)
	}
	logger.FromContext(ctx).Info("Survey response processed", "surveyID", survey.ID, "recordID", rec.ID, "status", rec.ProcessingStatus)
	return rec, nil
}

func (s *insightServiceImpl) extractEmployeeInsights(ctx context.Context, employee models.Employee, questions json.RawMessage, responses string) (json.RawMessage, error) {
	employeeJSON, _ := json.Marshal(employee)
	prompt := fmt.Sprintf(`Analyze the following employee survey responses and extract key business insights:

Employee: %s
Questions: %s
Responses: %s

Extract and structure:
1. Operational insights and process improvements
2. Technology needs and pain points
3. Team dynamics and communication patterns
4. Customer interaction insights
5. Innovation opportunities
6. Training and development needs
7. Resource constraints and requirements
8. Strategic recommendations from employee perspective

Convert into structured data that can be used to train an AI business partner.
Focus on actionable insights and specific business intelligence.
Return a JSON object with categories and confidence scores.`, employeeJSON, rawOrEmptyObject(questions), responses)

	return s.completeJSON(ctx, prompt)
}

type aggregatedResponse struct {
	SurveyID   string          `json:"survey_id"`
	Department string          `json:"department,omitempty"`
	Responses  json.RawMessage `json:"responses"`
	Insights   json.RawMessage `json:"insights,omitempty"`
}

// AggregateSurveyInsights combines every completed survey response of the
// business into one stored insight report.
func (s *insightServiceImpl) AggregateSurveyInsights(ctx context.Context, userID string) (*models.BusinessDataRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.Validation("userId is required")
	}
	records, err := s.store.ListByType(ctx, userID, models.DataTypeSurveyResponse)
	if err != nil {
		return nil, fmt.Errorf("error listing survey responses for %s: %w", userID, err)
	}

	summary := make([]aggregatedResponse, 0, len(records))
	responseIDs := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.ProcessingStatus != models.ProcessingCompleted {
			continue
		}
		summary = append(summary, aggregatedResponse{
			SurveyID:   rec.ParentID,
			Department: rec.Category,
			Responses:  json.RawMessage(rec.RawData),
			Insights:   rec.ProcessedData,
		})
		responseIDs = append(responseIDs, rec.ID)
		if len(summary) == maxAggregatedResponses {
			break
		}
	}
	if len(summary) == 0 {
		return nil, apperrors.Validation("No completed survey responses to aggregate")
	}
	summaryJSON, _ := json.Marshal(summary)

	prompt := fmt.Sprintf(`Aggregate and analyze all employee survey responses for comprehensive business insights:

Survey Responses: %s

Create a comprehensive business intelligence report covering:
1. Overall operational efficiency patterns
2. Common pain points and challenges across departments
3. Technology adoption and needs assessment
4. Communication and collaboration insights
5. Customer service and interaction patterns
6. Innovation opportunities and suggestions
7. Training and development priorities
8. Resource allocation recommendations
9. Strategic insights for business growth
10. AI integration opportunities

Provide actionable recommendations and priority rankings.
Include confidence scores and supporting evidence from responses.
Return a JSON object containing the business intelligence report.`, summaryJSON)

	insights, err := s.completeJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	meta, _ := json.Marshal(map[string]interface{}{"response_count": len(summary), "response_ids": responseIDs})
	rec := &models.BusinessDataRecord{
		ID:               uuid.NewString(),
		UserID:           userID,
		DataType:         models.DataTypeSurveyInsights,
		Source:           "survey_aggregation",
		RawData:          string(summaryJSON),
		ProcessedData:    insights,
		Metadata:         meta,
		ProcessingStatus: models.ProcessingCompleted,
		ModelBackend:     s.model.Name(),
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("error storing survey insights for %s: %w", userID, err)
	}
	logger.FromContext(ctx).Info("Survey insights aggregated", "userID", userID, "responses", len(summary), "recordID", rec.ID)
	return rec, nil
}

// loadRecord fetches a record and checks its type. label names the record in
// the not-found message.
func (s *insightServiceImpl) loadRecord(ctx context.Context, id, dataType, label string) (*models.BusinessDataRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, database.ErrBusinessDataNotFound) {
		return nil, apperrors.Wrap(apperrors.KindNotFound, err, fmt.Sprintf("%s %s not found", label, id))
	}
	if err != nil {
		return nil, fmt.Errorf("error loading %s %s: %w", strings.ToLower(label), id, err)
	}
	if rec.DataType != dataType {
		return nil, apperrors.Newf(apperrors.KindNotFound, "%s %s not found", label, id)
	}
	return rec, nil
}
