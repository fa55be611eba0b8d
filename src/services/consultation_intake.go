package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // consultation time zones must resolve in minimal containers

	"github.com/google/uuid"

	"github.com/username/commissioncalc/backend/src/apperrors"
	"github.com/username/commissioncalc/backend/src/logger"
	"github.com/username/commissioncalc/backend/src/models"
	"github.com/username/commissioncalc/backend/src/security/validation"
)

const (
	DefaultConsultationMinutes = 90
	minConsultationMinutes     = 15
	maxConsultationMinutes     = 240
	consultationStartHour      = 14

	maxTranscriptChars     = 100000
	maxExistingDataRecords = 5
)

// defaultConsultationAgenda is used when agenda generation fails.
var defaultConsultationAgenda = json.RawMessage(`{"summary":"Comprehensive business consultation for AI partner development","sections":[{"title":"Business Overview","duration":10,"objectives":["Understand business model","Identify value proposition"]}]}`)

// Record types whose processed data seeds a consultation agenda.
var agendaSourceTypes = map[string]bool{
	models.DataTypeNaturalLanguage: true,
	models.DataTypeFileUpload:      true,
	models.DataTypeSurveyInsights:  true,
}

type consultationPreferences struct {
	PreferredTime string `json:"preferredTime"`
	Duration      int    `json:"duration"`
	Timezone      string `json:"timezone"`
}

// CreateConsultation plans a consultation call and stores its agenda. The
// agenda draws on the business data already collected for the user.
func (s *insightServiceImpl) CreateConsultation(ctx context.Context, in ConsultationInput) (*models.BusinessDataRecord, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return nil, apperrors.Validation("userId is required")
	}
	owner := rawOrEmptyObject(in.BusinessOwner)
	if owner == "{}" {
		return nil, apperrors.Validation("businessOwner is required")
	}
	meta, err := s.consultationSchedule(in.Preferences)
	if err != nil {
		return nil, err
	}

	existing, err := s.existingBusinessData(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	source := "consultation_agenda"
	agenda, err := s.generateConsultationAgenda(ctx, owner, existing, rawOrEmptyObject(in.Preferences), meta.DurationMinutes)
	if err != nil {
		logger.FromContext(ctx).Warn("Consultation agenda generation failed, using default", "userID", in.UserID, "error", err)
		source = "consultation_default_agenda"
		agenda = defaultConsultationAgenda
	}

	metaJSON, _ := json.Marshal(meta)
	rec := &models.BusinessDataRecord{
		ID:               uuid.NewString(),
		UserID:           in.UserID,
		DataType:         models.DataTypeConsultation,
		Source:           source,
		RawData:          owner,
		ProcessedData:    agenda,
		Metadata:         metaJSON,
		ProcessingStatus: models.ProcessingCompleted,
		ModelBackend:     s.model.Name(),
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("error storing consultation for %s: %w", in.UserID, err)
	}
	logger.FromContext(ctx).Info("Consultation planned", "userID", in.UserID, "recordID", rec.ID, "startTime", meta.StartTime)
	return rec, nil
}

// consultationSchedule resolves the call time from the preferences. Without a
// preferred time the call goes at 14:00 the next day in the requested zone.
func (s *insightServiceImpl) consultationSchedule(raw json.RawMessage) (models.ConsultationMetadata, error) {
	var prefs consultationPreferences
	if text := rawOrEmptyObject(raw); text != "{}" {
		if err := json.Unmarshal([]byte(text), &prefs); err != nil {
			return models.ConsultationMetadata{}, apperrors.Wrap(apperrors.KindValidation, err, "preferences must be a JSON object")
		}
	}

	meta := models.ConsultationMetadata{
		DurationMinutes: DefaultConsultationMinutes,
		Timezone:        "UTC",
	}
	if len(raw) > 0 && string(raw) != "null" {
		meta.Preferences = raw
	}
	if prefs.Duration != 0 {
		if prefs.Duration < minConsultationMinutes || prefs.Duration > maxConsultationMinutes {
			return meta, apperrors.Newf(apperrors.KindValidation, "duration must be between %d and %d minutes", minConsultationMinutes, maxConsultationMinutes)
		}
		meta.DurationMinutes = prefs.Duration
	}
	if tz := strings.TrimSpace(prefs.Timezone); tz != "" {
		meta.Timezone = tz
	}
	loc, err := time.LoadLocation(meta.Timezone)
	if err != nil {
		return meta, apperrors.Wrap(apperrors.KindValidation, err, fmt.Sprintf("Unknown timezone %q", meta.Timezone))
	}

	if pt := strings.TrimSpace(prefs.PreferredTime); pt != "" {
		start, err := time.Parse(time.RFC3339, pt)
		if err != nil {
			return meta, apperrors.Wrap(apperrors.KindValidation, err, "preferredTime must be an RFC 3339 timestamp")
		}
		meta.StartTime = start.UTC()
		return meta, nil
	}
	tomorrow := s.now().In(loc).AddDate(0, 0, 1)
	meta.StartTime = time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), consultationStartHour, 0, 0, 0, loc).UTC()
	return meta, nil
}

type existingRecord struct {
	DataType      string          `json:"data_type"`
	ProcessedData json.RawMessage `json:"processed_data"`
}

func (s *insightServiceImpl) existingBusinessData(ctx context.Context, userID string) (string, error) {
	records, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("error listing business data for %s: %w", userID, err)
	}
	existing := make([]existingRecord, 0, maxExistingDataRecords)
	for _, rec := range records {
		if !agendaSourceTypes[rec.DataType] || rec.ProcessingStatus != models.ProcessingCompleted || len(rec.ProcessedData) == 0 {
			continue
		}
		existing = append(existing, existingRecord{DataType: rec.DataType, ProcessedData: rec.ProcessedData})
		if len(existing) == maxExistingDataRecords {
			break
		}
	}
	b, _ := json.Marshal(existing)
	return string(b), nil
}

func (s *insightServiceImpl) generateConsultationAgenda(ctx context.Context, owner, existing, preferences string, minutes int) (json.RawMessage, error) {
	prompt := fmt.Sprintf(`Create a comprehensive consultation agenda for a %d-minute video call with a business owner:

Business Owner: %s
Existing Data: %s
Preferences: %s

Generate a detailed agenda that covers:
1. Business overview and history
2. Current operations and processes
3. Team structure and dynamics
4. Financial landscape and goals
5. Technology infrastructure
6. Market position and competition
7. Growth plans and challenges

For each section, provide:
- Specific questions to ask
- Key insights to gather
- Follow-up topics
- Data points to collect

Also generate:
- Pre-call preparation checklist for the business owner
- Documents they should have ready
- Key objectives for the AI business partner

Return a JSON object with a "summary" string and a "sections" array whose items have "title", "duration" (minutes) and "objectives".`,
		minutes, owner, existing, preferences)

	return s.completeJSON(ctx, prompt)
}

// ProcessConsultationTranscript turns a consultation transcript into insights,
// AI partner recommendations and a follow-up report. Any model failure aborts
// the run without storing a result.
func (s *insightServiceImpl) ProcessConsultationTranscript(ctx context.Context, in TranscriptInput) (*ConsultationOutcome, error) {
	in.ConsultationID = strings.TrimSpace(in.ConsultationID)
	if in.ConsultationID == "" {
		return nil, apperrors.Validation("consultationId is required")
	}
	transcript := strings.TrimSpace(validation.StripUnprintable(in.Transcript))
	if transcript == "" {
		return nil, apperrors.Validation("transcript is required")
	}
	if len([]rune(transcript)) > maxTranscriptChars {
		return nil, apperrors.Newf(apperrors.KindValidation, "transcript must be at most %d characters", maxTranscriptChars)
	}

	consultation, err := s.loadRecord(ctx, in.ConsultationID, models.DataTypeConsultation, "Consultation")
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("consultationID", consultation.ID)

	insights, err := s.extractConsultationInsights(ctx, transcript, consultation)
	if err != nil {
		log.Warn("Consultation insight extraction failed", "error", err)
		return nil, err
	}
	recommendations, err := s.generateAIPartnerRecommendations(ctx, insights)
	if err != nil {
		log.Warn("AI partner recommendation generation failed", "error", err)
		return nil, err
	}
	report, err := s.generateConsultationReport(ctx, consultation, insights, recommendations)
	if err != nil {
		log.Warn("Consultation report generation failed", "error", err)
		return nil, err
	}

	result := models.ConsultationResult{Insights: insights, AIRecommendations: recommendations, Report: report}
	processed, _ := json.Marshal(result)
	rec := &models.BusinessDataRecord{
		ID:               uuid.NewString(),
		UserID:           consultation.UserID,
		DataType:         models.DataTypeConsultationResult,
		ParentID:         consultation.ID,
		Source:           "consultation_transcript",
		RawData:          transcript,
		ProcessedData:    processed,
		ProcessingStatus: models.ProcessingCompleted,
		ModelBackend:     s.model.Name(),
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("error storing consultation result for %s: %w", consultation.ID, err)
	}
	log.Info("Consultation transcript processed", "recordID", rec.ID)
	return &ConsultationOutcome{Record: rec, ConsultationResult: result}, nil
}

func (s *insightServiceImpl) extractConsultationInsights(ctx context.Context, transcript string, consultation *models.BusinessDataRecord) (json.RawMessage, error) {
	prompt := fmt.Sprintf(`Analyze the following business consultation transcript and extract comprehensive insights:

Transcript: %s
Agenda: %s
Business Owner: %s

Extract detailed insights about:
1. Business model and value proposition
2. Operational workflows and processes
3. Team structure, roles, and dynamics
4. Financial health and projections
5. Technology stack and digital maturity
6. Market position and competitive landscape
7. Growth strategies and expansion plans
8. Pain points and operational challenges
9. Customer relationships and service delivery
10. Innovation opportunities and priorities
11. Risk factors and mitigation strategies
12. Leadership style and decision-making processes
13. Company culture and values
14. Strategic partnerships and vendor relationships
15. Performance metrics and KPIs

For each insight category, provide:
- Key findings with supporting quotes
- Confidence level (1-10)
- Actionable recommendations
- Priority level for AI integration
- Potential impact on business operations

Return a JSON object with one key per insight category.`,
		transcript, rawOrEmptyObject(consultation.ProcessedData), jsonOrEmptyObject(consultation.RawData))

	return s.completeJSON(ctx, prompt)
}

func (s *insightServiceImpl) generateAIPartnerRecommendations(ctx context.Context, insights json.RawMessage) (json.RawMessage, error) {
	prompt := fmt.Sprintf(`Based on the following business consultation insights, create detailed AI partner recommendations:

Business Insights: %s

Generate comprehensive recommendations for:
1. AI Partner Personality and Communication Style
2. Core Knowledge Areas and Expertise
3. Decision-Making Frameworks and Logic
4. Automated Workflow Integrations
5. Reporting and Analytics Capabilities
6. Customer Interaction Protocols
7. Risk Assessment and Management
8. Growth Strategy Support
9. Performance Monitoring and KPIs
10. Training and Learning Priorities

For each recommendation, provide:
- Detailed implementation plan
- Expected business impact
- Technical requirements
- Timeline and milestones
- Success metrics
- Integration points with existing systems

Also generate:
- Custom AI prompts and responses
- Specialized business logic rules
- Automated decision trees
- Integration APIs and workflows
- Performance benchmarks and goals

Return a JSON object that can be used as the AI partner deployment configuration.`, rawOrEmptyObject(insights))

	return s.completeJSON(ctx, prompt)
}

func (s *insightServiceImpl) generateConsultationReport(ctx context.Context, consultation *models.BusinessDataRecord, insights, recommendations json.RawMessage) (json.RawMessage, error) {
	consultationJSON, _ := json.Marshal(map[string]json.RawMessage{
		"business_owner": json.RawMessage(jsonOrEmptyObject(consultation.RawData)),
		"agenda":         json.RawMessage(rawOrEmptyObject(consultation.ProcessedData)),
		"schedule":       json.RawMessage(rawOrEmptyObject(consultation.Metadata)),
	})
	prompt := fmt.Sprintf(`Create a comprehensive business consultation report:

Consultation Data: %s
Extracted Insights: %s
AI Recommendations: %s

Generate a professional report including:
1. Executive Summary
2. Business Analysis Overview
3. Key Findings and Insights
4. Operational Assessment
5. Technology Readiness Evaluation
6. AI Integration Roadmap
7. Implementation Timeline
8. Expected ROI and Benefits
9. Risk Assessment and Mitigation
10. Next Steps and Action Items

Include specific metrics, timelines, and success criteria.
Return a JSON object with one key per report section.`, consultationJSON, rawOrEmptyObject(insights), rawOrEmptyObject(recommendations))

	return s.completeJSON(ctx, prompt)
}
