package models

import (
	"encoding/json"
	"time"
)

// Business data record types.
const (
	DataTypeNaturalLanguage = "natural_language"
	DataTypeFileUpload      = "file_upload"
	DataTypeAIPartnerConfig = "ai_partner_config"

	DataTypeEmployeeSurvey     = "employee_survey"
	DataTypeSurveyResponse     = "survey_response"
	DataTypeSurveyInsights     = "survey_insights"
	DataTypeConsultation       = "consultation"
	DataTypeConsultationResult = "consultation_result"
)

// Processing states of a BusinessDataRecord.
const (
	ProcessingCompleted = "completed"
	ProcessingFailed    = "failed"
)

// BusinessDataRecord is one piece of onboarding data collected for a business.
type BusinessDataRecord struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	DataType         string          `json:"data_type"`
	ParentID         string          `json:"parent_id,omitempty"`
	Category         string          `json:"category,omitempty"`
	Source           string          `json:"source,omitempty"`
	RawData          string          `json:"raw_data,omitempty"`
	ProcessedData    json.RawMessage `json:"processed_data,omitempty"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	ProcessingStatus string          `json:"processing_status"`
	ProcessingError  string          `json:"processing_error,omitempty"`
	ModelBackend     string          `json:"model_backend,omitempty"`
	OriginalFilename string          `json:"original_filename,omitempty"`
	FileType         string          `json:"file_type,omitempty"`
	FileSize         int64           `json:"file_size,omitempty"`
	FileHash         string          `json:"file_hash,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// UploadedDocument is a text document submitted for categorization.
type UploadedDocument struct {
	Filename    string
	ContentType string
	Content     string
	Size        int64
}

// Employee describes the survey recipient.
type Employee struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
}

// SurveyQuestion is one generated survey question.
type SurveyQuestion struct {
	ID       json.RawMessage `json:"id"`
	Type     string          `json:"type"`
	Question string          `json:"question"`
	Options  []string        `json:"options,omitempty"`
	Category string          `json:"category,omitempty"`
}

// SurveyMetadata is stored with each employee survey record.
type SurveyMetadata struct {
	Employee  Employee  `json:"employee"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConsultationMetadata is stored with each consultation record.
type ConsultationMetadata struct {
	StartTime       time.Time       `json:"start_time"`
	DurationMinutes int             `json:"duration_minutes"`
	Timezone        string          `json:"timezone"`
	Preferences     json.RawMessage `json:"preferences,omitempty"`
}

// ConsultationResult is the processed output of a consultation transcript.
type ConsultationResult struct {
	Insights          json.RawMessage `json:"insights"`
	AIRecommendations json.RawMessage `json:"ai_recommendations"`
	Report            json.RawMessage `json:"report"`
}
