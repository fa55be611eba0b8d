package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/username/commissioncalc/backend/src/apperrors"
	"github.com/username/commissioncalc/backend/src/models"
	"github.com/username/commissioncalc/backend/src/services"
	"github.com/username/commissioncalc/backend/src/utils"
)

// intakeExtensions are the text formats accepted by the file intake.
var intakeExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".json": true,
	".md":   true,
}

type BusinessHandler struct {
	insightService services.InsightService
	maxUploadBytes int64
}

func NewBusinessHandler(service services.InsightService, maxUploadBytes int64) *BusinessHandler {
	return &BusinessHandler{insightService: service, maxUploadBytes: maxUploadBytes}
}

type naturalLanguageRequest struct {
	UserID  string          `json:"userId" validate:"required,max=128"`
	Input   string          `json:"input" validate:"required"`
	Context json.RawMessage `json:"context"`
}

type aiPartnerRequest struct {
	UserID       string          `json:"userId" validate:"required,max=128"`
	BusinessData json.RawMessage `json:"businessData"`
	Preferences  json.RawMessage `json:"preferences"`
}

// HandleNaturalLanguage serves POST /api/business/natural-language.
func (h *BusinessHandler) HandleNaturalLanguage(w http.ResponseWriter, r *http.Request) error {
	var req naturalLanguageRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	rec, err := h.insightService.ProcessNaturalLanguage(r.Context(), services.NaturalLanguageInput{
		UserID:  req.UserID,
		Input:   req.Input,
		Context: string(req.Context),
	})
	if err != nil {
		return err
	}
	utils.SendJSON(w, map[string]interface{}{"success": true, "record": rec}, http.StatusOK)
	return nil
}

// HandleFiles serves POST /api/business/files (multipart "files", up to ten).
func (h *BusinessHandler) HandleFiles(w http.ResponseWriter, r *http.Request) error {
	if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
		return err
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return apperrors.Validation("At least one file is required")
	}
	if len(headers) > services.MaxIntakeFiles {
		return apperrors.Newf(apperrors.KindValidation, "At most %d files can be uploaded at once", services.MaxIntakeFiles)
	}

	docs := make([]models.UploadedDocument, 0, len(headers))
	for _, fh := range headers {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !intakeExtensions[ext] {
			return apperrors.Newf(apperrors.KindValidation, "File type %q is not supported (allowed: .csv, .txt, .json, .md)", ext)
		}
		file, err := readPart(r, "files", fh, h.maxUploadBytes)
		if err != nil {
			return err
		}
		docs = append(docs, models.UploadedDocument{
			Filename:    fh.Filename,
			ContentType: file.ContentType,
			Content:     string(file.Content),
			Size:        int64(len(file.Content)),
		})
	}

	result, err := h.insightService.ProcessFiles(r.Context(), services.FileIntakeInput{
		UserID:          r.FormValue("userId"),
		BusinessContext: r.FormValue("businessContext"),
		Documents:       docs,
	})
	if err != nil {
		return err
	}
	utils.SendJSON(w, map[string]interface{}{"success": true, "records": result.Records, "ai_prompts": result.AIPrompts}, http.StatusOK)
	return nil
}

// HandleAIPartner serves POST /api/business/ai-partner.
func (h *BusinessHandler) HandleAIPartner(w http.ResponseWriter, r *http.Request) error {
	var req aiPartnerRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	rec, err := h.insightService.GenerateAIPartner(r.Context(), services.AIPartnerInput{
		UserID:       req.UserID,
		BusinessData: req.BusinessData,
		Preferences:  req.Preferences,
	})
	if err != nil {
		return err
	}
	utils.SendJSON(w, map[string]interface{}{"success": true, "config": rec.ProcessedData, "record": rec}, http.StatusOK)
	return nil
}

// HandleListBusinessData serves GET /api/business/{userId}/data.
func (h *BusinessHandler) HandleListBusinessData(w http.ResponseWriter, r *http.Request) error {
	records, err := h.insightService.ListBusinessData(r.Context(), r.PathValue("userId"))
	if err != nil {
		return err
	}
	utils.SendJSON(w, map[string]interface{}{"records": records}, http.StatusOK)
	return nil
}

type surveysRequest struct {
	UserID          string            `json:"userId" validate:"required,max=128"`
	BusinessContext json.RawMessage   `json:"businessContext"`
	Employees       []models.Employee `json:"employees" validate:"required"`
}

type surveyResponseRequest struct {
	Responses json.RawMessage `json:"responses" validate:"required"`
}

type consultationRequest struct {
	UserID        string          `json:"userId" validate:"required,max=128"`
	BusinessOwner json.RawMessage `json:"businessOwner" validate:"required"`
	Preferences   json.RawMessage `json:"preferences"`
}

type transcriptRequest struct {
	Transcript string `json:"transcript" validate:"required"`
}

// HandleCreateSurveys serves POST /api/business/surveys.
func (h *BusinessHandler) HandleCreateSurveys(w http.ResponseWriter, r *http.Request) error {
	var req surveysRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	surveys, err := h.insightService.CreateSurveys(r.Context(), services.SurveyInput{
		UserID:          req.UserID,
		BusinessContext: req.BusinessContext,
		Employees:       req.Employees,
	})
	if err != nil {
		return err
	}
	utils.SendJSON(w, map[string]interface{}{"success": true, "surveys": surveys, "total_created": len(surveys)}, http.StatusOK)
	return nil
}

// HandleSurveyResponse serves POST /api/business/surveys/{id}/responses.
func (h *BusinessHandler) HandleSurveyResponse(w http.ResponseWriter, r *http.Request) error {
	var req surveyResponseRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	rec, err := h.insightService.SubmitSurveyResponse(r.Context(), services.SurveyResponseInput{
		SurveyID:  r.PathValue("id"),
		Responses: req.Responses,
	})
	if err != nil {
		return err
	}
	utils.SendJSON(w, map[string]interface{}{"success": true, "insights": rec.ProcessedData, "record": rec}, http.StatusOK)
	return nil
}

// HandleSurveyInsights serves GET /api/business/{userId}/survey-insights.
func (h *BusinessHandler) HandleSurveyInsights(w http.ResponseWriter, r *http.Request) error {
	rec, err := h.insightService.AggregateSurveyInsights(r.Context(), r.PathValue("userId"))
	if err != nil {
		return err
	}
	utils.SendJSON(w, map[string]interface{}{"success": true, "insights": rec.ProcessedData, "record": rec}, http.StatusOK)
	return nil
}

// HandleCreateConsultation serves POST /api/business/consultations.
func (h *BusinessHandler) HandleCreateConsultation(w http.ResponseWriter, r *http.Request) error {
	var req consultationRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	rec, err := h.insightService.CreateConsultation(r.Context(), services.ConsultationInput{
		UserID:        req.UserID,
		BusinessOwner: req.BusinessOwner,
		Preferences:   req.Preferences,
	})
	if err != nil {
		return err
	}
	utils.SendJSON(w, map[string]interface{}{"success": true, "agenda": rec.ProcessedData, "record": rec}, http.StatusOK)
	return nil
}

// HandleConsultationTranscript serves POST /api/business/consultations/{id}/transcript.
func (h *BusinessHandler) HandleConsultationTranscript(w http.ResponseWriter, r *http.Request) error {
	var req transcriptRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	outcome, err := h.insightService.ProcessConsultationTranscript(r.Context(), services.TranscriptInput{
		ConsultationID: r.PathValue("id"),
		Transcript:     req.Transcript,
	})
	if err != nil {
		return err
	}
	utils.SendJSON(w, map[string]interface{}{
		"success":            true,
		"insights":           outcome.Insights,
		"ai_recommendations": outcome.AIRecommendations,
		"report":             outcome.Report,
		"record":             outcome.Record,
	}, http.StatusOK)
	return nil
}
