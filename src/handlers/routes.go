package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/username/commissioncalc/backend/src/utils"
)

// Routes bundles every handler the API serves.
type Routes struct {
	Commission *CommissionHandler
	Batch      *BatchHandler
	Rules      *RulesHandler
	Business   *BusinessHandler
}

// Register mounts the API on mux. A nil handler group is skipped.
func (rt Routes) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSON(w, map[string]bool{"ok": true}, http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	if rt.Commission != nil {
		mux.HandleFunc("POST /api/commission/user", Handle(rt.Commission.HandleUserPayment))
		mux.HandleFunc("POST /api/commission/originator", Handle(rt.Commission.HandleOriginatorPayment))
	}
	if rt.Batch != nil {
		mux.HandleFunc("POST /api/calculate/batch", Handle(rt.Batch.HandleBatch))
		mux.HandleFunc("GET /api/calculate/batches/{id}", Handle(rt.Batch.HandleGetBatchCSV))
		mux.HandleFunc("POST /api/flow/run", Handle(rt.Batch.HandleFlow))
	}
	if rt.Rules != nil {
		mux.HandleFunc("GET /api/rules", Handle(rt.Rules.HandleGetRules))
		mux.HandleFunc("POST /api/rules", Handle(rt.Rules.HandleSaveRules))
		mux.HandleFunc("POST /api/rules/upload", Handle(rt.Rules.HandleUploadRules))
		mux.HandleFunc("GET /api/rules/history", Handle(rt.Rules.HandleRulesHistory))
	}
	if rt.Business != nil {
		mux.HandleFunc("POST /api/business/natural-language", Handle(rt.Business.HandleNaturalLanguage))
		mux.HandleFunc("POST /api/business/files", Handle(rt.Business.HandleFiles))
		mux.HandleFunc("POST /api/business/ai-partner", Handle(rt.Business.HandleAIPartner))
		mux.HandleFunc("GET /api/business/{userId}/data", Handle(rt.Business.HandleListBusinessData))
		mux.HandleFunc("POST /api/business/surveys", Handle(rt.Business.HandleCreateSurveys))
		mux.HandleFunc("POST /api/business/surveys/{id}/responses", Handle(rt.Business.HandleSurveyResponse))
		mux.HandleFunc("GET /api/business/{userId}/survey-insights", Handle(rt.Business.HandleSurveyInsights))
		mux.HandleFunc("POST /api/business/consultations", Handle(rt.Business.HandleCreateConsultation))
		mux.HandleFunc("POST /api/business/consultations/{id}/transcript", Handle(rt.Business.HandleConsultationTranscript))
	}

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSONError(w, "Not found", http.StatusNotFound)
	})
}
