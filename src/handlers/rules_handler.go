package handlers

import (
	"net/http"
	"strconv"

	"github.com/username/commissioncalc/backend/src/apperrors"
	"github.com/username/commissioncalc/backend/src/rules"
	"github.com/username/commissioncalc/backend/src/services"
	"github.com/username/commissioncalc/backend/src/utils"
)

type RulesHandler struct {
	rulesService   services.RulesService
	maxUploadBytes int64
}

func NewRulesHandler(service services.RulesService, maxUploadBytes int64) *RulesHandler {
	return &RulesHandler{rulesService: service, maxUploadBytes: maxUploadBytes}
}

type saveRulesRequest struct {
	RulesText string `json:"rulesText" validate:"max=200000"`
}

type rulesResponse struct {
	RulesText string `json:"rulesText"`
	Version   string `json:"version"`
}

// HandleGetRules serves GET /api/rules with ETag support.
func (h *RulesHandler) HandleGetRules(w http.ResponseWriter, r *http.Request) error {
	snap, err := h.rulesService.Current(r.Context())
	if err != nil {
		return err
	}
	utils.SendJSONWithETag(w, r, rulesResponse{RulesText: snap.Text, Version: snap.Version})
	return nil
}

// HandleSaveRules serves POST /api/rules.
func (h *RulesHandler) HandleSaveRules(w http.ResponseWriter, r *http.Request) error {
	var req saveRulesRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	snap, err := h.rulesService.Save(r.Context(), req.RulesText)
	if err != nil {
		return err
	}
	utils.SendJSON(w, map[string]interface{}{"ok": true, "version": snap.Version}, http.StatusOK)
	return nil
}

// HandleUploadRules serves POST /api/rules/upload (multipart rulesFile).
func (h *RulesHandler) HandleUploadRules(w http.ResponseWriter, r *http.Request) error {
	if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
		return err
	}
	file, err := formFile(r, "rulesFile", h.maxUploadBytes)
	if err != nil {
		return err
	}
	if file == nil {
		return apperrors.Validation("rulesFile is required")
	}
	snap, err := h.rulesService.Save(r.Context(), string(file.Content))
	if err != nil {
		return err
	}
	utils.SendJSON(w, map[string]interface{}{"ok": true, "rulesText": snap.Text, "version": snap.Version}, http.StatusOK)
	return nil
}

// HandleRulesHistory serves GET /api/rules/history?limit=N.
func (h *RulesHandler) HandleRulesHistory(w http.ResponseWriter, r *http.Request) error {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return apperrors.Validation("limit must be a non-negative integer")
		}
		limit = n
	}
	history, err := h.rulesService.History(r.Context(), limit)
	if err != nil {
		return err
	}
	if history == nil {
		history = []rules.Snapshot{}
	}
	utils.SendJSON(w, map[string]interface{}{"versions": history}, http.StatusOK)
	return nil
}
