// backend/src/handlers/batch_handler.go
package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/commissioncalc/backend/src/apperrors"
	"github.com/username/commissioncalc/backend/src/logger"
	"github.com/username/commissioncalc/backend/src/models"
	"github.com/username/commissioncalc/backend/src/parsers"
	"github.com/username/commissioncalc/backend/src/services"
	"github.com/username/commissioncalc/backend/src/utils"
)

type BatchHandler struct {
	batchService   services.BatchService
	maxUploadBytes int64
}

func NewBatchHandler(service services.BatchService, maxUploadBytes int64) *BatchHandler {
	return &BatchHandler{
		batchService:   service,
		maxUploadBytes: maxUploadBytes,
	}
}

type batchResponse struct {
	BatchID      string `json:"batch_id"`
	CSV          string `json:"csv"`
	ResultsCount int    `json:"results_count"`
}

type flowResponse struct {
	BatchID         string            `json:"batch_id"`
	ResultsCount    int               `json:"results_count"`
	PreviewFirstRow *models.RowResult `json:"preview_first_row"`
	CSV             string            `json:"csv"`
}

// HandleBatch serves POST /api/calculate/batch. Rules come from rulesFile,
// then the rulesText field, then the saved rules. An uploaded rules file must
// not be blank.
func (h *BatchHandler) HandleBatch(w http.ResponseWriter, r *http.Request) error {
	if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
		return err
	}

	dataFile, err := firstFormFile(r, h.maxUploadBytes, "attorneyDataFile", "paymentFile")
	if err != nil {
		return err
	}
	if dataFile == nil {
		return apperrors.Validation("attorneyDataFile is required")
	}
	rulesFile, err := formFile(r, "rulesFile", h.maxUploadBytes)
	if err != nil {
		return err
	}

	rulesText := strings.TrimSpace(r.FormValue("rulesText"))
	if rulesFile != nil {
		rulesText = strings.TrimSpace(string(rulesFile.Content))
		if rulesText == "" {
			return apperrors.Validation(services.MsgRulesRequired)
		}
	}

	table, err := parsers.NewCSVParser().Parse(bytes.NewReader(dataFile.Content))
	if err != nil {
		return parseError(err, dataFile.Filename)
	}

	out, err := h.batchService.Run(r.Context(), services.BatchInput{
		Mode:          models.ModeBatch,
		RulesText:     rulesText,
		UseSavedRules: true,
		Rows:          table.Records,
	})
	if err != nil {
		return err
	}

	utils.SendJSON(w, batchResponse{
		BatchID:      out.Report.ID,
		CSV:          out.CSV,
		ResultsCount: out.Report.ResultsCount(),
	}, http.StatusOK)
	return nil
}

// HandleFlow serves POST /api/flow/run: an uploaded rules sheet plus a payment
// file in any supported format.
func (h *BatchHandler) HandleFlow(w http.ResponseWriter, r *http.Request) error {
	if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
		return err
	}

	rulesFile, err := formFile(r, "rulesFile", h.maxUploadBytes)
	if err != nil {
		return err
	}
	paymentFile, err := formFile(r, "paymentFile", h.maxUploadBytes)
	if err != nil {
		return err
	}
	if rulesFile == nil {
		return apperrors.Validation("rulesFile is required")
	}
	if paymentFile == nil {
		return apperrors.Validation("paymentFile is required")
	}

	rulesText := strings.TrimSpace(string(rulesFile.Content))
	if rulesText == "" {
		return apperrors.Validation("Rules sheet file was empty")
	}

	table, format, err := parsers.ParsePaymentFile(paymentFile.Filename, paymentFile.ContentType, paymentFile.Content)
	if err != nil {
		return parseError(err, paymentFile.Filename)
	}
	logger.FromContext(r.Context()).Info("Payment file parsed", "filename", paymentFile.Filename, "format", format, "rows", len(table.Records))

	out, err := h.batchService.Run(r.Context(), services.BatchInput{
		Mode:      models.ModeFlow,
		RulesText: rulesText,
		Rows:      table.Records,
	})
	if err != nil {
		return err
	}

	utils.SendJSON(w, flowResponse{
		BatchID:         out.Report.ID,
		ResultsCount:    out.Report.ResultsCount(),
		PreviewFirstRow: out.Report.FirstSuccess(),
		CSV:             out.CSV,
	}, http.StatusOK)
	return nil
}

// HandleGetBatchCSV serves GET /api/calculate/batches/{id}.
func (h *BatchHandler) HandleGetBatchCSV(w http.ResponseWriter, r *http.Request) error {
	batchID := strings.TrimSpace(r.PathValue("id"))
	if batchID == "" {
		return apperrors.Validation("batch id is required")
	}
	csvText, err := h.batchService.GetBatchCSV(r.Context(), batchID)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"commission-%s.csv\"", batchID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(csvText)); err != nil {
		logger.FromContext(r.Context()).Error("Error writing batch CSV", "batchID", batchID, "error", err)
	}
	return nil
}

func parseError(err error, filename string) error {
	if errors.Is(err, parsers.ErrParsingFailed) {
		return apperrors.Wrap(apperrors.KindValidation, err, fmt.Sprintf("Error parsing %s: %v", filename, err))
	}
	return fmt.Errorf("error reading %s: %w", filename, err)
}
