// backend/src/handlers/commission_handler.go
package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/commissioncalc/backend/src/logger"
	"github.com/username/commissioncalc/backend/src/services"
	"github.com/username/commissioncalc/backend/src/utils"
)

type CommissionHandler struct {
	commissionService services.CommissionService
	rulesService      services.RulesService
}

func NewCommissionHandler(commission services.CommissionService, rules services.RulesService) *CommissionHandler {
	return &CommissionHandler{
		commissionService: commission,
		rulesService:      rules,
	}
}

type userPaymentRequest struct {
	Amount           json.Number `json:"amount"`
	UserName         string      `json:"userName" validate:"max=200"`
	OriginatorName   string      `json:"originatorName" validate:"max=200"`
	RulesText        string      `json:"rulesText" validate:"max=200000"`
	Context          string      `json:"context" validate:"max=5000"`
	AttorneyDataText string      `json:"attorneyDataText" validate:"max=1000000"`
}

type originatorPaymentRequest struct {
	UserPayment           json.Number `json:"userPayment"`
	OwnOriginationPercent json.Number `json:"ownOriginationPercent"`
	UserName              string      `json:"userName" validate:"max=200"`
	OriginatorName        string      `json:"originatorName" validate:"max=200"`
}

// HandleUserPayment serves POST /api/commission/user. Blank rulesText falls
// back to the saved rules.
func (h *CommissionHandler) HandleUserPayment(w http.ResponseWriter, r *http.Request) error {
	var req userPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	rulesText := strings.TrimSpace(req.RulesText)
	if rulesText == "" {
		snap, err := h.rulesService.Current(r.Context())
		if err != nil {
			return err
		}
		rulesText = snap.Trimmed()
	}

	logger.FromContext(r.Context()).Debug("Calculating user payment", "user", req.UserName, "savedRules", strings.TrimSpace(req.RulesText) == "")
	result, err := h.commissionService.CalculateUserPayment(r.Context(), services.UserPaymentInput{
		Amount:         numberOrNaN(req.Amount),
		UserName:       req.UserName,
		OriginatorName: req.OriginatorName,
		RulesText:      rulesText,
		Context:        strings.TrimSpace(req.Context),
		ReferenceData:  strings.TrimSpace(req.AttorneyDataText),
	})
	if err != nil {
		return err
	}
	utils.SendJSON(w, result, http.StatusOK)
	return nil
}

// HandleOriginatorPayment serves POST /api/commission/originator.
func (h *CommissionHandler) HandleOriginatorPayment(w http.ResponseWriter, r *http.Request) error {
	var req originatorPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	result, err := h.commissionService.CalculateOriginatorPayment(r.Context(), services.OriginatorPaymentInput{
		UserPayment:           numberOrNaN(req.UserPayment),
		OwnOriginationPercent: numberOrNaN(req.OwnOriginationPercent),
		UserName:              req.UserName,
		OriginatorName:        req.OriginatorName,
	})
	if err != nil {
		return err
	}
	utils.SendJSON(w, result, http.StatusOK)
	return nil
}

// numberOrNaN leaves range and finiteness checks to the services.
func numberOrNaN(n json.Number) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(n.String()), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
