package processors

import (
	"github.com/username/commissioncalc/backend/src/models"
)

// FieldDetector defines the interface for mapping a raw row to canonical fields.
type FieldDetector interface {
	Detect(row *models.PaymentRow) models.DetectedFields
}
