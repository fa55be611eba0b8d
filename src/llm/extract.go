package llm

import (
	"encoding/json"
	"strings"

	"github.com/username/commissioncalc/backend/src/apperrors"
)

// ExtractJSONObject decodes the span from the first '{' to the last '}' of text
// into out, ignoring any prose or code fences around it.
func ExtractJSONObject(text string, out any) error {
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first == -1 || last == -1 || last <= first {
		return apperrors.New(apperrors.KindModelMalformed, "Model response did not contain JSON")
	}
	if err := json.Unmarshal([]byte(text[first:last+1]), out); err != nil {
		return apperrors.Wrap(apperrors.KindModelMalformed, err, "Failed to parse JSON from model response")
	}
	return nil
}
