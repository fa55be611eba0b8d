package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/username/commissioncalc/backend/src/apperrors"
	"github.com/username/commissioncalc/backend/src/logger"
	"github.com/username/commissioncalc/backend/src/rules"
	"github.com/username/commissioncalc/backend/src/security/validation"
)

const defaultHistoryLimit = 20

type rulesServiceImpl struct {
	store rules.Store
}

func NewRulesService(store rules.Store) RulesService {
	return &rulesServiceImpl{store: store}
}

func (s *rulesServiceImpl) Current(ctx context.Context) (rules.Snapshot, error) {
	snap, err := s.store.Current(ctx)
	if err != nil {
		return rules.Snapshot{}, fmt.Errorf("error reading rules: %w", err)
	}
	return snap, nil
}

// Save replaces the document. Blank text is allowed and clears the rules.
func (s *rulesServiceImpl) Save(ctx context.Context, text string) (rules.Snapshot, error) {
	text = validation.StripUnprintable(text)
	snap, err := s.store.Save(ctx, text)
	if err != nil {
		return rules.Snapshot{}, fmt.Errorf("error saving rules: %w", err)
	}
	logger.FromContext(ctx).Info("Rules saved", "version", snap.Version, "length", len(snap.Text), "empty", strings.TrimSpace(snap.Text) == "")
	return snap, nil
}

func (s *rulesServiceImpl) History(ctx context.Context, limit int) ([]rules.Snapshot, error) {
	hs, ok := s.store.(rules.HistoryStore)
	if !ok {
		return nil, apperrors.Wrap(apperrors.KindValidation, rules.ErrHistoryUnsupported, "Rules history requires RULES_STORE=sqlite")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	history, err := hs.History(ctx, limit)
	if errors.Is(err, rules.ErrHistoryUnsupported) {
		return nil, apperrors.Wrap(apperrors.KindValidation, err, "Rules history requires RULES_STORE=sqlite")
	}
	if err != nil {
		return nil, fmt.Errorf("error reading rules history: %w", err)
	}
	return history, nil
}
