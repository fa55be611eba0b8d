package services_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/commissioncalc/backend/src/apperrors"
	"github.com/username/commissioncalc/backend/src/database"
	"github.com/username/commissioncalc/backend/src/rules"
	"github.com/username/commissioncalc/backend/src/services"
)

func TestRulesService_SaveAndCurrent(t *testing.T) {
	ctx := context.Background()
	svc := services.NewRulesService(rules.NewFileStore(filepath.Join(t.TempDir(), rules.DefaultFileName)))

	empty, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.True(t, empty.Empty())

	saved, err := svc.Save(ctx, "Partners get 40%\x00\n")
	require.NoError(t, err)
	assert.Equal(t, "Partners get 40%\n", saved.Text)
	assert.Equal(t, rules.Version("Partners get 40%\n"), saved.Version)

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.Version, current.Version)
}

func TestRulesService_History(t *testing.T) {
	ctx := context.Background()

	t.Run("single-slot store has no history", func(t *testing.T) {
		svc := services.NewRulesService(rules.NewMemoryStore("x"))
		_, err := svc.History(ctx, 5)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))
		assert.True(t, errors.Is(err, rules.ErrHistoryUnsupported))
	})

	t.Run("sqlite store lists newest first", func(t *testing.T) {
		db, err := database.InitDB(filepath.Join(t.TempDir(), "commission.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		svc := services.NewRulesService(database.NewRulesRepository(db))
		_, err = svc.Save(ctx, "v1")
		require.NoError(t, err)
		_, err = svc.Save(ctx, "v2")
		require.NoError(t, err)

		history, err := svc.History(ctx, 0)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "v2", history[0].Text)
		assert.Equal(t, "v1", history[1].Text)
	})
}
