package services_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/commissioncalc/backend/src/apperrors"
	"github.com/username/commissioncalc/backend/src/database"
	"github.com/username/commissioncalc/backend/src/llm"
	mock_llm "github.com/username/commissioncalc/backend/src/llm/mocks"
	"github.com/username/commissioncalc/backend/src/models"
	"github.com/username/commissioncalc/backend/src/services"
)

func newInsightService(t *testing.T, model llm.ChatModel) services.InsightService {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "commission.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return services.NewInsightService(model, database.NewBusinessDataRepository(db))
}

func TestInsightService_ProcessNaturalLanguage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mock_llm.NewMockChatModel(ctrl)
	model.EXPECT().Name().Return("mock").AnyTimes()
	model.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req llm.ChatRequest) (string, error) {
			assert.InDelta(t, 0.7, req.Temperature, 1e-6)
			assert.Contains(t, req.User, "We sell bikes")
			return "Here you go: {\"goals\":[\"grow online sales\"]}", nil
		})

	svc := newInsightService(t, model)
	rec, err := svc.ProcessNaturalLanguage(context.Background(), services.NaturalLanguageInput{
		UserID: "u-1",
		Input:  "We sell bikes and want to grow online.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DataTypeNaturalLanguage, rec.DataType)
	assert.Equal(t, models.ProcessingCompleted, rec.ProcessingStatus)
	assert.JSONEq(t, `{"goals":["grow online sales"]}`, string(rec.ProcessedData))

	listed, err := svc.ListBusinessData(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, rec.ID, listed[0].ID)
}

func TestInsightService_ProcessNaturalLanguage_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := newInsightService(t, mock_llm.NewMockChatModel(ctrl))

	_, err := svc.ProcessNaturalLanguage(context.Background(), services.NaturalLanguageInput{Input: "hello"})
	assert.Equal(t, "userId is required", apperrors.Message(err))

	_, err = svc.ProcessNaturalLanguage(context.Background(), services.NaturalLanguageInput{UserID: "u", Input: "  "})
	assert.Equal(t, "input is required", apperrors.Message(err))
}

func TestInsightService_ProcessFiles(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mock_llm.NewMockChatModel(ctrl)
	model.EXPECT().Name().Return("mock").AnyTimes()
	model.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req llm.ChatRequest) (string, error) {
			switch {
			case strings.Contains(req.User, "Filename: sales.csv"):
				return `{"financials":{"revenue":"120k"},"inventory":{},"operations":"two shifts"}`, nil
			case strings.Contains(req.User, "Filename: broken.txt"):
				return "no idea", nil
			default:
				assert.Contains(t, req.User, `"revenue":"120k"`)
				return `{"prompts":[{"category":"finance","prompt":"Forecast revenue"}]}`, nil
			}
		}).Times(3)

	svc := newInsightService(t, model)
	result, err := svc.ProcessFiles(context.Background(), services.FileIntakeInput{
		UserID:          "u-2",
		BusinessContext: `{"industry":"retail"}`,
		Documents: []models.UploadedDocument{
			{Filename: "sales.csv", ContentType: "text/csv", Content: "month,revenue\njan,120k\n", Size: 24},
			{Filename: "../broken.txt", ContentType: "text/plain", Content: "???", Size: 3},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	sales := result.Records[0]
	assert.Equal(t, models.ProcessingCompleted, sales.ProcessingStatus)
	assert.Equal(t, "financials,operations", sales.Category)
	assert.Len(t, sales.FileHash, 64)

	var categories map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(sales.ProcessedData, &categories))
	assert.JSONEq(t, `"two shifts"`, string(categories["operations"]["value"]))

	broken := result.Records[1]
	assert.Equal(t, "broken.txt", broken.OriginalFilename)
	assert.Equal(t, models.ProcessingFailed, broken.ProcessingStatus)
	assert.Equal(t, "Model response did not contain JSON", broken.ProcessingError)

	assert.JSONEq(t, `{"prompts":[{"category":"finance","prompt":"Forecast revenue"}]}`, string(result.AIPrompts))
}

func TestInsightService_ProcessFiles_Limits(t *testing.T) {
	svc := newInsightService(t, llm.Unconfigured{})

	_, err := svc.ProcessFiles(context.Background(), services.FileIntakeInput{UserID: "u"})
	assert.Equal(t, "At least one file is required", apperrors.Message(err))

	docs := make([]models.UploadedDocument, services.MaxIntakeFiles+1)
	_, err = svc.ProcessFiles(context.Background(), services.FileIntakeInput{UserID: "u", Documents: docs})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = svc.ProcessFiles(context.Background(), services.FileIntakeInput{UserID: "u", Documents: docs[:1]})
	assert.Equal(t, apperrors.KindModelNotConfigured, apperrors.KindOf(err))
}

func TestInsightService_GenerateAIPartner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mock_llm.NewMockChatModel(ctrl)
	model.EXPECT().Name().Return("mock").AnyTimes()
	model.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req llm.ChatRequest) (string, error) {
			assert.Contains(t, req.User, `Business Data: {"employees":12}`)
			assert.Contains(t, req.User, "User Preferences: {}")
			return `{"personality":"pragmatic"}`, nil
		})

	svc := newInsightService(t, model)
	rec, err := svc.GenerateAIPartner(context.Background(), services.AIPartnerInput{
		UserID:       "u-3",
		BusinessData: json.RawMessage(`{"employees":12}`),
	})
	require.NoError(t, err)
	assert.Equal(t, models.DataTypeAIPartnerConfig, rec.DataType)
	assert.JSONEq(t, `{"personality":"pragmatic"}`, string(rec.ProcessedData))
	assert.Equal(t, "mock", rec.ModelBackend)
}
