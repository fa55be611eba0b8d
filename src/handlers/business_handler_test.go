package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/commissioncalc/backend/src/database"
	"github.com/username/commissioncalc/backend/src/handlers"
	"github.com/username/commissioncalc/backend/src/llm"
	mock_llm "github.com/username/commissioncalc/backend/src/llm/mocks"
	"github.com/username/commissioncalc/backend/src/services"
)

func newBusinessServer(t *testing.T, model llm.ChatModel) *httptest.Server {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "commission.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mux := http.NewServeMux()
	handlers.Routes{
		Business: handlers.NewBusinessHandler(
			services.NewInsightService(model, database.NewBusinessDataRepository(db)), maxUpload),
	}.Register(mux)
	srv := httptest.NewServer(handlers.Chain(mux, handlers.RequestLogger, handlers.Recover))
	t.Cleanup(srv.Close)
	return srv
}

func TestBusinessSurveyEndpoints(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mock_llm.NewMockChatModel(ctrl)
	model.EXPECT().Name().Return("mock").AnyTimes()
	model.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req llm.ChatRequest) (string, error) {
			switch {
			case strings.Contains(req.User, "Generate a comprehensive employee survey"):
				return `{"questions":[{"id":1,"type":"open_ended","question":"What slows you down?"}]}`, nil
			case strings.Contains(req.User, "Aggregate and analyze"):
				return `{"top_issue":"paper forms"}`, nil
			default:
				return `{"operations":"paper forms"}`, nil
			}
		}).Times(3)

	srv := newBusinessServer(t, model)

	created := postJSON(t, srv.URL+"/api/business/surveys",
		`{"userId":"acme","employees":[{"id":"e-1","name":"Ana","role":"Clerk","department":"ops"}]}`)
	require.Equal(t, http.StatusOK, created.StatusCode)
	body := decodeBody(t, created)
	assert.Equal(t, 1.0, body["total_created"])
	surveys := body["surveys"].([]interface{})
	surveyID := surveys[0].(map[string]interface{})["id"].(string)

	answered := postJSON(t, srv.URL+"/api/business/surveys/"+surveyID+"/responses", `{"responses":{"1":"paper forms"}}`)
	require.Equal(t, http.StatusOK, answered.StatusCode)
	assert.Equal(t, map[string]interface{}{"operations": "paper forms"}, decodeBody(t, answered)["insights"])

	resp, err := http.Get(srv.URL + "/api/business/acme/survey-insights")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]interface{}{"top_issue": "paper forms"}, decodeBody(t, resp)["insights"])

	missing := postJSON(t, srv.URL+"/api/business/surveys/unknown/responses", `{"responses":{"1":"x"}}`)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	assert.Equal(t, "Survey unknown not found", decodeBody(t, missing)["message"])

	noEmployees := postJSON(t, srv.URL+"/api/business/surveys", `{"userId":"acme","employees":[]}`)
	assert.Equal(t, http.StatusBadRequest, noEmployees.StatusCode)
	assert.Equal(t, "No employees provided", decodeBody(t, noEmployees)["message"])
}

func TestBusinessConsultationEndpoints(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mock_llm.NewMockChatModel(ctrl)
	model.EXPECT().Name().Return("mock").AnyTimes()
	model.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req llm.ChatRequest) (string, error) {
			switch {
			case strings.Contains(req.User, "consultation agenda"):
				return `{"summary":"Intro call","sections":[]}`, nil
			case strings.Contains(req.User, "extract comprehensive insights"):
				return `{"risks":"single supplier"}`, nil
			case strings.Contains(req.User, "create detailed AI partner recommendations"):
				return `{"alerts":["supplier delays"]}`, nil
			default:
				return `{"next_steps":["second supplier"]}`, nil
			}
		}).Times(4)

	srv := newBusinessServer(t, model)

	created := postJSON(t, srv.URL+"/api/business/consultations",
		`{"userId":"acme","businessOwner":{"name":"Marta"},"preferences":{"duration":60}}`)
	require.Equal(t, http.StatusOK, created.StatusCode)
	body := decodeBody(t, created)
	assert.Equal(t, "Intro call", body["agenda"].(map[string]interface{})["summary"])
	consultationID := body["record"].(map[string]interface{})["id"].(string)

	processed := postJSON(t, srv.URL+"/api/business/consultations/"+consultationID+"/transcript",
		`{"transcript":"Marta: everything comes from one supplier."}`)
	require.Equal(t, http.StatusOK, processed.StatusCode)
	result := decodeBody(t, processed)
	assert.Equal(t, map[string]interface{}{"risks": "single supplier"}, result["insights"])
	assert.Equal(t, map[string]interface{}{"alerts": []interface{}{"supplier delays"}}, result["ai_recommendations"])
	assert.Equal(t, map[string]interface{}{"next_steps": []interface{}{"second supplier"}}, result["report"])

	noTranscript := postJSON(t, srv.URL+"/api/business/consultations/"+consultationID+"/transcript", `{}`)
	assert.Equal(t, http.StatusBadRequest, noTranscript.StatusCode)
	assert.Equal(t, "transcript is required", decodeBody(t, noTranscript)["message"])
}
