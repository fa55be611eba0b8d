package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/commissioncalc/backend/src/config"
	"github.com/username/commissioncalc/backend/src/llm"
	mock_llm "github.com/username/commissioncalc/backend/src/llm/mocks"
	"github.com/username/commissioncalc/backend/src/rules"
)

const testRules = "Partners get 40%, associates get 25%"

// useTestDeps points the command tree at in-memory dependencies.
func useTestDeps(t *testing.T, model llm.ChatModel) *rules.MemoryStore {
	t.Helper()
	origCfg, origStore, origModel := config.Cfg, rulesStore, chatModel
	t.Cleanup(func() {
		config.Cfg, rulesStore, chatModel = origCfg, origStore, origModel
	})

	config.Cfg = &config.AppConfig{
		RulesStore:         config.RulesStoreFile,
		DataDir:            t.TempDir(),
		MaxUploadSizeBytes: 1 << 20,
		Model:              config.ModelConfig{MaxTokens: 700},
	}
	store := rules.NewMemoryStore("")
	rulesStore = store
	if model == nil {
		model = llm.Unconfigured{}
	}
	chatModel = model
	return store
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	runRulesFile, runPaymentsFile, runOutFile = "", "", ""
	detectPaymentsFile, detectExact, detectJSON = "", false, false
	rulesGetVersion, rulesHistoryLimit = false, 20

	outBuf, errBuf := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(outBuf)
	rootCmd.SetErr(errBuf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err = rootCmd.ExecuteContext(context.Background())
	return outBuf.String(), errBuf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDetectCmd_PrintsFieldsPerRow(t *testing.T) {
	useTestDeps(t, nil)
	payments := writeFile(t, "payments.csv", "Attorney,Fee Collected,Originating Attorney,Matter\n"+
		"Jane,\"$100,000\",Alex,Smith v. Jones\n"+
		"Pat,n/a,,\n")

	stdout, _, err := execute(t, "detect", "--payments", payments)

	require.NoError(t, err)
	assert.Contains(t, stdout, "Format: csv, 2 rows")
	assert.Contains(t, stdout, "row 2 (ok)")
	assert.Contains(t, stdout, "amount:     100000  [Fee Collected]")
	assert.Contains(t, stdout, "originator: Alex  [Originating Attorney]")
	assert.Contains(t, stdout, "context:    Smith v. Jones  [Matter]")
	assert.Contains(t, stdout, "row 3 (not calculable)")
}

func TestDetectCmd_JSONAndExact(t *testing.T) {
	useTestDeps(t, nil)
	payments := writeFile(t, "payments.csv", "user,amount_usd,own_origination_percent\nJane,1000,25\n")

	stdout, _, err := execute(t, "detect", "--payments", payments, "--exact", "--json")
	require.NoError(t, err)

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	require.Len(t, got, 1)
	assert.Equal(t, float64(2), got[0]["row"])
	assert.Equal(t, true, got[0]["calculable"])
	assert.Equal(t, float64(1000), got[0]["amount"])
	assert.Equal(t, "Jane", got[0]["user"])
	assert.Equal(t, "Jane", got[0]["originator"])
	assert.Equal(t, float64(25), got[0]["own_origination_percent"])
}

func TestDetectCmd_MissingFile(t *testing.T) {
	useTestDeps(t, nil)

	_, _, err := execute(t, "detect", "--payments", filepath.Join(t.TempDir(), "nope.csv"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read payment file")
}

func TestRunCmd_WritesResultCSV(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mock_llm.NewMockChatModel(ctrl)
	model.EXPECT().Name().Return("mock").AnyTimes()
	model.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req llm.ChatRequest) (string, error) {
			if strings.Contains(req.System, "AI #2") {
				return `{"originator_payment":10000,"calculation":"40000 * 0.25"}`, nil
			}
			return `{"rule_applied":"Partners get 40%","percentage":0.4,"user_payment":40000,"calculation":"100000 * 0.4"}`, nil
		}).Times(2)
	useTestDeps(t, model)

	rulesFile := writeFile(t, "rules.txt", testRules)
	payments := writeFile(t, "payments.csv", "Attorney,Fee Collected,Originating Attorney,Own Origination %\n"+
		"Jane,\"$100,000\",Alex,25\n")
	outFile := filepath.Join(t.TempDir(), "result.csv")

	stdout, stderr, err := execute(t, "run", "--rules", rulesFile, "--payments", payments, "--out", outFile)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "1 rows (csv), 0 failed")

	csvBytes, err := os.ReadFile(outFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvBytes)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "row_number,error,error_message,amount_usd,user,originator"))
	assert.Contains(t, lines[1], "Jane")
	assert.Contains(t, lines[1], "40000")
	assert.Contains(t, lines[1], "10000")
}

func TestRunCmd_UsesSavedRulesAndPrintsToStdout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mock_llm.NewMockChatModel(ctrl)
	model.EXPECT().Name().Return("mock").AnyTimes()
	model.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req llm.ChatRequest) (string, error) {
			assert.Contains(t, req.User, testRules)
			return `{"rule_applied":"Associates get 25%","percentage":0.25,"user_payment":250,"calculation":"1000 * 0.25"}`, nil
		}).Times(1)
	store := useTestDeps(t, model)
	_, err := store.Save(context.Background(), testRules)
	require.NoError(t, err)

	payments := writeFile(t, "payments.csv", "user,amount_usd\nBob,1000\n")

	stdout, _, err := execute(t, "run", "--payments", payments)
	require.NoError(t, err)
	assert.Contains(t, stdout, "row_number,error")
	assert.Contains(t, stdout, "Bob")
	assert.Contains(t, stdout, "250")
}

func TestRunCmd_ModelNotConfigured(t *testing.T) {
	useTestDeps(t, nil)
	payments := writeFile(t, "payments.csv", "user,amount_usd\nBob,1000\n")
	rulesFile := writeFile(t, "rules.txt", testRules)

	_, _, err := execute(t, "run", "--rules", rulesFile, "--payments", payments)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow run failed")
}

func TestRulesCmd_SetThenGet(t *testing.T) {
	useTestDeps(t, nil)
	rulesFile := writeFile(t, "rules.txt", testRules+"\n")

	stdout, _, err := execute(t, "rules", "set", rulesFile)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Saved rules version "+rules.Version(testRules+"\n"))

	stdout, _, err = execute(t, "rules", "get")
	require.NoError(t, err)
	assert.Equal(t, testRules+"\n", stdout)

	stdout, _, err = execute(t, "rules", "get", "--version")
	require.NoError(t, err)
	assert.Equal(t, rules.Version(testRules+"\n")+"\n", stdout)
}

func TestRulesCmd_GetEmpty(t *testing.T) {
	useTestDeps(t, nil)

	stdout, stderr, err := execute(t, "rules", "get")

	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "No rules saved.")
}

func TestRulesCmd_SetFromStdin(t *testing.T) {
	store := useTestDeps(t, nil)
	rootCmd.SetIn(strings.NewReader(testRules))
	defer rootCmd.SetIn(nil)

	_, _, err := execute(t, "rules", "set", "-")
	require.NoError(t, err)

	snap, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testRules, snap.Text)
}

func TestRulesCmd_HistoryNeedsSQLite(t *testing.T) {
	useTestDeps(t, nil)

	_, _, err := execute(t, "rules", "history")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "RULES_STORE=sqlite")
}
