package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/commissioncalc/backend/src/apperrors"
	"github.com/username/commissioncalc/backend/src/llm"
	mock_llm "github.com/username/commissioncalc/backend/src/llm/mocks"
	"github.com/username/commissioncalc/backend/src/processors"
	"github.com/username/commissioncalc/backend/src/services"
)

const partnerRules = "Partners get 40%, associates get 25%"

func TestCommissionService_CalculateUserPayment(t *testing.T) {
	tests := []struct {
		name        string
		input       services.UserPaymentInput
		reply       string
		replyErr    error
		expectCall  bool
		wantPayment float64
		wantPct     float64
		wantCalc    string
		wantWarning string
		wantKind    apperrors.Kind
		wantMsg     string
		wantErr     bool
	}{
		{
			name:       "partner rule applied",
			input:      services.UserPaymentInput{Amount: 100000, UserName: "Jane", RulesText: partnerRules, Context: "partner"},
			reply:      `{"error":false,"rule_applied":"Partners get 40%","percentage":0.4,"amount_usd":100000,"user_payment":40000,"calculation":"100000 * 0.4"}`,
			expectCall: true, wantPayment: 40000, wantPct: 0.4, wantCalc: "100000 * 0.4",
		},
		{
			name:       "prose around the json and string numbers",
			input:      services.UserPaymentInput{Amount: 2000, UserName: "Bob", RulesText: partnerRules},
			reply:      "Sure!\n```json\n{\"rule_applied\":\"associates\",\"percentage\":\"0.25\",\"user_payment\":\"500\",\"calculation\":\"2000 * 0.25\"}\n```",
			expectCall: true, wantPayment: 500, wantPct: 0.25, wantCalc: "2000 * 0.25",
		},
		{
			name:       "drifting payment replaced by formula",
			input:      services.UserPaymentInput{Amount: 100000, UserName: "Jane", RulesText: partnerRules},
			reply:      `{"rule_applied":"Partners get 40%","percentage":0.4,"user_payment":39000,"calculation":"wrong"}`,
			expectCall: true, wantPayment: 40000, wantPct: 0.4, wantCalc: "100000 * 0.4", wantWarning: services.DriftWarning,
		},
		{
			name:       "model reports ambiguity",
			input:      services.UserPaymentInput{Amount: 100, UserName: "Jane", RulesText: partnerRules},
			reply:      `{"error":true,"error_message":"No rule matches Jane"}`,
			expectCall: true, wantErr: true, wantKind: apperrors.KindModelReported, wantMsg: "No rule matches Jane",
		},
		{
			name:       "model reports error without message",
			input:      services.UserPaymentInput{Amount: 100, UserName: "Jane", RulesText: partnerRules},
			reply:      `{"error":"true"}`,
			expectCall: true, wantErr: true, wantKind: apperrors.KindModelReported, wantMsg: "Rules sheet ambiguous",
		},
		{
			name:       "zero error flag written as float",
			input:      services.UserPaymentInput{Amount: 100000, UserName: "Jane", RulesText: partnerRules},
			reply:      `{"error":0.0,"rule_applied":"Partners get 40%","percentage":0.4,"user_payment":40000,"calculation":"100000 * 0.4"}`,
			expectCall: true, wantPayment: 40000, wantPct: 0.4, wantCalc: "100000 * 0.4",
		},
		{
			name:       "zero error flag in exponent form",
			input:      services.UserPaymentInput{Amount: 100000, UserName: "Jane", RulesText: partnerRules},
			reply:      `{"error":0e0,"rule_applied":"Partners get 40%","percentage":0.4,"user_payment":40000,"calculation":"100000 * 0.4"}`,
			expectCall: true, wantPayment: 40000, wantPct: 0.4, wantCalc: "100000 * 0.4",
		},
		{
			name:       "numeric error flag",
			input:      services.UserPaymentInput{Amount: 100, UserName: "Jane", RulesText: partnerRules},
			reply:      `{"error":1}`,
			expectCall: true, wantErr: true, wantKind: apperrors.KindModelReported, wantMsg: "Rules sheet ambiguous",
		},
		{
			name:       "percentage outside unit range",
			input:      services.UserPaymentInput{Amount: 100, UserName: "Jane", RulesText: partnerRules},
			reply:      `{"percentage":40,"user_payment":4000}`,
			expectCall: true, wantErr: true, wantKind: apperrors.KindValidation, wantMsg: "percentage must be between 0 and 1, got 40",
		},
		{
			name:       "missing user_payment",
			input:      services.UserPaymentInput{Amount: 100, UserName: "Jane", RulesText: partnerRules},
			reply:      `{"percentage":0.4}`,
			expectCall: true, wantErr: true, wantKind: apperrors.KindValidation, wantMsg: "user_payment must be a finite number",
		},
		{
			name:       "reply without json",
			input:      services.UserPaymentInput{Amount: 100, UserName: "Jane", RulesText: partnerRules},
			reply:      "I cannot help with that.",
			expectCall: true, wantErr: true, wantKind: apperrors.KindModelMalformed, wantMsg: "Model response did not contain JSON",
		},
		{
			name:       "transport failure passes through",
			input:      services.UserPaymentInput{Amount: 100, UserName: "Jane", RulesText: partnerRules},
			replyErr:   apperrors.New(apperrors.KindModelTransport, "Azure OpenAI request failed (503): busy"),
			expectCall: true, wantErr: true, wantKind: apperrors.KindModelTransport, wantMsg: "Azure OpenAI request failed (503): busy",
		},
		{
			name:    "blank user",
			input:   services.UserPaymentInput{Amount: 100, UserName: "  ", RulesText: partnerRules},
			wantErr: true, wantKind: apperrors.KindValidation, wantMsg: "User name is required",
		},
		{
			name:    "blank rules",
			input:   services.UserPaymentInput{Amount: 100, UserName: "Jane", RulesText: "\n"},
			wantErr: true, wantKind: apperrors.KindValidation, wantMsg: "Rules sheet text is required",
		},
		{
			name:    "negative amount",
			input:   services.UserPaymentInput{Amount: -1, UserName: "Jane", RulesText: partnerRules},
			wantErr: true, wantKind: apperrors.KindValidation, wantMsg: "amount must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			model := mock_llm.NewMockChatModel(ctrl)
			if tt.expectCall {
				model.EXPECT().
					Complete(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, req llm.ChatRequest) (string, error) {
						assert.Zero(t, req.Temperature)
						assert.Contains(t, req.User, tt.input.RulesText)
						return tt.reply, tt.replyErr
					})
			}

			svc := services.NewCommissionService(model, 0)
			got, err := svc.CalculateUserPayment(context.Background(), tt.input)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperrors.KindOf(err))
				assert.Equal(t, tt.wantMsg, err.Error())
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantPayment, got.UserPayment, 1e-9)
			assert.InDelta(t, tt.wantPct, got.Percentage, 1e-12)
			assert.Equal(t, tt.wantCalc, got.Calculation)
			assert.Equal(t, tt.wantWarning, got.Warning)
			assert.Equal(t, tt.input.Amount, got.AmountUSD)
		})
	}
}

func TestCommissionService_CalculateOriginatorPayment(t *testing.T) {
	tests := []struct {
		name        string
		input       services.OriginatorPaymentInput
		reply       string
		expectCall  bool
		wantPayment float64
		wantCalc    string
		wantWarning string
		wantMsg     string
	}{
		{
			name:       "model agrees with formula",
			input:      services.OriginatorPaymentInput{UserPayment: 40000, OwnOriginationPercent: 25, UserName: "Jane", OriginatorName: "Alex"},
			reply:      `{"originator_payment":10000,"calculation":"40000 * 0.25"}`,
			expectCall: true, wantPayment: 10000, wantCalc: "40000 * 0.25",
		},
		{
			name:       "drift replaced",
			input:      services.OriginatorPaymentInput{UserPayment: 40000, OwnOriginationPercent: 25, UserName: "Jane", OriginatorName: "Alex"},
			reply:      `{"originator_payment":12000,"calculation":"made up"}`,
			expectCall: true, wantPayment: 10000, wantCalc: "40000 * 0.25", wantWarning: services.DriftWarning,
		},
		{
			name:       "non numeric payment rejected",
			input:      services.OriginatorPaymentInput{UserPayment: 1000, OwnOriginationPercent: 10, UserName: "Jane", OriginatorName: "Alex"},
			reply:      `{"originator_payment":"100.00 USD"}`,
			expectCall: true, wantMsg: "originator_payment must be a finite number",
		},
		{
			name:        "same person never calls the model",
			input:       services.OriginatorPaymentInput{UserPayment: 40000, OwnOriginationPercent: 25, UserName: "Jane  Doe", OriginatorName: " jane doe "},
			wantPayment: 0, wantCalc: processors.SamePersonCalculation,
		},
		{
			name:    "percent above 100",
			input:   services.OriginatorPaymentInput{UserPayment: 1, OwnOriginationPercent: 120, UserName: "Jane", OriginatorName: "Alex"},
			wantMsg: "ownOriginationPercent must be between 0 and 100",
		},
		{
			name:    "missing originator",
			input:   services.OriginatorPaymentInput{UserPayment: 1, OwnOriginationPercent: 10, UserName: "Jane"},
			wantMsg: "User name and originator name are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			model := mock_llm.NewMockChatModel(ctrl)
			if tt.expectCall {
				model.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(tt.reply, nil)
			}

			svc := services.NewCommissionService(model, 700)
			got, err := svc.CalculateOriginatorPayment(context.Background(), tt.input)

			if tt.wantMsg != "" {
				require.Error(t, err)
				assert.True(t, apperrors.Is(err, apperrors.KindValidation))
				assert.Equal(t, tt.wantMsg, err.Error())
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantPayment, got.OriginatorPayment, 1e-9)
			assert.Equal(t, tt.wantCalc, got.Calculation)
			assert.Equal(t, tt.wantWarning, got.Warning)
		})
	}
}

func TestCommissionService_UnconfiguredModel(t *testing.T) {
	svc := services.NewCommissionService(llm.Unconfigured{}, 0)

	_, err := svc.CalculateUserPayment(context.Background(), services.UserPaymentInput{
		Amount: 10, UserName: "Jane", RulesText: partnerRules,
	})

	require.Error(t, err)
	assert.Equal(t, apperrors.KindModelNotConfigured, apperrors.KindOf(err))
	assert.Equal(t, llm.NotConfiguredMessage, apperrors.Message(err))
	assert.False(t, errors.Is(err, context.Canceled))
}
