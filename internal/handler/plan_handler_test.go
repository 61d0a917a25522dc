package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/popbatch/internal/batch"
	"github.com/Bidon15/popbatch/internal/ledger"
)

// MockPlanner is a mock implementation of Planner for testing.
type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) Plan(ctx context.Context, intent batch.Intent) (*batch.Plan, error) {
	args := m.Called(ctx, intent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.Plan), args.Error(1)
}

const bridgeBody = `{
	"kind": "bridge_erc20",
	"intent": {
		"l1_chain_id": 11155111,
		"l2_chain_id": 919,
		"l1_token": "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
		"l2_token": "0x514832A97F0b440567055A73fe03AA160017b990",
		"from": "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
		"amount": 1000000,
		"l1_standard_bridge": "0xbC5C679879B2965296756CD959C3C739769995E2"
	}
}`

func newTestHandler(planner Planner) (*PlanHandler, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewPlanHandler(planner, reg, nil), reg
}

func TestPlanHandler_Create(t *testing.T) {
	planner := new(MockPlanner)
	bridge := common.HexToAddress("0xbC5C679879B2965296756CD959C3C739769995E2")
	plan := &batch.Plan{
		Kind:    batch.KindBridgeERC20,
		ChainID: 11155111,
		Account: common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e"),
		Steps:   []batch.Step{batch.NewStep(bridge, nil, []byte{0xaa})},
	}
	planner.On("Plan", mock.Anything, mock.MatchedBy(func(i batch.Intent) bool {
		b, ok := i.(batch.BridgeERC20Intent)
		return ok && b.Amount.Cmp(big.NewInt(1_000_000)) == 0 && b.L1StandardBridge == bridge
	})).Return(plan, nil)

	h, reg := newTestHandler(planner)
	req := httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader(bridgeBody))
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))

	var resp struct {
		RequestID string `json:"request_id"`
		Plan      struct {
			Kind  string `json:"kind"`
			Steps []struct {
				To   string `json:"to"`
				Data string `json:"data"`
			} `json:"steps"`
		} `json:"plan"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "bridge_erc20", resp.Plan.Kind)
	require.Len(t, resp.Plan.Steps, 1)
	assert.Equal(t, "0xaa", resp.Plan.Steps[0].Data)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.plans.WithLabelValues("bridge_erc20", "planned")))
	count, err := testutil.GatherAndCount(reg, "popbatch_plan_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	planner.AssertExpectations(t)
}

func TestPlanHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		planErr    error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed body",
			body:       `{"kind":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeBadRequest,
		},
		{
			name:       "unknown kind",
			body:       `{"kind":"mint","intent":{}}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidIntent,
		},
		{
			name:       "invalid intent",
			body:       bridgeBody,
			planErr:    fmt.Errorf("%w: amount must be greater than zero", batch.ErrInvalidIntent),
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidIntent,
		},
		{
			name:       "insufficient balance",
			body:       bridgeBody,
			planErr:    fmt.Errorf("%w: holds 0", batch.ErrInsufficientBalance),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   CodeInsufficientBalance,
		},
		{
			name:       "unsupported route",
			body:       bridgeBody,
			planErr:    batch.ErrUnsupportedRoute,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   CodeUnsupportedRoute,
		},
		{
			name:       "read failure",
			body:       bridgeBody,
			planErr:    fmt.Errorf("%w: timeout", batch.ErrReadFailure),
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeReadFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planner := new(MockPlanner)
			if tt.planErr != nil {
				planner.On("Plan", mock.Anything, mock.Anything).Return(nil, tt.planErr)
			}

			h, _ := newTestHandler(planner)
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/plans", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp struct {
				Error APIError `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestPlanHandler_UnconfiguredChain(t *testing.T) {
	builder := batch.NewBuilder(ledger.NewReader(nil, nil))
	h, _ := newTestHandler(builder)

	body := `{
		"kind": "swap",
		"intent": {
			"chain_id": 42161,
			"token_in": "0x514832A97F0b440567055A73fe03AA160017b990",
			"token_out": "0x4200000000000000000000000000000000000006",
			"amount_in": 1000000,
			"from": "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
			"router": "0xAc48FcF1049668B285f3dC72483DF5Ae2162f7e8"
		}
	}`
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader(body)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp struct {
		Error APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, CodeUnsupportedRoute, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "42161")
}

func TestPlanHandler_HealthAndMetrics(t *testing.T) {
	h, _ := newTestHandler(new(MockPlanner))
	router := h.Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	h.metrics.observe("swap", "satisfied", 0.01)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `popbatch_plans_total{kind="swap",outcome="satisfied"} 1`)
}

func TestDecodeIntent(t *testing.T) {
	intent, err := decodeIntent(PlanRequest{
		Kind:   batch.KindTopUp,
		Intent: json.RawMessage(`{"l1_chain_id":1,"l2_chain_id":34443,"from":"0x742d35Cc6634C0532925a3b844Bc454e4438f44e","target_balance":1000}`),
	})
	require.NoError(t, err)
	top, ok := intent.(batch.TopUpIntent)
	require.True(t, ok)
	assert.Equal(t, uint64(34443), top.L2ChainID)
	assert.Equal(t, int64(1000), top.TargetBalance.Int64())

	_, err = decodeIntent(PlanRequest{Kind: batch.KindSwap})
	assert.Error(t, err)

	_, err = decodeIntent(PlanRequest{Kind: batch.KindSwap, Intent: json.RawMessage(`{"amount_in":"abc"}`)})
	assert.Error(t, err)
}
