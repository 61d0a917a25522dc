package owl

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateOrSetUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/projectUser.createOrSet", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))

		var in CreateUserRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "leo@owlprotocol.xyz", in.Email)

		_, _ = io.WriteString(w, `{"result":{"data":{"email":"leo@owlprotocol.xyz","safeAddress":"0x742d35Cc6634C0532925a3b844Bc454e4438f44e"}}}`)
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL))
	user, err := c.CreateOrSetUser(context.Background(), &CreateUserRequest{Email: "leo@owlprotocol.xyz"})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e"), user.SafeAddress)
}

func TestClient_CreateOrSetUser_Validation(t *testing.T) {
	c := NewClient("secret", WithBaseURL("http://127.0.0.1:0"))

	_, err := c.CreateOrSetUser(context.Background(), &CreateUserRequest{})
	assert.Error(t, err)

	_, err = c.CreateOrSetUser(context.Background(), &CreateUserRequest{Email: "a@b.c", ExternalID: "x"})
	assert.Error(t, err)
}

func TestClient_CreateManagedUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in CreateUserRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_, err := uuid.Parse(in.ExternalID)
		assert.NoError(t, err)
		assert.Empty(t, in.Email)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"data": map[string]any{"externalId": in.ExternalID}},
		})
	}))
	defer srv.Close()

	user, err := NewClient("secret", WithBaseURL(srv.URL)).CreateManagedUser(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, user.ExternalID)
}

func TestClient_GetUser_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/projectUser.get", r.URL.Path)

		var in GetUserRequest
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("input")), &in))
		assert.Equal(t, uint64(150150), in.ChainID)

		// superjson-wrapped payload
		_, _ = io.WriteString(w, `{"result":{"data":{"json":{"email":"leo@owlprotocol.xyz","safeAddress":"0x0000000000000000000000000000000000000001"}}}}`)
	}))
	defer srv.Close()

	user, err := NewClient("secret", WithBaseURL(srv.URL)).GetUser(context.Background(), &GetUserRequest{
		ChainID: 150150,
		Email:   "leo@owlprotocol.xyz",
	})
	require.NoError(t, err)
	assert.Equal(t, "leo@owlprotocol.xyz", user.Email)
	assert.Equal(t, common.HexToAddress("0x01"), user.SafeAddress)
}

func TestClient_Collections(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/collection.deploy":
			_, _ = io.WriteString(w, `{"result":{"data":{"contractAddress":"0x00000000000000000000000000000000000000c0"}}}`)
		case "/collection.erc721AutoId.mintBatch":
			var in MintBatchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, []string{"leo@owlprotocol.xyz"}, in.To)
			assert.Equal(t, "NFT #1", in.Metadata.Name)
			_, _ = io.WriteString(w, `{"result":{"data":null}}`)
		}
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL))
	col, err := c.DeployCollection(context.Background(), &DeployCollectionRequest{ChainID: 150150, Name: "My Collection", Symbol: "MYC"})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xc0"), col.ContractAddress)

	err = c.MintBatch(context.Background(), &MintBatchRequest{
		ChainID:  150150,
		Address:  col.ContractAddress,
		To:       []string{"leo@owlprotocol.xyz"},
		Metadata: &Metadata{Name: "NFT #1", Description: "This was so easy!"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/collection.deploy", "/collection.erc721AutoId.mintBatch"}, paths)

	assert.Error(t, c.MintBatch(context.Background(), &MintBatchRequest{ChainID: 150150}))
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantCode     string
		wantStatus   int
		unauthorized bool
	}{
		{
			name:         "trpc error",
			status:       http.StatusUnauthorized,
			body:         `{"error":{"message":"invalid api key","code":-32001,"data":{"code":"UNAUTHORIZED","httpStatus":401}}}`,
			wantCode:     "UNAUTHORIZED",
			wantStatus:   http.StatusUnauthorized,
			unauthorized: true,
		},
		{
			name:       "not json",
			status:     http.StatusBadGateway,
			body:       "bad gateway",
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient("bad", WithBaseURL(srv.URL)).GetUser(context.Background(), &GetUserRequest{ChainID: 1})
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tt.unauthorized, apiErr.IsUnauthorized())
		})
	}
}
