package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hale-labs/hale-oracle/internal/lib"
	"github.com/stretchr/testify/require"
)

const testPubkey = "11111111111111111111111111111111"

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func newRPCServer(t *testing.T, handle func(req rpcRequest) interface{}) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %s", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handle(req),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, url string) *Client {
	client, err := DialContext(context.Background(), url, &lib.LoggerMock{})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestGetAccountData(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	var seen rpcRequest

	srv := newRPCServer(t, func(req rpcRequest) interface{} {
		seen = req
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 42},
			"value": map[string]interface{}{
				"data":     []string{base64.StdEncoding.EncodeToString(payload), "base64"},
				"owner":    testPubkey,
				"lamports": 1,
			},
		}
	})

	data, err := dial(t, srv.URL).GetAccountData(context.Background(), testPubkey)
	require.NoError(t, err)
	require.Equal(t, payload, data)

	require.Equal(t, "getAccountInfo", seen.Method)
	require.Len(t, seen.Params, 2)
	require.JSONEq(t, `"`+testPubkey+`"`, string(seen.Params[0]))
	require.JSONEq(t, `{"encoding":"base64","commitment":"confirmed"}`, string(seen.Params[1]))
}

func TestGetAccountDataMissingAccount(t *testing.T) {
	srv := newRPCServer(t, func(req rpcRequest) interface{} {
		return map[string]interface{}{"context": map[string]interface{}{"slot": 1}, "value": nil}
	})

	data, err := dial(t, srv.URL).GetAccountData(context.Background(), testPubkey)
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestGetAccountDataUnexpectedEncoding(t *testing.T) {
	srv := newRPCServer(t, func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"value": map[string]interface{}{"data": []string{"AQID", "base58"}},
		}
	})

	_, err := dial(t, srv.URL).GetAccountData(context.Background(), testPubkey)
	require.ErrorIs(t, err, ErrEncoding)
}

func TestGetAccountDataInvalidPubkey(t *testing.T) {
	calls := 0
	srv := newRPCServer(t, func(req rpcRequest) interface{} {
		calls++
		return nil
	})

	for _, pubkey := range []string{"", "not-base58-0OIl", "abc"} {
		_, err := dial(t, srv.URL).GetAccountData(context.Background(), pubkey)
		require.ErrorIs(t, err, ErrInvalidPubkey, pubkey)
	}
	require.Equal(t, 0, calls)
}

func TestHealth(t *testing.T) {
	status := "ok"
	srv := newRPCServer(t, func(req rpcRequest) interface{} {
		if req.Method != "getHealth" {
			t.Errorf("unexpected method %s", req.Method)
		}
		return status
	})
	client := dial(t, srv.URL)

	require.NoError(t, client.Health(context.Background()))
	require.Equal(t, srv.URL, client.URL())

	status = "behind"
	require.ErrorIs(t, client.Health(context.Background()), ErrRPC)
}
