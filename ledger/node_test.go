package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNodeClientTransfer(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  map[string]interface{}{"id": "conf-1", "timestamp": 99},
		})
	}))
	defer server.Close()

	client := NewNodeClient(server.URL, "secret-token")
	conf, err := client.Transfer(context.Background(), Vault, "issuer-key", big.NewInt(5_000_000_000))
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if conf.ID != "conf-1" || conf.Timestamp != 99 {
		t.Fatalf("confirmation = %+v", conf)
	}
	if conf.Amount.Cmp(big.NewInt(5_000_000_000)) != 0 {
		t.Fatalf("amount = %s", conf.Amount)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotBody["method"] != "ledger_transfer" {
		t.Fatalf("method = %v", gotBody["method"])
	}
}

func TestNodeClientRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]interface{}{"code": -32000, "message": "insufficient vault balance"},
		})
	}))
	defer server.Close()

	client := NewNodeClient(server.URL, "")
	_, err := client.Transfer(context.Background(), Vault, "issuer-key", big.NewInt(1))
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}
}

func TestNodeClientHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewNodeClient(server.URL, "")
	if _, err := client.Transfer(context.Background(), Vault, "issuer-key", big.NewInt(1)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}
}

func TestNodeClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewNodeClient(server.URL, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Transfer(ctx, Vault, "issuer-key", big.NewInt(1)); !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestNodeClientRejectsBadAmount(t *testing.T) {
	client := NewNodeClient("http://localhost:0", "")
	if _, err := client.Transfer(context.Background(), Vault, "issuer-key", nil); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("nil amount err = %v", err)
	}
	if _, err := client.Transfer(context.Background(), Vault, "issuer-key", big.NewInt(-5)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("negative amount err = %v", err)
	}
}
