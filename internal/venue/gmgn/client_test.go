package gmgn

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"solana-exit-engine/internal/domain"
	solanastub "solana-exit-engine/internal/solana/stub"
	"solana-exit-engine/internal/venue"
)

func routePayload(tx string) map[string]interface{} {
	return map[string]interface{}{
		"code": 0,
		"msg":  "success",
		"data": map[string]interface{}{
			"quote": map[string]interface{}{
				"inAmount":             "500000000",
				"outAmount":            "990000000",
				"otherAmountThreshold": "960000000",
				"slippageBps":          300,
				"priceImpactPct":       "0.02",
			},
			"raw_tx": map[string]interface{}{
				"swapTransaction": tx,
			},
		},
	}
}

func TestClient_Quote(t *testing.T) {
	txBytes := []byte{0x0a, 0x0b, 0x0c}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tx/get_swap_route" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("token_in_address") != "MintA" {
			t.Errorf("unexpected token_in_address %s", q.Get("token_in_address"))
		}
		if q.Get("from_address") != "Payer111" {
			t.Errorf("unexpected from_address %s", q.Get("from_address"))
		}
		// 300 bps travels as percent.
		if q.Get("slippage") != "3" {
			t.Errorf("expected slippage 3, got %s", q.Get("slippage"))
		}

		json.NewEncoder(w).Encode(routePayload(base64.StdEncoding.EncodeToString(txBytes)))
	}))
	defer server.Close()

	client := NewClient(solanastub.NewRPCClient(), WithBaseURL(server.URL))

	quote, err := client.Quote(context.Background(), venue.QuoteRequest{
		InputMint:     "MintA",
		OutputMint:    domain.WrappedSOLMint,
		AmountRaw:     500000000,
		SlippageBps:   300,
		UserPublicKey: "Payer111",
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.Venue != VenueName {
		t.Errorf("unexpected venue %s", quote.Venue)
	}
	if quote.OutAmountRaw != 990000000 {
		t.Errorf("unexpected outAmount %d", quote.OutAmountRaw)
	}

	// The prebuilt transaction decodes straight from the quote.
	tx, err := client.BuildSwapTransaction(context.Background(), quote, "Payer111")
	if err != nil {
		t.Fatalf("BuildSwapTransaction: %v", err)
	}
	if string(tx) != string(txBytes) {
		t.Errorf("unexpected transaction bytes %v", tx)
	}
}

func TestClient_QuoteRequiresFeePayer(t *testing.T) {
	client := NewClient(solanastub.NewRPCClient())

	_, err := client.Quote(context.Background(), venue.QuoteRequest{
		InputMint:  "MintA",
		OutputMint: domain.WrappedSOLMint,
		AmountRaw:  1,
	})
	if err == nil {
		t.Fatal("expected error without fee payer")
	}
}

func TestClient_QuoteRouterRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 40000,
			"msg":  "insufficient liquidity",
		})
	}))
	defer server.Close()

	client := NewClient(solanastub.NewRPCClient(), WithBaseURL(server.URL))

	_, err := client.Quote(context.Background(), venue.QuoteRequest{
		InputMint: "MintA", OutputMint: domain.WrappedSOLMint, AmountRaw: 1, UserPublicKey: "Payer111",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if venue.IsTransient(err) {
		t.Error("router rejection must not be classified transient")
	}
}

func TestClient_QuoteTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(solanastub.NewRPCClient(), WithBaseURL(server.URL))

	_, err := client.Quote(context.Background(), venue.QuoteRequest{
		InputMint: "MintA", OutputMint: domain.WrappedSOLMint, AmountRaw: 1, UserPublicKey: "Payer111",
	})
	if !venue.IsTransient(err) {
		t.Errorf("5xx must be classified transient, got %v", err)
	}
}

func TestClient_BuildSwapEmptyRoute(t *testing.T) {
	client := NewClient(solanastub.NewRPCClient())

	_, err := client.BuildSwapTransaction(context.Background(), &domain.SwapQuote{}, "Payer111")
	if err == nil {
		t.Fatal("expected error for empty route")
	}
}
