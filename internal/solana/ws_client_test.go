package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// echoSubServer answers signatureSubscribe requests with a confirmation and
// hands each connection to handle for anything further.
func echoSubServer(t *testing.T, handle func(conn *websocket.Conn, req wsRequest, subID int64)) *httptest.Server {
	t.Helper()

	var nextSub int64

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var req wsRequest
			if err := json.Unmarshal(message, &req); err != nil {
				continue
			}
			if req.Method != "signatureSubscribe" {
				continue
			}

			nextSub++
			subID := nextSub

			conn.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result":  subID,
			})

			if handle != nil {
				handle(conn, req, subID)
			}
		}
	}))
}

func TestWSClient_Connect(t *testing.T) {
	server := echoSubServer(t, nil)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestWSClient_ConnectFailure(t *testing.T) {
	_, err := NewWSClient(context.Background(), "ws://127.0.0.1:1", nil)
	if err == nil {
		t.Fatal("expected dial error")
	}
}

func TestWSClient_SubscribeSignature(t *testing.T) {
	server := echoSubServer(t, func(conn *websocket.Conn, req wsRequest, subID int64) {
		conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "signatureNotification",
			"params": map[string]interface{}{
				"subscription": subID,
				"result": map[string]interface{}{
					"context": map[string]interface{}{"slot": 4242},
					"value":   map[string]interface{}{"err": nil},
				},
			},
		})
	})
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeSignature(context.Background(), "sigA")
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}

	select {
	case notif, ok := <-ch:
		if !ok {
			t.Fatal("channel closed without notification")
		}
		if notif.Signature != "sigA" {
			t.Errorf("expected signature sigA, got %s", notif.Signature)
		}
		if notif.Slot != 4242 {
			t.Errorf("expected slot 4242, got %d", notif.Slot)
		}
		if notif.Err != nil {
			t.Errorf("expected nil err, got %v", notif.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification")
	}

	// One-shot: the channel is closed after delivery.
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel closed after first notification")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after notification")
	}
}

func TestWSClient_SubscribeSignature_OnChainFailure(t *testing.T) {
	server := echoSubServer(t, func(conn *websocket.Conn, req wsRequest, subID int64) {
		conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "signatureNotification",
			"params": map[string]interface{}{
				"subscription": subID,
				"result": map[string]interface{}{
					"context": map[string]interface{}{"slot": 100},
					"value": map[string]interface{}{
						"err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
					},
				},
			},
		})
	})
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeSignature(context.Background(), "sigFail")
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Err == nil {
			t.Error("expected on-chain error in notification")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestWSClient_SubscribeTimeout(t *testing.T) {
	// Server never confirms the subscription.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	cfg := DefaultWSConfig()
	cfg.SubscribeTimeout = 50 * time.Millisecond

	client, err := NewWSClient(context.Background(), wsURL(server), &cfg)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	_, err = client.SubscribeSignature(context.Background(), "sigA")
	if err == nil {
		t.Fatal("expected subscription timeout")
	}
}

func TestWSClient_DisconnectClosesWaiters(t *testing.T) {
	dropped := make(chan struct{})

	server := echoSubServer(t, func(conn *websocket.Conn, req wsRequest, subID int64) {
		// Drop the connection after confirming, before notifying. The small
		// delay lets the client register its waiter first.
		time.Sleep(100 * time.Millisecond)
		conn.Close()
		close(dropped)
	})
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeSignature(context.Background(), "sigA")
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}

	<-dropped

	// The waiter channel must close without a notification so callers can
	// fall back to RPC polling.
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected bare close, got a notification")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter channel not closed after disconnect")
	}
}

func TestWSClient_SubscribeAfterClose(t *testing.T) {
	server := echoSubServer(t, nil)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	client.Close()

	if _, err := client.SubscribeSignature(context.Background(), "sigA"); err == nil {
		t.Fatal("expected error subscribing on closed client")
	}
}

func TestWSClient_CloseIdempotent(t *testing.T) {
	server := echoSubServer(t, nil)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
