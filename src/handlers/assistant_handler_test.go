package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/entrans/backend/src/services"
)

type stubAssistantService struct {
	lastSystemPrompt string
	lastMessages     []services.AssistantMessage
	reply            string
	err              error
}

func (s *stubAssistantService) Complete(_ context.Context, systemPrompt string, messages []services.AssistantMessage) (string, error) {
	s.lastSystemPrompt = systemPrompt
	s.lastMessages = messages
	return s.reply, s.err
}

func TestHandleQuote(t *testing.T) {
	stub := &stubAssistantService{reply: "Roughly 400-500 EUR. What is the exact pickup date?"}
	handler := NewAssistantHandler(stub)

	body := strings.NewReader(`{"message": "Pallet of machine parts, Madrid to Lyon, 600 kg"}`)
	req := httptest.NewRequest("POST", "/api/assistant/quote", body)
	rr := httptest.NewRecorder()
	handler.HandleQuote(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d, body: %s", rr.Code, rr.Body.String())
	}
	var got map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got["reply"] != stub.reply {
		t.Errorf("expected reply %q, got %q", stub.reply, got["reply"])
	}
	if stub.lastSystemPrompt != quotePrompt {
		t.Errorf("quote endpoint used wrong system prompt: %q", stub.lastSystemPrompt)
	}
	if len(stub.lastMessages) != 1 || stub.lastMessages[0].Role != "user" {
		t.Errorf("unexpected relayed messages: %+v", stub.lastMessages)
	}
}

func TestHandleSupport_RelaysHistory(t *testing.T) {
	stub := &stubAssistantService{reply: "Your shipment is in transit."}
	handler := NewAssistantHandler(stub)

	body := strings.NewReader(`{
		"message": "And when will it arrive?",
		"history": [
			{"role": "user", "content": "Where is my shipment?"},
			{"role": "assistant", "content": "It left the warehouse this morning."}
		]
	}`)
	req := httptest.NewRequest("POST", "/api/assistant/support", body)
	rr := httptest.NewRecorder()
	handler.HandleSupport(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if stub.lastSystemPrompt != supportPrompt {
		t.Errorf("support endpoint used wrong system prompt: %q", stub.lastSystemPrompt)
	}
	if len(stub.lastMessages) != 3 {
		t.Fatalf("expected 3 relayed messages, got %d", len(stub.lastMessages))
	}
	if stub.lastMessages[2].Content != "And when will it arrive?" {
		t.Errorf("new message must come last, got %+v", stub.lastMessages[2])
	}
}

func TestHandleAssistant_MissingMessage(t *testing.T) {
	handler := NewAssistantHandler(&stubAssistantService{})
	req := httptest.NewRequest("POST", "/api/assistant/quote", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	handler.HandleQuote(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for empty message, got %d", rr.Code)
	}
}

func TestHandleAssistant_Unconfigured(t *testing.T) {
	handler := NewAssistantHandler(&stubAssistantService{err: services.ErrAssistantUnavailable})
	req := httptest.NewRequest("POST", "/api/assistant/support", strings.NewReader(`{"message": "hello"}`))
	rr := httptest.NewRecorder()
	handler.HandleSupport(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 when assistant is not configured, got %d", rr.Code)
	}
}
