package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type stubEmailService struct {
	contactFrom    string
	contactName    string
	contactMessage string
	offerTo        string
	offerReference string
	failSend       bool
}

func (s *stubEmailService) SendVerificationEmail(_, _, _ string) error  { return nil }
func (s *stubEmailService) SendPasswordResetEmail(_, _, _ string) error { return nil }

func (s *stubEmailService) SendOfferNotification(toEmail, reference string, _ float64, _ string) error {
	s.offerTo = toEmail
	s.offerReference = reference
	return nil
}

func (s *stubEmailService) SendContactMessage(fromEmail, name, message string) error {
	if s.failSend {
		return errors.New("smtp unreachable")
	}
	s.contactFrom = fromEmail
	s.contactName = name
	s.contactMessage = message
	return nil
}

func TestHandleContact(t *testing.T) {
	stub := &stubEmailService{}
	handler := NewContactHandler(stub)

	body := strings.NewReader(`{"name": "Ana", "email": "ana@example.com", "message": "Do you ship to Portugal?"}`)
	req := httptest.NewRequest("POST", "/api/contact", body)
	rr := httptest.NewRecorder()
	handler.HandleContact(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d, body: %s", rr.Code, rr.Body.String())
	}
	if stub.contactFrom != "ana@example.com" || stub.contactName != "Ana" {
		t.Errorf("contact message not forwarded: %+v", stub)
	}
}

func TestHandleContact_InvalidEmail(t *testing.T) {
	handler := NewContactHandler(&stubEmailService{})
	body := strings.NewReader(`{"name": "Ana", "email": "not-an-email", "message": "hola"}`)
	rr := httptest.NewRecorder()
	handler.HandleContact(rr, httptest.NewRequest("POST", "/api/contact", body))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for invalid email, got %d", rr.Code)
	}
}

func TestHandleContact_MissingFields(t *testing.T) {
	handler := NewContactHandler(&stubEmailService{})
	body := strings.NewReader(`{"email": "ana@example.com"}`)
	rr := httptest.NewRecorder()
	handler.HandleContact(rr, httptest.NewRequest("POST", "/api/contact", body))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for missing name and message, got %d", rr.Code)
	}
}

func TestHandleContact_SendFailure(t *testing.T) {
	handler := NewContactHandler(&stubEmailService{failSend: true})
	body := strings.NewReader(`{"name": "Ana", "email": "ana@example.com", "message": "hola"}`)
	rr := httptest.NewRecorder()
	handler.HandleContact(rr, httptest.NewRequest("POST", "/api/contact", body))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500 when mail delivery fails, got %d", rr.Code)
	}
}
