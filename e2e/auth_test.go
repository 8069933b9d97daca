package e2e

import (
	"fmt"
	"net/http"
	"testing"
)

func TestLogin_Success(t *testing.T) {
	ta := setupApp(t)

	body := fmt.Sprintf(`{"username": "%s", "password": "%s"}`, testUsername, testPassword)
	resp, err := doRequest(ta.app, http.MethodPost, "/api/auth/login", body, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["success"] != true {
		t.Error("expected success true")
	}
	if result["token"] == nil || result["token"] == "" {
		t.Error("expected token in response")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	ta := setupApp(t)

	body := fmt.Sprintf(`{"username": "%s", "password": "wrong"}`, testUsername)
	resp, err := doRequest(ta.app, http.MethodPost, "/api/auth/login", body, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestLogin_MissingFields(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/auth/login", `{"username": "admin"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestProtectedRoute_NoToken(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/pipelines", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestProtectedRoute_TokenInQuery(t *testing.T) {
	ta := setupApp(t)

	token := generateToken(t)
	resp, err := doRequest(ta.app, http.MethodGet, "/api/pipelines?token="+token, "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)
}

func TestProtectedRoute_BadToken(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/pipelines", "", map[string]string{
		"Authorization": "Bearer not-a-real-token",
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}
