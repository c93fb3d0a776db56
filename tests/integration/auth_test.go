package integration

import (
	"net/http"
	"testing"
)

func TestRegisterLoginFlow(t *testing.T) {
	app := setupApp(t)

	t.Run("register issues a usable token", func(t *testing.T) {
		token, _ := app.registerUser(t, "alice@example.com", "password123")

		rec := app.request("GET", "/api/v1/profile", "", token)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		user := result["user"].(map[string]interface{})
		if user["email"] != "alice@example.com" {
			t.Errorf("expected alice@example.com, got %v", user["email"])
		}
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/auth/register",
			`{"email":"alice@example.com","password":"password123"}`, "")
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("login with correct credentials", func(t *testing.T) {
		token := app.loginUser(t, "alice@example.com", "password123")
		if token == "" {
			t.Fatal("expected a token")
		}
	})

	t.Run("login with wrong password fails", func(t *testing.T) {
		rec := app.request("POST", "/api/v1/auth/login",
			`{"email":"alice@example.com","password":"wrongpassword"}`, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("protected route without token fails", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/profile", "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("protected route with garbage token fails", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/profile", "", "not-a-jwt")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}
