package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func ipContext(t *testing.T) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	return c
}

func TestGetClientIP(t *testing.T) {
	c := ipContext(t)
	c.Request.RemoteAddr = "10.0.0.1:52314"
	if ip := getClientIP(c); ip != "10.0.0.1" {
		t.Errorf("remote addr: got %q, want 10.0.0.1", ip)
	}

	c.Request.Header.Set("X-Real-IP", "198.51.100.4")
	if ip := getClientIP(c); ip != "198.51.100.4" {
		t.Errorf("x-real-ip: got %q, want 198.51.100.4", ip)
	}

	c.Request.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if ip := getClientIP(c); ip != "203.0.113.7" {
		t.Errorf("x-forwarded-for: got %q, want the first hop", ip)
	}
}
