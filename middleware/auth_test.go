package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tourly/models"
	"tourly/utils"
)

func actorRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", ActorMiddleware(), func(c *gin.Context) {
		v, _ := c.Get(ActorKey)
		c.JSON(http.StatusOK, v)
	})
	return r
}

func TestActorMiddlewareAcceptsValidToken(t *testing.T) {
	r := actorRouter()

	token, err := utils.GenerateToken("user-1", models.RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", w.Code, w.Body.String())
	}
	var actor models.Actor
	if err := json.Unmarshal(w.Body.Bytes(), &actor); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if actor.ID != "user-1" || actor.Role != models.RoleUser {
		t.Errorf("got actor %+v, want user-1/user", actor)
	}
}

func TestActorMiddlewareRejections(t *testing.T) {
	r := actorRouter()

	expired, err := utils.GenerateToken("user-1", models.RoleUser, -time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	badRole, err := utils.GenerateToken("user-1", models.Role("ghost"), time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer token", "Basic abc"},
		{"garbage token", "Bearer not-a-token"},
		{"expired token", "Bearer " + expired},
		{"unknown role", "Bearer " + badRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("got status %d, want 401", w.Code)
			}
		})
	}
}
