package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/civic-report-backend/internal/domain"
)

func TestActor_ParsesHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name    string
		headers map[string]string
		want    domain.Actor
		dept    uint
	}{
		{"anonymous", nil, domain.Actor{Role: domain.RoleUser}, 0},
		{"citizen", map[string]string{HeaderUserID: " u1 "}, domain.Actor{UserID: "u1", Role: domain.RoleUser}, 0},
		{"staff", map[string]string{HeaderUserID: "s1", HeaderUserRole: "Staff", HeaderDepartmentID: "7"}, domain.Actor{UserID: "s1", Role: domain.RoleStaff}, 7},
		{"bad department ignored", map[string]string{HeaderUserID: "a1", HeaderUserRole: "admin", HeaderDepartmentID: "x"}, domain.Actor{UserID: "a1", Role: domain.RoleAdmin}, 0},
		{"unknown role", map[string]string{HeaderUserID: "u2", HeaderUserRole: "mayor"}, domain.Actor{UserID: "u2", Role: domain.RoleUser}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(Actor())
			var got domain.Actor
			var uid string
			r.GET("/", func(c *gin.Context) {
				got = ActorFrom(c)
				uid = userIDFromCtx(c)
				c.Status(http.StatusNoContent)
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			r.ServeHTTP(httptest.NewRecorder(), req)

			if got.UserID != tc.want.UserID || got.Role != tc.want.Role || uid != tc.want.UserID {
				t.Fatalf("got %+v (uid %q), want %+v", got, uid, tc.want)
			}
			switch {
			case tc.dept == 0 && got.DepartmentID != nil:
				t.Fatalf("unexpected department %d", *got.DepartmentID)
			case tc.dept != 0 && (got.DepartmentID == nil || *got.DepartmentID != tc.dept):
				t.Fatalf("department = %v, want %d", got.DepartmentID, tc.dept)
			}
		})
	}
}

func TestActorFrom_WithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if a := ActorFrom(c); a.Role != domain.RoleUser || a.UserID != "" {
		t.Fatalf("nil request: %+v", a)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "s9")
	req.Header.Set(HeaderUserRole, "staff")
	req.Header.Set(HeaderDepartmentID, "3")
	c.Request = req
	a := ActorFrom(c)
	if a.UserID != "s9" || !a.Role.IsStaff() || a.DepartmentID == nil || *a.DepartmentID != 3 {
		t.Fatalf("header fallback: %+v", a)
	}

	c.Set(ctxKeyActor, "not an actor")
	if a := ActorFrom(c); a.UserID != "s9" {
		t.Fatalf("wrong-type context value should fall back to headers: %+v", a)
	}
}
