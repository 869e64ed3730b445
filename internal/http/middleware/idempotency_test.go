package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type lookupCall struct {
	user string
	conv uint
	key  string
}

type idemSeen struct {
	key    string
	replay bool
	bypass bool
}

func newIdemRouter(lookup IdempotencyLookup, opts IdempotencyOptions) (*gin.Engine, *idemSeen) {
	gin.SetMode(gin.TestMode)
	seen := &idemSeen{}
	r := gin.New()
	r.Use(Actor(), IdempotencyValidator(opts, lookup))
	h := func(c *gin.Context) {
		seen.key, _ = GetIdempotencyKey(c)
		seen.replay = IsReplay(c)
		seen.bypass = IsRateBypass(c)
		c.Status(http.StatusCreated)
	}
	r.POST("/conversations/:id/messages", h)
	r.POST("/reports", h)
	return r, seen
}

func post(r http.Handler, path, user, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyValidator_NoHeader(t *testing.T) {
	called := false
	r, seen := newIdemRouter(func(context.Context, string, uint, string, time.Time) (bool, error) {
		called = true
		return true, nil
	}, IdempotencyOptions{})

	if w := post(r, "/conversations/1/messages", "u1", ""); w.Code != http.StatusCreated {
		t.Fatalf("status %d", w.Code)
	}
	if called || seen.key != "" || seen.replay {
		t.Fatalf("no header should be a no-op: called=%v seen=%+v", called, seen)
	}
}

func TestIdempotencyValidator_RejectsInvalidKeys(t *testing.T) {
	r, _ := newIdemRouter(nil, IdempotencyOptions{MaxLen: 8})

	for _, key := range []string{"has space", "toolongkey", "bad/slash"} {
		w := post(r, "/conversations/1/messages", "u1", key)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("key %q: status %d", key, w.Code)
		}
		var body map[string]string
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body["code"] != "bad_idempotency_key" {
			t.Fatalf("key %q: body %v", key, body)
		}
	}

	strict, _ := newIdemRouter(nil, IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)})
	if w := post(strict, "/conversations/1/messages", "u1", "abc"); w.Code != http.StatusBadRequest {
		t.Fatalf("custom pattern not applied: %d", w.Code)
	}
	if w := post(strict, "/conversations/1/messages", "u1", "123"); w.Code != http.StatusCreated {
		t.Fatalf("custom pattern rejected valid key: %d", w.Code)
	}
}

func TestIdempotencyValidator_LookupMarksReplay(t *testing.T) {
	var calls []lookupCall
	r, seen := newIdemRouter(func(_ context.Context, user string, conv uint, key string, now time.Time) (bool, error) {
		if now.IsZero() {
			t.Errorf("lookup got zero time")
		}
		calls = append(calls, lookupCall{user, conv, key})
		return key == "done-1", nil
	}, IdempotencyOptions{})

	post(r, "/conversations/42/messages", "u1", "fresh-1")
	if seen.key != "fresh-1" || seen.replay || seen.bypass {
		t.Fatalf("fresh key: %+v", seen)
	}

	post(r, "/conversations/42/messages", "u1", "done-1")
	if !seen.replay || !seen.bypass {
		t.Fatalf("completed key should be a replay: %+v", seen)
	}

	want := []lookupCall{{"u1", 42, "fresh-1"}, {"u1", 42, "done-1"}}
	if len(calls) != len(want) {
		t.Fatalf("calls %+v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestIdempotencyValidator_LookupSkipped(t *testing.T) {
	called := 0
	r, seen := newIdemRouter(func(context.Context, string, uint, string, time.Time) (bool, error) {
		called++
		return true, nil
	}, IdempotencyOptions{})

	// No conversation id in the route.
	post(r, "/reports", "u1", "k-1")
	// Anonymous caller.
	post(r, "/conversations/5/messages", "", "k-2")
	// Non-numeric id.
	post(r, "/conversations/abc/messages", "u1", "k-3")

	if called != 0 {
		t.Fatalf("lookup should be skipped, called %d times", called)
	}
	if seen.key != "k-3" || seen.replay {
		t.Fatalf("key still validated and stashed: %+v", seen)
	}
}

func TestIdempotencyContextAccessors_WrongTypes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(ctxKeyIdemKey, 123)
	c.Set(ctxKeyIdemReplay, "yes")
	c.Set(ctxKeyRateBypass, 1)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key should be absent")
	}
	if IsReplay(c) || IsRateBypass(c) {
		t.Fatalf("non-bool flags should read as false")
	}
}
