package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/auth"
	"github.com/daygraph/daygraph/internal/middleware"
	"github.com/daygraph/daygraph/internal/remote"
	"github.com/daygraph/daygraph/internal/session"
)

const testOwner = "owner-1"

func newSessions() *session.Manager {
	return session.NewManager(remote.NewMemoryStore(), zap.NewNop(), nil)
}

// nodeRouter mounts the node handler the way the server does.
func nodeRouter(sessions *session.Manager) *mux.Router {
	r := mux.NewRouter()
	NewNodeHandler(sessions).RegisterRoutes(r.PathPrefix("/nodes").Subrouter())
	return r
}

func timeboxRouter(sessions *session.Manager, h *TimeboxHandler) *mux.Router {
	r := mux.NewRouter()
	if h == nil {
		h = NewTimeboxHandler(sessions, nil, "", zap.NewNop())
	}
	h.RegisterRoutes(r.PathPrefix("/timebox/{date}").Subrouter())
	return r
}

func viewRouter(sessions *session.Manager) *mux.Router {
	r := mux.NewRouter()
	NewViewHandler(sessions).RegisterRoutes(r.PathPrefix("/views").Subrouter())
	return r
}

// request builds an authenticated JSON request. A nil body sends no payload;
// owner "" leaves the request unauthenticated.
func request(t *testing.T, method, target string, body any, owner string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		ctx := middleware.WithIdentity(req.Context(), &auth.Identity{OwnerID: owner, Name: "Test Owner"})
		req = req.WithContext(ctx)
	}
	return req
}

// envelope is the standard response wrapper.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	Timestamp string          `json:"timestamp"`
}

func do(t *testing.T, router http.Handler, req *http.Request) (int, envelope) {
	t.Helper()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %q: %v", string(env.Data), err)
	}
}
