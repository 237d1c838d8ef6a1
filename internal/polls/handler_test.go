package polls

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gatherly/backend/internal/middleware"
	"github.com/gatherly/backend/internal/models"
	"github.com/gatherly/backend/pkg/response"
)

// newTestRouter wires the poll handler behind a stub auth middleware that
// injects the given user id, mirroring the JWT middleware contract.
func newTestRouter(h *Handler, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Next()
	})
	r.POST("/polls", h.Create)
	r.GET("/polls/:id", h.Get)
	r.POST("/polls/:id/finalize", h.Finalize)
	r.POST("/polls/:id/cancel", h.Cancel)
	r.POST("/polls/:id/reopen", h.Reopen)
	r.PUT("/polls/:id/vote", h.SubmitVote)
	r.GET("/polls/:id/vote", h.GetMyVote)
	r.DELETE("/polls/:id/vote", h.DeleteVote)
	r.GET("/polls/:id/results", h.Results)
	r.POST("/polls/:id/remind", h.Remind)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("decode data: %v (body: %s)", err, w.Body.String())
		}
	}
}

func TestHandlerCreateAndGet(t *testing.T) {
	e, _, _ := newTestEngine(t)
	creator := uuid.New()
	r := newTestRouter(NewHandler(e, nil, nil), creator)

	w := doJSON(t, r, http.MethodPost, "/polls", CreateRequest{
		Title:   "Game night",
		Options: []OptionRequest{{Label: "Fri"}, {Label: "Sat"}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d (body: %s)", w.Code, w.Body.String())
	}
	var created models.Poll
	decodeBody(t, w, &created)
	if created.ID == uuid.Nil || len(created.Options) != 2 {
		t.Fatalf("created poll malformed: %+v", created)
	}

	w = doJSON(t, r, http.MethodGet, "/polls/"+created.ID.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/polls/"+uuid.New().String(), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing poll status = %d, want 404", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/polls/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d, want 400", w.Code)
	}
}

func TestHandlerCreateValidation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	r := newTestRouter(NewHandler(e, nil, nil), uuid.New())

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing title", CreateRequest{Options: []OptionRequest{{Label: "Fri"}}}},
		{"missing options", map[string]string{"title": "Game night"}},
		{"bad visibility", map[string]interface{}{
			"title":      "Game night",
			"visibility": "secret",
			"options":    []map[string]string{{"label": "Fri"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doJSON(t, r, http.MethodPost, "/polls", tt.body); w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body: %s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestHandlerVoteFlow(t *testing.T) {
	e, _, _ := newTestEngine(t)
	creator := uuid.New()
	r := newTestRouter(NewHandler(e, nil, nil), creator)

	p := mustCreate(t, e, creator, CreateInput{Title: "A", Options: twoOptions()})
	base := "/polls/" + p.ID.String()

	// No vote yet.
	if w := doJSON(t, r, http.MethodGet, base+"/vote", nil); w.Code != http.StatusNotFound {
		t.Fatalf("empty vote status = %d, want 404", w.Code)
	}

	w := doJSON(t, r, http.MethodPut, base+"/vote", VoteRequest{
		AvailableOptionIDs: []uuid.UUID{p.Options[0].ID},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("vote status = %d (body: %s)", w.Code, w.Body.String())
	}

	// Foreign option id is a 400.
	w = doJSON(t, r, http.MethodPut, base+"/vote", VoteRequest{
		AvailableOptionIDs: []uuid.UUID{uuid.New()},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("foreign option status = %d, want 400", w.Code)
	}

	if w := doJSON(t, r, http.MethodGet, base+"/vote", nil); w.Code != http.StatusOK {
		t.Fatalf("get vote status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodDelete, base+"/vote", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete vote status = %d, want 204", w.Code)
	}
}

func TestHandlerLifecycleStatusCodes(t *testing.T) {
	e, _, _ := newTestEngine(t)
	creator := uuid.New()
	stranger := uuid.New()
	creatorRouter := newTestRouter(NewHandler(e, nil, nil), creator)
	strangerRouter := newTestRouter(NewHandler(e, nil, nil), stranger)

	p := mustCreate(t, e, creator, CreateInput{Title: "A", Options: twoOptions()})
	base := "/polls/" + p.ID.String()
	finalizeBody := map[string]string{"option_id": p.Options[0].ID.String()}

	// Stranger cannot even see the poll, let alone finalize it.
	if w := doJSON(t, strangerRouter, http.MethodGet, base, nil); w.Code != http.StatusForbidden {
		t.Fatalf("stranger get status = %d, want 403", w.Code)
	}
	if w := doJSON(t, strangerRouter, http.MethodPost, base+"/finalize", finalizeBody); w.Code != http.StatusForbidden {
		t.Fatalf("stranger finalize status = %d, want 403", w.Code)
	}

	if w := doJSON(t, creatorRouter, http.MethodPost, base+"/finalize", finalizeBody); w.Code != http.StatusOK {
		t.Fatalf("finalize status = %d (body: %s)", w.Code, w.Body.String())
	}
	// Repeat finalize conflicts.
	if w := doJSON(t, creatorRouter, http.MethodPost, base+"/finalize", finalizeBody); w.Code != http.StatusConflict {
		t.Fatalf("double finalize status = %d, want 409", w.Code)
	}
	// Cancelling a finalized poll conflicts.
	if w := doJSON(t, creatorRouter, http.MethodPost, base+"/cancel", nil); w.Code != http.StatusConflict {
		t.Fatalf("cancel finalized status = %d, want 409", w.Code)
	}
	// Reopen brings it back.
	if w := doJSON(t, creatorRouter, http.MethodPost, base+"/reopen", ReopenRequest{Days: 3}); w.Code != http.StatusOK {
		t.Fatalf("reopen status = %d (body: %s)", w.Code, w.Body.String())
	}
	// Out-of-bounds window is a 400.
	if w := doJSON(t, creatorRouter, http.MethodPost, base+"/cancel", nil); w.Code != http.StatusOK {
		t.Fatalf("cancel reopened status = %d, want 200", w.Code)
	}
	if w := doJSON(t, creatorRouter, http.MethodPost, base+"/reopen", ReopenRequest{Days: 61}); w.Code != http.StatusBadRequest {
		t.Fatalf("reopen 61 days status = %d, want 400", w.Code)
	}
}

func TestHandlerResults(t *testing.T) {
	e, _, _ := newTestEngine(t)
	creator := uuid.New()
	voter := uuid.New()
	r := newTestRouter(NewHandler(e, nil, nil), creator)

	p := mustCreate(t, e, creator, CreateInput{
		Title: "A", Options: twoOptions(), InviteeIDs: []uuid.UUID{voter},
	})
	if _, err := e.SubmitVote(context.Background(), p.ID, voter, VoteInput{
		AvailableOptionIDs: []uuid.UUID{p.Options[0].ID},
	}); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/polls/%s/results", p.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("results status = %d", w.Code)
	}
	var res Results
	decodeBody(t, w, &res)
	if res.TotalVoters != 1 {
		t.Errorf("total voters = %d, want 1", res.TotalVoters)
	}
	if res.WinningOptionID == nil || *res.WinningOptionID != p.Options[0].ID {
		t.Errorf("winner = %v, want %s", res.WinningOptionID, p.Options[0].ID)
	}
}

func TestHandlerRemindWithoutQueue(t *testing.T) {
	e, _, _ := newTestEngine(t)
	creator := uuid.New()
	r := newTestRouter(NewHandler(e, nil, nil), creator)

	p := mustCreate(t, e, creator, CreateInput{
		Title: "A", Options: twoOptions(), InviteeIDs: []uuid.UUID{uuid.New()},
	})
	w := doJSON(t, r, http.MethodPost, "/polls/"+p.ID.String()+"/remind", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("remind without queue status = %d, want 503 (body: %s)", w.Code, w.Body.String())
	}
	var body response.Body
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Success {
		t.Error("expected success=false")
	}
}
