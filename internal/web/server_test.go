package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/medrevise/reviewd/internal/catalog"
	"github.com/medrevise/reviewd/internal/domain"
	"github.com/medrevise/reviewd/internal/session"
	"github.com/medrevise/reviewd/internal/sm2"
	"github.com/medrevise/reviewd/internal/storage"
)

const testDay = "2026-03-01"

func newTestServer(t *testing.T, cards ...domain.Card) (*Server, *storage.DB) {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	sourceID, err := db.InsertSource(ctx, "test-deck", "local")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range cards {
		if err := db.InsertCard(ctx, c, sourceID); err != nil {
			t.Fatal(err)
		}
	}

	writer := session.NewWriter(db, 0, 0)
	t.Cleanup(writer.Close)
	manager := session.NewManager(sm2.DefaultParams(), writer, time.Hour)
	cat := catalog.New(db, t.TempDir())

	return NewServer(db, cat, manager, sm2.DefaultParams()), db
}

func testCards(n int) []domain.Card {
	var out []domain.Card
	for i := 0; i < n; i++ {
		out = append(out, domain.Card{
			ID:       fmt.Sprintf("card-%d", i),
			Question: fmt.Sprintf("question %d", i),
			Answer:   fmt.Sprintf("answer %d", i),
			Topic:    "cardiology",
		})
	}
	return out
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", rec.Code, body)
	}
}

func TestGetDueRequiresLearner(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doJSON(t, srv, http.MethodGet, "/due", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetDueNewCardsFirst(t *testing.T) {
	cards := testCards(3)
	srv, db := newTestServer(t, cards...)

	// card-0 has been graded and is due today; card-2 is not due yet.
	due := domain.Progress{
		Repetitions: 1, Easiness: 2.6, IntervalDays: 1,
		NextReview:     mustDate(t, testDay),
		LastReviewedAt: time.Now(),
	}
	notDue := due
	notDue.NextReview = mustDate(t, testDay).AddDate(0, 0, 5)
	ctx := context.Background()
	if err := db.UpsertProgress(ctx, "l1", "card-0", due); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertProgress(ctx, "l1", "card-2", notDue); err != nil {
		t.Fatal(err)
	}

	rec, body := doJSON(t, srv, http.MethodGet, "/due?learner_id=l1&today="+testDay, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %v", rec.Code, body)
	}
	raw := body["due"].([]any)
	var ids []string
	for _, v := range raw {
		ids = append(ids, v.(string))
	}
	// card-1 is new, so it sorts before the graded-but-due card-0.
	want := []string{"card-1", "card-0"}
	if len(ids) != len(want) {
		t.Fatalf("due = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("due = %v, want %v", ids, want)
		}
	}
}

func TestGetDueByExplicitIDs(t *testing.T) {
	cards := testCards(2)
	srv, _ := newTestServer(t, cards...)

	rec, body := doJSON(t, srv, http.MethodGet, "/due?learner_id=l1&card_ids=card-1,unknown&today="+testDay, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	raw := body["due"].([]any)
	if len(raw) != 1 || raw[0] != "card-1" {
		t.Errorf("due = %v, want [card-1]", raw)
	}
}

func TestPostGradeNewCard(t *testing.T) {
	srv, _ := newTestServer(t, testCards(1)...)

	q := 5
	rec, body := doJSON(t, srv, http.MethodPost, "/grade", map[string]any{
		"learner_id": "l1",
		"card_id":    "card-0",
		"quality":    q,
		"today":      testDay,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %v", rec.Code, body)
	}
	if body["saved"] != true {
		t.Error("saved should be true")
	}
	prog := body["progress"].(map[string]any)
	if prog["repetitions"].(float64) != 1 {
		t.Errorf("repetitions = %v, want 1", prog["repetitions"])
	}
	if prog["interval_days"].(float64) != 1 {
		t.Errorf("interval_days = %v, want 1", prog["interval_days"])
	}
	if prog["next_review_date"] != "2026-03-02" {
		t.Errorf("next_review_date = %v, want 2026-03-02", prog["next_review_date"])
	}
	if e := prog["easiness"].(float64); e < 2.59 || e > 2.61 {
		t.Errorf("easiness = %v, want 2.6", e)
	}
}

func TestPostGradePersists(t *testing.T) {
	srv, db := newTestServer(t, testCards(1)...)

	doJSON(t, srv, http.MethodPost, "/grade", map[string]any{
		"learner_id": "l1", "card_id": "card-0", "quality": 4, "today": testDay,
	})
	state, err := db.GetProgress(context.Background(), "l1", "card-0")
	if err != nil || !state.Tracked {
		t.Fatalf("progress not persisted: %v %v", state, err)
	}
	if state.Progress.LastQuality != domain.CorrectHesitant {
		t.Errorf("LastQuality = %v, want 4", state.Progress.LastQuality)
	}
}

func TestPostGradeValidation(t *testing.T) {
	srv, _ := newTestServer(t, testCards(1)...)

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"quality too high", map[string]any{"learner_id": "l1", "card_id": "card-0", "quality": 6}, http.StatusBadRequest},
		{"quality negative", map[string]any{"learner_id": "l1", "card_id": "card-0", "quality": -1}, http.StatusBadRequest},
		{"quality missing", map[string]any{"learner_id": "l1", "card_id": "card-0"}, http.StatusBadRequest},
		{"learner missing", map[string]any{"card_id": "card-0", "quality": 3}, http.StatusBadRequest},
		{"unknown card", map[string]any{"learner_id": "l1", "card_id": "nope", "quality": 3}, http.StatusNotFound},
		{"bad date", map[string]any{"learner_id": "l1", "card_id": "card-0", "quality": 3, "today": "03/01/2026"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := doJSON(t, srv, http.MethodPost, "/grade", tc.body)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, testCards(2)...)

	rec, body := doJSON(t, srv, http.MethodPost, "/sessions", map[string]any{
		"learner_id": "l1",
		"today":      testDay,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start: status = %d: %v", rec.Code, body)
	}
	id := body["session_id"].(string)
	if body["phase"] != "presenting" {
		t.Fatalf("phase = %v, want presenting", body["phase"])
	}
	if body["total"].(float64) != 2 {
		t.Fatalf("total = %v, want 2", body["total"])
	}
	card := body["card"].(map[string]any)
	if _, ok := card["answer"]; ok {
		t.Error("answer must be hidden while presenting")
	}

	// Grading before reveal is a state error.
	rec, _ = doJSON(t, srv, http.MethodPost, "/sessions/"+id+"/grade", map[string]any{"quality": 5, "today": testDay})
	if rec.Code != http.StatusConflict {
		t.Errorf("grade before reveal: status = %d, want 409", rec.Code)
	}

	// Reveal, then grade both cards.
	rec, body = doJSON(t, srv, http.MethodPost, "/sessions/"+id+"/reveal", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reveal: status = %d", rec.Code)
	}
	if body["phase"] != "revealed" {
		t.Errorf("phase = %v, want revealed", body["phase"])
	}
	card = body["card"].(map[string]any)
	if card["answer"] == "" {
		t.Error("answer must be shown after reveal")
	}

	rec, body = doJSON(t, srv, http.MethodPost, "/sessions/"+id+"/grade", map[string]any{"quality": 5, "today": testDay})
	if rec.Code != http.StatusOK {
		t.Fatalf("grade 1: status = %d: %v", rec.Code, body)
	}

	doJSON(t, srv, http.MethodPost, "/sessions/"+id+"/reveal", nil)
	rec, body = doJSON(t, srv, http.MethodPost, "/sessions/"+id+"/grade", map[string]any{"quality": 1, "today": testDay})
	if rec.Code != http.StatusOK {
		t.Fatalf("grade 2: status = %d: %v", rec.Code, body)
	}

	view := body["session"].(map[string]any)
	if view["phase"] != "complete" {
		t.Fatalf("phase = %v, want complete", view["phase"])
	}
	sum := view["summary"].(map[string]any)
	if sum["reviewed"].(float64) != 2 || sum["correct"].(float64) != 1 {
		t.Errorf("summary = %v, want reviewed 2 correct 1", sum)
	}
	if sum["accuracy"].(float64) != 0.5 {
		t.Errorf("accuracy = %v, want 0.5", sum["accuracy"])
	}

	// Grading past the end is a conflict.
	rec, _ = doJSON(t, srv, http.MethodPost, "/sessions/"+id+"/reveal", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("reveal after complete: status = %d, want 409", rec.Code)
	}
}

func TestEmptySessionCompletesImmediately(t *testing.T) {
	srv, _ := newTestServer(t) // no cards at all

	rec, body := doJSON(t, srv, http.MethodPost, "/sessions", map[string]any{
		"learner_id": "l1",
		"today":      testDay,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %v", rec.Code, body)
	}
	if body["phase"] != "complete" {
		t.Errorf("phase = %v, want complete", body["phase"])
	}
	sum := body["summary"].(map[string]any)
	if sum["reviewed"].(float64) != 0 || sum["accuracy"].(float64) != 0 {
		t.Errorf("summary = %v, want zeroes", sum)
	}
}

func TestUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doJSON(t, srv, http.MethodGet, "/sessions/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
