package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-assess/internal/apperr"
	authmw "github.com/mind-engage/mindengage-assess/internal/auth/middleware"
	"github.com/mind-engage/mindengage-assess/internal/rbac"
	"github.com/mind-engage/mindengage-assess/internal/session"
)

// POST /tests/{testID}/sessions; the candidate is the token subject.
func StartSessionHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		s, err := mgr.Start(r.Context(), chi.URLParam(r, "testID"), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, s.Public())
	}
}

func GetSessionHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownedSession(w, r, mgr)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, s.Public())
	}
}

// POST /sessions/{sessionID}/answers
//
//	{ "question_id": "...", "answer": <json>, "time_spent_seconds": 30, "hints_used": 0 }
func RecordAnswerHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in session.AnswerInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, err)
			return
		}
		s, ok := ownedSession(w, r, mgr)
		if !ok {
			return
		}
		in.SessionID = s.ID
		out, err := mgr.RecordAnswer(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out.Public())
	}
}

func CompleteSessionHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownedSession(w, r, mgr)
		if !ok {
			return
		}
		out, err := mgr.Complete(r.Context(), s.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out.Public())
	}
}

func ResultsHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownedSession(w, r, mgr)
		if !ok {
			return
		}
		out, err := mgr.Results(r.Context(), s.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /admin/sessions/{sessionID}/abandon
func AbandonSessionHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := mgr.Abandon(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out.Public())
	}
}

// POST /admin/sessions/sweep?idle_minutes=120
// idle_minutes=0 only expires overdue sessions.
func SweepHandler(mgr *session.Manager, defaultIdle time.Duration, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idle := defaultIdle
		if m := parseIntDefault(r.URL.Query().Get("idle_minutes"), -1); m >= 0 {
			idle = time.Duration(m) * time.Minute
		}
		res, err := mgr.SweepIdle(r.Context(), session.IdleCutoff(now(), idle))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// ownedSession loads the session named in the URL and checks that the
// caller owns it or may view every session. Others get a 404 so session
// ids do not leak.
func ownedSession(w http.ResponseWriter, r *http.Request, mgr *session.Manager) (session.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	s, err := mgr.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return session.Session{}, false
	}
	if s.UserID != authmw.SubjectFromContext(r.Context()) && !rbac.Allowed(r, "session:view-all") {
		writeError(w, apperr.NotFound("session", id))
		return session.Session{}, false
	}
	return s, true
}
