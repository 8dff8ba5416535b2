package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-assess/internal/auth/middleware"
	"github.com/mind-engage/mindengage-assess/internal/rbac"
	"github.com/mind-engage/mindengage-assess/internal/session"
	"github.com/mind-engage/mindengage-assess/internal/testdef"
)

type Deps struct {
	Auth        *authmw.AuthService
	Tests       *testdef.Service
	Sessions    *session.Manager
	IdleSession time.Duration
	Now         func() time.Time
}

// Mount registers the protected API (JWT, then role checks per route).
func Mount(r chi.Router, d Deps) {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))

		pr.Route("/tests", func(tr chi.Router) {
			tr.With(rbac.Require("test:create")).Post("/", CreateTestHandler(d.Tests))
			tr.With(rbac.Require("test:view")).Get("/", ListTestsHandler(d.Tests))
			tr.With(rbac.Require("test:view")).Get("/{testID}", GetTestHandler(d.Tests))
			tr.With(rbac.Require("test:update")).Put("/{testID}", UpdateTestHandler(d.Tests))
			tr.With(rbac.Require("test:validate")).Post("/{testID}/validate", ValidateTestHandler(d.Tests))
			tr.With(rbac.Require("test:publish")).Post("/{testID}/publish", PublishTestHandler(d.Tests))
			tr.With(rbac.Require("test:archive")).Post("/{testID}/archive", ArchiveTestHandler(d.Tests))
			tr.With(rbac.Require("session:start")).Post("/{testID}/sessions", StartSessionHandler(d.Sessions))
		})

		pr.Route("/sessions/{sessionID}", func(sr chi.Router) {
			sr.Use(rbac.RequireAny("session:view-own", "session:view-all"))
			sr.Get("/", GetSessionHandler(d.Sessions))
			sr.With(rbac.Require("session:answer")).Post("/answers", RecordAnswerHandler(d.Sessions))
			sr.With(rbac.Require("session:complete")).Post("/complete", CompleteSessionHandler(d.Sessions))
			sr.Get("/results", ResultsHandler(d.Sessions))
		})

		pr.Route("/admin/sessions", func(ar chi.Router) {
			ar.Use(rbac.Require("session:admin"))
			ar.Post("/{sessionID}/abandon", AbandonSessionHandler(d.Sessions))
			ar.Post("/sweep", SweepHandler(d.Sessions, d.IdleSession, now))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
}
