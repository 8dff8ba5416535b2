package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-assess/internal/testdef"
)

// POST /tests
func CreateTestHandler(svc *testdef.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t testdef.TestDefinition
		if err := decodeJSON(r, &t); err != nil {
			writeError(w, err)
			return
		}
		out, err := svc.Create(r.Context(), t)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

// GET /tests?status=published&limit=50&offset=0
func ListTestsHandler(svc *testdef.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		list, err := svc.List(r.Context(), testdef.ListOpts{
			Status: testdef.Status(q.Get("status")),
			Limit:  parseIntDefault(q.Get("limit"), 50),
			Offset: parseIntDefault(q.Get("offset"), 0),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		if list == nil {
			list = []testdef.Summary{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func GetTestHandler(svc *testdef.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := svc.Get(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func UpdateTestHandler(svc *testdef.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t testdef.TestDefinition
		if err := decodeJSON(r, &t); err != nil {
			writeError(w, err)
			return
		}
		out, err := svc.Update(r.Context(), chi.URLParam(r, "testID"), t)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /tests/{testID}/validate
func ValidateTestHandler(svc *testdef.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.ValidateSections(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func PublishTestHandler(svc *testdef.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, res, err := svc.Publish(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"test": t, "validation": res})
	}
}

func ArchiveTestHandler(svc *testdef.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := svc.Archive(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}
