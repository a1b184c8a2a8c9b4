package http

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"tripsplit/internal/core"
	"tripsplit/internal/log"
)

var templateFuncs = template.FuncMap{
	"money": func(m core.Money, c core.Currency) string {
		return c.Symbol + m.String()
	},
	"signed": func(m core.Money) string {
		if m.Cents > 0 {
			return "+" + m.String()
		}
		return m.String()
	},
	"date": func(e core.Expense) string {
		return e.CreatedAt.Format("2006-01-02 15:04")
	},
}

func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	trips, err := s.trips.ListTrips(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "index.html", struct{ Trips []core.Trip }{trips})
}

// handleTripPage renders members, expenses, balances and who owes whom.
func (s *Server) handleTripPage(w http.ResponseWriter, r *http.Request) {
	sum, err := s.trips.Summary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "trip.html", sum)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err, "template", name)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := rootCause(err).Error()
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "Page failed", log.FieldError, err, log.FieldPath, r.URL.Path)
		msg = "something went wrong"
	}
	s.render(w, r, status, "error.html", struct {
		Status  int
		Message string
	}{status, msg})
}
