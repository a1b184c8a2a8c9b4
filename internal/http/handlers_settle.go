package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"tripsplit/internal/core"
	"tripsplit/internal/settle"
)

type settleRequest struct {
	Members  []string         `json:"members"`
	Expenses []settle.Expense `json:"expenses"`
	Currency string           `json:"currency"`
}

// handleSettle runs the calculator on the posted members and expenses
// without storing anything.
func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if !core.IsValidation(err) {
			err = fmt.Errorf("%w: invalid JSON body", errMalformed)
		}
		writeServiceError(w, r, "settle", err)
		return
	}
	if err := settle.CheckExpenses(req.Expenses); err != nil {
		writeServiceError(w, r, "settle", err)
		return
	}

	currency := core.DefaultCurrency
	if req.Currency != "" {
		c, ok := core.LookupCurrency(req.Currency)
		if !ok {
			writeServiceError(w, r, "settle", core.ErrUnknownCurrency)
			return
		}
		currency = c
	}

	members := make([]string, 0, len(req.Members))
	for _, m := range req.Members {
		if m = core.NormalizeName(m); m != "" {
			members = append(members, m)
		}
	}

	result := s.trips.Calculate(req.Expenses, members)
	NewJSONResponse().Body(toResultDTO(result, currency)).Write(w)
}

func (s *Server) handleSettlements(w http.ResponseWriter, r *http.Request) {
	sum, err := s.trips.Summary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, "settlements", err)
		return
	}
	NewJSONResponse().Body(toSummaryDTO(sum)).Write(w)
}
