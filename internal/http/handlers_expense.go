package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// handleAddExpense accepts payer (or payer_name), amount (or amount_eur)
// and an optional note, as JSON or as a form.
func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeServiceError(w, r, "add_expense", err)
		return
	}

	amount, err := p.Amount()
	if err != nil {
		writeServiceError(w, r, "add_expense", err)
		return
	}

	e, err := s.trips.AddExpense(r.Context(), mux.Vars(r)["id"], p.Get("payer", "payer_name"), amount, p.Get("note"))
	if err != nil {
		writeServiceError(w, r, "add_expense", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toExpenseDTO(e)).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.trips.ListExpenses(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, "list_expenses", err)
		return
	}
	NewJSONResponse().Body(toExpenseDTOs(expenses)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["expenseID"], 10, 64)
	if err != nil || id <= 0 {
		writeServiceError(w, r, "delete_expense", fmt.Errorf("%w: invalid expense id", errMalformed))
		return
	}
	if err := s.trips.DeleteExpense(r.Context(), vars["id"], id); err != nil {
		writeServiceError(w, r, "delete_expense", err)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleClearExpenses(w http.ResponseWriter, r *http.Request) {
	n, err := s.trips.ClearExpenses(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, "clear_expenses", err)
		return
	}
	NewJSONResponse().Body(map[string]int64{"deleted": n}).Write(w)
}
