package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeServiceError(w, r, "create_trip", err)
		return
	}

	trip, err := s.trips.CreateTrip(r.Context(), p.Get("name"), p.Get("currency"), p.GetList("members"))
	if err != nil {
		writeServiceError(w, r, "create_trip", err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/trips/"+trip.ID).
		Body(toTripDTO(trip)).
		Write(w)
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := s.trips.ListTrips(r.Context())
	if err != nil {
		writeServiceError(w, r, "list_trips", err)
		return
	}
	out := make([]tripDTO, len(trips))
	for i, t := range trips {
		out[i] = toTripDTO(t)
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := s.trips.GetTrip(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, "get_trip", err)
		return
	}
	NewJSONResponse().Body(toTripDTO(trip)).Write(w)
}

func (s *Server) handleDeleteTrip(w http.ResponseWriter, r *http.Request) {
	if err := s.trips.DeleteTrip(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, r, "delete_trip", err)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleUpdateCurrency(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeServiceError(w, r, "update_currency", err)
		return
	}

	c, err := s.trips.UpdateCurrency(r.Context(), mux.Vars(r)["id"], p.Get("currency", "code"))
	if err != nil {
		writeServiceError(w, r, "update_currency", err)
		return
	}
	NewJSONResponse().Body(map[string]currencyDTO{"currency": toCurrencyDTO(c)}).Write(w)
}

// handleClearAll removes every expense and member but keeps the trip.
func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.trips.ClearAll(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, r, "clear_all", err)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		writeServiceError(w, r, "add_member", err)
		return
	}

	name, err := s.trips.AddMember(r.Context(), mux.Vars(r)["id"], p.Get("name", "member"))
	if err != nil {
		writeServiceError(w, r, "add_member", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(map[string]string{"name": name}).Write(w)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.trips.RemoveMember(r.Context(), vars["id"], vars["name"]); err != nil {
		writeServiceError(w, r, "remove_member", err)
		return
	}
	NoContent().Write(w)
}
