package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"seatwatch/internal/model"
	"seatwatch/internal/monitor"
	"seatwatch/internal/regiojet"
	"seatwatch/internal/store"
)

// MonitorHandler handles POST /v1/routes/monitor.
func (s *Server) MonitorHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	var in model.RouteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateRouteInput(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid monitor request", err.Error(), r.URL.Path)
		return
	}
	res, err := s.Service.Monitor(r.Context(), user.ID, in)
	if err != nil {
		if errors.Is(err, regiojet.ErrUpstream) {
			writeProblem(w, http.StatusBadGateway, "Availability check failed", err.Error(), r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Monitor failed", err.Error(), r.URL.Path)
		return
	}
	if res.Available {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "AVAILABLE",
			"availability": res.Details,
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "MONITORING",
		"route":  res.Route,
	})
}

// MonitoredRoutesHandler handles GET /v1/routes/monitored.
func (s *Server) MonitoredRoutesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	items, err := s.Service.MonitoredRoutes(r.Context(), user.ID)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List routes failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// CancelHandler handles DELETE /v1/routes/monitor/{id}.
func (s *Server) CancelHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "/v1/routes/monitor/")
	if !ok {
		return
	}
	if err := s.Service.Cancel(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Subscription not found", "", r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Cancel failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestartHandler handles POST /v1/routes/{id}/restart.
func (s *Server) RestartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/routes/")
	idStr, suffix, found := strings.Cut(rest, "/")
	if !found || suffix != "restart" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid route id", idStr, r.URL.Path)
		return
	}
	res, err := s.Service.Restart(r.Context(), user.ID, id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeProblem(w, http.StatusNotFound, "Route not found", "", r.URL.Path)
		case errors.Is(err, monitor.ErrNotSubscribed):
			writeProblem(w, http.StatusForbidden, "Not subscribed", "only subscribers may restart a route", r.URL.Path)
		case errors.Is(err, monitor.ErrNotRestartable):
			writeProblem(w, http.StatusConflict, "Route not restartable", "restart requires FOUND status", r.URL.Path)
		case errors.Is(err, regiojet.ErrUpstream):
			writeProblem(w, http.StatusBadGateway, "Availability check failed", err.Error(), r.URL.Path)
		default:
			writeProblem(w, http.StatusInternalServerError, "Restart failed", err.Error(), r.URL.Path)
		}
		return
	}
	if !res.Restarted {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "AVAILABLE",
			"availability": res.Details,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "MONITORING"})
}

// AvailableRoutesHandler handles GET /v1/routes/available.
func (s *Server) AvailableRoutesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	fromID := q.Get("fromLocationId")
	toID := q.Get("toLocationId")
	fromType := q.Get("fromLocationType")
	toType := q.Get("toLocationType")
	dateStr := q.Get("date")
	if fromID == "" || toID == "" || fromType == "" || toType == "" || dateStr == "" {
		writeProblem(w, http.StatusBadRequest, "Missing parameters",
			"fromLocationId, toLocationId, fromLocationType, toLocationType and date are required", r.URL.Path)
		return
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid date", dateStr, r.URL.Path)
		return
	}
	routes, err := s.Client.SearchRoutes(r.Context(), fromID, toID, fromType, toType, date)
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Route search failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": routes})
}

// LocationsHandler handles GET /v1/locations, with an optional substring
// filter matched against normalized names.
func (s *Server) LocationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	locations := s.Locations.Get(r.Context())
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		needle := regiojet.NormalizeName(q)
		filtered := []model.Location{}
		for _, l := range locations {
			if strings.Contains(l.NormalizedName, needle) {
				filtered = append(filtered, l)
			}
		}
		locations = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": locations})
}

// HealthzHandler reports process liveness.
func (s *Server) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyzHandler reports readiness: the store must answer.
func (s *Server) ReadyzHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Store.ListMonitoringRoutes(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Store unavailable", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func validateRouteInput(in *model.RouteInput) error {
	in.RegiojetRouteID = strings.TrimSpace(in.RegiojetRouteID)
	in.FromLocationID = strings.TrimSpace(in.FromLocationID)
	in.ToLocationID = strings.TrimSpace(in.ToLocationID)
	switch {
	case in.RegiojetRouteID == "":
		return errors.New("regiojetRouteId is required")
	case in.FromLocationID == "" || in.ToLocationID == "":
		return errors.New("fromLocationId and toLocationId are required")
	case in.FromLocationType == "" || in.ToLocationType == "":
		return errors.New("fromLocationType and toLocationType are required")
	case in.DepartureAt.IsZero():
		return errors.New("departureAt is required")
	}
	return nil
}

func pathID(w http.ResponseWriter, r *http.Request, prefix string) (int64, bool) {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	if rest == r.URL.Path || rest == "" || strings.Contains(rest, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid route id", rest, r.URL.Path)
		return 0, false
	}
	return id, true
}
