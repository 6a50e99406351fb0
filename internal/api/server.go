package api

import (
	"net/http"
	"strings"

	"seatwatch/internal/cache"
	"seatwatch/internal/model"
	"seatwatch/internal/monitor"
	"seatwatch/internal/regiojet"
	"seatwatch/internal/store"
)

type Server struct {
	Store     store.Store
	Service   *monitor.Service
	Client    *regiojet.Client
	Locations *cache.Locations
	Broker    EventBroker
}

func NewServer(s store.Store, svc *monitor.Service, client *regiojet.Client, locations *cache.Locations, broker EventBroker) *Server {
	if broker == nil {
		broker = NewBroker()
	}
	return &Server{Store: s, Service: svc, Client: client, Locations: locations, Broker: broker}
}

// RouteEvent publishes a route state change to stream subscribers. The
// scheduler and sweeper use the server as their event sink.
func (s *Server) RouteEvent(route model.MonitoredRoute, event string) {
	s.Broker.Publish(RouteEvent{Type: event, Route: route})
}

// currentUser resolves the authenticated caller. Identity arrives from
// the gateway in X-User-Email; addresses that reach us are already
// authenticated, so the user record is ensured on first sight.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (model.User, bool) {
	email := strings.TrimSpace(r.Header.Get("X-User-Email"))
	if email == "" {
		writeProblem(w, http.StatusUnauthorized, "Missing identity", "X-User-Email header required", r.URL.Path)
		return model.User{}, false
	}
	u, err := s.Store.EnsureUser(r.Context(), email)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "User lookup failed", err.Error(), r.URL.Path)
		return model.User{}, false
	}
	return u, true
}
