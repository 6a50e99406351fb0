package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"seatwatch/internal/model"
)

func TestEventsHandlerStreamsRouteEvents(t *testing.T) {
	srv, _ := testServer(&stubChecker{})
	ts := httptest.NewServer(http.HandlerFunc(srv.EventsHandler))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// give the handler a moment to register its broker subscription
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		srv.RouteEvent(model.MonitoredRoute{ID: 7, Status: model.StatusFound}, "route.found")
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		var evt RouteEvent
		if err := conn.ReadJSON(&evt); err == nil {
			if evt.Type != "route.found" || evt.Route.ID != 7 {
				t.Fatalf("wrong event: %+v", evt)
			}
			return
		}
	}
	t.Fatal("no event received over the stream")
}
