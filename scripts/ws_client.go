// Package main runs a demo WebSocket client for the route-events stream.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type routeEvent struct {
	Type  string          `json:"type"`
	Route json.RawMessage `json:"route"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Register a watch so there is something to stream about.
	body, _ := json.Marshal(map[string]any{
		"regiojetRouteId":  "7874066325",
		"fromLocationId":   "372825000",
		"fromLocationType": "STATION",
		"toLocationId":     "1841058000",
		"toLocationType":   "STATION",
		"departureAt":      time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
	})
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/routes/monitor", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Email", "demo@example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("monitor request: %v", err)
	}
	log.Printf("monitor request: %s", resp.Status)
	resp.Body.Close()

	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("localhost:%s", port), Path: "/v1/events"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial %s: %v", u.String(), err)
	}
	defer conn.Close()

	log.Printf("listening for route events on %s", u.String())
	for {
		var evt routeEvent
		if err := conn.ReadJSON(&evt); err != nil {
			log.Fatalf("read: %v", err)
		}
		fmt.Printf("%s %s\n", evt.Type, evt.Route)
	}
}
