package model

import "time"

// RouteStatus is the lifecycle state of a monitored route.
// MONITORING -> FOUND -> EXPIRED; EXPIRED is terminal and is also
// reachable directly from MONITORING when the departure passes.
type RouteStatus string

const (
	StatusMonitoring RouteStatus = "MONITORING"
	StatusFound      RouteStatus = "FOUND"
	StatusExpired    RouteStatus = "EXPIRED"
)

// MonitoredRoute is one watched transport segment. The triple
// (RegiojetRouteID, FromLocationID, ToLocationID) identifies it uniquely:
// any number of users share a single row per segment.
type MonitoredRoute struct {
	ID               int64        `json:"id"`
	RegiojetRouteID  string       `json:"regiojetRouteId"`
	FromLocationID   string       `json:"fromLocationId"`
	FromLocationType string       `json:"fromLocationType"`
	ToLocationID     string       `json:"toLocationId"`
	ToLocationType   string       `json:"toLocationType"`
	DepartureAt      time.Time    `json:"departureAt"`
	ArrivalAt        *time.Time   `json:"arrivalAt,omitempty"`
	Status           RouteStatus  `json:"status"`
	LastCheckedAt    *time.Time   `json:"lastCheckedAt,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// RouteInput carries the fields of a monitor request that describe the
// segment to watch.
type RouteInput struct {
	RegiojetRouteID  string     `json:"regiojetRouteId"`
	FromLocationID   string     `json:"fromLocationId"`
	FromLocationType string     `json:"fromLocationType"`
	ToLocationID     string     `json:"toLocationId"`
	ToLocationType   string     `json:"toLocationType"`
	DepartureAt      time.Time  `json:"departureAt"`
	ArrivalAt        *time.Time `json:"arrivalAt,omitempty"`
}

// Subscription links a user to a monitored route.
type Subscription struct {
	UserID    int64     `json:"userId"`
	RouteID   int64     `json:"routeId"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is the minimal subscriber record the engine needs: an address to
// notify and whether the address has been verified. Account management
// lives outside this service.
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

// Location is one entry of the provider's location directory.
type Location struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"` // CITY or STATION
	NormalizedName string `json:"normalized_name"`
}

// Availability is the positive outcome of an availability check.
type Availability struct {
	FreeSeats   int     `json:"freeSeatsCount"`
	PriceFrom   float64 `json:"priceFrom"`
	PriceTo     float64 `json:"priceTo"`
	BookingLink string  `json:"bookingLink"`
	ArrivalTime string  `json:"arrivalTime,omitempty"`
}

// AvailableRoute is one connection returned by the provider's route search.
type AvailableRoute struct {
	RouteID       string    `json:"routeId"`
	DepartureTime time.Time `json:"departureTime"`
	ArrivalTime   time.Time `json:"arrivalTime"`
	FreeSeats     int       `json:"freeSeatsCount"`
	VehicleTypes  []string  `json:"vehicleTypes"`
	FromStationID string    `json:"fromStationId"`
	ToStationID   string    `json:"toStationId"`
}

// Notification is a queued message for one subscriber, delivered
// at-least-once by the notify worker.
type Notification struct {
	ID        string `json:"id"`
	RouteID   int64  `json:"routeId"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Status    string `json:"status"` // pending, retry, sent, failed
	Attempts  int    `json:"attempts"`
}

// MonitoredRouteInfo is the user-facing view of a subscription, with
// location names resolved when the cache has them.
type MonitoredRouteInfo struct {
	ID               int64       `json:"id"`
	RegiojetRouteID  string      `json:"regiojetRouteId"`
	FromLocationID   string      `json:"fromLocationId"`
	FromLocationType string      `json:"fromLocationType"`
	FromLocationName string      `json:"fromLocationName,omitempty"`
	ToLocationID     string      `json:"toLocationId"`
	ToLocationType   string      `json:"toLocationType"`
	ToLocationName   string      `json:"toLocationName,omitempty"`
	DepartureAt      time.Time   `json:"departureAt"`
	ArrivalAt        *time.Time  `json:"arrivalAt,omitempty"`
	Status           RouteStatus `json:"status"`
	SubscribedAt     time.Time   `json:"subscribedAt"`
}
