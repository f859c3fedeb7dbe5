package models

import "time"

// ConnectionStatus mirrors the venue adapter's connection lifecycle state as
// observed from the outside.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusSubscribed   ConnectionStatus = "subscribed"
	StatusStreaming    ConnectionStatus = "streaming"
	StatusReconnecting ConnectionStatus = "reconnecting"
	StatusDegraded     ConnectionStatus = "degraded"
)

// HealthSnapshot is the externally visible health projection for one venue.
type HealthSnapshot struct {
	Venue          string
	Status         ConnectionStatus
	LastMessageAt  time.Time
	MessageCount   int64
	LagMillis      int64
	ReconnectCount int64
	GapsLastHour   int64
}
