package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeDetection is sent when a scan finds sensitive data
	EventTypeDetection EventType = "detection"
	// EventTypeDecision is sent for every policy decision
	EventTypeDecision EventType = "decision"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"requestId,omitempty"`
}

// DetectionEvent summarizes what a scan found. It never carries raw values.
type DetectionEvent struct {
	UserID           string   `json:"userId"`
	ToolID           string   `json:"toolId"`
	PatternTypes     []string `json:"patternTypes"`
	TotalMatches     int      `json:"totalMatches"`
	RiskScore        int      `json:"riskScore"`
	SensitivityLevel string   `json:"sensitivityLevel"`
}

// DecisionEvent describes the outcome of one evaluated request
type DecisionEvent struct {
	UserID           string `json:"userId"`
	UserRole         string `json:"userRole"`
	Department       string `json:"department"`
	ToolID           string `json:"toolId"`
	Action           string `json:"action"`
	Reason           string `json:"reason"`
	SensitivityLevel string `json:"sensitivityLevel"`
	Ceiling          string `json:"ceiling"`
	RiskScore        int    `json:"riskScore"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string   `json:"status"`
	Uptime           string   `json:"uptime"`
	TotalEvaluations int64    `json:"totalEvaluations"`
	TotalBlocked     int64    `json:"totalBlocked"`
	EnabledDetectors []string `json:"enabledDetectors"`
	ConnectedClients int      `json:"connectedClients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"clientId"`
	ClientIP  string `json:"clientIp"`
	UserAgent string `json:"userAgent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType  `json:"events"`
	Filter *EventFilter `json:"filter,omitempty"`
}

// EventFilter narrows detection and decision events
type EventFilter struct {
	MinRiskScore int      `json:"minRiskScore,omitempty"`
	Actions      []string `json:"actions,omitempty"`
	Departments  []string `json:"departments,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string

	mu sync.RWMutex
}

func (c *Client) subscription() *SubscriptionRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Subscription
}

func (c *Client) subscribe(sub *SubscriptionRequest) {
	c.mu.Lock()
	c.Subscription = sub
	c.mu.Unlock()
}

func (c *Client) touch() {
	c.mu.Lock()
	c.LastPing = time.Now()
	c.mu.Unlock()
}
