package httpclient

import "time"

// Config holds client configuration
type Config struct {
	// ServerURL is the base URL of the broker's HTTP endpoint (e.g., "http://localhost:8080")
	ServerURL string

	// Timeout for HTTP requests
	Timeout time.Duration
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// HealthResponse represents the broker health
type HealthResponse struct {
	Healthy             bool   `json:"healthy"`
	NodeID              string `json:"nodeId"`
	EventLogHealthy     bool   `json:"eventLogHealthy"`
	RoutingTableHealthy bool   `json:"routingTableHealthy"`
	BridgeHealthy       bool   `json:"bridgeHealthy"`
	Destinations        int    `json:"destinations"`
	Subscriptions       int    `json:"subscriptions"`
	SharedGroups        int    `json:"sharedGroups"`
	NamespacePolicies   int    `json:"namespacePolicies"`
	Message             string `json:"message,omitempty"`
}

// ErrorResponse represents an error response from the server
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
