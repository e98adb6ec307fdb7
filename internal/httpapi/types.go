package httpapi

// HealthResponse is the body of GET /healthz
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

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
