package domain

// Record holds the directory-sourced fields of a backend. These come from the
// backend directory and are replaced wholesale on every refresh.
type Record struct {
	ServerID string `json:"server_id"`
	Provider string `json:"provider"`
	Name     string `json:"server_name"`
	URL      string `json:"server_url"`
}

// Backend represents one upstream service instance together with its current
// health state. Instances handed out by the registry are value copies; callers
// never share mutable backend state.
type Backend struct {
	Record

	Healthy             bool `json:"is_healthy"`
	ConsecutiveFailures int  `json:"consecutive_failures"`
}

// Stats is the operational status view exposed on the stats endpoint.
type Stats struct {
	Strategy        string    `json:"load_balancer"`
	TotalBackends   int       `json:"total_backends"`
	HealthyBackends int       `json:"healthy_backends"`
	Backends        []Backend `json:"backends"`
}
