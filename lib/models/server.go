package models

// ServerConfig describes one log source host within a system.
type ServerConfig struct {
	Port     int      `json:"port,omitempty"`
	LogPaths []string `json:"log_paths"`
}

// SystemConfig is the per-system topology stored in Parameter Store
// under /get-log-api/config/<system>.
type SystemConfig struct {
	Servers map[string]ServerConfig `json:"servers"`
}

// Credentials is the secret payload stored per hostname. Exactly one of
// Password or ClientCert is expected; ClientCert is base64-encoded PEM.
type Credentials struct {
	Username   string `json:"username"`
	Password   string `json:"password,omitempty"`
	ClientCert string `json:"client_cert,omitempty"`
}
