package config

import "time"

// FileConfig is the top-level configuration file.
type FileConfig struct {
	API     API     `yaml:"api"`
	Session Session `yaml:"session"`
	Storage Storage `yaml:"storage"`
	Logging Logging `yaml:"logging"`
}

// API configures how the backend is reached.
type API struct {
	// Primary is the endpoint of last resort.
	Primary string `yaml:"primary"`
	// Stable is an optional secondary endpoint.
	Stable  string        `yaml:"stable,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
	// Credential is passed opaquely as the CredentialParam query parameter.
	Credential      string `yaml:"credential,omitempty"`
	CredentialParam string `yaml:"credential_param,omitempty"`
	// PostEncoding is "form" or "json".
	PostEncoding string `yaml:"post_encoding"`
	// RateLimit caps attempts per second; 0 disables throttling.
	RateLimit float64 `yaml:"rate_limit,omitempty"`
	RateBurst int     `yaml:"rate_burst,omitempty"`
	// ProxyURL routes requests through a SOCKS5 proxy, e.g. socks5://127.0.0.1:1080.
	ProxyURL  string `yaml:"proxy_url,omitempty"`
	UserAgent string `yaml:"user_agent,omitempty"`
}

// Session configures the quiz engine.
type Session struct {
	UserID           string        `yaml:"user_id"`
	QuestionLimit    int           `yaml:"question_limit"`
	ReviewLimit      int           `yaml:"review_limit"`
	AutoAdvanceDelay time.Duration `yaml:"auto_advance_delay"`
}

// Storage selects the durable key/value backend.
type Storage struct {
	// Backend is one of memory, file, sqlite, redis.
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path,omitempty"`
	Redis       Redis  `yaml:"redis,omitempty"`
	EndpointKey string `yaml:"endpoint_key"`
	SessionKey  string `yaml:"session_key"`
}

// Redis configures the redis storage backend.
type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	Prefix   string        `yaml:"prefix,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
}

// Logging configures pkg/logging.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every optional field filled in.
// Primary is left empty; it must come from the file or the environment.
func Default() *FileConfig {
	return &FileConfig{
		API: API{
			Timeout:         8 * time.Second,
			CredentialParam: "key",
			PostEncoding:    PostEncodingForm,
			RateBurst:       1,
			UserAgent:       "memquiz/1.0",
		},
		Session: Session{
			UserID:           "u001",
			QuestionLimit:    100,
			ReviewLimit:      30,
			AutoAdvanceDelay: 350 * time.Millisecond,
		},
		Storage: Storage{
			Backend:     BackendFile,
			EndpointKey: "slg_api_base_v1",
			SessionKey:  "slg_v1",
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

const (
	PostEncodingForm = "form"
	PostEncodingJSON = "json"

	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)
