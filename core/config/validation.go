package config

import (
	"fmt"
	"net/url"
	"strings"
)

func (fc *FileConfig) Validate() error {
	if strings.TrimSpace(fc.API.Primary) == "" {
		return fmt.Errorf("api.primary must be specified")
	}
	if err := validateEndpoint("api.primary", fc.API.Primary); err != nil {
		return err
	}
	if fc.API.Stable != "" {
		if err := validateEndpoint("api.stable", fc.API.Stable); err != nil {
			return err
		}
	}
	if fc.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", fc.API.Timeout)
	}
	if fc.API.PostEncoding != PostEncodingForm && fc.API.PostEncoding != PostEncodingJSON {
		return fmt.Errorf("api.post_encoding must be '%s' or '%s', got '%s'", PostEncodingForm, PostEncodingJSON, fc.API.PostEncoding)
	}
	if fc.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit cannot be negative")
	}
	if fc.API.ProxyURL != "" {
		u, err := url.Parse(fc.API.ProxyURL)
		if err != nil || (u.Scheme != "socks5" && u.Scheme != "socks5h") {
			return fmt.Errorf("api.proxy_url must be a socks5:// URL, got '%s'", fc.API.ProxyURL)
		}
	}

	if strings.TrimSpace(fc.Session.UserID) == "" {
		return fmt.Errorf("session.user_id must be specified")
	}
	if fc.Session.QuestionLimit <= 0 || fc.Session.ReviewLimit <= 0 {
		return fmt.Errorf("session limits must be positive")
	}
	if fc.Session.AutoAdvanceDelay < 0 {
		return fmt.Errorf("session.auto_advance_delay cannot be negative")
	}

	switch fc.Storage.Backend {
	case BackendMemory, BackendFile, BackendSQLite:
	case BackendRedis:
		if fc.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr must be specified for the redis backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s", fc.Storage.Backend)
	}
	if fc.Storage.EndpointKey == "" || fc.Storage.SessionKey == "" {
		return fmt.Errorf("storage keys must be specified")
	}
	if fc.Storage.EndpointKey == fc.Storage.SessionKey {
		return fmt.Errorf("storage.endpoint_key and storage.session_key must differ")
	}
	return nil
}

func validateEndpoint(field, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got '%s'", field, raw)
	}
	return nil
}
