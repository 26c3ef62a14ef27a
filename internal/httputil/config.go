package httputil

import (
	"errors"
	"time"
)

// HTTPClientConfig configures the client used to reach one webhook or
// upstream target.
type HTTPClientConfig struct {
	BasicAuth   *BasicAuth `json:"basicAuth,omitempty"`
	BearerToken string     `json:"bearerToken,omitempty"`
	// Zero means DefaultTimeout.
	Timeout Duration `json:"timeout,omitempty"`
}

type BasicAuth struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

const DefaultTimeout = 10 * time.Second

func (c *HTTPClientConfig) Validate() error {
	if c.BasicAuth != nil && len(c.BearerToken) > 0 {
		return errors.New("at most one of basicAuth and bearerToken must be configured")
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" {
		return errors.New("basicAuth requires a username")
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	return nil
}

func (c *HTTPClientConfig) timeout() time.Duration {
	if c.Timeout == 0 {
		return DefaultTimeout
	}
	return time.Duration(c.Timeout)
}

// Duration reads "5s" style strings from JSON target lists.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}
