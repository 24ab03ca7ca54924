package descriptor

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrMalformedDescriptor is returned when a line is neither host:port nor host:port:user:pass.
	ErrMalformedDescriptor = errors.New("malformed proxy descriptor")
	// ErrUnsupportedFormat is returned for render tags outside the known set.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// Descriptor is one proxy endpoint parsed from a colon-delimited line.
//
// Credentials are all-or-nothing: a Descriptor carrying only a username or
// only a password is treated everywhere as having no credentials.
type Descriptor struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Parse turns "host:port" or "host:port:user:pass" into a Descriptor.
// Every segment must be non-empty and the port must be all digits.
func Parse(line string) (Descriptor, error) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, ":")

	if len(parts) != 2 && len(parts) != 4 {
		return Descriptor{}, fmt.Errorf("%w: %q has %d segments", ErrMalformedDescriptor, line, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return Descriptor{}, fmt.Errorf("%w: %q has empty segment %d", ErrMalformedDescriptor, line, i+1)
		}
	}
	if !isNumeric(parts[1]) {
		return Descriptor{}, fmt.Errorf("%w: %q has non-numeric port", ErrMalformedDescriptor, line)
	}

	d := Descriptor{Host: parts[0], Port: parts[1]}
	if len(parts) == 4 {
		d.Username = parts[2]
		d.Password = parts[3]
	}
	return d, nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// HasCredentials reports whether both username and password are set.
func (d Descriptor) HasCredentials() bool {
	return d.Username != "" && d.Password != ""
}

// Address returns host:port.
func (d Descriptor) Address() string {
	return d.Host + ":" + d.Port
}

// String renders the raw colon-delimited form.
func (d Descriptor) String() string {
	if d.HasCredentials() {
		return d.Address() + ":" + d.Username + ":" + d.Password
	}
	return d.Address()
}

// URL builds a proxy URL for the given scheme with escaped credentials.
func (d Descriptor) URL(scheme string) *url.URL {
	u := &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(d.Host, d.Port),
	}
	if d.HasCredentials() {
		u.User = url.UserPassword(d.Username, d.Password)
	}
	return u
}
