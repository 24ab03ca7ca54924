package descriptor

import (
	"fmt"
	"strings"
)

// Format is an output representation for a Descriptor.
type Format string

const (
	FormatSOCKS5     Format = "socks5"
	FormatHTTP       Format = "http"
	FormatHTTPS      Format = "https"
	FormatCurlSOCKS5 Format = "curl_socks5"
	FormatCurlHTTP   Format = "curl_http"
	FormatRaw        Format = "raw"
)

// Formats lists every supported tag in display order.
var Formats = []Format{
	FormatSOCKS5,
	FormatHTTP,
	FormatHTTPS,
	FormatCurlSOCKS5,
	FormatCurlHTTP,
	FormatRaw,
}

// ParseFormat validates a format tag.
func ParseFormat(tag string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(tag)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, tag)
}

// Render emits d in format f.
func Render(d Descriptor, f Format) (string, error) {
	switch f {
	case FormatSOCKS5, FormatHTTP, FormatHTTPS:
		if d.HasCredentials() {
			return fmt.Sprintf("%s://%s:%s@%s", f, d.Username, d.Password, d.Address()), nil
		}
		return fmt.Sprintf("%s://%s", f, d.Address()), nil

	case FormatCurlSOCKS5, FormatCurlHTTP:
		scheme := strings.TrimPrefix(string(f), "curl_")
		out := fmt.Sprintf("--proxy-%s %s", scheme, d.Address())
		if d.HasCredentials() {
			out += fmt.Sprintf(" -U %s:%s", d.Username, d.Password)
		}
		return out, nil

	case FormatRaw:
		return d.String(), nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

// ConvertAll parses each line and renders it in format f, preserving input
// order. Blank and malformed lines are skipped. The only error is an
// unsupported format.
func ConvertAll(lines []string, f Format) ([]string, error) {
	if _, err := ParseFormat(string(f)); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		d, err := Parse(line)
		if err != nil {
			continue
		}
		rendered, err := Render(d, f)
		if err != nil {
			return nil, err
		}
		out = append(out, rendered)
	}
	return out, nil
}
