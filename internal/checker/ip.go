package checker

import (
	"bytes"
	"encoding/json"
	"net"
	"strings"
)

// echoResponse covers the common "what is my IP" JSON shapes:
// ipify {"ip"}, httpbin {"origin"}, ip-api {"query"}.
type echoResponse struct {
	IP     string `json:"ip"`
	Origin string `json:"origin"`
	Query  string `json:"query"`
}

// parseObservedIP extracts the caller address reported by an IP echo
// endpoint. Returns "" when the body holds no recognisable address.
func parseObservedIP(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	if body[0] == '{' {
		var echo echoResponse
		if err := json.Unmarshal(body, &echo); err != nil {
			return ""
		}
		for _, candidate := range []string{echo.IP, echo.Origin, echo.Query} {
			// httpbin reports "client, proxy" when forwarded.
			first := strings.TrimSpace(strings.Split(candidate, ",")[0])
			if net.ParseIP(first) != nil {
				return first
			}
		}
		return ""
	}

	text := strings.TrimSpace(strings.SplitN(string(body), "\n", 2)[0])
	if net.ParseIP(text) != nil {
		return text
	}
	return ""
}
