package report

import (
	"testing"
	"time"

	"github.com/proxy-batch-checker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddBucketsByStatus(t *testing.T) {
	b := New()
	b.Add(types.ProbeResult{Original: "b:2", Status: types.StatusFail, Message: "HTTP 403"})
	b.Add(types.ProbeResult{Original: "a:1", Status: types.StatusSuccess, RenderedProxy: "socks5://a:1"})
	b.Add(types.ProbeResult{Original: "junk", Status: types.StatusMalformed})
	b.Add(types.ProbeResult{Original: "c:3", Status: types.StatusSuccess, RenderedProxy: "socks5://c:3"})

	assert.Equal(t, Counts{Success: 2, Fail: 1, Malformed: 1, Total: 4}, b.Counts())
	assert.Equal(t, []string{"socks5://a:1", "socks5://c:3"}, b.WorkingProxies())
	assert.Equal(t, "4 checked: 2 working, 1 failed, 1 malformed", b.Summary())

	r, ok := b.Lookup("b:2")
	require.True(t, ok)
	assert.Equal(t, "HTTP 403", r.Message)

	_, ok = b.Lookup("missing:1")
	assert.False(t, ok)
}

func TestEmptyReport(t *testing.T) {
	b := New()
	assert.Equal(t, Counts{}, b.Counts())
	assert.Empty(t, b.WorkingProxies())
	assert.NotNil(t, b.WorkingProxies())
}

func TestFormatLine(t *testing.T) {
	assert.Equal(t, "[+] 1.2.3.4:8080 | 1.2.3.4 | 250ms", FormatLine(types.ProbeResult{
		Original: "1.2.3.4:8080",
		Status:   types.StatusSuccess,
		IP:       "1.2.3.4",
		Elapsed:  250 * time.Millisecond,
	}))
	assert.Equal(t, "[-] 5.6.7.8:3128 | connection refused", FormatLine(types.ProbeResult{
		Original: "5.6.7.8:3128",
		Status:   types.StatusFail,
		Message:  "connection refused",
	}))
	assert.Equal(t, "[!] bad-entry", FormatLine(types.ProbeResult{
		Original: "bad-entry",
		Status:   types.StatusMalformed,
	}))
}
