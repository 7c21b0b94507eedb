package fetch

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/review-scraper/pkg/config"
)

func TestIdentityPool_PickCoversPool(t *testing.T) {
	cfg := config.IdentityConfig{
		UserAgents: []string{"ua-1", "ua-2", "ua-3"},
		Headers:    map[string]string{"Accept": "text/html"},
		Cookies:    map[string]string{"a": "1"},
	}
	pool := NewIdentityPool(cfg, rand.New(rand.NewSource(7)))
	require.Equal(t, 3, pool.Size())

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := pool.Pick()
		seen[id.UserAgent] = true
		assert.Equal(t, "text/html", id.Headers["Accept"])
	}
	assert.Len(t, seen, 3)
}

func TestIdentityPool_TemplatesAreCopied(t *testing.T) {
	headers := map[string]string{"Accept": "text/html"}
	pool := NewIdentityPool(config.IdentityConfig{UserAgents: []string{"ua"}, Headers: headers}, nil)

	headers["Accept"] = "changed"
	assert.Equal(t, "text/html", pool.Pick().Headers["Accept"])
}

func TestIdentityPool_Empty(t *testing.T) {
	pool := NewIdentityPool(config.IdentityConfig{}, nil)
	assert.Equal(t, Identity{}, pool.Pick())
}

func TestIdentity_Apply(t *testing.T) {
	id := Identity{
		UserAgent: "test-agent",
		Headers:   map[string]string{"Referer": "https://default.example/", "DNT": "1"},
		Cookies:   map[string]string{"otz_view": "list", "otz_region": "77"},
	}

	req, _ := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	id.Apply(req, "")
	assert.Equal(t, "test-agent", req.Header.Get("User-Agent"))
	assert.Equal(t, "https://default.example/", req.Header.Get("Referer"))
	assert.Equal(t, "1", req.Header.Get("DNT"))
	assert.Equal(t, "otz_region=77; otz_view=list", req.Header.Get("Cookie"))

	req2, _ := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	id.Apply(req2, "https://example.com/list/")
	assert.Equal(t, "https://example.com/list/", req2.Header.Get("Referer"))
}

func TestDecodeBody(t *testing.T) {
	const payload = "<html>привет</html>"

	var zbuf bytes.Buffer
	zw := zlib.NewWriter(&zbuf)
	zw.Write([]byte(payload))
	zw.Close()

	var fbuf bytes.Buffer
	fw, _ := flate.NewWriter(&fbuf, flate.DefaultCompression)
	fw.Write([]byte(payload))
	fw.Close()

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"identity", "", []byte(payload)},
		{"deflate zlib-wrapped", "deflate", zbuf.Bytes()},
		{"deflate raw", "deflate", fbuf.Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := decodeBody(tt.encoding, bytes.NewReader(tt.body))
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, string(got))
		})
	}

	_, err := decodeBody("compress", strings.NewReader(""))
	assert.Error(t, err)
}
