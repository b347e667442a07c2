package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/net/http2/hpack"
)

func TestBuildHeaderBlockPseudoHeadersFirst(t *testing.T) {
	fields := buildHeaderBlock("get", "/index.html", "example.com", map[string]string{
		"User-Agent":    "riva-test",
		"Authorization": "Basic Zm9vOmJhcg==",
	})

	require.GreaterOrEqual(t, len(fields), 4)
	assert.Equal(t, hpack.HeaderField{Name: ":method", Value: "GET"}, fields[0])
	assert.Equal(t, hpack.HeaderField{Name: ":path", Value: "/index.html"}, fields[1])
	assert.Equal(t, hpack.HeaderField{Name: ":authority", Value: "example.com"}, fields[2])
	assert.Equal(t, hpack.HeaderField{Name: ":scheme", Value: "https"}, fields[3])
}

func TestBuildHeaderBlockLowercasesAndSorts(t *testing.T) {
	fields := buildHeaderBlock("GET", "/", "example.com", map[string]string{
		"User-Agent": "riva-test",
		"Accept":     "text/html",
	})

	var names []string
	for _, f := range fields[4:] {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"accept", "user-agent"}, names)
}

func TestBuildHeaderBlockDropsCallerPseudoHeaders(t *testing.T) {
	fields := buildHeaderBlock("GET", "/", "example.com", map[string]string{
		":method":    "DELETE",
		":evil":      "1",
		"user-agent": "riva-test",
	})

	count := 0
	for _, f := range fields {
		if f.Name[0] == ':' {
			count++
		}
		assert.NotEqual(t, ":evil", f.Name)
		if f.Name == ":method" {
			assert.Equal(t, "GET", f.Value)
		}
	}
	assert.Equal(t, 4, count, "only the canonical pseudo-headers survive")
}

func TestSessionStreamIDAllocation(t *testing.T) {
	s := &Session{nextStreamID: 1}
	assert.False(t, s.Alive(), "a session without a socket is dead")

	s.nextStreamID = maxClientStreamID + 2
	_, err := s.sendRequest("GET", "/", nil)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s := &Session{}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.Alive())
}
