package http

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginPolicy(t *testing.T) {
	p := NewOriginPolicy([]string{"HTTP://LocalHost:3000", " https://chat.example.com ", "not a url", ""}, nil)

	assert.True(t, p.Allowed("http://localhost:3000"))
	assert.True(t, p.Allowed("https://chat.example.com"))
	assert.False(t, p.Allowed("http://localhost:3001"))
	assert.False(t, p.Allowed("not a url"))

	r := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, p.CheckRequest(r), "non-browser clients send no origin")
	r.Header.Set("Origin", "http://evil.example")
	assert.False(t, p.CheckRequest(r))
}

func TestOriginPolicyWildcard(t *testing.T) {
	p := NewOriginPolicy([]string{"*"}, nil)

	assert.True(t, p.Allowed("http://anything.example"))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "validation failed: room name is required",
		publicMessage(errWrap("service.room.create: validation failed: room name is required"), errWrap("validation failed")))
	assert.Equal(t, "boom", publicMessage(errWrap("other"), errWrap("boom")))
}

type errWrap string

func (e errWrap) Error() string { return string(e) }
