package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/teranos/skytrace/config"
	"github.com/teranos/skytrace/errors"
)

func TestReply(t *testing.T) {
	tests := []struct {
		name     string
		frame    Frame
		wantOK   bool
		wantType int
		wantData string
	}{
		{"ping becomes pong", Frame{Kind: FramePing, Data: []byte("abc")}, true, websocket.PongMessage, "abc"},
		{"empty ping", Frame{Kind: FramePing}, true, websocket.PongMessage, ""},
		{"text is echoed", Frame{Kind: FrameText, Data: []byte("hi")}, true, websocket.TextMessage, EchoPrefix + "hi"},
		{"binary ignored", Frame{Kind: FrameBinary, Data: []byte{1}}, false, 0, ""},
		{"pong ignored", Frame{Kind: FrameOther}, false, 0, ""},
		{"error ignored", Frame{Kind: FrameError, Err: assert.AnError}, false, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := reply(tt.frame)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantType, out.messageType)
				assert.Equal(t, tt.wantData, string(out.data))
			}
		})
	}
}

func TestFrameFromMessage(t *testing.T) {
	assert.Equal(t, FrameText, frameFromMessage(websocket.TextMessage, nil).Kind)
	assert.Equal(t, FrameBinary, frameFromMessage(websocket.BinaryMessage, nil).Kind)
	assert.Equal(t, FrameOther, frameFromMessage(99, nil).Kind)
	assert.Equal(t, "ping", FramePing.String())
	assert.Equal(t, "unknown", FrameKind(42).String())
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", []string{"https://radar.example"}, "", true},
		{"prefix match any port", []string{"http://localhost"}, "http://localhost:3000", true},
		{"wildcard", []string{"*"}, "https://anything.example", true},
		{"not listed", []string{"https://radar.example"}, "https://evil.example", false},
		{"localhost when unconfigured", nil, "http://localhost:8080", true},
		{"remote when unconfigured", nil, "https://radar.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{cfg: config.ServerConfig{AllowedOrigins: tt.allowed}}
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, s.checkOrigin(r))
		})
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid argument", errors.NewInvalidArgumentf("bad start"), http.StatusBadRequest},
		{"actor stopped", errors.Wrap(errors.ErrActorStopped, "submit"), http.StatusServiceUnavailable},
		{"timeout", errors.Mark(errors.WrapQueryFailed(context.DeadlineExceeded, "find"), errors.ErrTimeout), http.StatusServiceUnavailable},
		{"cancelled", errors.Wrap(context.Canceled, "await"), http.StatusServiceUnavailable},
		{"query failed", errors.WrapQueryFailed(errors.New("boom"), "find"), http.StatusBadGateway},
		{"store unavailable", errors.WrapStoreUnavailable(errors.New("refused"), "ping"), http.StatusBadGateway},
		{"not found", errors.Wrap(errors.ErrNotFound, "route"), http.StatusNotFound},
		{"unclassified", errors.New("mystery"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

func TestWantsCBOR(t *testing.T) {
	tests := []struct {
		accept string
		want   bool
	}{
		{"", false},
		{"application/json", false},
		{"application/cbor", true},
		{"text/html, application/cbor;q=0.9", true},
		{"*/*", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/query", nil)
		r.Header.Set("Accept", tt.accept)
		assert.Equal(t, tt.want, wantsCBOR(r), "Accept: %q", tt.accept)
	}
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "12345678", shortID("1234567890"))
	assert.Equal(t, "abc", shortID("abc"))
}
