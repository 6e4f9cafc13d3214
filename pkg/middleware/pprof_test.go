package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestIPAllowlist(t *testing.T) {
	tests := []struct {
		name       string
		cidrs      []string
		remoteAddr string
		forwarded  string
		want       int
	}{
		{"inside range", []string{"127.0.0.0/8"}, "127.0.0.1:12345", "", http.StatusOK},
		{"outside range", []string{"10.0.0.0/8"}, "192.168.1.1:12345", "", http.StatusForbidden},
		{"forwarded header ignored", []string{"10.0.0.0/8"}, "192.168.1.1:12345", "10.0.0.5", http.StatusForbidden},
		{"invalid cidr skipped", []string{"not-a-cidr", "192.168.0.0/16"}, "192.168.1.1:1", "", http.StatusOK},
		{"unparsable remote", []string{"0.0.0.0/0"}, "garbage", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := IPAllowlist(tt.cidrs, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRegisterPprof_DisabledWithoutCIDRs(t *testing.T) {
	r := chi.NewRouter()
	RegisterPprof(r, nil, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterPprof_ServesIndexForAllowedPeer(t *testing.T) {
	r := chi.NewRouter()
	RegisterPprof(r, []string{"127.0.0.0/8"}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
