package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	method string
	path   string
	body   map[string]any
}

func newServer(t *testing.T, status int, reply string) (*httptest.Server, *capture) {
	t.Helper()
	got := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			json.Unmarshal(data, &got.body)
		}
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBookCommand(t *testing.T) {
	srv, got := newServer(t, http.StatusCreated, `{"outcome":"MOCK","reference":"MOCK-ABCDEF"}`)

	path := filepath.Join(t.TempDir(), "req.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"offer_details": {"origin": "DCA", "destination": "SEA", "price": "168.02"},
		"travelers": [{"first_name": "Ada", "last_name": "Lovelace", "phone": "2065550100"}]
	}`), 0o644))

	out, err := run(t, "--server", srv.URL, "book", path)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/bookings", got.path)
	assert.Contains(t, got.body, "offer_details")
	assert.Contains(t, out, `"reference": "MOCK-ABCDEF"`)
}

func TestStatusCommand(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"attemptId":"a1","status":"DONE"}`)

	out, err := run(t, "--server", srv.URL, "status", "a1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "/api/attempts/a1", got.path)
	assert.Contains(t, out, `"status": "DONE"`)
}

func TestTicketCommandNotFound(t *testing.T) {
	srv, got := newServer(t, http.StatusNotFound, `{"error":"booking not found"}`)

	out, err := run(t, "--server", srv.URL, "ticket", "ORDER_1")
	require.Error(t, err)
	assert.Equal(t, "/api/bookings/ORDER_1/ticket", got.path)
	assert.Contains(t, out, "booking not found")
}

func TestBookCommandBadFile(t *testing.T) {
	_, err := run(t, "book", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
