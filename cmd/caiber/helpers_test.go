package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nao1215/caiber/internal/pipeline"
	"github.com/nao1215/caiber/internal/remote"
)

// executeCmd runs the root command with args and returns stdout, stderr
// and the command error.
func executeCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

// writeConfig writes a .caiber file that keeps the archive in dbDir.
func writeConfig(t *testing.T, dbDir string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".caiber")
	content := "database:\n  dir: " + dbDir + "\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeBackend serves the demo fixtures on the default endpoints. failStage
// answers 500 instead.
type fakeBackend struct {
	*httptest.Server

	mu       sync.Mutex
	calls    []pipeline.StageID
	sessions []string
	auth     []string
}

func newFakeBackend(t *testing.T, failStage pipeline.StageID) *fakeBackend {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("..", "..", "internal", "remote", "fixtures", "demo.json"))
	if err != nil {
		t.Fatal(err)
	}
	var fixtures map[pipeline.StageID]json.RawMessage
	if err := json.Unmarshal(data, &fixtures); err != nil {
		t.Fatal(err)
	}
	byPath := make(map[string]pipeline.StageID)
	for stage, ep := range remote.DefaultEndpoints() {
		byPath[ep.Path] = stage
	}

	b := &fakeBackend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stage, ok := byPath[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		var body struct {
			SessionID string `json:"session_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		b.calls = append(b.calls, stage)
		if body.SessionID != "" {
			b.sessions = append(b.sessions, body.SessionID)
		}
		b.auth = append(b.auth, r.Header.Get("Authorization"))
		b.mu.Unlock()

		if stage == failStage {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"ECONNRESET"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixtures[stage])
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *fakeBackend) Calls() []pipeline.StageID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]pipeline.StageID(nil), b.calls...)
}

func (b *fakeBackend) Sessions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.sessions...)
}
