package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artpar/dinogen/domain/datatype"
	"github.com/artpar/dinogen/domain/field"
	"github.com/artpar/dinogen/domain/schemadoc"
)

// =============================================================================
// Client Tests (remote.go)
// =============================================================================

func TestNewClient(t *testing.T) {
	tests := []struct {
		name        string
		cfg         ClientConfig
		wantTimeout time.Duration
	}{
		{
			name: "explicit timeout",
			cfg: ClientConfig{
				BaseURL: "https://gen.example.com",
				APIKey:  "k",
				Timeout: 5 * time.Second,
			},
			wantTimeout: 5 * time.Second,
		},
		{
			name:        "default timeout",
			cfg:         ClientConfig{BaseURL: "https://gen.example.com"},
			wantTimeout: 30 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.cfg)
			if client.baseURL != tt.cfg.BaseURL {
				t.Errorf("baseURL = %q, want %q", client.baseURL, tt.cfg.BaseURL)
			}
			if client.httpClient.Timeout != tt.wantTimeout {
				t.Errorf("timeout = %v, want %v", client.httpClient.Timeout, tt.wantTimeout)
			}
		})
	}
}

func TestNewClient_TransportDefaults(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "https://gen.example.com", MaxIdleConns: 7})
	tr, ok := client.httpClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport = %T", client.httpClient.Transport)
	}
	if tr.MaxIdleConns != 7 || tr.MaxIdleConnsPerHost != 7 {
		t.Errorf("idle conns = %d/%d, want 7", tr.MaxIdleConns, tr.MaxIdleConnsPerHost)
	}
	if tr.IdleConnTimeout != 90*time.Second {
		t.Errorf("idle timeout = %v, want 90s", tr.IdleConnTimeout)
	}
}

func TestClientRequest_Headers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Tenant"); got != "acme" {
			t.Errorf("X-Tenant = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL: server.URL,
		APIKey:  "secret",
		Headers: map[string]string{"X-Tenant": "acme"},
	})

	var result struct {
		OK bool `json:"ok"`
	}
	if err := client.Request(context.Background(), http.MethodPost, "/x", map[string]int{"a": 1}, &result); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !result.OK {
		t.Error("result not decoded")
	}
}

func TestClientRequest_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no such thing"))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	err := client.Request(context.Background(), http.MethodGet, "/missing", nil, nil)

	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *RemoteError", err)
	}
	if re.StatusCode != 404 || re.Message != "no such thing" {
		t.Errorf("RemoteError = %+v", re)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should be true")
	}
}

func TestClientRequest_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	var v map[string]any
	if err := client.Request(context.Background(), http.MethodGet, "/", nil, &v); err == nil {
		t.Error("expected decode error")
	}
}

func TestClientRequest_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	if _, err := client.Do(ctx, http.MethodGet, "/", nil); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestIsNotFound_OtherErrors(t *testing.T) {
	if IsNotFound(errors.New("boom")) {
		t.Error("plain error is not a 404")
	}
	if IsNotFound(&RemoteError{StatusCode: 500}) {
		t.Error("500 is not a 404")
	}
}

// =============================================================================
// CatalogSource Tests (catalog.go)
// =============================================================================

func TestCatalogSource_DataTypes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != DefaultDataTypesPath {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`[{"value":"email","type":"string","format":"email"},{"value":"object","type":"object"}]`))
	}))
	defer server.Close()

	src := NewCatalogSource(NewClient(ClientConfig{BaseURL: server.URL}), "")
	types, err := src.DataTypes(context.Background())
	if err != nil {
		t.Fatalf("DataTypes: %v", err)
	}
	if len(types) != 2 {
		t.Fatalf("len = %d, want 2", len(types))
	}
	if types[0].Value != "email" || types[0].Format != "email" || types[1].Type != "object" {
		t.Errorf("types = %+v", types)
	}
}

func TestCatalogSource_CustomPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/types" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	src := NewCatalogSource(NewClient(ClientConfig{BaseURL: server.URL}), "/types")
	if _, err := src.DataTypes(context.Background()); err != nil {
		t.Fatalf("DataTypes: %v", err)
	}
}

func TestCatalogSource_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	src := NewCatalogSource(NewClient(ClientConfig{BaseURL: server.URL}), "")
	_, err := src.DataTypes(context.Background())
	var re *RemoteError
	if !errors.As(err, &re) || re.StatusCode != 503 {
		t.Errorf("err = %v, want wrapped 503", err)
	}
}

func TestCatalogSource_HealthCheck(t *testing.T) {
	var down atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	src := NewCatalogSource(NewClient(ClientConfig{BaseURL: server.URL}), "")
	if err := src.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}

	down.Store(true)
	if err := src.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck should fail on 502")
	}
}

// =============================================================================
// Generator Tests (generator.go)
// =============================================================================

func TestGenerator_Generate(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != DefaultGeneratePath {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		body, _ = io.ReadAll(r.Body)
		w.Write([]byte(`[{"name":"Ada"},{"name":"Linus"}]`))
	}))
	defer server.Close()

	doc, _ := schemadoc.Build("People", "D", []*field.Node{{ID: "1", KeyTitle: "name", DataType: "string"}}, catalogFixture)
	gen := NewGenerator(NewClient(ClientConfig{BaseURL: server.URL}), "")

	resp, err := gen.Generate(context.Background(), schemadoc.NewRequest(doc, "", 2))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(resp) != `[{"name":"Ada"},{"name":"Linus"}]` {
		t.Errorf("resp = %s", resp)
	}

	var sent struct {
		Schema struct {
			Schema     string                     `json:"$schema"`
			Title      string                     `json:"title"`
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"schema"`
		Format     string `json:"format"`
		NumSamples int    `json:"num_samples"`
	}
	if err := json.Unmarshal(body, &sent); err != nil {
		t.Fatalf("request body %s: %v", body, err)
	}
	if sent.Format != "json" || sent.NumSamples != 2 || sent.Schema.Title != "People" {
		t.Errorf("sent = %+v", sent)
	}
	if sent.Schema.Schema != schemadoc.Draft07 {
		t.Errorf("$schema = %q", sent.Schema.Schema)
	}
	if _, ok := sent.Schema.Properties["name"]; !ok {
		t.Error("properties.name missing from request")
	}
}

func TestGenerator_NonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("done"))
	}))
	defer server.Close()

	gen := NewGenerator(NewClient(ClientConfig{BaseURL: server.URL}), "")
	doc, _ := schemadoc.Build("", "", nil, catalogFixture)
	resp, err := gen.Generate(context.Background(), schemadoc.NewRequest(doc, "json", 1))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(resp) != `"done"` {
		t.Errorf("resp = %s, want \"done\"", resp)
	}
}

func TestGenerator_BodiesKeptVerbatimOrQuoted(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"[ {\"a\": 1} ]", "[ {\"a\": 1} ]"},
		{`say "hi"`, `"say \"hi\""`},
		{"line1\nline2", `"line1\nline2"`},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(tt.body))
		}))

		gen := NewGenerator(NewClient(ClientConfig{BaseURL: server.URL}), "")
		doc, _ := schemadoc.Build("", "", nil, catalogFixture)
		resp, err := gen.Generate(context.Background(), schemadoc.NewRequest(doc, "json", 1))
		server.Close()
		if err != nil {
			t.Fatalf("Generate(%q): %v", tt.body, err)
		}
		if string(resp) != tt.want {
			t.Errorf("Generate(%q) = %s, want %s", tt.body, resp, tt.want)
		}
	}
}

func TestGenerator_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad schema", http.StatusBadRequest)
	}))
	defer server.Close()

	gen := NewGenerator(NewClient(ClientConfig{BaseURL: server.URL}), "")
	doc, _ := schemadoc.Build("", "", nil, catalogFixture)
	if _, err := gen.Generate(context.Background(), schemadoc.NewRequest(doc, "json", 1)); err == nil {
		t.Error("expected error")
	}
}

var catalogFixture = datatype.NewCatalog([]datatype.DataType{{Value: "string", Type: "string"}})
