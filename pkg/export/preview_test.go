package export

import (
	"bufio"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPreview_ServesRendering(t *testing.T) {
	tr := sampleTree(t)
	p := NewPreview(Options{Title: "Docs"})
	defer p.Stop()

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/tree.svg")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before first update, got %d", resp.StatusCode)
	}

	if err := p.Update(tr); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := p.Update(tr); err != nil {
		t.Fatal(err)
	}
	if p.Version() != 1 {
		t.Errorf("expected unchanged tree to keep version 1, got %d", p.Version())
	}

	resp, err = http.Get(srv.URL + "/tree.svg")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("expected svg content type, got %q", ct)
	}
	if !strings.Contains(string(body), "Guides") {
		t.Error("expected rendering to contain labels")
	}

	resp, err = http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "EventSource") || !strings.Contains(string(body), "<title>Docs</title>") {
		t.Errorf("unexpected page:\n%s", body)
	}

	resp, err = http.Get(srv.URL + "/other")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestPreview_ReloadEvent(t *testing.T) {
	tr := sampleTree(t)
	p := NewPreview(Options{})
	defer p.Stop()
	if err := p.Update(tr); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/__preview__/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	lines := bufio.NewReader(resp.Body)
	if line, _ := lines.ReadString('\n'); line != "event: connected\n" {
		t.Fatalf("expected connected event, got %q", line)
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if p.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", p.ClientCount())
	}

	tr.CloseNode("a")
	if err := p.Update(tr); err != nil {
		t.Fatal(err)
	}
	for {
		line, err := lines.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended before reload: %v", err)
		}
		if line == "event: reload\n" {
			break
		}
	}
	if p.Version() != 2 {
		t.Errorf("expected version 2, got %d", p.Version())
	}
}
