package export

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/http"
	"sync"

	"github.com/vanderheijden86/arbor/pkg/tree"
)

// Preview serves the latest SVG rendering of a tree over HTTP and tells
// connected browsers to reload via Server-Sent Events when it changes.
//
// The tree is single-owner, so the owner calls Update after changes; the
// handlers only read the cached rendering.
type Preview struct {
	opts Options

	mu      sync.RWMutex
	svg     []byte
	version int
	clients map[chan struct{}]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPreview creates a preview hub that renders with opts.
func NewPreview(opts Options) *Preview {
	ctx, cancel := context.WithCancel(context.Background())
	return &Preview{
		opts:    opts,
		clients: make(map[chan struct{}]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Update re-renders t and notifies clients when the drawing changed.
// It must be called from the tree's owner goroutine.
func (p *Preview) Update(t *tree.Tree) error {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, t, p.opts); err != nil {
		return err
	}
	p.mu.Lock()
	if bytes.Equal(buf.Bytes(), p.svg) {
		p.mu.Unlock()
		return nil
	}
	p.svg = buf.Bytes()
	p.version++
	p.mu.Unlock()
	p.notifyClients()
	return nil
}

// Version counts the distinct renderings seen so far.
func (p *Preview) Version() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// Stop disconnects all clients.
func (p *Preview) Stop() {
	p.cancel()
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.clients {
		close(ch)
	}
	p.clients = make(map[chan struct{}]struct{})
}

// ClientCount returns the number of connected clients.
func (p *Preview) ClientCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

func (p *Preview) notifyClients() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for ch := range p.clients {
		select {
		case ch <- struct{}{}:
		default:
			// a reload is already pending for this client
		}
	}
}

// Handler routes "/" (HTML page), "/tree.svg" and "/__preview__/events".
func (p *Preview) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/tree.svg", p.serveSVG)
	mux.HandleFunc("/__preview__/events", p.SSEHandler())
	mux.HandleFunc("/", p.servePage)
	return mux
}

func (p *Preview) serveSVG(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	data := p.svg
	p.mu.RUnlock()
	if data == nil {
		http.Error(w, "no rendering yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

func (p *Preview) servePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	title := p.opts.Title
	if title == "" {
		title = "arbor"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><title>%s</title></head>\n<body>\n<img src=\"/tree.svg\" alt=\"tree\">\n%s\n</body></html>\n",
		html.EscapeString(title), LiveReloadScript)
}

// SSEHandler returns an HTTP handler for the SSE endpoint.
func (p *Preview) SSEHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		clientCh := make(chan struct{}, 1)
		p.mu.Lock()
		p.clients[clientCh] = struct{}{}
		p.mu.Unlock()

		defer func() {
			p.mu.Lock()
			delete(p.clients, clientCh)
			p.mu.Unlock()
		}()

		fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-p.ctx.Done():
				return
			case _, ok := <-clientCh:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: reload\ndata: {\"action\":\"reload\"}\n\n")
				flusher.Flush()
			}
		}
	}
}

// LiveReloadScript connects to the SSE endpoint and reloads on events.
const LiveReloadScript = `<script>
(function() {
  if (typeof(EventSource) === 'undefined') return;
  var reconnectDelay = 1000;
  var maxReconnectDelay = 30000;

  function connect() {
    var es = new EventSource('/__preview__/events');
    es.addEventListener('connected', function() { reconnectDelay = 1000; });
    es.addEventListener('reload', function() { location.reload(); });
    es.onerror = function() {
      es.close();
      setTimeout(connect, reconnectDelay);
      reconnectDelay = Math.min(reconnectDelay * 2, maxReconnectDelay);
    };
  }

  connect();
})();
</script>`
