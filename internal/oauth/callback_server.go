package oauth

import (
	"context"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// CallbackTimeout is how long to wait for the OAuth callback.
const CallbackTimeout = 10 * time.Minute

var callbackSuccessTemplate = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head><title>Signed in</title></head>
<body>
<h1>Authentication complete</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`))

var callbackErrorTemplate = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign-in failed</title></head>
<body>
<h1>Authentication failed</h1>
<p><code>{{.Error}}</code></p>
<p>{{.Description}}</p>
</body>
</html>`))

// CallbackResult represents the redirect received by the callback server.
type CallbackResult struct {
	// RedirectURL is the full redirect target including its query.
	RedirectURL string

	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// IsError returns true if the callback result represents an error.
func (r *CallbackResult) IsError() bool {
	return r.Error != ""
}

// CallbackServer is a temporary loopback HTTP server for receiving the
// authorization redirect. It starts, waits for a single callback, then shuts down.
type CallbackServer struct {
	redirectURI *url.URL
	server      *http.Server
	listener    net.Listener
	resultCh    chan *CallbackResult
	errorCh     chan error
	once        sync.Once
	stopOnce    sync.Once
}

// NewCallbackServer creates a callback server for a loopback redirect URI such
// as http://localhost:3000/callback.
func NewCallbackServer(redirectURI string) (*CallbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}
	if u.Scheme != "http" || (u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1") {
		return nil, fmt.Errorf("redirect URI %q is not a loopback http address", redirectURI)
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return &CallbackServer{
		redirectURI: u,
		resultCh:    make(chan *CallbackResult, 1),
		errorCh:     make(chan error, 1),
	}, nil
}

// Start starts the callback server. The server stops when ctx is cancelled.
func (s *CallbackServer) Start(ctx context.Context) error {
	port := s.redirectURI.Port()
	if port == "" {
		port = "80"
	}
	addr := net.JoinHostPort("127.0.0.1", port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(s.redirectURI.Path, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// WaitForCallback waits for the redirect or until ctx is done.
func (s *CallbackServer) WaitForCallback(ctx context.Context) (*CallbackResult, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	redirect := *s.redirectURI
	redirect.RawQuery = r.URL.RawQuery

	query := r.URL.Query()
	result := &CallbackResult{
		RedirectURL:      redirect.String(),
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	tmpl := callbackSuccessTemplate
	data := map[string]string{}
	if result.IsError() {
		tmpl = callbackErrorTemplate
		data = map[string]string{
			"Error":       result.Error,
			"Description": result.ErrorDescription,
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}

	select {
	case s.resultCh <- result:
	default:
	}

	go func() {
		time.Sleep(time.Second)
		s.Stop()
	}()
}

// Stop gracefully shuts down the callback server.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(ctx)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// Addr returns the address the server listens on, once started.
func (s *CallbackServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
