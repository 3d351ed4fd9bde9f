package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"agora/cmd/identity"
	"agora/cmd/identity/ids"
)

const (
	streamSubprotocol = "agora.notify.v1"

	streamDefaultSendQueueSize = 256
	streamMinSendQueueSize     = 32

	streamDefaultWriteTimeout = 5 * time.Second
	streamCloseGrace          = 1 * time.Second

	streamHeartbeatInterval = 30 * time.Second
	streamHeartbeatTimeout  = 10 * time.Second
	streamMaxPingFailures   = 3

	streamMaxFrameBytes = 4 * 1024

	// Security defaults:
	// - Origin is required by default.
	// - Only localhost is allowed by default (secure-by-default for dev).
	streamDefaultOriginRequired = true
	streamDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// Authenticator resolves the principal for an incoming stream request.
type Authenticator func(r *http.Request) (identity.Principal, error)

// StreamGateway is the WebSocket entrypoint for the live notification stream.
//
// The stream is server-push only: inbound frames are read solely to detect
// peer close and are otherwise discarded. Authorization happens before the
// upgrade, so an unauthenticated request never holds a socket.
type StreamGateway struct {
	log      *slog.Logger
	registry *Registry
	auth     Authenticator

	devInsecure    bool
	originRequired bool
	allowedOrigins []string

	// Derived for websocket.Accept origin checks.
	originPatterns []string

	writeTimeout  time.Duration
	sendQueueSize int

	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration
}

// NewStreamGateway constructs a gateway with secure defaults.
func NewStreamGateway(log *slog.Logger, registry *Registry, auth Authenticator) *StreamGateway {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	g := &StreamGateway{log: log, registry: registry, auth: auth}

	// NOTE: InsecureSkipVerify is a dev-only knob (TLS verification). It is not an origin policy.
	g.devInsecure = envBoolStream("AGORA_STREAM_DEV_INSECURE", false)

	g.originRequired = envBoolStream("AGORA_STREAM_ORIGIN_REQUIRED", streamDefaultOriginRequired)
	g.allowedOrigins = envCSVStream("AGORA_STREAM_ALLOWED_ORIGINS", streamDefaultAllowedOrigins)

	// websocket.Accept enforces its own origin policy: same-host is ok,
	// cross-origin requires OriginPatterns. Derive the patterns from the
	// allowlist so the two layers agree.
	g.originPatterns = deriveOriginPatterns(g.allowedOrigins)

	g.writeTimeout = envDurationStream("AGORA_STREAM_WRITE_TIMEOUT", streamDefaultWriteTimeout)

	g.sendQueueSize = envIntStream("AGORA_STREAM_SEND_QUEUE", streamDefaultSendQueueSize)
	if g.sendQueueSize < streamMinSendQueueSize {
		g.sendQueueSize = streamMinSendQueueSize
	}

	g.heartbeatEvery = envDurationStream("AGORA_STREAM_HEARTBEAT_INTERVAL", streamHeartbeatInterval)
	g.heartbeatTimeout = envDurationStream("AGORA_STREAM_HEARTBEAT_TIMEOUT", streamHeartbeatTimeout)

	return g
}

// ServeHTTP adapter so the gateway can be mounted as http.Handler.
func (g *StreamGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleStream(w, r)
}

// HandleStream authenticates, upgrades, subscribes the session, and pumps
// events until either side goes away.
func (g *StreamGateway) HandleStream(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("stream.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	principal, err := g.auth(r)
	if err != nil {
		g.log.Info("stream.reject.auth", "err", err, "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{streamSubprotocol},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Error("stream.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != streamSubprotocol {
		g.log.Info("stream.reject.subprotocol", "got", sp, "want", streamSubprotocol)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(streamMaxFrameBytes)

	sessionID := ids.MustULID(time.Now().UTC())
	client := NewClient(principal.UserID, sessionID, g.sendQueueSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// shutdown is idempotent. It does NOT close client.Send.
	// Push safety: registry removal happens before client.Close.
	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			g.registry.Unsubscribe(principal.UserID, sessionID)
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	g.registry.Subscribe(client)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case ev := <-client.Send:
				if err := writeEvent(ctx, conn, ev, g.writeTimeout); err != nil {
					g.log.Info("stream.write.fail", "session_id", sessionID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("stream.ping.fail", "session_id", sessionID, "failures", failures, "err", err)
					if failures >= streamMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	// Read loop exists only to notice the peer going away. Frames are
	// discarded; the stream carries no client-to-server commands.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			if websocket.CloseStatus(err) != -1 {
				shutdown(websocket.StatusNormalClosure, "peer closed")
			} else if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
				shutdown(websocket.StatusNormalClosure, "context done")
			} else {
				g.log.Info("stream.read.fail", "session_id", sessionID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
			}
			break
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(streamCloseGrace):
	}
}

func writeEvent(parent context.Context, conn *websocket.Conn, ev Event, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- origin policy ----

func (g *StreamGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			// Strongly discouraged, but honored if explicitly configured.
			return nil
		}

		// Full origin match (scheme + host + optional port).
		if origin == a {
			return nil
		}

		// Host match fallback (ignores port/scheme).
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// URL form.
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	// host[:port] form.
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatterns(allowed []string) []string {
	// websocket.Accept matches OriginPatterns against the origin host using
	// filepath.Match patterns; only hosts from the allowlist are accepted.
	seen := make(map[string]struct{}, len(allowed))

	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}

	// Stable in-file sort (avoid importing sort just for this).
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	return out
}

// ---- env helpers ----

func envBoolStream(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envIntStream(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDurationStream(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSVStream(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
