package proxy

import (
	"bufio"
	"io"
	"net"
	"net/http"

	"github.com/incendiarybean/proxy-address-blocker/requestlog"
)

// dispatch classifies every inbound request against the traffic
// filter before doing anything else, then routes CONNECT requests to
// the tunnel path and everything else to the forward path.
func dispatch(proxy *Proxy, w http.ResponseWriter, r *http.Request) {
	filter := proxy.filter.Snapshot()

	if filter.Enabled {
		blocked := filter.Blocked(r.URL.String())
		record := requestlog.NewRecord(r.Method, r.URL.String(), blocked)

		proxy.logger.Debug("request classified", "request_id", record.ID.String(),
			"method", record.Method, "uri", record.URI, "blocked", record.Blocked)
		proxy.send(logRequestCommand(record))

		if proxy.metrics != nil {
			proxy.metrics.IncRequests(blockedLabel(blocked))
		}

		if blocked {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("Oopsie Whoopsie!"))
			return
		}
	}

	if r.Method == http.MethodConnect {
		handleConnect(proxy, w, r)
		return
	}

	handleForward(proxy, w, r)
}

func blockedLabel(blocked bool) string {
	if blocked {
		return "blocked"
	}
	return "allowed"
}

// connectAuthority recovers the "host:port" target from a CONNECT
// request. net/http populates r.Host from the request line's
// authority form; r.URL.Host is a fallback for servers that populate
// it instead.
func connectAuthority(r *http.Request) string {
	if r.Host != "" {
		return r.Host
	}
	return r.URL.Host
}

func handleConnect(proxy *Proxy, w http.ResponseWriter, r *http.Request) {
	address := connectAuthority(r)
	if _, _, err := net.SplitHostPort(address); err != nil {
		http.Error(w, "CONNECT must be to a socket address", http.StatusBadRequest)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "connection hijacking not supported", http.StatusInternalServerError)
		return
	}

	clientConn, clientBuffer, err := hijacker.Hijack()
	if err != nil {
		proxy.logger.Warning("hijack failed", "error", err)
		return
	}

	go tunnel(proxy, clientConn, clientBuffer, address)
}

// tunnel dials the requested address and copies bytes in both
// directions until either side closes, mirroring the original's
// copy_bidirectional call. Each direction runs on its own goroutine
// since net.Conn has no single bidirectional-copy primitive.
//
// Reads from the client go through clientBuffer rather than clientConn
// directly: Hijack can return bytes the server already buffered past
// the CONNECT request line, and reading from the raw conn would skip
// them.
func tunnel(proxy *Proxy, clientConn net.Conn, clientBuffer *bufio.ReadWriter, address string) {
	defer clientConn.Close()

	serverConn, err := net.Dial("tcp", address)
	if err != nil {
		proxy.logger.Warning("tunnel dial failed", "address", address, "error", err)
		if proxy.metrics != nil {
			proxy.metrics.IncTunnelErrors()
		}
		return
	}
	defer serverConn.Close()

	if _, err := clientBuffer.WriteString("HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		proxy.logger.Warning("tunnel handshake write failed", "address", address, "error", err)
		return
	}
	if err := clientBuffer.Flush(); err != nil {
		proxy.logger.Warning("tunnel handshake flush failed", "address", address, "error", err)
		return
	}

	if proxy.metrics != nil {
		proxy.metrics.IncActiveConnections()
		defer proxy.metrics.DecActiveConnections()
	}

	done := make(chan error, 2)
	go func() {
		_, err := io.Copy(serverConn, clientBuffer)
		done <- err
	}()
	go func() {
		_, err := io.Copy(clientConn, serverConn)
		done <- err
	}()
	if err := <-done; err != nil {
		proxy.logger.Warning("tunnel copy failed", "address", address, "error", err)
		if proxy.metrics != nil {
			proxy.metrics.IncTunnelErrors()
		}
	}
}

// handleForward relays a plain HTTP request to its target host and
// copies the response back verbatim. Header names are canonicalised
// by net/textproto on the way in and out; see DESIGN.md for why this
// deviates from the original's case-preserving hyper builder.
func handleForward(proxy *Proxy, w http.ResponseWriter, r *http.Request) {
	host := r.URL.Host
	if host == "" {
		host = r.Host
	}
	if host == "" {
		proxy.logger.Debug("host address could not be found", "uri", r.URL.String())
		http.Error(w, "Host address could not be processed.", http.StatusBadRequest)
		return
	}

	outbound := r.Clone(r.Context())
	outbound.RequestURI = ""
	outbound.URL.Scheme = "http"
	outbound.URL.Host = host

	response, err := http.DefaultTransport.RoundTrip(outbound)
	if err != nil {
		proxy.logger.Warning("forward request failed", "host", host, "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer response.Body.Close()

	for key, values := range response.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(response.StatusCode)
	_, _ = io.Copy(w, response.Body)
}
