package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// runAcceptLoop owns the listener and the http.Server built on top of
// it. It is the Go-idiomatic stand-in for the original's manual
// tokio::select accept loop: net/http already multiplexes connections
// onto goroutines and supports hijacking a CONNECT request's raw
// socket, so there is no need to hand-roll either concern.
func runAcceptLoop(proxy *Proxy) {
	defer proxy.wait.Done()

	address := fmt.Sprintf("127.0.0.1:%d", proxy.port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		proxy.send(errorCommand(err.Error()))
		return
	}

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dispatch(proxy, w, r)
		}),
		// A hijacked CONNECT connection leaves the gauge here and is
		// counted again by tunnel() once the tunnel is established.
		ConnState: func(conn net.Conn, state http.ConnState) {
			switch state {
			case http.StateNew:
				proxy.metrics.IncActiveConnections()
			case http.StateClosed, http.StateHijacked:
				proxy.metrics.DecActiveConnections()
			}
		},
	}

	done := make(chan struct{})
	go watchForTermination(proxy, server, done)

	proxy.logger.Global("service is now running...")
	proxy.send(runningCommand())

	err = server.Serve(listener)
	close(done)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		proxy.logger.Warning("accept loop exited unexpectedly", "error", err)
	}

	proxy.send(terminatedCommand())
}

// watchForTermination polls the status cell, the same way the
// original's dedicated termination thread polled its status mutex,
// and shuts the server down once Terminating is observed.
func watchForTermination(proxy *Proxy, server *http.Server, done <-chan struct{}) {
	ticker := time.NewTicker(terminationPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if proxy.Status().Kind == Terminating {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = server.Shutdown(ctx)
				cancel()
				return
			}
		}
	}
}
