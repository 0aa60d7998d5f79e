// Package listener accepts client connections and hands each one to an
// isolated session goroutine. Two variants exist: a TLS TCP listener for
// remote clients and a plain unix-socket listener for trusted same-host
// callers. Both feed the same session handler.
package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/pushrelay/internal/logging"
	"github.com/dmitrijs2005/pushrelay/internal/server/session"
)

type Listener struct {
	network   string
	addr      string
	tlsConfig *tls.Config
	handler   *session.Handler
	logger    logging.Logger
}

// NewTLS builds the public listener with the server certificate/key pair.
func NewTLS(addr, certFile, keyFile string, handler *session.Handler, logger logging.Logger) (*Listener, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}

	return &Listener{
		network: "tcp",
		addr:    addr,
		tlsConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
		handler: handler,
		logger:  logger.With("module", "listener", "transport", "tls"),
	}, nil
}

// NewUnix builds the trusted same-host listener. No TLS; the socket's file
// permissions are the access control.
func NewUnix(path string, handler *session.Handler, logger logging.Logger) *Listener {
	return &Listener{
		network: "unix",
		addr:    path,
		handler: handler,
		logger:  logger.With("module", "listener", "transport", "unix"),
	}
}

// Run accepts connections until ctx is cancelled, then waits for in-flight
// sessions to finish. Sessions are never force-terminated.
func (l *Listener) Run(ctx context.Context) error {
	var ln net.Listener
	var err error
	if l.tlsConfig != nil {
		ln, err = tls.Listen(l.network, l.addr, l.tlsConfig)
	} else {
		ln, err = net.Listen(l.network, l.addr)
	}
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		l.logger.Info(ctx, "stopping listener")
		_ = ln.Close()
	}()

	l.logger.Info(ctx, "listening", "addr", l.addr)

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			l.logger.Error(ctx, "accept failed", "error", err)
			continue
		}

		wg.Add(1)
		go func(conn net.Conn) {
			defer wg.Done()
			defer conn.Close()

			log := l.logger.With("conn", uuid.NewString(), "remote", conn.RemoteAddr().String())
			log.Info(ctx, "client connected")

			// A shutdown stops accepting; running sessions complete.
			l.handler.Handle(context.WithoutCancel(ctx), conn, l.sourceAddr(conn))

			log.Info(ctx, "client disconnected")
		}(conn)
	}

	wg.Wait()
	l.logger.Info(ctx, "listener stopped")
	return nil
}

// sourceAddr is the client identity used for bruteforce tracking and
// statistics: the peer IP for TCP, the loopback address for the unix socket.
func (l *Listener) sourceAddr(conn net.Conn) string {
	if l.network == "unix" {
		return "127.0.0.1"
	}
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
