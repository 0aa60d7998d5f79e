// Package session drives the per-connection protocol: one request in, at
// most one reply out, then the connection is done.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/dmitrijs2005/pushrelay/internal/logging"
	"github.com/dmitrijs2005/pushrelay/internal/protocol"
	"github.com/dmitrijs2005/pushrelay/internal/server/config"
	"github.com/dmitrijs2005/pushrelay/internal/server/relay"
)

// Authenticator verifies credentials and resolves account capabilities.
type Authenticator interface {
	Authenticate(ctx context.Context, identifier, secret, sourceAddr string) (bool, error)
	ACL(ctx context.Context, identifier string) ([]protocol.Capability, error)
}

// Sender forwards a notification to the delivery gateway.
type Sender interface {
	Send(ctx context.Context, identifier, channel, payload string) error
}

// Recorder appends send statistics.
type Recorder interface {
	Record(ctx context.Context, identifier, sourceAddr, channel string) error
}

type Handler struct {
	auth                Authenticator
	gateway             Sender
	stats               Recorder
	receiveTimeout      time.Duration
	maxMessageSize      int
	notificationChannel string
	statisticsEnabled   bool
	logger              logging.Logger
}

func NewHandler(cfg *config.Config, auth Authenticator, gateway Sender, stats Recorder, logger logging.Logger) *Handler {
	return &Handler{
		auth:                auth,
		gateway:             gateway,
		stats:               stats,
		receiveTimeout:      cfg.ReceiveTimeout,
		maxMessageSize:      cfg.MaxMessageSize,
		notificationChannel: cfg.NotificationChannel,
		statisticsEnabled:   cfg.StatisticsLifeSpanDays != 0,
		logger:              logger.With("module", "session"),
	}
}

// Handle runs one session on conn. sourceAddr is the client's address as
// used for bruteforce tracking and statistics. Receive problems (timeout,
// broken transport, undecodable bytes) end the session without a reply;
// everything after a decoded message is answered with exactly one response.
func (h *Handler) Handle(ctx context.Context, conn net.Conn, sourceAddr string) {
	log := h.logger.With("addr", sourceAddr)

	_ = conn.SetReadDeadline(time.Now().Add(h.receiveTimeout))

	var raw json.RawMessage
	dec := json.NewDecoder(io.LimitReader(conn, int64(h.maxMessageSize)))
	if err := dec.Decode(&raw); err != nil {
		log.Warn(ctx, "receiving data failed", "error", err)
		return
	}

	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		if errors.Is(err, protocol.ErrIllegalMessage) {
			h.respond(conn, protocol.Response{Code: protocol.CodeIllegalMsgError})
		}
		return
	}

	if !protocol.CompatibleVersions(protocol.ServerVersion, req.Version) {
		log.Error(ctx, "protocol version not compatible",
			"client_version", req.Version, "server_version", protocol.ServerVersion)
		h.respond(conn, protocol.Response{
			Code:    protocol.CodeVersionMismatch,
			Version: protocol.ServerVersion,
		})
		return
	}

	authenticated, err := h.auth.Authenticate(ctx, req.Identifier, req.Secret, sourceAddr)
	if err != nil {
		log.Error(ctx, "authentication failed", "error", err)
		h.respond(conn, protocol.Response{Code: protocol.CodeDatabaseError})
		return
	}
	if !authenticated {
		h.respond(conn, protocol.Response{Code: protocol.CodeAuthError})
		return
	}

	log.Info(ctx, "successfully authenticated", "identifier", req.Identifier)

	capabilities, err := h.auth.ACL(ctx, req.Identifier)
	if err != nil {
		log.Error(ctx, "fetching acl failed", "error", err)
		h.respond(conn, protocol.Response{Code: protocol.CodeDatabaseError})
		return
	}

	// Only accounts with the broadcast capability may send to the reserved
	// notification channel; the reserved casing wins over the caller's.
	channel := req.Channel
	if strings.EqualFold(channel, h.notificationChannel) {
		if !hasCapability(capabilities, protocol.CapabilityNotificationChannel) {
			h.respond(conn, protocol.Response{Code: protocol.CodeNoNotificationPermission})
			return
		}
		channel = h.notificationChannel
	}

	if err := h.gateway.Send(ctx, req.Identifier, channel, req.Payload); err != nil {
		h.respond(conn, protocol.Response{Code: codeForRelayError(err)})
		return
	}

	if h.statisticsEnabled {
		if err := h.stats.Record(ctx, req.Identifier, sourceAddr, channel); err != nil {
			// The relay already succeeded; the client still gets NO_ERROR.
			log.Error(ctx, "not able to add send statistics data", "error", err)
		}
	}

	h.respond(conn, protocol.Response{Code: protocol.CodeNoError})
}

// respond writes the single reply. A broken transport cannot reliably carry
// a response, so write failures are swallowed.
func (h *Handler) respond(conn net.Conn, resp protocol.Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_, _ = conn.Write(b)
}

func hasCapability(capabilities []protocol.Capability, c protocol.Capability) bool {
	for _, have := range capabilities {
		if have == c {
			return true
		}
	}
	return false
}

func codeForRelayError(err error) protocol.Code {
	switch {
	case errors.Is(err, relay.ErrConnection):
		return protocol.CodeGatewayConnection
	case errors.Is(err, relay.ErrMessageTooBig):
		return protocol.CodeGatewayMsgTooLarge
	case errors.Is(err, relay.ErrAuth):
		return protocol.CodeGatewayAuth
	case errors.Is(err, relay.ErrUnknown):
		return protocol.CodeGatewayUnknown
	default:
		// Anything else is the store failing underneath the gateway
		// (deferred payload persistence).
		return protocol.CodeDatabaseError
	}
}
