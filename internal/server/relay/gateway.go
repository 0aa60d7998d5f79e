// Package relay builds and sends outbound push notifications through the
// external delivery gateway, switching between inline delivery and stored
// payloads referenced by an opaque id.
package relay

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/pushrelay/internal/logging"
	"github.com/dmitrijs2005/pushrelay/internal/server/config"
	"github.com/dmitrijs2005/pushrelay/internal/server/models"
	"github.com/dmitrijs2005/pushrelay/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pushrelay/internal/server/store"
)

// Gateway outcome errors, matched with errors.Is by the session handler.
var (
	ErrConnection    = errors.New("gateway connection failed")
	ErrMessageTooBig = errors.New("gateway rejected message as too big")
	ErrAuth          = errors.New("gateway authorization failed")
	ErrUnknown       = errors.New("gateway returned unknown error")
)

// payloadIDAlphabet is the id alphabet for deferred payloads: 20 random
// bytes, each mapped into these 62 characters.
const payloadIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const payloadIDLength = 20

type envelope struct {
	Payload   string `json:"payload"`
	Reference string `json:"reference,omitempty"`
}

type message struct {
	Target   string   `json:"target"`
	Data     envelope `json:"data"`
	Priority string   `json:"priority"`
}

type Gateway struct {
	url         string
	authKey     string
	inlineLimit int
	client      *http.Client
	connector   store.Opener
	repos       repomanager.RepositoryManager
	logger      logging.Logger
	now         func() time.Time
}

func NewGateway(cfg *config.Config, connector store.Opener, repos repomanager.RepositoryManager, logger logging.Logger) *Gateway {
	return &Gateway{
		url:         cfg.GatewayURL,
		authKey:     cfg.GatewayAuthKey,
		inlineLimit: cfg.InlineLimit,
		// The original service relied on transport defaults here; an
		// explicit timeout keeps a stalled gateway from pinning sessions.
		client:    &http.Client{Timeout: cfg.GatewayTimeout},
		connector: connector,
		repos:     repos,
		logger:    logger.With("module", "relay"),
		now:       time.Now,
	}
}

// Send delivers payload to the channel. Payloads whose inline envelope
// serializes at or above the inline limit are stored as deferred payloads
// and delivered as a reference id instead.
func (g *Gateway) Send(ctx context.Context, identifier, channel, payload string) error {
	env := envelope{Payload: payload}

	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if len(raw) >= g.inlineLimit {
		id, err := g.storePayload(ctx, identifier, payload)
		if err != nil {
			return err
		}
		env = envelope{Payload: "", Reference: id}
		g.logger.Debug(ctx, "sending message with reference id", "id", id)
	} else {
		g.logger.Debug(ctx, "sending message inline")
	}

	return g.send(ctx, message{
		Target:   "/topics/" + channel,
		Data:     env,
		Priority: "high",
	})
}

// storePayload persists the payload under a fresh collision-checked id.
func (g *Gateway) storePayload(ctx context.Context, identifier, payload string) (string, error) {
	db, err := g.connector.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("store open: %w", err)
	}
	defer db.Close()

	account, err := g.repos.Accounts(db).GetActiveByIdentifier(ctx, identifier)
	if err != nil {
		return "", err
	}

	payloads := g.repos.Payloads(db)

	var id string
	for {
		id, err = newPayloadID()
		if err != nil {
			return "", err
		}
		exists, err := payloads.Exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			break
		}
	}

	err = payloads.Create(ctx, &models.DeferredPayload{
		ID:        id,
		AccountID: account.ID,
		Payload:   payload,
		Timestamp: g.now().Unix(),
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

func newPayloadID() (string, error) {
	b := make([]byte, payloadIDLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	id := make([]byte, payloadIDLength)
	for i, v := range b {
		id[i] = payloadIDAlphabet[int(v)%len(payloadIDAlphabet)]
	}
	return string(id), nil
}

func (g *Gateway) send(ctx context.Context, msg message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", g.authKey)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error(ctx, "sending message to gateway failed", "error", err)
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		g.logger.Debug(ctx, "sending message to gateway successful")
		return nil
	}

	received, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusBadRequest:
		var gatewayError struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(received, &gatewayError) == nil && gatewayError.Error == "MessageTooBig" {
			return ErrMessageTooBig
		}
	case http.StatusUnauthorized:
		return ErrAuth
	}

	g.logger.Error(ctx, "gateway returned unknown error",
		"status", resp.StatusCode, "body", string(received))
	return ErrUnknown
}
