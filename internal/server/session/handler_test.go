package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/pushrelay/internal/logging"
	"github.com/dmitrijs2005/pushrelay/internal/protocol"
	"github.com/dmitrijs2005/pushrelay/internal/server/config"
	"github.com/dmitrijs2005/pushrelay/internal/server/relay"
)

type fakeAuth struct {
	authenticated bool
	authErr       error
	capabilities  []protocol.Capability
	aclErr        error
	authCalls     int
}

func (f *fakeAuth) Authenticate(ctx context.Context, identifier, secret, sourceAddr string) (bool, error) {
	f.authCalls++
	return f.authenticated, f.authErr
}

func (f *fakeAuth) ACL(ctx context.Context, identifier string) ([]protocol.Capability, error) {
	return f.capabilities, f.aclErr
}

type fakeSender struct {
	err     error
	calls   int
	channel string
	payload string
}

func (f *fakeSender) Send(ctx context.Context, identifier, channel, payload string) error {
	f.calls++
	f.channel = channel
	f.payload = payload
	return f.err
}

type fakeRecorder struct {
	err     error
	calls   int
	channel string
}

func (f *fakeRecorder) Record(ctx context.Context, identifier, sourceAddr, channel string) error {
	f.calls++
	f.channel = channel
	return f.err
}

func testConfig() *config.Config {
	return &config.Config{
		ReceiveTimeout:         2 * time.Second,
		MaxMessageSize:         4096,
		NotificationChannel:    "relay_notification",
		StatisticsLifeSpanDays: 30,
	}
}

func newHandler(cfg *config.Config, auth *fakeAuth, sender *fakeSender, recorder *fakeRecorder) *Handler {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewHandler(cfg, auth, sender, recorder, logger)
}

func request(channel string) string {
	return fmt.Sprintf(
		`{"identifier":"alice@example.com","secret":"s3cret","channel":%q,"payload":"hello","version":0.100}`,
		channel)
}

// runSession feeds in to the handler over a pipe and returns the decoded
// reply, or ok = false if the handler dropped the session without one.
func runSession(t *testing.T, h *Handler, in string) (protocol.Response, bool) {
	t.Helper()

	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer server.Close()
		h.Handle(context.Background(), server, "10.0.0.5")
	}()

	// The pipe is synchronous and the handler may stop reading early (size
	// limit, garbage input), so the write must not block the test.
	go func() {
		_, _ = client.Write([]byte(in))
	}()

	var resp protocol.Response
	decodeErr := json.NewDecoder(client).Decode(&resp)
	<-done

	if decodeErr != nil {
		return protocol.Response{}, false
	}
	return resp, true
}

func TestHandle_Success(t *testing.T) {
	auth := &fakeAuth{authenticated: true}
	sender := &fakeSender{}
	recorder := &fakeRecorder{}
	h := newHandler(testConfig(), auth, sender, recorder)

	resp, ok := runSession(t, h, request("alerts"))
	require.True(t, ok)
	require.Equal(t, protocol.CodeNoError, resp.Code)

	require.Equal(t, 1, sender.calls)
	require.Equal(t, "alerts", sender.channel)
	require.Equal(t, "hello", sender.payload)
	require.Equal(t, 1, recorder.calls)
}

func TestHandle_StatisticsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.StatisticsLifeSpanDays = 0

	auth := &fakeAuth{authenticated: true}
	sender := &fakeSender{}
	recorder := &fakeRecorder{}
	h := newHandler(cfg, auth, sender, recorder)

	resp, ok := runSession(t, h, request("alerts"))
	require.True(t, ok)
	require.Equal(t, protocol.CodeNoError, resp.Code)
	require.Equal(t, 0, recorder.calls)
}

func TestHandle_RecorderFailureStillNoError(t *testing.T) {
	auth := &fakeAuth{authenticated: true}
	sender := &fakeSender{}
	recorder := &fakeRecorder{err: errors.New("db down")}
	h := newHandler(testConfig(), auth, sender, recorder)

	resp, ok := runSession(t, h, request("alerts"))
	require.True(t, ok)
	require.Equal(t, protocol.CodeNoError, resp.Code)
}

func TestHandle_MissingField(t *testing.T) {
	auth := &fakeAuth{authenticated: true}
	h := newHandler(testConfig(), auth, &fakeSender{}, &fakeRecorder{})

	in := `{"identifier":"alice@example.com","channel":"alerts","payload":"hello","version":0.100}`
	resp, ok := runSession(t, h, in)
	require.True(t, ok)
	require.Equal(t, protocol.CodeIllegalMsgError, resp.Code)

	// The message never reaches authentication.
	require.Equal(t, 0, auth.authCalls)
}

func TestHandle_MistypedField(t *testing.T) {
	h := newHandler(testConfig(), &fakeAuth{}, &fakeSender{}, &fakeRecorder{})

	in := `{"identifier":"alice@example.com","secret":"s3cret","channel":42,"payload":"hello","version":0.100}`
	resp, ok := runSession(t, h, in)
	require.True(t, ok)
	require.Equal(t, protocol.CodeIllegalMsgError, resp.Code)
}

func TestHandle_NonObjectMessage(t *testing.T) {
	h := newHandler(testConfig(), &fakeAuth{}, &fakeSender{}, &fakeRecorder{})

	resp, ok := runSession(t, h, `[1,2,3]`)
	require.True(t, ok)
	require.Equal(t, protocol.CodeIllegalMsgError, resp.Code)
}

func TestHandle_GarbageDropsWithoutReply(t *testing.T) {
	h := newHandler(testConfig(), &fakeAuth{}, &fakeSender{}, &fakeRecorder{})

	_, ok := runSession(t, h, `this is not json`)
	require.False(t, ok)
}

func TestHandle_OversizedMessageDropsWithoutReply(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMessageSize = 64

	h := newHandler(cfg, &fakeAuth{}, &fakeSender{}, &fakeRecorder{})

	in := fmt.Sprintf(`{"identifier":"alice@example.com","secret":"s3cret","channel":"alerts","payload":%q,"version":0.100}`,
		strings.Repeat("x", 200))
	_, ok := runSession(t, h, in)
	require.False(t, ok)
}

func TestHandle_VersionMismatch(t *testing.T) {
	auth := &fakeAuth{authenticated: true}
	h := newHandler(testConfig(), auth, &fakeSender{}, &fakeRecorder{})

	in := `{"identifier":"alice@example.com","secret":"s3cret","channel":"alerts","payload":"hello","version":0.99}`
	resp, ok := runSession(t, h, in)
	require.True(t, ok)
	require.Equal(t, protocol.CodeVersionMismatch, resp.Code)
	require.Equal(t, float64(protocol.ServerVersion), resp.Version)
	require.Equal(t, 0, auth.authCalls)
}

func TestHandle_AuthRejected(t *testing.T) {
	sender := &fakeSender{}
	h := newHandler(testConfig(), &fakeAuth{authenticated: false}, sender, &fakeRecorder{})

	resp, ok := runSession(t, h, request("alerts"))
	require.True(t, ok)
	require.Equal(t, protocol.CodeAuthError, resp.Code)
	require.Equal(t, 0, sender.calls)
}

func TestHandle_AuthStoreError(t *testing.T) {
	h := newHandler(testConfig(), &fakeAuth{authErr: errors.New("db down")}, &fakeSender{}, &fakeRecorder{})

	resp, ok := runSession(t, h, request("alerts"))
	require.True(t, ok)
	require.Equal(t, protocol.CodeDatabaseError, resp.Code)
}

func TestHandle_ReservedChannelWithoutPermission(t *testing.T) {
	sender := &fakeSender{}
	h := newHandler(testConfig(), &fakeAuth{authenticated: true}, sender, &fakeRecorder{})

	resp, ok := runSession(t, h, request("RELAY_NOTIFICATION"))
	require.True(t, ok)
	require.Equal(t, protocol.CodeNoNotificationPermission, resp.Code)
	require.Equal(t, 0, sender.calls)
}

func TestHandle_ReservedChannelCanonicalized(t *testing.T) {
	auth := &fakeAuth{
		authenticated: true,
		capabilities:  []protocol.Capability{protocol.CapabilityNotificationChannel},
	}
	sender := &fakeSender{}
	h := newHandler(testConfig(), auth, sender, &fakeRecorder{})

	resp, ok := runSession(t, h, request("Relay_Notification"))
	require.True(t, ok)
	require.Equal(t, protocol.CodeNoError, resp.Code)
	require.Equal(t, "relay_notification", sender.channel)
}

func TestHandle_RelayErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want protocol.Code
	}{
		{"too big", relay.ErrMessageTooBig, protocol.CodeGatewayMsgTooLarge},
		{"connection", relay.ErrConnection, protocol.CodeGatewayConnection},
		{"auth", relay.ErrAuth, protocol.CodeGatewayAuth},
		{"unknown", relay.ErrUnknown, protocol.CodeGatewayUnknown},
		{"store failure", errors.New("db down"), protocol.CodeDatabaseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &fakeRecorder{}
			h := newHandler(testConfig(), &fakeAuth{authenticated: true}, &fakeSender{err: tt.err}, recorder)

			resp, ok := runSession(t, h, request("alerts"))
			require.True(t, ok)
			require.Equal(t, tt.want, resp.Code)
			require.Equal(t, 0, recorder.calls)
		})
	}
}
