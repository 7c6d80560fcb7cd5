package peer

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/sideband/internal/envelope"
	"github.com/danmuck/sideband/internal/identity"
	"github.com/danmuck/sideband/internal/peerconfig"
)

func pipePeers(t *testing.T) (*Peer, *Peer) {
	t.Helper()
	a, b := net.Pipe()
	cfg := peerconfig.DefaultConfig()
	cfg.RequestTimeoutMS = 2000
	return New(a, "peer-a", cfg), New(b, "peer-b", cfg)
}

func TestHandshakeRoundTripOverPipe(t *testing.T) {
	pa, pb := pipePeers(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	type outcome struct {
		peerID string
		err    error
	}
	aDone := make(chan outcome, 1)
	bDone := make(chan outcome, 1)
	go func() {
		payload, err := pa.Handshake(ctx, []string{"rpc"}, nil)
		aDone <- outcome{peerID: payload.PeerID, err: err}
	}()
	go func() {
		payload, err := pb.Handshake(ctx, nil, nil)
		bDone <- outcome{peerID: payload.PeerID, err: err}
	}()

	aResult := <-aDone
	bResult := <-bDone
	require.NoError(t, aResult.err)
	require.NoError(t, bResult.err)
	assert.Equal(t, "peer-b", aResult.peerID)
	assert.Equal(t, "peer-a", bResult.peerID)
}

func TestCallIsAnsweredBySuccessReply(t *testing.T) {
	pa, pb := pipePeers(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go func() { _, _ = pa.Handshake(ctx, nil, nil) }()
	_, err := pb.Handshake(ctx, nil, nil)
	require.NoError(t, err)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- pb.Serve(ctx, func(ctx context.Context, subject identity.Subject, req envelope.Envelope) {
			cid, _ := req.CorrelationID()
			_ = pb.ReplySuccess(subject.String(), cid, map[string]string{"echo": "pong"})
		})
	}()
	go func() { _ = pa.Serve(ctx, nil) }()

	resp, err := pa.Call(ctx, "rpc/echo", "ping", map[string]string{"echo": "ping"})
	require.NoError(t, err)
	assert.Equal(t, envelope.TagSuccess, resp.Tag())

	cancel()
	<-serveErr
}

func TestCallIsAnsweredByErrorReply(t *testing.T) {
	pa, pb := pipePeers(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go func() { _, _ = pa.Handshake(ctx, nil, nil) }()
	_, err := pb.Handshake(ctx, nil, nil)
	require.NoError(t, err)

	go func() {
		_ = pb.Serve(ctx, func(ctx context.Context, subject identity.Subject, req envelope.Envelope) {
			cid, _ := req.CorrelationID()
			_ = pb.ReplyError(subject.String(), cid, 4004, "not found", nil)
		})
	}()
	go func() { _ = pa.Serve(ctx, nil) }()

	resp, err := pa.Call(ctx, "rpc/lookup", "get", nil)
	require.NoError(t, err)
	assert.Equal(t, envelope.TagError, resp.Tag())
	code, ok := resp.Code()
	assert.True(t, ok)
	assert.EqualValues(t, 4004, code)
}

func TestCallTimesOutWithNoReply(t *testing.T) {
	pa, pb := pipePeers(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go func() { _, _ = pa.Handshake(ctx, nil, nil) }()
	_, err := pb.Handshake(ctx, nil, nil)
	require.NoError(t, err)

	// pb never replies; drain frames so the pipe doesn't block writers.
	go func() { _ = pb.Serve(ctx, nil) }()

	callCtx, callCancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer callCancel()
	_, err = pa.Call(callCtx, "rpc/silence", "ping", nil)
	assert.Error(t, err)
}

func TestBackoffDelayGrowsWithoutJitter(t *testing.T) {
	cfg := peerconfig.DefaultConfig().Backoff
	cfg.Jitter = false
	first := nextBackoffDelay(cfg, 1, nil)
	second := nextBackoffDelay(cfg, 2, nil)
	third := nextBackoffDelay(cfg, 3, nil)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
}

func TestBackoffDelayRespectsMaxDelay(t *testing.T) {
	cfg := peerconfig.DefaultConfig().Backoff
	cfg.Jitter = false
	cfg.MaxDelayMS = 300
	delay := nextBackoffDelay(cfg, 20, nil)
	assert.LessOrEqual(t, delay, 300*time.Millisecond)
}
