// Package peer is the example driver: a small, non-normative illustration
// of sequencing a handshake, framing RPC envelopes, and wiring the
// correlation engine over an arbitrary io.ReadWriter. It is glue above the
// wire protocol and RPC correlation core, not part of it.
package peer

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danmuck/sideband/internal/correlation"
	"github.com/danmuck/sideband/internal/envelope"
	"github.com/danmuck/sideband/internal/handshake"
	"github.com/danmuck/sideband/internal/identity"
	"github.com/danmuck/sideband/internal/logging"
	"github.com/danmuck/sideband/internal/peerconfig"
	"github.com/danmuck/sideband/internal/protoerr"
	"github.com/danmuck/sideband/internal/wireframe"
)

// RequestHandler is invoked for each inbound Request or Notification
// envelope Serve dispatches. Implementations that want to answer a Request
// call Peer.ReplySuccess or Peer.ReplyError with the envelope's
// correlation id.
type RequestHandler func(ctx context.Context, subject identity.Subject, req envelope.Envelope)

// Peer wires the wire-protocol and correlation-engine core onto one
// io.ReadWriter connection. ConnectionID is a transport-link identifier
// (minted once per Peer, attached to log lines), distinct from the
// per-frame FrameID the core generates for every frame it sends.
type Peer struct {
	rw          io.ReadWriter
	localPeerID string
	connID      uuid.UUID
	limits      wireframe.Limits
	registry    *correlation.Registry
	logger      zerolog.Logger

	writeMu sync.Mutex
}

// New wires a Peer around an already-connected transport. cfg supplies the
// default request timeout handed to the correlation registry, the frame
// size limit applied to outgoing and incoming frames, and the handshake
// size limit applied to the handshake this Peer sends.
func New(rw io.ReadWriter, localPeerID string, cfg peerconfig.Config) *Peer {
	connID := uuid.New()
	return &Peer{
		rw:          rw,
		localPeerID: localPeerID,
		connID:      connID,
		limits:      wireframe.Limits{MaxFrameBytes: cfg.MaxFrameBytes, MaxHandshakeBytes: cfg.MaxHandshakeBytes},
		registry:    correlation.NewRegistry(cfg.RequestTimeout()),
		logger:      logging.Logger().With().Str("conn_id", connID.String()).Logger(),
	}
}

// ConnectionID returns this Peer's transport-link identifier.
func (p *Peer) ConnectionID() uuid.UUID { return p.connID }

// Handshake sends our Control/Handshake frame and blocks for the peer's,
// enforcing protocol/version agreement before any other exchange. It must
// be the first frame exchanged on the connection.
func (p *Peer) Handshake(ctx context.Context, caps []string, metadata map[string]string) (handshake.Payload, error) {
	hsBytes, err := handshake.Encode(handshake.Payload{PeerID: p.localPeerID, Caps: caps, Metadata: metadata})
	if err != nil {
		return handshake.Payload{}, err
	}
	if err := wireframe.CheckHandshakeSize(hsBytes, p.limits); err != nil {
		return handshake.Payload{}, err
	}
	id, err := identity.NewFrameID()
	if err != nil {
		return handshake.Payload{}, err
	}
	frame, err := wireframe.NewControlFrame(id, wireframe.OpHandshake, hsBytes)
	if err != nil {
		return handshake.Payload{}, err
	}

	// The read must be in flight before the write, since a synchronous
	// transport (e.g. net.Pipe) only unblocks a Write once a concurrent
	// Read is ready to consume it, and the peer is doing the same thing.
	type result struct {
		payload handshake.Payload
		err     error
	}
	done := make(chan result, 1)
	go func() {
		peerFrame, err := p.readFrame()
		if err != nil {
			done <- result{err: err}
			return
		}
		op, ok := peerFrame.ControlOp()
		if peerFrame.Kind() != wireframe.KindControl || !ok || op != wireframe.OpHandshake {
			done <- result{err: fmt.Errorf("%w: expected handshake as first frame, got kind=%s", protoerr.ErrProtocolViolation, peerFrame.Kind())}
			return
		}
		payload, err := handshake.Decode(peerFrame.ControlData())
		done <- result{payload: payload, err: err}
	}()

	if err := p.writeFrame(frame); err != nil {
		return handshake.Payload{}, err
	}

	select {
	case r := <-done:
		if r.err != nil {
			p.logger.Error().Err(r.err).Msg("handshake rejected")
			return handshake.Payload{}, r.err
		}
		p.logger.Info().Str("peer_id", r.payload.PeerID).Msg("handshake accepted")
		return r.payload, nil
	case <-ctx.Done():
		return handshake.Payload{}, ctx.Err()
	}
}

// Call sends a Request envelope as a Message frame on subjectText and
// blocks for its correlated response, which arrives as a Success or Error
// envelope via Serve's dispatch loop running concurrently.
func (p *Peer) Call(ctx context.Context, subjectText, method string, params any) (envelope.Envelope, error) {
	subject, err := identity.ValidateSubject(subjectText)
	if err != nil {
		return envelope.Envelope{}, err
	}
	cid, err := identity.NewFrameID()
	if err != nil {
		return envelope.Envelope{}, err
	}
	env, err := envelope.NewRequest(cid, method, params)
	if err != nil {
		return envelope.Envelope{}, err
	}
	body, err := envelope.Encode(env)
	if err != nil {
		return envelope.Envelope{}, err
	}

	handle, err := p.registry.Register(cid)
	if err != nil {
		return envelope.Envelope{}, err
	}

	frameID, err := identity.NewFrameID()
	if err != nil {
		_ = p.registry.Cancel(cid)
		return envelope.Envelope{}, err
	}
	if err := p.writeFrame(wireframe.NewMessageFrame(frameID, subject, body)); err != nil {
		_ = p.registry.Reject(cid, err)
		return envelope.Envelope{}, err
	}

	value, err := handle.Wait(ctx)
	if err != nil {
		return envelope.Envelope{}, err
	}
	respEnv, ok := value.(envelope.Envelope)
	if !ok {
		return envelope.Envelope{}, fmt.Errorf("peer: correlation registry returned unexpected value type %T", value)
	}
	return respEnv, nil
}

// Notify sends a fire-and-forget Notification envelope on subjectText.
func (p *Peer) Notify(subjectText, event string, payload any) error {
	subject, err := identity.ValidateSubject(subjectText)
	if err != nil {
		return err
	}
	env, err := envelope.NewNotification(event, payload)
	if err != nil {
		return err
	}
	return p.sendEnvelope(subject, env)
}

// ReplySuccess answers an inbound Request with a Success envelope carrying
// cid (the Request's own correlation id) and result.
func (p *Peer) ReplySuccess(subjectText string, cid identity.FrameID, result any) error {
	subject, err := identity.ValidateSubject(subjectText)
	if err != nil {
		return err
	}
	env, err := envelope.NewSuccess(cid, result)
	if err != nil {
		return err
	}
	return p.sendEnvelope(subject, env)
}

// ReplyError answers an inbound Request with an Error envelope carrying
// cid, code, message, and optional data.
func (p *Peer) ReplyError(subjectText string, cid identity.FrameID, code int64, message string, data any) error {
	subject, err := identity.ValidateSubject(subjectText)
	if err != nil {
		return err
	}
	env, err := envelope.NewError(cid, code, message, data)
	if err != nil {
		return err
	}
	return p.sendEnvelope(subject, env)
}

func (p *Peer) sendEnvelope(subject identity.Subject, env envelope.Envelope) error {
	body, err := envelope.Encode(env)
	if err != nil {
		return err
	}
	frameID, err := identity.NewFrameID()
	if err != nil {
		return err
	}
	return p.writeFrame(wireframe.NewMessageFrame(frameID, subject, body))
}

// Close sends a Control/Close frame and discards every pending correlated
// request with ErrDisconnected.
func (p *Peer) Close(reason string) error {
	id, err := identity.NewFrameID()
	if err != nil {
		return err
	}
	var data []byte
	if reason != "" {
		data = []byte(reason)
	}
	frame, err := wireframe.NewControlFrame(id, wireframe.OpClose, data)
	if err != nil {
		return err
	}
	err = p.writeFrame(frame)
	p.registry.Clear()
	return err
}

// Serve reads frames off the transport until ctx is cancelled or a read
// fails, dispatching each to handler or to the correlation registry. It
// returns the error that ended the loop; ctx cancellation yields
// ctx.Err(). Every pending correlated request is discarded via Clear
// before Serve returns.
func (p *Peer) Serve(ctx context.Context, handler RequestHandler) error {
	defer p.registry.Clear()
	frames := make(chan wireframe.Frame)
	errs := make(chan error, 1)
	go func() {
		for {
			fr, err := p.readFrame()
			if err != nil {
				errs <- err
				return
			}
			select {
			case frames <- fr:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return err
		case fr := <-frames:
			p.dispatch(ctx, fr, handler)
		}
	}
}

func (p *Peer) dispatch(ctx context.Context, fr wireframe.Frame, handler RequestHandler) {
	switch fr.Kind() {
	case wireframe.KindMessage:
		p.dispatchMessage(ctx, fr, handler)
	case wireframe.KindControl:
		p.dispatchControl(fr)
	case wireframe.KindAck:
		// Receipt only; the core places no processing obligation on it.
	case wireframe.KindError:
		code, _ := fr.ErrorCode()
		msg, _ := fr.ErrorMessage()
		p.logger.Error().Uint16("code", code).Str("message", msg).Msg("peer sent an error frame")
	}
}

func (p *Peer) dispatchMessage(ctx context.Context, fr wireframe.Frame, handler RequestHandler) {
	subject, _ := fr.Subject()
	env, err := envelope.Decode(fr.Data())
	if err != nil {
		p.logger.Warn().Err(err).Msg("dropping malformed envelope")
		return
	}
	switch env.Tag() {
	case envelope.TagSuccess, envelope.TagError:
		cid, _ := env.CorrelationID()
		if err := p.registry.Match(cid, env); err != nil {
			p.logger.Warn().Err(err).Str("cid", cid.Hex()).Msg("response for unknown or already-resolved correlation id")
		}
	case envelope.TagRequest, envelope.TagNotification:
		if handler != nil {
			handler(ctx, subject, env)
		}
	}
}

func (p *Peer) dispatchControl(fr wireframe.Frame) {
	op, _ := fr.ControlOp()
	switch op {
	case wireframe.OpPing:
		id, err := identity.NewFrameID()
		if err != nil {
			return
		}
		pong, err := wireframe.NewControlFrame(id, wireframe.OpPong, nil)
		if err != nil {
			return
		}
		if err := p.writeFrame(pong); err != nil {
			p.logger.Warn().Err(err).Msg("failed to answer ping with pong")
		}
	case wireframe.OpClose:
		p.logger.Info().Msg("peer requested close")
	}
}

func (p *Peer) writeFrame(f wireframe.Frame) error {
	b, err := wireframe.Encode(f)
	if err != nil {
		return err
	}
	if err := wireframe.CheckSize(b, p.limits); err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	prefix := make([]byte, 4)
	binary.LittleEndian.PutUint32(prefix, uint32(len(b)))
	if _, err := p.rw.Write(prefix); err != nil {
		return fmt.Errorf("peer: write frame length prefix: %w", err)
	}
	if _, err := p.rw.Write(b); err != nil {
		return fmt.Errorf("peer: write frame body: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame off the transport. The
// 4-byte little-endian length prefix is this driver's own stream framing,
// layered above the core (the spec's frame header carries no overall
// length field; it assumes the transport already preserves boundaries).
func (p *Peer) readFrame() (wireframe.Frame, error) {
	prefix := make([]byte, 4)
	if _, err := io.ReadFull(p.rw, prefix); err != nil {
		return wireframe.Frame{}, err
	}
	n := binary.LittleEndian.Uint32(prefix)
	if p.limits.MaxFrameBytes != 0 && n > p.limits.MaxFrameBytes {
		return wireframe.Frame{}, fmt.Errorf("%w: incoming frame of %d bytes exceeds max %d", protoerr.ErrProtocolViolation, n, p.limits.MaxFrameBytes)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(p.rw, buf); err != nil {
		return wireframe.Frame{}, fmt.Errorf("peer: read frame body: %w", err)
	}
	return wireframe.Decode(buf)
}

// Dialer opens a fresh transport connection. It is the caller's
// responsibility to make it respect ctx cancellation.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// DialAndHandshake retries dial with jittered exponential backoff
// (peerconfig.BackoffConfig) until a connection both opens and completes a
// handshake, or ctx is cancelled. On success it returns the live Peer
// (caller owns its lifecycle, including eventually calling Close) and the
// remote peer's handshake payload.
func DialAndHandshake(ctx context.Context, dial Dialer, localPeerID string, cfg peerconfig.Config, caps []string, metadata map[string]string) (*Peer, handshake.Payload, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for attempt := 1; ; attempt++ {
		conn, err := dial(ctx)
		if err == nil {
			p := New(conn, localPeerID, cfg)
			hsCtx, cancel := context.WithTimeout(ctx, cfg.HandshakeTimeout())
			payload, hsErr := p.Handshake(hsCtx, caps, metadata)
			cancel()
			if hsErr == nil {
				return p, payload, nil
			}
			_ = conn.Close()
			err = hsErr
		}

		select {
		case <-ctx.Done():
			return nil, handshake.Payload{}, ctx.Err()
		default:
		}

		logger := logging.Logger()
		logger.Warn().Err(err).Int("attempt", attempt).Msg("dial or handshake failed, retrying")

		delay := nextBackoffDelay(cfg.Backoff, attempt, rng)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, handshake.Payload{}, ctx.Err()
		case <-timer.C:
		}
	}
}
