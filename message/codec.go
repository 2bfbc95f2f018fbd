package message

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/riftdb/riftdb-go/bsatn"
	"github.com/riftdb/riftdb-go/compress"
)

// Codec encodes ClientMessages and decodes ServerMessages per spec.md §6's
// frame format: one leading compression-discriminator byte (0 = none,
// 1 = gzip, 2 = brotli), then the codec-encoded message, whose own first
// byte is the variant tag, followed by the payload encoded per its
// declared product shape via the bsatn codec.
type Codec struct {
	bsatn      *bsatn.Codec
	compressor *compress.Manager

	mu        sync.Mutex
	algorithm compress.Algorithm
}

// NewCodec builds a Codec that sends frames uncompressed until
// SetCompression selects an algorithm (the connection runtime does this
// once compression is negotiated).
func NewCodec() *Codec {
	return NewCodecWithCompression(compress.DefaultConfig(), nil)
}

// NewCodecWithCompression builds a Codec whose outbound frames are run
// through a compress.Manager configured with cfg, per spec.md §4.2.
func NewCodecWithCompression(cfg compress.Config, metrics *compress.Metrics) *Codec {
	return &Codec{
		bsatn:      bsatn.NewCodec(nil),
		compressor: compress.NewManager(cfg, metrics),
		algorithm:  compress.None,
	}
}

// SetCompression selects the algorithm applied to frames encoded after
// this call, per the negotiated algorithm in spec.md §4.2.
func (c *Codec) SetCompression(algorithm compress.Algorithm) {
	c.mu.Lock()
	c.algorithm = algorithm
	c.mu.Unlock()
}

func (c *Codec) currentAlgorithm() compress.Algorithm {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.algorithm
}

func (c *Codec) EncodeClient(m ClientMessage) ([]byte, error) {
	var payload bsatn.Value
	var typ bsatn.AlgebraicType

	switch m.Tag {
	case TagCallReducer:
		if m.CallReducer == nil {
			return nil, fmt.Errorf("message: CallReducer tag without payload")
		}
		r := m.CallReducer
		payload = bsatn.VProduct(
			bsatn.VString(r.ReducerName),
			bsatn.VBytes(r.Args),
			bsatn.VU32(r.RequestID),
			bsatn.VU8(uint8(r.Flags)),
		)
		typ = callReducerType
	case TagSubscribe, TagSubscribeMulti:
		s := m.Subscribe
		if m.Tag == TagSubscribeMulti {
			s = m.SubscribeMulti
		}
		if s == nil {
			return nil, fmt.Errorf("message: Subscribe tag without payload")
		}
		payload = bsatn.VProduct(queriesToValue(s.Queries), bsatn.VU32(s.RequestID), bsatn.VU32(s.QueryID))
		typ = subscribeType
	case TagUnsubscribe, TagUnsubscribeMulti:
		u := m.Unsubscribe
		if m.Tag == TagUnsubscribeMulti {
			u = m.UnsubscribeMulti
		}
		if u == nil {
			return nil, fmt.Errorf("message: Unsubscribe tag without payload")
		}
		payload = bsatn.VProduct(bsatn.VU32(u.RequestID), bsatn.VU32(u.QueryID))
		typ = unsubscribeType
	case TagOneOffQuery:
		if m.OneOffQuery == nil {
			return nil, fmt.Errorf("message: OneOffQuery tag without payload")
		}
		o := m.OneOffQuery
		payload = bsatn.VProduct(bsatn.VBytes(o.MessageID), bsatn.VString(o.QueryString))
		typ = oneOffQueryType
	default:
		return nil, fmt.Errorf("message: unknown client tag %d", m.Tag)
	}

	return c.frame(byte(m.Tag), payload, typ)
}

func (c *Codec) frame(tag byte, payload bsatn.Value, typ bsatn.AlgebraicType) ([]byte, error) {
	body, err := c.bsatn.Encode(payload, typ)
	if err != nil {
		return nil, err
	}
	var msg bytes.Buffer
	msg.WriteByte(tag)
	msg.Write(body)

	used, wireBody, err := c.compressor.CompressForSend(msg.Bytes(), c.currentAlgorithm())
	if err != nil {
		return nil, fmt.Errorf("message: compress frame: %w", err)
	}
	var wire bytes.Buffer
	wire.WriteByte(byte(used))
	wire.Write(wireBody)
	return wire.Bytes(), nil
}

// unwrapFrame strips the leading compression discriminator byte and
// decompresses the remainder, per spec.md §6's frame format.
func (c *Codec) unwrapFrame(b []byte) ([]byte, error) {
	if len(b) < 1 {
		return nil, fmt.Errorf("message: empty frame")
	}
	algorithm := compress.Algorithm(b[0])
	body, err := c.compressor.DecompressReceived(algorithm, b[1:])
	if err != nil {
		return nil, fmt.Errorf("message: decompress frame: %w", err)
	}
	return body, nil
}

// DecodeServer parses a full server frame (compression byte, variant tag,
// payload) into a ServerMessage.
func (c *Codec) DecodeServer(b []byte) (ServerMessage, error) {
	msg, err := c.unwrapFrame(b)
	if err != nil {
		return ServerMessage{}, err
	}
	if len(msg) < 1 {
		return ServerMessage{}, fmt.Errorf("message: empty frame")
	}
	tag := ServerTag(msg[0])
	body := msg[1:]

	switch tag {
	case TagIdentityToken:
		v, err := c.bsatn.Decode(body, identityTokenType)
		if err != nil {
			return ServerMessage{}, err
		}
		msg := identityTokenFromValue(v)
		return ServerMessage{Tag: tag, IdentityToken: &msg}, nil
	case TagTransactionUpdate:
		v, err := c.bsatn.Decode(body, transactionUpdateType)
		if err != nil {
			return ServerMessage{}, err
		}
		msg := transactionUpdateFromValue(v)
		return ServerMessage{Tag: tag, TransactionUpdate: &msg}, nil
	case TagTransactionUpdateLite:
		v, err := c.bsatn.Decode(body, transactionUpdateLightType)
		if err != nil {
			return ServerMessage{}, err
		}
		msg := transactionUpdateLightFromValue(v)
		return ServerMessage{Tag: tag, TransactionUpdateLight: &msg}, nil
	case TagInitialSubscription:
		v, err := c.bsatn.Decode(body, initialSubscriptionType)
		if err != nil {
			return ServerMessage{}, err
		}
		msg := InitialSubscription{
			TotalHostExecutionDuration: v.Product[0].DurV,
			TableRows:                  tableUpdatesFromValue(v.Product[1]),
		}
		return ServerMessage{Tag: tag, InitialSubscription: &msg}, nil
	case TagSubscribeApplied:
		v, err := c.bsatn.Decode(body, subscribeAppliedType)
		if err != nil {
			return ServerMessage{}, err
		}
		msg := SubscribeApplied{
			RequestID:                  v.Product[0].U32,
			TotalHostExecutionDuration: v.Product[1].DurV,
			QueryID:                    v.Product[2].U32,
			TableRows:                  tableUpdatesFromValue(v.Product[3]),
		}
		return ServerMessage{Tag: tag, SubscribeApplied: &msg}, nil
	case TagUnsubscribeApplied:
		v, err := c.bsatn.Decode(body, unsubscribeAppliedType)
		if err != nil {
			return ServerMessage{}, err
		}
		msg := UnsubscribeApplied{
			RequestID:                  v.Product[0].U32,
			TotalHostExecutionDuration: v.Product[1].DurV,
			QueryID:                    v.Product[2].U32,
		}
		return ServerMessage{Tag: tag, UnsubscribeApplied: &msg}, nil
	case TagSubscriptionError:
		v, err := c.bsatn.Decode(body, subscriptionErrorType)
		if err != nil {
			return ServerMessage{}, err
		}
		msg := SubscriptionError{
			RequestID: optU32FromValue(v.Product[0]),
			QueryID:   optU32FromValue(v.Product[1]),
			Message:   v.Product[2].Str,
		}
		return ServerMessage{Tag: tag, SubscriptionError: &msg}, nil
	case TagOneOffQueryResponse:
		v, err := c.bsatn.Decode(body, oneOffQueryResponseType)
		if err != nil {
			return ServerMessage{}, err
		}
		msg := OneOffQueryResponse{
			MessageID:                  v.Product[0].Bin,
			Error:                      optStringFromValue(v.Product[1]),
			Tables:                     tableUpdatesFromValue(v.Product[2]),
			TotalHostExecutionDuration: v.Product[3].DurV,
		}
		return ServerMessage{Tag: tag, OneOffQueryResponse: &msg}, nil
	default:
		return ServerMessage{}, fmt.Errorf("message: unknown server tag %d", tag)
	}
}

// EncodeServer is used by test fakes (riftdbtest) that need to play a
// server role without a real socket.
func (c *Codec) EncodeServer(m ServerMessage) ([]byte, error) {
	switch m.Tag {
	case TagIdentityToken:
		return c.frame(byte(m.Tag), identityTokenToValue(*m.IdentityToken), identityTokenType)
	case TagTransactionUpdate:
		return c.frame(byte(m.Tag), transactionUpdateToValue(*m.TransactionUpdate), transactionUpdateType)
	case TagTransactionUpdateLite:
		return c.frame(byte(m.Tag), transactionUpdateLightToValue(*m.TransactionUpdateLight), transactionUpdateLightType)
	case TagInitialSubscription:
		p := bsatn.VProduct(bsatn.VDuration(m.InitialSubscription.TotalHostExecutionDuration), tableUpdatesToValue(m.InitialSubscription.TableRows))
		return c.frame(byte(m.Tag), p, initialSubscriptionType)
	case TagSubscribeApplied:
		s := m.SubscribeApplied
		p := bsatn.VProduct(bsatn.VU32(s.RequestID), bsatn.VDuration(s.TotalHostExecutionDuration), bsatn.VU32(s.QueryID), tableUpdatesToValue(s.TableRows))
		return c.frame(byte(m.Tag), p, subscribeAppliedType)
	case TagUnsubscribeApplied:
		u := m.UnsubscribeApplied
		p := bsatn.VProduct(bsatn.VU32(u.RequestID), bsatn.VDuration(u.TotalHostExecutionDuration), bsatn.VU32(u.QueryID))
		return c.frame(byte(m.Tag), p, unsubscribeAppliedType)
	case TagSubscriptionError:
		e := m.SubscriptionError
		p := bsatn.VProduct(optU32ToValue(e.RequestID), optU32ToValue(e.QueryID), bsatn.VString(e.Message))
		return c.frame(byte(m.Tag), p, subscriptionErrorType)
	case TagOneOffQueryResponse:
		o := m.OneOffQueryResponse
		p := bsatn.VProduct(bsatn.VBytes(o.MessageID), optStringToValue(o.Error), tableUpdatesToValue(o.Tables), bsatn.VDuration(o.TotalHostExecutionDuration))
		return c.frame(byte(m.Tag), p, oneOffQueryResponseType)
	default:
		return nil, fmt.Errorf("message: unknown server tag %d", m.Tag)
	}
}

// DecodeClient is used by test fakes that play the server role and need to
// interpret what the client sent.
func (c *Codec) DecodeClient(b []byte) (ClientMessage, error) {
	msg, err := c.unwrapFrame(b)
	if err != nil {
		return ClientMessage{}, err
	}
	if len(msg) < 1 {
		return ClientMessage{}, fmt.Errorf("message: empty frame")
	}
	tag := ClientTag(msg[0])
	body := msg[1:]

	switch tag {
	case TagCallReducer:
		v, err := c.bsatn.Decode(body, callReducerType)
		if err != nil {
			return ClientMessage{}, err
		}
		cr := CallReducer{
			ReducerName: v.Product[0].Str,
			Args:        v.Product[1].Bin,
			RequestID:   v.Product[2].U32,
			Flags:       CallReducerFlags(v.Product[3].U8),
		}
		return ClientMessage{Tag: tag, CallReducer: &cr}, nil
	case TagSubscribe, TagSubscribeMulti:
		v, err := c.bsatn.Decode(body, subscribeType)
		if err != nil {
			return ClientMessage{}, err
		}
		s := Subscribe{Queries: queriesFromValue(v.Product[0]), RequestID: v.Product[1].U32, QueryID: v.Product[2].U32}
		m := ClientMessage{Tag: tag}
		if tag == TagSubscribeMulti {
			m.SubscribeMulti = &s
		} else {
			m.Subscribe = &s
		}
		return m, nil
	case TagUnsubscribe, TagUnsubscribeMulti:
		v, err := c.bsatn.Decode(body, unsubscribeType)
		if err != nil {
			return ClientMessage{}, err
		}
		u := Unsubscribe{RequestID: v.Product[0].U32, QueryID: v.Product[1].U32}
		m := ClientMessage{Tag: tag}
		if tag == TagUnsubscribeMulti {
			m.UnsubscribeMulti = &u
		} else {
			m.Unsubscribe = &u
		}
		return m, nil
	case TagOneOffQuery:
		v, err := c.bsatn.Decode(body, oneOffQueryType)
		if err != nil {
			return ClientMessage{}, err
		}
		o := OneOffQuery{MessageID: v.Product[0].Bin, QueryString: v.Product[1].Str}
		return ClientMessage{Tag: tag, OneOffQuery: &o}, nil
	default:
		return ClientMessage{}, fmt.Errorf("message: unknown client tag %d", tag)
	}
}
