package riftdb

import (
	"context"
	"fmt"
	"time"

	"github.com/riftdb/riftdb-go/ids"
	"github.com/riftdb/riftdb-go/message"
	"github.com/riftdb/riftdb-go/retrypolicy"
	"github.com/riftdb/riftdb-go/subscription"
)

// ReducerCost is the estimated energy cost of a reducer call, charged
// against the client's energy.Budget before the call is sent.
type ReducerCost float64

// CallReducer sends a reducer invocation without waiting for its
// transaction to commit. The call is rejected before it is ever sent to
// the wire if the energy budget cannot cover cost, unless force is true.
func (c *Client) CallReducer(ctx context.Context, name string, args []byte, cost ReducerCost, force bool) error {
	if c.State() != StateConnected {
		return &ConnectionError{Kind: ErrNotConnected, Message: "client is not connected"}
	}

	resID, err := c.budget.Reserve(float64(cost), force)
	if err != nil {
		return err
	}

	reqID := c.newRequestID()
	sendErr := c.send(ctx, message.ClientMessage{
		Tag: message.TagCallReducer,
		CallReducer: &message.CallReducer{
			ReducerName: name,
			Args:        args,
			RequestID:   uint32(reqID),
		},
	})
	if sendErr != nil {
		c.budget.Release(resID)
		return fmt.Errorf("riftdb: send CallReducer: %w", sendErr)
	}
	c.budget.Consume(resID)
	return nil
}

// CallReducerAndAwait sends a reducer invocation and blocks until its
// TransactionUpdate is observed (or ctx/timeout elapses), returning the
// update so callers can inspect commit status and energy used.
func (c *Client) CallReducerAndAwait(ctx context.Context, name string, args []byte, cost ReducerCost, force bool, timeout time.Duration) (*message.TransactionUpdate, error) {
	if c.State() != StateConnected {
		return nil, &ConnectionError{Kind: ErrNotConnected, Message: "client is not connected"}
	}

	resID, err := c.budget.Reserve(float64(cost), force)
	if err != nil {
		return nil, err
	}

	reqID := c.newRequestID()
	c.tracker.AddPending(reqID, timeout)

	ch := make(chan *message.TransactionUpdate, 1)
	c.reducerMu.Lock()
	c.reducerWaiters[reqID] = ch
	c.reducerMu.Unlock()
	defer func() {
		c.reducerMu.Lock()
		delete(c.reducerWaiters, reqID)
		c.reducerMu.Unlock()
		c.tracker.TakeCompleted(reqID)
	}()

	if err := c.send(ctx, message.ClientMessage{
		Tag: message.TagCallReducer,
		CallReducer: &message.CallReducer{
			ReducerName: name,
			Args:        args,
			RequestID:   uint32(reqID),
		},
	}); err != nil {
		c.budget.Release(resID)
		return nil, fmt.Errorf("riftdb: send CallReducer: %w", err)
	}
	c.budget.Consume(resID)

	select {
	case update, ok := <-ch:
		if !ok {
			return nil, &ConnectionError{Kind: ErrClosed, Message: "connection closed while awaiting reducer result"}
		}
		return update, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, &ConnectionError{Kind: ErrRequestTimeout, Message: name}
	}
}

// Subscribe issues a single combined SQL subscription, per spec.md
// §4.5's Single flavor. It returns as soon as the Subscribe message is
// sent and does not wait for the server's confirmation: the returned
// Subscription stays Pending until an InitialSubscription or
// SubscribeApplied message marks it Active.
func (c *Client) Subscribe(ctx context.Context, queries []string, retryCfg retrypolicy.Config) (*subscription.Subscription, error) {
	if c.State() != StateConnected {
		return nil, &ConnectionError{Kind: ErrNotConnected, Message: "client is not connected"}
	}

	c.requestMu.Lock()
	qid := c.queryAlloc.Next()
	sub := subscription.New(qid, subscription.FlavorSingle, queries, retryCfg)
	c.mu.Lock()
	c.subsByQuery[qid] = sub
	c.mu.Unlock()
	c.requestMu.Unlock()

	reqID := c.newRequestID()
	if err := c.send(ctx, message.ClientMessage{
		Tag:       message.TagSubscribe,
		Subscribe: &message.Subscribe{Queries: queries, RequestID: uint32(reqID), QueryID: uint32(qid)},
	}); err != nil {
		return nil, fmt.Errorf("riftdb: send Subscribe: %w", err)
	}
	return sub, nil
}

// SubscribeMulti behaves like Subscribe but is tracked under its own
// query id independent of other active subscriptions, per spec.md
// §4.5's Multi flavor.
func (c *Client) SubscribeMulti(ctx context.Context, queries []string, retryCfg retrypolicy.Config) (*subscription.Subscription, error) {
	if c.State() != StateConnected {
		return nil, &ConnectionError{Kind: ErrNotConnected, Message: "client is not connected"}
	}

	qid := c.queryAlloc.Next()
	sub := subscription.New(qid, subscription.FlavorMulti, queries, retryCfg)
	c.mu.Lock()
	c.subsByQuery[qid] = sub
	c.mu.Unlock()

	reqID := c.newRequestID()
	if err := c.send(ctx, message.ClientMessage{
		Tag:            message.TagSubscribeMulti,
		SubscribeMulti: &message.Subscribe{Queries: queries, RequestID: uint32(reqID), QueryID: uint32(qid)},
	}); err != nil {
		return nil, fmt.Errorf("riftdb: send SubscribeMulti: %w", err)
	}
	return sub, nil
}

// Unsubscribe cancels an active subscription by its QueryID.
func (c *Client) Unsubscribe(ctx context.Context, qid ids.QueryID) error {
	reqID := c.newRequestID()
	return c.send(ctx, message.ClientMessage{
		Tag:         message.TagUnsubscribe,
		Unsubscribe: &message.Unsubscribe{RequestID: uint32(reqID), QueryID: uint32(qid)},
	})
}

// OneOffQuery runs a single SQL query against the current database
// state without establishing a live subscription, blocking for the
// response or until timeout elapses.
func (c *Client) OneOffQuery(ctx context.Context, query string, timeout time.Duration) (*message.OneOffQueryResponse, error) {
	if c.State() != StateConnected {
		return nil, &ConnectionError{Kind: ErrNotConnected, Message: "client is not connected"}
	}

	msgID := newMessageID()
	ch := make(chan *message.OneOffQueryResponse, 1)

	c.oneOffMu.Lock()
	c.oneOffPending[string(msgID)] = ch
	c.oneOffMu.Unlock()

	if err := c.send(ctx, message.ClientMessage{
		Tag:         message.TagOneOffQuery,
		OneOffQuery: &message.OneOffQuery{MessageID: msgID, QueryString: query},
	}); err != nil {
		c.oneOffMu.Lock()
		delete(c.oneOffPending, string(msgID))
		c.oneOffMu.Unlock()
		return nil, fmt.Errorf("riftdb: send OneOffQuery: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, &ConnectionError{Kind: ErrClosed, Message: "connection closed while awaiting query result"}
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		c.oneOffMu.Lock()
		delete(c.oneOffPending, string(msgID))
		c.oneOffMu.Unlock()
		return nil, &ConnectionError{Kind: ErrRequestTimeout, Message: "one-off query"}
	}
}
