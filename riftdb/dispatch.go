package riftdb

import (
	"fmt"

	"github.com/riftdb/riftdb-go/events"
	"github.com/riftdb/riftdb-go/ids"
	"github.com/riftdb/riftdb-go/message"
	"github.com/riftdb/riftdb-go/subscription"
)

func applyTableUpdatesTo(sub *subscription.Subscription, tables []message.TableUpdate) {
	for _, t := range tables {
		delta := subscription.RowDelta{Table: t.TableName}
		for _, row := range t.Inserts {
			delta.Inserts = append(delta.Inserts, subscription.KeyedRow{
				Key: sub.RowKeyFor(t.TableName, row), Row: row,
			})
		}
		for _, row := range t.Deletes {
			delta.Deletes = append(delta.Deletes, subscription.KeyedRow{
				Key: sub.RowKeyFor(t.TableName, row), Row: row,
			})
		}
		sub.ApplyDelta(delta)
	}
}

func (c *Client) applyTransactionUpdate(m *message.TransactionUpdate) {
	if m == nil {
		return
	}
	if m.ReducerCall.RequestID != 0 {
		reqID := ids.RequestID(m.ReducerCall.RequestID)
		c.tracker.Resolve(reqID, m)

		c.reducerMu.Lock()
		ch, ok := c.reducerWaiters[reqID]
		c.reducerMu.Unlock()
		if ok {
			ch <- m
		}
	}
	if m.Status != message.StatusCommitted {
		return
	}
	c.broadcastDatabaseUpdate(m.DatabaseUpdate)
}

func (c *Client) applyTransactionUpdateLight(m *message.TransactionUpdateLight) {
	if m == nil {
		return
	}
	c.broadcastDatabaseUpdate(m.DatabaseUpdate)
}

// broadcastDatabaseUpdate fans a committed transaction's per-table
// deltas out to every active subscription, since a TransactionUpdate
// carries the full set of changed tables regardless of which
// subscription query they satisfy.
func (c *Client) broadcastDatabaseUpdate(update message.DatabaseUpdate) {
	c.mu.RLock()
	subs := make([]*subscription.Subscription, 0, len(c.subsByQuery))
	for _, s := range c.subsByQuery {
		subs = append(subs, s)
	}
	c.mu.RUnlock()

	for _, s := range subs {
		if s.State() != subscription.StateActive {
			continue
		}
		applyTableUpdatesTo(s, update.Tables)
	}
}

func (c *Client) applyInitialSubscription(m *message.InitialSubscription) {
	if m == nil {
		return
	}
	// A bare (non-multi) subscribe's initial rows arrive without a
	// per-query id; route them to the sole pending subscription if there
	// is exactly one, per spec.md §4.5's Single flavor.
	c.mu.RLock()
	var only *subscription.Subscription
	if len(c.subsByQuery) == 1 {
		for _, s := range c.subsByQuery {
			only = s
		}
	}
	c.mu.RUnlock()
	if only == nil {
		return
	}
	applyTableUpdatesTo(only, m.TableRows)
	_ = only.MarkActive()
}

func (c *Client) applySubscribeApplied(m *message.SubscribeApplied) {
	if m == nil {
		return
	}
	c.mu.RLock()
	sub, ok := c.subsByQuery[ids.QueryID(m.QueryID)]
	c.mu.RUnlock()
	if !ok {
		return
	}
	applyTableUpdatesTo(sub, m.TableRows)
	_ = sub.MarkActive()
	c.tracker.Resolve(ids.RequestID(m.RequestID), sub)
}

func (c *Client) applyUnsubscribeApplied(m *message.UnsubscribeApplied) {
	if m == nil {
		return
	}
	c.mu.Lock()
	sub, ok := c.subsByQuery[ids.QueryID(m.QueryID)]
	if ok {
		sub.Cancel()
		delete(c.subsByQuery, ids.QueryID(m.QueryID))
	}
	c.mu.Unlock()
	c.tracker.Resolve(ids.RequestID(m.RequestID), nil)
}

func (c *Client) applySubscriptionError(m *message.SubscriptionError) {
	if m == nil {
		return
	}
	var qid *ids.QueryID
	if m.QueryID != nil {
		c.mu.RLock()
		sub, ok := c.subsByQuery[ids.QueryID(*m.QueryID)]
		c.mu.RUnlock()
		if ok {
			sub.MarkError(&subscription.SubscriptionError{Kind: subscription.ErrRejected, Message: m.Message})
		}
		q := ids.QueryID(*m.QueryID)
		qid = &q
	}
	c.bus.SubscriptionError.Emit(events.SubscriptionError{QueryID: qid, Message: m.Message})
	if m.RequestID != nil {
		c.tracker.Resolve(ids.RequestID(*m.RequestID), fmt.Errorf("riftdb: subscription rejected: %s", m.Message))
	}
}

func (c *Client) applyOneOffQueryResponse(m *message.OneOffQueryResponse) {
	if m == nil {
		return
	}
	c.oneOffMu.Lock()
	ch, ok := c.oneOffPending[string(m.MessageID)]
	if ok {
		delete(c.oneOffPending, string(m.MessageID))
	}
	c.oneOffMu.Unlock()
	if ok {
		ch <- m
	}
}
