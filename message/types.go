package message

import "github.com/riftdb/riftdb-go/ids"

// TableUpdate is one table's inserts/deletes for a single transaction, or
// the initial row set for a subscription. Rows are opaque bsatn-encoded
// products; the subscription engine decodes them against the table's
// registered schema.
type TableUpdate struct {
	TableName string
	Inserts   [][]byte
	Deletes   [][]byte
}

// DatabaseUpdate groups per-table updates produced by one reducer call.
type DatabaseUpdate struct {
	Tables []TableUpdate
}

type ReducerCallInfo struct {
	ReducerName string
	ReducerID   uint32
	Args        []byte
	RequestID   uint32
}

// --- Client messages ---

type CallReducer struct {
	ReducerName string
	Args        []byte
	RequestID   uint32
	Flags       CallReducerFlags
}

type Subscribe struct {
	Queries   []string
	RequestID uint32
	QueryID   uint32
}

type Unsubscribe struct {
	RequestID uint32
	QueryID   uint32
}

type OneOffQuery struct {
	MessageID   []byte
	QueryString string
}

// ClientMessage is the sum of every outbound variant. Exactly one field is
// non-nil, selected by Tag.
type ClientMessage struct {
	Tag ClientTag

	CallReducer      *CallReducer
	Subscribe        *Subscribe
	SubscribeMulti   *Subscribe
	Unsubscribe      *Unsubscribe
	UnsubscribeMulti *Unsubscribe
	OneOffQuery      *OneOffQuery
}

// --- Server messages ---

type IdentityTokenMsg struct {
	Identity     ids.Identity
	Token        string
	ConnectionID ids.ConnectionID
}

// TransactionStatus distinguishes a committed transaction from a failed
// (rolled back) one.
type TransactionStatus uint8

const (
	StatusCommitted TransactionStatus = 0
	StatusFailed    TransactionStatus = 1
)

type TransactionUpdate struct {
	Status                TransactionStatus
	Timestamp             ids.Timestamp
	CallerIdentity        ids.Identity
	CallerConnectionID    ids.ConnectionID
	ReducerCall           ReducerCallInfo
	EnergyUsed            uint64
	HostExecutionDuration ids.Duration
	DatabaseUpdate        DatabaseUpdate
}

type TransactionUpdateLight struct {
	Timestamp      ids.Timestamp
	DatabaseUpdate DatabaseUpdate
}

type InitialSubscription struct {
	TotalHostExecutionDuration ids.Duration
	TableRows                  []TableUpdate
}

type SubscribeApplied struct {
	RequestID                  uint32
	TotalHostExecutionDuration ids.Duration
	QueryID                    uint32
	TableRows                  []TableUpdate
}

type UnsubscribeApplied struct {
	RequestID                  uint32
	TotalHostExecutionDuration ids.Duration
	QueryID                    uint32
}

type SubscriptionError struct {
	RequestID *uint32
	QueryID   *uint32
	Message   string
}

type OneOffQueryResponse struct {
	MessageID                  []byte
	Error                      *string
	Tables                     []TableUpdate
	TotalHostExecutionDuration ids.Duration
}

// ServerMessage is the sum of every inbound variant. Exactly one field is
// non-nil, selected by Tag.
type ServerMessage struct {
	Tag ServerTag

	IdentityToken          *IdentityTokenMsg
	TransactionUpdate      *TransactionUpdate
	TransactionUpdateLight *TransactionUpdateLight
	InitialSubscription    *InitialSubscription
	SubscribeApplied       *SubscribeApplied
	UnsubscribeApplied     *UnsubscribeApplied
	SubscriptionError      *SubscriptionError
	OneOffQueryResponse    *OneOffQueryResponse
}
