// Package message defines the client/server message variants of spec.md §4.1
// and §6: sum types with a single leading discriminator byte, whose payload
// is a bsatn product encoded per its declared shape.
package message

import "github.com/riftdb/riftdb-go/bsatn"

// ClientTag discriminates outbound message variants.
type ClientTag uint8

const (
	TagCallReducer      ClientTag = 0
	TagSubscribe        ClientTag = 1
	TagSubscribeMulti   ClientTag = 2
	TagUnsubscribe      ClientTag = 3
	TagUnsubscribeMulti ClientTag = 4
	TagOneOffQuery      ClientTag = 5
)

// ServerTag discriminates inbound message variants.
type ServerTag uint8

const (
	TagIdentityToken         ServerTag = 0
	TagTransactionUpdate     ServerTag = 1
	TagTransactionUpdateLite ServerTag = 2
	TagInitialSubscription   ServerTag = 3
	TagSubscribeApplied      ServerTag = 4
	TagUnsubscribeApplied    ServerTag = 5
	TagSubscriptionError     ServerTag = 6
	TagOneOffQueryResponse   ServerTag = 7
)

// CallReducerFlags is a bitmask carried on CallReducer requests.
type CallReducerFlags uint8

const (
	FlagFullUpdate      CallReducerFlags = 1 << 0
	FlagNoSuccessNotify CallReducerFlags = 1 << 1
)

// Product type schemas for every message payload, named so a type
// registry could resolve them if message bodies ever need to recurse.
var (
	tableUpdateType = bsatn.Product(
		bsatn.Field{Name: "table_name", Type: bsatn.String()},
		bsatn.Field{Name: "inserts", Type: bsatn.List(bsatn.Bytes())},
		bsatn.Field{Name: "deletes", Type: bsatn.List(bsatn.Bytes())},
	)

	databaseUpdateType = bsatn.Product(
		bsatn.Field{Name: "tables", Type: bsatn.List(tableUpdateType)},
	)

	reducerCallInfoType = bsatn.Product(
		bsatn.Field{Name: "reducer_name", Type: bsatn.String()},
		bsatn.Field{Name: "reducer_id", Type: bsatn.U32()},
		bsatn.Field{Name: "args", Type: bsatn.Bytes()},
		bsatn.Field{Name: "request_id", Type: bsatn.U32()},
	)

	callReducerType = bsatn.Product(
		bsatn.Field{Name: "reducer_name", Type: bsatn.String()},
		bsatn.Field{Name: "args", Type: bsatn.Bytes()},
		bsatn.Field{Name: "request_id", Type: bsatn.U32()},
		bsatn.Field{Name: "flags", Type: bsatn.U8()},
	)

	subscribeType = bsatn.Product(
		bsatn.Field{Name: "queries", Type: bsatn.List(bsatn.String())},
		bsatn.Field{Name: "request_id", Type: bsatn.U32()},
		bsatn.Field{Name: "query_id", Type: bsatn.U32()},
	)

	unsubscribeType = bsatn.Product(
		bsatn.Field{Name: "request_id", Type: bsatn.U32()},
		bsatn.Field{Name: "query_id", Type: bsatn.U32()},
	)

	oneOffQueryType = bsatn.Product(
		bsatn.Field{Name: "message_id", Type: bsatn.Bytes()},
		bsatn.Field{Name: "query_string", Type: bsatn.String()},
	)

	identityTokenType = bsatn.Product(
		bsatn.Field{Name: "identity", Type: bsatn.Identity()},
		bsatn.Field{Name: "token", Type: bsatn.String()},
		bsatn.Field{Name: "connection_id", Type: bsatn.Address()},
	)

	transactionUpdateType = bsatn.Product(
		bsatn.Field{Name: "status", Type: bsatn.U8()},
		bsatn.Field{Name: "timestamp", Type: bsatn.TimestampType()},
		bsatn.Field{Name: "caller_identity", Type: bsatn.Identity()},
		bsatn.Field{Name: "caller_connection_id", Type: bsatn.Address()},
		bsatn.Field{Name: "reducer_call", Type: reducerCallInfoType},
		bsatn.Field{Name: "energy_used", Type: bsatn.U64()},
		bsatn.Field{Name: "host_execution_duration", Type: bsatn.DurationType()},
		bsatn.Field{Name: "database_update", Type: databaseUpdateType},
	)

	transactionUpdateLightType = bsatn.Product(
		bsatn.Field{Name: "timestamp", Type: bsatn.TimestampType()},
		bsatn.Field{Name: "database_update", Type: databaseUpdateType},
	)

	initialSubscriptionType = bsatn.Product(
		bsatn.Field{Name: "total_host_execution_duration", Type: bsatn.DurationType()},
		bsatn.Field{Name: "table_rows", Type: bsatn.List(tableUpdateType)},
	)

	subscribeAppliedType = bsatn.Product(
		bsatn.Field{Name: "request_id", Type: bsatn.U32()},
		bsatn.Field{Name: "total_host_execution_duration", Type: bsatn.DurationType()},
		bsatn.Field{Name: "query_id", Type: bsatn.U32()},
		bsatn.Field{Name: "table_rows", Type: bsatn.List(tableUpdateType)},
	)

	unsubscribeAppliedType = bsatn.Product(
		bsatn.Field{Name: "request_id", Type: bsatn.U32()},
		bsatn.Field{Name: "total_host_execution_duration", Type: bsatn.DurationType()},
		bsatn.Field{Name: "query_id", Type: bsatn.U32()},
	)

	subscriptionErrorType = bsatn.Product(
		bsatn.Field{Name: "request_id", Type: bsatn.Option(bsatn.U32())},
		bsatn.Field{Name: "query_id", Type: bsatn.Option(bsatn.U32())},
		bsatn.Field{Name: "message", Type: bsatn.String()},
	)

	oneOffQueryResponseType = bsatn.Product(
		bsatn.Field{Name: "message_id", Type: bsatn.Bytes()},
		bsatn.Field{Name: "error", Type: bsatn.Option(bsatn.String())},
		bsatn.Field{Name: "tables", Type: bsatn.List(tableUpdateType)},
		bsatn.Field{Name: "total_host_execution_duration", Type: bsatn.DurationType()},
	)
)
