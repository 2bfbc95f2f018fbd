package message

import (
	"github.com/riftdb/riftdb-go/bsatn"
)

func tableUpdateToValue(t TableUpdate) bsatn.Value {
	return bsatn.VProduct(
		bsatn.VString(t.TableName),
		bsatn.VList(bytesSliceToValues(t.Inserts)...),
		bsatn.VList(bytesSliceToValues(t.Deletes)...),
	)
}

func tableUpdateFromValue(v bsatn.Value) TableUpdate {
	return TableUpdate{
		TableName: v.Product[0].Str,
		Inserts:   valuesToBytesSlice(v.Product[1].List),
		Deletes:   valuesToBytesSlice(v.Product[2].List),
	}
}

func bytesSliceToValues(bs [][]byte) []bsatn.Value {
	out := make([]bsatn.Value, len(bs))
	for i, b := range bs {
		out[i] = bsatn.VBytes(b)
	}
	return out
}

func valuesToBytesSlice(vs []bsatn.Value) [][]byte {
	if len(vs) == 0 {
		return nil
	}
	out := make([][]byte, len(vs))
	for i, v := range vs {
		out[i] = v.Bin
	}
	return out
}

func tableUpdatesToValue(ts []TableUpdate) bsatn.Value {
	vals := make([]bsatn.Value, len(ts))
	for i, t := range ts {
		vals[i] = tableUpdateToValue(t)
	}
	return bsatn.VList(vals...)
}

func tableUpdatesFromValue(v bsatn.Value) []TableUpdate {
	out := make([]TableUpdate, len(v.List))
	for i, elem := range v.List {
		out[i] = tableUpdateFromValue(elem)
	}
	return out
}

func databaseUpdateToValue(d DatabaseUpdate) bsatn.Value {
	return bsatn.VProduct(tableUpdatesToValue(d.Tables))
}

func databaseUpdateFromValue(v bsatn.Value) DatabaseUpdate {
	return DatabaseUpdate{Tables: tableUpdatesFromValue(v.Product[0])}
}

func reducerCallInfoToValue(r ReducerCallInfo) bsatn.Value {
	return bsatn.VProduct(
		bsatn.VString(r.ReducerName),
		bsatn.VU32(r.ReducerID),
		bsatn.VBytes(r.Args),
		bsatn.VU32(r.RequestID),
	)
}

func reducerCallInfoFromValue(v bsatn.Value) ReducerCallInfo {
	return ReducerCallInfo{
		ReducerName: v.Product[0].Str,
		ReducerID:   v.Product[1].U32,
		Args:        v.Product[2].Bin,
		RequestID:   v.Product[3].U32,
	}
}

func queriesToValue(qs []string) bsatn.Value {
	vals := make([]bsatn.Value, len(qs))
	for i, q := range qs {
		vals[i] = bsatn.VString(q)
	}
	return bsatn.VList(vals...)
}

func queriesFromValue(v bsatn.Value) []string {
	out := make([]string, len(v.List))
	for i, elem := range v.List {
		out[i] = elem.Str
	}
	return out
}

func optU32ToValue(v *uint32) bsatn.Value {
	if v == nil {
		return bsatn.VOptionNone()
	}
	return bsatn.VOptionSome(bsatn.VU32(*v))
}

func optU32FromValue(v bsatn.Value) *uint32 {
	if v.OptSome == nil {
		return nil
	}
	u := v.OptSome.U32
	return &u
}

func optStringToValue(s *string) bsatn.Value {
	if s == nil {
		return bsatn.VOptionNone()
	}
	return bsatn.VOptionSome(bsatn.VString(*s))
}

func optStringFromValue(v bsatn.Value) *string {
	if v.OptSome == nil {
		return nil
	}
	s := v.OptSome.Str
	return &s
}

func identityTokenToValue(m IdentityTokenMsg) bsatn.Value {
	return bsatn.VProduct(
		bsatn.VIdentity(m.Identity),
		bsatn.VString(m.Token),
		bsatn.VAddress(m.ConnectionID),
	)
}

func identityTokenFromValue(v bsatn.Value) IdentityTokenMsg {
	return IdentityTokenMsg{
		Identity:     v.Product[0].IdentityV,
		Token:        v.Product[1].Str,
		ConnectionID: v.Product[2].AddressV,
	}
}

func transactionUpdateToValue(t TransactionUpdate) bsatn.Value {
	return bsatn.VProduct(
		bsatn.VU8(uint8(t.Status)),
		bsatn.VTimestamp(t.Timestamp),
		bsatn.VIdentity(t.CallerIdentity),
		bsatn.VAddress(t.CallerConnectionID),
		reducerCallInfoToValue(t.ReducerCall),
		bsatn.VU64(t.EnergyUsed),
		bsatn.VDuration(t.HostExecutionDuration),
		databaseUpdateToValue(t.DatabaseUpdate),
	)
}

func transactionUpdateFromValue(v bsatn.Value) TransactionUpdate {
	return TransactionUpdate{
		Status:                TransactionStatus(v.Product[0].U8),
		Timestamp:             v.Product[1].TimeV,
		CallerIdentity:        v.Product[2].IdentityV,
		CallerConnectionID:    v.Product[3].AddressV,
		ReducerCall:           reducerCallInfoFromValue(v.Product[4]),
		EnergyUsed:            v.Product[5].U64,
		HostExecutionDuration: v.Product[6].DurV,
		DatabaseUpdate:        databaseUpdateFromValue(v.Product[7]),
	}
}

func transactionUpdateLightToValue(t TransactionUpdateLight) bsatn.Value {
	return bsatn.VProduct(
		bsatn.VTimestamp(t.Timestamp),
		databaseUpdateToValue(t.DatabaseUpdate),
	)
}

func transactionUpdateLightFromValue(v bsatn.Value) TransactionUpdateLight {
	return TransactionUpdateLight{
		Timestamp:      v.Product[0].TimeV,
		DatabaseUpdate: databaseUpdateFromValue(v.Product[1]),
	}
}
