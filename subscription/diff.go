package subscription

import "github.com/riftdb/riftdb-go/tablecache"

// RowDelta is one table's raw insert/delete sets as received on the
// wire. A row that is both deleted and re-inserted under the same key in
// the same delta is classified as an Update, per spec.md §4.5's delta
// semantics (the server represents an update as a delete+insert pair).
type RowDelta struct {
	Table   string
	Deletes []KeyedRow
	Inserts []KeyedRow
}

// KeyedRow pairs a primary key with its row value and any secondary
// index keys it should populate.
type KeyedRow struct {
	Key     tablecache.RowKey
	Row     tablecache.Row
	Indexes tablecache.IndexKeys
}

// ApplyDelta applies one table's delta to its cache, classifies each
// resulting change, and dispatches them to registered OnChange
// callbacks. It returns the classified changes for callers that want
// them directly (e.g. a one-off query response).
func (s *Subscription) ApplyDelta(delta RowDelta) []RowChange {
	cache := s.CacheFor(delta.Table)

	insertByKey := make(map[tablecache.RowKey]KeyedRow, len(delta.Inserts))
	for _, ins := range delta.Inserts {
		insertByKey[ins.Key] = ins
	}
	consumed := make(map[tablecache.RowKey]bool, len(delta.Deletes))

	var changes []RowChange

	// Deletes (or same-key updates) are emitted before pure inserts, in
	// the order the server sent them, per spec.md §4.6.
	for _, del := range delta.Deletes {
		if ins, isUpdate := insertByKey[del.Key]; isUpdate {
			consumed[del.Key] = true
			_ = cache.Update(ins.Key, ins.Row, ins.Indexes)
			changes = append(changes, RowChange{
				Table: delta.Table, Key: del.Key, Kind: ChangeUpdate,
				Before: del.Row, After: ins.Row,
			})
			continue
		}
		_ = cache.Delete(del.Key)
		changes = append(changes, RowChange{
			Table: delta.Table, Key: del.Key, Kind: ChangeDelete, Before: del.Row,
		})
	}

	for _, ins := range delta.Inserts {
		if consumed[ins.Key] {
			continue
		}
		_ = cache.Insert(ins.Key, ins.Row, ins.Indexes)
		changes = append(changes, RowChange{
			Table: delta.Table, Key: ins.Key, Kind: ChangeInsert, After: ins.Row,
		})
	}

	if len(changes) > 0 {
		s.dispatch(changes)
	}
	return changes
}
