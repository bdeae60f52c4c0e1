package persistence

import "github.com/lib/pq"

// stringArray and int64Array adapt Go slices to Postgres array literals via
// pq.Array, used for the tokens/entity_ids array columns and for ad hoc
// array-membership predicates (e.g. "slug <> ALL(...)").
func stringArray(ss []string) interface{} {
	if ss == nil {
		ss = []string{}
	}
	return pq.Array(ss)
}

func int64Array(ids []int64) interface{} {
	if ids == nil {
		ids = []int64{}
	}
	return pq.Array(ids)
}
