package geocluster

import "reflect"

// seedAggregate initializes a new cluster's aggregate payloads from its
// first child (§4.6: "seeds the new cluster's aggregate with a copy of
// the first child's aggregate"). When the first child is itself a
// cluster, its agg keeps getting queried at its own zoom after this
// call, so the seed must not alias it — reduceProperties mutates the
// accumulator in place, and folding later siblings into a shared
// reference would silently corrupt the child's own reported aggregate.
// cloneAggregate gives map/slice-shaped payloads (the common case) a
// shallow copy; other shapes fall back to passing the value through
// unchanged, same as before.
func seedAggregate[P any](o Options[P], first *element) (agg any, cdata any) {
	if o.MapPointToProperties != nil {
		agg = cloneAggregate(first.agg)
	}
	if o.ExtractClusterData != nil {
		cdata = first.clusterData
	}
	return agg, cdata
}

// cloneAggregate returns a best-effort shallow copy of v. Maps and
// slices, the shapes every test and the demo command use for
// reduceProperties accumulators, are copied element-by-element; any
// other kind (including a pointer to a caller-defined struct) is
// returned as-is, since the engine has no general way to clone an
// opaque any — callers relying on pointer- or struct-shaped aggregates
// remain responsible for not mutating a value returned from a prior
// Search after its element has been absorbed into a new cluster.
func cloneAggregate(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
		return out.Interface()
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Cap())
		reflect.Copy(out, rv)
		return out.Interface()
	default:
		return v
	}
}

// foldChild reduces child's aggregates into the accumulators being
// built for a new (or extended) cluster.
func foldChild[P any](o Options[P], agg *any, cdata *any, child *element) {
	if o.ReduceProperties != nil {
		if *agg == nil {
			*agg = child.agg
		} else {
			o.ReduceProperties(*agg, child.agg)
		}
	}
	if o.CombineClusterData != nil {
		if *cdata == nil {
			*cdata = child.clusterData
		} else {
			*cdata = o.CombineClusterData(*cdata, child.clusterData)
		}
	}
}
