package ctypes

// CallHost invokes a host callable and folds its results into one owned
// value: nil for no results, the value itself for one, and an ordered host
// sequence for several.
func (rt *Runtime) CallHost(callable Value, args Args) (Value, error) {
	h := rt.host
	if !h.IsCallable(callable) {
		return nil, &CallableError{Value: callable}
	}

	var argv []Value
	if args != nil {
		argv = make([]Value, args.Len())
		for i := range argv {
			v, ok := args.At(i)
			if !ok {
				return nil, &MarshalError{Kind: ErrArgumentFetchFailed, Index: i}
			}
			argv[i] = v
		}
	}

	results, err := h.Call(callable, argv)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	}
	return rt.aggregate(results)
}

// aggregate stores owned results into a new host sequence. On failure the
// partial sequence and every result not yet stored are released.
func (rt *Runtime) aggregate(results []Value) (Value, error) {
	h := rt.host
	seq, err := h.NewSequence(len(results))
	if err != nil {
		for _, r := range results {
			h.Release(r)
		}
		return nil, &MarshalError{Kind: ErrAggregateConstructionFailed, Index: -1, Err: err}
	}
	for i, r := range results {
		if err := h.Store(seq, i, r); err != nil {
			for _, rest := range results[i:] {
				h.Release(rest)
			}
			h.Release(seq)
			return nil, &MarshalError{Kind: ErrAggregateConstructionFailed, Index: i, Err: err}
		}
	}
	return seq, nil
}
