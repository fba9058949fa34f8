package engine

// Earliest-wins reconciliation. A completion instant, once set, may move
// earlier when an older report arrives but never later.

// earliest returns the smaller of the stored and incoming instants.
// A nil stored value is always replaced.
func earliest(stored *int64, incoming int64) *int64 {
	if stored != nil && *stored <= incoming {
		v := *stored
		return &v
	}
	return &incoming
}

// isEarlier reports whether incoming should replace stored.
func isEarlier(stored *int64, incoming int64) bool {
	return stored == nil || incoming < *stored
}

func sameInstant(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
