package inventory

// Classify derives the ledger kind and delta magnitude for a quantity change.
// A quantity change dominates other field edits. changed is false when neither
// the quantity nor any other field moved.
func Classify(before, after int64, otherChanged bool) (kind Kind, delta int64, changed bool) {
	switch {
	case after > before:
		return KindAdded, after - before, true
	case after < before:
		return KindRemoved, before - after, true
	default:
		return KindUpdated, 0, otherChanged
	}
}
