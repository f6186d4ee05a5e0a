package alert

// transitions lists every legal move after claiming. PENDING only leaves via
// Claim, and terminal states have no entry.
var transitions = map[Status][]Status{
	StatusClaimed:   {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether an alert in status from may be advanced to to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidPath reports whether a status sequence, as read from the status log,
// starts at PENDING, claims once and then only follows legal transitions.
func ValidPath(path []Status) bool {
	if len(path) == 0 || path[0] != StatusPending {
		return false
	}
	for i := 1; i < len(path); i++ {
		prev, next := path[i-1], path[i]
		if prev == StatusPending {
			if next != StatusClaimed {
				return false
			}
			continue
		}
		if !CanTransition(prev, next) {
			return false
		}
	}
	return true
}
