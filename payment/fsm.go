package payment

// transitions is the enumerated lifecycle table. Anything not listed here is
// rejected. Terminal failed/canceled states never go back to succeeded, and
// refunds only apply to succeeded payments.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusSucceeded: true,
		StatusFailed:    true,
		StatusCanceled:  true,
	},
	StatusSucceeded: {
		StatusRefunded: true,
	},
	StatusFailed:   {},
	StatusCanceled: {},
	StatusRefunded: {},
}

// CanTransition reports whether the lifecycle table permits from → to.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Terminal reports whether no further transitions are possible from s.
// A succeeded payment is not terminal because it may still be refunded.
func Terminal(s Status) bool {
	return len(transitions[s]) == 0
}
