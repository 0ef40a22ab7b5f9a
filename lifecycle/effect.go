package lifecycle

// Effect is a side effect requested by a transition. The caller executes
// effects in the order they are returned.
type Effect int

const (
	Persist Effect = iota + 1
	ClearPersistence
	StartPolling
	StopPolling
	PlayNotification
	ConfirmPayment
	// ReconcilePaid flags a paid result seen after the session was cancelled
	// locally. The guest may have been charged for a cancelled checkout.
	ReconcilePaid
)

var effectNames = map[Effect]string{
	Persist:          "persist",
	ClearPersistence: "clear_persistence",
	StartPolling:     "start_polling",
	StopPolling:      "stop_polling",
	PlayNotification: "play_notification",
	ConfirmPayment:   "confirm_payment",
	ReconcilePaid:    "reconcile_paid",
}

func (e Effect) String() string {
	if name, ok := effectNames[e]; ok {
		return name
	}
	return "unknown"
}

// Has reports whether effects contains e.
func Has(effects []Effect, e Effect) bool {
	for _, eff := range effects {
		if eff == e {
			return true
		}
	}
	return false
}
