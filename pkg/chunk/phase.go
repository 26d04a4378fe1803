package chunk

// Phase is a store's lifecycle stage.
type Phase int32

const (
	// PhaseConstructing is the phase while New is assembling the store.
	PhaseConstructing Phase = iota
	// PhaseHydrating means a persisted snapshot is being read.
	PhaseHydrating
	// PhaseSteady means hydration is over and persistence is attached.
	PhaseSteady
	// PhaseDisposed means Dispose has been called.
	PhaseDisposed
)

func (p Phase) String() string {
	switch p {
	case PhaseConstructing:
		return "constructing"
	case PhaseHydrating:
		return "hydrating"
	case PhaseSteady:
		return "steady"
	case PhaseDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}
