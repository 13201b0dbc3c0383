package timer

// Class is the controller-facing judgement of one attempted step.
type Class int

const (
	Accept Class = iota
	RetryMild
	RetrySevere
	Fatal
)

func (c Class) String() string {
	switch c {
	case Accept:
		return "accept"
	case RetryMild:
		return "retry-mild"
	case RetrySevere:
		return "retry-severe"
	case Fatal:
		return "fatal"
	}
	return "unknown"
}

// Attempt is the raw, policy-free record of what one step attempt did.
// The engine fills it in; the classifier turns it into a Class.
type Attempt struct {
	// Converged reports whether any solver in the chain converged.
	Converged bool

	// CFLRatio is realized CFL divided by the configured limit. Only
	// meaningful when Converged.
	CFLRatio float64

	// BoundsViolated reports saturations outside physical bounds, a broken
	// saturation sum, or non-physical pressures.
	BoundsViolated bool

	// UpdaterFailed reports a hard failure inside the explicit saturation
	// update (arithmetic domain error and the like).
	UpdaterFailed bool
}

// Classifier maps raw attempt records to step classes. Pure and stateless;
// thresholds come from the timer Config so they are tested configuration,
// not buried constants.
type Classifier struct {
	mild   float64
	severe float64
}

func NewClassifier(cfg Config) Classifier {
	return Classifier{mild: cfg.MildCFLRatio, severe: cfg.SevereCFLRatio}
}

// Classify judges one attempt. lastChance is true when the controller has
// no reject budget left, so any retry condition escalates to Fatal.
func (c Classifier) Classify(a Attempt, lastChance bool) Class {
	class := c.classify(a)
	if class != Accept && lastChance {
		return Fatal
	}
	return class
}

func (c Classifier) classify(a Attempt) Class {
	if a.UpdaterFailed || a.BoundsViolated {
		return RetrySevere
	}
	if !a.Converged {
		// The whole chain was exhausted; a smaller step usually helps.
		return RetryMild
	}
	switch {
	case a.CFLRatio <= c.mild:
		return Accept
	case a.CFLRatio <= c.severe:
		return RetryMild
	default:
		return RetrySevere
	}
}
