package provider

// OutcomeKind classifies the result of a failover call
type OutcomeKind int

const (
	// OutcomeOK means a provider produced a completion
	OutcomeOK OutcomeKind = iota
	// OutcomeQuotaExhausted means every provider is out of quota
	OutcomeQuotaExhausted
	// OutcomeProviderError means every usable provider failed
	OutcomeProviderError
)

// String returns the outcome kind label
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeQuotaExhausted:
		return "quota_exhausted"
	case OutcomeProviderError:
		return "provider_error"
	default:
		return "unknown"
	}
}

// Outcome is the result of a call through the failover selector. Expected
// exhaustion is a kind, not an error, so callers pattern-match instead of
// catching faults for expected states.
type Outcome struct {
	Kind     OutcomeKind
	Text     string
	Provider string // descriptor ID that served the call, empty unless OK
	Err      error  // last provider error, nil unless OutcomeProviderError
}

// OK reports whether the call produced a completion
func (o Outcome) OK() bool {
	return o.Kind == OutcomeOK
}

// Ok builds a successful outcome
func Ok(providerID, text string) Outcome {
	return Outcome{Kind: OutcomeOK, Text: text, Provider: providerID}
}

// Exhausted builds a quota-exhausted outcome
func Exhausted() Outcome {
	return Outcome{Kind: OutcomeQuotaExhausted, Err: ErrQuotaExhausted}
}

// Failed builds a provider-error outcome
func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeProviderError, Err: err}
}
