package orchestrator

import "strings"

// ErrorCategory is the §7 error taxonomy. User-facing strings are fixed per
// category and never regenerated by the model, to avoid wasting tokens on
// an error path.
type ErrorCategory int

const (
	CategoryUnknown ErrorCategory = iota
	CategoryTransient
	CategoryContextOverflow
	CategoryNonRetryableProvider
	CategoryPlatformAuth
	CategoryResource
	CategoryInternal
)

// fixedMessages holds the one user-visible string per category (§7).
var fixedMessages = map[ErrorCategory]string{
	CategoryTransient:            "⚠️ Having trouble reaching the AI provider right now. Please try again in a moment.",
	CategoryContextOverflow:      "⚠️ This conversation has gotten too long for me to process. Try starting a new thread.",
	CategoryNonRetryableProvider: "❌ The AI provider rejected this request. Please rephrase and try again.",
	CategoryPlatformAuth:         "❌ I'm missing a permission needed to do that here.",
	CategoryResource:             "❌ Ran out of room processing an attachment. Please try a smaller file.",
	CategoryInternal:             "❌ Something went wrong on my end. If this keeps happening, please ping the on-call.",
}

func (c ErrorCategory) Message() string {
	if msg, ok := fixedMessages[c]; ok {
		return msg
	}
	return fixedMessages[CategoryInternal]
}

// Classify maps an error to a §7 category using substring heuristics,
// mirroring the taxonomy descriptions in spec.md §7 (no structured error
// types are assumed since providers surface these as plain strings).
func Classify(err error, isTransient func(error) bool) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}
	if isTransient != nil && isTransient(err) {
		return CategoryTransient
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "context_length_exceeded") || strings.Contains(msg, "context length") || strings.Contains(msg, "maximum context"):
		return CategoryContextOverflow
	case strings.Contains(msg, "invalid_api_key") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "model not found") || strings.Contains(msg, "schema"):
		return CategoryNonRetryableProvider
	case strings.Contains(msg, "missing_scope") || strings.Contains(msg, "not_in_channel") || strings.Contains(msg, "channel_not_found"):
		return CategoryPlatformAuth
	case strings.Contains(msg, "no space left") || strings.Contains(msg, "out of memory") || strings.Contains(msg, "disk"):
		return CategoryResource
	default:
		return CategoryInternal
	}
}
