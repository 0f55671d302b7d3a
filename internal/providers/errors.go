package providers

import (
	"errors"
	"strings"

	"researchgraph/internal/util"
)

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
)

// ClassifyError maps a provider failure onto a coarse taxonomy. Wrapped
// sentinels take precedence; the string heuristics cover providers that only
// surface raw HTTP error bodies.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	if errors.Is(err, util.ErrQuotaExhausted) {
		return ErrorQuota
	}
	if errors.Is(err, util.ErrRateLimited) {
		return ErrorRate
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "resource_exhausted"), strings.Contains(e, "insufficient_quota"):
		return ErrorQuota
	case strings.Contains(e, "rate"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}
