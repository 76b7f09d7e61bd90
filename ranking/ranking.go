// Package ranking decides how search results are ordered. A Decider
// resolves a feature flag for a visitor and the flag's variables carry the
// ordering passed to the search query.
package ranking

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/letmevibethatforyou/contentx"
)

const (
	// FlagKey is the flag that selects the search ordering.
	FlagKey = "search_algorithm"
	// VariableKey is the flag variable holding the ordering.
	VariableKey = "search_algorithm"
)

// Decision is the outcome of evaluating a flag for one visitor.
type Decision struct {
	FlagKey      string
	Enabled      bool
	VariationKey string
	Variables    map[string]any
}

// Decider evaluates feature flags.
type Decider interface {
	Decide(ctx context.Context, flagKey, visitorID string) (Decision, error)
}

// DeciderFunc is a function adapter for Decider.
type DeciderFunc func(ctx context.Context, flagKey, visitorID string) (Decision, error)

// Decide implements Decider.
func (f DeciderFunc) Decide(ctx context.Context, flagKey, visitorID string) (Decision, error) {
	return f(ctx, flagKey, visitorID)
}

// Static is a Decider with fixed decisions keyed by flag. Unknown flags
// decide as disabled.
type Static map[string]Decision

// Decide implements Decider.
func (s Static) Decide(_ context.Context, flagKey, _ string) (Decision, error) {
	if d, ok := s[flagKey]; ok {
		d.FlagKey = flagKey
		return d, nil
	}
	return Decision{FlagKey: flagKey}, nil
}

// StaticOrderBy returns a Static decider that always yields o.
func StaticOrderBy(o contentx.OrderBy) Static {
	v := map[string]any{"_ranking": string(o.Ranking)}
	if o.SemanticWeight != nil {
		v["_semanticWeight"] = *o.SemanticWeight
	}
	return Static{FlagKey: {Enabled: true, VariationKey: "static", Variables: map[string]any{VariableKey: v}}}
}

// OrderBy resolves the search ordering for visitorID. It falls back to the
// default semantic ordering when the decider fails, the flag is off or the
// variable is missing or invalid.
func OrderBy(ctx context.Context, d Decider, visitorID string, logger *slog.Logger) contentx.OrderBy {
	if logger == nil {
		logger = slog.Default()
	}
	if d == nil {
		return contentx.DefaultOrderBy()
	}

	decision, err := d.Decide(ctx, FlagKey, visitorID)
	if err != nil {
		logger.WarnContext(ctx, "ranking decision failed, using default", "flag", FlagKey, "error", err)
		return contentx.DefaultOrderBy()
	}
	if !decision.Enabled {
		return contentx.DefaultOrderBy()
	}

	o, ok := ParseOrderBy(decision.Variables[VariableKey])
	if !ok {
		logger.WarnContext(ctx, "invalid ranking variable, using default", "flag", FlagKey, "variation", decision.VariationKey)
		return contentx.DefaultOrderBy()
	}
	return o
}

// ParseOrderBy reads an ordering from a flag variable. The variable may be
// a decoded JSON object or a JSON string.
func ParseOrderBy(v any) (contentx.OrderBy, bool) {
	var raw []byte
	switch v := v.(type) {
	case nil:
		return contentx.OrderBy{}, false
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return contentx.OrderBy{}, false
		}
		raw = b
	}

	var o contentx.OrderBy
	if err := json.Unmarshal(raw, &o); err != nil {
		return contentx.OrderBy{}, false
	}

	o.Ranking = contentx.Ranking(strings.ToUpper(string(o.Ranking)))
	switch o.Ranking {
	case contentx.RankingSemantic, contentx.RankingRelevance:
	default:
		return contentx.OrderBy{}, false
	}

	if w := o.SemanticWeight; w != nil && (*w < 0 || *w > 1) {
		return contentx.OrderBy{}, false
	}
	return o, true
}
