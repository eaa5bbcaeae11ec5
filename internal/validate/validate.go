// Package validate checks and normalizes raw identifiers before they reach the
// quote service.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"marketquotes/internal/simulator"
)

// MaxBatch is the largest number of identifiers accepted in one batch.
const MaxBatch = 50

var (
	ErrMissing   = errors.New("identifier is required")
	ErrEmptyList = errors.New("at least one identifier is required")
)

// InvalidError describes a rejected input. It never wraps upstream state.
type InvalidError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Rules describe the accepted shape of one endpoint's identifiers.
type Rules struct {
	Field     string
	Normalize func(string) string
	Pattern   *regexp.Regexp
	MaxLen    int
}

func upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

var (
	Stock = Rules{
		Field:     "symbol",
		Normalize: upper,
		Pattern:   regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-^=]*$`),
		MaxLen:    20,
	}
	MutualFund = Rules{
		Field:     "scheme",
		Normalize: upper,
		Pattern:   regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]*$`),
		MaxLen:    20,
	}
	Bond = Rules{
		Field:     "bond",
		Normalize: upper,
		Pattern:   regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]*$`),
		MaxLen:    24,
	}
	Forex = Rules{
		Field:     "pair",
		Normalize: simulator.NormalizePair,
		Pattern:   regexp.MustCompile(`^[A-Z]{6}$`),
		MaxLen:    6,
	}
	Derivative = Rules{
		Field:     "instrument",
		Normalize: upper,
		Pattern:   regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-_]*$`),
		MaxLen:    40,
	}
)

// Identifier returns the normalized form of raw or an *InvalidError.
func (r Rules) Identifier(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &InvalidError{Field: r.Field, Reason: ErrMissing.Error()}
	}
	id := raw
	if r.Normalize != nil {
		id = r.Normalize(raw)
	}
	if r.MaxLen > 0 && len(id) > r.MaxLen {
		return "", &InvalidError{Field: r.Field, Value: raw, Reason: fmt.Sprintf("longer than %d characters", r.MaxLen)}
	}
	if r.Pattern != nil && !r.Pattern.MatchString(id) {
		return "", &InvalidError{Field: r.Field, Value: raw, Reason: "contains unsupported characters"}
	}
	return id, nil
}

// Member pairs a caller's original identifier with its normalized form.
type Member struct {
	Raw string
	ID  string
}

// List validates a batch. Blank entries are dropped, the count is checked
// against limit before deduplication, and any invalid member rejects the whole
// list. The returned members keep request order.
func (r Rules) List(raws []string, limit int) ([]Member, error) {
	if limit <= 0 {
		limit = MaxBatch
	}
	kept := make([]string, 0, len(raws))
	for _, s := range raws {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return nil, &InvalidError{Field: r.Field + "s", Reason: ErrEmptyList.Error()}
	}
	if len(kept) > limit {
		return nil, &InvalidError{Field: r.Field + "s", Reason: fmt.Sprintf("too many identifiers (max %d, got %d)", limit, len(kept))}
	}
	out := make([]Member, 0, len(kept))
	seen := make(map[string]struct{}, len(kept))
	for _, s := range kept {
		id, err := r.Identifier(s)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, Member{Raw: s, ID: id})
	}
	return out, nil
}

// SplitCSV splits a comma separated query value, dropping blanks.
func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
