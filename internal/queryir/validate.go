package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/refmesh/internal/tag"
)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes each malformed term, in query order.
	Problems []string
}

// Error joins the problems, or returns "" for a valid query.
func (r ValidationResult) Error() string {
	return strings.Join(r.Problems, "; ")
}

// Validate checks every term of query against the tag grammar.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{}
	v.validateQuery(query)
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// ParseAndValidate parses text and rejects it if any term is malformed.
func ParseAndValidate(text string) (Query, error) {
	q, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if res := Validate(q); !res.Valid {
		return nil, fmt.Errorf("query %q: %s", text, res.Error())
	}
	return q, nil
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case All:
	case Tag:
		if strings.Contains(query.Tag, "@") || !tag.Valid(query.Tag) {
			v.addProblem("invalid tag %q", query.Tag)
		}
	case Origin:
		if query.Origin == "" || !tag.ValidOrigin(query.Origin) {
			v.addProblem("invalid origin %q", query.Origin)
		}
	case Not:
		v.validateQuery(query.Query)
	case And:
		for _, sub := range query.Queries {
			v.validateQuery(sub)
		}
	case Or:
		for _, sub := range query.Queries {
			v.validateQuery(sub)
		}
	default:
		v.addProblem("unknown query type %T", q)
	}
}
