package compiler

import (
	"fmt"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/queryir"
	"github.com/roach88/refmesh/internal/resolve"
	"github.com/roach88/refmesh/internal/tag"
)

// Link-set validation codes (E200-E209)
const (
	ErrCompileFailed    = "E200" // plugin config rejected by the schema
	ErrInvalidAlias     = "E201" // local or remote is not an origin alias
	ErrMissingLocal     = "E202" // link gives the remote no local alias
	ErrDuplicateAlias   = "E203" // two links resolve to the same alias
	ErrReverseCollision = "E204" // two links claim the reverse name for one origin
	ErrShadowsSelf      = "E205" // link alias equals the local origin
	ErrInvalidQuery     = "E206" // pull or push query does not parse
)

// ValidationError is a problem with a set of links that compile
// individually but resolve ambiguously together.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateLinks checks a whole link set as Resolve would see it.
// Returns all problems found (does not fail-fast).
//
// Resolution tolerates every problem reported here by letting later links
// win, so these are warnings about silently shadowed links.
func ValidateLinks(s resolve.Snapshot) []ValidationError {
	var errs []ValidationError

	seen := make(map[string]int)
	for i, link := range s.Links {
		field := fmt.Sprintf("links[%d]", i)

		if !tag.ValidOrigin(link.Config.Local) {
			errs = append(errs, ValidationError{
				Field:   field + ".local",
				Message: fmt.Sprintf("invalid alias %q", link.Config.Local),
				Code:    ErrInvalidAlias,
			})
		}
		if !tag.ValidOrigin(link.Config.Remote) {
			errs = append(errs, ValidationError{
				Field:   field + ".remote",
				Message: fmt.Sprintf("invalid alias %q", link.Config.Remote),
				Code:    ErrInvalidAlias,
			})
		}
		if link.Pull != nil && link.Pull.Query != "" {
			errs = append(errs, validateQuery(field+".pull.query", link.Pull.Query)...)
		}
		if link.Push != nil && link.Push.Query != "" {
			errs = append(errs, validateQuery(field+".push.query", link.Push.Query)...)
		}
		if link.Config.Local == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".local",
				Message: fmt.Sprintf("link to %s has no local alias", link.URL),
				Code:    ErrMissingLocal,
			})
			continue
		}

		alias := resolve.Alias(link)
		if alias == s.Origin {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("alias %q is the local origin", alias),
				Code:    ErrShadowsSelf,
			})
		}
		if prev, ok := seen[alias]; ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("alias %q already used by links[%d]", alias, prev),
				Code:    ErrDuplicateAlias,
			})
		}
		seen[alias] = i
	}

	errs = append(errs, reverseCollisions(s)...)
	return errs
}

func validateQuery(field, text string) []ValidationError {
	if _, err := queryir.ParseAndValidate(text); err != nil {
		return []ValidationError{{Field: field, Message: err.Error(), Code: ErrInvalidQuery}}
	}
	return nil
}

// reverseCollisions reports origins for which more than one link qualifies
// for the reverse table with different names.
func reverseCollisions(s resolve.Snapshot) []ValidationError {
	var errs []ValidationError
	self := resolve.SelfAliases(s)

	claimed := make(map[string]ir.OriginLink)
	for _, link := range s.Links {
		if link.Origin == "" || link.Config.Local == "" {
			continue
		}
		if alias, ok := self[link.Endpoint()]; !ok || alias != s.Origin || link.Config.Remote != s.Origin {
			continue
		}
		if prev, ok := claimed[link.Origin]; ok && prev.Config.Local != link.Config.Local {
			errs = append(errs, ValidationError{
				Field:   link.Origin,
				Message: fmt.Sprintf("reverse name %q shadows %q", link.Config.Local, prev.Config.Local),
				Code:    ErrReverseCollision,
			})
		}
		claimed[link.Origin] = link
	}
	return errs
}
