package usecase

import (
	"fmt"
	"sort"
	"strings"

	apperrors "pos-replicator/internal/shared/errors"
	"pos-replicator/internal/shared/logger"

	"github.com/google/cel-go/cel"
)

// SystemCollectionPrefix marks server-internal collections that are never replicated.
const SystemCollectionPrefix = "system."

// CollectionFilter decides which collections take part in a pass. A collection is
// eligible when it is not excluded by name, is not a system collection, and, when
// an expression is configured, the expression evaluates to true for its name.
type CollectionFilter struct {
	excluded map[string]struct{}
	program  cel.Program
	expr     string
	logger   logger.Logger
}

// NewCollectionFilter builds a filter. expression is an optional CEL boolean
// expression over the string variable `name`, for example
// `!name.startsWith("tmp_")`.
func NewCollectionFilter(excluded []string, expression string, log logger.Logger) (*CollectionFilter, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	f := &CollectionFilter{
		excluded: make(map[string]struct{}, len(excluded)),
		expr:     strings.TrimSpace(expression),
		logger:   log.WithComponent("collection-filter"),
	}
	for _, name := range excluded {
		if name = strings.TrimSpace(name); name != "" {
			f.excluded[name] = struct{}{}
		}
	}

	if f.expr == "" {
		return f, nil
	}
	program, err := compileNamePredicate(f.expr)
	if err != nil {
		return nil, err
	}
	f.program = program
	return f, nil
}

func compileNamePredicate(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(cel.Variable("name", cel.StringType))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create CEL environment").WithCause(err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid collection filter %q", expr)).
			WithCause(fmt.Errorf("%w: %v", apperrors.ErrInvalidFilter, issues.Err()))
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("collection filter %q must evaluate to a bool", expr)).
			WithCause(apperrors.ErrInvalidFilter)
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid collection filter %q", expr)).
			WithCause(fmt.Errorf("%w: %v", apperrors.ErrInvalidFilter, err))
	}
	return program, nil
}

// Allows reports whether name is eligible. Evaluation failures exclude the
// collection.
func (f *CollectionFilter) Allows(name string) bool {
	if name == "" || strings.HasPrefix(name, SystemCollectionPrefix) {
		return false
	}
	if _, skip := f.excluded[name]; skip {
		return false
	}
	if f.program == nil {
		return true
	}

	out, _, err := f.program.Eval(map[string]interface{}{"name": name})
	if err != nil {
		f.logger.Warnf("Collection filter failed for %s, excluding: %v", name, err)
		return false
	}
	allowed, ok := out.Value().(bool)
	return ok && allowed
}

// Eligible returns the allowed subset of names in sorted order.
func (f *CollectionFilter) Eligible(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if f.Allows(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Excluded lists the names excluded explicitly, sorted.
func (f *CollectionFilter) Excluded() []string {
	out := make([]string, 0, len(f.excluded))
	for name := range f.excluded {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Expression returns the configured CEL predicate, if any.
func (f *CollectionFilter) Expression() string { return f.expr }
