package normalize

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

var predicateEnv = mustEnv()

func mustEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("found", cel.ListType(cel.StringType)),
	)
	if err != nil {
		panic(fmt.Sprintf("normalize: failed to create CEL environment: %v", err))
	}
	return env
}

func compilePredicate(expr string) (cel.Program, error) {
	ast, issues := predicateEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile predicate: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("predicate %q must return bool, got %s", expr, ast.OutputType())
	}
	return predicateEnv.Program(ast)
}

// CheckCapabilities returns the baseline capability followed by every
// capability whose predicate holds for found, in catalog order.
func (c *Catalog) CheckCapabilities(found []string) []string {
	caps := []string{c.Baseline}
	if found == nil {
		found = []string{}
	}
	activation := map[string]any{"found": found}
	for _, capability := range c.Capabilities {
		out, _, err := capability.prg.Eval(activation)
		if err != nil {
			slog.Warn("capability predicate failed",
				"domain", c.Domain,
				"capability", capability.Label,
				"error", err,
			)
			continue
		}
		if out == types.True {
			caps = append(caps, capability.Label)
		}
	}
	return caps
}

// CheckCapabilities looks up the catalog of id and evaluates found against
// it.
func CheckCapabilities(id domain.DomainID, found []string) ([]string, error) {
	c, err := CatalogFor(id)
	if err != nil {
		return nil, err
	}
	return c.CheckCapabilities(found), nil
}
