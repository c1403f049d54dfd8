// Package policy evaluates the advisory dispute policy over finished
// verification results. Policies are Rego bundles compiled against a
// deterministic builtin allowlist, so two evaluations of the same
// bundle over the same input always return the same decision.
package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"github.com/ocentra/matchproof/internal/domain"
)

const defaultQuery = "data.matchproof.dispute.result"

// Builtins a dispute bundle may call. Anything reading clocks, the
// network, or entropy is excluded so evaluation stays replayable.
var allowedBuiltins = map[string]struct{}{
	"abs":            {},
	"ceil":           {},
	"concat":         {},
	"contains":       {},
	"count":          {},
	"eq":             {},
	"equal":          {},
	"endswith":       {},
	"floor":          {},
	"format_int":     {},
	"gt":             {},
	"gte":            {},
	"json.marshal":   {},
	"json.unmarshal": {},
	"lower":          {},
	"lt":             {},
	"lte":            {},
	"max":            {},
	"min":            {},
	"neq":            {},
	"object.get":     {},
	"object.union":   {},
	"replace":        {},
	"round":          {},
	"sort":           {},
	"split":          {},
	"sprintf":        {},
	"startswith":     {},
	"substring":      {},
	"sum":            {},
	"trim":           {},
	"trim_left":      {},
	"trim_right":     {},
	"upper":          {},
}

type Engine struct {
	query      rego.PreparedEvalQuery
	bundleID   string
	bundleHash string
}

// NewEngineFromBundlePath compiles the Rego bundle at bundlePath and
// pins its content hash for provenance.
func NewEngineFromBundlePath(ctx context.Context, bundlePath, bundleID string) (*Engine, error) {
	bundleHash, err := ComputeBundleHashFromPath(bundlePath)
	if err != nil {
		return nil, err
	}

	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	r := rego.New(
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}

	return &Engine{
		query:      prepared,
		bundleID:   bundleID,
		bundleHash: bundleHash,
	}, nil
}

func (e *Engine) BundleID() string   { return e.bundleID }
func (e *Engine) BundleHash() string { return e.bundleHash }

// Evaluate runs the bundle over input. The result always carries a
// known decision; a bundle that returns anything else is a config
// error, not a verification outcome.
func (e *Engine) Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyResult, error) {
	if e == nil {
		return domain.PolicyResult{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyResult{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyResult{}, errors.New("empty policy result")
	}
	result, err := decodePolicyResult(results[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	switch result.Decision {
	case domain.DisputeAccept, domain.DisputeFlag, domain.DisputeReject:
	default:
		return domain.PolicyResult{}, fmt.Errorf("policy returned unknown decision %q", result.Decision)
	}
	normalizePolicyResult(&result)
	return result, nil
}

func decodePolicyResult(value any) (domain.PolicyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	var result domain.PolicyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.PolicyResult{}, err
	}
	return result, nil
}

func normalizePolicyResult(result *domain.PolicyResult) {
	if result == nil {
		return
	}
	sort.Slice(result.Reasons, func(i, j int) bool {
		if result.Reasons[i].Code == result.Reasons[j].Code {
			return result.Reasons[i].Message < result.Reasons[j].Message
		}
		return result.Reasons[i].Code < result.Reasons[j].Code
	})
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(builtins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; !ok {
			continue
		}
		allowed = append(allowed, builtin)
	}
	return allowed
}

func assertNoForbiddenBuiltins(compiler *ast.Compiler) error {
	if compiler == nil {
		return errors.New("policy compiler is nil")
	}
	forbidden := make(map[string]struct{})
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, ok := ast.BuiltinMap[name]; !ok {
				return false
			}
			if _, ok := allowedBuiltins[name]; ok {
				return false
			}
			forbidden[name] = struct{}{}
			return false
		})
	}
	if len(forbidden) == 0 {
		return nil
	}
	names := make([]string, 0, len(forbidden))
	for name := range forbidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("forbidden builtins: %s", strings.Join(names, ", "))
}
