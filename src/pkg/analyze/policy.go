package analyze

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/rego"
)

// POLICY_QUERY is the rego document policies must populate: a set of
// human-readable reason strings. Any reason forces a complex classification.
const POLICY_QUERY = "data.envsync.reasons"

// PolicySet is a prepared set of rego complexity policies loaded from a
// policies directory. Policies receive the parsed manifest as input
// (name, channels, dependencies, pip_dependencies, dependency_count,
// size_bytes) and contribute extra reasons to classify an environment
// as complex.
type PolicySet struct {
	policiesPath string
	files        []string
	query        rego.PreparedEvalQuery
}

// LoadPolicies loads and validates every .rego file under policiesPath.
// Called once at startup; a broken policy set is a configuration error
// and fails the run before any environment is touched.
func LoadPolicies(ctx context.Context, policiesPath string) (*PolicySet, error) {
	logger.Info("LoadPolicies: starting...")

	if _, err := os.Stat(policiesPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("policies path not found: %s", policiesPath)
	}

	entries, err := os.ReadDir(policiesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read policies path: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".rego") || strings.HasSuffix(name, "_test.rego") {
			continue
		}
		files = append(files, filepath.Join(policiesPath, name))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no policy files found in %s", policiesPath)
	}
	sort.Strings(files)

	query, err := rego.New(
		rego.Query(POLICY_QUERY),
		rego.Load(files, nil),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policies: %w", err)
	}

	logger.Infof("LoadPolicies: done, loaded %d policies.", len(files))
	return &PolicySet{
		policiesPath: policiesPath,
		files:        files,
		query:        query,
	}, nil
}

// Count returns the number of loaded policy files
func (p *PolicySet) Count() int {
	return len(p.files)
}

// Evaluate runs the policies against one manifest's input document and
// returns the reasons they produced, sorted for determinism.
func (p *PolicySet) Evaluate(ctx context.Context, input map[string]any) ([]string, error) {
	rs, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}

	values, ok := rs[0].Expressions[0].Value.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected policy result type %T", rs[0].Expressions[0].Value)
	}

	var reasons []string
	for _, v := range values {
		msg, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("policy reason is not a string: %v", v)
		}
		reasons = append(reasons, msg)
	}
	sort.Strings(reasons)
	return reasons, nil
}
