package analyze

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gh-nvat/conda-envsync/src/pkg/models"
	"gopkg.in/yaml.v3"

	log "github.com/sirupsen/logrus"
)

var logger *log.Entry = log.New().WithFields(log.Fields{
	"package": "analyze",
})

// Heuristic thresholds for complexity detection. The values come from
// operational experience, not from a derivation; they steer strategy
// selection only and are overridable through Ruleset.
const (
	DEFAULT_MAX_DEPENDENCIES     = 20
	DEFAULT_MAX_CHANNELS         = 3
	DEFAULT_MAX_PIP_DEPENDENCIES = 5
	DEFAULT_MAX_MANIFEST_BYTES   = 2048
)

// DEFAULT_FRAGILE_PACKAGES lists packages with a history of slow or failing
// solves (numeric/scientific/geospatial/ML stacks with heavy native deps).
var DEFAULT_FRAGILE_PACKAGES = []string{
	"tensorflow", "tensorflow-gpu", "pytorch", "torch", "torchvision",
	"gdal", "libgdal", "rasterio", "fiona", "cartopy", "geopandas",
	"basemap", "opencv", "py-opencv", "mxnet", "caffe", "netcdf4",
}

// DEFAULT_WELL_KNOWN_CHANNELS are channel names whose coexistence in one
// manifest tends to produce cross-channel solver conflicts.
var DEFAULT_WELL_KNOWN_CHANNELS = []string{
	"defaults", "conda-forge", "bioconda", "anaconda", "pytorch", "nvidia", "intel",
}

// Ruleset carries the tunable inputs of the complexity rules
type Ruleset struct {
	MaxDependencies    int
	MaxChannels        int
	MaxPipDependencies int
	MaxManifestBytes   int
	FragilePackages    []string
	WellKnownChannels  []string
}

func DefaultRuleset() Ruleset {
	return Ruleset{
		MaxDependencies:    DEFAULT_MAX_DEPENDENCIES,
		MaxChannels:        DEFAULT_MAX_CHANNELS,
		MaxPipDependencies: DEFAULT_MAX_PIP_DEPENDENCIES,
		MaxManifestBytes:   DEFAULT_MAX_MANIFEST_BYTES,
		FragilePackages:    DEFAULT_FRAGILE_PACKAGES,
		WellKnownChannels:  DEFAULT_WELL_KNOWN_CHANNELS,
	}
}

// Analyzer classifies manifests as standard or complex. Classification is
// computed once per manifest per run, before strategy selection.
type Analyzer struct {
	rules    Ruleset
	policies *PolicySet
}

func NewAnalyzer() *Analyzer {
	return NewAnalyzerWithRuleset(DefaultRuleset())
}

func NewAnalyzerWithRuleset(rules Ruleset) *Analyzer {
	return &Analyzer{rules: rules}
}

// AttachPolicies wires an optional rego policy set into the analyzer.
// Policies extend the builtin rules: they run only when the builtin table
// said standard, and any policy-returned reason forces complex.
func (a *Analyzer) AttachPolicies(ps *PolicySet) {
	a.policies = ps
}

// envFile is the parsed shape of an environment manifest. Dependencies stay
// untyped because conda mixes plain strings with a nested pip mapping.
type envFile struct {
	Name         string   `yaml:"name"`
	Channels     []string `yaml:"channels"`
	Dependencies []any    `yaml:"dependencies"`
}

// parsedManifest is the analyzer's working view of one manifest
type parsedManifest struct {
	channels  []string
	deps      []string // top-level dependency entries (spec strings)
	pipDeps   []string // entries of the nested pip block
	depCount  int      // count of top-level list entries, pip block included
	sizeBytes int
}

// Classify inspects one manifest and decides standard vs complex, with a
// human-readable reason. Rules are evaluated in order, first match wins.
// Any failure to parse the content degrades conservatively to complex;
// a broken manifest must never be routed to the unsupervised path.
func (a *Analyzer) Classify(ctx context.Context, m models.Manifest) models.Classification {
	parsed, err := parse(m)
	if err != nil {
		logger.WithField("env", m.Name).WithField("error", err).Warn("Manifest analysis failed, classifying as complex")
		return markComplex(fmt.Sprintf("analysis error: %v", err))
	}

	for _, rule := range a.ruleTable() {
		if reason, matched := rule(parsed); matched {
			logger.WithField("env", m.Name).WithField("reason", reason).Debug("Classified as complex")
			return markComplex(reason)
		}
	}

	if a.policies != nil {
		reasons, err := a.policies.Evaluate(ctx, policyInput(m.Name, parsed))
		if err != nil {
			logger.WithField("env", m.Name).WithField("error", err).Warn("Policy evaluation failed, classifying as complex")
			return markComplex(fmt.Sprintf("analysis error: %v", err))
		}
		if len(reasons) > 0 {
			return markComplex(reasons[0])
		}
	}

	return models.Classification{Class: models.ComplexityStandard, Reason: "standard"}
}

type complexityRule func(parsedManifest) (reason string, matched bool)

func (a *Analyzer) ruleTable() []complexityRule {
	return []complexityRule{
		a.ruleManyDependencies,
		a.ruleChannels,
		a.ruleLegacyPython,
		a.ruleFragilePackages,
		a.rulePipDependencies,
		a.ruleLargeManifest,
	}
}

func (a *Analyzer) ruleManyDependencies(p parsedManifest) (string, bool) {
	if p.depCount > a.rules.MaxDependencies {
		return fmt.Sprintf("many dependencies (%d)", p.depCount), true
	}
	return "", false
}

func (a *Analyzer) ruleChannels(p parsedManifest) (string, bool) {
	if len(p.channels) > a.rules.MaxChannels {
		return "complex or multiple channels", true
	}
	wellKnown := 0
	for _, ch := range p.channels {
		if strings.Contains(ch, "://") {
			return "complex or multiple channels", true
		}
		for _, known := range a.rules.WellKnownChannels {
			if strings.EqualFold(ch, known) {
				wellKnown++
				break
			}
		}
	}
	if wellKnown > 1 {
		return "complex or multiple channels", true
	}
	return "", false
}

// pythonPinPattern matches an exact python pin like "python=3.6" or
// "python==3.9.1". Range constraints (">=") are not pins and don't match.
var pythonPinPattern = regexp.MustCompile(`^python\s*={1,2}\s*([0-9]+)\.([0-9]+)(\.[0-9]+)?`)

func (a *Analyzer) ruleLegacyPython(p parsedManifest) (string, bool) {
	for _, dep := range p.deps {
		match := pythonPinPattern.FindStringSubmatch(dep)
		if match == nil {
			continue
		}
		major, minor := atoi(match[1]), atoi(match[2])
		fullPin := match[3] != ""
		if major < 3 || (major == 3 && minor <= 6) || fullPin {
			return "specific/legacy python version", true
		}
	}
	return "", false
}

func (a *Analyzer) ruleFragilePackages(p parsedManifest) (string, bool) {
	for _, dep := range append(append([]string{}, p.deps...), p.pipDeps...) {
		name := basePackageName(dep)
		for _, fragile := range a.rules.FragilePackages {
			if name == fragile {
				return fmt.Sprintf("contains problematic package: %s", name), true
			}
		}
	}
	return "", false
}

func (a *Analyzer) rulePipDependencies(p parsedManifest) (string, bool) {
	if p.pipDeps == nil {
		return "", false
	}
	if len(p.pipDeps) > a.rules.MaxPipDependencies {
		return fmt.Sprintf("many pip dependencies (%d)", len(p.pipDeps)), true
	}
	return "contains pip dependencies", true
}

func (a *Analyzer) ruleLargeManifest(p parsedManifest) (string, bool) {
	if p.sizeBytes > a.rules.MaxManifestBytes {
		return fmt.Sprintf("manifest is large (%d bytes)", p.sizeBytes), true
	}
	return "", false
}

func parse(m models.Manifest) (parsedManifest, error) {
	var env envFile
	if err := yaml.Unmarshal(m.Content, &env); err != nil {
		return parsedManifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}

	parsed := parsedManifest{
		channels:  env.Channels,
		depCount:  len(env.Dependencies),
		sizeBytes: m.SizeBytes,
	}
	for _, entry := range env.Dependencies {
		switch v := entry.(type) {
		case string:
			parsed.deps = append(parsed.deps, v)
		case map[string]any:
			pipList, ok := v["pip"]
			if !ok {
				continue
			}
			parsed.pipDeps = []string{}
			items, ok := pipList.([]any)
			if !ok {
				return parsedManifest{}, fmt.Errorf("pip section is not a list")
			}
			for _, item := range items {
				s, ok := item.(string)
				if !ok {
					return parsedManifest{}, fmt.Errorf("pip entry is not a string: %v", item)
				}
				parsed.pipDeps = append(parsed.pipDeps, s)
			}
		}
	}
	return parsed, nil
}

func policyInput(name string, p parsedManifest) map[string]any {
	return map[string]any{
		"name":             name,
		"channels":         p.channels,
		"dependencies":     p.deps,
		"pip_dependencies": p.pipDeps,
		"dependency_count": p.depCount,
		"size_bytes":       p.sizeBytes,
	}
}

// basePackageName strips the version spec from a dependency entry,
// e.g. "numpy=1.21=py39" -> "numpy", "torch>=2.0" -> "torch"
func basePackageName(dep string) string {
	name := strings.TrimSpace(dep)
	if idx := strings.IndexAny(name, "=<>!~ "); idx >= 0 {
		name = name[:idx]
	}
	return strings.ToLower(name)
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

func markComplex(reason string) models.Classification {
	return models.Classification{Class: models.ComplexityComplex, Reason: reason}
}
