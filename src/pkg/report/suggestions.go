package report

import "strings"

// SuggestionCategory buckets a failure diagnostic for remediation hints
type SuggestionCategory string

const (
	SuggestionPipConflict     SuggestionCategory = "pip-conflict"
	SuggestionVersionConflict SuggestionCategory = "version-conflict"
	SuggestionChannel         SuggestionCategory = "channel-or-network"
	SuggestionNotFound        SuggestionCategory = "package-not-found"
	SuggestionPermission      SuggestionCategory = "permission"
	SuggestionGeneric         SuggestionCategory = "generic"
)

type suggestionRule struct {
	Category   SuggestionCategory
	Signatures []string
	Advice     string
}

// SUGGESTION_RULES maps diagnostic text to a remediation category.
// Evaluated in order, first match wins; keep the most specific
// signatures (pip) ahead of the broader conflict patterns.
var SUGGESTION_RULES = []suggestionRule{
	{
		Category: SuggestionPipConflict,
		Signatures: []string{
			"ResolutionImpossible", "pip._internal", "Pip subprocess error",
			"conflicting dependencies",
		},
		Advice: "pip could not reconcile the pinned requirements; rerun with --upgrade to relax pins, or loosen the pip section by hand",
	},
	{
		Category: SuggestionVersionConflict,
		Signatures: []string{
			"UnsatisfiableError", "Could not solve for environment specs",
			"incompatible with", "package_conflict",
		},
		Advice: "the solver found conflicting version constraints; rerun with --upgrade, or recreate the environment from an unpinned manifest",
	},
	{
		Category: SuggestionChannel,
		Signatures: []string{
			"CondaHTTPError", "ConnectionError", "Connection broken",
			"channel is unavailable", "HTTP 000",
		},
		Advice: "a channel could not be reached; check network access and channel configuration, then retry",
	},
	{
		Category: SuggestionNotFound,
		Signatures: []string{
			"PackagesNotFoundError", "ResolvePackageNotFound",
			"not available from current channels",
		},
		Advice: "a package is missing from the configured channels; verify the name and consider adding conda-forge to the manifest channels",
	},
	{
		Category: SuggestionPermission,
		Signatures: []string{
			"PermissionError", "Permission denied", "NotWritableError", "EACCES",
		},
		Advice: "check ownership and write access on the manager prefix and package cache",
	},
}

// SuggestionFor classifies a stored diagnostic into a remediation category
// and its advice text. Pure function over the diagnostic string.
func SuggestionFor(diagnostic string) (SuggestionCategory, string) {
	lower := strings.ToLower(diagnostic)
	for _, rule := range SUGGESTION_RULES {
		for _, sig := range rule.Signatures {
			if strings.Contains(lower, strings.ToLower(sig)) {
				return rule.Category, rule.Advice
			}
		}
	}
	return SuggestionGeneric, "inspect the captured output below; a manual create from the manifest usually surfaces more detail"
}
