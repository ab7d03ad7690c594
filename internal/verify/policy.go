// Package verify classifies data-quality issue codes for a company's
// dataset and produces the verified-state artifact consumed by the
// serving layer. Policies are versioned so historical verification runs
// stay reproducible against the policy in force at run time.
package verify

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Policy classifies issue codes into blocking ("hard") and advisory
// ("warn"). Codes are opaque strings; new codes never require a policy
// engine change, only a policy revision.
type Policy struct {
	Version      string   `yaml:"version" json:"version"`
	HardExact    []string `yaml:"hard_exact" json:"hardExact"`
	WarnExact    []string `yaml:"warn_exact" json:"warnExact"`
	HardPrefixes []string `yaml:"hard_prefixes" json:"hardPrefixes"`
}

// PolicyV0 is the built-in baseline policy.
func PolicyV0() *Policy {
	return &Policy{
		Version: "v0",
		HardExact: []string{
			"missing_asOf",
			"ticker_mismatch",
		},
		WarnExact: []string{
			"missing_cash_asof",
			"missing_debt_asof",
			"missing_preferred_asof",
			"missing_shares_asof",
			"missing_holdings_source",
		},
		HardPrefixes: []string{
			"schemaVersion_",
			"read_failed",
			"invalid_",
			"low_quality_evidence:",
		},
	}
}

// IsHard classifies one code. First match wins: hard exacts, then warn
// exacts, then hard prefixes. Anything unmatched is not hard, so unknown
// codes never block verification.
func (p *Policy) IsHard(code string) bool {
	for _, c := range p.HardExact {
		if code == c {
			return true
		}
	}
	for _, c := range p.WarnExact {
		if code == c {
			return false
		}
	}
	for _, prefix := range p.HardPrefixes {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}

// Evaluate splits a company's issue codes; verified is true iff no code
// classifies as hard.
func (p *Policy) Evaluate(codes []string) (verified bool, hard, warn []string) {
	hard = []string{}
	warn = []string{}
	for _, code := range codes {
		if p.IsHard(code) {
			hard = append(hard, code)
		} else {
			warn = append(warn, code)
		}
	}
	return len(hard) == 0, hard, warn
}

// LoadPolicy reads a policy from a YAML file. An empty path selects the
// built-in v0.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return PolicyV0(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "verify: read policy %s", path)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(err, "verify: parse policy %s", path)
	}
	if p.Version == "" {
		return nil, eris.Errorf("verify: policy %s has no version", path)
	}

	for _, entry := range p.Lint(KnownIssueCodes) {
		zap.L().Warn("verify: policy entry matches no known issue code",
			zap.String("policy_version", p.Version),
			zap.String("entry", entry),
		)
	}
	return &p, nil
}

// Lint returns policy entries that classify none of the known issue
// codes. A stale entry is advisory only; the engine stays permissive.
func (p *Policy) Lint(known []string) []string {
	var unmatched []string
	for _, c := range append(append([]string{}, p.HardExact...), p.WarnExact...) {
		found := false
		for _, k := range known {
			if k == c {
				found = true
				break
			}
		}
		if !found {
			unmatched = append(unmatched, c)
		}
	}
	for _, prefix := range p.HardPrefixes {
		found := false
		for _, k := range known {
			if strings.HasPrefix(k, prefix) {
				found = true
				break
			}
		}
		if !found {
			unmatched = append(unmatched, prefix)
		}
	}
	return unmatched
}
