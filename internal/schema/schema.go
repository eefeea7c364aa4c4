package schema

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/fairloan-cli/internal/dataset"
)

// Kind describes how the encoder treats a resolved column.
type Kind string

const (
	// Numeric columns are coerced to float64.
	Numeric Kind = "numeric"
	// Indicator columns become 1 when the value equals the role's positive token.
	Indicator Kind = "indicator"
	// Factor columns are coded by first-seen order.
	Factor Kind = "factor"
	// Label is the approval outcome.
	Label Kind = "label"
)

// Role is a canonical semantic column with its acceptable raw names, in order.
type Role struct {
	Name       string   `json:"name" yaml:"name"`
	Candidates []string `json:"candidates" yaml:"candidates"`
	Kind       Kind     `json:"kind" yaml:"kind"`
	// PositiveToken applies to Indicator roles.
	PositiveToken string `json:"positive_token,omitempty" yaml:"positive_token,omitempty"`
	// Continuous marks numeric roles that fairness slicing bins.
	Continuous bool `json:"continuous,omitempty" yaml:"continuous,omitempty"`
	// Optional roles are dropped when no candidate is present.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Profile is an ordered candidate table for one family of source datasets.
type Profile struct {
	Name string
	// Roles lists features in feature order, followed by exactly one Label role.
	Roles []Role
	// Primary names the default sensitive attribute; empty means auto-detect.
	Primary string
	// Ignore lists raw columns never used as features.
	Ignore []string
}

// MissingColumnError reports a canonical role with no matching raw column.
type MissingColumnError struct {
	Role       string
	Candidates []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column %q among: %s", e.Role, strings.Join(e.Candidates, ", "))
}

// Resolve returns the first candidate present in the dataset header. Matching is
// case-insensitive and whitespace-trimmed on both sides.
func Resolve(d *dataset.Dataset, role string, candidates []string) (string, error) {
	for _, name := range candidates {
		n := dataset.NormalizeHeader(name)
		if d.Has(n) {
			return n, nil
		}
	}
	return "", &MissingColumnError{Role: role, Candidates: candidates}
}

// Resolution is the outcome of resolving every role of a profile.
type Resolution struct {
	Profile *Profile
	// Columns maps canonical role name to the resolved raw column.
	Columns map[string]string
}

// RawToCanonical inverts Columns, the form persisted as column_mapping.
func (r *Resolution) RawToCanonical() map[string]string {
	out := make(map[string]string, len(r.Columns))
	for canon, raw := range r.Columns {
		out[raw] = canon
	}
	return out
}

// Features returns the feature roles in order.
func (p *Profile) Features() []Role {
	out := make([]Role, 0, len(p.Roles))
	for _, r := range p.Roles {
		if r.Kind != Label {
			out = append(out, r)
		}
	}
	return out
}

// LabelRole returns the label role.
func (p *Profile) LabelRole() Role {
	for _, r := range p.Roles {
		if r.Kind == Label {
			return r
		}
	}
	return Role{}
}

// Candidates returns canonical name to candidate list for every role.
func (p *Profile) Candidates() map[string][]string {
	out := make(map[string][]string, len(p.Roles))
	for _, r := range p.Roles {
		out[r.Name] = append([]string(nil), r.Candidates...)
	}
	return out
}

// Resolve resolves every role. On failure it returns the first missing required
// role's error together with the number of roles that did resolve.
func (p *Profile) Resolve(d *dataset.Dataset) (*Resolution, int, error) {
	res := &Resolution{Profile: p, Columns: make(map[string]string, len(p.Roles))}
	var firstErr error
	for _, r := range p.Roles {
		raw, err := Resolve(d, r.Name, r.Candidates)
		if err != nil {
			if r.Optional {
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res.Columns[r.Name] = raw
	}
	if firstErr != nil {
		return nil, len(res.Columns), firstErr
	}
	return res, len(res.Columns), nil
}
