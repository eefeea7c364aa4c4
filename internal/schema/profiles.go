package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/fairloan-cli/internal/dataset"
)

// GermanCredit covers the German credit family (Age, Sex, Job, Credit amount, Duration, Risk).
var GermanCredit = Profile{
	Name: "german_credit",
	Roles: []Role{
		{Name: "age", Candidates: []string{"age"}, Kind: Numeric, Continuous: true},
		{Name: "gender", Candidates: []string{"sex", "gender"}, Kind: Indicator, PositiveToken: "male"},
		{Name: "job", Candidates: []string{"job", "profession", "occupation"}, Kind: Factor},
		{Name: "credit_amount", Candidates: []string{"credit amount", "creditamount", "credit_amount", "amount"}, Kind: Numeric, Continuous: true},
		{Name: "duration", Candidates: []string{"duration", "term"}, Kind: Numeric, Continuous: true},
		{Name: "housing", Candidates: []string{"housing"}, Kind: Factor, Optional: true},
		{Name: "saving_accounts", Candidates: []string{"saving accounts", "saving_accounts", "savings"}, Kind: Factor, Optional: true},
		{Name: "checking_account", Candidates: []string{"checking account", "checking_account"}, Kind: Factor, Optional: true},
		{Name: "purpose", Candidates: []string{"purpose"}, Kind: Factor, Optional: true},
		{Name: "risk", Candidates: []string{"risk", "label", "target", "outcome", "loan_status"}, Kind: Label},
	},
	Primary: "gender",
}

// LoanApproval covers the loan-approval family keyed by loan_status.
var LoanApproval = Profile{
	Name: "loan_approval",
	Roles: []Role{
		{Name: "no_of_dependents", Candidates: []string{"no_of_dependents", "dependents"}, Kind: Numeric},
		{Name: "education", Candidates: []string{"education"}, Kind: Factor},
		{Name: "self_employed", Candidates: []string{"self_employed", "self employed"}, Kind: Factor},
		{Name: "income_annum", Candidates: []string{"income_annum", "income"}, Kind: Numeric, Continuous: true},
		{Name: "loan_amount", Candidates: []string{"loan_amount", "loan amount"}, Kind: Numeric, Continuous: true},
		{Name: "loan_term", Candidates: []string{"loan_term", "loan term"}, Kind: Numeric, Continuous: true},
		{Name: "cibil_score", Candidates: []string{"cibil_score", "credit_score"}, Kind: Numeric, Continuous: true},
		{Name: "residential_assets_value", Candidates: []string{"residential_assets_value"}, Kind: Numeric, Continuous: true},
		{Name: "commercial_assets_value", Candidates: []string{"commercial_assets_value"}, Kind: Numeric, Continuous: true},
		{Name: "luxury_assets_value", Candidates: []string{"luxury_assets_value"}, Kind: Numeric, Continuous: true},
		{Name: "bank_asset_value", Candidates: []string{"bank_asset_value"}, Kind: Numeric, Continuous: true},
		{Name: "loan_status", Candidates: []string{"loan_status", "status"}, Kind: Label},
	},
	Ignore: []string{"loan_id"},
}

// Profiles is the ordered list tried by Detect.
var Profiles = []*Profile{&GermanCredit, &LoanApproval}

// ErrUnknownProfile is returned by Lookup for an unregistered name.
var ErrUnknownProfile = errors.New("unknown schema profile")

// Lookup returns a registered profile by name.
func Lookup(name string) (*Profile, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, p := range Profiles {
		if p.Name == n {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
}

// Detect resolves the first profile whose roles all match. When none match it
// returns the error of the profile that resolved the most roles.
func Detect(d *dataset.Dataset) (*Resolution, error) {
	var bestErr error
	best := -1
	for _, p := range Profiles {
		res, n, err := p.Resolve(d)
		if err == nil {
			return res, nil
		}
		if n > best {
			best, bestErr = n, err
		}
	}
	if bestErr == nil {
		bestErr = errors.New("no schema profiles registered")
	}
	return nil, bestErr
}
