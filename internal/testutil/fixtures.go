// Package testutil generates deterministic datasets for tests.
package testutil

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/fairloan-cli/internal/dataset"
)

var jobs = []string{"skilled", "unskilled", "highly skilled"}

// GermanCSV returns n rows shaped like the German credit data. Risk follows
// duration with some label noise so neither class is empty.
func GermanCSV(n int) string {
	var b strings.Builder
	b.WriteString("Age,Sex,Job,Credit amount,Duration,Risk\n")
	for i := 0; i < n; i++ {
		sex := "male"
		if i%3 == 0 {
			sex = "female"
		}
		age := 20 + (i*7)%45
		amount := 500 + (i*137)%8000
		duration := 6 + (i*11)%48
		risk := "good"
		if (duration >= 30) != (i%7 == 0) {
			risk = "bad"
		}
		fmt.Fprintf(&b, "%d,%s,%s,%d,%d,%s\n", age, sex, jobs[(i/2)%3], amount, duration, risk)
	}
	return b.String()
}

// LoanCSV returns n rows shaped like the loan approval data, including the
// leading spaces its categorical values carry.
func LoanCSV(n int) string {
	var b strings.Builder
	b.WriteString("loan_id, no_of_dependents, education, self_employed, income_annum, loan_amount, loan_term," +
		" cibil_score, residential_assets_value, commercial_assets_value, luxury_assets_value, bank_asset_value, loan_status\n")
	for i := 0; i < n; i++ {
		edu := " Graduate"
		if i%4 == 0 {
			edu = " Not Graduate"
		}
		self := " No"
		if i%5 == 0 {
			self = " Yes"
		}
		income := 200000 + (i*37000)%9000000
		cibil := 300 + (i*53)%600
		status := " Approved"
		if (cibil < 550) != (i%9 == 0) {
			status = " Rejected"
		}
		fmt.Fprintf(&b, "%d,%d,%s,%s,%d,%d,%d,%d,%d,%d,%d,%d,%s\n",
			i+1, i%6, edu, self, income, income*3, 2+(i%10)*2, cibil,
			(i*91000)%5000000, (i*47000)%3000000, (i*113000)%9000000, (i*29000)%2000000, status)
	}
	return b.String()
}

// German parses GermanCSV(n).
func German(n int) *dataset.Dataset { return mustRead(GermanCSV(n)) }

// Loan parses LoanCSV(n).
func Loan(n int) *dataset.Dataset { return mustRead(LoanCSV(n)) }

func mustRead(s string) *dataset.Dataset {
	d, err := dataset.ReadCSV(strings.NewReader(s), dataset.DefaultOptions())
	if err != nil {
		panic(err)
	}
	return d
}
