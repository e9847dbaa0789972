package assessment

import (
	"fmt"
	"strings"
)

var (
	YearsInBusinessOptions = []string{"<1 year", "1–3 years", "4–10 years", "10+ years"}
	EmployeeRangeOptions   = []string{"1–5", "6–10", "10–25", "26–50", "51–100", "More than 100"}
	WorkModeOptions        = []string{"Local & in-person", "Online / remote", "A mix of both"}
	ITManagementOptions    = []string{"Self-managed", "Outsourced IT", "Shared responsibility", "Not sure"}
	TurnoverOptions        = turnoverOptions()
)

const (
	WorkModeLocal  = "Local & in-person"
	WorkModeRemote = "Online / remote"
	WorkModeMixed  = "A mix of both"
)

func turnoverOptions() []string {
	out := []string{"<€100k"}
	for i := 1; i <= 99; i++ {
		out = append(out, fmt.Sprintf("€%d00k", i))
	}
	return append(out, "€10M–<€50M", "€50M+")
}

var euRegions = map[string]bool{
	"eu": true, "eea": true, "uk": true, "european union": true,
	"austria": true, "belgium": true, "bulgaria": true, "croatia": true, "cyprus": true,
	"czechia": true, "czech republic": true, "denmark": true, "estonia": true, "finland": true,
	"france": true, "germany": true, "greece": true, "hungary": true, "ireland": true,
	"italy": true, "latvia": true, "lithuania": true, "luxembourg": true, "malta": true,
	"netherlands": true, "poland": true, "portugal": true, "romania": true, "slovakia": true,
	"slovenia": true, "spain": true, "sweden": true, "iceland": true, "liechtenstein": true,
	"norway": true,
}

// Profile describes the business. It annotates output and derives context
// tags; it never changes the numeric score.
type Profile struct {
	PersonName      string `json:"personName"`
	CompanyName     string `json:"companyName"`
	Sector          string `json:"sector"`
	YearsInBusiness string `json:"yearsInBusiness"`
	EmployeeRange   string `json:"employeeRange"`
	Turnover        string `json:"turnover"`
	Region          string `json:"region"`
	WorkMode        string `json:"workMode"`
	ITManagement    string `json:"itManagement"`
}

// DefaultProfile is the state of a fresh session.
func DefaultProfile() Profile {
	return Profile{
		YearsInBusiness: YearsInBusinessOptions[0],
		EmployeeRange:   EmployeeRangeOptions[0],
		Turnover:        TurnoverOptions[0],
		WorkMode:        WorkModeOptions[0],
	}
}

// Complete reports whether the profile is enough to move on to the questions.
func (p Profile) Complete() bool {
	return strings.TrimSpace(p.PersonName) != "" && strings.TrimSpace(p.CompanyName) != ""
}

// Validate checks the option-backed fields. Empty values are allowed.
func (p Profile) Validate() error {
	checks := []struct {
		field   string
		value   string
		options []string
	}{
		{"yearsInBusiness", p.YearsInBusiness, YearsInBusinessOptions},
		{"employeeRange", p.EmployeeRange, EmployeeRangeOptions},
		{"turnover", p.Turnover, TurnoverOptions},
		{"workMode", p.WorkMode, WorkModeOptions},
		{"itManagement", p.ITManagement, ITManagementOptions},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		if !containsString(c.options, c.value) {
			return fmt.Errorf("%s: %q is not a valid option", c.field, c.value)
		}
	}
	if len(p.PersonName) > 200 || len(p.CompanyName) > 200 || len(p.Sector) > 200 {
		return fmt.Errorf("name, company and sector are limited to 200 characters")
	}
	return nil
}

// InEU reports whether the region places processing under EU-style data
// protection rules.
func (p Profile) InEU() bool {
	return euRegions[strings.ToLower(strings.TrimSpace(p.Region))]
}

// Display returns v, or "—" when v is blank.
func Display(v string) string {
	if strings.TrimSpace(v) == "" {
		return "—"
	}
	return v
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
