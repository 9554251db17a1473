package ingest

import (
	"time"

	"github.com/spec-kit/lead-manager/internal/domain"
)

// Header aliases per canonical field, tried in order. The first alias with a
// non-empty value wins.
var (
	nameAliases                   = []string{"name", "Name"}
	companyNameAliases            = []string{"Company Name", "companyName", "CompanyName"}
	websiteAliases                = []string{"website", "Website"}
	emailAliases                  = []string{"email", "Email"}
	phoneNumberAliases            = []string{"phoneNumber", "PhoneNumber", "Phone Number"}
	addressAliases                = []string{"address", "Address"}
	categoryAliases               = []string{"category", "Category"}
	additionalRequirementsAliases = []string{"additionalRequirements", "AdditionalRequirements", "Additional Requirements"}
)

func lookup(row Row, aliases []string) string {
	for _, alias := range aliases {
		if value := row[alias]; value != "" {
			return value
		}
	}
	return ""
}

// RowToLead maps a parsed row onto a pending lead. It reports false for rows
// that cannot be contacted or that have neither a name nor a company name.
func RowToLead(row Row, now time.Time) (domain.Lead, bool) {
	email := lookup(row, emailAliases)
	phone := lookup(row, phoneNumberAliases)
	if email == "" && phone == "" {
		return domain.Lead{}, false
	}

	name := lookup(row, nameAliases)
	company := lookup(row, companyNameAliases)
	if company == "" {
		company = name
	}
	if name == "" {
		name = company
	}
	if name == "" {
		return domain.Lead{}, false
	}

	requirements := lookup(row, additionalRequirementsAliases)
	return domain.Lead{
		Name:                   name,
		CompanyName:            company,
		Website:                lookup(row, websiteAliases),
		Email:                  email,
		PhoneNumber:            phone,
		Address:                lookup(row, addressAliases),
		Status:                 domain.LeadStatusPending,
		Category:               domain.ResolveCategory(lookup(row, categoryAliases), company, requirements),
		AdditionalRequirements: requirements,
		ContactedBy:            nil,
		CreatedAt:              now,
		UpdatedAt:              now,
	}, true
}
