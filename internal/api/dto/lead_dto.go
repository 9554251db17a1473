package dto

import (
	"bytes"
	"encoding/json"

	"github.com/spec-kit/lead-manager/internal/domain"
)

// Envelope wraps every JSON response.
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Meta    any            `json:"meta,omitempty"`
}

// CreateLeadRequest payload.
type CreateLeadRequest struct {
	Name                   string              `json:"name"`
	CompanyName            string              `json:"companyName"`
	Website                string              `json:"website"`
	Email                  string              `json:"email"`
	PhoneNumber            string              `json:"phoneNumber"`
	Address                string              `json:"address"`
	Status                 domain.LeadStatus   `json:"status"`
	Category               string              `json:"category"`
	AdditionalRequirements string              `json:"additionalRequirements"`
	ContactedBy            *domain.StaffMember `json:"contactedBy"`
}

// UpdateLeadRequest payload. Omitted fields are left unchanged.
type UpdateLeadRequest struct {
	Name                   *string            `json:"name"`
	CompanyName            *string            `json:"companyName"`
	Website                *string            `json:"website"`
	Email                  *string            `json:"email"`
	PhoneNumber            *string            `json:"phoneNumber"`
	Address                *string            `json:"address"`
	Status                 *domain.LeadStatus `json:"status"`
	Category               *string            `json:"category"`
	AdditionalRequirements *string            `json:"additionalRequirements"`
	ContactedBy            NullableStaff      `json:"contactedBy"`
}

// NullableStaff records whether contactedBy was present in the body, so an
// explicit null can clear the field.
type NullableStaff struct {
	Set   bool
	Value *domain.StaffMember
}

func (n *NullableStaff) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var member domain.StaffMember
	if err := json.Unmarshal(data, &member); err != nil {
		return err
	}
	n.Value = &member
	return nil
}

// ImportMeta reports row counts for an upload.
type ImportMeta struct {
	Inserted int `json:"inserted"`
	Rejected int `json:"rejected"`
}

// Fields returns only the supplied fields, keyed by their JSON names. An
// explicitly cleared contactedBy is kept as nil.
func (r UpdateLeadRequest) Fields() map[string]any {
	fields := map[string]any{}
	put := func(key string, v *string) {
		if v != nil {
			fields[key] = *v
		}
	}
	put("name", r.Name)
	put("companyName", r.CompanyName)
	put("website", r.Website)
	put("email", r.Email)
	put("phoneNumber", r.PhoneNumber)
	put("address", r.Address)
	put("category", r.Category)
	put("additionalRequirements", r.AdditionalRequirements)
	if r.Status != nil {
		fields["status"] = *r.Status
	}
	if r.ContactedBy.Set {
		if r.ContactedBy.Value == nil {
			fields["contactedBy"] = nil
		} else {
			fields["contactedBy"] = *r.ContactedBy.Value
		}
	}
	return fields
}
