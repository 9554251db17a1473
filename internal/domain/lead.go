package domain

import "time"

// LeadStatus enumerates positions in the contact pipeline.
type LeadStatus string

const (
	LeadStatusPending   LeadStatus = "pending"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusRejected  LeadStatus = "rejected"
	LeadStatusFollowUp  LeadStatus = "follow-up"
	LeadStatusSuccess   LeadStatus = "success"
)

// LeadStatuses lists every storable status in pipeline order.
var LeadStatuses = []LeadStatus{
	LeadStatusPending,
	LeadStatusContacted,
	LeadStatusRejected,
	LeadStatusFollowUp,
	LeadStatusSuccess,
}

// Valid reports whether s is one of the enumerated statuses.
func (s LeadStatus) Valid() bool {
	for _, candidate := range LeadStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// StaffMember identifies a member of the sales team. The set is closed.
type StaffMember string

const (
	StaffNazeeb  StaffMember = "NAZEEB"
	StaffMariyam StaffMember = "MARIYAM"
	StaffSulthan StaffMember = "SULTHAN"
	StaffYadhu   StaffMember = "YADHU"
)

// StaffMembers lists the known staff identifiers.
var StaffMembers = []StaffMember{StaffNazeeb, StaffMariyam, StaffSulthan, StaffYadhu}

// Valid reports whether m is a known staff identifier.
func (m StaffMember) Valid() bool {
	for _, candidate := range StaffMembers {
		if m == candidate {
			return true
		}
	}
	return false
}

// Lead is a prospective customer tracked through the contact pipeline.
type Lead struct {
	ID                     string       `json:"id"`
	Name                   string       `json:"name"`
	CompanyName            string       `json:"companyName"`
	Website                string       `json:"website,omitempty"`
	Email                  string       `json:"email,omitempty"`
	PhoneNumber            string       `json:"phoneNumber,omitempty"`
	Address                string       `json:"address,omitempty"`
	Status                 LeadStatus   `json:"status"`
	Category               string       `json:"category"`
	AdditionalRequirements string       `json:"additionalRequirements,omitempty"`
	ContactedBy            *StaffMember `json:"contactedBy"`
	CreatedAt              time.Time    `json:"createdAt"`
	UpdatedAt              time.Time    `json:"updatedAt"`
}

// Clone returns a copy that shares no pointers with l.
func (l Lead) Clone() Lead {
	if l.ContactedBy != nil {
		member := *l.ContactedBy
		l.ContactedBy = &member
	}
	return l
}
