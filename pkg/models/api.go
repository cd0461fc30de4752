package models

import "github.com/google/uuid"

// ValidationErrorResponse is the Laravel-style body for 400 validation errors.
type ValidationErrorResponse struct {
	Message string              `json:"message" example:"Validation failed"`
	Errors  map[string][]string `json:"errors"`
}

// ErrorResponse is the generic error body (403/404/409/500).
type ErrorResponse struct {
	Error   string `json:"error" example:"Consultation not found"`
	Code    string `json:"code,omitempty" example:"NOT_FOUND"`
	Details string `json:"details,omitempty"`
}

/* ============================== Summaries =============================== */

// PartySummary is the public part of a user embedded in other payloads.
type PartySummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
}

// LawyerSummary is what consultation listings show about the lawyer.
type LawyerSummary struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Role           Role      `json:"role"`
	Specialization string    `json:"specialization"`
	FeePerHour     int       `json:"feePerHour"`
}

// ConsultationView is a consultation with denormalized parties.
type ConsultationView struct {
	Consultation
	Client *PartySummary  `json:"client,omitempty"`
	Lawyer *LawyerSummary `json:"lawyer,omitempty"`
}

// MessageView is a consultation message with its sender's summary.
type MessageView struct {
	ConsultationMessage
	Sender *PartySummary `json:"sender,omitempty"`
}

// LawyerView flattens a lawyer user and profile for directory listings.
type LawyerView struct {
	ID                 uuid.UUID            `json:"id"`
	UserID             string               `json:"userId"`
	Name               string               `json:"name"`
	Email              string               `json:"email"`
	Phone              string               `json:"phone,omitempty"`
	Specialization     string               `json:"specialization"`
	BarID              string               `json:"barId"`
	Experience         int                  `json:"experience"`
	FeePerHour         int                  `json:"feePerHour"`
	Availability       []AvailabilityWindow `json:"availabilitySchedule"`
	ConnectionLink     string               `json:"connectionLink,omitempty"`
	VerificationStatus VerificationStatus   `json:"verificationStatus"`
}

// Summary returns the party summary of u.
func (u *User) Summary() *PartySummary {
	if u == nil {
		return nil
	}
	return &PartySummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// LawyerSummary returns the lawyer summary of u.
func (u *User) LawyerSummary() *LawyerSummary {
	if u == nil {
		return nil
	}
	s := &LawyerSummary{ID: u.ID, Name: u.Name, Role: u.Role}
	if u.Lawyer != nil {
		s.Specialization = u.Lawyer.Specialization
		s.FeePerHour = u.Lawyer.FeePerHour
	}
	return s
}

// LawyerView flattens u. Callers must have loaded the Lawyer relation.
func (u *User) LawyerView() LawyerView {
	v := LawyerView{ID: u.ID, UserID: u.ExternalID, Name: u.Name, Email: u.Email, Phone: u.Phone}
	if p := u.Lawyer; p != nil {
		v.Specialization = p.Specialization
		v.BarID = p.BarID
		v.Experience = p.ExperienceYears
		v.FeePerHour = p.FeePerHour
		v.Availability = []AvailabilityWindow(p.Availability)
		v.ConnectionLink = p.MeetingLink
		v.VerificationStatus = p.VerificationStatus
	}
	if v.Availability == nil {
		v.Availability = []AvailabilityWindow{}
	}
	return v
}
