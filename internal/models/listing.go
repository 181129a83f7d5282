// internal/models/listing.go
package models

// StudentProfile is the part of a student's record copied into applications.
type StudentProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Institution struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Website string `json:"website,omitempty"`
}

// Ref returns the institution's identifying fields.
func (i Institution) Ref() InstitutionRef {
	return InstitutionRef{ID: i.ID, Email: i.Email, Name: i.Name}
}

type Faculty struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Course carries its entry requirements as free text, for example
// "Mathematics: 50%, English: 60%, Overall: 60%".
type Course struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Requirements string `json:"requirements,omitempty"`
}

type JobPosting struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	CompanyID   string `json:"companyId"`
	CompanyName string `json:"companyName"`
}
