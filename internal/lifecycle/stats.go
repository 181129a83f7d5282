package lifecycle

import (
	"math"
	"strings"

	"admissions-workers/internal/models"
)

// Stats is a fold over a set of applications.
type Stats struct {
	TotalApplications int `json:"totalApplications"`
	Pending           int `json:"pending"`
	Admitted          int `json:"admitted"`
	Rejected          int `json:"rejected"`
	AdmissionRate     int `json:"admissionRate"`
}

// ComputeStats counts apps by status. AdmissionRate is the rounded
// percentage of admitted applications, 0 for an empty set.
func ComputeStats(apps []*models.Application) Stats {
	var s Stats
	for _, a := range apps {
		s.TotalApplications++
		switch a.Status {
		case models.StatusPending:
			s.Pending++
		case models.StatusAdmitted:
			s.Admitted++
		case models.StatusRejected:
			s.Rejected++
		}
	}
	if s.TotalApplications > 0 {
		s.AdmissionRate = int(math.Round(float64(s.Admitted) / float64(s.TotalApplications) * 100))
	}
	return s
}

// BelongsTo matches an application to an institution by id, email or name.
func BelongsTo(a *models.Application, inst models.InstitutionRef) bool {
	switch {
	case inst.ID != "" && a.InstitutionID == inst.ID:
		return true
	case inst.Email != "" && strings.EqualFold(a.InstitutionEmail, inst.Email):
		return true
	case inst.Name != "" && a.InstitutionName == inst.Name:
		return true
	}
	return false
}

// InstitutionStats computes Stats over the applications of one institution.
func InstitutionStats(inst models.InstitutionRef, apps []*models.Application) Stats {
	matched := make([]*models.Application, 0, len(apps))
	for _, a := range apps {
		if BelongsTo(a, inst) {
			matched = append(matched, a)
		}
	}
	return ComputeStats(matched)
}

// InstitutionReport is one row of the system report.
type InstitutionReport struct {
	Institution models.InstitutionRef `json:"institution"`
	Stats
}

// SystemReport is the admin view over every application.
type SystemReport struct {
	Overall      Stats               `json:"overall"`
	Institutions []InstitutionReport `json:"institutions"`
}

// BuildSystemReport folds all applications, and per institution for each
// entry of institutions, in the given order.
func BuildSystemReport(institutions []models.InstitutionRef, apps []*models.Application) SystemReport {
	report := SystemReport{
		Overall:      ComputeStats(apps),
		Institutions: make([]InstitutionReport, 0, len(institutions)),
	}
	for _, inst := range institutions {
		report.Institutions = append(report.Institutions, InstitutionReport{
			Institution: inst,
			Stats:       InstitutionStats(inst, apps),
		})
	}
	return report
}
