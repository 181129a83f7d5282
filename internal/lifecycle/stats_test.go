package lifecycle

import (
	"testing"

	"admissions-workers/internal/models"

	"github.com/stretchr/testify/assert"
)

func appsWith(inst models.InstitutionRef, admitted, rejected, pending int) []*models.Application {
	var out []*models.Application
	add := func(n int, s models.ApplicationStatus) {
		for i := 0; i < n; i++ {
			out = append(out, &models.Application{
				InstitutionID:    inst.ID,
				InstitutionEmail: inst.Email,
				InstitutionName:  inst.Name,
				Status:           s,
			})
		}
	}
	add(admitted, models.StatusAdmitted)
	add(rejected, models.StatusRejected)
	add(pending, models.StatusPending)
	return out
}

func TestComputeStats(t *testing.T) {
	inst := models.InstitutionRef{ID: "inst-a"}
	s := ComputeStats(appsWith(inst, 3, 2, 5))
	assert.Equal(t, Stats{TotalApplications: 10, Pending: 5, Admitted: 3, Rejected: 2, AdmissionRate: 30}, s)
}

func TestComputeStats_Empty(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil))
}

func TestComputeStats_Rounds(t *testing.T) {
	inst := models.InstitutionRef{ID: "inst-a"}
	assert.Equal(t, 67, ComputeStats(appsWith(inst, 2, 1, 0)).AdmissionRate)
	assert.Equal(t, 33, ComputeStats(appsWith(inst, 1, 2, 0)).AdmissionRate)
}

func TestInstitutionStats_MatchesByIDEmailOrName(t *testing.T) {
	inst := models.InstitutionRef{ID: "inst-a", Email: "a@uni.ls", Name: "Uni A"}

	var apps []*models.Application
	apps = append(apps, appsWith(models.InstitutionRef{ID: "inst-a"}, 1, 0, 0)...)
	apps = append(apps, appsWith(models.InstitutionRef{ID: "old", Email: "A@UNI.LS"}, 0, 1, 0)...)
	apps = append(apps, appsWith(models.InstitutionRef{ID: "old2", Name: "Uni A"}, 0, 0, 1)...)
	apps = append(apps, appsWith(models.InstitutionRef{ID: "inst-b", Email: "b@uni.ls", Name: "Uni B"}, 4, 0, 0)...)

	s := InstitutionStats(inst, apps)
	assert.Equal(t, Stats{TotalApplications: 3, Pending: 1, Admitted: 1, Rejected: 1, AdmissionRate: 33}, s)

	assert.Equal(t, Stats{}, InstitutionStats(models.InstitutionRef{ID: "none"}, apps))
}

func TestBuildSystemReport(t *testing.T) {
	a := models.InstitutionRef{ID: "inst-a", Name: "Uni A"}
	b := models.InstitutionRef{ID: "inst-b", Name: "Uni B"}
	apps := append(appsWith(a, 3, 2, 5), appsWith(b, 0, 1, 0)...)

	r := BuildSystemReport([]models.InstitutionRef{a, b, {ID: "inst-c"}}, apps)

	assert.Equal(t, 11, r.Overall.TotalApplications)
	assert.Equal(t, 27, r.Overall.AdmissionRate)
	assert.Len(t, r.Institutions, 3)
	assert.Equal(t, 30, r.Institutions[0].AdmissionRate)
	assert.Equal(t, 0, r.Institutions[1].AdmissionRate)
	assert.Equal(t, 0, r.Institutions[2].TotalApplications)
}
