package domain

import (
	"time"
)

// Profile is the basic stored record for one person.
type Profile struct {
	Summary  string
	Role     string
	PersonID string
}

// Fact is one stored attribute about a person, tagged with its canonical
// category label and the date it was recorded.
type Fact struct {
	Category    string
	Description string
	Date        *time.Time
}

// Canonical fact category labels. These match the `informacao` values written
// by the upstream assessment pipeline and must not be translated or reworded.
const (
	FactStrengths         = "tags pontos fortes"
	FactDevelopmentAreas  = "tags pontos desenvolvimento"
	FactEvaluationSummary = "resumo avd"
	FactFeedback          = "output_feedback"
	FactPDIOutput         = "output_pdi"
	FactObjectives        = "objetivos de carreira"
	FactTasks             = "tarefas cargo (autoavaliação)"
	FactDiagnosis         = "diagnostico pdi"

	// FactCompetencies is written only by the competency-capture branch of the
	// conversation; it is never read back from storage.
	FactCompetencies = "competencias foco"
)

// FactCategories lists every category read from storage, in the order they
// are rendered into the profile context.
func FactCategories() []string {
	return []string{
		FactStrengths,
		FactDevelopmentAreas,
		FactEvaluationSummary,
		FactFeedback,
		FactPDIOutput,
		FactObjectives,
		FactTasks,
		FactDiagnosis,
	}
}
