package lifecycle

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"admissions-workers/internal/common/config"
	"admissions-workers/internal/common/errors"
	"admissions-workers/internal/models"
)

// EligibilityPolicy decides whether submitted marks qualify for a course.
type EligibilityPolicy interface {
	Check(course models.Course, marks models.Marks) error
}

// NewEligibilityPolicy returns the policy for a configured mode.
func NewEligibilityPolicy(mode string, minOverall int) (EligibilityPolicy, error) {
	switch mode {
	case "", config.EligibilityOverallFloor:
		return OverallFloor{Min: minOverall}, nil
	case config.EligibilityCourseThresholds:
		return CourseThresholds{Floor: minOverall}, nil
	}
	return nil, fmt.Errorf("unknown eligibility mode %q", mode)
}

// OverallFloor only looks at the overall mark.
type OverallFloor struct {
	Min int
}

func (p OverallFloor) Check(_ models.Course, marks models.Marks) error {
	if got := marks.Int(models.MarkOverall); got < p.Min {
		return errors.NewIneligibleMarksError(models.MarkOverall, got, p.Min)
	}
	return nil
}

// CourseThresholds enforces Floor on the overall mark and, in addition,
// every minimum listed in the course's requirement text. A subject with a
// minimum but no submitted mark counts as 0.
type CourseThresholds struct {
	Floor int
}

func (p CourseThresholds) Check(course models.Course, marks models.Marks) error {
	reqs := ParseRequirements(course.Requirements)

	overallMin := p.Floor
	if v, ok := reqs[models.MarkOverall]; ok && v > overallMin {
		overallMin = v
	}
	if got := marks.Int(models.MarkOverall); got < overallMin {
		return errors.NewIneligibleMarksError(models.MarkOverall, got, overallMin)
	}

	subjects := make([]string, 0, len(reqs))
	for s := range reqs {
		if s != models.MarkOverall {
			subjects = append(subjects, s)
		}
	}
	sort.Strings(subjects)

	for _, s := range subjects {
		if got := marks.Int(s); got < reqs[s] {
			return errors.NewIneligibleMarksError(s, got, reqs[s])
		}
	}
	return nil
}

var requirementPattern = regexp.MustCompile(`([A-Za-z][A-Za-z .&-]*?)\s*:\s*(\d{1,3})\s*%?`)

// ParseRequirements reads "Subject: NN%" pairs from free text. Subject
// names are lower-cased; text that does not follow the pattern is ignored.
func ParseRequirements(text string) map[string]int {
	out := map[string]int{}
	for _, m := range requirementPattern.FindAllStringSubmatch(text, -1) {
		subject := strings.ToLower(strings.TrimSpace(m[1]))
		n, err := strconv.Atoi(m[2])
		if err != nil || subject == "" {
			continue
		}
		out[subject] = n
	}
	return out
}
