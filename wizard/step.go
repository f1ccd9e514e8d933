package wizard

import (
	"fmt"
)

// Step is a position in the linear wizard sequence.
type Step int

const (
	StepClientSelect Step = iota
	StepCompanySelect
	StepUpload
	StepExtract
	StepForm
	StepSuccess
)

var stepNames = [...]string{
	StepClientSelect:  "client-select",
	StepCompanySelect: "company-select",
	StepUpload:        "upload",
	StepExtract:       "extract",
	StepForm:          "form",
	StepSuccess:       "success",
}

// Steps lists every step in order.
var Steps = []Step{StepClientSelect, StepCompanySelect, StepUpload, StepExtract, StepForm, StepSuccess}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool { return s >= StepClientSelect && s <= StepSuccess }

// MarshalText encodes the step as its name.
func (s Step) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("wizard: invalid step %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a step name.
func (s *Step) UnmarshalText(b []byte) error {
	v, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStep returns the step with the given name.
func ParseStep(name string) (Step, error) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("wizard: unknown step %q", name)
}
