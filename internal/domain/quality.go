package domain

import (
	"errors"
	"fmt"
)

// Quality is the learner's self-assessed recall grade on the SM-2 ordinal
// scale 0-5. This is the one canonical scale for the whole service; clients
// that expose fewer buttons map onto a subset of it.
type Quality int

const (
	Blackout          Quality = 0 // complete failure to recall
	Incorrect         Quality = 1 // wrong, but recognized the answer
	IncorrectFamiliar Quality = 2 // wrong, but the answer felt familiar
	CorrectHard       Quality = 3 // correct with serious effort
	CorrectHesitant   Quality = 4 // correct after hesitation
	Perfect           Quality = 5 // instant recall
)

// ErrInvalidQuality is returned when a grade is outside the 0-5 scale.
// Callers must reject such grades before the scheduling engine runs.
var ErrInvalidQuality = errors.New("quality outside 0-5 scale")

var qualityNames = [...]string{
	Blackout:          "Blackout",
	Incorrect:         "Incorrect",
	IncorrectFamiliar: "IncorrectFamiliar",
	CorrectHard:       "CorrectHard",
	CorrectHesitant:   "CorrectHesitant",
	Perfect:           "Perfect",
}

// IsValid reports whether q is on the 0-5 scale.
func (q Quality) IsValid() bool {
	return q >= Blackout && q <= Perfect
}

// Qualifies reports whether q counts as successful recall (>= 3).
// A non-qualifying grade is a lapse.
func (q Quality) Qualifies() bool {
	return q >= CorrectHard
}

// String returns the grade name, or "Quality(n)" for out-of-range values.
func (q Quality) String() string {
	if q.IsValid() {
		return qualityNames[q]
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}
