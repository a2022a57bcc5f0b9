package control

import (
	"fmt"

	"github.com/itohio/irrigo/pkg/config"
)

// Mode selects how a cycle's relay request is derived.
type Mode string

const (
	// ModeThreshold irrigates while the instantaneous moisture is below a threshold.
	// The model still runs and its probability is reported.
	ModeThreshold Mode = config.ModeThreshold
	// ModeInference irrigates while the model probability reaches a threshold.
	ModeInference Mode = config.ModeInference
)

// ParseMode validates a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeThreshold, ModeInference:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown decision mode %q", s)
}

// Policy turns a cycle's moisture and model probability into a relay request.
type Policy struct {
	Mode                 Mode
	MoistureThreshold    float32 // Irrigate below this moisture (%)
	ProbabilityThreshold float32 // Irrigate at or above this probability
}

// Decide returns the desired relay state.
func (p Policy) Decide(moisture, probability float32) bool {
	if p.Mode == ModeInference {
		return probability >= p.ProbabilityThreshold
	}
	return moisture < p.MoistureThreshold
}

// String returns the policy in a human readable form.
func (p Policy) String() string {
	if p.Mode == ModeInference {
		return fmt.Sprintf("inference (p >= %.2f)", p.ProbabilityThreshold)
	}
	return fmt.Sprintf("threshold (moisture < %.1f%%)", p.MoistureThreshold)
}
