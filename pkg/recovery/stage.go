package recovery

import (
	"strings"

	"github.com/pkg/errors"
)

// Mode selects the recovery strategy.
type Mode int

const (
	// ModeGeneral runs the full stage cascade.
	ModeGeneral Mode = iota
	// ModeIndex tries a bracket scan first and falls back to the general cascade.
	ModeIndex
)

// ParseMode accepts the names returned by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "general":
		return ModeGeneral, nil
	case "index":
		return ModeIndex, nil
	default:
		return ModeGeneral, errors.Errorf("unknown recovery mode %q", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeGeneral:
		return "general"
	case ModeIndex:
		return "index"
	default:
		return "unknown"
	}
}

// Stage identifies which step of the cascade produced a result.
type Stage int

const (
	StageNone Stage = iota
	StageBracketScan
	StageDirect
	StageCodeBlock
	StageCleanup
	StageRepair
	StageSafeParse
	StageBackslash
	StageAggressive
)

var stageNames = map[Stage]string{
	StageNone:        "none",
	StageBracketScan: "bracket-scan",
	StageDirect:      "direct",
	StageCodeBlock:   "code-block",
	StageCleanup:     "cleanup",
	StageRepair:      "repair",
	StageSafeParse:   "safe-parse",
	StageBackslash:   "backslash",
	StageAggressive:  "aggressive",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return "unknown"
}
