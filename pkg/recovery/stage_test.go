package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeGeneral, ModeIndex} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	got, err := ParseMode(" Index ")
	require.NoError(t, err)
	assert.Equal(t, ModeIndex, got)

	_, err = ParseMode("aggressive")
	assert.Error(t, err)
}

func TestStagesOrder(t *testing.T) {
	assert.Equal(t, []Stage{
		StageDirect, StageCodeBlock, StageCleanup, StageRepair,
		StageSafeParse, StageBackslash, StageAggressive,
	}, cascadeStages())
}
