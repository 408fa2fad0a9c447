package review

import (
	"testing"

	"chesstty/pkg/engineadapter"

	"github.com/stretchr/testify/assert"
)

func cp(v int32) engineadapter.Score {
	return engineadapter.Score{Kind: engineadapter.Cp, Value: v}
}

func TestClassifyPlyBlunderIsNotMisreadAsBrilliant(t *testing.T) {
	// Mover was +50 before the move (evalBest). The move drops the mover to
	// -500; evalAfter is reported from the opponent's perspective, so it
	// arrives as +500. Negating it back to the mover's perspective (-500)
	// must classify this as a Blunder, not a Brilliant (500 > 50 unnegated).
	cpLoss, cls := classifyPly(cp(50), cp(500), cp(50), false)
	assert.Equal(t, Blunder, cls)
	assert.Equal(t, 550, cpLoss)
}

func TestClassifyPlyBrilliantWhenMoverBeatsPreSearchBest(t *testing.T) {
	// Mover's best pre-search eval was +50; the played move actually reaches
	// +80 for the mover (evalAfter arrives as -80 from the opponent's
	// perspective).
	cpLoss, cls := classifyPly(cp(50), cp(-80), cp(50), false)
	assert.Equal(t, Brilliant, cls)
	assert.Equal(t, 0, cpLoss)
}

func TestClassifyPlyForcedTakesPriorityOverBrilliant(t *testing.T) {
	_, cls := classifyPly(cp(50), cp(-200), cp(50), true)
	assert.Equal(t, Forced, cls)
}
