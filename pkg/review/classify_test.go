package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampCpLossFloorsAtZero(t *testing.T) {
	assert.Equal(t, 0, clampCpLoss(10, 40))
}

func TestClampCpLossCapsAtCpLossCap(t *testing.T) {
	assert.Equal(t, cpLossCap, clampCpLoss(2000, -2000))
}

func TestClassifyPriorityOrder(t *testing.T) {
	assert.Equal(t, Forced, classify(500, true, true))
	assert.Equal(t, Brilliant, classify(0, false, true))
}

func TestClassifyBands(t *testing.T) {
	cases := []struct {
		cpLoss int
		want   Classification
	}{
		{0, Best},
		{10, Excellent},
		{30, Good},
		{100, Inaccuracy},
		{300, Mistake},
		{301, Blunder},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, classify(c.cpLoss, false, false))
	}
}

func TestAccuracyPerfectPlayIsOneHundred(t *testing.T) {
	assert.InDelta(t, 100, accuracy([]int{0, 0, 0}), 0.01)
}

func TestAccuracyEmptySideIsOneHundred(t *testing.T) {
	assert.Equal(t, float64(100), accuracy(nil))
}

func TestAccuracyDecreasesWithCpLoss(t *testing.T) {
	good := accuracy([]int{10, 20})
	bad := accuracy([]int{300, 400})
	assert.Greater(t, good, bad)
}

func TestAccuracyNeverNegative(t *testing.T) {
	assert.GreaterOrEqual(t, accuracy([]int{cpLossCap, cpLossCap, cpLossCap}), 0.0)
}

func TestNAGMapping(t *testing.T) {
	assert.Equal(t, "$4", PositionReview{Classification: Blunder}.NAG())
	assert.Equal(t, "$3", PositionReview{Classification: Brilliant}.NAG())
	assert.Equal(t, "$1", PositionReview{Classification: Excellent}.NAG())
	assert.Equal(t, "", PositionReview{Classification: Best}.NAG())
}
