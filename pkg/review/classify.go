package review

import "math"

// cpLossCap bounds individual cp-loss values so a missed mate doesn't
// pollute the accuracy mean, per spec §4.5.
const cpLossCap = 1000

// clampCpLoss mirrors `max(0, eval_before - eval_after)`, clamped at
// cpLossCap, per spec §4.5 step 4.d.
func clampCpLoss(evalBeforeCp, evalAfterCp int32) int {
	loss := int(evalBeforeCp - evalAfterCp)
	if loss < 0 {
		loss = 0
	}
	if loss > cpLossCap {
		loss = cpLossCap
	}
	return loss
}

// classify assigns a Classification per spec §4.5's table. isForced and
// isBrilliant (played better than the engine's pre-analysis best) take
// priority over the cp-loss bands.
func classify(cpLoss int, isForced, isBrilliant bool) Classification {
	if isForced {
		return Forced
	}
	if isBrilliant {
		return Brilliant
	}
	switch {
	case cpLoss <= 0:
		return Best
	case cpLoss <= 10:
		return Excellent
	case cpLoss <= 30:
		return Good
	case cpLoss <= 100:
		return Inaccuracy
	case cpLoss <= 300:
		return Mistake
	default:
		return Blunder
	}
}

// NAG returns the PGN Numeric Annotation Glyph for a PositionReview's
// classification, or "" if none applies, per the Supplemented Features note
// (server/src/review/types.rs's to_nag mapping, absent from spec.md's
// classification table). Derived on read rather than stored, since it is a
// pure function of Classification.
func (p PositionReview) NAG() string {
	return p.Classification.nag()
}

func (c Classification) nag() string {
	switch c {
	case Excellent:
		return "$1"
	case Inaccuracy:
		return "$6"
	case Mistake:
		return "$2"
	case Blunder:
		return "$4"
	case Brilliant:
		return "$3"
	default:
		return ""
	}
}

// accuracy implements the per-side accuracy formula from spec §4.5:
// 103.1668 * exp(-0.006 * mean_cp_loss) - 3.1668, clamped to [0, 100].
func accuracy(cpLosses []int) float64 {
	if len(cpLosses) == 0 {
		return 100
	}
	sum := 0
	for _, l := range cpLosses {
		sum += l
	}
	mean := float64(sum) / float64(len(cpLosses))

	a := 103.1668*math.Exp(-0.006*mean) - 3.1668
	if a < 0 {
		return 0
	}
	if a > 100 {
		return 100
	}
	return a
}
