package alerts

import (
	"strconv"
	"strings"

	"github.com/wellsteer/wellsteer/internal/steering"
	"github.com/wellsteer/wellsteer/internal/wits"
)

// evalCondition evaluates a rule condition string against a snapshot.
//
// Supported expressions (field operator value):
//
//	dogleg_needed > 4
//	motor_yield < 1.5
//	above_below < -30
//	left_right > 50
//	build_rate > 3
//	turn_rate > 3
//	slide_seen > 2
//	slide_ahead > 2
//	is_rotating == true
//	connection_state == disconnected
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, snap steering.Snapshot, state wits.State) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	switch field {
	case "connection_state":
		if op == "==" {
			return strings.EqualFold(state.String(), rhs), float64(state)
		}
		return false, 0

	case "is_rotating":
		if op == "==" {
			want, err := strconv.ParseBool(rhs)
			if err != nil {
				return false, 0
			}
			return snap.IsRotating == want, 0
		}
		return false, 0

	default:
		v, ok := numericField(field, snap)
		if !ok {
			return false, 0
		}
		threshold, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return false, 0
		}
		return compareFloat(v, op, threshold), v
	}
}

// numericField maps a field name to its value in the snapshot.
func numericField(field string, snap steering.Snapshot) (float64, bool) {
	switch field {
	case "motor_yield":
		return snap.MotorYield, true
	case "dogleg_needed":
		return snap.DoglegNeeded, true
	case "slide_seen":
		return snap.SlideSeen, true
	case "slide_ahead":
		return snap.SlideAhead, true
	case "projected_inc":
		return snap.ProjectedInc, true
	case "projected_az":
		return snap.ProjectedAz, true
	case "build_rate":
		return snap.BuildRate, true
	case "turn_rate":
		return snap.TurnRate, true
	case "above_below":
		return snap.AboveBelow, true
	case "left_right":
		return snap.LeftRight, true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}
