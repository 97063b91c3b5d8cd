package types

import (
	"fmt"
	"math"
	"strconv"
)

// Percent is a percentage stored in basis points (11% == 1100).
type Percent int64

const BasisPointsPerPercent = 100

// basisPointSlack absorbs binary float noise such as 0.29*100 == 28.999999999999996.
const basisPointSlack = 1e-6

// PercentFromFloat converts a percentage with at most two decimals. Finer values are
// rejected rather than rounded.
func PercentFromFloat(p float64) (Percent, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) || math.Abs(p) > math.MaxInt32 {
		return 0, fmt.Errorf("invalid percentage %v", p)
	}
	bp := p * BasisPointsPerPercent
	whole := math.Round(bp)
	if math.Abs(bp-whole) > basisPointSlack {
		return 0, fmt.Errorf("percentage %v has more than two decimals", p)
	}
	return Percent(whole), nil
}

func WholePercent(p int64) Percent { return Percent(p * BasisPointsPerPercent) }

func (p Percent) BasisPoints() int64 { return int64(p) }

func (p Percent) Float64() float64 { return float64(p) / BasisPointsPerPercent }

func (p Percent) String() string {
	return strconv.FormatFloat(p.Float64(), 'f', -1, 64)
}
