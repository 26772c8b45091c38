package v2vsim

import (
	"math"
)

// PathlossModel maps a propagation distance and link condition to a positive
// pathloss magnitude in dB. Implementations must be monotonic non-decreasing
// in distance. Parallel NLOS links never reach the model: the driver assigns
// them infinite pathloss.
type PathlossModel interface {
	LOS(dist float64) float64
	OLOS(dist float64) float64
	// NLOSOrthogonal takes the two legs of the diffracted route: receiver to
	// corner and corner to transmitter
	NLOSOrthogonal(distRxCorner, distCornerTx float64) float64
}

// LogDistancePathloss is a log-distance pathloss model with per-condition
// reference losses and exponents, after the V2V highway/urban measurement
// models by Abbas et al. Losses are positive dB magnitudes.
type LogDistancePathloss struct {
	// RefDistance is the reference distance d0 in meters
	RefDistance float64
	// MinDistance clips smaller distances to keep the logarithm sane
	MinDistance float64

	LOSRefLoss   float64
	LOSExponent  float64
	OLOSRefLoss  float64
	OLOSExponent float64
	// NLOS corner model: loss grows with the product of the two route legs
	NLOSRefLoss  float64
	NLOSExponent float64
}

// NewLogDistancePathloss returns the model with default urban V2V parameters
func NewLogDistancePathloss() *LogDistancePathloss {
	return &LogDistancePathloss{
		RefDistance:  10,
		MinDistance:  1,
		LOSRefLoss:   63.9,
		LOSExponent:  1.81,
		OLOSRefLoss:  72.3,
		OLOSExponent: 1.93,
		NLOSRefLoss:  84.5,
		NLOSExponent: 2.69,
	}
}

func (model *LogDistancePathloss) clip(dist float64) float64 {
	if dist < model.MinDistance {
		return model.MinDistance
	}
	return dist
}

func (model *LogDistancePathloss) LOS(dist float64) float64 {
	return model.LOSRefLoss + 10*model.LOSExponent*math.Log10(model.clip(dist)/model.RefDistance)
}

func (model *LogDistancePathloss) OLOS(dist float64) float64 {
	return model.OLOSRefLoss + 10*model.OLOSExponent*math.Log10(model.clip(dist)/model.RefDistance)
}

func (model *LogDistancePathloss) NLOSOrthogonal(distRxCorner, distCornerTx float64) float64 {
	legs := model.clip(distRxCorner) * model.clip(distCornerTx)
	return model.NLOSRefLoss + 10*model.NLOSExponent*math.Log10(legs/(model.RefDistance*model.RefDistance))
}
