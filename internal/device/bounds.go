package device

import "github.com/paulmach/orb"

// CornerBounds is a viewport exposing its south-west and north-east corners
// as [lat, lng].
type CornerBounds interface {
	GetSouthWest() []float64
	GetNorthEast() []float64
}

// IsPointInBounds reports whether (lat, lng) lies inside bounds, edges
// included. Accepted shapes are CornerBounds, a [[swLat, swLng], [neLat,
// neLng]] corner pair, or an orb.Bound. Anything else, nil included, counts
// as in bounds.
func IsPointInBounds(lat, lng float64, bounds any) bool {
	b, ok := toBound(bounds)
	if !ok {
		return true
	}
	return b.Contains(orb.Point{lng, lat})
}

func toBound(bounds any) (orb.Bound, bool) {
	switch b := bounds.(type) {
	case nil:
		return orb.Bound{}, false
	case orb.Bound:
		return b, true
	case *orb.Bound:
		if b == nil {
			return orb.Bound{}, false
		}
		return *b, true
	case CornerBounds:
		return cornersToBound(b.GetSouthWest(), b.GetNorthEast())
	case [2][2]float64:
		return cornersToBound(b[0][:], b[1][:])
	case [][]float64:
		if len(b) != 2 {
			return orb.Bound{}, false
		}
		return cornersToBound(b[0], b[1])
	case []any:
		if len(b) != 2 {
			return orb.Bound{}, false
		}
		sw, swOK := toFloatPair(b[0])
		ne, neOK := toFloatPair(b[1])
		if !swOK || !neOK {
			return orb.Bound{}, false
		}
		return cornersToBound(sw, ne)
	default:
		return orb.Bound{}, false
	}
}

func cornersToBound(sw, ne []float64) (orb.Bound, bool) {
	if len(sw) < 2 || len(ne) < 2 {
		return orb.Bound{}, false
	}
	return orb.Bound{
		Min: orb.Point{sw[1], sw[0]},
		Max: orb.Point{ne[1], ne[0]},
	}, true
}

func toFloatPair(v any) ([]float64, bool) {
	switch p := v.(type) {
	case []float64:
		return p, len(p) >= 2
	case []any:
		if len(p) < 2 {
			return nil, false
		}
		out := make([]float64, 2)
		for i := range out {
			f, ok := toNumber(p[i])
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}
