package geo

import (
	"math"
	"sort"

	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

const earthRadiusMeters = 6371000

// Distance returns the great-circle distance in meters between two points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Contains reports whether loc lies inside p's circle. The boundary counts
// as inside.
func Contains(p types.POI, loc types.Location) bool {
	return Distance(loc.Latitude, loc.Longitude, p.Latitude, p.Longitude) <= p.RadiusMeters
}

// Nearby returns copies of pois ordered by distance from loc, closest
// first, with ContainsDevice set. limit <= 0 returns every POI.
func Nearby(loc types.Location, pois []types.POI, limit int) []types.POI {
	type ranked struct {
		poi  types.POI
		dist float64
	}

	rs := make([]ranked, 0, len(pois))
	for _, p := range pois {
		d := Distance(loc.Latitude, loc.Longitude, p.Latitude, p.Longitude)
		p.ContainsDevice = d <= p.RadiusMeters
		rs = append(rs, ranked{poi: p, dist: d})
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].dist < rs[j].dist })

	if limit > 0 && len(rs) > limit {
		rs = rs[:limit]
	}
	out := make([]types.POI, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.poi)
	}
	return out
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
