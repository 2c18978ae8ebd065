package device

// timestampSource is one place a freshness timestamp may live and the divisor
// that brings it to epoch seconds.
type timestampSource struct {
	path    string
	divisor float64
}

var timestampSources = []timestampSource{
	{path: "rawData.time", divisor: 1},
	{path: "last_updated", divisor: 1000},
	{path: "position_time", divisor: 1},
	{path: "user.serverTime", divisor: 1},
	{path: "position.serverTime", divisor: 1},
	{path: "deviceMetrics.serverTime", divisor: 1},
	{path: "environmentMetrics.serverTime", divisor: 1},
}

// LatestTimestamp returns the most recent activity time of the record in
// epoch seconds. Zero or non-numeric sources are ignored.
func LatestTimestamp(rec Record) (float64, bool) {
	var (
		latest float64
		found  bool
	)

	for _, src := range timestampSources {
		v, ok := rec.Number(src.path)
		if !ok || v == 0 {
			continue
		}
		v /= src.divisor
		if !found || v > latest {
			latest = v
			found = true
		}
	}

	return latest, found
}
