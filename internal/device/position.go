package device

// integerScale converts integer-encoded coordinates (degrees x 10,000) to
// degrees.
const integerScale = 10000

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
	Alt float64 `json:"alt"`
}

// Slice returns the coordinates as [lat, lng, alt].
func (c Coordinates) Slice() []float64 {
	return []float64{c.Lat, c.Lng, c.Alt}
}

type coordinateExtractor func(Record) (Coordinates, bool)

var coordinateExtractors = []coordinateExtractor{
	directCoordinates,
	rawDataCoordinates,
	positionDataCoordinates,
}

// CoordinatesOf resolves the record position from the first shape that
// carries both latitude and longitude.
func CoordinatesOf(rec Record) (Coordinates, bool) {
	for _, extract := range coordinateExtractors {
		if c, ok := extract(rec); ok {
			return c, true
		}
	}
	return Coordinates{}, false
}

// directLatLng reads top-level latitude/longitude in degrees. A value of 0 is
// a valid position here.
func directLatLng(rec Record) (float64, float64, bool) {
	lat, ok := rec.Lookup("latitude")
	if !ok || !isNumeric(lat) {
		return 0, 0, false
	}
	lng, ok := rec.Lookup("longitude")
	if !ok || !isNumeric(lng) {
		return 0, 0, false
	}

	latF, latOK := toNumber(lat)
	lngF, lngOK := toNumber(lng)
	return latF, lngF, latOK && lngOK
}

func directCoordinates(rec Record) (Coordinates, bool) {
	lat, lng, ok := directLatLng(rec)
	if !ok {
		return Coordinates{}, false
	}
	return Coordinates{Lat: lat, Lng: lng}, true
}

func rawDataCoordinates(rec Record) (Coordinates, bool) {
	return integerCoordinates(rec, "rawData.latitude_i", "rawData.longitude_i", "rawData.altitude")
}

func positionDataCoordinates(rec Record) (Coordinates, bool) {
	return integerCoordinates(rec, "position.data.latitudeI", "position.data.longitudeI", "position.data.altitude")
}

// integerCoordinates treats zero encoded values as "no fix".
func integerCoordinates(rec Record, latPath, lngPath, altPath string) (Coordinates, bool) {
	if !rec.Truthy(latPath) || !rec.Truthy(lngPath) {
		return Coordinates{}, false
	}

	lat, latOK := rec.Number(latPath)
	lng, lngOK := rec.Number(lngPath)
	if !latOK || !lngOK {
		return Coordinates{}, false
	}

	alt, _ := rec.Number(altPath)

	return Coordinates{
		Lat: lat / integerScale,
		Lng: lng / integerScale,
		Alt: alt,
	}, true
}
