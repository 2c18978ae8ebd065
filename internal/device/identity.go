package device

import (
	"strconv"
)

const UnknownNodeID = "unknown"

var (
	identityPaths = []string{"device_id", "hex_id", "user.data.id"}

	// camel-case names are checked first, as a pair
	preferredNamePaths = []string{"longName", "shortName"}
	fallbackNamePaths  = []string{
		"short_name",
		"long_name",
		"hex_id",
		"device_id",
		"user.data.shortName",
		"user.data.longName",
		"user.data.id",
	}
)

// NodeID returns the record's identifier. Records without one get a
// synthetic id built from direct coordinates, or "unknown". The result is
// never empty.
func NodeID(rec Record) string {
	if v, ok := rec.firstTruthy(identityPaths...); ok {
		return toText(v)
	}

	if lat, lng, ok := directLatLng(rec); ok {
		return "node_" + strconv.FormatFloat(lat, 'f', 4, 64) + "_" + strconv.FormatFloat(lng, 'f', 4, 64)
	}

	return UnknownNodeID
}

// HasIdentity reports whether the record names itself through one of the
// identity fields. Synthetic coordinate ids do not count.
func HasIdentity(rec Record) bool {
	_, ok := rec.firstTruthy(identityPaths...)
	return ok
}

// DisplayName returns the first available name field. The bool is false when
// the record carries no name at all.
func DisplayName(rec Record) (string, bool) {
	if v, ok := rec.firstTruthy(preferredNamePaths...); ok {
		return toText(v), true
	}
	if v, ok := rec.firstTruthy(fallbackNamePaths...); ok {
		return toText(v), true
	}
	return "", false
}

// IsMqttNode reports whether the record looks like a node bridged over MQTT:
// either it names itself as its own gateway, or its radio metrics are both
// exactly zero.
func IsMqttNode(rec Record) bool {
	gateway, hasGateway := rec.Lookup("gateway")
	hexID, hasHex := rec.Lookup("hex_id")
	if hasGateway && hasHex && truthy(gateway) && truthy(hexID) {
		return sameValue(gateway, hexID)
	}

	return isExactZero(rec, "user.rxSnr") && isExactZero(rec, "user.rxRssi")
}

func isExactZero(rec Record, path string) bool {
	v, ok := rec.Lookup(path)
	if !ok || !isNumeric(v) {
		return false
	}
	f, ok := toNumber(v)
	return ok && f == 0
}

func sameValue(a, b any) bool {
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr || bStr {
		return aStr && bStr && as == bs
	}
	if isNumeric(a) && isNumeric(b) {
		af, _ := toNumber(a)
		bf, _ := toNumber(b)
		return af == bf
	}
	return false
}
