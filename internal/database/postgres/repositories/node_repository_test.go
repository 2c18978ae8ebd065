package repositories

import (
	"testing"
	"time"

	"mesh-map-sync/internal/models"
)

func TestUpdateColumns_KeepsMissingFields(t *testing.T) {
	cols := updateColumns(&models.Node{NodeID: "!a1", IsOnline: true})

	for _, column := range []string{"display_name", "latitude", "longitude", "altitude", "last_seen"} {
		if _, ok := cols[column]; ok {
			t.Errorf("nameless, positionless update must not touch %s", column)
		}
	}
	if cols["is_online"] != true {
		t.Fatalf("liveness must always be written: %v", cols)
	}
}

func TestUpdateColumns_WritesPresentFields(t *testing.T) {
	lat, lng := 55.75, 37.61
	seen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	cols := updateColumns(&models.Node{
		NodeID:      "!a1",
		DisplayName: "Base",
		Latitude:    &lat,
		Longitude:   &lng,
		LastSeen:    &seen,
	})

	if cols["display_name"] != "Base" {
		t.Fatalf("name not written: %v", cols)
	}
	if _, ok := cols["latitude"]; !ok {
		t.Fatalf("position not written: %v", cols)
	}
	if _, ok := cols["last_seen"]; !ok {
		t.Fatalf("last seen not written: %v", cols)
	}
}
