package influx

import (
	"context"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"mesh-map-sync/internal/device"
	"strconv"
	"time"
)

const factsMeasurement = "node_facts"

// PointWriter is the subset of api.WriteAPI used here.
type PointWriter interface {
	WritePoint(point *write.Point)
}

type FactsWriter struct {
	writeAPI PointWriter
	logger   zerolog.Logger
}

func NewFactsWriter(writeAPI PointWriter, logger zerolog.Logger) *FactsWriter {
	return &FactsWriter{
		writeAPI: writeAPI,
		logger:   logger,
	}
}

// WriteFacts queues one node_facts point. Writes are asynchronous; failures
// surface on the connection's error channel.
func (w *FactsWriter) WriteFacts(ctx context.Context, facts device.Facts, at time.Time) error {
	w.writeAPI.WritePoint(factsPoint(facts, at))

	w.logger.Debug().
		Str("node_id", facts.NodeID).
		Bool("online", facts.IsOnline).
		Msg("Added node facts to influxDB")

	return nil
}

func factsPoint(facts device.Facts, at time.Time) *write.Point {
	tags := map[string]string{
		"node_id": facts.NodeID,
		"is_mqtt": strconv.FormatBool(facts.IsMqtt),
	}

	fields := map[string]interface{}{
		"online":          facts.IsOnline,
		"active":          facts.IsActive,
		"recently_active": facts.IsRecentlyActive,
	}
	if c := facts.Coordinates; c != nil {
		fields["lat"] = c.Lat
		fields["lng"] = c.Lng
		fields["alt"] = c.Alt
	}
	if facts.LatestTimestamp != nil {
		fields["last_seen"] = *facts.LatestTimestamp
	}

	return influxdb2.NewPoint(factsMeasurement, tags, fields, at)
}
