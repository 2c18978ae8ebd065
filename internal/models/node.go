package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"gorm.io/gorm"
	"mesh-map-sync/internal/device"
	"time"
)

var ErrNodeNotFound = errors.New("node not found")

// RawRecord keeps the merged upstream payload a snapshot was derived from.
type RawRecord map[string]interface{}

func (r RawRecord) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func (r *RawRecord) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}

	var fieldBytes []byte
	switch v := value.(type) {
	case []byte:
		fieldBytes = v
	case string:
		fieldBytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RawRecord", value)
	}

	return json.Unmarshal(fieldBytes, r)
}

// Node is the last known snapshot of a mesh node's canonical facts.
type Node struct {
	gorm.Model
	NodeID           string     `gorm:"uniqueIndex;not null" json:"node_id"`
	DisplayName      string     `json:"display_name"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	Altitude         *float64   `json:"altitude,omitempty"`
	IsMqtt           bool       `gorm:"not null;default:false" json:"is_mqtt"`
	IsOnline         bool       `gorm:"not null;default:false" json:"is_online"`
	IsRecentlyActive bool       `gorm:"not null;default:false" json:"is_recently_active"`
	LastSeen         *time.Time `gorm:"index" json:"last_seen,omitempty"`
	Raw              RawRecord  `gorm:"type:jsonb" json:"-"`
}

func NodeFromFacts(facts device.Facts, rec device.Record) *Node {
	node := &Node{
		NodeID:           facts.NodeID,
		DisplayName:      facts.DisplayName,
		IsMqtt:           facts.IsMqtt,
		IsOnline:         facts.IsOnline,
		IsRecentlyActive: facts.IsRecentlyActive,
		Raw:              RawRecord(rec),
	}

	if c := facts.Coordinates; c != nil {
		lat, lng, alt := c.Lat, c.Lng, c.Alt
		node.Latitude = &lat
		node.Longitude = &lng
		node.Altitude = &alt
	}

	if seen, ok := facts.LastSeenTime(); ok {
		node.LastSeen = &seen
	}

	return node
}

func (n *Node) ToDto() NodeDto {
	dto := NodeDto{
		NodeID:           n.NodeID,
		DisplayName:      n.DisplayName,
		IsMqtt:           n.IsMqtt,
		IsOnline:         n.IsOnline,
		IsRecentlyActive: n.IsRecentlyActive,
	}
	if n.Latitude != nil && n.Longitude != nil {
		alt := 0.0
		if n.Altitude != nil {
			alt = *n.Altitude
		}
		dto.Coordinates = []float64{*n.Latitude, *n.Longitude, alt}
	}
	if n.LastSeen != nil {
		dto.LastSeen = n.LastSeen.Unix()
	}
	return dto
}

type NodeDto struct {
	NodeID           string    `json:"node_id"`
	DisplayName      string    `json:"display_name,omitempty"`
	Coordinates      []float64 `json:"coordinates,omitempty"`
	IsMqtt           bool      `json:"is_mqtt"`
	IsOnline         bool      `json:"is_online"`
	IsRecentlyActive bool      `json:"is_recently_active"`
	LastSeen         int64     `json:"last_seen,omitempty"`
}
