package repositories

import (
	"context"
	"errors"
	"fmt"
	"gorm.io/gorm"
	"mesh-map-sync/internal/models"
	"time"
)

type NodeRepository struct {
	db *gorm.DB
}

func NewNodeRepository(db *gorm.DB) *NodeRepository {
	return &NodeRepository{db: db}
}

// Upsert stores the snapshot under its node id. A missing name, position or
// last-seen time on the incoming snapshot leaves the stored one in place.
func (r *NodeRepository) Upsert(ctx context.Context, node *models.Node) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existingNode models.Node
		result := tx.Where("node_id = ?", node.NodeID).First(&existingNode)

		if result.Error == nil {
			updateMap := updateColumns(node)

			if err := tx.Model(&existingNode).Updates(updateMap).Error; err != nil {
				return fmt.Errorf("failed to update node %s: %w", node.NodeID, err)
			}
			return nil

		} else if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			if err := tx.Create(node).Error; err != nil {
				return fmt.Errorf("failed to create node %s: %w", node.NodeID, err)
			}
			return nil

		} else {
			return result.Error
		}
	})
}

// updateColumns lists the columns an upsert overwrites on an existing node.
// Name, position and last-seen time only move forward when the incoming
// snapshot carries them.
func updateColumns(node *models.Node) map[string]interface{} {
	updateMap := map[string]interface{}{
		"is_mqtt":            node.IsMqtt,
		"is_online":          node.IsOnline,
		"is_recently_active": node.IsRecentlyActive,
		"raw":                node.Raw,
	}
	if node.DisplayName != "" {
		updateMap["display_name"] = node.DisplayName
	}
	if node.Latitude != nil && node.Longitude != nil {
		updateMap["latitude"] = node.Latitude
		updateMap["longitude"] = node.Longitude
		updateMap["altitude"] = node.Altitude
	}
	if node.LastSeen != nil {
		updateMap["last_seen"] = node.LastSeen
	}
	return updateMap
}

func (r *NodeRepository) FindByNodeID(ctx context.Context, nodeID string) (*models.Node, error) {
	var node models.Node
	err := r.db.WithContext(ctx).Where("node_id = ?", nodeID).First(&node).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find node %s: %w", nodeID, err)
	}
	return &node, nil
}

// MarkOffline clears the online flag of nodes not seen since cutoff.
func (r *NodeRepository) MarkOffline(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Node{}).
		Where("last_seen < ? AND is_online = ?", cutoff, true).
		Update("is_online", false)
	return result.RowsAffected, result.Error
}

// MarkInactive clears the recently-active flag of nodes not seen since cutoff.
func (r *NodeRepository) MarkInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Node{}).
		Where("last_seen < ? AND is_recently_active = ?", cutoff, true).
		Update("is_recently_active", false)
	return result.RowsAffected, result.Error
}

func (r *NodeRepository) GetAll(ctx context.Context) ([]*models.Node, error) {
	var nodes []*models.Node
	err := r.db.WithContext(ctx).Order("node_id").Find(&nodes).Error
	return nodes, err
}
