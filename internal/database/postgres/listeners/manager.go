package listeners

import (
	"context"
	"fmt"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"time"
)

// ListenerManager installs a NOTIFY trigger on every registered table and
// dispatches the resulting change events to the table's listeners.
type ListenerManager struct {
	db        *gorm.DB
	listener  *pq.Listener
	logger    zerolog.Logger
	listeners map[string][]TableListener
}

func NewListenerManager(db *gorm.DB, dsn string, logger zerolog.Logger) *ListenerManager {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Error().Err(err).Msg("PostgreSQL listener error")
		}
	}

	return &ListenerManager{
		db:        db,
		listener:  pq.NewListener(dsn, 10*time.Second, time.Minute, reportProblem),
		logger:    logger,
		listeners: make(map[string][]TableListener),
	}
}

func (lm *ListenerManager) RegisterListener(listener TableListener) {
	tableName := listener.GetTableName()
	lm.listeners[tableName] = append(lm.listeners[tableName], listener)

	lm.logger.Info().
		Str("table", tableName).
		Msg("Registered table listener")
}

// Initialize installs the triggers and subscribes to the change channel.
// Listeners must be registered before it is called.
func (lm *ListenerManager) Initialize() error {
	if err := lm.setupTriggers(); err != nil {
		return fmt.Errorf("failed to setup triggers: %w", err)
	}

	if err := lm.listener.Listen(ChangeChannel); err != nil {
		return fmt.Errorf("failed to listen on channel %s: %w", ChangeChannel, err)
	}

	lm.logger.Info().
		Str("channel", ChangeChannel).
		Msg("Listener manager initialized")
	return nil
}

func (lm *ListenerManager) setupTriggers() error {
	createFunctionSQL := fmt.Sprintf(`
	CREATE OR REPLACE FUNCTION mesh_map_notify_change() RETURNS trigger AS $$
	DECLARE
		notification json;
		old_data jsonb := NULL;
		new_data jsonb := NULL;
	BEGIN
		IF TG_OP = 'DELETE' THEN
			old_data = row_to_json(OLD)::jsonb - 'raw';
		ELSIF TG_OP = 'INSERT' THEN
			new_data = row_to_json(NEW)::jsonb - 'raw';
		ELSIF TG_OP = 'UPDATE' THEN
			old_data = row_to_json(OLD)::jsonb - 'raw';
			new_data = row_to_json(NEW)::jsonb - 'raw';
		END IF;

		notification = json_build_object(
			'operation', TG_OP,
			'table', TG_TABLE_NAME,
			'old_data', old_data,
			'new_data', new_data,
			'timestamp', now()
		);

		PERFORM pg_notify('%s', notification::text);

		IF TG_OP = 'DELETE' THEN
			RETURN OLD;
		ELSE
			RETURN NEW;
		END IF;
	END;
	$$ LANGUAGE plpgsql;`, ChangeChannel)

	if err := lm.db.Exec(createFunctionSQL).Error; err != nil {
		return fmt.Errorf("failed to create notify function: %w", err)
	}

	for tableName := range lm.listeners {
		if err := lm.createTriggerForTable(tableName); err != nil {
			return fmt.Errorf("failed to create trigger for table %s: %w", tableName, err)
		}
	}

	return nil
}

func (lm *ListenerManager) createTriggerForTable(tableName string) error {
	triggerSQL := fmt.Sprintf(`
	DROP TRIGGER IF EXISTS %s_change_trigger ON %s;
	CREATE TRIGGER %s_change_trigger
		AFTER INSERT OR UPDATE OR DELETE ON %s
		FOR EACH ROW EXECUTE FUNCTION mesh_map_notify_change();`,
		tableName, tableName, tableName, tableName)

	return lm.db.Exec(triggerSQL).Error
}

// Run dispatches notifications until ctx is done. A nil notification means
// the connection was re-established and is ignored.
func (lm *ListenerManager) Run(ctx context.Context) {
	for {
		select {
		case notification := <-lm.listener.Notify:
			if notification != nil {
				lm.dispatch(ctx, notification.Extra)
			}
		case <-time.After(90 * time.Second):
			if err := lm.listener.Ping(); err != nil {
				lm.logger.Warn().Err(err).Msg("PostgreSQL listener ping failed")
			}
		case <-ctx.Done():
			lm.logger.Info().Msg("Table listener manager stopping...")
			return
		}
	}
}

func (lm *ListenerManager) dispatch(ctx context.Context, payload string) {
	event, err := parseEvent(payload)
	if err != nil {
		lm.logger.Error().Err(err).
			Str("payload", payload).
			Msg("Failed to parse notification")
		return
	}

	tableListeners, exists := lm.listeners[event.Table]
	if !exists {
		lm.logger.Debug().
			Str("table", event.Table).
			Msg("No listeners registered for table")
		return
	}

	for _, listener := range tableListeners {
		handleCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := listener.HandleChange(handleCtx, event); err != nil {
			lm.logger.Error().Err(err).
				Str("table", event.Table).
				Str("listener", fmt.Sprintf("%T", listener)).
				Msg("Error handling table change")
		}
		cancel()
	}
}

func (lm *ListenerManager) Close() error {
	if err := lm.listener.Close(); err != nil {
		return fmt.Errorf("failed to close PostgreSQL listener: %w", err)
	}
	lm.logger.Info().Msg("Table listener manager stopped")
	return nil
}
