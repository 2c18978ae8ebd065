package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"mesh-map-sync/internal/config/shared"
)

const defaultAPIBase = "http://localhost:8080/api"

type Config struct {
	API      APIConfig      `json:"api"`
	Device   DeviceConfig   `json:"device"`
	MQTT     MQTTConfig     `json:"mqtt"`
	Postgres PostgresConfig `json:"postgres"`
	InfluxDB InfluxConfig   `json:"influxdb"`
	Logger   LoggerConfig   `json:"logger"`
	Service  ServiceConfig  `json:"service"`
}

// APIConfig holds one endpoint per telemetry category. Node ids are appended
// as "<endpoint>:<id>".
type APIConfig struct {
	GpsTrackEndpoint      string        `json:"gps_track_endpoint"`
	DeviceMetricsEndpoint string        `json:"device_metrics_endpoint"`
	NodeInfoEndpoint      string        `json:"nodeinfo_endpoint"`
	PositionEndpoint      string        `json:"position_endpoint"`
	TelemetryEndpoint     string        `json:"telemetry_endpoint"`
	TextMessageEndpoint   string        `json:"text_message_endpoint"`
	MapReportEndpoint     string        `json:"map_report_endpoint"`
	TracerouteEndpoint    string        `json:"traceroute_endpoint"`
	RequestTimeout        time.Duration `json:"request_timeout"`
}

type DeviceConfig struct {
	ActiveThreshold         time.Duration `json:"active_threshold"`
	RecentlyActiveThreshold time.Duration `json:"recently_active_threshold"`
	Locale                  string        `json:"locale"`
}

type MQTTConfig struct {
	Enabled              bool          `json:"enabled"`
	Host                 string        `json:"host"`
	Port                 int           `json:"port"`
	Username             string        `json:"username"`
	Password             string        `json:"password"`
	ClientID             string        `json:"client_id"`
	BaseTopic            string        `json:"base_topic"`
	QoS                  byte          `json:"qos"`
	KeepAlive            time.Duration `json:"keep_alive"`
	AutoReconnect        bool          `json:"auto_reconnect"`
	MaxReconnectInterval time.Duration `json:"max_reconnect_interval"`
	CleanSession         bool          `json:"clean_session"`
}

type PostgresConfig struct {
	Enabled       bool   `json:"enabled"`
	ListenChanges bool   `json:"listen_changes"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	User          string `json:"user"`
	Password      string `json:"password"`
	Dsn           string `json:"dsn"`
	Database      string `json:"database"`
	SSLMode       string `json:"ssl_mode"`
	TimeZone      string `json:"timezone"`
}

type InfluxConfig struct {
	Enabled      bool   `json:"enabled"`
	URL          string `json:"url"`
	Token        string `json:"token"`
	Organization string `json:"organization"`
	Bucket       string `json:"bucket"`
}

type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type ServiceConfig struct {
	Name           string        `json:"name"`
	Version        string        `json:"version"`
	HTTPAddr       string        `json:"http_addr"`
	PollNodeIDs    []string      `json:"poll_node_ids"`
	PollInterval   time.Duration `json:"poll_interval"`
	PollRateLimit  float64       `json:"poll_rate_limit"`
	IngestDebounce time.Duration `json:"ingest_debounce"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	positionEndpoint := shared.GetEnv("API_POSITION_ENDPOINT", defaultAPIBase+"/position")

	config := &Config{
		API: APIConfig{
			GpsTrackEndpoint:      shared.GetEnv("API_GPS_TRACK_ENDPOINT", positionEndpoint),
			DeviceMetricsEndpoint: shared.GetEnv("API_DEVICE_METRICS_ENDPOINT", defaultAPIBase+"/device-metrics"),
			NodeInfoEndpoint:      shared.GetEnv("API_NODEINFO_ENDPOINT", defaultAPIBase+"/nodeinfo"),
			PositionEndpoint:      positionEndpoint,
			TelemetryEndpoint:     shared.GetEnv("API_TELEMETRY_ENDPOINT", defaultAPIBase+"/telemetry"),
			TextMessageEndpoint:   shared.GetEnv("API_TEXT_MESSAGE_ENDPOINT", defaultAPIBase+"/text-message"),
			MapReportEndpoint:     shared.GetEnv("API_MAP_REPORT_ENDPOINT", defaultAPIBase+"/map-report"),
			TracerouteEndpoint:    shared.GetEnv("API_TRACEROUTE_ENDPOINT", defaultAPIBase+"/traceroute"),
			RequestTimeout:        shared.GetEnvAsDuration("API_REQUEST_TIMEOUT", 15*time.Second),
		},
		Device: DeviceConfig{
			ActiveThreshold:         shared.GetEnvAsSeconds("DEVICE_ACTIVE_THRESHOLD", time.Hour),
			RecentlyActiveThreshold: shared.GetEnvAsSeconds("DEVICE_RECENTLY_ACTIVE_THRESHOLD", 24*time.Hour),
			Locale:                  shared.GetEnv("TIME_AGO_LOCALE", "ru"),
		},
		MQTT: MQTTConfig{
			Enabled:              shared.GetEnvAsBool("MQTT_ENABLED", true),
			Host:                 shared.GetEnv("MQTT_HOST", "localhost"),
			Port:                 shared.GetEnvAsInt("MQTT_PORT", 1883),
			Username:             shared.GetEnv("MQTT_USERNAME", ""),
			Password:             shared.GetEnv("MQTT_PASSWORD", ""),
			ClientID:             shared.GetEnv("MQTT_CLIENT_ID", "mesh-map-sync"),
			BaseTopic:            shared.GetEnv("MQTT_BASE_TOPIC", "meshmap"),
			QoS:                  byte(shared.GetEnvAsInt("MQTT_QOS", 1)),
			KeepAlive:            shared.GetEnvAsDuration("MQTT_KEEP_ALIVE", 60*time.Second),
			AutoReconnect:        shared.GetEnvAsBool("MQTT_AUTO_RECONNECT", true),
			MaxReconnectInterval: shared.GetEnvAsDuration("MQTT_MAX_RECONNECT_INTERVAL", 10*time.Second),
			CleanSession:         shared.GetEnvAsBool("MQTT_CLEAN_SESSION", true),
		},
		Postgres: PostgresConfig{
			Enabled:       shared.GetEnvAsBool("POSTGRES_ENABLED", true),
			ListenChanges: shared.GetEnvAsBool("POSTGRES_LISTEN_CHANGES", true),
			Host:          shared.GetEnv("POSTGRES_HOST", "localhost"),
			Port:          shared.GetEnvAsInt("POSTGRES_PORT", 5432),
			User:          shared.GetEnv("POSTGRES_USER", "postgres"),
			Password:      shared.GetEnv("POSTGRES_PASSWORD", ""),
			Database:      shared.GetEnv("POSTGRES_DATABASE", "mesh_map"),
			SSLMode:       shared.GetEnv("POSTGRES_SSL_MODE", "disable"),
			TimeZone:      shared.GetEnv("POSTGRES_TIMEZONE", "UTC"),
		},
		InfluxDB: InfluxConfig{
			Enabled:      shared.GetEnvAsBool("INFLUXDB_ENABLED", true),
			URL:          shared.GetEnv("INFLUXDB_URL", "http://localhost:8086"),
			Token:        shared.GetEnv("INFLUXDB_TOKEN", ""),
			Organization: shared.GetEnv("INFLUXDB_ORG", "mesh_map"),
			Bucket:       shared.GetEnv("INFLUXDB_BUCKET", "node_facts"),
		},
		Logger: LoggerConfig{
			Level:  shared.GetEnv("LOG_LEVEL", "info"),
			Format: shared.GetEnv("LOG_FORMAT", "console"),
		},
		Service: ServiceConfig{
			Name:           shared.GetEnv("SERVICE_NAME", "mesh-map-sync"),
			Version:        shared.GetEnv("SERVICE_VERSION", "1.0.0"),
			HTTPAddr:       shared.GetEnv("HTTP_ADDR", ":8090"),
			PollNodeIDs:    shared.GetEnvAsSlice("POLL_NODE_IDS", nil),
			PollInterval:   shared.GetEnvAsDuration("POLL_INTERVAL", time.Minute),
			PollRateLimit:  shared.GetEnvAsFloat("POLL_RATE_LIMIT", 5),
			IngestDebounce: shared.GetEnvAsDuration("INGEST_DEBOUNCE", 2*time.Second),
		},
	}

	config.MQTT.BaseTopic = strings.TrimSuffix(config.MQTT.BaseTopic, "/")
	config.Postgres.Dsn = config.Postgres.BuildDsn()

	return config, config.validate()
}

func (p *PostgresConfig) BuildDsn() string {
	sslMode := p.SSLMode
	if sslMode == "false" || sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, sslMode, p.TimeZone,
	)
}

func (a *APIConfig) endpoints() map[string]string {
	return map[string]string{
		"gps_track_endpoint":      a.GpsTrackEndpoint,
		"device_metrics_endpoint": a.DeviceMetricsEndpoint,
		"nodeinfo_endpoint":       a.NodeInfoEndpoint,
		"position_endpoint":       a.PositionEndpoint,
		"telemetry_endpoint":      a.TelemetryEndpoint,
		"text_message_endpoint":   a.TextMessageEndpoint,
		"map_report_endpoint":     a.MapReportEndpoint,
		"traceroute_endpoint":     a.TracerouteEndpoint,
	}
}

func (c *Config) validate() error {
	var errs shared.ConfigErrors

	for field, endpoint := range c.API.endpoints() {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			errs = append(errs, shared.NewConfigError("api", field, endpoint, "must start with http:// or https://"))
		}
	}
	if c.API.RequestTimeout < 0 {
		errs = append(errs, shared.NewConfigError("api", "request_timeout", c.API.RequestTimeout, "cannot be negative"))
	}

	if c.Device.ActiveThreshold <= 0 {
		errs = append(errs, shared.NewConfigError("device", "active_threshold", c.Device.ActiveThreshold, "must be greater than 0"))
	}
	if c.Device.RecentlyActiveThreshold <= 0 {
		errs = append(errs, shared.NewConfigError("device", "recently_active_threshold", c.Device.RecentlyActiveThreshold, "must be greater than 0"))
	}

	if c.MQTT.Enabled {
		if c.MQTT.Host == "" {
			errs = append(errs, shared.NewConfigError("mqtt", "host", nil, "is required"))
		}
		if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
			errs = append(errs, shared.NewConfigError("mqtt", "port", c.MQTT.Port, "must be between 1 and 65535"))
		}
		if c.MQTT.QoS > 2 {
			errs = append(errs, shared.NewConfigError("mqtt", "qos", c.MQTT.QoS, "must be 0, 1, or 2"))
		}
	}

	if c.InfluxDB.Enabled {
		if !strings.HasPrefix(c.InfluxDB.URL, "http://") && !strings.HasPrefix(c.InfluxDB.URL, "https://") {
			errs = append(errs, shared.NewConfigError("influxdb", "url", c.InfluxDB.URL, "must start with http:// or https://"))
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, shared.NewConfigError("influxdb", "token", nil, "is required"))
		}
	}

	if c.Postgres.Enabled && c.Postgres.Host == "" {
		errs = append(errs, shared.NewConfigError("postgres", "host", nil, "is required"))
	}

	if c.Service.PollInterval <= 0 {
		errs = append(errs, shared.NewConfigError("service", "poll_interval", c.Service.PollInterval, "must be greater than 0"))
	}
	if c.Service.PollRateLimit <= 0 {
		errs = append(errs, shared.NewConfigError("service", "poll_rate_limit", c.Service.PollRateLimit, "must be greater than 0"))
	}
	if c.Service.IngestDebounce < 0 {
		errs = append(errs, shared.NewConfigError("service", "ingest_debounce", c.Service.IngestDebounce, "cannot be negative"))
	}

	return errs.OrNil()
}
