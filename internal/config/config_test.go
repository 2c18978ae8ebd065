package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"mesh-map-sync/internal/config/shared"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("INFLUXDB_TOKEN", "secret")
	t.Setenv("MQTT_ENABLED", "false")
	t.Setenv("POSTGRES_ENABLED", "false")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Device.ActiveThreshold != time.Hour {
		t.Errorf("active threshold = %v", cfg.Device.ActiveThreshold)
	}
	if cfg.Device.RecentlyActiveThreshold != 24*time.Hour {
		t.Errorf("recently active threshold = %v", cfg.Device.RecentlyActiveThreshold)
	}
	if cfg.Device.Locale != "ru" {
		t.Errorf("locale = %q", cfg.Device.Locale)
	}
	if cfg.API.GpsTrackEndpoint != cfg.API.PositionEndpoint {
		t.Errorf("gps track endpoint %q should default to position endpoint %q", cfg.API.GpsTrackEndpoint, cfg.API.PositionEndpoint)
	}
}

func TestLoad_GpsTrackFollowsPosition(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("API_POSITION_ENDPOINT", "https://mesh.example/api/pos")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.GpsTrackEndpoint != "https://mesh.example/api/pos" {
		t.Fatalf("unexpected gps track endpoint %q", cfg.API.GpsTrackEndpoint)
	}
}

func TestLoad_ThresholdSeconds(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DEVICE_ACTIVE_THRESHOLD", "600")
	t.Setenv("DEVICE_RECENTLY_ACTIVE_THRESHOLD", "2h")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Device.ActiveThreshold != 10*time.Minute || cfg.Device.RecentlyActiveThreshold != 2*time.Hour {
		t.Fatalf("unexpected thresholds %+v", cfg.Device)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"missing influx token", map[string]string{"INFLUXDB_TOKEN": ""}, "influxdb.token"},
		{"zero threshold", map[string]string{"DEVICE_ACTIVE_THRESHOLD": "0"}, "device.active_threshold"},
		{"negative threshold", map[string]string{"DEVICE_RECENTLY_ACTIVE_THRESHOLD": "-5"}, "device.recently_active_threshold"},
		{"ftp endpoint", map[string]string{"API_NODEINFO_ENDPOINT": "ftp://mesh/nodeinfo"}, "api.nodeinfo_endpoint"},
		{"bad mqtt port", map[string]string{"MQTT_ENABLED": "true", "MQTT_PORT": "70000"}, "mqtt.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("expected validation error")
			}

			var errs shared.ConfigErrors
			if !errors.As(err, &errs) {
				t.Fatalf("expected ConfigErrors, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Fatalf("error %q does not mention %s", err, tt.field)
			}
		})
	}
}

func TestBuildDsn(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "mesh", SSLMode: "false", TimeZone: "UTC"}
	if dsn := p.BuildDsn(); !strings.Contains(dsn, "sslmode=disable") || !strings.Contains(dsn, "host=db") {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}
