package config

import (
	"strings"
	"testing"
	"time"
)

func clearWheellyEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WHEELLY_LINK_MODE", "WHEELLY_SERIAL_PORT", "WHEELLY_BRIDGE_URL",
		"WHEELLY_REACTION_INTERVAL", "WHEELLY_COMMAND_INTERVAL", "WHEELLY_COMMAND_SLACK",
		"WHEELLY_SERIAL_POLL_INTERVAL", "WHEELLY_SERIAL_TIMEOUT",
		"WHEELLY_ECHO_PERSISTENCE", "WHEELLY_CONTACT_PERSISTENCE", "WHEELLY_RADAR_CLEAN_INTERVAL",
		"WHEELLY_MARKER_DECAY", "WHEELLY_MARKER_CLEAN_DECAY",
		"WHEELLY_BAUD_RATE", "WHEELLY_GRID_WIDTH", "WHEELLY_GRID_HEIGHT", "WHEELLY_SECTOR_COUNT",
		"WHEELLY_MAX_CONSECUTIVE_TIMEOUTS", "WHEELLY_CELL_SIZE", "WHEELLY_MAX_RADAR_DISTANCE",
		"WHEELLY_MIN_RADAR_DISTANCE", "WHEELLY_RECEPTIVE_ANGLE", "WHEELLY_CONTACT_RADIUS",
		"WHEELLY_SAFE_DISTANCE", "WHEELLY_FRONT_ARC", "WHEELLY_REAR_ARC",
		"WHEELLY_SENSOR_STALE_TIMEOUT", "WHEELLY_CLOCK_SYNC_INTERVAL",
		"WHEELLY_FLOW_PATH", "WHEELLY_TELEMETRY_ADDR", "WHEELLY_TELEMETRY_TOKEN",
		"WHEELLY_LOG_LEVEL", "WHEELLY_LOG_PATH", "WHEELLY_LOG_MAX_SIZE_MB", "WHEELLY_LOG_MAX_BACKUPS",
		"WHEELLY_LOG_MAX_AGE_DAYS", "WHEELLY_LOG_COMPRESS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearWheellyEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.ReactionInterval != DefaultReactionInterval {
		t.Fatalf("expected default reaction interval %v, got %v", DefaultReactionInterval, cfg.ReactionInterval)
	}
	if cfg.CommandInterval != DefaultCommandInterval {
		t.Fatalf("expected default command interval %v, got %v", DefaultCommandInterval, cfg.CommandInterval)
	}
	if cfg.LinkMode != LinkModeSerial {
		t.Fatalf("expected default link mode serial, got %q", cfg.LinkMode)
	}
	if cfg.SerialPort != DefaultSerialPort {
		t.Fatalf("expected default serial port %q, got %q", DefaultSerialPort, cfg.SerialPort)
	}
	if cfg.BaudRate != DefaultBaudRate {
		t.Fatalf("expected default baud rate %d, got %d", DefaultBaudRate, cfg.BaudRate)
	}
	if cfg.GridWidth != DefaultGridWidth || cfg.GridHeight != DefaultGridHeight {
		t.Fatalf("expected default grid %dx%d, got %dx%d", DefaultGridWidth, DefaultGridHeight, cfg.GridWidth, cfg.GridHeight)
	}
	if cfg.CellSize != DefaultCellSize {
		t.Fatalf("expected default cell size %v, got %v", DefaultCellSize, cfg.CellSize)
	}
	if cfg.SectorCount != DefaultSectorCount {
		t.Fatalf("expected default sector count %d, got %d", DefaultSectorCount, cfg.SectorCount)
	}
	if cfg.SafeDistance != DefaultSafeDistance {
		t.Fatalf("expected default safe distance %v, got %v", DefaultSafeDistance, cfg.SafeDistance)
	}
	if cfg.FlowPath != DefaultFlowPath {
		t.Fatalf("expected default flow path %q, got %q", DefaultFlowPath, cfg.FlowPath)
	}
	if cfg.TelemetryAddr != DefaultTelemetryAddr {
		t.Fatalf("expected default telemetry addr %q, got %q", DefaultTelemetryAddr, cfg.TelemetryAddr)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.Logging.Level)
	}
	if cfg.Logging.Compress != DefaultLogCompress {
		t.Fatalf("expected default log compress %t, got %t", DefaultLogCompress, cfg.Logging.Compress)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearWheellyEnv(t)
	t.Setenv("WHEELLY_LINK_MODE", "bridge")
	t.Setenv("WHEELLY_BRIDGE_URL", "http://wheelly.local")
	t.Setenv("WHEELLY_REACTION_INTERVAL", "250ms")
	t.Setenv("WHEELLY_COMMAND_INTERVAL", "500ms")
	t.Setenv("WHEELLY_BAUD_RATE", "57600")
	t.Setenv("WHEELLY_GRID_WIDTH", "101")
	t.Setenv("WHEELLY_GRID_HEIGHT", "101")
	t.Setenv("WHEELLY_SECTOR_COUNT", "36")
	t.Setenv("WHEELLY_SAFE_DISTANCE", "0.6")
	t.Setenv("WHEELLY_FLOW_PATH", "/etc/wheelly/flow.json")
	t.Setenv("WHEELLY_TELEMETRY_ADDR", ":9090")
	t.Setenv("WHEELLY_LOG_LEVEL", "debug")
	t.Setenv("WHEELLY_LOG_PATH", "/var/log/wheelly.log")
	t.Setenv("WHEELLY_LOG_MAX_SIZE_MB", "512")
	t.Setenv("WHEELLY_LOG_MAX_BACKUPS", "4")
	t.Setenv("WHEELLY_LOG_MAX_AGE_DAYS", "2")
	t.Setenv("WHEELLY_LOG_COMPRESS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.LinkMode != LinkModeBridge {
		t.Fatalf("expected bridge link mode, got %q", cfg.LinkMode)
	}
	if cfg.BridgeURL != "http://wheelly.local" {
		t.Fatalf("unexpected bridge URL %q", cfg.BridgeURL)
	}
	if cfg.ReactionInterval != 250*time.Millisecond {
		t.Fatalf("expected reaction interval 250ms, got %v", cfg.ReactionInterval)
	}
	if cfg.CommandInterval != 500*time.Millisecond {
		t.Fatalf("expected command interval 500ms, got %v", cfg.CommandInterval)
	}
	if cfg.BaudRate != 57600 {
		t.Fatalf("expected baud rate 57600, got %d", cfg.BaudRate)
	}
	if cfg.GridWidth != 101 || cfg.GridHeight != 101 {
		t.Fatalf("unexpected grid size %dx%d", cfg.GridWidth, cfg.GridHeight)
	}
	if cfg.SectorCount != 36 {
		t.Fatalf("expected sector count 36, got %d", cfg.SectorCount)
	}
	if cfg.SafeDistance != 0.6 {
		t.Fatalf("expected safe distance 0.6, got %v", cfg.SafeDistance)
	}
	if cfg.FlowPath != "/etc/wheelly/flow.json" {
		t.Fatalf("unexpected flow path %q", cfg.FlowPath)
	}
	if cfg.TelemetryAddr != ":9090" {
		t.Fatalf("unexpected telemetry addr %q", cfg.TelemetryAddr)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected overridden log level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.MaxSizeMB != 512 {
		t.Fatalf("expected log max size 512, got %d", cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.Compress {
		t.Fatalf("expected log compression disabled")
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	clearWheellyEnv(t)
	t.Setenv("WHEELLY_REACTION_INTERVAL", "abc")
	t.Setenv("WHEELLY_GRID_WIDTH", "-1")
	t.Setenv("WHEELLY_CELL_SIZE", "0")
	t.Setenv("WHEELLY_LOG_MAX_BACKUPS", "-2")
	t.Setenv("WHEELLY_LOG_COMPRESS", "notabool")
	t.Setenv("WHEELLY_LINK_MODE", "carrier-pigeon")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error from invalid configuration, got nil")
	}

	for _, want := range []string{
		"WHEELLY_REACTION_INTERVAL",
		"WHEELLY_GRID_WIDTH",
		"WHEELLY_CELL_SIZE",
		"WHEELLY_LOG_MAX_BACKUPS",
		"WHEELLY_LOG_COMPRESS",
		"WHEELLY_LINK_MODE",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %q", want, err.Error())
		}
	}
}

func TestLoadRequiresBridgeURLInBridgeMode(t *testing.T) {
	clearWheellyEnv(t)
	t.Setenv("WHEELLY_LINK_MODE", "bridge")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when bridge mode has no URL")
	}
	if !strings.Contains(err.Error(), "WHEELLY_BRIDGE_URL") {
		t.Fatalf("expected error to mention WHEELLY_BRIDGE_URL, got %q", err.Error())
	}
}

func TestLoadAllowsZeroMinRadarDistance(t *testing.T) {
	clearWheellyEnv(t)
	t.Setenv("WHEELLY_MIN_RADAR_DISTANCE", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.MinRadarDistance != 0 {
		t.Fatalf("expected zero min radar distance, got %v", cfg.MinRadarDistance)
	}
}
