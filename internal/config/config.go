// Package config loads runtime tunables for the wheellyd reactor from
// environment variables, applying domain defaults drawn straight from the
// component design (reaction/command intervals, grid geometry, persistence
// windows) and returning every validation failure accumulated into one
// error rather than failing fast on the first bad value.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultReactionInterval is the controller's main tick period.
	DefaultReactionInterval = 300 * time.Millisecond
	// DefaultCommandInterval is the motor command validity refresh period.
	DefaultCommandInterval = 600 * time.Millisecond
	// DefaultCommandSlack pads the validity deadline sent with every motor
	// command beyond CommandInterval, absorbing scheduling jitter.
	DefaultCommandSlack = 100 * time.Millisecond
	// DefaultSerialPollInterval is the serial reader's poll granularity.
	DefaultSerialPollInterval = 10 * time.Millisecond
	// DefaultSerialTimeout bounds a single command/reply round trip.
	DefaultSerialTimeout = 300 * time.Millisecond
	// DefaultMaxConsecutiveTimeouts is the number of consecutive send
	// failures before the controller moves the link to Failed.
	DefaultMaxConsecutiveTimeouts = 3

	// DefaultSerialPort is the default tty device the robot is attached to.
	DefaultSerialPort = "/dev/ttyUSB0"
	// DefaultBaudRate is the serial link's bit rate.
	DefaultBaudRate = 115200

	// DefaultGridWidth and DefaultGridHeight size the radar grid in cells.
	DefaultGridWidth  = 81
	DefaultGridHeight = 81
	// DefaultCellSize is the edge length of one grid cell, in metres.
	DefaultCellSize = 0.2
	// DefaultEchoPersistence and DefaultContactPersistence bound how long a
	// radar cell's hindered/contact classification survives without
	// reinforcement.
	DefaultEchoPersistence    = 5 * time.Second
	DefaultContactPersistence = 5 * time.Second
	// DefaultRadarCleanInterval is how often aged cell timestamps are zeroed.
	DefaultRadarCleanInterval = time.Second

	// DefaultMaxRadarDistance and DefaultMinRadarDistance bound the polar
	// map's sector radius window.
	DefaultMaxRadarDistance = 3.0
	DefaultMinRadarDistance = 0.0
	// DefaultSectorCount is the number of equi-angular polar sectors.
	DefaultSectorCount = 24
	// DefaultReceptiveAngle is the proximity sensor's full cone width.
	DefaultReceptiveAngle = 15.0
	// DefaultContactRadius is how far a contact reading marks cells as
	// occupied around the reporting side of the robot.
	DefaultContactRadius = 0.2
	// DefaultSafeDistance is the minimum clearance the reactive states
	// require before treating a direction as unblocked.
	DefaultSafeDistance = 0.4
	// DefaultFrontArc and DefaultRearArc are the half-angles, in degrees,
	// of the sector fans counted as "front" and "rear" by the blocked
	// predicates.
	DefaultFrontArc = 30.0
	DefaultRearArc  = 30.0
	// DefaultSensorStaleTimeout is how long the modeller trusts proximity
	// data before classifying every sector as unknown.
	DefaultSensorStaleTimeout = 2 * time.Second
	// DefaultClockSyncInterval is how often the controller re-measures the
	// robot clock offset.
	DefaultClockSyncInterval = time.Minute

	// DefaultMarkerDecay and DefaultMarkerCleanDecay bound a label marker's
	// lifetime without reinforcement and its eventual purge.
	DefaultMarkerDecay      = 10 * time.Second
	DefaultMarkerCleanDecay = 30 * time.Second

	// DefaultFlowPath is where the agent configuration document is read
	// from at startup.
	DefaultFlowPath = "flow.json"

	// DefaultTelemetryAddr is the address the telemetry websocket server
	// listens on. Empty disables the telemetry server.
	DefaultTelemetryAddr = ":7070"

	// DefaultLogLevel controls verbosity for reactor logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "wheelly.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// LinkMode selects which Link transport the reactor constructs.
type LinkMode string

const (
	LinkModeSerial LinkMode = "serial"
	LinkModeBridge LinkMode = "bridge"
)

// Config captures all runtime tunables for the wheellyd reactor.
type Config struct {
	ReactionInterval       time.Duration
	CommandInterval        time.Duration
	CommandSlack           time.Duration
	SerialPollInterval     time.Duration
	SerialTimeout          time.Duration
	MaxConsecutiveTimeouts int

	LinkMode   LinkMode
	SerialPort string
	BaudRate   int
	BridgeURL  string

	GridWidth          int
	GridHeight         int
	CellSize           float64
	EchoPersistence    time.Duration
	ContactPersistence time.Duration
	RadarCleanInterval time.Duration

	MaxRadarDistance float64
	MinRadarDistance float64
	SectorCount      int
	ReceptiveAngle   float64
	ContactRadius    float64
	SafeDistance     float64
	FrontArc         float64
	RearArc          float64

	SensorStaleTimeout time.Duration
	ClockSyncInterval  time.Duration

	MarkerDecay      time.Duration
	MarkerCleanDecay time.Duration

	FlowPath string

	TelemetryAddr  string
	TelemetryToken string

	Logging LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the reactor configuration from environment variables, applying
// domain defaults and returning every validation problem as one error.
func Load() (*Config, error) {
	cfg := &Config{
		ReactionInterval:       DefaultReactionInterval,
		CommandInterval:        DefaultCommandInterval,
		CommandSlack:           DefaultCommandSlack,
		SerialPollInterval:     DefaultSerialPollInterval,
		SerialTimeout:          DefaultSerialTimeout,
		MaxConsecutiveTimeouts: DefaultMaxConsecutiveTimeouts,

		LinkMode:   LinkMode(getString("WHEELLY_LINK_MODE", string(LinkModeSerial))),
		SerialPort: getString("WHEELLY_SERIAL_PORT", DefaultSerialPort),
		BaudRate:   DefaultBaudRate,
		BridgeURL:  strings.TrimSpace(os.Getenv("WHEELLY_BRIDGE_URL")),

		GridWidth:          DefaultGridWidth,
		GridHeight:         DefaultGridHeight,
		CellSize:           DefaultCellSize,
		EchoPersistence:    DefaultEchoPersistence,
		ContactPersistence: DefaultContactPersistence,
		RadarCleanInterval: DefaultRadarCleanInterval,

		MaxRadarDistance: DefaultMaxRadarDistance,
		MinRadarDistance: DefaultMinRadarDistance,
		SectorCount:      DefaultSectorCount,
		ReceptiveAngle:   DefaultReceptiveAngle,
		ContactRadius:    DefaultContactRadius,
		SafeDistance:     DefaultSafeDistance,
		FrontArc:         DefaultFrontArc,
		RearArc:          DefaultRearArc,

		SensorStaleTimeout: DefaultSensorStaleTimeout,
		ClockSyncInterval:  DefaultClockSyncInterval,

		MarkerDecay:      DefaultMarkerDecay,
		MarkerCleanDecay: DefaultMarkerCleanDecay,

		FlowPath: getString("WHEELLY_FLOW_PATH", DefaultFlowPath),

		TelemetryAddr:  getString("WHEELLY_TELEMETRY_ADDR", DefaultTelemetryAddr),
		TelemetryToken: strings.TrimSpace(os.Getenv("WHEELLY_TELEMETRY_TOKEN")),

		Logging: LoggingConfig{
			Level:      getString("WHEELLY_LOG_LEVEL", DefaultLogLevel),
			Path:       getString("WHEELLY_LOG_PATH", DefaultLogPath),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	parseDuration(&problems, "WHEELLY_REACTION_INTERVAL", &cfg.ReactionInterval, true)
	parseDuration(&problems, "WHEELLY_COMMAND_INTERVAL", &cfg.CommandInterval, true)
	parseDuration(&problems, "WHEELLY_COMMAND_SLACK", &cfg.CommandSlack, false)
	parseDuration(&problems, "WHEELLY_SERIAL_POLL_INTERVAL", &cfg.SerialPollInterval, true)
	parseDuration(&problems, "WHEELLY_SERIAL_TIMEOUT", &cfg.SerialTimeout, true)
	parseDuration(&problems, "WHEELLY_ECHO_PERSISTENCE", &cfg.EchoPersistence, true)
	parseDuration(&problems, "WHEELLY_CONTACT_PERSISTENCE", &cfg.ContactPersistence, true)
	parseDuration(&problems, "WHEELLY_RADAR_CLEAN_INTERVAL", &cfg.RadarCleanInterval, true)
	parseDuration(&problems, "WHEELLY_MARKER_DECAY", &cfg.MarkerDecay, true)
	parseDuration(&problems, "WHEELLY_MARKER_CLEAN_DECAY", &cfg.MarkerCleanDecay, true)
	parseDuration(&problems, "WHEELLY_SENSOR_STALE_TIMEOUT", &cfg.SensorStaleTimeout, true)
	parseDuration(&problems, "WHEELLY_CLOCK_SYNC_INTERVAL", &cfg.ClockSyncInterval, true)

	parseInt(&problems, "WHEELLY_BAUD_RATE", &cfg.BaudRate, true)
	parseInt(&problems, "WHEELLY_GRID_WIDTH", &cfg.GridWidth, true)
	parseInt(&problems, "WHEELLY_GRID_HEIGHT", &cfg.GridHeight, true)
	parseInt(&problems, "WHEELLY_SECTOR_COUNT", &cfg.SectorCount, true)
	parseInt(&problems, "WHEELLY_MAX_CONSECUTIVE_TIMEOUTS", &cfg.MaxConsecutiveTimeouts, true)

	parseFloat(&problems, "WHEELLY_CELL_SIZE", &cfg.CellSize, true)
	parseFloat(&problems, "WHEELLY_MAX_RADAR_DISTANCE", &cfg.MaxRadarDistance, true)
	parseFloat(&problems, "WHEELLY_MIN_RADAR_DISTANCE", &cfg.MinRadarDistance, false)
	parseFloat(&problems, "WHEELLY_RECEPTIVE_ANGLE", &cfg.ReceptiveAngle, true)
	parseFloat(&problems, "WHEELLY_CONTACT_RADIUS", &cfg.ContactRadius, true)
	parseFloat(&problems, "WHEELLY_SAFE_DISTANCE", &cfg.SafeDistance, true)
	parseFloat(&problems, "WHEELLY_FRONT_ARC", &cfg.FrontArc, true)
	parseFloat(&problems, "WHEELLY_REAR_ARC", &cfg.RearArc, true)

	parseInt(&problems, "WHEELLY_LOG_MAX_SIZE_MB", &cfg.Logging.MaxSizeMB, true)
	parseIntNonNeg(&problems, "WHEELLY_LOG_MAX_BACKUPS", &cfg.Logging.MaxBackups)
	parseIntNonNeg(&problems, "WHEELLY_LOG_MAX_AGE_DAYS", &cfg.Logging.MaxAgeDays)

	if raw := strings.TrimSpace(os.Getenv("WHEELLY_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("WHEELLY_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if cfg.LinkMode != LinkModeSerial && cfg.LinkMode != LinkModeBridge {
		problems = append(problems, fmt.Sprintf("WHEELLY_LINK_MODE must be %q or %q, got %q", LinkModeSerial, LinkModeBridge, cfg.LinkMode))
	}
	if cfg.LinkMode == LinkModeBridge && cfg.BridgeURL == "" {
		problems = append(problems, "WHEELLY_BRIDGE_URL is required when WHEELLY_LINK_MODE=bridge")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDuration(problems *[]string, key string, into *time.Duration, mustBePositive bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	value, err := time.ParseDuration(raw)
	if err != nil || (mustBePositive && value <= 0) {
		*problems = append(*problems, fmt.Sprintf("%s must be a positive duration, got %q", key, raw))
		return
	}
	*into = value
}

func parseInt(problems *[]string, key string, into *int, mustBePositive bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil || (mustBePositive && value <= 0) {
		*problems = append(*problems, fmt.Sprintf("%s must be a positive integer, got %q", key, raw))
		return
	}
	*into = value
}

func parseIntNonNeg(problems *[]string, key string, into *int) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		*problems = append(*problems, fmt.Sprintf("%s must be a non-negative integer, got %q", key, raw))
		return
	}
	*into = value
}

func parseFloat(problems *[]string, key string, into *float64, mustBePositive bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || (mustBePositive && value <= 0) {
		*problems = append(*problems, fmt.Sprintf("%s must be a positive number, got %q", key, raw))
		return
	}
	*into = value
}
