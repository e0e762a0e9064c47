package armenv

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
	"gopkg.in/yaml.v3"

	"armenv/backend"
)

// Settle modes
const (
	SettleFixed = "fixed"
	SettleAck   = "ack"
)

// DataDirEnv names the directory relative calibration files are resolved against.
const DataDirEnv = "ARMENV_DATA"

type Config struct {
	// Backend address, tcp://host:port or serial:///dev/ttyUSB0?baud=115200
	Backend     string `json:"backend,omitempty" yaml:"backend,omitempty"`
	ControlMode string `json:"control_mode,omitempty" yaml:"control_mode,omitempty"`
	ForceSensor string `json:"force_sensor,omitempty" yaml:"force_sensor,omitempty"`

	ResetSettle   time.Duration `json:"reset_settle,omitempty" yaml:"reset_settle,omitempty"` // default: 1s
	StepSettle    time.Duration `json:"step_settle,omitempty" yaml:"step_settle,omitempty"`   // default: 100ms
	SettleMode    string        `json:"settle_mode,omitempty" yaml:"settle_mode,omitempty"`   // "fixed" or "ack"
	MotionSignal  string        `json:"motion_signal,omitempty" yaml:"motion_signal,omitempty"`
	MotionTimeout time.Duration `json:"motion_timeout,omitempty" yaml:"motion_timeout,omitempty"`

	CalibrationTimeout time.Duration `json:"calibration_timeout,omitempty" yaml:"calibration_timeout,omitempty"`
	CalibrationFile    string        `json:"calibration_file,omitempty" yaml:"calibration_file,omitempty"`

	AcknowledgedDispatch bool `json:"acknowledged_dispatch,omitempty" yaml:"acknowledged_dispatch,omitempty"`
	// Optional [min, max] per pose field for inverse kinematics mode
	Workspace [][2]float64 `json:"workspace,omitempty" yaml:"workspace,omitempty"`

	ActionScale float64    `json:"action_scale,omitempty" yaml:"action_scale,omitempty"`
	ActionBound float64    `json:"action_bound,omitempty" yaml:"action_bound,omitempty"`
	Target      [3]float64 `json:"target,omitempty" yaml:"target,omitempty"`
	Tolerance   float64    `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	MaxForce    float64    `json:"max_force,omitempty" yaml:"max_force,omitempty"`

	Seed    uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
	LogFile string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
}

// LoadConfig reads a JSON or YAML (by extension) config file and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures all parts of the config are valid and fills in defaults.
func (cfg *Config) Validate(path string) error {
	if cfg.Backend == "" {
		cfg.Backend = backend.DefaultAddress
	}
	if cfg.ControlMode == "" {
		cfg.ControlMode = ForwardKinematics.String()
	}
	if _, err := ParseControlMode(cfg.ControlMode); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if cfg.ForceSensor == "" {
		cfg.ForceSensor = "Force_sensor"
	}

	if cfg.ResetSettle == 0 {
		cfg.ResetSettle = time.Second
	}
	if cfg.StepSettle == 0 {
		cfg.StepSettle = 100 * time.Millisecond
	}
	if cfg.ResetSettle < 0 || cfg.StepSettle < 0 {
		return fmt.Errorf("%s: settle durations must not be negative", path)
	}
	if cfg.SettleMode == "" {
		cfg.SettleMode = SettleFixed
	}
	if cfg.SettleMode != SettleFixed && cfg.SettleMode != SettleAck {
		return fmt.Errorf("%s: settle_mode must be '%s' or '%s', got '%s'", path, SettleFixed, SettleAck, cfg.SettleMode)
	}
	if cfg.MotionSignal == "" {
		cfg.MotionSignal = DefaultMotionSignal
	}
	if cfg.MotionTimeout == 0 {
		cfg.MotionTimeout = 5 * time.Second
	}

	if cfg.CalibrationTimeout == 0 {
		cfg.CalibrationTimeout = 30 * time.Second
	}
	if cfg.CalibrationTimeout < 0 {
		return fmt.Errorf("%s: calibration_timeout must be positive, got %v", path, cfg.CalibrationTimeout)
	}

	if len(cfg.Workspace) != 0 && len(cfg.Workspace) != NumJoints {
		return fmt.Errorf("%s: expected %d workspace bounds, got %d", path, NumJoints, len(cfg.Workspace))
	}
	for i, b := range cfg.Workspace {
		if b[0] > b[1] {
			return fmt.Errorf("%s: workspace bound %d has min %v above max %v", path, i, b[0], b[1])
		}
	}

	if cfg.ActionScale == 0 {
		cfg.ActionScale = 1.0
	}
	if cfg.ActionBound == 0 {
		cfg.ActionBound = 1.0
	}
	if cfg.ActionBound < 0 {
		return fmt.Errorf("%s: action_bound must be positive, got %v", path, cfg.ActionBound)
	}

	return nil
}

// Mode returns the configured control mode. Validate must have succeeded.
func (cfg *Config) Mode() ControlMode {
	mode, _ := ParseControlMode(cfg.ControlMode)
	return mode
}

// WorkspaceBounds returns the configured pose bounds, if any.
func (cfg *Config) WorkspaceBounds() (*[NumJoints]JointBoundary, bool) {
	if len(cfg.Workspace) != NumJoints {
		return nil, false
	}
	var out [NumJoints]JointBoundary
	for i, b := range cfg.Workspace {
		out[i] = JointBoundary{Min: b[0], Max: b[1]}
	}
	return &out, true
}

// Shaper returns the default action shaper for this config.
func (cfg *Config) Shaper() ScaleShaper {
	return ScaleShaper{Scale: cfg.ActionScale, Bound: cfg.ActionBound}
}

// Evaluator returns the default reward function for this config.
func (cfg *Config) Evaluator() ReachEvaluator {
	return ReachEvaluator{
		Target:    r3.Vector{X: cfg.Target[0], Y: cfg.Target[1], Z: cfg.Target[2]},
		Tolerance: cfg.Tolerance,
		MaxForce:  cfg.MaxForce,
	}
}

// calibrationPath resolves CalibrationFile, relative paths against $ARMENV_DATA.
func (cfg *Config) calibrationPath() string {
	if cfg.CalibrationFile == "" || filepath.IsAbs(cfg.CalibrationFile) {
		return cfg.CalibrationFile
	}
	dataDir := os.Getenv(DataDirEnv)
	if dataDir == "" {
		dataDir = os.TempDir()
	}
	return filepath.Join(dataDir, cfg.CalibrationFile)
}

// LoadCalibration loads a previously saved calibration.
// Returns (calibration, fromFile) where fromFile is false when no usable file exists and
// the backend has to be queried.
func (cfg *Config) LoadCalibration(logger logging.Logger) (Calibration, bool) {
	path := cfg.calibrationPath()
	if path == "" {
		if logger != nil {
			logger.Debug("No calibration file specified, calibrating from backend")
		}
		return Calibration{}, false
	}

	calibration, err := LoadCalibrationFromFile(path)
	if err != nil {
		if logger != nil {
			logger.Infof("No usable calibration in %s (%v), calibrating from backend", path, err)
		}
		return Calibration{}, false
	}

	if logger != nil {
		logger.Infof("Successfully loaded calibration from %s", path)
	}
	return calibration, true
}

// SaveCalibration writes cal to the configured file, if any.
func (cfg *Config) SaveCalibration(cal Calibration) error {
	path := cfg.calibrationPath()
	if path == "" {
		return nil
	}
	return SaveCalibrationToFile(path, cal)
}

// CalibrationFileFormat is the on-disk calibration layout.
type CalibrationFileFormat struct {
	Joints []CalibrationEntry `json:"joints"`
}

// CalibrationEntry stores one joint. The degree boundary is informational for operators and
// recomputed on load.
type CalibrationEntry struct {
	Joint  int     `json:"joint"`
	Origin float64 `json:"origin"`
	Span   float64 `json:"span"`
	MinDeg float64 `json:"min_deg"`
	MaxDeg float64 `json:"max_deg"`
}

// LoadCalibrationFromFile loads and validates a calibration from a JSON file
func LoadCalibrationFromFile(filePath string) (Calibration, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Calibration{}, fmt.Errorf("failed to read calibration file: %w", err)
	}

	var fileFormat CalibrationFileFormat
	if err := json.Unmarshal(data, &fileFormat); err != nil {
		return Calibration{}, fmt.Errorf("failed to parse calibration JSON: %w", err)
	}
	if len(fileFormat.Joints) != NumJoints {
		return Calibration{}, fmt.Errorf("expected %d joints in calibration file, got %d", NumJoints, len(fileFormat.Joints))
	}

	var cal Calibration
	seen := make(map[int]bool)
	for _, entry := range fileFormat.Joints {
		if entry.Joint < 1 || entry.Joint > NumJoints {
			return Calibration{}, fmt.Errorf("joint number must be 1-%d, got %d", NumJoints, entry.Joint)
		}
		if seen[entry.Joint] {
			return Calibration{}, fmt.Errorf("joint %d listed twice", entry.Joint)
		}
		seen[entry.Joint] = true
		cal[entry.Joint-1] = JointCalibration{Origin: entry.Origin, Span: entry.Span}
	}

	if err := cal.Validate(); err != nil {
		return Calibration{}, fmt.Errorf("calibration validation failed: %w", err)
	}
	return cal, nil
}

// SaveCalibrationToFile saves calibration to a JSON file
func SaveCalibrationToFile(filePath string, cal Calibration) error {
	fileFormat := CalibrationFileFormat{Joints: make([]CalibrationEntry, 0, NumJoints)}
	for i, joint := range cal {
		b := joint.Boundary()
		fileFormat.Joints = append(fileFormat.Joints, CalibrationEntry{
			Joint:  i + 1,
			Origin: joint.Origin,
			Span:   joint.Span,
			MinDeg: b.Min,
			MaxDeg: b.Max,
		})
	}

	data, err := json.MarshalIndent(fileFormat, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal calibration: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write calibration file: %w", err)
	}
	return nil
}
