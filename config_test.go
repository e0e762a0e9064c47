package armenv

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"

	"armenv/backend"
)

var testCalibration = Calibration{
	{Origin: -math.Pi / 2, Span: math.Pi},
	{Origin: 0, Span: math.Pi},
	{Origin: -math.Pi / 4, Span: math.Pi / 2},
	{Origin: -math.Pi, Span: 2 * math.Pi},
	{Origin: -math.Pi, Span: math.Pi},
	{Origin: 0.25, Span: 1.5},
}

func TestLoadCalibration(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("returns fromFile=true when file exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		calibFile := filepath.Join(tmpDir, "test_calibration.json")
		err := SaveCalibrationToFile(calibFile, testCalibration)
		if err != nil {
			t.Fatalf("Failed to create test calibration file: %v", err)
		}

		cfg := &Config{
			CalibrationFile: calibFile,
		}

		cal, fromFile := cfg.LoadCalibration(logger)

		if !fromFile {
			t.Error("Expected fromFile=true when loading from existing file")
		}
		if cal != testCalibration {
			t.Error("Expected calibration to match saved values")
		}
	})

	t.Run("returns fromFile=false when no file configured", func(t *testing.T) {
		cfg := &Config{}

		_, fromFile := cfg.LoadCalibration(logger)

		if fromFile {
			t.Error("Expected fromFile=false when no file configured")
		}
	})

	t.Run("returns fromFile=false when file doesn't exist", func(t *testing.T) {
		cfg := &Config{
			CalibrationFile: "/nonexistent/path/calibration.json",
		}

		_, fromFile := cfg.LoadCalibration(logger)

		if fromFile {
			t.Error("Expected fromFile=false when file doesn't exist")
		}
	})

	t.Run("resolves relative paths against the data dir", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv(DataDirEnv, tmpDir)

		cfg := &Config{CalibrationFile: "arm.json"}
		require.NoError(t, cfg.SaveCalibration(testCalibration))
		assert.FileExists(t, filepath.Join(tmpDir, "arm.json"))

		cal, fromFile := cfg.LoadCalibration(logger)
		assert.True(t, fromFile)
		assert.Equal(t, testCalibration, cal)
	})
}

func TestLoadCalibrationFromFileRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed json", `{"joints": [`},
		{"too few joints", `{"joints": [{"joint": 1, "origin": 0, "span": 1}]}`},
		{"joint out of range", `{"joints": [
			{"joint": 0, "origin": 0, "span": 1}, {"joint": 2, "origin": 0, "span": 1},
			{"joint": 3, "origin": 0, "span": 1}, {"joint": 4, "origin": 0, "span": 1},
			{"joint": 5, "origin": 0, "span": 1}, {"joint": 6, "origin": 0, "span": 1}]}`},
		{"duplicate joint", `{"joints": [
			{"joint": 1, "origin": 0, "span": 1}, {"joint": 1, "origin": 0, "span": 1},
			{"joint": 3, "origin": 0, "span": 1}, {"joint": 4, "origin": 0, "span": 1},
			{"joint": 5, "origin": 0, "span": 1}, {"joint": 6, "origin": 0, "span": 1}]}`},
		{"zero span", `{"joints": [
			{"joint": 1, "origin": 0, "span": 1}, {"joint": 2, "origin": 0, "span": 0},
			{"joint": 3, "origin": 0, "span": 1}, {"joint": 4, "origin": 0, "span": 1},
			{"joint": 5, "origin": 0, "span": 1}, {"joint": 6, "origin": 0, "span": 1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cal.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := LoadCalibrationFromFile(path)
			assert.Error(t, err)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("fills defaults", func(t *testing.T) {
		cfg := &Config{}
		require.NoError(t, cfg.Validate("test"))

		assert.Equal(t, backend.DefaultAddress, cfg.Backend)
		assert.Equal(t, ForwardKinematics, cfg.Mode())
		assert.Equal(t, "Force_sensor", cfg.ForceSensor)
		assert.Equal(t, time.Second, cfg.ResetSettle)
		assert.Equal(t, 100*time.Millisecond, cfg.StepSettle)
		assert.Equal(t, SettleFixed, cfg.SettleMode)
		assert.Equal(t, DefaultMotionSignal, cfg.MotionSignal)
		assert.Equal(t, 30*time.Second, cfg.CalibrationTimeout)
		assert.Equal(t, ScaleShaper{Scale: 1, Bound: 1}, cfg.Shaper())

		_, ok := cfg.WorkspaceBounds()
		assert.False(t, ok)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		cfg := &Config{ControlMode: "fk", StepSettle: 5 * time.Millisecond, SettleMode: SettleAck}
		require.NoError(t, cfg.Validate("test"))

		assert.Equal(t, ForwardKinematics, cfg.Mode())
		assert.Equal(t, 5*time.Millisecond, cfg.StepSettle)
		assert.Equal(t, SettleAck, cfg.SettleMode)
	})

	invalid := []struct {
		name string
		cfg  Config
	}{
		{"unknown control mode", Config{ControlMode: "cartesian"}},
		{"unknown settle mode", Config{SettleMode: "sleep"}},
		{"negative settle", Config{StepSettle: -time.Second}},
		{"negative calibration timeout", Config{CalibrationTimeout: -time.Second}},
		{"short workspace", Config{Workspace: [][2]float64{{0, 1}}}},
		{"inverted workspace", Config{Workspace: [][2]float64{{0, 1}, {0, 1}, {1, 0}, {0, 1}, {0, 1}, {0, 1}}}},
		{"negative action bound", Config{ActionBound: -1}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			assert.Error(t, cfg.Validate("test"))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "env.yaml")
		content := `
backend: tcp://10.0.0.2:19999
control_mode: forward_kinematics
step_settle: 250ms
settle_mode: ack
workspace:
  - [-0.3, 0.3]
  - [-0.3, 0.3]
  - [0, 0.5]
  - [-180, 180]
  - [-90, 90]
  - [-180, 180]
target: [0.1, 0.2, 0.3]
tolerance: 0.02
seed: 42
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "tcp://10.0.0.2:19999", cfg.Backend)
		assert.Equal(t, ForwardKinematics, cfg.Mode())
		assert.Equal(t, 250*time.Millisecond, cfg.StepSettle)
		assert.Equal(t, time.Second, cfg.ResetSettle)
		assert.Equal(t, uint64(42), cfg.Seed)

		bounds, ok := cfg.WorkspaceBounds()
		require.True(t, ok)
		assert.Equal(t, JointBoundary{Min: 0, Max: 0.5}, bounds[2])

		evaluator := cfg.Evaluator()
		assert.Equal(t, 0.2, evaluator.Target.Y)
		assert.Equal(t, 0.02, evaluator.Tolerance)
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "env.json")
		content := `{"control_mode": "ik", "force_sensor": "Wrist_sensor", "action_scale": 0.5}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, InverseKinematics, cfg.Mode())
		assert.Equal(t, "Wrist_sensor", cfg.ForceSensor)
		assert.Equal(t, 0.5, cfg.Shaper().Scale)
	})

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "env.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"control_mode": "joint"}`), 0o644))

		_, err := LoadConfig(path)
		assert.Error(t, err)

		_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
