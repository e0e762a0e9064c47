// Package main runs the arm environment from the command line.
package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"

	"armenv"
	"armenv/backend"
	"armenv/backend/fake"
)

// Arguments for the command.
type Arguments struct {
	Command  string `flag:"0,required,usage=run, calibrate, discover or serve"`
	Config   string `flag:"config,usage=JSON or YAML config file"`
	Sim      bool   `flag:"sim,usage=use an in-process simulated backend"`
	Episodes int    `flag:"episodes,default=1,usage=episodes to run"`
	MaxSteps int    `flag:"max-steps,default=200,usage=step limit per episode"`
	Listen   string `flag:"listen,default=127.0.0.1:19999,usage=address serve listens on"`
	Baud     int    `flag:"baud,default=115200,usage=baud rate used by discover"`
	Debug    bool   `flag:"debug"`
}

func main() {
	utils.ContextualMain(mainWithArgs, logging.NewLogger("armenv"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Debug {
		logger.SetLevel(logging.DEBUG)
	}

	cfg, err := loadConfig(argsParsed.Config)
	if err != nil {
		return err
	}
	logFile := armenv.AttachLogFile(logger, cfg.LogFile)
	defer logFile.Close()

	registry := newRegistry(argsParsed.Sim, logger)
	switch argsParsed.Command {
	case "run":
		return runEpisodes(ctx, registry, cfg, argsParsed, logger)
	case "calibrate":
		return calibrate(ctx, registry, cfg, logger)
	case "discover":
		return discover(ctx, argsParsed, logger)
	case "serve":
		return serve(ctx, argsParsed, logger)
	default:
		return errors.Errorf("unknown command %q", argsParsed.Command)
	}
}

func loadConfig(path string) (*armenv.Config, error) {
	if path != "" {
		return armenv.LoadConfig(path)
	}
	cfg := &armenv.Config{}
	if err := cfg.Validate("defaults"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newRegistry returns the registry every command opens its backend sessions through.
func newRegistry(sim bool, logger logging.Logger) *backend.Registry {
	backendLogger := logger.Sublogger("backend")
	return backend.NewRegistry(func(ctx context.Context, address string) (backend.Client, error) {
		if sim {
			backendLogger.Info("Using simulated backend")
			return fake.New(), nil
		}
		client, err := backend.Dial(ctx, address, backendLogger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}, backendLogger)
}

// runEpisodes drives random episodes. Failing to reach the backend is fatal.
func runEpisodes(ctx context.Context, registry *backend.Registry, cfg *armenv.Config, args Arguments, logger logging.Logger) error {
	client, err := registry.Acquire(ctx, cfg.Backend)
	if err != nil {
		return err
	}

	env, err := armenv.New(ctx, client, cfg, cfg.Shaper(), cfg.Evaluator(), logger)
	if err != nil {
		client.Close()
		return err
	}
	defer env.Close()

	for episode := 1; episode <= args.Episodes; episode++ {
		if _, err := env.Reset(ctx); err != nil {
			return errors.Wrapf(err, "episode %d", episode)
		}

		var total float64
		steps := 0
		for steps < args.MaxSteps {
			obs, reward, done, err := env.Step(ctx, env.SampleAction())
			if err != nil {
				return errors.Wrapf(err, "episode %d step %d", episode, steps+1)
			}
			steps++
			total += reward
			logger.Debugf("step %d: position %v force %v reward %.4f", steps, obs.Position(), obs.Force(), reward)
			if done {
				break
			}
		}
		logger.Infof("Episode %d finished after %d steps, return %.4f", episode, steps, total)
	}
	return nil
}

func calibrate(ctx context.Context, registry *backend.Registry, cfg *armenv.Config, logger logging.Logger) error {
	client, err := registry.Acquire(ctx, cfg.Backend)
	if err != nil {
		return err
	}
	defer client.Close()

	cal, err := armenv.NewCalibrator(client, cfg.CalibrationTimeout, logger).Calibrate(ctx)
	if err != nil {
		return err
	}
	if cfg.CalibrationFile == "" {
		logger.Warn("No calibration_file configured, calibration not saved")
		return nil
	}
	if err := cfg.SaveCalibration(cal); err != nil {
		return err
	}
	logger.Infof("Saved calibration to %s", cfg.CalibrationFile)
	return nil
}

func discover(ctx context.Context, args Arguments, logger logging.Logger) error {
	found := backend.DiscoverSerial(ctx, args.Baud, os.Getenv(armenv.DataDirEnv), logger)
	if len(found) == 0 {
		logger.Info("No backends found")
		return nil
	}
	for _, d := range found {
		if d.CalibrationFile != "" {
			logger.Infof("%s (calibration %s)", d.Address, d.CalibrationFile)
		} else {
			logger.Info(d.Address)
		}
	}
	return nil
}

func serve(ctx context.Context, args Arguments, logger logging.Logger) error {
	return backend.ListenAndServe(ctx, args.Listen, fake.New(), logger)
}
