package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial/enumerator"
	"go.viam.com/rdk/logging"
)

const pingTimeout = 500 * time.Millisecond

// Discovered describes a serial port with a backend answering on it.
type Discovered struct {
	Port            string
	Address         string
	CalibrationFile string
}

// DiscoverSerial scans serial ports for backends answering the signal protocol.
// dataDir is searched for a calibration file matching each port.
func DiscoverSerial(ctx context.Context, baudrate int, dataDir string, logger logging.Logger) []Discovered {
	allPorts := enumerateSerialPorts()
	logger.Debugf("Found %d total serial ports", len(allPorts))

	candidates := filterCandidatePorts(allPorts)
	logger.Debugf("Filtered to %d candidate ports", len(candidates))

	var found []Discovered
	for _, port := range candidates {
		address := fmt.Sprintf("serial://%s?baud=%d", port, baudrate)
		if !ping(ctx, address, logger) {
			logger.Debugf("No backend answered on %s", port)
			continue
		}
		logger.Infof("Discovered backend on %s", port)
		found = append(found, Discovered{
			Port:            port,
			Address:         address,
			CalibrationFile: findCalibrationFile(dataDir, extractPortSuffix(port), logger),
		})
	}
	return found
}

// ping asks for the Apimode signal; a not-ready answer still proves a backend is there.
func ping(ctx context.Context, address string, logger logging.Logger) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	client, err := Dial(ctx, address, logger)
	if err != nil {
		logger.Debugf("Failed to open %s: %v", address, err)
		return false
	}
	defer client.Close()

	_, err = client.GetIntegerSignal(ctx, "Apimode")
	return err == nil || errors.Is(err, ErrNotReady)
}

// filterCandidatePorts filters serial ports by platform-specific naming patterns
func filterCandidatePorts(ports []string) []string {
	candidates := []string{}
	for _, port := range ports {
		if isCandidatePort(port) {
			candidates = append(candidates, port)
		}
	}
	return candidates
}

func isCandidatePort(port string) bool {
	// Linux: /dev/ttyUSB*, /dev/ttyACM*
	if strings.HasPrefix(port, "/dev/ttyUSB") || strings.HasPrefix(port, "/dev/ttyACM") {
		return true
	}
	// macOS
	for _, prefix := range []string{"/dev/tty.usbmodem", "/dev/tty.usbserial", "/dev/cu.usbmodem", "/dev/cu.usbserial"} {
		if strings.HasPrefix(port, prefix) {
			return true
		}
	}
	// Windows: COM*
	return strings.HasPrefix(port, "COM")
}

// extractPortSuffix extracts a friendly suffix from port path for naming
// /dev/ttyUSB0 -> "ttyUSB0"
// /dev/tty.usbmodem123 -> "usbmodem123"
func extractPortSuffix(portPath string) string {
	base := filepath.Base(portPath)
	if strings.HasPrefix(base, "tty.usb") {
		return strings.TrimPrefix(base, "tty.")
	}
	if strings.HasPrefix(base, "cu.usb") {
		return strings.TrimPrefix(base, "cu.")
	}
	return base
}

// findCalibrationFile returns the port-specific calibration file in dataDir, then the shared
// one, or "" when neither exists.
func findCalibrationFile(dataDir, portSuffix string, logger logging.Logger) string {
	if dataDir == "" {
		return ""
	}

	portSpecific := filepath.Join(dataDir, portSuffix+"_calibration.json")
	if _, err := os.Stat(portSpecific); err == nil {
		logger.Debugf("Found port-specific calibration file: %s", filepath.Base(portSpecific))
		return portSpecific
	}

	defaultFile := filepath.Join(dataDir, "armenv_calibration.json")
	if _, err := os.Stat(defaultFile); err == nil {
		logger.Debug("Found default calibration file: armenv_calibration.json")
		return defaultFile
	}

	logger.Debug("No calibration file found")
	return ""
}

func enumerateSerialPorts() []string {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return []string{}
	}

	var portPaths []string
	for _, port := range ports {
		portPaths = append(portPaths, port.Name)
	}
	return portPaths
}
