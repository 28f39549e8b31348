package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
)

// ErrUnsupportedDevice is returned for devices without a wired execution provider.
var ErrUnsupportedDevice = errors.New("unsupported inference device")

// NormalizeDevice resolves a requested device name. Empty and "auto" pick
// the CPU execution provider, the only one wired.
func NormalizeDevice(raw string) (string, error) {
	device := strings.ToLower(strings.TrimSpace(raw))
	switch device {
	case "", DeviceAuto, DeviceCPU:
		return DeviceCPU, nil
	default:
		return "", fmt.Errorf("%w %q (expected %s|%s)", ErrUnsupportedDevice, raw, DeviceAuto, DeviceCPU)
	}
}
