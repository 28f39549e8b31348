package bert

import "github.com/example/go-kreyol-tts/internal/config"

// ErrUnsupportedDevice is returned for devices without a wired execution provider.
var ErrUnsupportedDevice = config.ErrUnsupportedDevice

// ResolveDevice maps a requested device to the one inference runs on.
// "" and "auto" resolve to "cpu"; anything but cpu is rejected.
func ResolveDevice(requested string) (string, error) {
	return config.NormalizeDevice(requested)
}
