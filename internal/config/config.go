// Package config loads session configuration from a .env file at the
// project root, overridden by environment variables, into the session
// record a motion-host run is built from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"motionstream/internal/motion"
)

// TransportKind selects which controller channel implementation a session
// wires up; a session has exactly one transport kind, chosen by config
// rather than auto-probed.
type TransportKind string

const (
	TransportUSB  TransportKind = "usb"
	TransportPipe TransportKind = "pipe"
)

// SessionConfig is the full record a motion-host session is built from.
type SessionConfig struct {
	SessionID string

	TransportKind TransportKind
	DevicePath    string // serial/pipe device path
	USBVendorID   uint16
	USBProductID  uint16

	Motion motion.Config

	HTTPAddr string

	// TraceIface is the network interface the backpressure tracer attaches
	// to. Empty disables tracing.
	TraceIface string
}

var (
	cached *SessionConfig
	loaded bool
)

// Load reads .env (if present) from the project root, then applies
// environment variable overrides on top.
func Load() (*SessionConfig, error) {
	if cached != nil && loaded {
		return cached, nil
	}

	cfg := defaultSessionConfig()

	projectRoot := findProjectRoot()
	envPath := filepath.Join(projectRoot, ".env")
	if data, err := os.ReadFile(envPath); err == nil {
		parseEnvFile(string(data), cfg)
	}

	applyEnvOverrides(cfg)

	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	cached = cfg
	loaded = true
	return cfg, nil
}

func defaultSessionConfig() *SessionConfig {
	mc := motion.DefaultConfig()
	mc.MaxR2 = 10000
	mc.MinZ = 0
	mc.MaxZ = 300
	return &SessionConfig{
		TransportKind: TransportPipe,
		Motion:        mc,
		HTTPAddr:      ":8080",
	}
}

func parseEnvFile(content string, cfg *SessionConfig) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		applyKV(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), cfg)
	}
}

func applyEnvOverrides(cfg *SessionConfig) {
	for _, key := range []string{
		"SESSION_ID", "TRANSPORT_KIND", "DEVICE_PATH", "USB_VENDOR_ID",
		"USB_PRODUCT_ID", "MAX_R2", "MIN_Z", "MAX_Z", "MAX_EXEC_TIME",
		"INITIAL_FEEDRATE", "INITIAL_TOOL", "HTTP_ADDR", "TRACE_IFACE",
	} {
		if v := os.Getenv(key); v != "" {
			applyKV(key, v, cfg)
		}
	}
}

func applyKV(key, value string, cfg *SessionConfig) {
	switch key {
	case "SESSION_ID":
		cfg.SessionID = value
	case "TRANSPORT_KIND":
		cfg.TransportKind = TransportKind(value)
	case "DEVICE_PATH":
		cfg.DevicePath = value
	case "USB_VENDOR_ID":
		cfg.USBVendorID = parseHexUint16(value)
	case "USB_PRODUCT_ID":
		cfg.USBProductID = parseHexUint16(value)
	case "MAX_R2":
		cfg.Motion.MaxR2 = parseFloatOr(value, cfg.Motion.MaxR2)
	case "MIN_Z":
		cfg.Motion.MinZ = parseFloatOr(value, cfg.Motion.MinZ)
	case "MAX_Z":
		cfg.Motion.MaxZ = parseFloatOr(value, cfg.Motion.MaxZ)
	case "MAX_EXEC_TIME":
		cfg.Motion.MaxExecTime = parseFloatOr(value, cfg.Motion.MaxExecTime)
	case "INITIAL_FEEDRATE":
		cfg.Motion.InitialFeedrate = int(parseFloatOr(value, float64(cfg.Motion.InitialFeedrate)))
	case "INITIAL_TOOL":
		cfg.Motion.InitialTool = int(parseFloatOr(value, float64(cfg.Motion.InitialTool)))
	case "HTTP_ADDR":
		cfg.HTTPAddr = value
	case "TRACE_IFACE":
		cfg.TraceIface = value
	}
}

func parseFloatOr(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseHexUint16(s string) uint16 {
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}

func findProjectRoot() string {
	cwd, _ := os.Getwd()
	if _, err := os.Stat(filepath.Join(cwd, ".env")); err == nil {
		return cwd
	}
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return cwd
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return cwd
		}
		cwd = parent
	}
}

// MustLoad panics with a descriptive message rather than returning a
// partially configured session, for CLI entry points that can't proceed
// without one.
func MustLoad() *SessionConfig {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	if cfg.TransportKind == TransportUSB && cfg.USBVendorID == 0 {
		panic("config: USB_VENDOR_ID must be set when TRANSPORT_KIND=usb")
	}
	return cfg
}
