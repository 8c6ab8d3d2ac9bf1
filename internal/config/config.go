package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"

	"github.com/BurntSushi/toml"
)

// AppConfig represents the complete application configuration
type AppConfig struct {
	// Capture run settings
	Capture CaptureConfig `toml:"capture"`

	// Report output settings
	Report ReportConfig `toml:"report"`

	// Self-telemetry HTTP server configuration
	Server ServerConfig `toml:"server"`

	// Collector configurations
	Collectors CollectorConfig `toml:"collectors"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`
}

// CaptureConfig contains the run-level sampling settings
type CaptureConfig struct {
	// Capture duration in seconds (default: 30)
	DurationSeconds int `toml:"duration_seconds"`

	// Sampling interval in seconds (default: 3)
	IntervalSeconds int `toml:"interval_seconds"`

	// Platform we're running on: "amlogic", "realtek" or "broadcom" (default: "amlogic")
	Platform string `toml:"platform"`

	// Niceness added to the process at startup so sampling doesn't get in
	// the way of the workload being measured (default: 10)
	Nice int `toml:"nice"`
}

// ReportConfig contains report output settings
type ReportConfig struct {
	// Directory to save the report in (default: "./MemCaptureReport")
	OutputDir string `toml:"output_dir"`

	// Save report.json in addition to the HTML report (default: false)
	JSON bool `toml:"json"`

	// Path to the JSON group-mapping file; empty disables group
	// classification (default: "")
	GroupsFile string `toml:"groups_file"`
}

// ServerConfig contains the optional pipeline self-telemetry endpoint.
// This exposes metrics about the capture pipeline itself (pass counts and
// durations), never the captured memory statistics.
type ServerConfig struct {
	// Enable the HTTP endpoint (default: false)
	Enabled bool `toml:"enabled"`

	// Listen address (default: "localhost:9189")
	ListenAddress string `toml:"listen_address"`

	// Metrics endpoint path (default: "/metrics")
	MetricsPath string `toml:"metrics_path"`

	// Enable pprof endpoint for debugging (default: false)
	PprofEnabled bool `toml:"pprof_enabled"`
}

// ProcessConfig contains settings for the per-process memory collector.
type ProcessConfig struct {
	// Enable per-process memory sampling (default: true)
	Enabled bool `toml:"enabled"`
}

// MemoryConfig contains settings for the system memory collector.
type MemoryConfig struct {
	// Enable system-wide memory sampling (default: true)
	Enabled bool `toml:"enabled"`

	// Enable per-process GPU allocation sampling (default: true, requires
	// platform support)
	EnableGPU bool `toml:"enable_gpu"`

	// Enable DDR bandwidth sampling (default: true, Amlogic only)
	EnableBandwidth bool `toml:"enable_bandwidth"`

	// Enable per-container memory sampling (default: true)
	EnableContainers bool `toml:"enable_containers"`
}

// CollectorConfig defines which collectors are enabled and their settings
type CollectorConfig struct {
	// Process collector configuration
	Process ProcessConfig `toml:"process"`

	// Memory collector configuration
	Memory MemoryConfig `toml:"memory"`
}

// LoggingConfig contains the complete logging configuration
type LoggingConfig struct {
	// Default logging settings applied to all loggers
	Defaults LogDefaults `toml:"defaults"`

	// Output configurations - can have multiple outputs
	Outputs []LogOutput `toml:"outputs"`
}

// LogDefaults contains default logger settings
type LogDefaults struct {
	// Log level (default: "info")
	Level string `toml:"level"`

	// Include caller information (default: 0)
	Caller int `toml:"caller"`

	// Time field name (default: "time")
	TimeField string `toml:"time_field"`

	// Time format (default: "" = RFC3339 with milliseconds)
	TimeFormat string `toml:"time_format"`

	// Time zone (default: "Local")
	TimeLocation string `toml:"time_location"`
}

// LogOutput represents a single output configuration
type LogOutput struct {
	// Output type: "console", "file", "syslog"
	Type string `toml:"type"`

	// Enable this output (default: true)
	Enabled bool `toml:"enabled"`

	// Configuration specific to the output type
	Console *ConsoleConfig `toml:"console,omitempty"`
	File    *FileConfig    `toml:"file,omitempty"`
	Syslog  *SyslogConfig  `toml:"syslog,omitempty"`
}

// ConsoleConfig contains console/terminal output settings
type ConsoleConfig struct {
	// Use fast JSON output (default: false)
	FastIO bool `toml:"fast_io"`

	// Output format when fast_io=false (default: "auto")
	Format string `toml:"format"`

	// Enable colored output (default: true)
	ColorOutput bool `toml:"color_output"`

	// Quote string values (default: true)
	QuoteString bool `toml:"quote_string"`

	// Output destination (default: "stderr")
	Writer string `toml:"writer"`

	// Use asynchronous writing (default: false)
	Async bool `toml:"async"`
}

// FileConfig contains file output settings
type FileConfig struct {
	// Log file path (required)
	Filename string `toml:"filename"`

	// Maximum file size in megabytes (default: 10)
	MaxSize int64 `toml:"max_size"`

	// Maximum number of old log files to keep (default: 7)
	MaxBackups int `toml:"max_backups"`

	// Time format for rotated filenames (default: "2006-01-02T15-04-05")
	TimeFormat string `toml:"time_format"`

	// Use local time for rotation timestamps (default: true)
	LocalTime bool `toml:"local_time"`

	// Include hostname in filename (default: false)
	HostName bool `toml:"host_name"`

	// Include process ID in filename (default: false)
	ProcessID bool `toml:"process_id"`

	// Create directory if it doesn't exist (default: true)
	EnsureFolder bool `toml:"ensure_folder"`

	// Use asynchronous writing (default: true)
	Async bool `toml:"async"`
}

// SyslogConfig contains syslog output settings
type SyslogConfig struct {
	// Network protocol (default: "udp")
	Network string `toml:"network"`

	// Syslog server address (default: "localhost:514")
	Address string `toml:"address"`

	// Hostname for syslog messages (default: system hostname)
	Hostname string `toml:"hostname"`

	// Syslog tag/program name (default: "memcapture")
	Tag string `toml:"tag"`

	// Message prefix marker (default: "@cee:")
	Marker string `toml:"marker"`

	// Use asynchronous writing (default: true)
	Async bool `toml:"async"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Capture: CaptureConfig{
			DurationSeconds: 30,
			IntervalSeconds: 3,
			Platform:        "amlogic",
			Nice:            10,
		},
		Report: ReportConfig{
			OutputDir:  "./MemCaptureReport",
			JSON:       false,
			GroupsFile: "",
		},
		Server: ServerConfig{
			Enabled:       false,
			ListenAddress: "localhost:9189",
			MetricsPath:   "/metrics",
			PprofEnabled:  false,
		},
		Collectors: CollectorConfig{
			Process: ProcessConfig{
				Enabled: true,
			},
			Memory: MemoryConfig{
				Enabled:          true,
				EnableGPU:        true,
				EnableBandwidth:  true,
				EnableContainers: true,
			},
		},
		Logging: LoggingConfig{
			Defaults: LogDefaults{
				Level:        "info",
				Caller:       0,
				TimeField:    "time",
				TimeFormat:   "",
				TimeLocation: "Local",
			},
			Outputs: []LogOutput{
				{
					Type:    "console",
					Enabled: true,
					Console: &ConsoleConfig{
						FastIO:      false,
						Format:      "auto",
						ColorOutput: true,
						QuoteString: true,
						Writer:      "stderr",
						Async:       false,
					},
				},
				{
					Type:    "file",
					Enabled: false,
					File: &FileConfig{
						Filename:     "logs/memcapture.log",
						MaxSize:      10, // 10MB
						MaxBackups:   7,
						TimeFormat:   "2006-01-02T15-04-05",
						LocalTime:    true,
						HostName:     false,
						ProcessID:    false,
						EnsureFolder: true,
						Async:        true,
					},
				},
				{
					Type:    "syslog",
					Enabled: false,
					Syslog: &SyslogConfig{
						Network:  "udp",
						Address:  "localhost:514",
						Tag:      "memcapture",
						Hostname: "", // Uses system hostname by default
						Marker:   "@cee:",
						Async:    true, // Syslog is typically asynchronous
					},
				},
			},
		},
	}
}

// LoadConfig loads configuration from a TOML file, falling back to defaults
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	// If no config file specified, use defaults
	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		return config, fmt.Errorf("config file not found: %s", configPath)
	}

	// Parse TOML file
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	return config, nil
}

// SaveConfig saves the configuration to a TOML file
func SaveConfig(configPath string, config *AppConfig) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Create file
	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file %s: %w", configPath, err)
	}
	defer file.Close()

	// Encode to TOML
	if err := toml.NewEncoder(file).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// GenerateExampleConfig generates a TOML configuration file with default values
func GenerateExampleConfig(outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	// Write header comments
	header := `# MemCapture Example Configuration
# This file is auto-generated and serves as an example configuration.
# Copy this file to create your own configuration and modify as needed.
#
# Format: TOML (Tom's Obvious, Minimal Language)

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Create default config and encode to TOML
	config := DefaultConfig()
	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks the configuration for errors
func (c *AppConfig) Validate() error {
	if c.Capture.DurationSeconds <= 0 {
		return fmt.Errorf("capture.duration_seconds must be > 0")
	}
	if c.Capture.IntervalSeconds <= 0 {
		return fmt.Errorf("capture.interval_seconds must be > 0")
	}

	switch c.Capture.Platform {
	case "amlogic", "realtek", "broadcom":
	default:
		return fmt.Errorf("capture.platform must be one of amlogic, realtek, broadcom (got %q)", c.Capture.Platform)
	}

	if c.Report.OutputDir == "" {
		return fmt.Errorf("report.output_dir cannot be empty")
	}

	// Validate server config when the endpoint is enabled
	if c.Server.Enabled {
		if c.Server.ListenAddress == "" {
			return fmt.Errorf("server.listen_address cannot be empty")
		}
		if c.Server.MetricsPath == "" {
			return fmt.Errorf("server.metrics_path cannot be empty")
		}
	}

	// Validate that at least one collector is enabled using reflection.
	// This automatically handles any new collectors added to CollectorConfig.
	v := reflect.ValueOf(c.Collectors)
	oneCollectorEnabled := false
	for i := 0; i < v.NumField(); i++ {
		// Get the 'Enabled' field from each collector's config struct
		enabledField := v.Field(i).FieldByName("Enabled")
		if enabledField.IsValid() && enabledField.Kind() == reflect.Bool {
			if enabledField.Bool() {
				oneCollectorEnabled = true
				break
			}
		}
	}
	if !oneCollectorEnabled {
		return fmt.Errorf("at least one collector must be enabled in the [collectors] section")
	}

	// Validate that at least one output is enabled
	hasEnabledOutput := false
	for _, output := range c.Logging.Outputs {
		if output.Enabled {
			hasEnabledOutput = true
			break
		}
	}
	if !hasEnabledOutput {
		return fmt.Errorf("at least one logging output must be enabled")
	}

	return nil
}
