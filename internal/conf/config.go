package conf

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/wavescope/wavescope/internal/errors"
	"github.com/wavescope/wavescope/internal/logger"
)

const componentConf = "conf"

// ConfigName is the base name of the configuration file.
const ConfigName = "wavescope"

// EnvPrefix prefixes environment overrides, e.g. WAVESCOPE_SAMPLERATE.
const EnvPrefix = "WAVESCOPE"

// CaptureSettings sizes the stream and tunes the capture loop.
type CaptureSettings struct {
	BufferSeconds float64       `yaml:"buffer_seconds" mapstructure:"buffer_seconds"` // ring history length
	SummaryStep   int           `yaml:"summary_step" mapstructure:"summary_step"`     // frames per waveform summary entry
	IdleSleep     time.Duration `yaml:"idle_sleep" mapstructure:"idle_sleep"`         // sleep when no source has data
	Mapped        bool          `yaml:"mapped" mapstructure:"mapped"`                 // try the double-mapped ring
}

// ChannelSettings is one entry of player.channel.
type ChannelSettings struct {
	Enabled bool    `yaml:"enabled" mapstructure:"enabled"`
	Level   float64 `yaml:"level" mapstructure:"level"` // dB
	Pan     float64 `yaml:"pan" mapstructure:"pan"`     // -1..1
}

// PlayerSettings is the persisted playback configuration.
type PlayerSettings struct {
	MasterGain float64                    `yaml:"master_gain" mapstructure:"master_gain"` // dB
	Shift      float64                    `yaml:"shift" mapstructure:"shift"`             // Hz
	Pitch      float64                    `yaml:"pitch" mapstructure:"pitch"`
	Stretch    float64                    `yaml:"stretch" mapstructure:"stretch"`
	FilterHP   float64                    `yaml:"filter_hp" mapstructure:"filter_hp"` // Hz, 0 disables
	FilterLP   float64                    `yaml:"filter_lp" mapstructure:"filter_lp"` // Hz, 0 disables
	Channel    map[string]ChannelSettings `yaml:"channel,omitempty" mapstructure:"channel"`
}

// OutputSettings selects the playback device backend.
type OutputSettings struct {
	Backend  string `yaml:"backend" mapstructure:"backend"` // malgo, oto or none
	BufferMs int    `yaml:"buffer_ms" mapstructure:"buffer_ms"`
}

// SpectrogramSettings configures the tile worker pool and the waterfall.
type SpectrogramSettings struct {
	FFTSize      int           `yaml:"fft_size" mapstructure:"fft_size"`
	Hop          int           `yaml:"hop" mapstructure:"hop"` // frames between columns
	Width        int           `yaml:"width" mapstructure:"width"`
	Height       int           `yaml:"height" mapstructure:"height"`
	Workers      int           `yaml:"workers" mapstructure:"workers"` // 0 uses every logical core
	Approximate  bool          `yaml:"approximate" mapstructure:"approximate"`
	AutoGain     bool          `yaml:"autogain" mapstructure:"autogain"`
	ApertureFrom float64       `yaml:"aperture_from" mapstructure:"aperture_from"` // dB, used without autogain
	ApertureTo   float64       `yaml:"aperture_to" mapstructure:"aperture_to"`
	Interval     time.Duration `yaml:"interval" mapstructure:"interval"`
}

// UISettings controls the headless UI loop.
type UISettings struct {
	SnapshotPath     string        `yaml:"snapshot_path" mapstructure:"snapshot_path"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval" mapstructure:"snapshot_interval"`
}

// MetricsSettings controls the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Listen  string `yaml:"listen" mapstructure:"listen"`
}

// TelemetrySettings controls Sentry error reporting.
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
}

// Settings contains all configuration options for wavescope.
type Settings struct {
	SampleRate  int                  `yaml:"samplerate" mapstructure:"samplerate"`
	Sources     []string             `yaml:"sources" mapstructure:"sources"` // source descriptors
	Capture     CaptureSettings      `yaml:"capture" mapstructure:"capture"`
	Player      PlayerSettings       `yaml:"player" mapstructure:"player"`
	Output      OutputSettings       `yaml:"output" mapstructure:"output"`
	Spectrogram SpectrogramSettings  `yaml:"spectrogram" mapstructure:"spectrogram"`
	UI          UISettings           `yaml:"ui" mapstructure:"ui"`
	Metrics     MetricsSettings      `yaml:"metrics" mapstructure:"metrics"`
	Telemetry   TelemetrySettings    `yaml:"telemetry" mapstructure:"telemetry"`
	Logging     logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`

	v    *viper.Viper
	path string
}

// Node returns the key/value tree the settings were loaded from.
func (s *Settings) Node() Node { return s.v }

// Writer returns the tree components save their state into.
func (s *Settings) Writer() Writer { return s.v }

// ConfigFile returns the file the settings were read from, or "".
func (s *Settings) ConfigFile() string { return s.path }

// Load reads the configuration file (path, or the first wavescope.yaml found
// in the default search paths), environment variables and overrides, then
// validates the result. A missing file is not an error; defaults apply.
func Load(path string, overrides map[string]any) (*Settings, error) {
	v := viper.New()
	setDefaultConfig(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.New(err).
				Component(componentConf).
				Category(errors.CategoryConfiguration).
				Context("path", path).
				Build()
		}
		GetLogger().Debug("no config file found, using defaults")
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	settings := &Settings{v: v, path: v.ConfigFileUsed()}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component(componentConf).
			Category(errors.CategoryFileParsing).
			Context("path", settings.path).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// DefaultConfigPaths lists the directories searched for wavescope.yaml.
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "wavescope"))
	}
	return append(paths, "/etc/wavescope")
}

// Refresh re-reads the typed settings from the key/value tree, picking up
// values components wrote through Writer.
func (s *Settings) Refresh() error {
	if s.v == nil {
		return nil
	}
	path := s.path
	v := s.v
	if err := v.Unmarshal(s); err != nil {
		return errors.New(err).
			Component(componentConf).
			Category(errors.CategoryFileParsing).
			Build()
	}
	s.v, s.path = v, path
	return nil
}

// SaveYAMLConfig writes settings to configPath. The file is replaced
// atomically; comments and layout of an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return errors.New(err).
			Component(componentConf).
			Category(errors.CategoryFileParsing).
			Build()
	}

	fileErr := func(err error, op string) error {
		return errors.New(err).
			Component(componentConf).
			Category(errors.CategoryFileIO).
			Context("path", configPath).
			Context("operation", op).
			Build()
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fileErr(err, "mkdir")
	}

	tempFile, err := os.CreateTemp(dir, ConfigName+"-*.yaml")
	if err != nil {
		return fileErr(err, "create_temp")
	}
	tempFileName := tempFile.Name()
	// Ensure the temporary file is removed in case of any failure
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fileErr(err, "write")
	}
	if err := tempFile.Close(); err != nil {
		return fileErr(err, "close")
	}
	if err := os.Rename(tempFileName, configPath); err != nil {
		return fileErr(err, "rename")
	}

	GetLogger().Info("settings saved", logger.String("path", configPath))
	return nil
}
