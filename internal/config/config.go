package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Manager loads configuration from layered sources and holds the result.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{koanfInstance: koanf.New(".")}
}

// DefaultConfig returns the configuration used when no source overrides it.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{Path: "dhcpfp.sqlite"},
		Output:   OutputConfig{Format: "table"},
	}
}

// DefaultConfigAsMap flattens DefaultConfig for koanf's confmap provider.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":          def.Log.Level,
		"log.format":         def.Log.Format,
		"log.file":           def.Log.File,
		"signatures.path":    def.Signatures.Path,
		"database.path":      def.Database.Path,
		"output.format":      def.Output.Format,
		"parser.client_only": def.Parser.ClientOnly,
	}
}

// Load applies sources in priority order, unmarshals the merged values and
// validates them. The previous configuration is kept when Load fails.
func (m *Manager) Load(sources ...Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ordered := append([]Source(nil), sources...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	k := koanf.New(".")
	for _, src := range ordered {
		if err := src.Load(k); err != nil {
			return fmt.Errorf("config source %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := k.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	newCfg.Log.Level = strings.ToLower(newCfg.Log.Level)
	newCfg.Log.Format = strings.ToLower(newCfg.Log.Format)
	newCfg.Output.Format = strings.ToLower(newCfg.Output.Format)

	if err := Validate(newCfg); err != nil {
		return err
	}

	m.koanfInstance = k
	m.currentConfig = newCfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// Koanf exposes the merged key space, e.g. for "config show" style output.
func (m *Manager) Koanf() *koanf.Koanf {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.koanfInstance
}

// ValidationError reports a configuration key holding an unacceptable value.
type ValidationError struct {
	Key   string
	Value interface{}
	Rule  string
}

func (e *ValidationError) Error() string {
	if e.Rule == "required" {
		return fmt.Sprintf("config: %s is required", e.Key)
	}
	return fmt.Sprintf("config: %s=%v violates %s", e.Key, e.Value, e.Rule)
}

// Validate checks cfg against its validate tags. The first violation is
// returned as a *ValidationError keyed by its dotted config key.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return &ValidationError{
		Key:   strings.TrimPrefix(fe.Namespace(), "Config."),
		Value: fe.Value(),
		Rule:  rule,
	}
}
