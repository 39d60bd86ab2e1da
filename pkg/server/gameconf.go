package server

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/crystal-mush/arxscript/pkg/script"
)

// GameConf holds the simulation host configuration.
type GameConf struct {
	// --- Identity ---
	Name string `yaml:"name"`
	Path string `yaml:"-"` // File the config was loaded from

	// --- World ---
	Level       string `yaml:"level"`        // Level YAML to populate the world from
	ScriptDir   string `yaml:"script_dir"`   // Directory of .asl scripts
	SavePath    string `yaml:"save_path"`    // bbolt save game
	JournalPath string `yaml:"journal_path"` // SQLite diagnostics journal (empty = disabled)

	// --- Clock ---
	TickMS          int     `yaml:"tick_ms"`          // Simulation step in milliseconds (default 50)
	MainEveryMS     int     `yaml:"main_every_ms"`    // Interval of the main event (default 1000)
	SlowTickMS      int     `yaml:"slow_tick_ms"`     // Ticks slower than this are logged (default 5000)
	AutoSaveMinutes int     `yaml:"autosave_minutes"` // 0 = disabled
	ActiveRadius    float64 `yaml:"active_radius"`    // Entities farther from the player are idle, 0 = all active
	WatchScripts    bool    `yaml:"watch_scripts"`    // Reload .asl files when they change

	// --- Script limits ---
	MaxGlobals    int `yaml:"max_globals"`
	MaxLocals     int `yaml:"max_locals"`
	MaxTimers     int `yaml:"max_timers"`
	MaxCallDepth  int `yaml:"max_call_depth"`
	MaxEventDepth int `yaml:"max_event_depth"`
	MaxPassSteps  int `yaml:"max_pass_steps"`

	// --- Event queue ---
	QueuePerEntity int `yaml:"queue_per_entity"` // Max queued events per entity (default 256)

	// --- Journal ---
	JournalRetention int `yaml:"journal_retention"` // Seconds to keep journal rows (default 86400)
	JournalTimeout   int `yaml:"journal_timeout"`   // SQLite busy timeout in seconds (default 5)

	// --- Archive ---
	ArchiveDir      string `yaml:"archive_dir"`      // Directory for backup archives (default "archives")
	ArchiveInterval int    `yaml:"archive_interval"` // Minutes between auto-archives, 0 = disabled
	ArchiveRetain   int    `yaml:"archive_retain"`   // Archives to keep, 0 = all

	// --- Web/Security ---
	WebEnabled          bool     `yaml:"web_enabled"`           // Enable the debug console
	WebPort             int      `yaml:"web_port"`              // Console port (default 8443)
	WebHost             string   `yaml:"web_host"`              // Bind address (empty = all interfaces)
	WebDomain           string   `yaml:"web_domain"`            // Let's Encrypt domain (empty = self-signed)
	WebCORSOrigins      []string `yaml:"web_cors_origins"`      // Allowed CORS origins
	WebRateLimit        int      `yaml:"web_rate_limit"`        // Requests per minute per IP (default 60)
	ConsoleUser         string   `yaml:"console_user"`          // Console login name (default "admin")
	ConsolePasswordHash string   `yaml:"console_password_hash"` // bcrypt hash, empty = login disabled
	JWTSecret           string   `yaml:"jwt_secret"`            // JWT signing secret (auto-generated if empty)
	JWTExpiry           int      `yaml:"jwt_expiry"`            // JWT expiry in seconds (default 86400)
	TLSCert             string   `yaml:"tls_cert"`
	TLSKey              string   `yaml:"tls_key"`
	CertDir             string   `yaml:"cert_dir"` // Directory for generated certs (default "certs")
	Cleartext           bool     `yaml:"cleartext"` // Serve plain HTTP instead of TLS
}

// DefaultGameConf returns a GameConf with the stock settings.
func DefaultGameConf() *GameConf {
	def := script.DefaultConfig()
	return &GameConf{
		Name:             "arxscript",
		ScriptDir:        "scripts",
		SavePath:         "data/save.db",
		TickMS:           50,
		MainEveryMS:      1000,
		SlowTickMS:       5000,
		AutoSaveMinutes:  10,
		MaxGlobals:       def.MaxGlobals,
		MaxLocals:        def.MaxLocals,
		MaxTimers:        def.MaxTimers,
		MaxCallDepth:     def.MaxCallDepth,
		MaxEventDepth:    def.MaxEventDepth,
		MaxPassSteps:     def.MaxPassSteps,
		QueuePerEntity:   256,
		JournalRetention: 86400,
		JournalTimeout:   5,
		ArchiveDir:       "archives",
		ArchiveRetain:    10,
		WebPort:          8443,
		WebRateLimit:     60,
		ConsoleUser:      "admin",
		JWTExpiry:        86400,
	}
}

// LoadGameConf reads a YAML config file over the defaults. Relative paths
// are resolved against the directory of the file.
func LoadGameConf(path string) (*GameConf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	gc := DefaultGameConf()
	if err := yaml.Unmarshal(data, gc); err != nil {
		return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
	}
	if err := gc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	gc.Path = path
	baseDir := filepath.Dir(path)
	for _, p := range []*string{&gc.Level, &gc.ScriptDir, &gc.SavePath, &gc.JournalPath, &gc.ArchiveDir, &gc.TLSCert, &gc.TLSKey, &gc.CertDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
	return gc, nil
}

// Validate rejects settings the host cannot run with.
func (gc *GameConf) Validate() error {
	if gc.TickMS <= 0 {
		return fmt.Errorf("tick_ms must be positive, got %d", gc.TickMS)
	}
	if gc.MainEveryMS < gc.TickMS {
		return fmt.Errorf("main_every_ms (%d) is shorter than tick_ms (%d)", gc.MainEveryMS, gc.TickMS)
	}
	limits := map[string]int{
		"max_globals":     gc.MaxGlobals,
		"max_locals":      gc.MaxLocals,
		"max_timers":      gc.MaxTimers,
		"max_call_depth":  gc.MaxCallDepth,
		"max_event_depth": gc.MaxEventDepth,
	}
	for name, v := range limits {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if gc.MaxPassSteps < 0 {
		return fmt.Errorf("max_pass_steps must not be negative")
	}
	if gc.ArchiveInterval < 0 || gc.ArchiveRetain < 0 {
		return fmt.Errorf("archive_interval and archive_retain must not be negative")
	}
	return nil
}

// ScriptConfig returns the runtime limits.
func (gc *GameConf) ScriptConfig() script.Config {
	return script.Config{
		MaxGlobals:    gc.MaxGlobals,
		MaxLocals:     gc.MaxLocals,
		MaxTimers:     gc.MaxTimers,
		MaxCallDepth:  gc.MaxCallDepth,
		MaxEventDepth: gc.MaxEventDepth,
		MaxPassSteps:  gc.MaxPassSteps,
	}
}
