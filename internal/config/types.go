package config

type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Location LocationConfig `json:"location"`
	Provider ProviderConfig `json:"provider"`
	Engine   EngineConfig   `json:"engine"`
	Sinks    SinksConfig    `json:"sinks"`
	HTTP     HTTPConfig     `json:"http"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// LocationConfig holds the coordinates the timetable is fetched for.
// Anchor times come back already localized for these coordinates; the
// daemon never does timezone conversion itself.
type LocationConfig struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// Label overrides the provider's locality label when set.
	Label string `json:"label,omitempty"`
}

// ProviderConfig controls the timetable provider client and refresher.
//
// RefreshCron is a standard 5-field cron spec evaluated in local time.
// The default ("30 0 * * *") re-fetches shortly after midnight so a new
// day always gets a fresh table.
type ProviderConfig struct {
	BaseURL string `json:"base_url,omitempty"`
	// Method selects the provider's calculation method (aladhan "method"
	// query parameter). 2 = ISNA, matching the upstream default.
	Method      int    `json:"method,omitempty"`
	Timeout     string `json:"timeout,omitempty"` // Go duration string
	RefreshCron string `json:"refresh_cron,omitempty"`
}

// EngineConfig controls the tick loop and tolerance windows.
//
// All durations are Go duration strings (e.g. "1s", "10s").
// Every tolerance must be at least as large as the tick interval or
// events can fall between two ticks and never fire.
type EngineConfig struct {
	TickInterval string `json:"tick_interval,omitempty"` // default "1s"

	// AdhanTolerance is the ± window around an anchor instant. Default "2s".
	AdhanTolerance string `json:"adhan_tolerance,omitempty"`
	// WarnLead is how far before the anchor the pre-warning lands. Default "5m".
	WarnLead string `json:"warn_lead,omitempty"`
	// WarnWindow is the one-sided window after the warning instant in which
	// the warning may still fire. Late warnings past it are suppressed.
	// Default "10s".
	WarnWindow string `json:"warn_window,omitempty"`
	// CustomTolerance is the ± window around a custom alarm instant.
	// Default "10s".
	CustomTolerance string `json:"custom_tolerance,omitempty"`

	// PersistLedger mirrors fired-event keys into storage so a mid-day
	// restart does not re-fire events. Requires storage to be configured.
	PersistLedger bool `json:"persist_ledger,omitempty"`
}

type SinksConfig struct {
	Telegram TelegramSinkConfig `json:"telegram"`
	Audio    AudioSinkConfig    `json:"audio"`
}

type TelegramSinkConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`
}

// AudioSinkConfig plays the configured WAV file on anchor-due events.
type AudioSinkConfig struct {
	Enabled bool   `json:"enabled"`
	File    string `json:"file,omitempty"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:8718"
}

// StorageConfig controls the persistence layer (alarm rules + fired ledger).
//
// Example:
//
//	"storage": { "driver": "file", "path": "./noord_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
