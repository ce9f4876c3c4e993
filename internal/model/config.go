package model

import "time"

// Default endpoints of the SoundExchange unmatched-rights lists
const (
	DefaultSearchPage = "https://www.soundexchange.com/what-we-do/for-artists-labels-and-producers/"
	DefaultEndpoint   = "https://www.soundexchange.com/wp-admin/admin-ajax.php"
	DefaultOrigin     = "https://www.soundexchange.com"
	DefaultUserAgent  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36"
)

// Config is the complete runtime configuration
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Target       TargetConfig       `yaml:"target" mapstructure:"target"`
	Browser      BrowserConfig      `yaml:"browser" mapstructure:"browser"`
	Pacing       PacingConfig       `yaml:"pacing" mapstructure:"pacing"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Sync         SyncConfig         `yaml:"sync" mapstructure:"sync"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// HTTPConfig configures the query session transport
type HTTPConfig struct {
	Timeout             time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent           string        `yaml:"user_agent" mapstructure:"user_agent"`
	AcceptLanguage      string        `yaml:"accept_language" mapstructure:"accept_language"`
	HTTPProxy           string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy          string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	CloudflareTransport bool          `yaml:"cloudflare_transport" mapstructure:"cloudflare_transport"`
	RespectRobots       bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	MaxBodyBytes        int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// TargetConfig describes the search endpoint contract
type TargetConfig struct {
	SearchPage string `yaml:"search_page" mapstructure:"search_page"`
	Endpoint   string `yaml:"endpoint" mapstructure:"endpoint"`
	Origin     string `yaml:"origin" mapstructure:"origin"`
	Action     string `yaml:"action" mapstructure:"action"`
	Selector   string `yaml:"selector" mapstructure:"selector"`
}

// BrowserConfig configures the challenge-solving browser session
type BrowserConfig struct {
	Headless         bool          `yaml:"headless" mapstructure:"headless"`
	Width            int           `yaml:"width" mapstructure:"width"`
	Height           int           `yaml:"height" mapstructure:"height"`
	CookieName       string        `yaml:"cookie_name" mapstructure:"cookie_name"`
	ChallengeTimeout time.Duration `yaml:"challenge_timeout" mapstructure:"challenge_timeout"`
	PollInterval     time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	RemoteURL        string        `yaml:"remote_url,omitempty" mapstructure:"remote_url"`
	Bin              string        `yaml:"bin,omitempty" mapstructure:"bin"`
}

// PacingConfig configures the mandatory delay between outbound requests
type PacingConfig struct {
	Delay time.Duration `yaml:"delay" mapstructure:"delay"`
}

// RateLimitingConfig caps the request rate against the endpoint host
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// CacheConfig configures the token and search caches
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	TokenTTL  time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
	SearchTTL time.Duration `yaml:"search_ttl" mapstructure:"search_ttl"`
}

// SyncConfig configures the persistent store and duplicate detection
type SyncConfig struct {
	Backend         string       `yaml:"backend" mapstructure:"backend"`
	CheckDuplicates bool         `yaml:"check_duplicates" mapstructure:"check_duplicates"`
	KeyFields       []string     `yaml:"key_fields" mapstructure:"key_fields"`
	Sheets          SheetsConfig `yaml:"sheets" mapstructure:"sheets"`
	SQLitePath      string       `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	CSVPath         string       `yaml:"csv_path" mapstructure:"csv_path"`
}

// SheetsConfig locates the Google Sheets store
type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name" mapstructure:"sheet_name"`
	Range           string `yaml:"range" mapstructure:"range"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
}

// OutputConfig configures exports and console output
type OutputConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:        30 * time.Second,
			UserAgent:      DefaultUserAgent,
			AcceptLanguage: "es-419,es;q=0.7",
			RespectRobots:  true,
			MaxBodyBytes:   5_000_000,
		},
		Target: TargetConfig{
			SearchPage: DefaultSearchPage,
			Endpoint:   DefaultEndpoint,
			Origin:     DefaultOrigin,
			Action:     "ulists_get_query",
			Selector:   ".uli-search-item",
		},
		Browser: BrowserConfig{
			Headless:         true,
			Width:            1920,
			Height:           1080,
			CookieName:       "__cf_bm",
			ChallengeTimeout: 15 * time.Second,
			PollInterval:     500 * time.Millisecond,
		},
		Pacing: PacingConfig{
			Delay: 2 * time.Second,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 1,
			BurstSize:         1,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".rightsprobe-cache",
			TokenTTL:  20 * time.Minute,
			SearchTTL: time.Hour,
		},
		Sync: SyncConfig{
			Backend:         "sheets",
			CheckDuplicates: true,
			KeyFields:       []string{"term", "created_at"},
			Sheets: SheetsConfig{
				SheetName:       "Hoja 1",
				Range:           "A:O",
				CredentialsFile: "credentials/service-account.json",
			},
			SQLitePath: "rightsprobe.db",
			CSVPath:    "rightsprobe-store.csv",
		},
		Output: OutputConfig{
			Dir: ".",
		},
	}
}
