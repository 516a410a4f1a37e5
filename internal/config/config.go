package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// CalendarScope is the Google Calendar read/write scope.
const CalendarScope = "https://www.googleapis.com/auth/calendar"

// Config contains runtime configuration values shared by the bot and web processes.
type Config struct {
	// TelegramToken is the bot token issued by BotFather.
	TelegramToken string

	// ClientSecretsFile is the path to the Google OAuth client-secrets JSON.
	ClientSecretsFile string

	// Scopes are the OAuth scopes requested during authorization.
	Scopes []string

	// PublicURL is the externally reachable base URL of the web process.
	// Authorization links sent to chat users point at PublicURL + "/authorize".
	PublicURL string

	// RedirectURI is the OAuth redirect URI registered with Google.
	RedirectURI string

	// HTTPAddr is the listen address of the OAuth web process.
	HTTPAddr string

	// DBPath is the SQLite file holding credential records.
	DBPath string

	// CalendarID is the calendar events are inserted into.
	CalendarID string

	// SpreadsheetID and WorksheetName select the booking log target.
	// Logging is disabled when SpreadsheetID is empty.
	SpreadsheetID string
	WorksheetName string

	// SheetsCredentialsFile is a service-account key used for the booking log.
	SheetsCredentialsFile string

	// SheetHeader is written as the first row of a newly created worksheet.
	SheetHeader []string

	// Location is the time zone bookings are made in.
	Location *time.Location

	// BookingTitle is the summary of created events.
	BookingTitle string

	// BookingDuration is the length of created events.
	BookingDuration time.Duration

	// BookingSlots are the selectable start times in "HH:MM" form.
	BookingSlots []string

	// LogLevel and LogFormat configure the process logger.
	LogLevel  string
	LogFormat string

	// MetricsEnabled and MetricsAddr configure the dedicated metrics listener.
	MetricsEnabled bool
	MetricsAddr    string
}

// LoadEnvFile seeds the process environment from a dotenv file. Variables
// already present in the environment win. A missing default file is not an
// error; an explicitly requested file must exist.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables with defaults.
// It does not require the Telegram token; use RequireTelegram for processes
// that talk to the chat platform. Malformed values are errors.
func Load() (Config, error) {
	v := newViper()
	r := &reader{v: v}

	publicURL := strings.TrimRight(v.GetString("PUBLIC_URL"), "/")
	redirectURI := v.GetString("OAUTH_REDIRECT_URI")
	if redirectURI == "" {
		redirectURI = publicURL + "/oauth2callback"
	}

	cfg := Config{
		TelegramToken:         v.GetString("TELEGRAM_BOT_TOKEN"),
		ClientSecretsFile:     v.GetString("GOOGLE_CLIENT_SECRETS_FILE"),
		Scopes:                r.list("GOOGLE_OAUTH_SCOPES", []string{CalendarScope}),
		PublicURL:             publicURL,
		RedirectURI:           redirectURI,
		HTTPAddr:              v.GetString("HTTP_ADDR"),
		DBPath:                v.GetString("DB_PATH"),
		CalendarID:            v.GetString("CALENDAR_ID"),
		SpreadsheetID:         v.GetString("SPREADSHEET_ID"),
		WorksheetName:         v.GetString("WORKSHEET_NAME"),
		SheetsCredentialsFile: v.GetString("SHEETS_CREDENTIALS_FILE"),
		SheetHeader:           r.list("SHEET_HEADER", nil),
		BookingTitle:          v.GetString("BOOKING_TITLE"),
		BookingDuration:       r.duration("BOOKING_DURATION"),
		BookingSlots:          r.list("BOOKING_SLOTS", DefaultSlots()),
		LogLevel:              v.GetString("LOG_LEVEL"),
		LogFormat:             v.GetString("LOG_FORMAT"),
		MetricsEnabled:        r.bool("METRICS_ENABLED"),
		MetricsAddr:           v.GetString("METRICS_ADDR"),
	}

	tz := v.GetString("TZ")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid time zone %q: %w", tz, err))
	}
	cfg.Location = loc

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("GOOGLE_CLIENT_SECRETS_FILE", "client_secret.json")
	v.SetDefault("PUBLIC_URL", "http://localhost:8080")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_PATH", "telecal.db")
	v.SetDefault("CALENDAR_ID", "primary")
	v.SetDefault("WORKSHEET_NAME", "Bookings")
	v.SetDefault("TZ", "UTC")
	v.SetDefault("BOOKING_TITLE", "Meeting")
	v.SetDefault("BOOKING_DURATION", time.Hour)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_ADDR", ":9090")
	return v
}

// reader converts typed values and collects conversion errors.
type reader struct {
	v    *viper.Viper
	errs []error
}

func (r *reader) duration(key string) time.Duration {
	d, err := cast.ToDurationE(r.v.Get(key))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s %q: %w", key, r.v.GetString(key), err))
	}
	return d
}

func (r *reader) bool(key string) bool {
	b, err := cast.ToBoolE(r.v.Get(key))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s %q: %w", key, r.v.GetString(key), err))
	}
	return b
}

func (r *reader) list(key string, def []string) []string {
	parts := ParseCommaSeparatedList(r.v.GetString(key))
	if len(parts) == 0 {
		return def
	}
	return parts
}

// Validate checks the values that have no safe fallback.
func (c Config) Validate() error {
	if len(c.Scopes) == 0 {
		return fmt.Errorf("GOOGLE_OAUTH_SCOPES must contain at least one scope")
	}
	if c.BookingDuration <= 0 {
		return fmt.Errorf("BOOKING_DURATION must be positive, got %s", c.BookingDuration)
	}
	if len(c.BookingSlots) == 0 {
		return fmt.Errorf("BOOKING_SLOTS must contain at least one slot")
	}
	for _, slot := range c.BookingSlots {
		if _, err := time.Parse("15:04", slot); err != nil {
			return fmt.Errorf("invalid booking slot %q: want HH:MM", slot)
		}
	}
	if c.SpreadsheetID != "" && c.SheetsCredentialsFile == "" {
		return fmt.Errorf("SHEETS_CREDENTIALS_FILE is required when SPREADSHEET_ID is set")
	}
	return nil
}

// RequireTelegram reports an error when the bot token is missing.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

// SheetsEnabled reports whether bookings are logged to a spreadsheet.
func (c Config) SheetsEnabled() bool {
	return c.SpreadsheetID != ""
}

// AuthorizeURL returns the Initiate link for a chat user.
func (c Config) AuthorizeURL(userID string) string {
	return c.PublicURL + "/authorize?" + url.Values{"state": {userID}}.Encode()
}

// DefaultSlots returns hourly slots from 09:00 to 17:00.
func DefaultSlots() []string {
	slots := make([]string, 0, 9)
	for h := 9; h <= 17; h++ {
		slots = append(slots, fmt.Sprintf("%02d:00", h))
	}
	return slots
}

// ParseCommaSeparatedList splits s on commas, trimming whitespace and
// dropping empty entries. It returns nil for an empty input.
func ParseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
