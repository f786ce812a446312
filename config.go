package cratedb

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/proddata/go-cratedb/internal/serialize"
)

// LongPolicy selects how BIGINT columns are decoded. It mirrors
// internal/serialize.LongPolicy; Client translates between the two so
// callers never need to import an internal package.
type LongPolicy int

const (
	LongNumber LongPolicy = iota
	LongBigInt
)

// DateTimePolicy selects how DATE/TIMESTAMP columns are decoded.
type DateTimePolicy int

const (
	DateTimeDate DateTimePolicy = iota
	DateTimeNumber
)

// DeserializationConfig controls per-column-type decoding (§3, §4.1).
type DeserializationConfig struct {
	Long      LongPolicy
	Date      DateTimePolicy
	Timestamp DateTimePolicy
}

func (d DeserializationConfig) toInternal() serialize.Config {
	cfg := serialize.Config{}
	if d.Long == LongBigInt {
		cfg.Long = serialize.LongBigInt
	}
	if d.Date == DateTimeNumber {
		cfg.Date = serialize.DateTimeNumber
	}
	if d.Timestamp == DateTimeNumber {
		cfg.Timestamp = serialize.DateTimeNumber
	}
	return cfg
}

// RowMode is the shape in which execute/executeMany deliver rows.
type RowMode string

const (
	RowModeArray  RowMode = "array"
	RowModeObject RowMode = "object"
)

// Config is the resolved, immutable set of parameters a Client is built
// from (§3). Construct one with DefaultConfig and override only the
// fields you need; NewClient resolves any field left at its zero value
// from ConnectionString, then from the process environment, in that
// order, never overriding a value you set explicitly.
type Config struct {
	User     string
	Password string
	JWT      string

	Host string
	Port int

	DefaultSchema string

	// ConnectionString, if set, is parsed as
	// http(s)://user:password@host:port/ and used to fill any of the
	// fields above left at their zero value.
	ConnectionString string

	SSL       bool
	KeepAlive bool

	MaxConnections int

	Deserialization DeserializationConfig
	RowMode         RowMode

	EnableCompression    bool
	CompressionThreshold int

	// Logger receives diagnostic events from the transport and cursor.
	// The zero value is zerolog's no-op logger.
	Logger zerolog.Logger
}

// DefaultConfig returns a Config populated with every default from §3.
func DefaultConfig() Config {
	return Config{
		User:                 "crate",
		Host:                 "localhost",
		Port:                 4200,
		KeepAlive:            true,
		MaxConnections:       20,
		Deserialization:      DeserializationConfig{Long: LongNumber, Date: DateTimeDate, Timestamp: DateTimeDate},
		RowMode:              RowModeArray,
		EnableCompression:    true,
		CompressionThreshold: 1024,
	}
}

type connStringFields struct {
	user, password, host string
	port                 int
	ssl                  bool
}

func parseConnectionString(s string) (connStringFields, error) {
	u, err := url.Parse(s)
	if err != nil {
		return connStringFields{}, &ConnectionStringError{Value: s, Cause: err}
	}
	var f connStringFields
	switch u.Scheme {
	case "https":
		f.ssl = true
	case "http", "":
		f.ssl = false
	default:
		return connStringFields{}, &ConnectionStringError{Value: s, Cause: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if u.User != nil {
		f.user = u.User.Username()
		f.password, _ = u.User.Password()
	}
	f.host = u.Hostname()
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return connStringFields{}, &ConnectionStringError{Value: s, Cause: fmt.Errorf("invalid port %q", p)}
		}
		f.port = port
	}
	return f, nil
}

// resolveConfig fills any zero-valued field of cfg from
// cfg.ConnectionString, then from the environment, then from DefaultConfig — never
// overriding a value the caller already set (§3, §9 "Configuration
// merging"). The result is treated as read-only from this point on.
func resolveConfig(cfg Config) (Config, error) {
	defaults := DefaultConfig()

	var cs connStringFields
	if cfg.ConnectionString != "" {
		parsed, err := parseConnectionString(cfg.ConnectionString)
		if err != nil {
			return Config{}, err
		}
		cs = parsed
	}

	resolved := cfg

	if resolved.User == "" {
		resolved.User = firstNonEmpty(cs.user, os.Getenv("USER"), defaults.User)
	}
	if resolved.Password == "" {
		resolved.Password = firstNonEmpty(cs.password, os.Getenv("PASSWORD"), defaults.Password)
	}
	if resolved.Host == "" {
		resolved.Host = firstNonEmpty(cs.host, os.Getenv("HOST"), defaults.Host)
	}
	if resolved.Port == 0 {
		resolved.Port = cs.port
		if resolved.Port == 0 {
			if v := os.Getenv("PORT"); v != "" {
				if p, err := strconv.Atoi(v); err == nil {
					resolved.Port = p
				}
			}
		}
		if resolved.Port == 0 {
			resolved.Port = defaults.Port
		}
	}
	if resolved.DefaultSchema == "" {
		resolved.DefaultSchema = os.Getenv("DEFAULT_SCHEMA")
	}
	if !resolved.SSL {
		resolved.SSL = cs.ssl
	}
	if resolved.MaxConnections == 0 {
		resolved.MaxConnections = defaults.MaxConnections
	}
	if resolved.RowMode == "" {
		resolved.RowMode = defaults.RowMode
	}
	if resolved.CompressionThreshold == 0 {
		resolved.CompressionThreshold = defaults.CompressionThreshold
	}
	return resolved, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c Config) baseURL() string {
	scheme := "http"
	if c.SSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}
