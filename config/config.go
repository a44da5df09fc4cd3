package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "MEDIFLOW_"

type Config struct {
	Addr        string
	DBUrl       string
	TokenSecret string
	TokenTTL    time.Duration
	Debug       bool
	// Origin is the public base URL of the clinic site, used for meeting
	// links.
	Origin string
	// Location applies to schedule answers whose practitioner has no zone.
	Location *time.Location
	// FormsAPIURL switches the public endpoints to a remote Forms API.
	FormsAPIURL   string
	FormsAPIToken string
}

// ParseFlags loads an optional .env file and parses the command line. Flag
// defaults come from MEDIFLOW_* environment variables.
func ParseFlags() (cfg Config, err error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	return Parse(os.Args[1:], os.Getenv)
}

func Parse(args []string, getenv func(string) string) (cfg Config, err error) {
	env := func(name, def string) string {
		if v := getenv(envPrefix + name); v != "" {
			return v
		}
		return def
	}
	envUint := func(name string, def uint) uint {
		v, err := strconv.ParseUint(env(name, ""), 10, 32)
		if err != nil {
			return def
		}
		return uint(v)
	}

	fs := flag.NewFlagSet("mediflow", flag.ContinueOnError)
	var host string
	fs.StringVar(&host, "host", env("HOST", "0.0.0.0"), "listen host name")
	var port uint
	fs.UintVar(&port, "port", envUint("PORT", 80), "listen port number")
	fs.StringVar(&cfg.DBUrl, "db-url", env("DB_URL", "mediflow.sqlite"), "path to SQLite3 DB file")
	fs.StringVar(&cfg.TokenSecret, "token-secret", env("TOKEN_SECRET", ""), "secret key for token encryption and decryption")
	var ttl uint
	fs.UintVar(&ttl, "token-ttl", envUint("TOKEN_TTL", 120), "token TTL in seconds")
	fs.BoolVar(&cfg.Debug, "debug", env("DEBUG", "") == "true", "log at DEBUG level")
	fs.StringVar(&cfg.Origin, "origin", env("ORIGIN", ""), "public base URL for meeting links (defaults to the listen URL)")
	var zone string
	fs.StringVar(&zone, "timezone", env("TIMEZONE", "UTC"), "time zone for schedule answers")
	fs.StringVar(&cfg.FormsAPIURL, "forms-api-url", env("FORMS_API_URL", ""), "base URL of a remote Forms API (proxy mode)")
	fs.StringVar(&cfg.FormsAPIToken, "forms-api-token", env("FORMS_API_TOKEN", ""), "bearer token for the remote Forms API")
	if err = fs.Parse(args); err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.TokenTTL = time.Duration(ttl) * time.Second

	cfg.Location, err = time.LoadLocation(zone)
	if err != nil {
		err = fmt.Errorf("invalid -timezone %q: %w", zone, err)
		return
	}

	if cfg.Origin == "" {
		cfg.Origin = cfg.Url()
	}
	cfg.Origin = strings.TrimRight(cfg.Origin, "/")

	if cfg.TokenSecret == "" {
		err = errors.New("missing parameter -token-secret")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

// Proxy reports whether forms and submissions go to a remote Forms API.
func (cfg Config) Proxy() bool {
	return cfg.FormsAPIURL != ""
}
