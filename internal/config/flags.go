package config

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// NetAddress holds a host and port. It implements pflag.Value.
type NetAddress struct {
	Host string
	Port int
}

// String returns "host:port", or "" when neither is set.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses "host:port". The host may be empty, "localhost" or an IP.
func (a *NetAddress) Set(s string) error {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return errors.New("need address in a form `host:port`")
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return err
	}
	if port < 1 || port > 65535 {
		return errors.New("port number is an integer in 1..65535")
	}

	if host != "" && host != "localhost" && net.ParseIP(host) == nil {
		return errors.New("incorrect IP-address provided")
	}

	a.Host = host
	a.Port = port
	return nil
}

func (a *NetAddress) Type() string {
	return "host:port"
}

// Flags are the command-line overrides of a miniservice host. Bind them to a
// flag set with Register before parsing.
type Flags struct {
	Address       NetAddress
	Environment   string
	LogLevel      string
	APIVersion    string
	ConfigFile    string
	DotEnvFile    string
	DatabaseDSN   string
	MongoURI      string
	Features      map[string]bool
	ClientTimeout time.Duration
	ClientRetries int
}

// Register binds f to fs.
//
// Flags:
//
//	-a, --address       HTTP listen address host:port
//	    --env           environment name (development enables pretty logs)
//	    --log-level     zerolog level
//	    --api-version   default API version
//	-c, --config        JSON or YAML config file
//	    --dotenv        .env file
//	-d, --database-dsn  relational database DSN
//	    --mongo-uri     MongoDB connection URI
//	    --feature       feature toggle, e.g. --feature Mongo=true (repeatable)
//	    --client-timeout, --client-retries  outbound REST client settings
func (f *Flags) Register(fs *pflag.FlagSet) {
	fs.VarP(&f.Address, "address", "a", "HTTP listen address host:port")
	fs.StringVar(&f.Environment, "env", "", "Environment name")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level")
	fs.StringVar(&f.APIVersion, "api-version", "", "Default API version, e.g. 1.0")
	fs.StringVarP(&f.ConfigFile, "config", "c", "", "JSON or YAML config file path")
	fs.StringVar(&f.DotEnvFile, "dotenv", "", ".env file path")
	fs.StringVarP(&f.DatabaseDSN, "database-dsn", "d", "", "Relational database DSN")
	fs.StringVar(&f.MongoURI, "mongo-uri", "", "MongoDB connection URI")
	fs.Var(featureValue{&f.Features}, "feature", "Feature toggle name=bool (repeatable)")
	fs.DurationVar(&f.ClientTimeout, "client-timeout", 0, "Outbound REST client attempt timeout")
	fs.IntVar(&f.ClientRetries, "client-retries", 0, "Outbound REST client max attempts")
}

func (f *Flags) toConfig() *StructuredConfig {
	return &StructuredConfig{
		App: App{
			Environment: f.Environment,
			LogLevel:    f.LogLevel,
		},
		Server: Server{
			Address: f.Address.String(),
		},
		Features:   f.Features,
		APIVersion: f.APIVersion,
		Storage: Storage{
			DB:    DB{DSN: f.DatabaseDSN},
			Mongo: Mongo{URI: f.MongoURI},
		},
		Client: Client{
			Timeout:     f.ClientTimeout,
			MaxAttempts: f.ClientRetries,
		},
		ConfigFile: f.ConfigFile,
		DotEnvFile: f.DotEnvFile,
	}
}

// featureValue parses "Name=bool" pairs, comma-separated or repeated, into
// a feature map.
type featureValue struct {
	m *map[string]bool
}

func (v featureValue) String() string {
	if v.m == nil || len(*v.m) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(*v.m))
	for name, on := range *v.m {
		pairs = append(pairs, name+"="+strconv.FormatBool(on))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (v featureValue) Set(s string) error {
	if *v.m == nil {
		*v.m = make(map[string]bool)
	}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, found := strings.Cut(pair, "=")
		if !found {
			(*v.m)[name] = true
			continue
		}
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("feature %q: %w", name, err)
		}
		(*v.m)[name] = on
	}
	return nil
}

func (v featureValue) Type() string {
	return "name=bool"
}
