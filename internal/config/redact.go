package config

import (
	"maps"
	"net/url"
	"regexp"
)

const redactedValue = "xxxxx"

var dsnPassword = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)

// Redacted returns a copy of c that is safe to log: the sign key is masked
// and passwords are stripped from the database DSN, the Mongo URI and peer
// URLs.
func (c StructuredConfig) Redacted() StructuredConfig {
	out := c
	if out.Auth.SignKey != "" {
		out.Auth.SignKey = redactedValue
	}
	out.Storage.DB.DSN = redactConnString(c.Storage.DB.DSN)
	out.Storage.Mongo.URI = redactConnString(c.Storage.Mongo.URI)

	if c.Client.Peers != nil {
		out.Client.Peers = maps.Clone(c.Client.Peers)
		for name, addr := range out.Client.Peers {
			out.Client.Peers[name] = redactConnString(addr)
		}
	}
	return out
}

// redactConnString masks the password of a URL-form connection string or the
// password=... pair of a key/value one.
func redactConnString(s string) string {
	if s == "" {
		return s
	}
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), redactedValue)
			return u.String()
		}
		return s
	}
	return dsnPassword.ReplaceAllString(s, "${1}"+redactedValue)
}
