package config

import "net/url"

// RedactURI replaces the password in a MongoDB connection URI with "***"
// so the URI can be logged. If the URI cannot be parsed or carries no
// password, it is returned unchanged.
func RedactURI(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}

	if _, hasPassword := u.User.Password(); !hasPassword {
		return raw
	}

	u.User = url.UserPassword(u.User.Username(), "***")

	return u.String()
}
