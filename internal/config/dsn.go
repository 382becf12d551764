// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"net"
	"net/url"
	"strconv"
)

// postgresURL renders a postgres:// URL understood by pgx.
func postgresURL(c DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}
