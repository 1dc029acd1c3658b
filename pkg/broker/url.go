// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package broker

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// ParseURL builds an uninitialized Context from a connection URL of
// the form scheme://[user[:secret]@]host[:port][/path]?param=value&...
// Query parameters land in Context.Parameters as strings; repeated
// parameters keep their last value. The notify callback and the
// publish limiter are wired the same way NewContext wires them.
func ParseURL(raw string, publishRate rate.Limit, burst int, notify NotifyFunc) (*Context, *tmxerr.Error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, tmxerr.Wrap(tmxerr.InvalidArgument, err, "broker: parse url %q", raw)
	}
	if u.Scheme == "" {
		return nil, tmxerr.New(tmxerr.InvalidArgument, "broker: url "+raw+" has no scheme")
	}
	if u.Host == "" {
		return nil, tmxerr.New(tmxerr.InvalidArgument, "broker: url "+raw+" has no host")
	}

	c := NewContext(u.Scheme, publishRate, burst, notify)
	c.Host = u.Hostname()
	if p := u.Port(); p != "" {
		port, perr := strconv.Atoi(p)
		if perr != nil {
			return nil, tmxerr.Wrap(tmxerr.InvalidArgument, perr, "broker: bad port in url %q", raw)
		}
		c.Port = port
	}
	c.Path = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		c.User = u.User.Username()
		c.Secret, _ = u.User.Password()
	}
	for k, vs := range u.Query() {
		if len(vs) == 0 {
			continue
		}
		c.Parameters.SetField(k, value.String(vs[len(vs)-1], value.Width8))
	}
	return c, nil
}
