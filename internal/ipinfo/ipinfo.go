// Package ipinfo resolves the submitting client's public IP, best effort.
package ipinfo

import (
	"context"
	"net"
	"strings"

	apphttp "weekly-intake/internal/common/http"
	"weekly-intake/internal/common/logger"
)

// Unknown is recorded when no address could be determined.
const Unknown = "unknown"

type Resolver struct {
	client    *apphttp.Client
	lookupURL string
	logger    logger.Logger
}

func NewResolver(client *apphttp.Client, lookupURL string, log logger.Logger) *Resolver {
	return &Resolver{
		client:    client,
		lookupURL: lookupURL,
		logger:    log.WithFields(map[string]interface{}{"component": "ipinfo"}),
	}
}

// Resolve returns hint when it is a valid IP, otherwise asks the lookup
// service. It never fails; every miss yields Unknown.
func (r *Resolver) Resolve(ctx context.Context, hint string) string {
	if ip := parseIP(hint); ip != "" {
		return ip
	}
	if r == nil || r.lookupURL == "" {
		return Unknown
	}

	var body struct {
		IP string `json:"ip"`
	}
	if err := r.client.GetJSON(ctx, r.lookupURL, &body); err != nil {
		r.logger.Warn("client ip lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
		return Unknown
	}

	if ip := parseIP(body.IP); ip != "" {
		return ip
	}
	return Unknown
}

// parseIP accepts "ip" and "ip:port" forms and returns the canonical IP.
func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	if ip := net.ParseIP(s); ip != nil {
		return ip.String()
	}
	return ""
}
