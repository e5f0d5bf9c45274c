package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/protocol"
)

func IPAllowListMiddleware(cidrs []string) (func(http.Handler) http.Handler, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		_, netw, err := net.ParseCIDR(c)
		if err != nil {
			return nil, err
		}
		nets = append(nets, netw)
	}
	if len(nets) == 0 {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sourceAllowed(r.RemoteAddr, nets) {
				writeJSON(w, http.StatusForbidden, protocol.ErrorResponse{Error: protocol.ErrorBody{
					Code:      "FORBIDDEN",
					Message:   "source ip not allowed",
					Retryable: false,
				}})
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

func sourceAllowed(remoteAddr string, nets []*net.IPNet) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
