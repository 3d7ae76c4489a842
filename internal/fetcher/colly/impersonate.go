package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"

	utls "github.com/refraction-networking/utls"
)

var helloIDs = map[string]utls.ClientHelloID{
	"chrome":  utls.HelloChrome_Auto,
	"firefox": utls.HelloFirefox_Auto,
	"safari":  utls.HelloSafari_Auto,
	"edge":    utls.HelloEdge_Auto,
	"ios":     utls.HelloIOS_Auto,
}

// ValidImpersonation reports whether name is a supported browser profile.
// The empty string disables impersonation.
func ValidImpersonation(name string) bool {
	if name == "" {
		return true
	}
	_, ok := helloIDs[strings.ToLower(name)]
	return ok
}

// Impersonations lists the supported browser profiles.
func Impersonations() []string {
	names := make([]string, 0, len(helloIDs))
	for name := range helloIDs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// impersonatingDialer returns a DialTLSContext that handshakes with the named
// browser's ClientHello. ALPN is pinned to http/1.1 because the transport
// cannot speak HTTP/2 over a non-crypto/tls connection.
func impersonatingDialer(name string, dial dialFunc) (dialFunc, error) {
	id, ok := helloIDs[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported impersonation %q (want one of %s)", name, strings.Join(Impersonations(), ", "))
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("split tls address: %w", err)
		}
		hello, err := utls.UTLSIdToSpec(id)
		if err != nil {
			return nil, fmt.Errorf("load %s client hello: %w", name, err)
		}
		for _, ext := range hello.Extensions {
			if alpn, ok := ext.(*utls.ALPNExtension); ok {
				alpn.AlpnProtocols = []string{"http/1.1"}
			}
		}

		raw, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		conn := utls.UClient(raw, &utls.Config{ServerName: host}, utls.HelloCustom)
		if err := conn.ApplyPreset(&hello); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("apply %s client hello: %w", name, err)
		}
		if err := conn.HandshakeContext(ctx); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("tls handshake as %s: %w", name, err)
		}
		return conn, nil
	}, nil
}
