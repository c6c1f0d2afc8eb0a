package wakey_ipcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	DefaultHTTPURL   = "https://api.ipify.org"
	DefaultDNSServer = "resolver1.opendns.com:53"
	DefaultDNSName   = "myip.opendns.com."
	DefaultTimeout   = 10 * time.Second

	ModeHTTP = "http"
	ModeDNS  = "dns"

	// An IPv4 address in text is never longer than this.
	maxBodySize = 64
)

type ResolverConfig struct {
	Mode      string
	URL       string
	DNSServer string
	DNSName   string
	Timeout   time.Duration
}

// NewResolver picks the lookup strategy named by config.Mode.
func NewResolver(config ResolverConfig) (Resolver, error) {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch strings.ToLower(config.Mode) {
	case ModeHTTP, "":
		return NewHTTPResolver(config.URL, timeout), nil
	case ModeDNS:
		return NewDNSResolver(config.DNSServer, config.DNSName, timeout), nil
	default:
		return nil, fmt.Errorf("unknown resolver mode %q (valid: http, dns)", config.Mode)
	}
}

// HTTPResolver asks a plain-text "what is my IP" endpoint such as ipify.
type HTTPResolver struct {
	URL    string
	Client *http.Client
}

func NewHTTPResolver(url string, timeout time.Duration) *HTTPResolver {
	if url == "" {
		url = DefaultHTTPURL
	}

	return &HTTPResolver{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("build request for %s: %w", r.URL, err)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("query %s: %w", r.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("query %s: unexpected status %s", r.URL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("read response from %s: %w", r.URL, err)
	}

	return parseIPv4(string(body))
}

// DNSResolver queries the special OpenDNS name that answers with the
// querying client's address.
type DNSResolver struct {
	Server string
	Name   string
	Client *dns.Client
}

func NewDNSResolver(server, name string, timeout time.Duration) *DNSResolver {
	if server == "" {
		server = DefaultDNSServer
	}
	if name == "" {
		name = DefaultDNSName
	}

	return &DNSResolver{
		Server: server,
		Name:   dns.Fqdn(name),
		Client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

func (r *DNSResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(r.Name), dns.TypeA)

	in, _, err := r.Client.ExchangeContext(ctx, m, r.Server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("query %s at %s: %w", r.Name, r.Server, err)
	}

	if in.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("query %s at %s: %s", r.Name, r.Server, dns.RcodeToString[in.Rcode])
	}

	for _, rr := range in.Answer {
		if a, ok := rr.(*dns.A); ok {
			if addr, ok := netip.AddrFromSlice(a.A.To4()); ok {
				return addr, nil
			}
		}
	}

	return netip.Addr{}, fmt.Errorf("query %s at %s: no A record in answer", r.Name, r.Server)
}

func parseIPv4(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)

	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("could not parse %q as an address: %w", s, err)
	}

	addr = addr.Unmap()
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%s is not an IPv4 address", addr)
	}

	return addr, nil
}
