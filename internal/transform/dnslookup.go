package transform

import (
	"context"
	"errors"
	"net"
	"sort"

	"github.com/getherald/herald/internal/model"
)

// DNSResult is the dnslookup result payload. Type is "A" for forward
// lookups and "PTR" for reverse ones.
type DNSResult struct {
	Entity  string   `json:"entity"`
	Type    string   `json:"type"`
	Records []string `json:"records"`
}

// DNSLookup resolves hosts to addresses and addresses back to names.
// In mock mode it answers from a fixed zone instead of the system
// resolver.
type DNSLookup struct {
	mock     bool
	resolver *net.Resolver
}

func NewDNSLookup(cfg model.DNSLookup) *DNSLookup {
	return &DNSLookup{
		mock:     cfg.Mock,
		resolver: net.DefaultResolver,
	}
}

func (d *DNSLookup) Name() string { return "dnslookup" }

func (d *DNSLookup) Description() string { return "Resolve a host name or reverse an IP address" }

func (d *DNSLookup) Kinds() []string { return []string{model.KindHost, model.KindIP} }

func (d *DNSLookup) EstimatedSeconds() int { return 1 }

var mockZone = map[string][]string{
	"example.com":      {"93.184.216.34", "2606:2800:220:1:248:1893:25c8:1946"},
	"herald.test":      {"192.0.2.10", "192.0.2.11"},
	"localhost":        {"127.0.0.1", "::1"},
	"mail.herald.test": {"192.0.2.25"},
}

var mockReverse = map[string][]string{
	"93.184.216.34": {"example.com"},
	"192.0.2.10":    {"herald.test"},
	"192.0.2.25":    {"mail.herald.test"},
	"127.0.0.1":     {"localhost"},
}

func (d *DNSLookup) Run(ctx context.Context, req model.TransformRequest, progress model.ProgressFunc) (any, error) {
	if err := progress(20, "resolving"); err != nil {
		return nil, err
	}

	var (
		records []string
		qtype   string
		err     error
	)
	switch req.Entity.Kind {
	case model.KindIP:
		qtype = "PTR"
		records, err = d.reverse(ctx, req.Entity.Value)
	default:
		qtype = "A"
		records, err = d.forward(ctx, req.Entity.Value)
	}
	if err != nil {
		return nil, err
	}

	if err := progress(80, "assembling result"); err != nil {
		return nil, err
	}
	sort.Strings(records)
	return DNSResult{Entity: req.Entity.Value, Type: qtype, Records: records}, nil
}

func (d *DNSLookup) forward(ctx context.Context, host string) ([]string, error) {
	if d.mock {
		records, ok := mockZone[host]
		if !ok {
			return nil, model.Failuref("NXDOMAIN", "no such host: %s", host)
		}
		return append([]string(nil), records...), nil
	}
	records, err := d.resolver.LookupHost(ctx, host)
	return records, dnsFailure(err, host)
}

func (d *DNSLookup) reverse(ctx context.Context, addr string) ([]string, error) {
	if d.mock {
		names, ok := mockReverse[addr]
		if !ok {
			return nil, model.Failuref("NXDOMAIN", "no name on record for %s", addr)
		}
		return append([]string(nil), names...), nil
	}
	names, err := d.resolver.LookupAddr(ctx, addr)
	return names, dnsFailure(err, addr)
}

func dnsFailure(err error, entity string) error {
	if err == nil {
		return nil
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return model.Failuref("NXDOMAIN", "no such host: %s", entity)
	}
	return model.Failuref("DNS_ERROR", "lookup %s: %v", entity, err)
}
