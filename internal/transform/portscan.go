package transform

import (
	"context"
	"fmt"
	"hash/fnv"
	"iter"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/getherald/herald/internal/model"
	"github.com/getherald/herald/internal/parallel"
)

// OpenPort is one listening port with its well-known service name, if any.
type OpenPort struct {
	Port    int    `json:"port"`
	Service string `json:"service,omitempty"`
}

// PortReport is the portscan result payload.
type PortReport struct {
	Target  string     `json:"target"`
	Scanned int        `json:"scanned"`
	Open    []OpenPort `json:"open"`
}

// Portscan probes TCP ports by attempting to open connections to them.
// In mock mode it derives a stable answer from the target instead of
// dialing.
type Portscan struct {
	ports       []int
	dialTimeout time.Duration
	parallel    int
	mock        bool
}

func NewPortscan(cfg model.Portscan) *Portscan {
	return &Portscan{
		ports:       cfg.Ports,
		dialTimeout: time.Duration(cfg.DialTimeoutMs) * time.Millisecond,
		parallel:    cfg.Parallel,
		mock:        cfg.Mock,
	}
}

func (p *Portscan) Name() string { return "portscan" }

func (p *Portscan) Description() string { return "Probe TCP ports on a host or IP address" }

func (p *Portscan) Kinds() []string { return []string{model.KindIP, model.KindHost} }

func (p *Portscan) EstimatedSeconds() int { return 15 }

var serviceNames = map[int]string{
	21:   "ftp",
	22:   "ssh",
	25:   "smtp",
	53:   "domain",
	80:   "http",
	110:  "pop3",
	143:  "imap",
	443:  "https",
	587:  "submission",
	993:  "imaps",
	3306: "mysql",
	5432: "postgresql",
	6379: "redis",
	8080: "http-alt",
	8443: "https-alt",
}

func (p *Portscan) Run(ctx context.Context, req model.TransformRequest, progress model.ProgressFunc) (any, error) {
	ports, err := requestPorts(req.Config, p.ports)
	if err != nil {
		return nil, err
	}
	if err := progress(5, fmt.Sprintf("probing %d ports", len(ports))); err != nil {
		return nil, err
	}

	report := PortReport{Target: req.Entity.Value, Open: []OpenPort{}}
	seq := parallel.NewMap(ctx, p.parallel, p.probe).Iter(portSeq(req.Entity.Value, ports))
	for res, err := range seq {
		if err != nil {
			continue
		}
		report.Scanned++
		if res.open {
			report.Open = append(report.Open, OpenPort{Port: res.port, Service: serviceNames[res.port]})
		}
		// Probes finish in any order, counting them keeps the
		// percentage non-decreasing.
		percent := 5 + report.Scanned*90/len(ports)
		if err := progress(percent, fmt.Sprintf("probed %d of %d ports", report.Scanned, len(ports))); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(report.Open, func(i, j int) bool { return report.Open[i].Port < report.Open[j].Port })
	return report, nil
}

type probeTarget struct {
	host string
	port int
}

type probeResult struct {
	port int
	open bool
}

func (p *Portscan) probe(ctx context.Context, target probeTarget) (probeResult, error) {
	if p.mock {
		return probeResult{port: target.port, open: mockOpen(target)}, nil
	}
	addr := net.JoinHostPort(target.host, strconv.Itoa(target.port))
	conn, err := net.DialTimeout("tcp", addr, p.dialTimeout)
	if err != nil {
		return probeResult{port: target.port}, nil
	}
	if err := conn.Close(); err != nil {
		return probeResult{}, err
	}
	return probeResult{port: target.port, open: true}, nil
}

// mockOpen simulates a probe, stable per target and port so repeated
// scans agree.
func mockOpen(target probeTarget) bool {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s:%d", target.host, target.port)
	return h.Sum32()%3 == 0
}

func portSeq(host string, ports []int) iter.Seq2[probeTarget, error] {
	return func(yield func(probeTarget, error) bool) {
		for _, port := range ports {
			if !yield(probeTarget{host: host, port: port}, nil) {
				return
			}
		}
	}
}

// requestPorts honors a per-request "ports" override from the opaque
// work configuration, falling back to the configured defaults.
func requestPorts(config map[string]any, fallback []int) ([]int, error) {
	raw, ok := config["ports"]
	if !ok {
		return fallback, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, model.Failuref("INVALID_PORTS", "ports must be a list, got %T", raw)
	}
	if len(list) == 0 {
		return nil, model.Failuref("INVALID_PORTS", "ports list is empty")
	}
	ports := make([]int, 0, len(list))
	for _, item := range list {
		number, ok := item.(float64)
		if !ok || number != float64(int(number)) {
			return nil, model.Failuref("INVALID_PORTS", "port %v is not an integer", item)
		}
		port := int(number)
		if port < 1 || port > 65535 {
			return nil, model.Failuref("INVALID_PORTS", "port %d out of range", port)
		}
		ports = append(ports, port)
	}
	return ports, nil
}
