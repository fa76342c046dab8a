package managesieve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/miekg/dns"
)

// DiscoverSRV resolves the `_sieve._tcp.<domain>` SRV record RFC 6186-style
// clients use to locate a ManageSieve server without a hardcoded host/port.
// When multiple records are returned, the lowest-priority, highest-weight
// target is preferred (RFC 2782 ordering), since we don't implement
// weighted random selection among same-priority targets.
func DiscoverSRV(domain string) (host string, port int, err error) {
	name := fmt.Sprintf("_sieve._tcp.%s", dns.Fqdn(domain))

	c := new(dns.Client)
	m := new(dns.Msg)
	m.SetQuestion(name, dns.TypeSRV)
	m.RecursionDesired = true

	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || conf == nil || len(conf.Servers) == 0 {
		return "", 0, &ProtocolError{Reason: "no resolver configuration available for SRV lookup"}
	}

	r, _, err := c.Exchange(m, conf.Servers[0]+":"+conf.Port)
	if err != nil {
		return "", 0, &TransportError{Op: "SRV lookup", Err: err}
	}
	if r.Rcode != dns.RcodeSuccess {
		return "", 0, &ProtocolError{Reason: fmt.Sprintf("SRV lookup for %s failed: %s", name, dns.RcodeToString[r.Rcode])}
	}

	var recs []*dns.SRV
	for _, ans := range r.Answer {
		if srv, ok := ans.(*dns.SRV); ok {
			recs = append(recs, srv)
		}
	}
	if len(recs) == 0 {
		return "", 0, &ProtocolError{Reason: fmt.Sprintf("no SRV records found for %s", name)}
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority < recs[j].Priority
		}
		return recs[i].Weight > recs[j].Weight
	})

	best := recs[0]
	return strings.TrimSuffix(best.Target, "."), int(best.Port), nil
}
