package resolver

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mikey/phish-scanner/internal/core"
)

const resolvConf = "/etc/resolv.conf"

type cacheEntry struct {
	records   []string
	expiresAt time.Time
}

// DNSResolver looks up TXT records with a single upstream server. Answers
// are cached for the configured TTL, or the record TTL when shorter, and
// concurrent lookups of the same name share one query.
type DNSResolver struct {
	server   string
	udp      *dns.Client
	tcp      *dns.Client
	cacheTTL time.Duration
	cache    map[string]cacheEntry
	mu       sync.RWMutex
	group    singleflight.Group
	logger   *zap.Logger
}

// NewDNSResolver creates a resolver for server ("host" or "host:port"). An
// empty server means the first nameserver in /etc/resolv.conf.
func NewDNSResolver(server string, timeout, cacheTTL time.Duration, logger *zap.Logger) (*DNSResolver, error) {
	if server == "" {
		conf, err := dns.ClientConfigFromFile(resolvConf)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", resolvConf, err)
		}
		if len(conf.Servers) == 0 {
			return nil, fmt.Errorf("no nameservers in %s", resolvConf)
		}
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	} else if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}

	logger.Info("Initialized DNS resolver",
		zap.String("server", server),
		zap.Duration("timeout", timeout),
		zap.Duration("cache_ttl", cacheTTL))

	return &DNSResolver{
		server:   server,
		udp:      &dns.Client{Net: "udp", Timeout: timeout},
		tcp:      &dns.Client{Net: "tcp", Timeout: timeout},
		cacheTTL: cacheTTL,
		cache:    make(map[string]cacheEntry),
		logger:   logger,
	}, nil
}

// LookupTXT returns the TXT strings at name, one string per record with its
// character-strings joined. A non-existent name yields no records and no
// error.
func (r *DNSResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	key := strings.ToLower(dns.Fqdn(strings.TrimSpace(name)))
	if key == "." {
		return nil, fmt.Errorf("invalid lookup name %q", name)
	}

	if records, ok := r.cacheGet(key); ok {
		return records, nil
	}

	v, err, shared := r.group.Do(key, func() (any, error) {
		return r.query(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.logger.Debug("Shared in-flight TXT lookup", zap.String("name", key))
	}
	return slices.Clone(v.([]string)), nil
}

func (r *DNSResolver) query(ctx context.Context, name string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(name, dns.TypeTXT)
	m.RecursionDesired = true

	resp, _, err := r.udp.ExchangeContext(ctx, m, r.server)
	if err == nil && resp.Truncated {
		r.logger.Debug("Truncated TXT answer, retrying over TCP", zap.String("name", name))
		resp, _, err = r.tcp.ExchangeContext(ctx, m, r.server)
	}
	if err != nil {
		return nil, fmt.Errorf("TXT lookup for %s failed: %w", name, err)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		r.cacheSet(name, []string{}, r.cacheTTL)
		return []string{}, nil
	default:
		return nil, fmt.Errorf("TXT lookup for %s failed: %s", name, dns.RcodeToString[resp.Rcode])
	}

	records := []string{}
	ttl := r.cacheTTL
	for _, ans := range resp.Answer {
		txt, ok := ans.(*dns.TXT)
		if !ok {
			continue
		}
		records = append(records, strings.Join(txt.Txt, ""))
		if recTTL := time.Duration(txt.Hdr.Ttl) * time.Second; recTTL < ttl {
			ttl = recTTL
		}
	}

	r.cacheSet(name, records, ttl)
	return records, nil
}

func (r *DNSResolver) cacheGet(key string) ([]string, bool) {
	if r.cacheTTL <= 0 {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return slices.Clone(entry.records), true
}

func (r *DNSResolver) cacheSet(key string, records []string, ttl time.Duration) {
	if r.cacheTTL <= 0 || ttl <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for k, e := range r.cache {
		if now.After(e.expiresAt) {
			delete(r.cache, k)
		}
	}
	r.cache[key] = cacheEntry{records: records, expiresAt: now.Add(ttl)}
}

// NoopResolver is used when DNS lookups are disabled
type NoopResolver struct{}

// LookupTXT always fails with core.ErrLookupsDisabled
func (NoopResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	return nil, core.ErrLookupsDisabled
}
