package probes

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/patrickmn/go-cache"

	"github.com/user/netreport/internal/model"
	"github.com/user/netreport/internal/platform"
	"github.com/user/netreport/internal/util"
)

const fallbackNameserver = "1.1.1.1:53"

// errNoName is cached for addresses without a reverse record.
var errNoName = errors.New("no name for address")

// HopResolver maps a hop address to a host name.
type HopResolver interface {
	Resolve(ctx context.Context, addr string) (string, error)
}

// GetentResolver asks the system name service through getent.
type GetentResolver struct {
	exec   Executor
	binary string
}

// NewGetentResolver creates a resolver backed by `getent hosts`.
func NewGetentResolver(exec Executor) *GetentResolver {
	return &GetentResolver{exec: exec, binary: "getent"}
}

// Resolve returns the second field of the first line getent prints.
func (r *GetentResolver) Resolve(ctx context.Context, addr string) (string, error) {
	result, err := r.exec.Run(ctx, r.binary, "hosts", addr)
	if err != nil {
		return "", err
	}

	line, _, _ := strings.Cut(strings.TrimSpace(result.Stdout), "\n")
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", fmt.Errorf("%s: %w", addr, errNoName)
	}
	return fields[1], nil
}

// DNSResolver performs PTR lookups against a nameserver.
type DNSResolver struct {
	client *dns.Client
	server string
}

// NewDNSResolver creates a PTR resolver. An empty server uses the first
// nameserver in /etc/resolv.conf, falling back to a public one.
func NewDNSResolver(server string, timeout time.Duration) *DNSResolver {
	if server == "" {
		server = systemNameserver()
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &DNSResolver{
		client: &dns.Client{Timeout: timeout},
		server: server,
	}
}

func systemNameserver() string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return fallbackNameserver
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port)
}

// Server returns the nameserver address queried.
func (r *DNSResolver) Server() string {
	return r.server
}

// Resolve looks up the PTR record for addr.
func (r *DNSResolver) Resolve(ctx context.Context, addr string) (string, error) {
	arpa, err := dns.ReverseAddr(addr)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)
	msg.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return "", fmt.Errorf("ptr lookup for %s failed: %w", addr, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("ptr lookup for %s: %s: %w", addr, dns.RcodeToString[resp.Rcode], errNoName)
	}

	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", fmt.Errorf("%s: %w", addr, errNoName)
}

// CachedResolver memoizes another resolver, including failures.
type CachedResolver struct {
	next  HopResolver
	cache *cache.Cache
}

type cachedName struct {
	name string
	err  error
}

// NewCachedResolver wraps next with an expiring cache.
func NewCachedResolver(next HopResolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Resolve returns a cached answer or asks the wrapped resolver.
func (r *CachedResolver) Resolve(ctx context.Context, addr string) (string, error) {
	if v, ok := r.cache.Get(addr); ok {
		entry := v.(cachedName)
		return entry.name, entry.err
	}

	name, err := r.next.Resolve(ctx, addr)
	// Cancellation says nothing about the address.
	if ctx.Err() == nil {
		r.cache.SetDefault(addr, cachedName{name: name, err: err})
	}
	return name, err
}

// NewResolver picks a resolver for the configured strategy. Auto uses getent
// on Linux and DNS elsewhere.
func NewResolver(strategy string, family platform.Family, exec Executor, server string, timeout, ttl time.Duration) (HopResolver, error) {
	var base HopResolver
	switch strategy {
	case util.ResolverGetent:
		base = NewGetentResolver(exec)
	case util.ResolverDNS:
		base = NewDNSResolver(server, timeout)
	case util.ResolverAuto, "":
		if family == platform.FamilyLinux {
			base = NewGetentResolver(exec)
		} else {
			base = NewDNSResolver(server, timeout)
		}
	default:
		return nil, fmt.Errorf("unknown resolver %q", strategy)
	}

	if ttl <= 0 {
		return base, nil
	}
	return NewCachedResolver(base, ttl), nil
}

// ResolveHops names every responding hop in path order. Addresses that do
// not resolve are left out.
func ResolveHops(ctx context.Context, resolver HopResolver, hops []model.TracerouteHop) []model.HopName {
	var names []model.HopName
	for _, addr := range RespondingAddresses(hops) {
		if ctx.Err() != nil {
			break
		}
		name, err := resolver.Resolve(ctx, addr)
		if err != nil || name == "" {
			util.Debug("No name for hop %s: %v", addr, err)
			continue
		}
		names = append(names, model.HopName{Address: addr, Name: name})
	}
	return names
}
