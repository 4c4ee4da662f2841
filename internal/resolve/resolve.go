// Package resolve derives origin address tables from a snapshot of origin
// links.
//
// Every table is a pure function of the snapshot and is recomputed in full;
// there is no incremental update. Callers swap whole *Tables values so all
// tables observed together come from the same snapshot.
package resolve

import (
	"slices"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/tag"
)

// Snapshot is the complete input to Resolve.
type Snapshot struct {
	// Origin is the local origin alias ("" for the default origin).
	Origin string

	// API is the local instance's own network endpoint.
	API string

	// Links is every origin link currently known, in load order.
	// Push relationships are the links with a push config.
	Links []ir.OriginLink
}

// Tables holds the derived address tables for one snapshot.
// Treat a *Tables as immutable once returned.
type Tables struct {
	// Origin is the local origin alias the tables were built for.
	Origin string

	// List is the local alias followed by the sub-alias of every link rooted
	// at the local origin, deduplicated in first-seen order.
	List []string

	// Lookup maps alias to network endpoint. Always has a self entry.
	Lookup map[string]string

	// ReverseLookup maps a remote alias to the alias that remote uses for us.
	// Populated only for mutually replicating links.
	ReverseLookup map[string]string

	// TunnelLookup maps alias to its tunnel descriptor.
	TunnelLookup map[string]ir.TunnelConfig

	// OriginMap maps a relay alias to (nested alias -> local alias) for
	// origins that are reachable both through the relay and directly.
	OriginMap map[string]map[string]string
}

// Resolve computes all tables for s.
func Resolve(s Snapshot) *Tables {
	return &Tables{
		Origin:        s.Origin,
		List:          visibleOrigins(s),
		Lookup:        forwardLookup(s),
		ReverseLookup: reverseLookup(s),
		TunnelLookup:  tunnelLookup(s),
		OriginMap:     originMap(s),
	}
}

// Alias returns the alias under which link's remote data is known locally.
func Alias(link ir.OriginLink) string {
	return tag.SubOrigin(link.Origin, link.Config.Local)
}

func visibleOrigins(s Snapshot) []string {
	list := []string{s.Origin}
	for _, link := range s.Links {
		if link.Origin != s.Origin {
			continue
		}
		alias := tag.SubOrigin(s.Origin, link.Config.Local)
		if !slices.Contains(list, alias) {
			list = append(list, alias)
		}
	}
	return list
}

func forwardLookup(s Snapshot) map[string]string {
	lookup := make(map[string]string, len(s.Links)+1)
	for _, link := range s.Links {
		lookup[Alias(link)] = link.URL
	}
	lookup[s.Origin] = s.API
	return lookup
}

func tunnelLookup(s Snapshot) map[string]ir.TunnelConfig {
	tunnels := make(map[string]ir.TunnelConfig)
	for _, link := range s.Links {
		if link.Tunnel == nil {
			continue
		}
		tunnels[Alias(link)] = *link.Tunnel
	}
	return tunnels
}

// SelfAliases maps every endpoint by which the local instance is reachable to
// the origin alias it answers as there. The local API always maps to the
// local origin; push links rooted at the local origin add the endpoints they
// target under the name the remote side uses. The self entry is never
// overwritten.
func SelfAliases(s Snapshot) map[string]string {
	self := map[string]string{ir.TrimEndpoint(s.API): s.Origin}
	for _, link := range s.Links {
		if !link.IsPush() || link.Origin != s.Origin {
			continue
		}
		endpoint := link.Endpoint()
		if _, ok := self[endpoint]; ok {
			continue
		}
		self[endpoint] = link.Config.Remote
	}
	return self
}

// reverseLookup keeps links that replicate our local origin: their endpoint
// resolves to the local origin through SelfAliases and they query that same
// origin remotely. Later links overwrite earlier ones with the same Origin.
func reverseLookup(s Snapshot) map[string]string {
	self := SelfAliases(s)
	reverse := make(map[string]string)
	for _, link := range s.Links {
		if link.Origin == "" || link.Config.Local == "" {
			continue
		}
		alias, ok := self[link.Endpoint()]
		if !ok || alias != s.Origin || link.Config.Remote != s.Origin {
			continue
		}
		reverse[link.Origin] = link.Config.Local
	}
	return reverse
}

// originMap finds, for each relay R rooted at the local origin, the links N
// that R itself holds whose endpoint we also link to directly as M. Items R
// relays from N can then be addressed as M instead of through R.
func originMap(s Snapshot) map[string]map[string]string {
	result := make(map[string]map[string]string)
	for i, relay := range s.Links {
		if relay.Origin != s.Origin {
			continue
		}
		relayAlias := tag.SubOrigin(s.Origin, relay.Config.Local)
		nested := make(map[string]string)
		for j, other := range s.Links {
			if j == i || other.Origin != relayAlias {
				continue
			}
			direct, ok := findDirect(s, other.Endpoint())
			if !ok {
				continue
			}
			nested[other.Config.Local] = direct.Config.Local
		}
		if len(nested) > 0 {
			result[relay.Config.Local] = nested
		}
	}
	return result
}

func findDirect(s Snapshot, endpoint string) (ir.OriginLink, bool) {
	for _, link := range s.Links {
		if link.Origin == s.Origin && link.Endpoint() == endpoint {
			return link, true
		}
	}
	return ir.OriginLink{}, false
}

// Translate maps an origin nested behind relay to the local alias of a
// direct link to the same endpoint, if one exists.
func (t *Tables) Translate(relay, nested string) (string, bool) {
	m, ok := t.OriginMap[relay]
	if !ok {
		return "", false
	}
	local, ok := m[nested]
	return local, ok
}

// Reverse returns the alias the remote known as alias uses for us.
func (t *Tables) Reverse(alias string) (string, bool) {
	name, ok := t.ReverseLookup[alias]
	return name, ok
}

// Endpoint returns the network endpoint for alias.
func (t *Tables) Endpoint(alias string) (string, bool) {
	url, ok := t.Lookup[alias]
	return url, ok
}

// Tunnel returns the tunnel descriptor for alias.
func (t *Tables) Tunnel(alias string) (ir.TunnelConfig, bool) {
	tunnel, ok := t.TunnelLookup[alias]
	return tunnel, ok
}

// Visible reports whether alias is in the visible origin list.
func (t *Tables) Visible(alias string) bool {
	return slices.Contains(t.List, alias)
}
