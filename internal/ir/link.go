package ir

import "strings"

// Plugin tags carried by an origin link record.
const (
	PluginOrigin = "+plugin/origin"
	PluginPull   = "+plugin/origin/pull"
	PluginPush   = "+plugin/origin/push"
	PluginTunnel = "+plugin/origin/tunnel"
)

// OriginLink is one configured, one-directional replication relationship.
//
// The record lives in origin Origin and points at the remote endpoint URL.
// Config.Local is the alias the remote's data is given beneath Origin, and
// Config.Remote is the origin on the remote side that the link talks to,
// i.e. the name the remote uses for the side we are on.
type OriginLink struct {
	URL    string        `json:"url"`
	Origin string        `json:"origin,omitempty"`
	Config OriginConfig  `json:"config"`
	Pull   *PullConfig   `json:"pull,omitempty"`
	Push   *PushConfig   `json:"push,omitempty"`
	Tunnel *TunnelConfig `json:"tunnel,omitempty"`
}

// Endpoint returns URL without a trailing slash, the form used for matching.
func (l OriginLink) Endpoint() string {
	return TrimEndpoint(l.URL)
}

// IsPush reports whether l is an outbound push relationship.
func (l OriginLink) IsPush() bool {
	return l.Push != nil
}

// TrimEndpoint removes a single trailing slash from a network endpoint.
func TrimEndpoint(url string) string {
	return strings.TrimSuffix(url, "/")
}

// OriginConfig is the "+plugin/origin" shape.
type OriginConfig struct {
	Local  string `json:"local,omitempty"`
	Remote string `json:"remote,omitempty"`
	Proxy  string `json:"proxy,omitempty"`
}

// PullConfig is the "+plugin/origin/pull" shape.
type PullConfig struct {
	Interval  string `json:"interval,omitempty"`
	Query     string `json:"query,omitempty"`
	BatchSize int64  `json:"batchSize,omitempty"`
}

// PushConfig is the "+plugin/origin/push" shape.
type PushConfig struct {
	Query             string `json:"query,omitempty"`
	BatchSize         int64  `json:"batchSize,omitempty"`
	CheckRemoteCursor bool   `json:"checkRemoteCursor,omitempty"`
}

// TunnelConfig is the "+plugin/origin/tunnel" shape: a secure channel
// endpoint and the login to use on it.
type TunnelConfig struct {
	SSHHost    string `json:"sshHost,omitempty"`
	RemoteUser string `json:"remoteUser,omitempty"`
}
