// Package compiler turns raw origin link records into typed ir.OriginLink
// values. Plugin objects are checked against the closed CUE definitions in
// plugins.cue before they are decoded.
package compiler

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/tag"
)

//go:embed plugins.cue
var pluginSchema string

// pluginDefs maps each known plugin tag to its CUE definition.
var pluginDefs = map[string]string{
	ir.PluginOrigin: "#Origin",
	ir.PluginPull:   "#Pull",
	ir.PluginPush:   "#Push",
	ir.PluginTunnel: "#Tunnel",
}

// compiledSchema is plugins.cue compiled once, with each plugin's
// definition looked up. A cue.Context is not safe for concurrent use, so
// decoding holds mu.
type compiledSchema struct {
	mu   sync.Mutex
	ctx  *cue.Context
	defs map[string]cue.Value
}

var loadSchema = sync.OnceValues(func() (*compiledSchema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(pluginSchema, cue.Filename("plugins.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("plugin schema: %w", err)
	}
	defs := make(map[string]cue.Value, len(pluginDefs))
	for key, def := range pluginDefs {
		d := v.LookupPath(cue.ParsePath(def))
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("plugin schema %s: %w", def, err)
		}
		defs[key] = d
	}
	return &compiledSchema{ctx: ctx, defs: defs}, nil
})

// CompileOriginLink validates and decodes one origin link record.
//
// plugins is keyed by plugin tag. "+plugin/origin" is required. Other tags
// under plugin/origin must be one of the known shapes; anything else in that
// namespace is rejected. Tags outside plugin/origin belong to other
// capabilities and are ignored.
func CompileOriginLink(url, origin string, plugins map[string]json.RawMessage) (*ir.OriginLink, error) {
	if strings.TrimSpace(url) == "" {
		return nil, &CompileError{Field: "url", Message: "url is required"}
	}
	if !tag.ValidOrigin(origin) {
		return nil, &CompileError{Field: "origin", Message: fmt.Sprintf("invalid origin %q", origin)}
	}
	if _, ok := plugins[ir.PluginOrigin]; !ok {
		return nil, &CompileError{Field: ir.PluginOrigin, Message: "plugin is required"}
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}
	schema.mu.Lock()
	defer schema.mu.Unlock()

	link := &ir.OriginLink{URL: url, Origin: origin}

	keys := make([]string, 0, len(plugins))
	for k := range plugins {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if !tag.IsPlugin(key, "plugin/origin") {
			continue
		}
		def, ok := schema.defs[key]
		if !ok {
			return nil, &CompileError{Field: key, Message: "unknown origin plugin"}
		}

		var dst any
		switch key {
		case ir.PluginOrigin:
			dst = &link.Config
		case ir.PluginPull:
			link.Pull = &ir.PullConfig{}
			dst = link.Pull
		case ir.PluginPush:
			link.Push = &ir.PushConfig{}
			dst = link.Push
		case ir.PluginTunnel:
			link.Tunnel = &ir.TunnelConfig{}
			dst = link.Tunnel
		}
		if err := decodePlugin(schema.ctx, def, key, plugins[key], dst); err != nil {
			return nil, err
		}
	}

	return link, nil
}

// decodePlugin unifies raw with the definition def and decodes the result
// into dst. An empty payload is the empty object.
func decodePlugin(ctx *cue.Context, def cue.Value, field string, raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	data := ctx.CompileBytes(raw, cue.Filename(field))
	if err := data.Err(); err != nil {
		return formatCUEError(field, err)
	}

	v := def.Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(field, err)
	}
	if err := v.Decode(dst); err != nil {
		return formatCUEError(field, err)
	}
	return nil
}
