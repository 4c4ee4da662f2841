package compiler

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/resolve"
)

// LinksFile is the links.yaml document:
//
//	local:
//	  origin: "@home"
//	  api: https://home.example
//	links:
//	  - origin: "@home"
//	    url: https://remote.example
//	    plugins:
//	      +plugin/origin: {local: "@remote"}
//	      +plugin/origin/pull: {interval: 5m}
type LinksFile struct {
	Local LocalConfig  `yaml:"local"`
	Links []LinkRecord `yaml:"links"`
}

// LocalConfig names the local instance.
type LocalConfig struct {
	Origin string `yaml:"origin"`
	API    string `yaml:"api"`
}

// LinkRecord is an origin link as stored, before compilation.
type LinkRecord struct {
	Origin  string               `yaml:"origin"`
	URL     string               `yaml:"url"`
	Plugins map[string]ir.Object `yaml:"plugins"`
}

// RawPlugins returns the plugin objects as canonical JSON, the form
// CompileOriginLink and the store take.
func (r LinkRecord) RawPlugins() (map[string]json.RawMessage, error) {
	raw := make(map[string]json.RawMessage, len(r.Plugins))
	for k, obj := range r.Plugins {
		if obj == nil {
			obj = ir.Object{}
		}
		data, err := ir.MarshalCanonical(obj)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", k, err)
		}
		raw[k] = data
	}
	return raw, nil
}

// Compile compiles the record into a typed link.
func (r LinkRecord) Compile() (*ir.OriginLink, error) {
	raw, err := r.RawPlugins()
	if err != nil {
		return nil, err
	}
	return CompileOriginLink(r.URL, r.Origin, raw)
}

// ParseLinksFile decodes a links.yaml document.
func ParseLinksFile(data []byte) (*LinksFile, error) {
	var f LinksFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse links: %w", err)
	}
	return &f, nil
}

// Snapshot compiles every link in f. The first invalid link aborts with an
// error naming its index.
func (f *LinksFile) Snapshot() (resolve.Snapshot, error) {
	snap := resolve.Snapshot{Origin: f.Local.Origin, API: f.Local.API}
	for i, rec := range f.Links {
		link, err := rec.Compile()
		if err != nil {
			return resolve.Snapshot{}, fmt.Errorf("links[%d]: %w", i, err)
		}
		snap.Links = append(snap.Links, *link)
	}
	return snap, nil
}
