// Package ir provides the data model shared by all refmesh packages.
//
// This package contains types and serialization only. Every other internal
// package imports ir; ir imports nothing internal.
//
// Key design constraints:
//   - A ref's identity is (URL, Origin), see RefKey.
//   - Plugin data is a sealed Value tree with no float variant.
//   - Canonical serialization (CanonicalRef, MarshalCanonical) excludes
//     bookkeeping timestamps and is the only input to VersionToken.
//   - Origin links are typed per plugin shape; loosely typed plugin JSON is
//     compiled into OriginLink by internal/compiler.
package ir
