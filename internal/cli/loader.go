package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/refmesh/internal/compiler"
	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/resolve"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeReadFailed  = "E002" // File read error
	ErrCodeParseFailed = "E003" // YAML/JSON parse error
	ErrCodeLinkInvalid = "E004" // Link plugins rejected by the compiler
	ErrCodeNotFound    = "E005" // Path, link or record not found
	ErrCodeStoreFailed = "E006" // Database error
	ErrCodeConflict    = "E007" // Merge conflict
	ErrCodeInvalid     = "E008" // Link set fails validation
)

// LoadError represents an error that occurred while loading an input file.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// asLoadError returns err's code and message, defaulting to ErrCodeGeneric.
func asLoadError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// LoadLinksFile reads and parses a links.yaml document without compiling
// its plugins.
func LoadLinksFile(path string) (*compiler.LinksFile, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	f, err := compiler.ParseLinksFile(data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error(), Err: err}
	}
	return f, nil
}

// LoadSnapshot reads a links.yaml document and compiles every link.
// The first link the compiler rejects fails the load.
func LoadSnapshot(path string) (resolve.Snapshot, error) {
	f, err := LoadLinksFile(path)
	if err != nil {
		return resolve.Snapshot{}, err
	}
	snap, err := f.Snapshot()
	if err != nil {
		return resolve.Snapshot{}, &LoadError{Code: ErrCodeLinkInvalid, Message: err.Error(), Err: err}
	}
	return snap, nil
}

// LoadRefs reads refs from a YAML or JSON file: either a single ref or a
// list of them. "-" reads stdin.
func LoadRefs(path string, stdin io.Reader) ([]ir.Ref, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading stdin: %v", err), Err: err}
		}
	} else if data, err = readInput(path); err != nil {
		return nil, err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("%s: %v", path, err), Err: err}
	}
	if len(node.Content) == 0 {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("%s: no refs", path)}
	}

	var refs []ir.Ref
	if node.Content[0].Kind == yaml.SequenceNode {
		err = node.Content[0].Decode(&refs)
	} else {
		var ref ir.Ref
		err = node.Content[0].Decode(&ref)
		refs = []ir.Ref{ref}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("%s: %v", path, err), Err: err}
	}
	for i, ref := range refs {
		if ref.URL == "" {
			return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("%s: refs[%d]: url is required", path, i)}
		}
	}
	return refs, nil
}

// LoadRef reads exactly one ref.
func LoadRef(path string) (ir.Ref, error) {
	refs, err := LoadRefs(path, bytes.NewReader(nil))
	if err != nil {
		return ir.Ref{}, err
	}
	if len(refs) != 1 {
		return ir.Ref{}, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("%s: want one ref, got %d", path, len(refs))}
	}
	return refs[0], nil
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("file not found: %s", path), Err: err}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", path, err), Err: err}
	}
	return data, nil
}
