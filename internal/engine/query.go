package engine

import (
	"fmt"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/queryir"
)

// ActionSkipped is reported by IngestBatch for refs outside the link's
// pull query. Nothing is written for them.
const ActionSkipped Action = "skipped"

// PullQuery returns the query selecting which fetched refs a pull over
// link stores. A link without a pull query selects everything. The query
// is written in the remote's terms and is matched against refs as fetched.
func PullQuery(link ir.OriginLink) (queryir.Query, error) {
	if link.Pull == nil {
		return queryir.All{}, nil
	}
	return linkQuery("pull", link.Pull.Query)
}

// PushQuery returns the query selecting which local refs are pushed over
// link. A link without a push query selects everything.
func PushQuery(link ir.OriginLink) (queryir.Query, error) {
	if link.Push == nil {
		return queryir.All{}, nil
	}
	return linkQuery("push", link.Push.Query)
}

func linkQuery(kind, text string) (queryir.Query, error) {
	if text == "" {
		return queryir.All{}, nil
	}
	q, err := queryir.ParseAndValidate(text)
	if err != nil {
		return nil, fmt.Errorf("%s %w", kind, err)
	}
	return q, nil
}
