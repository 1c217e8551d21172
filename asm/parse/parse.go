// Package parse deserializes a JSON-encoded stack-asm listing into the
// asm/model data model. It is a thin layer over
// model.Assembly's custom JSON (un)marshaling: all the real structure
// lives in the model.
package parse

import (
	"encoding/json"
	"fmt"

	"github.com/mna/cfront/asm/model"
)

// Assembly parses b, a JSON-encoded stack-asm listing for one code object
//, into an *model.Assembly.
func Assembly(b []byte) (*model.Assembly, error) {
	var asm model.Assembly
	if err := json.Unmarshal(b, &asm); err != nil {
		return nil, fmt.Errorf("asm/parse: %w", err)
	}
	return &asm, nil
}
