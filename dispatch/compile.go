package dispatch

import (
	"fmt"
	"strings"
)

// batchUnit is one outbound execute envelope: the compiled code and the
// calls it answers. The reply array is index-aligned with calls, and that
// positional contract is the sole correlation mechanism.
type batchUnit struct {
	code  string
	calls []*Call
}

// compile turns a batch group into one script whose evaluation returns an
// array with one element per call, in extraction order. Group members are
// never dropped, reordered or deduplicated.
func compile(group []*Call) (*batchUnit, error) {
	if len(group) == 0 {
		return nil, fmt.Errorf("empty batch group")
	}

	var b strings.Builder
	b.WriteString("return [")
	for i, c := range group {
		if IsExecuteMethod(c.method) {
			return nil, fmt.Errorf("%s cannot be bundled into a batch", c.method)
		}
		expr, err := c.serialize()
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(expr)
	}
	b.WriteString("];")

	return &batchUnit{code: b.String(), calls: group}, nil
}
