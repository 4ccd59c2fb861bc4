package cte

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/SideneiSilva/editor-po-barry/internal/types"
)

// rootClose matches the closing tag of the CTe element, with or without a
// namespace prefix. The fallback PO is inserted right before the last one.
var rootClose = regexp.MustCompile(`</(?:([A-Za-z_][\w.-]*):)?CTe\s*>`)

// Mutation is the result of stamping a PO into a document.
type Mutation struct {
	// Content is the rewritten document.
	Content []byte

	// Previous is the first PO token found, or types.NotFound.
	Previous string

	// New is the stamped PO.
	New types.POCode

	// Replaced is the number of tokens rewritten.
	Replaced int

	// Inserted is true when no token existed and an xObs element was added.
	Inserted bool
}

// Mutate rewrites every PO token in content to po. The content is treated
// as text, not parsed, so documents that do not validate are still stamped
// as long as the tokens or the closing CTe tag can be found.
//
// When no token exists, <xObs>po</xObs> is inserted before the closing CTe
// tag. A document without that tag is rejected with an *ExtractionError
// wrapping ErrNoRootMarker.
func Mutate(content []byte, po types.POCode) (Mutation, error) {
	if !po.Valid() {
		return Mutation{}, fmt.Errorf("refusing to stamp invalid PO code %q", po)
	}

	m := Mutation{New: po, Previous: types.NotFound}

	if first := types.POPattern.Find(content); first != nil {
		m.Previous = string(first)
		m.Replaced = len(types.POPattern.FindAllIndex(content, -1))
		m.Content = types.POPattern.ReplaceAllLiteral(content, []byte(po))
		return m, nil
	}

	markers := rootClose.FindAllSubmatchIndex(content, -1)
	if len(markers) == 0 {
		return Mutation{}, &ExtractionError{Field: "CTe", Err: ErrNoRootMarker}
	}
	last := markers[len(markers)-1]

	tag := "xObs"
	if last[2] >= 0 {
		tag = string(content[last[2]:last[3]]) + ":xObs"
	}
	fragment := fmt.Sprintf("<%s>%s</%s>", tag, po, tag)

	var buf bytes.Buffer
	buf.Grow(len(content) + len(fragment))
	buf.Write(content[:last[0]])
	buf.WriteString(fragment)
	buf.Write(content[last[0]:])

	m.Content = buf.Bytes()
	m.Inserted = true
	return m, nil
}
