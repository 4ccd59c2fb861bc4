// =============================================================================
// Freight PO Editor - CT-e Attribute Extractor
// =============================================================================
//
// This module reads the two fields the PO rule depends on from a CT-e XML
// document, plus the CT number used for labeling:
//
//   <cteProc xmlns="http://www.portalfiscal.inf.br/cte">
//     <CTe>
//       <infCte>
//         <ide>
//           <nCT>1234</nCT>                 <!-- label only -->
//           <UFEnv>SP</UFEnv>               <!-- region -->
//         </ide>
//         <rem>
//           <CNPJ>33163908010561</CNPJ>     <!-- payer tax ID -->
//         </rem>
//       </infCte>
//     </CTe>
//   </cteProc>
//
// The document is streamed token by token and decoding stops as soon as the
// region and the tax ID are known. Anything after that point is never looked
// at, so a document with a broken tail still yields its attributes.
//
// =============================================================================

package cte

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/SideneiSilva/editor-po-barry/internal/rules"
)

// Namespace is the CT-e schema namespace all looked-up elements live in.
const Namespace = "http://www.portalfiscal.inf.br/cte"

const (
	fieldRegion   = "UFEnv"
	fieldTaxID    = "rem/CNPJ"
	fieldCTNumber = "nCT"
)

// Attributes are the values read from one document.
type Attributes struct {
	// Region is the UFEnv value, trimmed and upper-cased.
	Region string

	// TaxID is the sender CNPJ with every non-digit removed.
	TaxID string

	// CTNumber is the nCT value. It is never used for rule decisions.
	CTNumber string
}

// Extract reads the region and payer tax ID from raw CT-e content.
//
// RETURNS:
//   - The attributes.
//   - An *ExtractionError if either field is absent or empty, or if the
//     content cannot be decoded before both were found.
func Extract(content []byte) (Attributes, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.CharsetReader = charset.NewReaderLabel

	var attrs Attributes
	var stack []xml.Name
	var text strings.Builder
	var capture string
	var captureDepth int
	var regionSeen, taxSeen, ctNumberSeen bool

	for !(regionSeen && taxSeen) {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			field := fieldRegion
			if regionSeen {
				field = fieldTaxID
			}
			return attrs, &ExtractionError{Field: field, Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			parent := xml.Name{}
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			stack = append(stack, t.Name)

			if capture != "" || t.Name.Space != Namespace {
				continue
			}
			switch {
			case t.Name.Local == "UFEnv" && !regionSeen:
				capture = fieldRegion
			case t.Name.Local == "CNPJ" && !taxSeen && parent.Space == Namespace && parent.Local == "rem":
				capture = fieldTaxID
			case t.Name.Local == "nCT" && !ctNumberSeen:
				capture = fieldCTNumber
			}
			if capture != "" {
				captureDepth = len(stack)
				text.Reset()
			}

		case xml.CharData:
			if capture != "" {
				text.Write(t)
			}

		case xml.EndElement:
			if capture != "" && len(stack) == captureDepth {
				value := strings.TrimSpace(text.String())
				switch capture {
				case fieldRegion:
					attrs.Region = rules.NormalizeRegion(value)
					regionSeen = true
				case fieldTaxID:
					attrs.TaxID = rules.NormalizeTaxID(value)
					taxSeen = true
				case fieldCTNumber:
					attrs.CTNumber = value
					ctNumberSeen = true
				}
				capture = ""
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if attrs.Region == "" {
		return attrs, &ExtractionError{Field: fieldRegion}
	}
	if attrs.TaxID == "" {
		return attrs, &ExtractionError{Field: fieldTaxID}
	}
	return attrs, nil
}
