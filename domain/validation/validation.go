// Package validation checks a field tree before it is compiled.
// Every violation is collected; nothing short-circuits.
package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/artpar/dinogen/domain/datatype"
	"github.com/artpar/dinogen/domain/field"
)

// Violation codes.
const (
	CodeRequired    = "required"
	CodeWhitespace  = "whitespace"
	CodeNotANumber  = "not_a_number"
	CodeSchemaTitle = "schema_title"
	CodeSchemaDesc  = "schema_description"
)

// Violation is one user-correctable problem.
type Violation struct {
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Violations is an ordered list of problems that implements error.
type Violations []Violation

func (v Violations) Error() string {
	msgs := make([]string, len(v))
	for i, x := range v {
		msgs[i] = x.Message
	}
	return strings.Join(msgs, " ")
}

// Messages returns the human-readable messages in order.
func (v Violations) Messages() []string {
	out := make([]string, len(v))
	for i, x := range v {
		out[i] = x.Message
	}
	return out
}

// Submission validates the schema header and every field.
func Submission(title, description string, nodes []*field.Node, catalog datatype.Catalog) Violations {
	var out Violations
	if strings.TrimSpace(title) == "" {
		out = append(out, Violation{Code: CodeSchemaTitle, Message: "Schema Title is required."})
	}
	if strings.TrimSpace(description) == "" {
		out = append(out, Violation{Code: CodeSchemaDesc, Message: "Schema Description is required."})
	}
	return append(out, Fields(nodes, catalog)...)
}

// Fields walks the tree depth-first and reports per-field problems.
// Paths read "Row 1 > Row 2" from the root down.
func Fields(nodes []*field.Node, catalog datatype.Catalog) Violations {
	var out Violations
	walk(nodes, "", catalog, &out)
	return out
}

func walk(nodes []*field.Node, parent string, catalog datatype.Catalog, out *Violations) {
	for i, n := range nodes {
		path := fmt.Sprintf("Row %d", i+1)
		if parent != "" {
			path = parent + " > " + path
		}
		check(n, path, out)

		switch catalog.Resolve(n.DataType) {
		case datatype.TypeObject:
			walk(n.Properties, path, catalog, out)
		case datatype.TypeArray:
			if n.Items != nil {
				walk([]*field.Node{n.Items}, path, catalog, out)
			}
		}
	}
}

func check(n *field.Node, path string, out *Violations) {
	if n.KeyTitle == "" {
		*out = append(*out, Violation{Code: CodeRequired, Path: path,
			Message: "Key Title is required for " + path + "."})
	} else if strings.IndexFunc(n.KeyTitle, unicode.IsSpace) >= 0 {
		*out = append(*out, Violation{Code: CodeWhitespace, Path: path,
			Message: "Key Title cannot contain spaces in " + path + "."})
	}

	if n.DataType == "" {
		*out = append(*out, Violation{Code: CodeRequired, Path: path,
			Message: "Data Type is required for " + path + "."})
	}

	if n.DataType == datatype.AutoIncrement {
		start := strings.TrimSpace(n.Description)
		if start == "" {
			*out = append(*out, Violation{Code: CodeRequired, Path: path,
				Message: "Start Value is required for " + path + " (autoIncrement)."})
		} else if !IsNumeric(start) {
			*out = append(*out, Violation{Code: CodeNotANumber, Path: path,
				Message: "Start Value must be a number in " + path + " (autoIncrement)."})
		}
	}
}

// IsNumeric reports whether s reads as a finite decimal, a signed
// Infinity, or a 0x/0o/0b prefixed integer. s must already be trimmed.
func IsNumeric(s string) bool {
	switch s {
	case "Infinity", "+Infinity", "-Infinity":
		return true
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			_, err := strconv.ParseUint(s[2:], base, 64)
			return err == nil || isRange(err)
		}
	}
	if strings.ContainsAny(s, "_xXpP") {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return isRange(err)
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func isRange(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}
