package cli

import "strings"

// OutputFormat represents the output format type.
type OutputFormat string

const (
	OutputFormatTable    OutputFormat = "table"
	OutputFormatJSON     OutputFormat = "json"
	OutputFormatJSONPath OutputFormat = "jsonpath"
)

// OutputFlags provides output formatting flags.
type OutputFlags struct {
	Output string `short:"o" help:"Output format: table, json, jsonpath=EXPR." default:"table"`
}

// Format returns the base format type.
func (f *OutputFlags) Format() OutputFormat {
	switch {
	case f.Output == "json":
		return OutputFormatJSON
	case strings.HasPrefix(f.Output, "jsonpath=") && len(f.Output) > len("jsonpath="):
		return OutputFormatJSONPath
	default:
		return OutputFormatTable
	}
}

// JSONPathExpr returns the expression of jsonpath=EXPR, or "".
func (f *OutputFlags) JSONPathExpr() string {
	expr, _ := strings.CutPrefix(f.Output, "jsonpath=")
	if expr == f.Output {
		return ""
	}
	return expr
}
