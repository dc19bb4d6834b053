// launcher-plugin-calc is a reference plugin: an isolate-query calculator
// matching queries of the form "=<a><op><b>" (e.g. "=1+2"). It is living
// documentation of the plugin half of the wire protocol; the repository's
// tests do not spawn it.
//
// Build: go build ./cmd/launcher-plugin-calc/
package main

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/opendesk/launcherd/internal/codec"
	"github.com/opendesk/launcherd/internal/wire"
)

var exprPattern = regexp.MustCompile(`^=\s*(-?\d+(?:\.\d+)?)\s*([+\-*/])\s*(-?\d+(?:\.\d+)?)\s*$`)

func main() {
	stream := codec.NewStream(os.Stdin, os.Stdout)
	last := ""

	for {
		var req wire.Request
		if err := stream.ReadValue(&req); err != nil {
			return
		}

		switch req.Kind {
		case wire.RequestSearch:
			last = ""
			if result, ok := evaluate(req.Search); ok {
				last = result
				stream.Emit(wire.PluginResponse{
					Kind: wire.PluginResponseAppend,
					Append: wire.PluginSearchResult{
						ID:   0,
						Name: result,
					},
				})
			}
			stream.Emit(wire.PluginResponse{Kind: wire.PluginResponseFinished})
		case wire.RequestActivate, wire.RequestComplete:
			stream.Emit(wire.PluginResponse{Kind: wire.PluginResponseFill, Fill: "= " + last})
		case wire.RequestQuit:
			stream.Emit(wire.PluginResponse{Kind: wire.PluginResponseClose})
		case wire.RequestInterrupt:
			// evaluation is synchronous; nothing to cancel.
		case wire.RequestExit:
			return
		}
	}
}

// evaluate parses "=<a><op><b>" and reports the formatted result. It only
// recognizes this one isolate shape. plugin.toml sets no query.regex, so the
// registry also routes other queries here; those yield no result.
func evaluate(query string) (string, bool) {
	m := exprPattern.FindStringSubmatch(strings.TrimSpace(query))
	if m == nil {
		return "", false
	}
	a, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return "", false
	}
	b, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return "", false
	}

	var result float64
	switch m[2] {
	case "+":
		result = a + b
	case "-":
		result = a - b
	case "*":
		result = a * b
	case "/":
		if b == 0 {
			return "", false
		}
		result = a / b
	}

	return strconv.FormatFloat(result, 'g', -1, 64), true
}
