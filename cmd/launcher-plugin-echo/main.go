// launcher-plugin-echo is a reference plugin: it echoes the search query
// back as a single result and fills it verbatim on activation. It exists as
// living documentation of the plugin half of the wire protocol; the
// repository's tests do not spawn it.
//
// Build: go build ./cmd/launcher-plugin-echo/
package main

import (
	"os"

	"github.com/opendesk/launcherd/internal/codec"
	"github.com/opendesk/launcherd/internal/wire"
)

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
			last = req.Search
			if req.Search != "" {
				stream.Emit(wire.PluginResponse{
					Kind: wire.PluginResponseAppend,
					Append: wire.PluginSearchResult{
						ID:          0,
						Name:        req.Search,
						Description: "echo: " + req.Search,
					},
				})
			}
			stream.Emit(wire.PluginResponse{Kind: wire.PluginResponseFinished})
		case wire.RequestActivate:
			stream.Emit(wire.PluginResponse{Kind: wire.PluginResponseFill, Fill: last})
		case wire.RequestComplete:
			stream.Emit(wire.PluginResponse{Kind: wire.PluginResponseFill, Fill: last})
		case wire.RequestQuit:
			stream.Emit(wire.PluginResponse{Kind: wire.PluginResponseClose})
		case wire.RequestInterrupt:
			// nothing in flight to cancel.
		case wire.RequestExit:
			return
		}
	}
}
