// Command lsp runs the diagnostics-only language server (SPEC_FULL.md
// §2), wiring github.com/tliron/commonlog for its logging sink and
// github.com/tliron/glsp/server for the stdio protocol loop. Grounded
// on the teacher's cmd/kanso-lsp/main.go wiring shape.
package main

import (
	"log"
	"os"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"tinyssa/internal/compilation"
	"tinyssa/internal/lsp"
)

const serverName = "tinyssa-lsp"

func main() {
	commonlog.Configure(1, nil)

	comp := compilation.New("", 6, compilation.Info)
	h := lsp.NewHandler(comp)

	handler := protocol.Handler{
		Initialize:            h.Initialize,
		Initialized:           h.Initialized,
		Shutdown:              h.Shutdown,
		TextDocumentDidOpen:   h.TextDocumentDidOpen,
		TextDocumentDidChange: h.TextDocumentDidChange,
		TextDocumentDidClose:  h.TextDocumentDidClose,
	}

	s := server.NewServer(&handler, serverName, false)
	log.Println("starting", serverName)
	if err := s.RunStdio(); err != nil {
		log.Println("lsp server error:", err)
		os.Exit(1)
	}
}
