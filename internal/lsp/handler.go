// Package lsp implements a diagnostics-only Language Server Protocol
// surface (SPEC_FULL.md §2 domain stack: a supplemented feature beyond
// spec.md's own scope, wiring github.com/tliron/glsp and
// github.com/tliron/commonlog). It runs the front end and IR
// constructor on every open/change notification and republishes
// whatever errkit diagnostics come back; it does not offer completion,
// semantic tokens, or any other editor feature.
//
// Grounded on the teacher's internal/lsp/handler.go (mutex-protected
// per-path content map, Initialize/DidOpen/DidChange/DidClose handler
// shape, sendDiagnosticNotification), stripped of everything tied to
// the teacher's EVM-contract AST and semantic-token legend, since
// nothing in this language's spec calls for those surfaces.
package lsp

import (
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"tinyssa/internal/compilation"
	"tinyssa/internal/errkit"
	"tinyssa/internal/ir"
	"tinyssa/internal/parser"
	"tinyssa/internal/symtab"
)

// Handler implements the LSP server handlers for this language.
type Handler struct {
	mu      sync.RWMutex
	content map[string]string
	comp    *compilation.Compilation
}

func NewHandler(comp *compilation.Compilation) *Handler {
	return &Handler{content: make(map[string]string), comp: comp}
}

func (h *Handler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	h.comp.Logger.Infof("LSP Initialize")
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
		},
	}, nil
}

func (h *Handler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (h *Handler) Shutdown(ctx *glsp.Context) error {
	return nil
}

func (h *Handler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	return h.check(ctx, params.TextDocument.URI)
}

func (h *Handler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	return h.check(ctx, params.TextDocument.URI)
}

func (h *Handler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	h.mu.Lock()
	delete(h.content, path)
	h.mu.Unlock()
	return nil
}

// check runs the parser, symbol table and IR constructor over uri's
// current file contents and republishes whatever diagnostics result
// (an empty slice clears previously reported ones).
func (h *Handler) check(ctx *glsp.Context, uri protocol.DocumentUri) error {
	path, err := uriToPath(uri)
	if err != nil {
		return err
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.content[path] = string(source)
	h.mu.Unlock()

	var diags []*errkit.Diagnostic
	tree, parseDiag := parser.ParseSource(path, string(source))
	if parseDiag != nil {
		diags = append(diags, parseDiag)
	} else {
		symbols, symDiags := symtab.Build(tree)
		diags = append(diags, symDiags...)
		if len(symDiags) == 0 {
			_, irDiags := ir.Build(h.comp, tree, symbols)
			diags = append(diags, irDiags...)
		}
	}

	publishDiagnostics(ctx, uri, path, string(source), diags)
	return nil
}

func publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, path, source string, diags []*errkit.Diagnostic) {
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		line := uint32(0)
		if d.Position.Line > 0 {
			line = uint32(d.Position.Line - 1)
		}
		col := uint32(0)
		if d.Position.Column > 0 {
			col = uint32(d.Position.Column - 1)
		}
		length := uint32(d.Length)
		if length == 0 {
			length = 1
		}
		sev := protocol.DiagnosticSeverityError
		out = append(out, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: line, Character: col},
				End:   protocol.Position{Line: line, Character: col + length},
			},
			Severity: &sev,
			Source:   strPtr(string(d.Kind)),
			Message:  d.Message,
		})
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: out,
	})
}

func uriToPath(rawURI protocol.DocumentUri) (string, error) {
	u, err := url.Parse(string(rawURI))
	if err != nil {
		return "", err
	}
	path := u.Path
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path), nil
}

func ptrBool(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }
func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
