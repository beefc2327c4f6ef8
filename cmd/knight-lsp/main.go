// Command knight-lsp is a minimal language server: it publishes lex and
// parse diagnostics on open/change and nothing else. Grounded on
// server/lsp.go's protocol.Handler wiring, trimmed to the one feature a
// prefix-notation language with no symbol table can meaningfully offer
// an editor without a much larger static-analysis surface.
package main

import (
	"os"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/knight/internal/env"
	"github.com/chazu/knight/internal/klog"
	"github.com/chazu/knight/internal/lexer"
	"github.com/chazu/knight/internal/parser"
)

const lspName = "knight-lsp"

type server struct {
	mu      sync.Mutex
	docs    map[string]string
	handler protocol.Handler
	srv     *glspserver.Server
	version string
}

func main() {
	klog.Init(0)

	s := &server{docs: make(map[string]string), version: "0.1.0"}
	s.handler = protocol.Handler{
		Initialize:            s.initialize,
		Initialized:           s.initialized,
		Shutdown:              s.shutdown,
		TextDocumentDidOpen:   s.didOpen,
		TextDocumentDidChange: s.didChange,
		TextDocumentDidClose:  s.didClose,
	}
	s.srv = glspserver.NewServer(&s.handler, lspName, false)

	if err := s.srv.RunStdio(); err != nil {
		os.Exit(1)
	}
}

func (s *server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := s.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error { return nil }

func (s *server) shutdown(ctx *glsp.Context) error { return nil }

func (s *server) didOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text
	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()
	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *server) didChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI
	if len(params.ContentChanges) == 0 {
		return nil
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	whole, ok := last.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.docs[string(uri)] = whole.Text
	s.mu.Unlock()
	s.publishDiagnostics(ctx, uri, whole.Text)
	return nil
}

func (s *server) didClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// publishDiagnostics re-runs the lexer and parser against a scratch
// environment (never the long-lived one a real CALL/EVAL would use,
// since there isn't one here) purely to surface the first Lex/Parse
// error, if any.
func (s *server) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	var diagnostics []protocol.Diagnostic
	if msg := firstError(text); msg != "" {
		severity := protocol.DiagnosticSeverityError
		source := lspName
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: 0, Character: 0},
				End:   protocol.Position{Line: 0, Character: 0},
			},
			Severity: &severity,
			Source:   &source,
			Message:  msg,
		})
	}
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func firstError(text string) string {
	toks, err := lexer.Tokenize(text)
	if err != nil {
		return err.Error()
	}
	if _, err := parser.Parse(toks, env.New()); err != nil {
		return err.Error()
	}
	return ""
}

func boolPtr(b bool) *bool { return &b }
