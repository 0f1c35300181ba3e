// Package server implements the topaz language server.
package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/topaz-lang/topaz/compiler"
	"github.com/topaz-lang/topaz/vm"
)

const lspName = "topaz-lsp"

// document is an open text document and the result of compiling it.
type document struct {
	text    string
	errors  compiler.ErrorList
	symbols map[string]compiler.Symbol
}

// analyze compiles text and records its diagnostics and the first
// definition of every global name.
func analyze(text string) *document {
	c := compiler.New(text)
	c.Compile()

	doc := &document{
		text:    text,
		errors:  c.Errors(),
		symbols: make(map[string]compiler.Symbol),
	}
	for _, sym := range c.Symbols() {
		if _, seen := doc.symbols[sym.Name]; !seen {
			doc.symbols[sym.Name] = sym
		}
	}
	return doc
}

// LSP serves compile diagnostics, completion, hover and go-to-definition
// for topaz documents.
type LSP struct {
	mu   sync.Mutex
	docs map[string]*document // URI → analyzed document

	handler protocol.Handler
	server  *glspserver.Server
	version string
	log     commonlog.Logger
}

// NewLSP creates a new language server.
func NewLSP() *LSP {
	s := &LSP{
		docs:    make(map[string]*document),
		version: "0.1.0",
		log:     commonlog.GetLogger("topaz.lsp"),
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the server on stdio. Blocks until the client disconnects.
func (s *LSP) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LSP) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LSP) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LSP) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LSP) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LSP) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *LSP) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.update(ctx, params.TextDocument.URI, whole.Text)
		}
	}
	return nil
}

func (s *LSP) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
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

func (s *LSP) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	doc := analyze(text)

	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()

	s.log.Debugf("%s: %d compile errors", uri, len(doc.errors))
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(doc.errors),
	})
}

func (s *LSP) document(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

// --- Language features ---

func (s *LSP) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}

	prefix := extractPrefix(doc.text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(doc, prefix), nil
}

func (s *LSP) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(doc, word), nil
}

func (s *LSP) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	sym, ok := doc.symbols[word]
	if word == "" || !ok {
		return nil, nil
	}

	start := toPosition(sym.Pos.Line, sym.Pos.Column)
	end := start
	end.Character += protocol.UInteger(len(sym.Name))
	return []protocol.Location{{
		URI:   params.TextDocument.URI,
		Range: protocol.Range{Start: start, End: end},
	}}, nil
}

// complete offers keywords, native functions and the document's globals
// whose names start with prefix.
func complete(doc *document, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if !strings.HasPrefix(label, prefix) {
			return
		}
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	keywords := make([]string, 0, len(compiler.Keywords))
	for kw := range compiler.Keywords {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)
	for _, kw := range keywords {
		add(kw, protocol.CompletionItemKindKeyword, "keyword")
	}

	for _, name := range vm.NativeNames {
		add(name, protocol.CompletionItemKindFunction, "native")
	}

	names := make([]string, 0, len(doc.symbols))
	for name := range doc.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sym := doc.symbols[name]
		switch sym.Kind {
		case compiler.SymbolFunction:
			add(name, protocol.CompletionItemKindFunction, signature(sym))
		case compiler.SymbolClass:
			add(name, protocol.CompletionItemKindClass, "class")
		default:
			add(name, protocol.CompletionItemKindVariable, "global")
		}
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items
}

func hover(doc *document, word string) *protocol.Hover {
	var value string
	if sym, ok := doc.symbols[word]; ok {
		switch sym.Kind {
		case compiler.SymbolFunction:
			value = fmt.Sprintf("```topaz\n%s\n```", signature(sym))
		case compiler.SymbolClass:
			value = fmt.Sprintf("```topaz\nclass %s\n```", sym.Name)
		default:
			value = fmt.Sprintf("**%s** (global, line %d)", sym.Name, sym.Pos.Line)
		}
	} else {
		for _, name := range vm.NativeNames {
			if name == word {
				value = fmt.Sprintf("**%s** (native function)", word)
			}
		}
	}
	if value == "" {
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}
}

func signature(sym compiler.Symbol) string {
	return fmt.Sprintf("fn %s(%s)", sym.Name, strings.Join(sym.Params, ", "))
}

// --- Diagnostics ---

// diagnostics converts compile errors to LSP diagnostics. Compile errors
// carry 1-based lines and columns; LSP positions are 0-based.
func diagnostics(errs compiler.ErrorList) []protocol.Diagnostic {
	result := []protocol.Diagnostic{}
	severity := protocol.DiagnosticSeverityError
	source := lspName
	for _, e := range errs {
		pos := toPosition(e.Line, e.Column)
		result = append(result, protocol.Diagnostic{
			Range:    protocol.Range{Start: pos, End: pos},
			Severity: &severity,
			Source:   &source,
			Message:  e.Message,
		})
	}
	return result
}

func toPosition(line, column int) protocol.Position {
	if line < 1 {
		line = 1
	}
	if column < 1 {
		column = 1
	}
	return protocol.Position{
		Line:      protocol.UInteger(line - 1),
		Character: protocol.UInteger(column - 1),
	}
}

// --- Text extraction helpers ---

func isIdentChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the identifier fragment before the cursor.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isIdentChar(rune(line[end])) {
		end++
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
