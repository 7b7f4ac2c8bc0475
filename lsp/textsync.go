// Copyright © 2024 The ELPS authors

package lsp

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// textDocumentDidOpen makes the opened document the active editor.
func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.captureNotify(ctx)
	doc := s.docs.Open(
		params.TextDocument.URI,
		params.TextDocument.LanguageID,
		int32(params.TextDocument.Version),
		params.TextDocument.Text,
	)
	s.editors.SetActive(doc)
	return nil
}

// textDocumentDidChange reports an edit, switching focus first when the
// change is to a document other than the active one.
func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	s.captureNotify(ctx)
	// With full sync, the last content change is the complete document.
	var content string
	for _, change := range params.ContentChanges {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			content = c.Text
		case protocol.TextDocumentContentChangeEvent:
			content = c.Text
		}
	}
	doc := s.docs.Change(
		params.TextDocument.URI,
		int32(params.TextDocument.Version),
		content,
	)
	if active := s.editors.Active(); active == nil || active.Path() != doc.Path() {
		s.editors.SetActive(doc)
		return nil
	}
	s.editors.Edited(doc)
	return nil
}

func (s *Server) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	s.captureNotify(ctx)
	if doc := s.docs.Get(params.TextDocument.URI); doc != nil {
		s.editors.Saved(doc)
	}
	return nil
}

// textDocumentDidClose drops the document. Closing the active document
// loses focus, which clears its diagnostics.
func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.captureNotify(ctx)
	if doc := s.docs.Close(params.TextDocument.URI); doc != nil {
		s.editors.Closed(doc)
	}
	return nil
}
