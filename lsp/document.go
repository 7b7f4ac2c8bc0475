// Copyright © 2024 The ELPS authors

package lsp

import (
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/luthersystems/typecov/coverage"
)

// Document is an open text document. It is immutable; each change stores
// a new Document.
type Document struct {
	URI        string
	LanguageID string
	Version    int32
	Text       string
}

var _ coverage.Editor = (*Document)(nil)

// Path returns the filesystem path of the document.
func (d *Document) Path() string { return uriToPath(d.URI) }

// Grammar returns the client's language id.
func (d *Document) Grammar() string { return d.LanguageID }

// DocumentStore manages open documents with thread-safe access.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewDocumentStore creates an empty document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]*Document)}
}

// Open adds a document to the store.
func (s *DocumentStore) Open(uri, languageID string, version int32, text string) *Document {
	doc := &Document{URI: uri, LanguageID: languageID, Version: version, Text: text}
	s.mu.Lock()
	s.docs[uri] = doc
	s.mu.Unlock()
	return doc
}

// Change replaces a document's content (full sync). A change to an
// unknown document opens it without a language id.
func (s *DocumentStore) Change(uri string, version int32, text string) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := &Document{URI: uri, Version: version, Text: text}
	if old, ok := s.docs[uri]; ok {
		doc.LanguageID = old.LanguageID
	}
	s.docs[uri] = doc
	return doc
}

// Close removes a document from the store and returns it, or nil.
func (s *DocumentStore) Close(uri string) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.docs[uri]
	delete(s.docs, uri)
	return doc
}

// Get retrieves a document by URI. Returns nil if not found.
func (s *DocumentStore) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[uri]
}

// All returns the open documents ordered by URI.
func (s *DocumentStore) All() []*Document {
	s.mu.RLock()
	docs := make([]*Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	s.mu.RUnlock()
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs
}

// uriToPath converts a file:// URI to a filesystem path.
func uriToPath(uri string) string {
	rest, ok := strings.CutPrefix(uri, "file://")
	if !ok {
		return uri
	}
	if p, err := url.PathUnescape(rest); err == nil {
		return p
	}
	return rest
}

// pathToURI converts a filesystem path to a file:// URI.
func pathToURI(path string) string {
	if !strings.HasPrefix(path, "/") {
		return path
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}
