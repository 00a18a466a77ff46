package chunk

import (
	"context"
	"fmt"
	"time"
)

// NodeKind is the structural classification of a chunk's top-level span.
type NodeKind string

const (
	NodeFunction  NodeKind = "function"
	NodeClass     NodeKind = "class"
	NodeInterface NodeKind = "interface"
	NodeTypeAlias NodeKind = "type"
	NodeOther     NodeKind = "other"
)

// MinChunkContentLength is the minimum trimmed-content length a chunk must
// have to be emitted. Shorter candidates (stray braces, single-token
// fragments) are dropped rather than indexed.
const MinChunkContentLength = 10

// Chunk is the smallest unit of retrieval and citation: a contiguous,
// parse-derived span of one file, plus enough surrounding context to
// embed and rerank well.
type Chunk struct {
	ID string // "<FilePath>:<StartLine>-<EndLine>", 1-indexed inclusive

	FilePath string // relative to project root
	Language string // go, typescript, python, etc.

	StartLine int // 1-indexed
	EndLine   int // inclusive

	NodeType NodeKind
	Name     string // symbol name; "" if anonymous

	Content    string // exact source substring for [StartLine, EndLine]
	RawContent string // just the symbol, no surrounding context
	Context    string // package/import preamble, used to enrich embeddings

	Imports []string // module specifiers this file references
	Exports []string // symbol names this file makes public
	Types   []string // type names referenced within the chunk's span

	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FormatID builds the canonical chunk identifier for a span.
func FormatID(filePath string, startLine, endLine int) string {
	return fmt.Sprintf("%s:%d-%d", filePath, startLine, endLine)
}

// FileInput is input for the Chunker interface.
type FileInput struct {
	Path     string // relative path
	Content  []byte
	Language string
}

// Chunker is the interface for splitting files into chunks.
type Chunker interface {
	// Chunk splits a file into chunks in source order. Unsupported
	// extensions and empty/comment-only files yield (nil, nil).
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)

	// SupportedExtensions returns file extensions this chunker handles.
	SupportedExtensions() []string
}

// ParseError wraps a parser failure on a file. Callers decide, per
// configuration, whether to fall back to a single NodeOther chunk
// spanning the whole file or to skip it.
type ParseError struct {
	FilePath string
	Cause    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.FilePath, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// SymbolType represents the kind of code symbol found while walking the AST,
// before it collapses into a chunk's NodeKind.
type SymbolType string

const (
	SymbolTypeFunction  SymbolType = "function"
	SymbolTypeClass     SymbolType = "class"
	SymbolTypeInterface SymbolType = "interface"
	SymbolTypeType      SymbolType = "type"
	SymbolTypeVariable  SymbolType = "variable"
	SymbolTypeConstant  SymbolType = "constant"
	SymbolTypeMethod    SymbolType = "method"
)

// nodeKindForSymbol collapses the AST-level SymbolType into the coarser
// NodeKind vocabulary chunks are tagged with. Methods are never split into
// their own chunk, so there is no NodeMethod.
func nodeKindForSymbol(t SymbolType) NodeKind {
	switch t {
	case SymbolTypeFunction:
		return NodeFunction
	case SymbolTypeClass:
		return NodeClass
	case SymbolTypeInterface:
		return NodeInterface
	case SymbolTypeType:
		return NodeTypeAlias
	default:
		return NodeOther
	}
}

// Symbol represents a code symbol extracted from parsing.
type Symbol struct {
	Name       string
	Type       SymbolType
	StartLine  int
	EndLine    int
	Signature  string
	DocComment string
}

// Tree represents a parsed AST.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the AST.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point represents a position in the source code.
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}

// LanguageConfig holds configuration for a supported language.
type LanguageConfig struct {
	Name       string
	Extensions []string

	// Node types that indicate function declarations
	FunctionTypes []string

	// Node types that indicate class/struct definitions
	ClassTypes []string

	// Node types that indicate interface definitions
	InterfaceTypes []string

	// Node types that indicate method definitions
	MethodTypes []string

	// Node types that indicate type definitions
	TypeDefTypes []string

	// Node types that indicate constant declarations
	ConstantTypes []string

	// Node types that indicate variable declarations
	VariableTypes []string

	// Node type for name identifier
	NameField string
}
