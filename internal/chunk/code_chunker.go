package chunk

import (
	"context"
	"strings"
	"time"
)

// CodeChunkerOptions configures the code chunker behavior.
type CodeChunkerOptions struct {
	// FallbackOnParseError controls what happens when tree-sitter fails to
	// parse a file. When true, a single NodeOther chunk spanning the whole
	// file is emitted; when false, Chunk returns (nil, *ParseError).
	FallbackOnParseError bool
}

// CodeChunker implements AST-aware code chunking using tree-sitter. Each
// top-level declaration becomes exactly one chunk; there is no size-based
// re-splitting, so a chunk's boundaries always line up with a symbol.
type CodeChunker struct {
	parser    *Parser
	extractor *SymbolExtractor
	registry  *LanguageRegistry
	options   CodeChunkerOptions
}

// NewCodeChunker creates a new code chunker with default options.
func NewCodeChunker() *CodeChunker {
	return NewCodeChunkerWithOptions(CodeChunkerOptions{FallbackOnParseError: true})
}

// NewCodeChunkerWithOptions creates a new code chunker with custom options.
func NewCodeChunkerWithOptions(opts CodeChunkerOptions) *CodeChunker {
	registry := DefaultRegistry()
	return &CodeChunker{
		parser:    NewParserWithRegistry(registry),
		extractor: NewSymbolExtractorWithRegistry(registry),
		registry:  registry,
		options:   opts,
	}
}

// Close releases chunker resources.
func (c *CodeChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// SupportedExtensions returns file extensions this chunker handles.
func (c *CodeChunker) SupportedExtensions() []string {
	return c.registry.SupportedExtensions()
}

// Chunk splits a file into one chunk per top-level declaration.
func (c *CodeChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	if strings.TrimSpace(string(file.Content)) == "" {
		return nil, nil
	}

	if _, supported := c.registry.GetByName(file.Language); !supported {
		return nil, nil
	}

	tree, err := c.parser.Parse(ctx, file.Content, file.Language)
	if err != nil || tree.Root.HasError {
		if !c.options.FallbackOnParseError {
			return nil, &ParseError{FilePath: file.Path, Cause: err}
		}
		return c.wholeFileFallback(file), nil
	}

	fileContext := c.extractFileContext(tree, file.Content, file.Language)
	fileContext = c.enrichContextWithFilePath(file.Path, file.Language, fileContext)

	imports := c.extractImports(tree, file.Content, file.Language)
	exports := c.extractExports(tree, file.Content, file.Language)

	symbolNodes := c.findSymbolNodes(tree, file.Language)
	if len(symbolNodes) == 0 {
		return nil, nil
	}

	now := time.Now()
	chunks := make([]*Chunk, 0, len(symbolNodes))
	for _, info := range symbolNodes {
		chunk := c.createChunk(info, tree, file, fileContext, imports, exports, now)
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// symbolNodeInfo holds a symbol node with its extracted symbol info.
type symbolNodeInfo struct {
	node   *Node
	symbol *Symbol
}

// findSymbolNodes finds all top-level symbol-defining nodes.
func (c *CodeChunker) findSymbolNodes(tree *Tree, language string) []*symbolNodeInfo {
	config, ok := c.registry.GetByName(language)
	if !ok {
		return []*symbolNodeInfo{}
	}

	var symbolNodes []*symbolNodeInfo

	symbolTypes := make(map[string]SymbolType)
	for _, t := range config.FunctionTypes {
		symbolTypes[t] = SymbolTypeFunction
	}
	for _, t := range config.MethodTypes {
		symbolTypes[t] = SymbolTypeMethod
	}
	for _, t := range config.ClassTypes {
		symbolTypes[t] = SymbolTypeClass
	}
	for _, t := range config.InterfaceTypes {
		symbolTypes[t] = SymbolTypeInterface
	}
	for _, t := range config.TypeDefTypes {
		symbolTypes[t] = SymbolTypeType
	}
	for _, t := range config.ConstantTypes {
		symbolTypes[t] = SymbolTypeConstant
	}
	for _, t := range config.VariableTypes {
		symbolTypes[t] = SymbolTypeVariable
	}

	// Only walk top-level children: nested declarations (a closure inside a
	// function, a local type inside a method) are not separate chunks.
	for _, n := range tree.Root.Children {
		// An export statement is chunked whole, under the symbol of the
		// declaration it wraps.
		stmt := n
		if n.Type == "export_statement" {
			for _, child := range n.Children {
				if _, ok := symbolTypes[child.Type]; ok {
					n = child
					break
				}
			}
		}

		if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
			if sym := c.extractor.extractSpecialSymbol(n, tree.Source, language); sym != nil {
				symbolNodes = append(symbolNodes, &symbolNodeInfo{node: stmt, symbol: sym})
				continue
			}
		}

		if symType, isSymbol := symbolTypes[n.Type]; isSymbol {
			if sym := c.extractSymbol(n, tree, symType, language); sym != nil {
				symbolNodes = append(symbolNodes, &symbolNodeInfo{node: stmt, symbol: sym})
			}
		}
	}

	return symbolNodes
}

// extractSymbol extracts symbol info from a node.
func (c *CodeChunker) extractSymbol(n *Node, tree *Tree, symType SymbolType, language string) *Symbol {
	config, _ := c.registry.GetByName(language)
	name := c.extractor.extractName(n, tree.Source, config, language)
	if name == "" {
		return nil
	}

	return &Symbol{
		Name:       name,
		Type:       symType,
		StartLine:  int(n.StartPoint.Row) + 1,
		EndLine:    int(n.EndPoint.Row) + 1,
		DocComment: c.extractDocComment(n, tree.Source, language),
	}
}

// extractDocComment extracts a doc comment block immediately preceding a node.
func (c *CodeChunker) extractDocComment(n *Node, source []byte, language string) string {
	lineStart := int(n.StartByte)
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}
	if lineStart <= 1 {
		return ""
	}

	var commentLines []string
	pos := lineStart - 1

	for pos > 0 {
		prevLineEnd := pos
		pos--
		for pos > 0 && source[pos] != '\n' {
			pos--
		}
		prevLineStart := pos
		if pos > 0 {
			prevLineStart++
		}

		prevLine := strings.TrimSpace(string(source[prevLineStart:prevLineEnd]))

		switch language {
		case "go", "typescript", "tsx", "javascript", "jsx":
			if strings.HasPrefix(prevLine, "//") {
				commentLines = append([]string{strings.TrimPrefix(prevLine, "//")}, commentLines...)
				continue
			}
		case "python":
			if strings.HasPrefix(prevLine, "#") {
				commentLines = append([]string{strings.TrimPrefix(prevLine, "#")}, commentLines...)
				continue
			}
		}

		if prevLine != "" {
			break
		}
	}

	if len(commentLines) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.Join(commentLines, "\n"))
}

// createChunk builds the single chunk for a symbol node, or nil if the
// resulting content doesn't meet the minimum-length drop rule.
func (c *CodeChunker) createChunk(info *symbolNodeInfo, tree *Tree, file *FileInput, fileContext string, imports, exports []string, now time.Time) *Chunk {
	node := info.node
	rawContent := string(tree.Source[node.StartByte:node.EndByte])
	if info.symbol.DocComment != "" {
		rawContent = c.getRawContentWithDocComment(node, tree.Source, info.symbol.DocComment)
	}

	if len(strings.TrimSpace(rawContent)) < MinChunkContentLength {
		return nil
	}

	startLine := info.symbol.StartLine
	endLine := info.symbol.EndLine
	// rawContent may start a few lines earlier than the node itself when a
	// doc comment was folded in; recompute the span to match.
	if n := strings.Count(rawContent, "\n"); n+1 > endLine-startLine+1 {
		startLine = endLine - n
	}

	name := info.symbol.Name
	nodeType := nodeKindForSymbol(info.symbol.Type)
	if nodeType == NodeOther && name == "" {
		name = "default"
	}

	types := c.extractTypeReferences(node, tree.Source, file.Language)

	return &Chunk{
		ID:         FormatID(file.Path, startLine, endLine),
		FilePath:   file.Path,
		Language:   file.Language,
		StartLine:  startLine,
		EndLine:    endLine,
		NodeType:   nodeType,
		Name:       name,
		Content:    combineContextAndContent(fileContext, rawContent),
		RawContent: rawContent,
		Context:    fileContext,
		Imports:    imports,
		Exports:    exports,
		Types:      types,
		Metadata:   make(map[string]string),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// getRawContentWithDocComment gets raw content including a leading doc comment.
func (c *CodeChunker) getRawContentWithDocComment(n *Node, source []byte, docComment string) string {
	lineStart := int(n.StartByte)
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}

	docLines := strings.Count(docComment, "\n") + 1
	for i := 0; i < docLines && lineStart > 0; i++ {
		lineStart--
		for lineStart > 0 && source[lineStart-1] != '\n' {
			lineStart--
		}
	}

	return string(source[lineStart:n.EndByte])
}

// extractFileContext extracts package declaration and imports from a file.
func (c *CodeChunker) extractFileContext(tree *Tree, source []byte, language string) string {
	var parts []string

	switch language {
	case "go":
		parts = c.extractGoContext(tree, source)
	case "typescript", "tsx":
		parts = c.extractTSContext(tree, source)
	case "javascript", "jsx":
		parts = c.extractJSContext(tree, source)
	case "python":
		parts = c.extractPythonContext(tree, source)
	}

	return strings.Join(parts, "\n\n")
}

func (c *CodeChunker) extractGoContext(tree *Tree, source []byte) []string {
	var parts []string

	for _, node := range tree.Root.Children {
		if node.Type == "package_clause" {
			parts = append(parts, node.GetContent(source))
			break
		}
	}

	for _, node := range tree.Root.Children {
		if node.Type == "import_declaration" {
			parts = append(parts, node.GetContent(source))
		}
	}

	return parts
}

func (c *CodeChunker) extractTSContext(tree *Tree, source []byte) []string {
	return c.extractJSContext(tree, source)
}

func (c *CodeChunker) extractJSContext(tree *Tree, source []byte) []string {
	var parts []string

	for _, node := range tree.Root.Children {
		if node.Type == "import_statement" {
			parts = append(parts, node.GetContent(source))
		}
	}

	return parts
}

func (c *CodeChunker) extractPythonContext(tree *Tree, source []byte) []string {
	var parts []string

	for _, node := range tree.Root.Children {
		if node.Type == "import_statement" || node.Type == "import_from_statement" {
			parts = append(parts, node.GetContent(source))
		}
	}

	return parts
}

// wholeFileFallback emits a single NodeOther chunk spanning the whole file,
// used when parsing fails and FallbackOnParseError is set.
func (c *CodeChunker) wholeFileFallback(file *FileInput) []*Chunk {
	content := string(file.Content)
	if len(strings.TrimSpace(content)) < MinChunkContentLength {
		return nil
	}

	lines := strings.Split(content, "\n")
	now := time.Now()

	return []*Chunk{{
		ID:         FormatID(file.Path, 1, len(lines)),
		FilePath:   file.Path,
		Language:   file.Language,
		StartLine:  1,
		EndLine:    len(lines),
		NodeType:   NodeOther,
		Name:       "",
		Content:    content,
		RawContent: content,
		Metadata:   make(map[string]string),
		CreatedAt:  now,
		UpdatedAt:  now,
	}}
}

// combineContextAndContent combines context and raw content into full content.
func combineContextAndContent(context, rawContent string) string {
	if context == "" {
		return rawContent
	}
	return context + "\n\n" + rawContent
}

// enrichContextWithFilePath prepends a file path marker to the context. This
// helps embedding models understand file location and scope. The marker
// format is language-appropriate (// for Go/JS/TS, # for Python).
func (c *CodeChunker) enrichContextWithFilePath(filePath, language, existingContext string) string {
	if filePath == "" {
		return existingContext
	}

	var marker string
	switch language {
	case "python":
		marker = "# File: " + filePath
	default:
		marker = "// File: " + filePath
	}

	if existingContext == "" {
		return marker
	}
	return marker + "\n" + existingContext
}
