package chunk

import "strings"

// extractImports walks the top level of a file and collects the module
// specifiers it imports. These feed the dependency graph's import edges.
func (c *CodeChunker) extractImports(tree *Tree, source []byte, language string) []string {
	var specs []string

	switch language {
	case "go":
		for _, node := range tree.Root.Children {
			if node.Type != "import_declaration" {
				continue
			}
			for _, spec := range node.FindAllByType("import_spec") {
				if s := firstStringLiteral(spec, source); s != "" {
					specs = append(specs, s)
				}
			}
			// Fallback for an import_declaration that holds no import_spec node.
			if len(node.FindAllByType("import_spec")) == 0 {
				if s := firstStringLiteral(node, source); s != "" {
					specs = append(specs, s)
				}
			}
		}
	case "typescript", "tsx", "javascript", "jsx":
		for _, node := range tree.Root.Children {
			if node.Type != "import_statement" {
				continue
			}
			if s := firstStringLiteral(node, source); s != "" {
				specs = append(specs, s)
			}
		}
	case "python":
		for _, node := range tree.Root.Children {
			switch node.Type {
			case "import_statement":
				for _, name := range node.FindAllByType("dotted_name") {
					specs = append(specs, name.GetContent(source))
				}
			case "import_from_statement":
				for _, name := range node.FindChildrenByType("dotted_name") {
					specs = append(specs, name.GetContent(source))
					break // first dotted_name is the module; rest are imported names
				}
			}
		}
	}

	return dedupeStrings(specs)
}

// firstStringLiteral finds the first string-literal-like descendant and
// returns its content with quotes stripped.
func firstStringLiteral(n *Node, source []byte) string {
	for _, t := range []string{"interpreted_string_literal", "string_literal", "string"} {
		if found := n.FindAllByType(t); len(found) > 0 {
			return strings.Trim(found[0].GetContent(source), `"'`+"`")
		}
	}
	return ""
}

// extractExports collects the names this file makes public. Go has no
// export keyword; a capitalized top-level identifier is exported.
func (c *CodeChunker) extractExports(tree *Tree, source []byte, language string) []string {
	var names []string

	switch language {
	case "go":
		config, _ := c.registry.GetByName(language)
		for _, n := range tree.Root.Children {
			switch n.Type {
			case "function_declaration", "type_declaration", "const_declaration", "var_declaration":
				name := c.extractor.extractName(n, source, config, language)
				if name != "" && isExportedGoName(name) {
					names = append(names, name)
				}
			}
		}
	case "typescript", "tsx", "javascript", "jsx":
		for _, n := range tree.Root.Children {
			if n.Type != "export_statement" {
				continue
			}
			for _, id := range n.FindAllByType("identifier") {
				names = append(names, id.GetContent(source))
			}
			for _, id := range n.FindAllByType("type_identifier") {
				names = append(names, id.GetContent(source))
			}
		}
	case "python":
		// Python has no export syntax; top-level defs/classes not prefixed
		// with "_" are conventionally public.
		for _, n := range tree.Root.Children {
			var name string
			switch n.Type {
			case "function_definition", "class_definition":
				name = c.extractor.extractName(n, source, nil, language)
			}
			if name != "" && !strings.HasPrefix(name, "_") {
				names = append(names, name)
			}
		}
	}

	return dedupeStrings(names)
}

func isExportedGoName(name string) bool {
	if name == "" {
		return false
	}
	r := name[0]
	return r >= 'A' && r <= 'Z'
}

// extractTypeReferences collects type-identifier-like names referenced
// within a node's span, used to resolve uses-type edges in the dependency
// graph. It intentionally over-collects (includes the declared type's own
// name) since the graph builder filters self-references.
func (c *CodeChunker) extractTypeReferences(n *Node, source []byte, language string) []string {
	var typeNodeKinds []string
	switch language {
	case "go":
		typeNodeKinds = []string{"type_identifier"}
	case "typescript", "tsx":
		typeNodeKinds = []string{"type_identifier"}
	case "python":
		typeNodeKinds = []string{"type"}
	default:
		return nil
	}

	var names []string
	for _, kind := range typeNodeKinds {
		for _, ref := range n.FindAllByType(kind) {
			names = append(names, ref.GetContent(source))
		}
	}
	return dedupeStrings(names)
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
