package graph

import (
	"path"
	"strings"
)

// resolveImportFiles maps an import specifier referenced from fromFile to
// the repo-relative filepath(s) it resolves to, using per-language
// relative-module resolution rooted at the importing file's own directory.
// Go imports resolve to a whole package directory (every file in it); other
// languages resolve to a single file. An unresolvable specifier returns nil
// and the caller drops the edge rather than erroring.
func resolveImportFiles(fromFile, spec, language string, filesByPath map[string]bool) []string {
	switch language {
	case "typescript", "tsx", "javascript", "jsx":
		if f, ok := resolveRelativeModule(fromFile, spec, filesByPath); ok {
			return []string{f}
		}
		return nil
	case "python":
		if f, ok := resolvePythonModule(fromFile, spec, filesByPath); ok {
			return []string{f}
		}
		return nil
	case "go":
		return resolveGoImportFiles(spec, filesByPath)
	default:
		return nil
	}
}

// relativeModuleExtensions are tried, in order, against a resolved base path
// that itself carries no extension (e.g. "./helper" -> "./helper.ts").
var relativeModuleExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// resolveRelativeModule resolves a TS/JS-style specifier ("./b", "../x/y")
// relative to the importing file's directory. Non-relative specifiers
// (bare package names like "react") are treated as unresolvable: they name
// an external package, not a file in this repository's chunk set.
func resolveRelativeModule(fromFile, spec string, filesByPath map[string]bool) (string, bool) {
	if !strings.HasPrefix(spec, ".") {
		return "", false
	}

	dir := path.Dir(fromFile)
	joined := path.Clean(path.Join(dir, spec))

	if filesByPath[joined] {
		return joined, true
	}
	for _, ext := range relativeModuleExtensions {
		if filesByPath[joined+ext] {
			return joined + ext, true
		}
	}
	// Directory import: "./util" -> "./util/index.ts".
	for _, ext := range relativeModuleExtensions {
		candidate := path.Join(joined, "index"+ext)
		if filesByPath[candidate] {
			return candidate, true
		}
	}
	return "", false
}

// resolvePythonModule resolves a dotted module name against sibling .py
// files, relative to the importing file's package directory. Absolute
// (top-of-repo) dotted paths are also tried.
func resolvePythonModule(fromFile, spec string, filesByPath map[string]bool) (string, bool) {
	rel := strings.ReplaceAll(spec, ".", "/") + ".py"

	dir := path.Dir(fromFile)
	if candidate := path.Clean(path.Join(dir, rel)); filesByPath[candidate] {
		return candidate, true
	}
	if filesByPath[rel] {
		return rel, true
	}
	// Package import: "pkg.sub" -> "pkg/sub/__init__.py".
	pkgInit := strings.ReplaceAll(spec, ".", "/") + "/__init__.py"
	if candidate := path.Clean(path.Join(dir, pkgInit)); filesByPath[candidate] {
		return candidate, true
	}
	if filesByPath[pkgInit] {
		return pkgInit, true
	}
	return "", false
}

// resolveGoImportFiles resolves a Go import path by matching its final path
// segment against a directory present in the chunk set, returning every file
// in that package directory: conservative, file-level import semantics
// where any chunk in the importing file may reach any chunk in the imported
// file(s). This is a heuristic with no go.mod-aware module-path rewriting:
// it only resolves imports that stay within the indexed repository.
func resolveGoImportFiles(spec string, filesByPath map[string]bool) []string {
	segment := spec
	if idx := strings.LastIndex(spec, "/"); idx >= 0 {
		segment = spec[idx+1:]
	}
	if segment == "" {
		return nil
	}

	suffix := "/" + segment
	var matchDir string
	for p := range filesByPath {
		dir := path.Dir(p)
		if dir == segment || strings.HasSuffix(dir, suffix) {
			if matchDir == "" || len(dir) < len(matchDir) {
				matchDir = dir
			}
		}
	}
	if matchDir == "" {
		return nil
	}

	var files []string
	for p := range filesByPath {
		if path.Dir(p) == matchDir {
			files = append(files, p)
		}
	}
	return files
}
