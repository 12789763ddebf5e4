package controller

import (
	"path/filepath"
	"strings"
)

// Policy decides whether a change at a path warrants a worker restart.
//
// A change qualifies if the file has one of the source extensions, or if
// the path is one of the watched paths itself. Changes to any other file
// inside a watched directory never qualify.
type Policy struct {
	extensions map[string]struct{}
	paths      map[string]struct{}
}

func NewPolicy(paths []string, extensions []string) *Policy {
	p := &Policy{
		extensions: make(map[string]struct{}, len(extensions)),
		paths:      make(map[string]struct{}, len(paths)*2),
	}

	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		p.extensions[ext] = struct{}{}
	}

	for _, path := range paths {
		if path == "" {
			continue
		}

		p.paths[path] = struct{}{}
		p.paths[normalizePath(path)] = struct{}{}
	}

	return p
}

func (p *Policy) ShouldRestart(path string) bool {
	if _, ok := p.extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return true
	}

	if _, ok := p.paths[path]; ok {
		return true
	}

	_, ok := p.paths[normalizePath(path)]
	return ok
}

func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}

	return abs
}
