package convert

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"bibr/config"
	"bibr/state"
)

const (
	outputExt       = ".html"
	defaultBaseName = "bibliography"
)

// buildOutputPath returns constructed output file path/name. It uses either
// source base name or user-defined template which may introduce
// subdirectories. Every path segment is cleaned and if requested
// transliterated.
func buildOutputPath(values Values, dst string, env *state.LocalEnv) string {
	defaultFile := buildDefaultFileName(values.SourceFile, env)

	if env.Cfg.Render.OutputNameTemplate == "" {
		return filepath.Join(dst, defaultFile)
	}

	expandedName := expandOutputNameTemplate(values, env)
	if expandedName == "" {
		// fallback to default name if template expansion failed
		return filepath.Join(dst, defaultFile)
	}

	return assemblePathWithSubdirs(dst, expandedName, env)
}

// sourceBaseName returns source file name without extension for local paths
// and URLs alike.
func sourceBaseName(src string) string {
	name := src
	if u, err := url.Parse(src); err == nil && len(u.Scheme) > 1 {
		// single letter scheme is windows drive
		name = path.Base(u.Path)
	} else {
		name = filepath.Base(src)
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" || name == "." || name == "/" || name == string(filepath.Separator) {
		return defaultBaseName
	}
	return name
}

func buildDefaultFileName(baseName string, env *state.LocalEnv) string {
	if len(baseName) == 0 {
		baseName = defaultBaseName
	}
	if env.Cfg.Render.FileNameTransliterate {
		baseName = slug.Make(baseName)
	}
	return config.CleanFileName(baseName) + outputExt
}

func expandOutputNameTemplate(values Values, env *state.LocalEnv) string {
	expandedName, err := expandTemplate(config.OutputNameTemplateFieldName, env.Cfg.Render.OutputNameTemplate, values)
	if err != nil {
		env.Log.Warn("Unable to prepare output filename", zap.Error(err))
		return ""
	}
	return filepath.FromSlash(strings.TrimSpace(expandedName))
}

// assemblePathWithSubdirs takes an expanded template name (which may contain
// path separators for subdirectories) and assembles it into a full output path,
// cleaning and transliterating segments as needed
func assemblePathWithSubdirs(outDir, expandedName string, env *state.LocalEnv) string {
	pathSegments := splitAndCleanPath(expandedName)

	if len(pathSegments) == 0 {
		return filepath.Join(outDir, defaultBaseName+outputExt)
	}

	fileName := strings.TrimSuffix(pathSegments[len(pathSegments)-1], outputExt)
	dirParts := make([]string, 0, len(pathSegments)+1)
	dirParts = append(dirParts, outDir)

	for _, segment := range pathSegments[:len(pathSegments)-1] {
		dirParts = append(dirParts, cleanPathSegment(segment, env))
	}

	dirParts = append(dirParts, cleanPathSegment(fileName, env)+outputExt)
	return filepath.Join(dirParts...)
}

// splitAndCleanPath splits path into segments dropping empty ones and
// references to current or parent directory.
func splitAndCleanPath(p string) []string {
	p = strings.TrimSuffix(p, string(os.PathSeparator))
	segments := make([]string, 0, 8)

	for head, tail := filepath.Split(p); ; head, tail = filepath.Split(head) {
		if tail != "" && tail != "." && tail != ".." {
			segments = slices.Insert(segments, 0, tail)
		}
		head = strings.TrimSuffix(head, string(os.PathSeparator))
		if head == "" || head == filepath.VolumeName(head) {
			break
		}
	}
	return segments
}

func cleanPathSegment(segment string, env *state.LocalEnv) string {
	if env.Cfg.Render.FileNameTransliterate {
		segment = slug.Make(segment)
	}
	return config.CleanFileName(segment)
}
