// Package lang maps file names to fenced-code-block language tags.
package lang

import (
	"path/filepath"
	"strings"
)

// defaultLanguage is used for files with an unmapped extension.
const defaultLanguage = "text"

// languageByExtension maps lower-case file extensions to language tags used
// as fence hints in the assembled output.
var languageByExtension = map[string]string{
	".py": "python", ".pyw": "python",
	".js": "javascript", ".mjs": "javascript",
	".ts": "typescript", ".tsx": "typescript",
	".html": "html", ".htm": "html",
	".css": "css", ".scss": "scss", ".sass": "sass",
	".json": "json", ".jsonc": "json",
	".xml": "xml",
	".md":  "markdown", ".markdown": "markdown",
	".sh": "shell", ".bash": "shell",
	".bat":  "batch",
	".java": "java",
	".c":    "c", ".h": "c",
	".cpp": "cpp", ".hpp": "cpp", ".cxx": "cpp",
	".cs":  "csharp",
	".go":  "go",
	".php": "php",
	".rb":  "ruby",
	".rs":  "rust",
	".swift": "swift",
	".kt":    "kotlin", ".kts": "kotlin",
	".sql":  "sql",
	".yaml": "yaml", ".yml": "yaml",
	".toml": "toml",
	".ini":  "ini",
	".txt":  "text",
	".r":    "r",
	".pl":   "perl",
	".lua":  "lua",
	".ps1":  "powershell",
	".dart": "dart",
	".ex":   "elixir", ".exs": "elixir",
	".erl": "erlang",
	".fs":  "fsharp",
	".hs":  "haskell",
	".jl":  "julia",
	".pas": "pascal",
	".rkt": "racket",
	".sc":  "scala",
	".scm": "scheme",
	".vb":  "vbnet",
}

// languageByName maps well-known extensionless file names to language tags.
var languageByName = map[string]string{
	"dockerfile": "dockerfile",
	"makefile":   "makefile",
	"gemfile":    "ruby",
	"rakefile":   "ruby",
}

// Detect returns the fence language tag for the file at path.
// Detection is purely name-based; unmapped files fall back to "text".
func Detect(path string) string {
	fileName := strings.ToLower(filepath.Base(path))
	if language, known := languageByName[fileName]; known {
		return language
	}
	extension := strings.ToLower(filepath.Ext(fileName))
	if language, known := languageByExtension[extension]; known {
		return language
	}
	return defaultLanguage
}
