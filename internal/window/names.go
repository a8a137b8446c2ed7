package window

import (
	"regexp"
	"strings"
	"unicode"
)

var fileTokenPattern = regexp.MustCompile(`^[^.\s]+\.([A-Za-z0-9]{1,6})$`)

// InferExtension guesses the extension of the document shown in a window title,
// e.g. "main.py - Visual Studio Code" yields ".py". Returns "" when nothing
// file-like is found.
func InferExtension(title string) string {
	for _, field := range strings.Fields(title) {
		low := strings.ToLower(field)
		if strings.Contains(low, "://") || strings.HasPrefix(low, "www.") {
			continue
		}
		for _, tok := range strings.FieldsFunc(field, isTitleSeparator) {
			tok = strings.Trim(tok, "*●•()[]{}<>\"'`,;")
			m := fileTokenPattern.FindStringSubmatch(tok)
			if m == nil || isDigits(m[1]) {
				continue
			}
			return "." + strings.ToLower(m[1])
		}
	}
	return ""
}

func isTitleSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '-', '—', '–', '|', '/', '\\', ':':
		return true
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// NormalizeApp reduces a process or application name to a lowercase base name
// without platform suffixes: "C:\\Program Files\\Notepad++\\notepad++.exe"
// becomes "notepad++".
func NormalizeApp(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ToLower(name)
	for _, suffix := range []string{".exe", ".app"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return strings.TrimSpace(name)
}
