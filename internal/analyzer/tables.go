package analyzer

// languageByExt maps a lowercased file extension to a language name.
var languageByExt = map[string]string{
	".py":    "python",
	".ipynb": "python",
	".js":    "javascript",
	".ts":    "typescript",
	".java":  "java",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".c":     "c",
	".h":     "c",
	".cs":    "csharp",
	".php":   "php",
	".rb":    "ruby",
	".swift": "swift",
	".go":    "go",
	".rs":    "rust",
	".sql":   "sql",
	".r":     "r",
	".sas":   "sas",
	".ttl":   "turtle",
}

type appRule struct {
	name     string
	typ      Type
	language string
}

// appRules is ordered: longer names come before names they contain so that
// containment matching picks the most specific rule.
var appRules = []appRule{
	{"chrome", Web, ""},
	{"chromium", Web, ""},
	{"firefox", Web, ""},
	{"msedge", Web, ""},
	{"edge", Web, ""},
	{"safari", Web, ""},
	{"brave", Web, ""},
	{"opera", Web, ""},

	{"code", Code, ""},
	{"pycharm", Code, "python"},
	{"sublime_text", Code, ""},
	{"sublime", Code, ""},
	{"idea", Code, ""},
	{"goland", Code, "go"},
	{"rstudio", Code, "r"},
	{"spyder", Code, "python"},
	{"jupyter", Code, "python"},

	{"notepad++", Text, ""},
	{"winword", Text, ""},
	{"word", Text, ""},
	{"notepad", Text, ""},
	{"gedit", Text, ""},
	{"excel", Text, ""},
	{"libreoffice", Text, ""},
	{"soffice", Text, ""},
}

var featuresByType = map[Type][]Feature{
	Code:    {CodeCompletion, LearningSuggestions},
	Web:     {TextSuggestions, Translation, LearningSuggestions},
	Text:    {TextSuggestions, Translation},
	Generic: nil,
}
