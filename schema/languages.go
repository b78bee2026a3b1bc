package schema

import (
	"path"
	"strings"
)

// Language tags understood by the playground.
const (
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguagePython     Language = "python"
	LanguageCPP        Language = "cpp"
	LanguageC          Language = "c"
	LanguageJava       Language = "java"
	LanguageCSharp     Language = "csharp"
	LanguageGo         Language = "go"
	LanguageRuby       Language = "ruby"
	LanguagePHP        Language = "php"
	LanguageRust       Language = "rust"
	LanguageSwift      Language = "swift"
	LanguageKotlin     Language = "kotlin"
	LanguageBash       Language = "bash"
	LanguageHTML       Language = "html"
	LanguageCSS        Language = "css"
	LanguageJSON       Language = "json"
	// LanguagePlainText is assigned to imported files with unknown extensions.
	LanguagePlainText Language = "plaintext"
)

// LanguageSpec describes a selectable language.
type LanguageSpec struct {
	Value   Language `json:"value"`
	Label   string   `json:"label"`
	Ext     string   `json:"ext"`
	Console bool     `json:"console"`
}

var languages = []LanguageSpec{
	{Value: LanguageJavaScript, Label: "JavaScript", Ext: "js"},
	{Value: LanguageTypeScript, Label: "TypeScript", Ext: "ts", Console: true},
	{Value: LanguagePython, Label: "Python", Ext: "py", Console: true},
	{Value: LanguageCPP, Label: "C++", Ext: "cpp", Console: true},
	{Value: LanguageC, Label: "C", Ext: "c", Console: true},
	{Value: LanguageJava, Label: "Java", Ext: "java", Console: true},
	{Value: LanguageCSharp, Label: "C#", Ext: "cs", Console: true},
	{Value: LanguageGo, Label: "Go", Ext: "go", Console: true},
	{Value: LanguageRuby, Label: "Ruby", Ext: "rb", Console: true},
	{Value: LanguagePHP, Label: "PHP", Ext: "php", Console: true},
	{Value: LanguageRust, Label: "Rust", Ext: "rs", Console: true},
	{Value: LanguageSwift, Label: "Swift", Ext: "swift", Console: true},
	{Value: LanguageKotlin, Label: "Kotlin", Ext: "kt", Console: true},
	{Value: LanguageBash, Label: "Bash", Ext: "sh", Console: true},
	{Value: LanguageHTML, Label: "HTML", Ext: "html"},
	{Value: LanguageCSS, Label: "CSS", Ext: "css"},
	{Value: LanguageJSON, Label: "JSON", Ext: "json"},
}

var templates = map[Language]string{
	LanguageJavaScript: "// JavaScript file\n",
	LanguagePython:     "# Python file\n",
	LanguageHTML:       "<!DOCTYPE html>\n<html>\n<head>\n  <title>Document</title>\n</head>\n<body>\n\n</body>\n</html>",
	LanguageCSS:        "/* CSS file */\n",
	LanguageTypeScript: "// TypeScript file\n",
	LanguageCPP:        "#include <iostream>\nint main() {\n  std::cout << \"Hello, World!\" << std::endl;\n  return 0;\n}",
}

// Languages returns the selectable languages in display order.
func Languages() []LanguageSpec {
	return append([]LanguageSpec(nil), languages...)
}

// LookupLanguage returns the LanguageSpec for a language tag.
func LookupLanguage(lang Language) (LanguageSpec, bool) {
	for _, spec := range languages {
		if spec.Value == lang {
			return spec, true
		}
	}
	return LanguageSpec{}, false
}

// LanguageForExtension maps a file extension (with or without the dot) to a
// language tag. Unknown extensions map to LanguagePlainText.
func LanguageForExtension(ext string) Language {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return LanguagePlainText
	}
	for _, spec := range languages {
		if spec.Ext == ext {
			return spec.Value
		}
	}
	return LanguagePlainText
}

// LanguageForFileName maps a file name to a language tag by its extension.
func LanguageForFileName(name string) Language {
	return LanguageForExtension(path.Ext(strings.TrimSpace(name)))
}

// ModeFor picks the execution mode for a language. Console languages run
// remotely; everything else renders through the composed preview.
func ModeFor(lang Language) RunMode {
	if spec, ok := LookupLanguage(lang); ok && spec.Console {
		return RunModeRemote
	}
	return RunModePreview
}

// Template returns the starter code for a new file of the given language.
func Template(lang Language) string {
	return templates[lang]
}
