package schema

import "testing"

func TestModeFor(t *testing.T) {
	preview := []Language{LanguageHTML, LanguageCSS, LanguageJavaScript, LanguageJSON, LanguagePlainText}
	for _, lang := range preview {
		if got := ModeFor(lang); got != RunModePreview {
			t.Fatalf("%s: expected preview, got %s", lang, got)
		}
	}
	remote := []Language{
		LanguagePython, LanguageCPP, LanguageC, LanguageJava, LanguageCSharp, LanguageGo,
		LanguageRuby, LanguagePHP, LanguageRust, LanguageSwift, LanguageKotlin, LanguageBash, LanguageTypeScript,
	}
	for _, lang := range remote {
		if got := ModeFor(lang); got != RunModeRemote {
			t.Fatalf("%s: expected remote, got %s", lang, got)
		}
	}
}

func TestLanguageForFileName(t *testing.T) {
	cases := map[string]Language{
		"main.py":     LanguagePython,
		"APP.JS":      LanguageJavaScript,
		"index.html":  LanguageHTML,
		"data.json":   LanguageJSON,
		"run.sh":      LanguageBash,
		"notes.txt":   LanguagePlainText,
		"Makefile":    LanguagePlainText,
		"archive.tgz": LanguagePlainText,
	}
	for name, want := range cases {
		if got := LanguageForFileName(name); got != want {
			t.Fatalf("%s: expected %s, got %s", name, want, got)
		}
	}
}

func TestRuntimeMatches(t *testing.T) {
	rt := Runtime{Language: "javascript", Version: "18.15.0", Aliases: []string{"node-javascript", "node-js", "js"}}
	if !rt.Matches("javascript") || !rt.Matches("js") {
		t.Fatalf("expected language and alias to match")
	}
	if rt.Matches("typescript") {
		t.Fatalf("unexpected match for typescript")
	}
}
