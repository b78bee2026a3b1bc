package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRootHasCommands(t *testing.T) {
	root := newRootCmd()
	names := make(map[string]bool)
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "run", "runtimes", "export", "init-config", "bootstrap", "version"} {
		if !names[want] {
			t.Fatalf("expected root command to include %s", want)
		}
	}
}

func TestVersionCommandPrintsModule(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "snippad ") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestInitConfigRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	root := newRootCmd()
	root.SetArgs([]string{"init-config", "-c", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("init-config: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	root = newRootCmd()
	root.SetArgs([]string{"init-config", "-c", path})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected second init-config to fail without --force")
	}
	root = newRootCmd()
	root.SetArgs([]string{"init-config", "-c", path, "--force"})
	if err := root.Execute(); err != nil {
		t.Fatalf("init-config --force: %v", err)
	}
}

func TestExportComposesFiles(t *testing.T) {
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "index.html")
	cssPath := filepath.Join(dir, "style.css")
	out := filepath.Join(dir, "out.html")
	if err := os.WriteFile(htmlPath, []byte("<p>hi</p>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(cssPath, []byte("p{color:red}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	root := newRootCmd()
	root.SetArgs([]string{"export", htmlPath, cssPath, "-o", out})
	if err := root.Execute(); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "<!DOCTYPE html>\n<html>\n<head>\n<style>p{color:red}</style>\n</head>\n<body>\n<p>hi</p>\n<script></script>\n</body>\n</html>"
	if string(data) != want {
		t.Fatalf("unexpected document:\n%s", data)
	}
}
