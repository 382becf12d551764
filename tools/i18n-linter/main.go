// Copyright (c) 2026 Markbook Team
// Markbook - exam evaluation tracking store
// This source code is licensed under the MIT license found in the LICENSE file.

// i18n-linter checks that every translation key used through i18n.T exists
// in the primary locale and that every other locale carries the same keys.
// Keys present in the primary locale but never used are reported as a
// warning only.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	localesDir    = "internal/i18n/locales"
	primaryLocale = "en.yaml"
	projectRoot   = "."
)

// report is the outcome of one lint run.
type report struct {
	Undefined []string            // used in code, missing from the primary locale
	Orphaned  []string            // in the primary locale, never used
	Missing   map[string][]string // locale file -> keys it lacks
}

func (r report) failed() bool {
	if len(r.Undefined) > 0 {
		return true
	}
	for _, keys := range r.Missing {
		if len(keys) > 0 {
			return true
		}
	}
	return false
}

func main() {
	r, err := lint(projectRoot, localesDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "i18n-linter: %v\n", err)
		os.Exit(1)
	}
	printReport(os.Stdout, r)
	if r.failed() {
		os.Exit(1)
	}
}

func lint(root, locales string) (report, error) {
	used, err := findUsedKeys(root)
	if err != nil {
		return report{}, fmt.Errorf("scan sources: %w", err)
	}
	primary, err := loadKeysFromLocale(filepath.Join(locales, primaryLocale))
	if err != nil {
		return report{}, fmt.Errorf("load primary locale: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(locales, "*.yaml"))
	if err != nil {
		return report{}, err
	}

	r := report{
		Undefined: difference(used, primary),
		Orphaned:  difference(primary, used),
		Missing:   map[string][]string{},
	}
	for _, file := range files {
		if filepath.Base(file) == primaryLocale {
			continue
		}
		keys, err := loadKeysFromLocale(file)
		if err != nil {
			return report{}, fmt.Errorf("load %s: %w", file, err)
		}
		r.Missing[filepath.Base(file)] = difference(primary, keys)
	}
	return r, nil
}

func printReport(w io.Writer, r report) {
	section := func(title string, keys []string) {
		fmt.Fprintf(w, "--- %s ---\n", title)
		if len(keys) == 0 {
			fmt.Fprintln(w, "  none")
			return
		}
		for _, k := range keys {
			fmt.Fprintf(w, "  - %s\n", k)
		}
	}
	section("Undefined keys (used in code, missing from "+primaryLocale+")", r.Undefined)
	section("Orphaned keys (never used)", r.Orphaned)

	locales := make([]string, 0, len(r.Missing))
	for name := range r.Missing {
		locales = append(locales, name)
	}
	sort.Strings(locales)
	for _, name := range locales {
		section("Missing keys in "+name, r.Missing[name])
	}
}

// difference returns the sorted keys of a that are not in b.
func difference(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

var keyCall = regexp.MustCompile(`i18n\.T\("([^"]+)"`)

// findUsedKeys scans non-test .go files below root for i18n.T("key") calls.
// Directories starting with "_" or "." and the tools directory are skipped.
func findUsedKeys(root string) (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			name := info.Name()
			if path != root && (name == "tools" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, m := range keyCall.FindAllStringSubmatch(string(content), -1) {
			keys[m[1]] = struct{}{}
		}
		return nil
	})
	return keys, err
}

// loadKeysFromLocale reads a YAML file and returns a flat map of its keys.
func loadKeysFromLocale(path string) (map[string]struct{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var data map[string]interface{}
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, err
	}

	keys := make(map[string]struct{})
	flattenYAML("", data, keys)
	return keys, nil
}

// flattenYAML converts a nested map into dot-separated keys.
func flattenYAML(prefix string, node interface{}, keys map[string]struct{}) {
	switch v := node.(type) {
	case map[string]interface{}:
		for k, val := range v {
			next := k
			if prefix != "" {
				next = prefix + "." + k
			}
			flattenYAML(next, val, keys)
		}
	default:
		if prefix != "" {
			keys[prefix] = struct{}{}
		}
	}
}
