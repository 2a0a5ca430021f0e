// Package override implements the Override Engine (spec.md §4.2): it
// loads user-authored rule files, matches them against a resolved
// operation and inbound request, and applies their JSON-Patch
// operations to a response body.
package override

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/mockforge/core/internal/model"
)

// LoadDiagnostic records one rule file's load outcome. An invalid rule
// inside an otherwise-valid file is skipped with a non-fatal
// diagnostic per spec.md §4.2 ("invalid rules are skipped with a
// diagnostic").
type LoadDiagnostic struct {
	File    string
	Message string
	Fatal   bool
}

// StaticExpander pre-expands request-independent template tokens
// (uuid, faker.*, env.*, now) at rule-load time. The template package
// supplies the real implementation; this interface exists so this
// package never imports internal/template directly, keeping the
// dependency direction single.
type StaticExpander interface {
	ExpandStatic(raw string) (string, error)
}

// ruleDocument is the on-disk shape of one override rule file: either a
// flat YAML list of rules (spec.md §4.2) or a mapping whose "rules" key
// holds that list; ParseFile accepts both.
type ruleDocument struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Target   string            `yaml:"target"`
	Targets  []string          `yaml:"targets"`
	Priority int               `yaml:"priority"`
	Method   string            `yaml:"method"`
	Headers  map[string]string `yaml:"headers"`
	Patch    []patchEntry      `yaml:"patch"`
}

type patchEntry struct {
	Op    model.PatchOpKind `yaml:"op"`
	Path  string            `yaml:"path"`
	Value any               `yaml:"value"`
}

// DiscoverFiles resolves glob patterns (and a colon-separated
// MOCKFORGE_OVERRIDE_PATH-style environment value, if non-empty) into a
// sorted, de-duplicated list of candidate rule files. gobwas/glob gives
// this "**"-aware matching over a directory walk rather than the
// shell-only single-level semantics of filepath.Glob.
func DiscoverFiles(patterns []string, envColonSeparated string) ([]string, error) {
	all := append([]string{}, patterns...)
	if envColonSeparated != "" {
		all = append(all, strings.Split(envColonSeparated, ":")...)
	}

	seen := map[string]struct{}{}
	var out []string
	for _, pattern := range all {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		matches, err := matchGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("override: bad glob pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

func matchGlob(pattern string) ([]string, error) {
	root := globRoot(pattern)
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}

	var matches []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if g.Match(path) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return matches, nil
}

// globRoot returns the longest path prefix of pattern that contains no
// glob metacharacters, so the directory walk starts as close to the
// match set as possible instead of always walking from ".".
func globRoot(pattern string) string {
	segments := strings.Split(pattern, "/")
	var root []string
	for _, seg := range segments {
		if strings.ContainsAny(seg, "*?[{") {
			break
		}
		root = append(root, seg)
	}
	if len(root) == 0 {
		return "."
	}
	joined := strings.Join(root, "/")
	if joined == "" {
		return "/"
	}
	return joined
}

// ParseFile reads and compiles one rule file into OverrideRules,
// pre-expanding request-independent patch values through expander and
// compiling every regex/path target up front so matching never touches
// regexp.Compile on the request path.
func ParseFile(path string, expander StaticExpander) ([]*model.OverrideRule, []LoadDiagnostic) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, []LoadDiagnostic{{File: path, Message: err.Error(), Fatal: true}}
	}

	var doc ruleDocument
	if listErr := yaml.Unmarshal(raw, &doc.Rules); listErr != nil {
		doc.Rules = nil
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, []LoadDiagnostic{{File: path, Message: err.Error(), Fatal: true}}
		}
	}

	var rules []*model.OverrideRule
	var diags []LoadDiagnostic
	for i, entry := range doc.Rules {
		rule, err := compileRule(path, entry, expander)
		if err != nil {
			diags = append(diags, LoadDiagnostic{
				File:    path,
				Message: fmt.Sprintf("rule %d skipped: %v", i, err),
			})
			continue
		}
		rules = append(rules, rule)
	}
	return rules, diags
}

func compileRule(path string, entry ruleEntry, expander StaticExpander) (*model.OverrideRule, error) {
	rawTargets := entry.Targets
	if entry.Target != "" {
		rawTargets = append([]string{entry.Target}, rawTargets...)
	}
	if len(rawTargets) == 0 {
		return nil, fmt.Errorf("rule has no target or targets")
	}

	targets := make([]model.Target, 0, len(rawTargets))
	for _, raw := range rawTargets {
		t, err := compileTarget(raw)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	patch := make([]model.PatchOp, 0, len(entry.Patch))
	for _, p := range entry.Patch {
		value := p.Value
		if s, ok := value.(string); ok && expander != nil {
			expanded, err := expander.ExpandStatic(s)
			if err != nil {
				return nil, fmt.Errorf("expand patch value at %s: %w", p.Path, err)
			}
			value = expanded
		}
		patch = append(patch, model.PatchOp{Op: p.Op, Path: p.Path, Value: value})
	}

	return &model.OverrideRule{
		SourceFile: path,
		Targets:    targets,
		Priority:   entry.Priority,
		Method:     entry.Method,
		Headers:    entry.Headers,
		Patch:      patch,
	}, nil
}

func compileTarget(raw string) (model.Target, error) {
	switch {
	case strings.HasPrefix(raw, "path:"):
		pattern := strings.TrimPrefix(raw, "path:")
		re, err := regexp.Compile(pattern)
		if err != nil {
			return model.Target{}, fmt.Errorf("compile path target %q: %w", pattern, err)
		}
		return model.Target{Form: model.TargetPathPattern, Raw: raw, Regex: re}, nil
	case strings.HasPrefix(raw, "regex:"):
		pattern := strings.TrimPrefix(raw, "regex:")
		re, err := regexp.Compile(pattern)
		if err != nil {
			return model.Target{}, fmt.Errorf("compile regex target %q: %w", pattern, err)
		}
		return model.Target{Form: model.TargetRegex, Raw: raw, Regex: re}, nil
	case strings.HasPrefix(raw, "op:"):
		return model.Target{Form: model.TargetOperation, Raw: raw, Name: strings.TrimPrefix(raw, "op:")}, nil
	case strings.HasPrefix(raw, "tag:"):
		return model.Target{Form: model.TargetTag, Raw: raw, Name: strings.TrimPrefix(raw, "tag:")}, nil
	default:
		return model.Target{Form: model.TargetLiteral, Raw: raw, Literal: raw}, nil
	}
}
