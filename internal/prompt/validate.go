// Package prompt validates a single prompt answer against the open-ended
// validation rule carried by manifest.Prompt.Validation (spec §3: "Prompt
// ... validation?" is left unspecified in the distilled spec). This is a
// pure front-end helper — the facade and command builder never call it;
// a front-end calls it before submitting answers, per SPEC_FULL.md's
// SUPPLEMENTED FEATURES "Prompt answer validation" section.
package prompt

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/yggdrasil-au/remake-engine/internal/manifest"
	"github.com/yggdrasil-au/remake-engine/internal/placeholder"
)

const (
	regexPrefix = "regex:"
	exprPrefix  = "expr:"
	exprTimeout = 2 * time.Second
)

// Validate checks value against p.Validation, if any. A prompt with no
// Validation rule always passes. Two rule shapes are recognized:
//
//	regex:<pattern>    value (stringified) must match pattern
//	expr:<go bool expr> value bound as `answer` (string); expr must be
//	                    a boolean expression evaluated through a yaegi
//	                    interpreter restricted to a safe stdlib allow-list
//
// An unrecognized rule shape is treated as always-valid — spec is silent
// on validation syntax, so a manifest author's typo should not be fatal
// to every answer.
func Validate(p manifest.Prompt, value any) error {
	rule := strings.TrimSpace(p.Validation)
	if rule == "" {
		return nil
	}

	str := placeholder.Stringify(value)

	switch {
	case strings.HasPrefix(rule, regexPrefix):
		return validateRegex(p.Name, strings.TrimPrefix(rule, regexPrefix), str)
	case strings.HasPrefix(rule, exprPrefix):
		return validateExpr(p.Name, strings.TrimPrefix(rule, exprPrefix), str)
	default:
		return nil
	}
}

func validateRegex(promptName, pattern, value string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("prompt %q: invalid validation regex %q: %w", promptName, pattern, err)
	}
	if !re.MatchString(value) {
		return fmt.Errorf("prompt %q: %q does not match %q", promptName, value, pattern)
	}
	return nil
}

// safeStdlibSymbols restricts the yaegi interpreter to the same
// no-os/no-exec/no-net allow-list the teacher's autopoiesis.YaegiExecutor
// uses, so an expr: rule cannot touch the filesystem or network.
func safeStdlibSymbols() map[string]map[string]reflect.Value {
	allowed := map[string]bool{
		"strings":         true,
		"strconv":         true,
		"fmt":             true,
		"math":            true,
		"regexp":          true,
		"encoding/json":   true,
		"encoding/base64": true,
		"time":            true,
		"sort":            true,
		"bytes":           true,
		"path":            true,
		"path/filepath":   true,
		"unicode":         true,
	}
	// stdlib.Symbols keys are "import/path/packagename" (the final
	// segment duplicates the package name); derive the import path by
	// dropping it.
	out := make(map[string]map[string]reflect.Value, len(allowed))
	for key, syms := range stdlib.Symbols {
		importPath := key
		if idx := strings.LastIndex(key, "/"); idx >= 0 {
			importPath = key[:idx]
		}
		if allowed[importPath] {
			out[key] = syms
		}
	}
	return out
}

func validateExpr(promptName, expr, value string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil
	}

	i := interp.New(interp.Options{})
	if useErr := i.Use(safeStdlibSymbols()); useErr != nil {
		return fmt.Errorf("prompt %q: yaegi stdlib setup: %w", promptName, useErr)
	}

	src := fmt.Sprintf(`
package main

func Validate(answer string) bool {
	return %s
}
`, expr)

	if _, evalErr := i.Eval(src); evalErr != nil {
		return fmt.Errorf("prompt %q: invalid validation expr %q: %w", promptName, expr, evalErr)
	}

	fn, evalErr := i.Eval("main.Validate")
	if evalErr != nil {
		return fmt.Errorf("prompt %q: validation expr did not compile: %w", promptName, evalErr)
	}
	validateFn, ok := fn.Interface().(func(string) bool)
	if !ok {
		return fmt.Errorf("prompt %q: validation expr must evaluate to bool", promptName)
	}

	ctx, cancel := context.WithTimeout(context.Background(), exprTimeout)
	defer cancel()

	resultCh := make(chan bool, 1)
	go func() { resultCh <- validateFn(value) }()

	select {
	case ok := <-resultCh:
		if !ok {
			return fmt.Errorf("prompt %q: %q failed validation %q", promptName, value, expr)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("prompt %q: validation expr timed out", promptName)
	}
}
