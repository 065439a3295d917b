package manifest

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/yggdrasil-au/remake-engine/internal/errs"
)

// Load parses a manifest file (spec §4.2) into its grouped mapping. A
// missing file returns an empty mapping, not an error. Format is chosen
// by file extension (.toml vs anything else treated as JSON).
func Load(path string) (Grouped, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Grouped{}, nil, nil
		}
		return nil, nil, errs.Wrap(errs.IOError, err, "read manifest %s", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return loadTOML(data)
	}
	return loadJSON(data)
}

// LoadFlat concatenates every group's operations in declaration order
// (spec §4.2).
func LoadFlat(path string) ([]Operation, error) {
	grouped, order, err := Load(path)
	if err != nil {
		return nil, err
	}
	var flat []Operation
	for _, name := range order {
		flat = append(flat, grouped[name]...)
	}
	return flat, nil
}

// loadJSON accepts either {groupName: [op,...], ...} or a top-level [op,...]
// array (treated as one implicit "operation" group, per spec §6).
func loadJSON(data []byte) (Grouped, []string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Grouped{}, nil, nil
	}

	if trimmed[0] == '[' {
		var raw []map[string]any
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, nil, errs.Wrap(errs.ParseError, err, "parse JSON operation list")
		}
		ops, err := opsFromRaw(raw)
		if err != nil {
			return nil, nil, err
		}
		return Grouped{"operation": ops}, []string{"operation"}, nil
	}

	order, err := jsonTopLevelKeyOrder(trimmed)
	if err != nil {
		return nil, nil, errs.Wrap(errs.ParseError, err, "scan JSON group order")
	}

	var rawGroups map[string][]map[string]any
	if err := json.Unmarshal(trimmed, &rawGroups); err != nil {
		return nil, nil, errs.Wrap(errs.ParseError, err, "parse JSON grouped manifest")
	}

	out := make(Grouped, len(rawGroups))
	for name, rawOps := range rawGroups {
		ops, err := opsFromRaw(rawOps)
		if err != nil {
			return nil, nil, err
		}
		out[name] = ops
	}
	return out, order, nil
}

// jsonTopLevelKeyOrder walks the JSON token stream to recover the
// declaration order of the top-level object's keys — encoding/json's map
// decoding does not preserve this, but spec §4.2 requires flat loads to
// concatenate groups "in declaration order".
func jsonTopLevelKeyOrder(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil
	}

	var order []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		order = append(order, key)
		if err := skipJSONValue(dec); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// skipJSONValue consumes exactly one JSON value (scalar, object, or
// array) from dec, leaving the decoder positioned after it.
func skipJSONValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil // scalar already consumed
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	_ = delim
	return nil
}

// loadTOML accepts [[groupName]] tables-of-arrays, or a top-level
// [[operation]] table-of-arrays (spec §4.2, §6).
func loadTOML(data []byte) (Grouped, []string, error) {
	var raw map[string][]map[string]any
	meta, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, nil, errs.Wrap(errs.ParseError, err, "parse TOML manifest")
	}

	order := tomlTopLevelKeyOrder(meta)
	out := make(Grouped, len(raw))
	for name, rawOps := range raw {
		ops, err := opsFromRaw(rawOps)
		if err != nil {
			return nil, nil, err
		}
		out[name] = ops
	}
	return out, order, nil
}

func tomlTopLevelKeyOrder(meta toml.MetaData) []string {
	seen := make(map[string]bool)
	var order []string
	for _, key := range meta.Keys() {
		if len(key) == 0 {
			continue
		}
		top := key[0]
		if !seen[top] {
			seen[top] = true
			order = append(order, top)
		}
	}
	return order
}

// opsFromRaw converts a slice of generic decoded maps into typed
// Operations, applying case-insensitive key lookup and preserving
// unrecognized keys (spec §9).
func opsFromRaw(raw []map[string]any) ([]Operation, error) {
	ops := make([]Operation, 0, len(raw))
	for _, r := range raw {
		op, err := operationFromMap(r)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func operationFromMap(raw map[string]any) (Operation, error) {
	op := Operation{Extra: make(map[string]any)}
	ci := newCaseInsensitiveMap(raw)

	if v, ok := ci.take("id"); ok {
		if n, ok := asInt(v); ok {
			op.ID = n
			op.HasID = true
		}
	}
	if v, ok := ci.take("name"); ok {
		op.Name, _ = v.(string)
	}
	if v, ok := ci.take("script"); ok {
		op.Script, _ = v.(string)
	}
	if v, ok := ci.take("script_type"); ok {
		if s, ok := v.(string); ok {
			op.ScriptType = ScriptType(strings.ToLower(s))
		}
	}
	if v, ok := ci.take("args"); ok {
		op.Args = asStringSlice(v)
	}
	if v, ok := ci.take("depends-on"); ok {
		op.DependsOn = asIntSlice(v)
	}
	if v, ok := ci.take("init"); ok {
		op.Init, _ = v.(bool)
	}
	if v, ok := ci.take("run-all"); ok {
		op.RunAll, _ = v.(bool)
	}
	if v, ok := ci.take("prompts"); ok {
		prompts, err := promptsFromRaw(v)
		if err != nil {
			return op, err
		}
		op.Prompts = prompts
	}
	if v, ok := ci.take("onsuccess"); ok {
		children, err := onSuccessFromRaw(v)
		if err != nil {
			return op, err
		}
		op.OnSuccess = children
	}

	// Everything left in ci.remaining is an unknown key, preserved verbatim.
	for k, v := range ci.remaining {
		op.Extra[k] = v
	}

	if err := validatePromptNames(op); err != nil {
		return op, err
	}
	return op, nil
}

func onSuccessFromRaw(v any) ([]Operation, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, nil
	}
	maps := make([]map[string]any, 0, len(raw))
	for _, elem := range raw {
		if m, ok := elem.(map[string]any); ok {
			maps = append(maps, m)
		}
	}
	return opsFromRaw(maps)
}

func validatePromptNames(op Operation) error {
	seen := make(map[string]bool, len(op.Prompts))
	for _, p := range op.Prompts {
		if seen[p.Name] {
			return errs.New(errs.ParseError, "duplicate prompt name %q in operation %q", p.Name, op.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

func promptsFromRaw(v any) ([]Prompt, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, nil
	}
	prompts := make([]Prompt, 0, len(raw))
	for _, elem := range raw {
		m, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		prompts = append(prompts, promptFromMap(m))
	}
	return prompts, nil
}

func promptFromMap(raw map[string]any) Prompt {
	ci := newCaseInsensitiveMap(raw)
	p := Prompt{}
	if v, ok := ci.take("name"); ok {
		p.Name, _ = v.(string)
	}
	if v, ok := ci.take("type"); ok {
		if s, ok := v.(string); ok {
			p.Type = PromptType(strings.ToLower(s))
		}
	}
	if v, ok := ci.take("message"); ok {
		p.Message, _ = v.(string)
	}
	if v, ok := ci.take("default"); ok {
		p.Default = v
	}
	if v, ok := ci.take("choices"); ok {
		p.Choices = asStringSlice(v)
	}
	if v, ok := ci.take("condition"); ok {
		p.Condition, _ = v.(string)
	}
	if v, ok := ci.take("required"); ok {
		p.Required, _ = v.(bool)
	}
	if v, ok := ci.take("validation"); ok {
		p.Validation, _ = v.(string)
	}
	if v, ok := ci.take("cli_arg"); ok {
		p.CLIArg, _ = v.(string)
	}
	if v, ok := ci.take("cli_arg_prefix"); ok {
		p.CLIArgPrefix, _ = v.(string)
	}
	if v, ok := ci.take("cli_prefix"); ok {
		p.CLIPrefix, _ = v.(string)
	}
	return p
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int64(n)) {
			return int(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

func asStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, elem := range raw {
		if s, ok := elem.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asIntSlice(v any) []int {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, elem := range raw {
		if n, ok := asInt(elem); ok {
			out = append(out, n)
		}
	}
	return out
}

// caseInsensitiveMap supports spec §4.2's "keys are case-insensitive"
// while tracking which original keys were consumed, so whatever remains
// becomes Operation.Extra.
type caseInsensitiveMap struct {
	remaining map[string]any
	lowerToOriginal map[string]string
}

func newCaseInsensitiveMap(raw map[string]any) *caseInsensitiveMap {
	lower := make(map[string]string, len(raw))
	remaining := make(map[string]any, len(raw))
	for k, v := range raw {
		lower[strings.ToLower(k)] = k
		remaining[k] = v
	}
	return &caseInsensitiveMap{remaining: remaining, lowerToOriginal: lower}
}

func (c *caseInsensitiveMap) take(lowerKey string) (any, bool) {
	orig, ok := c.lowerToOriginal[lowerKey]
	if !ok {
		return nil, false
	}
	v, ok := c.remaining[orig]
	if ok {
		delete(c.remaining, orig)
	}
	return v, ok
}
