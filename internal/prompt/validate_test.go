package prompt

import (
	"testing"

	"github.com/yggdrasil-au/remake-engine/internal/manifest"
)

func TestValidate_NoRulePasses(t *testing.T) {
	p := manifest.Prompt{Name: "Path"}
	if err := Validate(p, "anything"); err != nil {
		t.Fatalf("expected no validation rule to pass, got %v", err)
	}
}

func TestValidate_Regex(t *testing.T) {
	p := manifest.Prompt{Name: "Version", Validation: `regex:^v\d+\.\d+\.\d+$`}

	if err := Validate(p, "v1.2.3"); err != nil {
		t.Fatalf("expected v1.2.3 to match, got %v", err)
	}
	if err := Validate(p, "not-a-version"); err == nil {
		t.Fatal("expected validation failure")
	}
}

func TestValidate_Expr(t *testing.T) {
	p := manifest.Prompt{Name: "Name", Validation: `expr:len(answer) > 0 && len(answer) < 32`}

	if err := Validate(p, "ok"); err != nil {
		t.Fatalf("expected short answer to pass, got %v", err)
	}

	long := make([]byte, 40)
	for i := range long {
		long[i] = 'a'
	}
	if err := Validate(p, string(long)); err == nil {
		t.Fatal("expected long answer to fail validation")
	}
}

func TestValidate_UnknownRuleShapePasses(t *testing.T) {
	p := manifest.Prompt{Name: "X", Validation: "not-a-known-shape"}
	if err := Validate(p, "anything"); err != nil {
		t.Fatalf("unrecognized rule shape should not fail validation, got %v", err)
	}
}
