package main

import (
	"testing"

	"github.com/yggdrasil-au/remake-engine/internal/manifest"
)

func TestParseAnswers_CoercesTypes(t *testing.T) {
	answers, err := parseAnswers([]string{
		"Confirm=true",
		"Skip=false",
		"Tags=a,b,c",
		"Name=Bart",
	})
	if err != nil {
		t.Fatalf("parseAnswers: %v", err)
	}
	if answers["Confirm"] != true {
		t.Errorf("expected Confirm=true, got %v", answers["Confirm"])
	}
	if answers["Skip"] != false {
		t.Errorf("expected Skip=false, got %v", answers["Skip"])
	}
	tags, ok := answers["Tags"].([]string)
	if !ok || len(tags) != 3 || tags[0] != "a" {
		t.Errorf("expected Tags split into [a b c], got %v", answers["Tags"])
	}
	if answers["Name"] != "Bart" {
		t.Errorf("expected Name=Bart, got %v", answers["Name"])
	}
}

func TestParseAnswers_RejectsMissingEquals(t *testing.T) {
	if _, err := parseAnswers([]string{"NoEquals"}); err == nil {
		t.Fatal("expected error for flag without name=value shape")
	}
}

func TestFindOperation(t *testing.T) {
	ops := []manifest.Operation{
		{Name: "Extract"},
		{Name: "Convert"},
	}
	op, ok := findOperation(ops, "Convert")
	if !ok || op.Name != "Convert" {
		t.Fatalf("expected to find Convert, got %+v ok=%v", op, ok)
	}
	if _, ok := findOperation(ops, "Missing"); ok {
		t.Fatal("expected Missing to not be found")
	}
}
