package project

import (
	"strings"
	"testing"
)

func TestBuildHookBlockGuardsMissingBinary(t *testing.T) {
	block := BuildHookBlock(Hooks[0])
	for _, expected := range []string{
		HookStart,
		"command -v leanproject",
		"leanproject mk-cache || true",
		HookEnd,
	} {
		if !strings.Contains(block, expected) {
			t.Fatalf("expected hook block to contain %q, got:\n%s", expected, block)
		}
	}
}

func TestUpsertHookBlockReplacesExistingBlock(t *testing.T) {
	hook := Hook{Name: "post-checkout", Command: "leanproject get-cache"}
	existing := "#!/bin/sh\n\necho before\n" + HookStart + "\nold block\n" + HookEnd + "\n\necho after\n"
	updated := UpsertHookBlock(existing, hook)

	if strings.Contains(updated, "old block") {
		t.Fatalf("expected old hook block to be replaced, got:\n%s", updated)
	}
	if strings.Count(updated, HookStart) != 1 || strings.Count(updated, HookEnd) != 1 {
		t.Fatalf("expected exactly one hook block after update, got:\n%s", updated)
	}
	if !strings.Contains(updated, "echo before") || !strings.Contains(updated, "echo after") {
		t.Fatalf("expected other hook content to be preserved, got:\n%s", updated)
	}
}

func TestUpsertHookBlockAppendsToForeignHook(t *testing.T) {
	hook := Hooks[1]
	updated := UpsertHookBlock("echo mine", hook)

	if !strings.HasPrefix(updated, "#!/bin/sh\necho mine\n") {
		t.Fatalf("expected shebang and original content first, got:\n%s", updated)
	}
	if !strings.HasSuffix(updated, HookEnd+"\n") {
		t.Fatalf("expected managed block at the end, got:\n%s", updated)
	}
	if again := UpsertHookBlock(updated, hook); again != updated {
		t.Fatalf("expected upsert to be idempotent, got:\n%s", again)
	}
}

func TestUpsertHookBlockCreatesScript(t *testing.T) {
	updated := UpsertHookBlock("", Hooks[0])
	if !strings.HasPrefix(updated, "#!/bin/sh\n\n"+HookStart) {
		t.Fatalf("unexpected new hook script:\n%s", updated)
	}
}
