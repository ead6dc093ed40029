package data

import "testing"

func TestResultFingerprint(t *testing.T) {
	a := ResultFingerprint("agent-1", "link-1", "user=admin")
	b := ResultFingerprint("agent-1", "link-1", "user=admin")
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s vs %s", a, b)
	}
	if ResultFingerprint("agent-1", "link-1", "user=guest") == a {
		t.Error("different output should change the fingerprint")
	}
	if ResultFingerprint("agent-1", "link-2", "user=admin") == a {
		t.Error("different link should change the fingerprint")
	}
	if ResultFingerprint("agent-2", "link-1", "user=admin") == a {
		t.Error("different reporting agent should change the fingerprint")
	}
}
