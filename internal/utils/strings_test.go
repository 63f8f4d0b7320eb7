package utils

import "testing"

func TestMaskKey(t *testing.T) {
	if got := MaskKey(""); got != "(empty)" {
		t.Fatalf("MaskKey(empty) = %q", got)
	}
	if got := MaskKey("short"); got != "****" {
		t.Fatalf("MaskKey(short) = %q", got)
	}
	if got := MaskKey("sk-abcdefghijklmnop"); got != "sk-abcde...mnop" {
		t.Fatalf("MaskKey = %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("hello", 3); got != "hel" {
		t.Fatalf("TruncateRunes = %q", got)
	}
	if got := TruncateRunes("hello", 10); got != "hello" {
		t.Fatalf("TruncateRunes = %q", got)
	}
	if got := TruncateRunes("héllo", 2); got != "hé" {
		t.Fatalf("TruncateRunes multibyte = %q", got)
	}
	if got := TruncateRunes("x", 0); got != "" {
		t.Fatalf("TruncateRunes zero = %q", got)
	}
}
