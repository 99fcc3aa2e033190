package anicache

import "testing"

func TestNewKeyDeterministic(t *testing.T) {
	a := NewKey("anidb", "search_anime", map[string]any{"query": "bebop", "limit": 10})
	b := NewKey("anidb", "search_anime", map[string]any{"limit": 10, "query": "bebop"})
	if a.ArgsHash != b.ArgsHash {
		t.Fatalf("hashes differ for identical args: %q vs %q", a.ArgsHash, b.ArgsHash)
	}
	if len(a.ArgsHash) != 16 {
		t.Fatalf("hash length = %d, want 16", len(a.ArgsHash))
	}

	c := NewKey("anidb", "search_anime", map[string]any{"query": "trigun", "limit": 10})
	if c.ArgsHash == a.ArgsHash {
		t.Fatal("different args should hash differently")
	}
}

func TestNewKeyEmptyArgs(t *testing.T) {
	a := NewKey("anidb", "search_anime", nil)
	b := NewKey("anidb", "search_anime", map[string]any{})
	if a.ArgsHash != b.ArgsHash {
		t.Fatalf("nil and empty args should hash the same: %q vs %q", a.ArgsHash, b.ArgsHash)
	}
	if a.ArgsJSON != "{}" {
		t.Fatalf("args json = %q, want {}", a.ArgsJSON)
	}
}

func TestKeyString(t *testing.T) {
	k := NewKey("anidb", "anime_details", map[string]any{"aid": 1})
	want := "anidb:anime_details:" + k.ArgsHash
	if got := k.String(); got != want {
		t.Fatalf("key = %q, want %q", got, want)
	}
}
