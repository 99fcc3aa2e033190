package anicache

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"*", "anidb:search_anime:abc", true},
		{"anidb:*", "anidb:search_anime:abc", true},
		{"anidb:*", "anilist:search_anime:abc", false},
		{"*:search_anime:*", "anidb:search_anime:abc", true},
		{"*:search_anime:*", "anidb:anime_details:abc", false},
		{"anidb:anime_details:abc", "anidb:anime_details:abc", true},
		{"anidb:anime_details:abc", "anidb:anime_details:abd", false},
		{"anidb:*:abc", "anidb:search_anime:abc", true},
		{"anidb:*", "anidb", false},
		{"", "", true},
		{"*", "", true},
	}
	for _, tt := range tests {
		if got := Match(tt.pattern, tt.key); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.key, got, tt.want)
		}
	}
}

func TestLikePattern(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"anidb:*", "anidb:%"},
		{"*", "%"},
		{"anidb:anime_details:*", `anidb:anime\_details:%`},
		{"100%:*", `100\%:%`},
		{`a\b`, `a\\b`},
	}
	for _, tt := range tests {
		if got := LikePattern(tt.pattern); got != tt.want {
			t.Errorf("LikePattern(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}
