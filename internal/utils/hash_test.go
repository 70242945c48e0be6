package utils

import "testing"

func TestHashString(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "simple string", input: "gateway=all|unique=true"},
		{name: "empty string", input: ""},
		{name: "unicode string", input: "模型目录"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash := HashString(tt.input)

			// BLAKE2b-256 produces 64 hex characters
			if len(hash) != 64 {
				t.Errorf("HashString() length = %d, want 64", len(hash))
			}
			if again := HashString(tt.input); again != hash {
				t.Errorf("HashString() not deterministic: %s != %s", hash, again)
			}
		})
	}
}

func TestHashString_Distinct(t *testing.T) {
	if HashString("limit=10") == HashString("limit=11") {
		t.Error("HashString() collided on distinct inputs")
	}
}
