package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeDotEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	return path
}

func TestLoadDotEnv_LoadsValuesAndIgnoresNoise(t *testing.T) {
	t.Setenv("A", "")
	t.Setenv("B", "")
	t.Setenv("C", "")
	t.Setenv("D", "")

	path := writeDotEnv(t, `
# comment

A=one
export B=two
C="three # not a comment"
D=four # trailing
broken line
`)

	set, err := loadDotEnv(path)
	if err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	if set != 4 {
		t.Fatalf("set=%d, want 4", set)
	}

	for key, want := range map[string]string{"A": "one", "B": "two", "C": "three # not a comment", "D": "four"} {
		if got := os.Getenv(key); got != want {
			t.Fatalf("%s=%q, want %q", key, got, want)
		}
	}
}

func TestLoadDotEnv_DoesNotOverwriteExistingEnv(t *testing.T) {
	t.Setenv("KEEP", "already")

	set, err := loadDotEnv(writeDotEnv(t, "KEEP=fromfile\n"))
	if err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}

	if set != 0 {
		t.Fatalf("set=%d, want 0", set)
	}
	if got := os.Getenv("KEEP"); got != "already" {
		t.Fatalf("KEEP=%q, want %q", got, "already")
	}
}

func TestLoadDotEnv_MissingFileIsNotAnError(t *testing.T) {
	set, err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil || set != 0 {
		t.Fatalf("got (%d, %v), want (0, nil)", set, err)
	}
}

func TestLoadDotEnv_StripsSingleQuotes(t *testing.T) {
	t.Setenv("Q", "")

	if _, err := loadDotEnv(writeDotEnv(t, "Q='hello world'\n")); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}

	if got := os.Getenv("Q"); got != "hello world" {
		t.Fatalf("Q=%q, want %q", got, "hello world")
	}
}
