package github

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeGHStub(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test uses a shell script gh stub")
	}
	tmp := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmp, "gh"), []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile gh stub failed: %v", err)
	}
	return tmp
}

func TestResolveAuthToken(t *testing.T) {
	t.Run("explicit token wins", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "env-token")
		t.Setenv("PATH", t.TempDir())

		tok, src, err := ResolveAuthToken(context.Background(), " explicit ", "")
		if err != nil {
			t.Fatalf("ResolveAuthToken error: %v", err)
		}
		if tok != "explicit" || src != AuthTokenSourceExplicit {
			t.Fatalf("want explicit/%q, got %q/%q", AuthTokenSourceExplicit, tok, src)
		}
	})

	t.Run("GITHUB_TOKEN before GH_TOKEN", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "env-token")
		t.Setenv("GH_TOKEN", "gh-env-token")
		t.Setenv("PATH", t.TempDir())

		tok, src, err := ResolveAuthToken(context.Background(), "", "")
		if err != nil {
			t.Fatalf("ResolveAuthToken error: %v", err)
		}
		if tok != "env-token" || src != AuthTokenSourceEnv {
			t.Fatalf("want env-token/%q, got %q/%q", AuthTokenSourceEnv, tok, src)
		}
	})

	t.Run("GH_TOKEN used when GITHUB_TOKEN empty", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "")
		t.Setenv("GH_TOKEN", "gh-env-token")
		t.Setenv("PATH", t.TempDir())

		tok, src, err := ResolveAuthToken(context.Background(), "", "")
		if err != nil {
			t.Fatalf("ResolveAuthToken error: %v", err)
		}
		if tok != "gh-env-token" || src != AuthTokenSourceGHEnv {
			t.Fatalf("want gh-env-token/%q, got %q/%q", AuthTokenSourceGHEnv, tok, src)
		}
	})

	t.Run("gh token used when env empty", func(t *testing.T) {
		dir := writeGHStub(t, "#!/bin/sh\necho gh-token\n")
		t.Setenv("GITHUB_TOKEN", "")
		t.Setenv("GH_TOKEN", "")
		t.Setenv("PATH", dir)

		tok, src, err := ResolveAuthToken(context.Background(), "", "")
		if err != nil {
			t.Fatalf("ResolveAuthToken error: %v", err)
		}
		if tok != "gh-token" || src != AuthTokenSourceGitHubCL {
			t.Fatalf("want gh-token/%q, got %q/%q", AuthTokenSourceGitHubCL, tok, src)
		}
	})

	t.Run("gh receives host", func(t *testing.T) {
		dir := writeGHStub(t, "#!/bin/sh\necho \"$4\"\n")
		t.Setenv("GITHUB_TOKEN", "")
		t.Setenv("GH_TOKEN", "")
		t.Setenv("PATH", dir)

		tok, _, err := ResolveAuthToken(context.Background(), "", "ghe.example.com")
		if err != nil {
			t.Fatalf("ResolveAuthToken error: %v", err)
		}
		if tok != "ghe.example.com" {
			t.Fatalf("want host passed to gh, got %q", tok)
		}
	})

	t.Run("empty when neither env nor gh", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "")
		t.Setenv("GH_TOKEN", "")
		t.Setenv("PATH", t.TempDir())

		tok, src, err := ResolveAuthToken(context.Background(), "", "")
		if err != nil {
			t.Fatalf("ResolveAuthToken error: %v", err)
		}
		if tok != "" || src != "" {
			t.Fatalf("want empty token and source, got %q/%q", tok, src)
		}
	})

	t.Run("gh invalid token output returns error", func(t *testing.T) {
		dir := writeGHStub(t, "#!/bin/sh\nprintf 'line1\\nline2\\n'\n")
		t.Setenv("GITHUB_TOKEN", "")
		t.Setenv("GH_TOKEN", "")
		t.Setenv("PATH", dir)

		if _, _, err := ResolveAuthToken(context.Background(), "", ""); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("context canceled propagates error when using gh", func(t *testing.T) {
		dir := writeGHStub(t, "#!/bin/sh\necho gh-token\n")
		t.Setenv("GITHUB_TOKEN", "")
		t.Setenv("GH_TOKEN", "")
		t.Setenv("PATH", dir)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := ResolveAuthToken(ctx, "", "")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
