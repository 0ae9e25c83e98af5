package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v81/github"
)

// presentFetchError turns a metadata fetch failure into a one-line message
// for users. Unless verbose is set, request URLs are dropped from it.
func presentFetchError(err error, verbose bool) string {
	if err == nil {
		return "unknown error"
	}

	if verbose {
		return err.Error()
	}

	// Prefer structured GitHub error types to avoid leaking full request URLs.
	var er *github.ErrorResponse
	if errors.As(err, &er) {
		msg := strings.TrimSpace(er.Message)
		if msg == "" {
			msg = "GitHub API request failed"
		}
		if er.Response != nil {
			code := er.Response.StatusCode
			return fmt.Sprintf("GitHub API request failed (%d %s): %s", code, http.StatusText(code), msg)
		}
		return fmt.Sprintf("GitHub API request failed: %s", msg)
	}

	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return fmt.Sprintf("GitHub API rate limit exceeded (resets %s)", rle.Rate.Reset.Format("15:04:05 MST"))
	}

	// Fallback: best-effort scrub to avoid printing full request details.
	s := strings.TrimSpace(err.Error())
	if scrubbed := scrubGitHubRequestFromErrorString(s); scrubbed != "" {
		return scrubbed
	}
	return s
}

func scrubGitHubRequestFromErrorString(s string) string {
	// Typical go-github error format:
	//   GET https://api.github.com/...: 403 Some message. [..]
	// Anything up to the first ": " after the URL is dropped.
	i := strings.Index(s, "https://")
	if i < 0 {
		i = strings.Index(s, "http://")
	}
	if i < 0 {
		return ""
	}
	if j := strings.Index(s[i:], ": "); j >= 0 {
		prefix := strings.TrimSpace(s[:i])
		for _, m := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
			prefix = strings.TrimSpace(strings.TrimSuffix(prefix, m))
		}
		rest := strings.TrimSpace(s[i+j+2:])
		if prefix == "" {
			return rest
		}
		return prefix + " " + rest
	}
	return ""
}
