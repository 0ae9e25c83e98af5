// Package manifest loads the pipeline registry listing every known pipeline.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const DefaultLocation = "https://nf-co.re/pipelines.json"

// maxManifestBytes caps a remote manifest download.
const maxManifestBytes = 32 << 20

// Pipeline is one registry entry.
type Pipeline struct {
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

type Manifest struct {
	Pipelines []Pipeline `json:"remote_workflows"`
}

// Names returns every pipeline name in registry order.
func (m *Manifest) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.Pipelines))
	for _, p := range m.Pipelines {
		names = append(names, p.Name)
	}
	return names
}

// Archived returns the set of pipelines the registry marks archived.
func (m *Manifest) Archived() map[string]bool {
	out := map[string]bool{}
	if m == nil {
		return out
	}
	for _, p := range m.Pipelines {
		if p.Archived {
			out[p.Name] = true
		}
	}
	return out
}

// Load reads the manifest from a local path or an http(s) URL.
func Load(ctx context.Context, location string, client *http.Client) (*Manifest, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		location = DefaultLocation
	}

	var (
		raw []byte
		err error
	)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		raw, err = fetch(ctx, location, client)
	} else {
		raw, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", location, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	for i, p := range m.Pipelines {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("decode manifest: pipeline %d has no name", i)
		}
	}
	return &m, nil
}

func fetch(ctx context.Context, location string, client *http.Client) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
}
