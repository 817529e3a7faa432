package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"
)

// ErrLoad indicates a retrieval failure.
var ErrLoad = errors.New("metadata load")

// Resource is retrieved content plus the link relations that accompanied
// it. For HTTP retrievals Links carries the parsed Link header relations.
type Resource struct {
	URL   string
	Body  []byte
	Links map[string]string
}

// Loader retrieves bytes for metadata documents and object properties
// given as URL strings. Implementations must honor ctx cancellation.
type Loader interface {
	Load(ctx context.Context, url string) (*Resource, error)
}

// FileHTTPLoader loads http(s) URLs with an HTTP client, sending
// Accept: application/ld+json, application/json, and treats file:// URLs
// and bare paths as filesystem reads.
type FileHTTPLoader struct {
	Client *http.Client
}

const metadataAccept = "application/ld+json, application/json"

// Load implements [Loader].
func (l *FileHTTPLoader) Load(ctx context.Context, target string) (*Resource, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	switch u.Scheme {
	case "http", "https":
		return l.loadHTTP(ctx, target)
	case "file":
		return loadFile(u.Path, target)
	case "":
		return loadFile(target, target)
	}

	return nil, fmt.Errorf("%w: unsupported scheme %q", ErrLoad, u.Scheme)
}

func (l *FileHTTPLoader) loadHTTP(ctx context.Context, target string) (*Resource, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	req.Header.Set("Accept", metadataAccept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: %s", ErrLoad, target, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	return &Resource{
		URL:   resp.Request.URL.String(),
		Body:  body,
		Links: parseLinkHeader(resp.Header.Get("Link")),
	}, nil
}

func loadFile(p, target string) (*Resource, error) {
	body, err := os.ReadFile(p) //nolint:gosec // Paths come from caller-supplied metadata locations.
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	return &Resource{URL: target, Body: body}, nil
}

var linkRx = regexp.MustCompile(`<([^>]*)>((?:\s*;\s*[^,]*)?)`)

// parseLinkHeader extracts rel → target pairs from an HTTP Link header.
func parseLinkHeader(header string) map[string]string {
	if header == "" {
		return nil
	}

	links := map[string]string{}

	for _, m := range linkRx.FindAllStringSubmatch(header, -1) {
		target := m[1]

		for _, param := range strings.Split(m[2], ";") {
			key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || !strings.EqualFold(key, "rel") {
				continue
			}

			links[strings.Trim(value, `"`)] = target
		}
	}

	return links
}

// loadObject retrieves and decodes an object property given as a URL.
func (g *Graph) loadObject(link string) (map[string]any, error) {
	target := g.resolveAgainstBase(link)

	res, err := g.loader.Load(context.Background(), target)
	if err != nil {
		return nil, err
	}

	var obj map[string]any

	err = json.Unmarshal(res.Body, &obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	return obj, nil
}

// Open retrieves the metadata document at target and parses it. The base
// URL defaults to the retrieved location.
func Open(ctx context.Context, target string, opts ...Option) (*Graph, error) {
	cfg := parseConfig{hint: KindUnknown}
	for _, opt := range opts {
		opt(&cfg)
	}

	loader := cfg.loader
	if loader == nil {
		loader = &FileHTTPLoader{}
		opts = append(opts, WithLoader(loader))
	}

	res, err := loader.Load(ctx, target)
	if err != nil {
		return nil, err
	}

	if cfg.base == "" {
		opts = append(opts, WithBase(res.URL))
	}

	return ParseBytes(res.Body, opts...)
}

// ForInput discovers the metadata describing a tabular resource: the
// Link rel=describedby relation, then {base}-metadata.json, then
// metadata.json alongside. The first document that parses wins; retrieval
// and parse failures are swallowed. When nothing is found a minimal
// TableGroup referencing the input URL is synthesized.
func ForInput(ctx context.Context, input *Resource, opts ...Option) (*Graph, error) {
	cfg := parseConfig{hint: KindUnknown}
	for _, opt := range opts {
		opt(&cfg)
	}

	loader := cfg.loader
	if loader == nil {
		loader = &FileHTTPLoader{}
		opts = append(opts, WithLoader(loader))
	}

	diags := cfg.diags

	var candidates []string

	if described, ok := input.Links["describedby"]; ok {
		candidates = append(candidates, resolveRelative(input.URL, described))
	}

	base := strings.TrimSuffix(input.URL, path.Ext(input.URL))
	candidates = append(candidates,
		base+"-metadata.json",
		resolveRelative(input.URL, "metadata.json"),
	)

	for _, candidate := range candidates {
		res, err := loader.Load(ctx, candidate)
		if err != nil {
			diags.Warnf("linked metadata %s: %v", candidate, err)

			continue
		}

		g, err := ParseBytes(res.Body, append(opts, WithBase(res.URL))...)
		if err != nil {
			diags.Warnf("linked metadata %s: %v", candidate, err)

			continue
		}

		return g, nil
	}

	// Synthesize a minimal group for the bare input.
	return Parse(map[string]any{
		"@context": "http://www.w3.org/ns/csvw",
		"tables":   []any{map[string]any{"url": input.URL}},
	}, append(opts, WithBase(input.URL))...)
}

func resolveRelative(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}

	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}

	return b.ResolveReference(r).String()
}
