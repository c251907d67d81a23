package personas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"cinegen/internal/domain"
	"cinegen/internal/infra"
)

const maxReferenceImages = 3

var imageMIMEs = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// DirectoryResolver detects persona mentions in prompts and loads reference
// images for them from a local library. The library layout is one directory
// per persona containing a metadata.json plus the persona's image files.
type DirectoryResolver struct {
	basePath string
	logger   infra.Logger
}

type metadata struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
}

type persona struct {
	dir     string
	name    string
	aliases []string
}

// NewDirectoryResolver creates a resolver over basePath. A missing directory
// is not an error; the resolver simply matches nothing until it exists.
func NewDirectoryResolver(basePath string, logger infra.Logger) *DirectoryResolver {
	return &DirectoryResolver{basePath: strings.TrimSpace(basePath), logger: logger}
}

// ResolveReferences scans the prompt for persona names and aliases and returns
// reference assets for the matches. At most three images are attached in
// total; when several personas match, the budget is split between them so each
// contributes at least one image.
func (r *DirectoryResolver) ResolveReferences(ctx context.Context, prompt string) ([]domain.ReferenceAsset, error) {
	if r.basePath == "" {
		return nil, nil
	}
	personas, err := r.load()
	if err != nil {
		return nil, err
	}

	var matched []persona
	for _, p := range personas {
		if mentioned(prompt, p) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	quota := maxReferenceImages / len(matched)
	if quota < 1 {
		quota = 1
	}

	var refs []domain.ReferenceAsset
	for _, p := range matched {
		if len(refs) >= maxReferenceImages {
			break
		}
		images, err := r.images(p, quota, maxReferenceImages-len(refs))
		if err != nil {
			r.logger.Warn().Err(err).Str("persona", p.name).Msg("personas: loading images failed")
			continue
		}
		refs = append(refs, images...)
	}

	if len(refs) > 0 {
		r.logger.Info().
			Int("personas", len(matched)).
			Int("references", len(refs)).
			Msg("personas: references attached")
	}
	return refs, nil
}

// load reads the library. Directories without a readable metadata.json are
// skipped with a warning rather than failing the whole resolution.
func (r *DirectoryResolver) load() ([]persona, error) {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("personas: read library: %w", err)
	}

	var out []persona
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(r.basePath, entry.Name())
		meta, err := readMetadata(filepath.Join(dir, "metadata.json"))
		if err != nil {
			r.logger.Warn().Err(err).Str("dir", entry.Name()).Msg("personas: skipping entry")
			continue
		}
		name := strings.TrimSpace(meta.Name)
		if name == "" {
			name = entry.Name()
		}
		out = append(out, persona{dir: dir, name: name, aliases: meta.Aliases})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func readMetadata(path string) (*metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return &meta, nil
}

// images loads up to min(quota, remaining) image files from the persona's
// directory, in lexical order for stable results.
func (r *DirectoryResolver) images(p persona, quota, remaining int) ([]domain.ReferenceAsset, error) {
	limit := quota
	if remaining < limit {
		limit = remaining
	}

	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, err
	}

	var refs []domain.ReferenceAsset
	for _, entry := range entries {
		if len(refs) >= limit {
			break
		}
		if entry.IsDir() {
			continue
		}
		mime, ok := imageMIMEs[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(p.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		refs = append(refs, domain.ReferenceAsset{Data: data, MIMEType: mime, Role: "asset"})
	}
	return refs, nil
}

// mentioned reports whether the prompt names the persona. Matching is
// case-insensitive on whole words only, so "ana" does not match "banana".
func mentioned(prompt string, p persona) bool {
	names := append([]string{p.name}, p.aliases...)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		pattern := `(?i)\b` + regexp.QuoteMeta(name) + `\b`
		if matched, err := regexp.MatchString(pattern, prompt); err == nil && matched {
			return true
		}
	}
	return false
}

var _ domain.PersonaResolver = (*DirectoryResolver)(nil)
