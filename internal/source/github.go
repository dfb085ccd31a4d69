package source

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/exploreborders/picobridge/internal/fwversion"
)

const (
	githubAPIBase = "https://api.github.com"

	// Conservative blocking timeouts: short for metadata queries,
	// longer for file content. A timeout reads as a transport
	// failure, same as any other network error.
	metadataTimeout = 10 * time.Second
	contentTimeout  = 30 * time.Second
)

// GitHub serves updates from the latest release of a GitHub
// repository. When the release carries assets, those are the manifest;
// otherwise the repository contents at the release tag are listed
// recursively.
type GitHub struct {
	owner      string
	repo       string
	token      string // optional, avoids unauthenticated rate limits
	extensions []string
	exclude    map[string]bool

	baseURL string // overridable for testing
	meta    *http.Client
	content *http.Client
	log     *slog.Logger

	release *githubRelease // cached for the current attempt
}

// githubRelease is the subset of the GitHub "get latest release"
// response the adapter consumes.
type githubRelease struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// githubContent is one entry of a repository contents listing.
type githubContent struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

// NewGitHub creates a GitHub update source for owner/repo. extensions
// restricts manifest entries by filename suffix (empty means every
// non-hidden file); names in exclude (the secrets file, the version
// marker) are always dropped.
func NewGitHub(owner, repo string, extensions, exclude []string, logger *slog.Logger) *GitHub {
	if logger == nil {
		logger = slog.Default()
	}
	ex := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		ex[name] = true
	}
	return &GitHub{
		owner:      owner,
		repo:       repo,
		extensions: extensions,
		exclude:    ex,
		baseURL:    githubAPIBase,
		meta:       &http.Client{Timeout: metadataTimeout},
		content:    &http.Client{Timeout: contentTimeout},
		log:        logger,
	}
}

// WithToken sets an optional bearer token for authenticated requests.
func (g *GitHub) WithToken(token string) *GitHub {
	g.token = token
	return g
}

// WithBaseURL overrides the API base URL (for testing).
func (g *GitHub) WithBaseURL(base string) *GitHub {
	g.baseURL = base
	return g
}

// Name implements Source.
func (g *GitHub) Name() string {
	return "github"
}

// Available reports whether the release API endpoint answers at all.
// Connectivity itself is established before boot reaches the
// supervisor; this only keeps an unplugged device from burning the
// full metadata timeout on every call.
func (g *GitHub) Available() bool {
	req, err := http.NewRequest(http.MethodHead, g.baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := g.meta.Do(req)
	if err != nil {
		g.log.Debug("github unreachable", "error", err)
		return false
	}
	_ = resp.Body.Close()
	return true
}

// LatestVersion returns the newest published release tag, stripped of
// any leading v. Transport errors, rate limits, and missing releases
// all read as absent — none of them is an update.
func (g *GitHub) LatestVersion() (fwversion.Version, bool) {
	release, ok := g.latestRelease()
	if !ok || release.TagName == "" {
		return fwversion.Version{}, false
	}
	return fwversion.Parse(release.TagName), true
}

// Manifest lists the files the latest release offers: its attached
// assets when it has any, otherwise a recursive contents listing at
// the release tag.
func (g *GitHub) Manifest() ([]Entry, bool) {
	release, ok := g.latestRelease()
	if !ok {
		return nil, false
	}

	if len(release.Assets) > 0 {
		var entries []Entry
		for _, asset := range release.Assets {
			if asset.Name == "" || asset.BrowserDownloadURL == "" {
				continue
			}
			if !g.wanted(asset.Name) {
				continue
			}
			entries = append(entries, Entry{Path: asset.Name, Locator: asset.BrowserDownloadURL})
		}
		return entries, true
	}

	entries, err := g.listContents("", release.TagName)
	if err != nil {
		g.log.Warn("github contents listing failed", "error", err)
		return nil, false
	}
	return entries, true
}

// Fetch downloads one entry's content by its locator URL.
func (g *GitHub) Fetch(e Entry) ([]byte, bool) {
	req, err := http.NewRequest(http.MethodGet, e.Locator, nil)
	if err != nil {
		return nil, false
	}
	g.setHeaders(req)

	resp, err := g.content.Do(req)
	if err != nil {
		g.log.Warn("github download failed", "file", e.Path, "error", err)
		return nil, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		g.log.Warn("github download rejected", "file", e.Path, "status", resp.StatusCode)
		return nil, false
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		g.log.Warn("github download truncated", "file", e.Path, "error", err)
		return nil, false
	}
	return data, true
}

// latestRelease fetches and caches the latest release for the
// duration of one update attempt.
func (g *GitHub) latestRelease() (*githubRelease, bool) {
	if g.release != nil {
		return g.release, true
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/latest", g.baseURL, g.owner, g.repo)
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false
	}
	g.setHeaders(req)

	resp, err := g.meta.Do(req)
	if err != nil {
		g.log.Warn("github release query failed", "error", err)
		return nil, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		g.log.Warn("github release query rejected", "status", resp.StatusCode)
		return nil, false
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		g.log.Warn("github release response malformed", "error", err)
		return nil, false
	}

	g.release = &release
	return g.release, true
}

// listContents walks the repository contents at ref, depth-first,
// collecting every wanted file. Dot-entries (VCS and CI metadata) are
// skipped.
func (g *GitHub) listContents(dir, ref string) ([]Entry, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		g.baseURL, g.owner, g.repo, dir, url.QueryEscape(ref))

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	g.setHeaders(req)

	resp, err := g.meta.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("contents listing returned status %d", resp.StatusCode)
	}

	var items []githubContent
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode contents listing: %w", err)
	}

	var entries []Entry
	for _, item := range items {
		if strings.HasPrefix(item.Name, ".") {
			continue
		}

		switch item.Type {
		case "dir":
			sub, err := g.listContents(item.Path, ref)
			if err != nil {
				return nil, err
			}
			entries = append(entries, sub...)
		case "file":
			if !g.wanted(item.Name) || item.DownloadURL == "" {
				continue
			}
			entries = append(entries, Entry{Path: item.Path, Locator: item.DownloadURL})
		}
	}

	return entries, nil
}

// wanted reports whether a file name belongs in the manifest.
func (g *GitHub) wanted(name string) bool {
	base := path.Base(name)
	if g.exclude[base] || strings.HasPrefix(base, ".") {
		return false
	}
	if len(g.extensions) == 0 {
		return true
	}
	for _, ext := range g.extensions {
		if strings.HasSuffix(base, ext) {
			return true
		}
	}
	return false
}

func (g *GitHub) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
}
