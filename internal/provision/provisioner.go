package provision

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/artasov/speechd/internal/script"
	"github.com/artasov/speechd/internal/status"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
)

// FetchError reports a failed repository fetch (git clone or archive
// download), as opposed to a filesystem error preparing the tree.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "repository fetch failed: " + e.Err.Error() }

func (e *FetchError) Unwrap() error { return e.Err }

// Provisioner guarantees a working checkout of the managed server exists
// under the install root.
type Provisioner struct {
	store       *status.Store
	installRoot string
	repoURL     string
	archiveURL  string
	repoName    string
	// gitPath overrides the git binary lookup; tests point it at a stub.
	gitPath string
}

// New creates a provisioner reporting progress into store.
func New(store *status.Store, installRoot, repoURL, archiveURL, repoName string) *Provisioner {
	return &Provisioner{
		store:       store,
		installRoot: installRoot,
		repoURL:     repoURL,
		archiveURL:  archiveURL,
		repoName:    repoName,
	}
}

// RepoDir is the checkout directory under the install root.
func (p *Provisioner) RepoDir() string { return filepath.Join(p.installRoot, p.repoName) }

// Installed reports whether a checkout is present on disk.
func (p *Provisioner) Installed() bool {
	_, err := os.Stat(p.RepoDir())
	return err == nil
}

// Ensure makes sure the checkout exists. With force, an existing checkout
// is removed first. When the checkout already exists (after the optional
// removal) Ensure returns immediately without touching the status store or
// the network.
func (p *Provisioner) Ensure(ctx context.Context, force bool) error {
	repoDir := p.RepoDir()
	slog.Debug("repository directory", "dir", repoDir)
	if force {
		if _, err := os.Stat(repoDir); err == nil {
			if err := os.RemoveAll(repoDir); err != nil {
				return fmt.Errorf("remove checkout %s: %w", repoDir, err)
			}
		}
	}
	if _, err := os.Stat(repoDir); err == nil {
		return nil
	}
	if err := os.MkdirAll(p.installRoot, 0o750); err != nil {
		return fmt.Errorf("create install root %s: %w", p.installRoot, err)
	}

	p.store.Update(func(st *status.Status) {
		st.Phase = status.PhaseInstalling
		st.Installed = false
		st.Message = "Cloning repository…"
	})

	if err := p.fetch(ctx); err != nil {
		return err
	}
	p.markScriptsExecutable()

	p.store.Update(func(st *status.Status) {
		st.Installed = true
		st.InstallDir = repoDir
		st.Message = "Repository ready."
	})
	return nil
}

// fetch clones via git when available and falls back to downloading the
// branch archive otherwise.
func (p *Provisioner) fetch(ctx context.Context) error {
	git := p.gitPath
	if git == "" {
		var err error
		git, err = exec.LookPath("git")
		if err != nil {
			slog.Warn("git not found, falling back to archive download", "url", p.archiveURL)
			return p.fetchArchive(ctx)
		}
	}
	cmd := exec.CommandContext(ctx, git, "clone", p.repoURL, p.repoName)
	cmd.Dir = p.installRoot
	cmd.Env = os.Environ()
	if out, err := cmd.CombinedOutput(); err != nil {
		return &FetchError{Err: fmt.Errorf("git clone: %w: %s", err, strings.TrimSpace(string(out)))}
	}
	return nil
}

// fetchArchive downloads the branch ZIP and unpacks it as the checkout.
func (p *Provisioner) fetchArchive(ctx context.Context) error {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", p.archiveURL, nil)
	if err != nil {
		return &FetchError{Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return &FetchError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != 200 {
		return &FetchError{Err: fmt.Errorf("archive download: unexpected status %d", resp.StatusCode)}
	}

	tmp, err := os.CreateTemp(p.installRoot, p.repoName+"-*.zip")
	if err != nil {
		return fmt.Errorf("create archive temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return &FetchError{Err: err}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive temp file: %w", err)
	}
	return p.unpackArchive(tmpPath)
}

// unpackArchive extracts the ZIP into the install root and renames the
// archive's single top-level directory to the checkout name.
func (p *Provisioner) unpackArchive(zipPath string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return &FetchError{Err: err}
	}
	defer func() { _ = zr.Close() }()

	topDir := ""
	for _, f := range zr.File {
		clean := filepath.Clean(f.Name)
		if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
			return &FetchError{Err: fmt.Errorf("archive entry escapes target: %s", f.Name)}
		}
		if topDir == "" {
			topDir = strings.SplitN(clean, string(filepath.Separator), 2)[0]
		}
		dst := filepath.Join(p.installRoot, clean)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dst, 0o750); err != nil {
				return fmt.Errorf("extract dir %s: %w", dst, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return fmt.Errorf("extract dir for %s: %w", dst, err)
		}
		if err := extractFile(f, dst); err != nil {
			return err
		}
	}
	if topDir == "" {
		return &FetchError{Err: fmt.Errorf("archive %s is empty", zipPath)}
	}
	if topDir != p.repoName {
		if err := os.Rename(filepath.Join(p.installRoot, topDir), p.RepoDir()); err != nil {
			return fmt.Errorf("rename unpacked archive: %w", err)
		}
	}
	return nil
}

func extractFile(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return &FetchError{Err: err}
	}
	defer func() { _ = rc.Close() }()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode().Perm()|0o600)
	if err != nil {
		return fmt.Errorf("extract %s: %w", dst, err)
	}
	// bounded copy is unnecessary: the archive comes from the pinned repo URL
	if _, err := io.Copy(out, rc); err != nil { // #nosec G110
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", dst, err)
	}
	return out.Close()
}

// markScriptsExecutable fixes permissions on the control scripts. No-op on
// platforms without a script list or when a script is absent.
func (p *Provisioner) markScriptsExecutable() {
	for _, name := range script.ControlScripts() {
		path := filepath.Join(p.RepoDir(), name)
		if _, err := os.Stat(path); err == nil {
			_ = os.Chmod(path, 0o755) // #nosec G302 -- scripts must be executable
		}
	}
}
