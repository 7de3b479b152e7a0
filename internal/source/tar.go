package source

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/mholt/archiver/v3"
	"github.com/partforge/partforge/internal/errs"
)

// Tar fetches a tar/tar.gz/tar.xz archive and extracts it into the part's
// source directory, verifying source-checksum first when set. Grounded on
// craft_parts/sources/tar.py and craft_parts/sources/checksum.py;
// gzip decompression goes through klauspost/pgzip, completing a
// "// TODO: consider github.com/klauspost/pgzip" the donor left on this
// exact code path (distr1-distri internal/install/install.go), and other
// archive formats are delegated to github.com/mholt/archiver/v3.
type Tar struct {
	spec Spec
}

func NewTar(spec Spec) *Tar { return &Tar{spec: spec} }

func (t *Tar) Pull(ctx context.Context, destDir string) error {
	if err := verifyChecksum(t.spec.Source, t.spec.Checksum); err != nil {
		return err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	if strings.HasSuffix(t.spec.Source, ".tar.gz") || strings.HasSuffix(t.spec.Source, ".tgz") {
		return t.extractGzipTar(destDir)
	}
	return t.extractOther(destDir)
}

func (t *Tar) extractGzipTar(destDir string) error {
	f, err := os.Open(t.spec.Source)
	if err != nil {
		return errs.SourceNotFound(t.spec.Source)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errs.PullError(t.spec.Source, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errs.PullError(t.spec.Source, err)
		}
		name := stripSubdir(hdr.Name, t.spec.Subdir)
		if name == "" {
			continue
		}
		target := filepath.Join(destDir, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			os.Symlink(hdr.Linkname, target)
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
	return nil
}

func (t *Tar) extractOther(destDir string) error {
	if err := archiver.Unarchive(t.spec.Source, destDir); err != nil {
		return errs.PullError(t.spec.Source, err)
	}
	return nil
}

func (t *Tar) Check(ctx context.Context, destDir string, assets map[string]interface{}) (bool, error) {
	fi, err := os.Stat(t.spec.Source)
	if err != nil {
		return false, err
	}
	want, _ := assets["source_mtime"].(string)
	return want != fi.ModTime().String(), nil
}

func (t *Tar) Update(ctx context.Context, destDir string) error {
	return t.Pull(ctx, destDir)
}

func (t *Tar) SourceDetails() map[string]interface{} {
	details := map[string]interface{}{"source": t.spec.Source}
	if fi, err := os.Stat(t.spec.Source); err == nil {
		details["source_mtime"] = fi.ModTime().String()
	}
	return details
}

// stripSubdir removes the leading "Subdir/" component from a tar entry
// name, returning "" if the entry is outside Subdir (when Subdir is set).
func stripSubdir(name, subdir string) string {
	if subdir == "" {
		return name
	}
	prefix := subdir + "/"
	if !strings.HasPrefix(name, prefix) {
		return ""
	}
	return strings.TrimPrefix(name, prefix)
}

// verifyChecksum checks source against a "algo/hexdigest" checksum spec
// (spec.md Part.source-checksum), e.g. "sha256/abcd...".
func verifyChecksum(path, checksum string) error {
	if checksum == "" {
		return nil
	}
	algo, want, ok := strings.Cut(checksum, "/")
	if !ok {
		return errs.InvalidSourceOption("malformed source-checksum %q", checksum)
	}

	f, err := os.Open(path)
	if err != nil {
		return errs.SourceNotFound(path)
	}
	defer f.Close()

	var h interface {
		io.Writer
		Sum([]byte) []byte
	}
	switch algo {
	case "sha256":
		h = sha256.New()
	case "sha512":
		h = sha512.New()
	default:
		return errs.InvalidSourceOption("unsupported checksum algorithm %q", algo)
	}
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return errs.ChecksumMismatch(checksum, fmt.Sprintf("%s/%s", algo, got))
	}
	return nil
}
