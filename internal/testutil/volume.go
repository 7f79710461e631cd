package testutil

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"wpsnap/internal/snap"
)

// DirVolumeClient implements snap.VolumeClient against plain directories
// under a root, one per volume name. It mirrors the production semantics
// (archives rooted at the volume contents, restore as clear-then-replace)
// without needing a container engine, so workflow tests can assert real
// file effects.
type DirVolumeClient struct {
	root string
}

// NewDirVolumeClient creates a DirVolumeClient rooted at root.
func NewDirVolumeClient(root string) *DirVolumeClient {
	return &DirVolumeClient{root: root}
}

// VolumeDir returns the directory backing a volume, creating it if needed.
func (c *DirVolumeClient) VolumeDir(volume string) (string, error) {
	dir := filepath.Join(c.root, volume)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// Archive writes the volume's contents to destPath as a (optionally gzipped)
// tar rooted at the volume contents.
func (c *DirVolumeClient) Archive(_ context.Context, volume, destPath string) error {
	src, err := c.VolumeDir(volume)
	if err != nil {
		return err
	}

	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	if gzipped(destPath) {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}

	tw := tar.NewWriter(w)
	defer tw.Close()

	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(tw, in)
		return err
	})
}

// Restore clears the volume directory and extracts the archive into it.
func (c *DirVolumeClient) Restore(_ context.Context, volume, archivePath string) error {
	dst, err := c.VolumeDir(volume)
	if err != nil {
		return err
	}

	// Clear-then-replace: nothing survives from the previous state.
	entries, err := os.ReadDir(dst)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if gzipped(archivePath) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(dst, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(dst)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry escapes volume: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.Create(target)
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
}

func gzipped(name string) bool {
	return strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz")
}

// Compile-time check that DirVolumeClient implements snap.VolumeClient
var _ snap.VolumeClient = (*DirVolumeClient)(nil)
