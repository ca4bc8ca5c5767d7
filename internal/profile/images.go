package profile

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nerrad567/opendeck-core/internal/action"
)

// blankPNG replaces the degenerate "data:" image the editor emits for a cleared state.
const blankPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVQIW2NgYGD4DwABBAEAwS2OUAAAAABJRU5ErkJggg=="

// builtinAssetPrefix marks images served by the host rather than read from disk.
const builtinAssetPrefix = "opendeck/"

// Paths resolves the on-disk layout under a configuration root.
type Paths struct {
	Root string
}

// ProfilesDir is <root>/profiles.
func (p Paths) ProfilesDir() string {
	return filepath.Join(p.Root, "profiles")
}

// DeviceDir is <root>/profiles/<device>.
func (p Paths) DeviceDir(device string) string {
	return filepath.Join(p.ProfilesDir(), device)
}

// ImagesDir is <root>/images/<device>/<profile>.
func (p Paths) ImagesDir(device, profile string) string {
	return filepath.Join(p.Root, "images", device, filepath.FromSlash(profile))
}

// InstanceImageDir is the directory holding extracted images for one instance.
func (p Paths) InstanceImageDir(ctx action.Context) string {
	return filepath.Join(p.ImagesDir(ctx.Device, ctx.Profile), ctx.Disk().String())
}

// normalise makes an image or asset path portable before it is written:
// files in the instance image directory become bare names, files under the
// config root become root-relative slash paths.
func (p Paths) normalise(value, imageDir string) string {
	if rel, ok := under(value, imageDir); ok {
		return filepath.ToSlash(rel)
	}
	if rel, ok := under(value, p.Root); ok {
		return filepath.ToSlash(rel)
	}
	return value
}

// reconstruct reverses normalise for asset paths.
func (p Paths) reconstruct(value string) string {
	if value == "" ||
		strings.HasPrefix(value, "data:") ||
		strings.HasPrefix(value, builtinAssetPrefix) ||
		strings.Contains(value, "://") ||
		filepath.IsAbs(value) ||
		!strings.Contains(value, "/") {
		return value
	}
	return filepath.Join(p.Root, filepath.FromSlash(value))
}

// reconstructState resolves a stored state image. Names starting with a
// digit were extracted by extractDataURL into the instance image directory.
func (p Paths) reconstructState(value, imageDir string) string {
	if value != "" && value[0] >= '0' && value[0] <= '9' {
		return filepath.Join(imageDir, filepath.FromSlash(value))
	}
	return p.reconstruct(value)
}

func under(path, dir string) (string, bool) {
	if dir == "" || !filepath.IsAbs(path) {
		return "", false
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// extractDataURL writes an inline data: URL image to <imageDir>/<n>.<ext>
// and returns the file name.
func extractDataURL(value, imageDir string, n int) (string, error) {
	if strings.TrimSpace(value) == "data:" {
		value = blankPNG
	}

	_, rest, ok := strings.Cut(value, "/")
	if !ok {
		return "", fmt.Errorf("data url without media type")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", fmt.Errorf("data url without payload")
	}

	ext := header
	if i := strings.IndexAny(ext, ";+"); i >= 0 {
		ext = ext[:i]
	}

	var data []byte
	if strings.HasSuffix(header, ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", fmt.Errorf("decoding data url: %w", err)
		}
		data = decoded
	} else {
		data = []byte(payload)
	}

	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		return "", fmt.Errorf("creating image dir: %w", err)
	}
	name := strconv.Itoa(n) + "." + ext
	if err := os.WriteFile(filepath.Join(imageDir, name), data, 0o644); err != nil { //nolint:gosec // images are world-readable assets
		return "", fmt.Errorf("writing image: %w", err)
	}
	return name, nil
}

// copyDir recursively copies src into dst. A missing src is not an error.
func copyDir(src, dst string) error {
	entries, err := os.ReadDir(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, entry := range entries {
		from, to := filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDir(from, to); err != nil {
				return err
			}
			continue
		}
		data, err := os.ReadFile(from) //nolint:gosec // path is inside the config root
		if err != nil {
			return err
		}
		if err := os.WriteFile(to, data, 0o644); err != nil { //nolint:gosec // images are world-readable assets
			return err
		}
	}
	return nil
}

// removeEmptyDir removes dir only if it is empty.
func removeEmptyDir(dir string) {
	_ = os.Remove(dir)
}
