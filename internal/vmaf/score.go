// Package vmaf wraps the external VMAF engine: ffmpeg's libvmaf
// filter, invoked against two single-frame rawvideo YUV420p streams —
// the source and a candidate's decoded-and-reconverted counterpart —
// one frame at a time.
package vmaf

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/gwlsn/webpq/internal/logger"
)

// buildScoringFilter creates the filtergraph comparing two yuv420p legs.
func buildScoringFilter(model string, threads int) string {
	return fmt.Sprintf(
		"[0:v]format=yuv420p[dist];[1:v]format=yuv420p[ref];"+
			"[dist][ref]libvmaf=model=version=%s:n_threads=%d",
		model, threads)
}

// lastLines returns the last n lines of output after trimming leading
// and trailing whitespace (blank lines inside that span are kept), used to
// keep error messages short when ffmpeg's stderr is noisy.
func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

// Scorer compares a fixed source frame against candidate frames,
// submitting yuv420p rawvideo pairs to an external ffmpeg+libvmaf
// process. One Scorer is created per image and reused across every
// candidate in that image's search.
type Scorer struct {
	FFmpegPath string
	TempDir    string

	source     *image.YCbCr
	sourcePath string
	width      int
	height     int
}

// NewScorer writes the source's YUV420p form to a scratch file once,
// to be reused across every candidate score in this image's search.
func NewScorer(ffmpegPath, tempDir string, source *image.YCbCr) (*Scorer, error) {
	b := source.Bounds()
	s := &Scorer{
		FFmpegPath: ffmpegPath,
		TempDir:    tempDir,
		source:     source,
		width:      b.Dx(),
		height:     b.Dy(),
	}

	path, err := writeRawYUV(tempDir, "source", source)
	if err != nil {
		return nil, fmt.Errorf("vmaf: writing source scratch frame: %w", err)
	}
	s.sourcePath = path
	return s, nil
}

// Close removes the source scratch file.
func (s *Scorer) Close() error {
	if s.sourcePath == "" {
		return nil
	}
	return os.Remove(s.sourcePath)
}

// Score submits candidate (already converted to yuv420p, same
// dimensions as the source) against the precomputed source frame and
// returns the reported VMAF score.
func (s *Scorer) Score(ctx context.Context, candidate *image.YCbCr) (float64, error) {
	cb := candidate.Bounds()
	if cb.Dx() != s.width || cb.Dy() != s.height {
		return 0, fmt.Errorf("vmaf: candidate dimensions %dx%d do not match source %dx%d",
			cb.Dx(), cb.Dy(), s.width, s.height)
	}

	distPath, err := writeRawYUV(s.TempDir, "candidate", candidate)
	if err != nil {
		return 0, fmt.Errorf("vmaf: writing candidate scratch frame: %w", err)
	}
	defer os.Remove(distPath)

	score, err := s.runFFmpeg(ctx, distPath)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("vmaf: non-finite score %v", score)
	}
	return score, nil
}

func (s *Scorer) runFFmpeg(ctx context.Context, distPath string) (float64, error) {
	threads := GetThreadCount()
	model := SelectModel(s.height)
	filter := buildScoringFilter(model, threads)

	frameSize := fmt.Sprintf("%dx%d", s.width, s.height)
	args := []string{
		"-f", "rawvideo", "-pix_fmt", "yuv420p", "-s", frameSize, "-i", distPath,
		"-f", "rawvideo", "-pix_fmt", "yuv420p", "-s", frameSize, "-i", s.sourcePath,
		"-threads", strconv.Itoa(threads),
		"-filter_complex", filter,
		"-f", "null", "-",
	}

	cmd := exec.CommandContext(ctx, s.FFmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		logger.Error("VMAF scoring failed", "error", err, "stderr", lastLines(string(output), 5))
		return 0, fmt.Errorf("vmaf scoring failed: %w (%s)", err, lastLines(string(output), 3))
	}

	return parseVMAFScore(string(output))
}

// parseVMAFScore extracts the VMAF score from ffmpeg's stderr output.
func parseVMAFScore(output string) (float64, error) {
	patterns := []string{
		`VMAF score:\s*([\d.]+)`,
		`"vmaf"[^}]*"mean":\s*([\d.]+)`,
		`vmaf_v.*mean:\s*([\d.]+)`,
	}

	for _, pattern := range patterns {
		re := regexp.MustCompile(pattern)
		matches := re.FindStringSubmatch(output)
		if len(matches) >= 2 {
			score, err := strconv.ParseFloat(strings.TrimSpace(matches[1]), 64)
			if err == nil {
				return score, nil
			}
		}
	}

	return 0, fmt.Errorf("could not parse VMAF score from ffmpeg output")
}

// writeRawYUV dumps a planar YCbCr image to a raw yuv420p scratch
// file: the Y plane followed by the Cb and Cr planes, each tightly
// packed (no stride padding), which is what ffmpeg's rawvideo
// demuxer expects.
func writeRawYUV(dir, prefix string, img *image.YCbCr) (string, error) {
	f, err := os.CreateTemp(dir, prefix+"-*.yuv")
	if err != nil {
		return "", err
	}
	defer f.Close()

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	cw, ch := (w+1)/2, (h+1)/2

	if err := writePlane(f, img.Y, img.YStride, w, h); err != nil {
		return "", err
	}
	if err := writePlane(f, img.Cb, img.CStride, cw, ch); err != nil {
		return "", err
	}
	if err := writePlane(f, img.Cr, img.CStride, cw, ch); err != nil {
		return "", err
	}

	return filepath.Clean(f.Name()), nil
}

func writePlane(f *os.File, plane []byte, stride, w, h int) error {
	for y := 0; y < h; y++ {
		row := plane[y*stride : y*stride+w]
		if _, err := f.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// GetThreadCount returns the number of threads the VMAF process should
// use. Uses numCPU/2 to leave headroom for the worker pool's other
// concurrent scorers.
func GetThreadCount() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}
