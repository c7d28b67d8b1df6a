// Package pdf runs document operations on files downloaded from the chat platform.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// File references a user upload by platform file id.
type File struct {
	ID   string
	Name string
}

// Fetcher downloads a platform file to dst.
type Fetcher interface {
	Fetch(ctx context.Context, fileID, dst string) error
}

// Result is a produced file. Callers must Cleanup after sending it.
type Result struct {
	Path  string
	Name  string
	Pages int
	dir   string
}

// Cleanup removes the result and its inputs.
func (r *Result) Cleanup() {
	if r == nil || r.dir == "" {
		return
	}
	_ = os.RemoveAll(r.dir)
}

// CropOptions selects one crop mode. Percentage in (0,1) keeps that share of
// the maximum relative margin; Margin is an absolute margin in points.
type CropOptions struct {
	Percentage float64
	Margin     int
}

var (
	// ErrInvalidCrop is returned for crop options outside their domain.
	ErrInvalidCrop = errors.New("pdf: invalid crop options")
	// ErrNoInput is returned when an operation gets too few files.
	ErrNoInput = errors.New("pdf: not enough input files")
)

var configOnce sync.Once

// Service implements the document operations with pdfcpu.
type Service struct {
	fetch   Fetcher
	runner  *Runner
	workDir string
}

// NewService builds a Service writing scratch files under workDir.
func NewService(fetch Fetcher, runner *Runner, workDir string) *Service {
	configOnce.Do(api.DisableConfigDir)
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Service{fetch: fetch, runner: runner, workDir: workDir}
}

func newConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Crop trims every page of f.
func (s *Service) Crop(ctx context.Context, f File, opt CropOptions) (*Result, error) {
	spec, err := cropSpec(opt)
	if err != nil {
		return nil, err
	}
	return s.single(ctx, "crop", f, "Cropped_", func(in, out string) error {
		box, err := api.Box(spec, types.POINTS)
		if err != nil {
			return fmt.Errorf("crop box %q: %w", spec, err)
		}
		return api.CropFile(in, out, nil, box, newConf())
	})
}

// cropSpec renders opt as a pdfcpu margin description.
func cropSpec(opt CropOptions) (string, error) {
	switch {
	case opt.Percentage > 0 && opt.Margin == 0:
		if opt.Percentage >= 1 {
			return "", fmt.Errorf("%w: percentage %v", ErrInvalidCrop, opt.Percentage)
		}
		// pdfcpu accepts relative margins strictly below 50%.
		return strconv.FormatFloat(opt.Percentage*50, 'f', 2, 64) + "%", nil
	case opt.Margin > 0 && opt.Percentage == 0:
		return strconv.Itoa(opt.Margin), nil
	}
	return "", fmt.Errorf("%w: %+v", ErrInvalidCrop, opt)
}

// Watermark stamps text behind the content of every page.
func (s *Service) Watermark(ctx context.Context, f File, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("pdf: empty watermark text")
	}
	return s.single(ctx, "watermark", f, "Watermarked_", func(in, out string) error {
		wm, err := api.TextWatermark(text, "rot:45, op:.3, scale:.6", false, false, types.POINTS)
		if err != nil {
			return fmt.Errorf("watermark: %w", err)
		}
		return api.AddWatermarksFile(in, out, nil, wm, newConf())
	})
}

// Merge concatenates files in order.
func (s *Service) Merge(ctx context.Context, files []File) (*Result, error) {
	if len(files) < 2 {
		return nil, fmt.Errorf("%w: merge needs 2, got %d", ErrNoInput, len(files))
	}
	return s.multi(ctx, "merge", files, ".pdf", func(ins []string, out string) error {
		return api.MergeCreateFile(ins, out, false, newConf())
	})
}

// ImagesToPDF places each image on its own page.
func (s *Service) ImagesToPDF(ctx context.Context, files []File) (*Result, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images", ErrNoInput)
	}
	return s.multi(ctx, "images", files, ".jpg", func(ins []string, out string) error {
		return api.ImportImagesFile(ins, out, pdfcpu.DefaultImportConfig(), newConf())
	})
}

// PageCount counts the pages of a local PDF file.
func (s *Service) PageCount(ctx context.Context, path string) (int, error) {
	var n int
	err := s.runner.Run(ctx, "page_count", func() error {
		var err error
		n, err = api.PageCountFile(path)
		return err
	})
	return n, err
}

func (s *Service) single(ctx context.Context, op string, f File, prefix string, run func(in, out string) error) (*Result, error) {
	dir, err := s.scratch(op)
	if err != nil {
		return nil, err
	}
	in := filepath.Join(dir, "in.pdf")
	if err := s.download(ctx, f.ID, in); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	res := &Result{Path: filepath.Join(dir, "out.pdf"), Name: prefix + pdfName(f.Name), dir: dir}
	if err := s.runner.Run(ctx, op, func() error { return run(in, res.Path) }); err != nil {
		res.Cleanup()
		return nil, fmt.Errorf("pdf %s: %w", op, err)
	}
	s.countPages(ctx, res)
	return res, nil
}

func (s *Service) multi(ctx context.Context, op string, files []File, defExt string, run func(ins []string, out string) error) (*Result, error) {
	dir, err := s.scratch(op)
	if err != nil {
		return nil, err
	}
	ins := make([]string, 0, len(files))
	for i, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext == "" {
			ext = defExt
		}
		p := filepath.Join(dir, fmt.Sprintf("in_%03d%s", i, ext))
		if err := s.download(ctx, f.ID, p); err != nil {
			_ = os.RemoveAll(dir)
			return nil, err
		}
		ins = append(ins, p)
	}
	name := "Merged.pdf"
	if op == "images" {
		name = "Images.pdf"
	}
	res := &Result{Path: filepath.Join(dir, "out.pdf"), Name: name, dir: dir}
	if err := s.runner.Run(ctx, op, func() error { return run(ins, res.Path) }); err != nil {
		res.Cleanup()
		return nil, fmt.Errorf("pdf %s: %w", op, err)
	}
	s.countPages(ctx, res)
	return res, nil
}

func (s *Service) countPages(ctx context.Context, res *Result) {
	if n, err := s.PageCount(ctx, res.Path); err == nil {
		res.Pages = n
	}
}

func (s *Service) scratch(op string) (string, error) {
	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return "", fmt.Errorf("pdf work dir: %w", err)
	}
	dir, err := os.MkdirTemp(s.workDir, op+"-")
	if err != nil {
		return "", fmt.Errorf("pdf scratch dir: %w", err)
	}
	return dir, nil
}

// download fetches a file under the runner timeout.
func (s *Service) download(ctx context.Context, fileID, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, s.runner.Timeout())
	defer cancel()
	start := time.Now()
	if err := s.fetch.Fetch(ctx, fileID, dst); err != nil {
		return fmt.Errorf("download %s after %s: %w", fileID, time.Since(start).Round(time.Millisecond), err)
	}
	return nil
}

func pdfName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "file.pdf"
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
