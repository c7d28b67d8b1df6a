package pdf

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerTimeoutFreesSlot(t *testing.T) {
	r := NewRunner(1, 30*time.Millisecond)
	block := make(chan struct{})
	defer close(block)

	err := r.Run(context.Background(), "stuck", func() error {
		<-block
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	// The stuck call gave its slot back, so the next one runs.
	if err := r.Run(context.Background(), "next", func() error { return nil }); err != nil {
		t.Fatalf("next op: %v", err)
	}
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	r := NewRunner(2, time.Second)
	var inFlight, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Run(context.Background(), "op", func() error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	if peak > 2 {
		t.Fatalf("peak concurrency %d exceeds 2 workers", peak)
	}
}

func TestRunnerRecoversPanic(t *testing.T) {
	r := NewRunner(1, time.Second)
	if err := r.Run(context.Background(), "panic", func() error { panic("x") }); err == nil {
		t.Fatal("expected error from panicking op")
	}
}

func TestCropSpec(t *testing.T) {
	cases := []struct {
		opt  CropOptions
		want string
		ok   bool
	}{
		{CropOptions{Percentage: 0.1}, "5.00%", true},
		{CropOptions{Percentage: 0.99}, "49.50%", true},
		{CropOptions{Margin: 36}, "36", true},
		{CropOptions{Percentage: 1}, "", false},
		{CropOptions{}, "", false},
		{CropOptions{Percentage: 0.2, Margin: 3}, "", false},
		{CropOptions{Margin: -1}, "", false},
	}
	for _, tc := range cases {
		got, err := cropSpec(tc.opt)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("cropSpec(%+v) = %q, %v; want %q", tc.opt, got, err, tc.want)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidCrop) {
			t.Fatalf("cropSpec(%+v) expected ErrInvalidCrop, got %v", tc.opt, err)
		}
	}
}

// dirFetcher serves files from a local directory keyed by name.
type dirFetcher struct {
	dir   string
	calls int32
}

func (f *dirFetcher) Fetch(_ context.Context, id, dst string) error {
	atomic.AddInt32(&f.calls, 1)
	src, err := os.Open(filepath.Join(f.dir, id))
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, src)
	return err
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 60, 80))
	for x := 0; x < 60; x++ {
		for y := 0; y < 80; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 3), B: 90, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func TestServicePipeline(t *testing.T) {
	src := t.TempDir()
	writePNG(t, filepath.Join(src, "a.png"))
	writePNG(t, filepath.Join(src, "b.png"))
	fetch := &dirFetcher{dir: src}
	svc := NewService(fetch, NewRunner(2, 30*time.Second), t.TempDir())
	ctx := context.Background()

	doc, err := svc.ImagesToPDF(ctx, []File{{ID: "a.png", Name: "a.png"}, {ID: "b.png", Name: "b.png"}})
	if err != nil {
		t.Fatalf("images: %v", err)
	}
	defer doc.Cleanup()
	if doc.Pages != 2 {
		t.Fatalf("images produced %d pages", doc.Pages)
	}
	if err := copyFile(doc.Path, filepath.Join(src, "doc.pdf")); err != nil {
		t.Fatalf("copy: %v", err)
	}

	merged, err := svc.Merge(ctx, []File{{ID: "doc.pdf", Name: "doc.pdf"}, {ID: "doc.pdf", Name: "doc.pdf"}})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	defer merged.Cleanup()
	if merged.Pages != 4 {
		t.Fatalf("merge produced %d pages", merged.Pages)
	}

	cropped, err := svc.Crop(ctx, File{ID: "doc.pdf", Name: "doc.pdf"}, CropOptions{Percentage: 0.2})
	if err != nil {
		t.Fatalf("crop: %v", err)
	}
	defer cropped.Cleanup()
	if !strings.HasPrefix(cropped.Name, "Cropped_") {
		t.Fatalf("crop name = %q", cropped.Name)
	}

	marked, err := svc.Watermark(ctx, File{ID: "doc.pdf", Name: "doc"}, "CONFIDENTIAL")
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}
	marked.Cleanup()
	if _, err := os.Stat(marked.Path); !os.IsNotExist(err) {
		t.Fatal("cleanup must remove the result")
	}
}

func TestServiceRejectsBadInputWithoutFetching(t *testing.T) {
	fetch := &dirFetcher{dir: t.TempDir()}
	svc := NewService(fetch, NewRunner(1, time.Second), t.TempDir())
	ctx := context.Background()

	if _, err := svc.Merge(ctx, []File{{ID: "x"}}); !errors.Is(err, ErrNoInput) {
		t.Fatalf("merge: %v", err)
	}
	if _, err := svc.ImagesToPDF(ctx, nil); !errors.Is(err, ErrNoInput) {
		t.Fatalf("images: %v", err)
	}
	if _, err := svc.Crop(ctx, File{ID: "x"}, CropOptions{Percentage: 1.5}); !errors.Is(err, ErrInvalidCrop) {
		t.Fatalf("crop: %v", err)
	}
	if fetch.calls != 0 {
		t.Fatalf("invalid input must not download, got %d calls", fetch.calls)
	}
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func TestPaginateWrapsAndSplits(t *testing.T) {
	if pages := paginate(" \n\t "); pages != nil {
		t.Fatalf("blank text produced %d pages", len(pages))
	}

	long := strings.Repeat("word ", 40) + strings.Repeat("x", 200)
	pages := paginate(long + "\n\nпривет")
	lines := pages[0]
	for _, l := range lines {
		if n := len([]rune(l)); n > textLineRunes {
			t.Fatalf("line of %d runes: %q", n, l)
		}
	}
	if lines[len(lines)-2] != "" || lines[len(lines)-1] != "??????" {
		t.Fatalf("tail lines = %q", lines[len(lines)-3:])
	}

	many := strings.Repeat("line\n", textPageLines+1)
	if got := len(paginate(many)); got != 2 {
		t.Fatalf("%d lines gave %d pages", textPageLines+1, got)
	}
}

func TestTextToPDF(t *testing.T) {
	svc := NewService(&dirFetcher{dir: t.TempDir()}, NewRunner(1, 30*time.Second), t.TempDir())
	ctx := context.Background()

	if _, err := svc.TextToPDF(ctx, "  "); !errors.Is(err, ErrNoInput) {
		t.Fatalf("blank text: %v", err)
	}
	res, err := svc.TextToPDF(ctx, "Hello PDF Bot\n"+strings.Repeat("more text\n", textPageLines))
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	defer res.Cleanup()
	if res.Pages != 2 || res.Name != "Text.pdf" {
		t.Fatalf("result = %+v", res)
	}
}

func TestRunnerCountsAbandonedWork(t *testing.T) {
	r := NewRunner(1, 20*time.Millisecond)
	block := make(chan struct{})
	if err := r.Run(context.Background(), "stuck", func() error {
		<-block
		return nil
	}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if got := r.Abandoned(); got != 1 {
		t.Fatalf("abandoned = %d while the op still runs", got)
	}

	close(block)
	deadline := time.Now().Add(time.Second)
	for r.Abandoned() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("abandoned op finished but count stayed %d", r.Abandoned())
		}
		time.Sleep(2 * time.Millisecond)
	}
}
