package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const (
	textLineRunes = 85
	textPageLines = 50
	textFontSize  = 11
)

// pdfcpu create layout; see pdfcpu's testdata/json/create.
type (
	textLayout struct {
		Paper  string              `json:"paper"`
		Origin string              `json:"origin"`
		Fonts  map[string]textFont `json:"fonts"`
		Margin textMargin          `json:"margin"`
		Pages  map[string]textPage `json:"pages"`
	}
	textFont struct {
		Name string `json:"name"`
		Size int    `json:"size,omitempty"`
	}
	textMargin struct {
		Width int `json:"width"`
	}
	textPage struct {
		Content textContent `json:"content"`
	}
	textContent struct {
		Text []textBox `json:"text"`
	}
	textBox struct {
		Value  string   `json:"value"`
		Anchor string   `json:"anchor"`
		Font   textFont `json:"font"`
	}
)

// TextToPDF typesets plain text onto A4 pages with a core font.
func (s *Service) TextToPDF(ctx context.Context, text string) (*Result, error) {
	pages := paginate(text)
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: empty text", ErrNoInput)
	}
	layout, err := json.Marshal(newTextLayout(pages))
	if err != nil {
		return nil, fmt.Errorf("pdf text layout: %w", err)
	}
	dir, err := s.scratch("text")
	if err != nil {
		return nil, err
	}
	res := &Result{Path: filepath.Join(dir, "out.pdf"), Name: "Text.pdf", dir: dir}
	err = s.runner.Run(ctx, "text", func() error {
		out, err := os.Create(res.Path)
		if err != nil {
			return err
		}
		if err := api.Create(nil, bytes.NewReader(layout), out, newConf()); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	})
	if err != nil {
		res.Cleanup()
		return nil, fmt.Errorf("pdf text: %w", err)
	}
	s.countPages(ctx, res)
	return res, nil
}

func newTextLayout(pages [][]string) textLayout {
	l := textLayout{
		Paper:  "A4P",
		Origin: "LowerLeft",
		Fonts:  map[string]textFont{"body": {Name: "Helvetica", Size: textFontSize}},
		Margin: textMargin{Width: 36},
		Pages:  make(map[string]textPage, len(pages)),
	}
	for i, lines := range pages {
		l.Pages[strconv.Itoa(i+1)] = textPage{Content: textContent{Text: []textBox{{
			Value:  strings.Join(lines, "\n"),
			Anchor: "topLeft",
			Font:   textFont{Name: "$body"},
		}}}}
	}
	return l
}

// paginate wraps text at word boundaries and splits it into pages. Runes a
// core font cannot encode become '?'. Blank input yields no pages.
func paginate(text string) [][]string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		lines = append(lines, wrap(latin1(para), textLineRunes)...)
	}
	var pages [][]string
	for len(lines) > 0 {
		n := min(textPageLines, len(lines))
		pages = append(pages, lines[:n])
		lines = lines[n:]
	}
	return pages
}

func wrap(para string, width int) []string {
	words := strings.Fields(para)
	if len(words) == 0 {
		return []string{""}
	}
	var (
		lines []string
		cur   []rune
	)
	for _, w := range words {
		r := []rune(w)
		for len(r) > width {
			if len(cur) > 0 {
				lines = append(lines, string(cur))
				cur = nil
			}
			lines = append(lines, string(r[:width]))
			r = r[width:]
		}
		switch {
		case len(cur) == 0:
			cur = r
		case len(cur)+1+len(r) <= width:
			cur = append(append(cur, ' '), r...)
		default:
			lines = append(lines, string(cur))
			cur = r
		}
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}

func latin1(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if r > unicode.MaxLatin1 || unicode.IsControl(r) {
			return '?'
		}
		return r
	}, s)
}
