package features

import (
	"context"

	"github.com/m3rciful/pdfbot/internal/failure"
	"github.com/m3rciful/pdfbot/internal/flow"
	"github.com/m3rciful/pdfbot/internal/pdf"
	"github.com/m3rciful/pdfbot/internal/session"
)

// States of the file collecting conversations.
const (
	StateMergeFiles flow.State = "awaiting-merge-files"
	StateImages     flow.State = "awaiting-images"
)

const slotFiles = "files"

// collected returns the files gathered so far. An empty slot is a valid start.
func collected(sess *session.Session) ([]flow.FileRef, error) {
	if !sess.Has(slotFiles) {
		return nil, nil
	}
	return session.Lookup[[]flow.FileRef](sess, slotFiles)
}

func collect(sess *session.Session, f flow.FileRef) (int, error) {
	files, err := collected(sess)
	if err != nil {
		return 0, err
	}
	files = append(files, f)
	return len(files), sess.Set(slotFiles, files)
}

func toPDFFiles(refs []flow.FileRef) []pdf.File {
	out := make([]pdf.File, 0, len(refs))
	for _, r := range refs {
		out = append(out, toPDFFile(r))
	}
	return out
}

// mergeFlow is started by /merge and ends with one merged document.
func (b *Bot) mergeFlow() flow.Flow {
	return flow.Flow{
		Name: FlowMerge,
		Entry: func(ctx context.Context, _ *session.Session, ev flow.Event) (flow.State, error) {
			return StateMergeFiles, b.say(ctx, ev, "merge.start", b.collectKeyboard(ev))
		},
		States: map[flow.State]flow.Handler{
			StateMergeFiles: b.onMergeFile,
		},
	}
}

func (b *Bot) collectKeyboard(ev flow.Event) *Keyboard {
	return b.reply(ev, []string{"btn.done"}, []string{"btn.cancel"})
}

func (b *Bot) onMergeFile(ctx context.Context, sess *session.Session, ev flow.Event) (flow.State, error) {
	switch {
	case ev.File.IsPDF():
		if big, err := b.tooLarge(ctx, ev); big || err != nil {
			return StateMergeFiles, err
		}
		n, err := collect(sess, *ev.File)
		if err != nil {
			return "", err
		}
		return StateMergeFiles, b.say(ctx, ev, "merge.added", nil, pdfName(ev.File.Name), n)
	case ev.File != nil:
		return "", failure.UserInput("pdf.not_pdf")
	case b.is(ev, "btn.cancel"), b.is(ev, "btn.back"):
		return b.cancelled(ctx, ev)
	case b.is(ev, "btn.done"):
		files, err := collected(sess)
		if err != nil {
			return "", err
		}
		if len(files) < 2 {
			return "", failure.UserInput("merge.too_few")
		}
		if err := b.say(ctx, ev, "merge.working", &Keyboard{Remove: true}); err != nil {
			return "", err
		}
		res, err := b.PDF.Merge(ctx, toPDFFiles(files))
		if err != nil {
			return "", err
		}
		return flow.End, b.deliver(ctx, ev, res)
	}
	return "", failure.UserInput("merge.start")
}

// imagesFlow is started by /images or by sending an image outside a conversation.
func (b *Bot) imagesFlow() flow.Flow {
	return flow.Flow{
		Name:    FlowImages,
		Trigger: func(ev flow.Event) bool { return ev.File.IsImage() },
		Entry: func(ctx context.Context, sess *session.Session, ev flow.Event) (flow.State, error) {
			if ev.File.IsImage() {
				return b.addImage(ctx, sess, ev)
			}
			return StateImages, b.say(ctx, ev, "images.start", b.collectKeyboard(ev))
		},
		States: map[flow.State]flow.Handler{
			StateImages: b.onImage,
		},
	}
}

func (b *Bot) addImage(ctx context.Context, sess *session.Session, ev flow.Event) (flow.State, error) {
	if big, err := b.tooLarge(ctx, ev); big || err != nil {
		return StateImages, err
	}
	n, err := collect(sess, *ev.File)
	if err != nil {
		return "", err
	}
	return StateImages, b.say(ctx, ev, "images.added", b.collectKeyboard(ev), n)
}

func (b *Bot) onImage(ctx context.Context, sess *session.Session, ev flow.Event) (flow.State, error) {
	switch {
	case ev.File.IsImage():
		return b.addImage(ctx, sess, ev)
	case ev.File != nil:
		return "", failure.UserInput("images.not_image")
	case b.is(ev, "btn.cancel"), b.is(ev, "btn.back"):
		return b.cancelled(ctx, ev)
	case b.is(ev, "btn.done"):
		files, err := collected(sess)
		if err != nil {
			return "", err
		}
		if len(files) == 0 {
			return "", failure.UserInput("images.too_few")
		}
		if err := b.say(ctx, ev, "images.working", &Keyboard{Remove: true}); err != nil {
			return "", err
		}
		res, err := b.PDF.ImagesToPDF(ctx, toPDFFiles(files))
		if err != nil {
			return "", err
		}
		return flow.End, b.deliver(ctx, ev, res)
	}
	return "", failure.UserInput("images.start")
}

func pdfName(name string) string {
	if name == "" {
		return "file.pdf"
	}
	return name
}
