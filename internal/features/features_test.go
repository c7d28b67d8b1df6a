package features

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/m3rciful/pdfbot/core/observability"
	"github.com/m3rciful/pdfbot/internal/failure"
	"github.com/m3rciful/pdfbot/internal/flow"
	"github.com/m3rciful/pdfbot/internal/i18n"
	"github.com/m3rciful/pdfbot/internal/language"
	"github.com/m3rciful/pdfbot/internal/payment"
	"github.com/m3rciful/pdfbot/internal/pdf"
	"github.com/m3rciful/pdfbot/internal/session"
)

type sentText struct {
	chatID int64
	text   string
	kb     *Keyboard
	queued bool
}

type fakeMessenger struct {
	mu       sync.Mutex
	editErr  error
	edits    []string
	texts    []sentText
	docs     []string
	invoices []payment.Invoice
}

func (m *fakeMessenger) SendText(_ context.Context, chatID int64, text string, kb *Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, sentText{chatID: chatID, text: text, kb: kb})
	return nil
}

func (m *fakeMessenger) EditText(_ context.Context, _ int64, messageID int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		return m.editErr
	}
	m.edits = append(m.edits, strconv.Itoa(messageID)+":"+text)
	return nil
}

func (m *fakeMessenger) Post(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, sentText{chatID: chatID, text: text, queued: true})
	return nil
}

func (m *fakeMessenger) SendDocument(_ context.Context, _ int64, _, name, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, name)
	return nil
}

func (m *fakeMessenger) SendInvoice(_ context.Context, _ int64, inv payment.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices = append(m.invoices, inv)
	return nil
}

func (m *fakeMessenger) last() sentText {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.texts) == 0 {
		return sentText{}
	}
	return m.texts[len(m.texts)-1]
}

func (m *fakeMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

type pdfCall struct {
	op    string
	files []pdf.File
	crop  pdf.CropOptions
	text  string
}

type fakeProcessor struct {
	mu    sync.Mutex
	calls []pdfCall
}

func (p *fakeProcessor) record(c pdfCall) (*pdf.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, c)
	return &pdf.Result{Path: "/dev/null", Name: c.op + ".pdf"}, nil
}

func (p *fakeProcessor) Crop(_ context.Context, f pdf.File, opt pdf.CropOptions) (*pdf.Result, error) {
	return p.record(pdfCall{op: "crop", files: []pdf.File{f}, crop: opt})
}

func (p *fakeProcessor) Watermark(_ context.Context, f pdf.File, text string) (*pdf.Result, error) {
	return p.record(pdfCall{op: "watermark", files: []pdf.File{f}, text: text})
}

func (p *fakeProcessor) Merge(_ context.Context, files []pdf.File) (*pdf.Result, error) {
	return p.record(pdfCall{op: "merge", files: files})
}

func (p *fakeProcessor) ImagesToPDF(_ context.Context, files []pdf.File) (*pdf.Result, error) {
	return p.record(pdfCall{op: "images", files: files})
}

func (p *fakeProcessor) TextToPDF(_ context.Context, text string) (*pdf.Result, error) {
	return p.record(pdfCall{op: "text", text: text})
}

func (p *fakeProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type memRepo struct {
	mu   sync.Mutex
	rows map[string]payment.Record
}

func (r *memRepo) Insert(_ context.Context, rec payment.Record) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[rec.ChargeID]; ok {
		return false, nil
	}
	r.rows[rec.ChargeID] = rec
	return true, nil
}

func (r *memRepo) ByUser(_ context.Context, userID int64) ([]payment.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []payment.Record
	for _, rec := range r.rows {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type harness struct {
	bot     *Bot
	store   *session.MemoryStore
	msg     *fakeMessenger
	proc    *fakeProcessor
	langs   language.Store
	reports []observability.Report
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: session.NewMemoryStore(0),
		msg:   &fakeMessenger{},
		proc:  &fakeProcessor{},
		langs: language.NewMemoryStore(),
	}
	var bot *Bot
	engine := flow.NewEngine(flow.Options{
		Store: h.store,
		Notifier: flow.NotifierFunc(func(ctx context.Context, ev flow.Event, key string) error {
			return bot.Notify(ctx, ev, key)
		}),
		Sink: observability.SinkFunc(func(_ context.Context, r observability.Report) {
			h.reports = append(h.reports, r)
		}),
	})
	payCfg := payment.Config{ProviderToken: "tok"}
	if err := payCfg.Normalize(); err != nil {
		t.Fatalf("payment config: %v", err)
	}
	bot, err := New(Deps{
		Engine:    engine,
		Messenger: h.msg,
		PDF:       h.proc,
		Bundle:    i18n.MustLoad(),
		Languages: language.NewService(h.langs, "en_GB"),
		Payments:  payment.NewService(payCfg, &memRepo{rows: make(map[string]payment.Record)}),
		AdminID:   99,
	})
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	h.bot = bot
	return h
}

func ev(text string) flow.Event {
	return flow.Event{UserID: 1, ChatID: 10, Lang: "en_GB", Text: text}
}

func doc(id, name string) flow.Event {
	e := ev("")
	e.File = &flow.FileRef{ID: id, Name: name, MIME: "application/pdf", Size: 1024}
	return e
}

func (h *harness) send(t *testing.T, e flow.Event) {
	t.Helper()
	if err := h.bot.OnMessage(context.Background(), e); err != nil {
		t.Fatalf("on message %q: %v", e.Text, err)
	}
}

func (h *harness) state(t *testing.T) (flow.State, bool) {
	t.Helper()
	sess, ok, err := h.store.Load(context.Background(), 1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		return flow.End, false
	}
	return flow.State(sess.State), true
}

// seed puts the user in state directly, optionally with the uploaded file slot.
func (h *harness) seed(t *testing.T, flowName string, st flow.State, withFile bool) {
	t.Helper()
	sess := session.New(1, 10, flowName)
	sess.State = string(st)
	if withFile {
		if err := sess.Set(slotFile, flow.FileRef{ID: "doc123", Name: "doc.pdf"}); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if err := h.store.Save(context.Background(), sess); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func TestCropTypeByPercentage(t *testing.T) {
	h := newHarness(t)
	h.send(t, doc("doc123", "doc.pdf"))
	if st, _ := h.state(t); st != StatePDFTask {
		t.Fatalf("state after upload = %s", st)
	}
	h.send(t, ev("Crop"))
	if st, _ := h.state(t); st != StateCropType {
		t.Fatalf("state after Crop = %s", st)
	}
	h.send(t, ev("By percentage"))
	if st, _ := h.state(t); st != StatePercentage {
		t.Fatalf("state after By percentage = %s", st)
	}
}

func TestCropByPercentageCallsProcessor(t *testing.T) {
	h := newHarness(t)
	h.seed(t, FlowPDF, StatePercentage, true)

	h.send(t, ev("0.1"))
	if _, active := h.state(t); active {
		t.Fatal("conversation must end after cropping")
	}
	if len(h.proc.calls) != 1 {
		t.Fatalf("expected one crop, got %+v", h.proc.calls)
	}
	call := h.proc.calls[0]
	if call.op != "crop" || call.files[0].ID != "doc123" || call.crop.Percentage != 0.1 {
		t.Fatalf("unexpected call %+v", call)
	}
	if len(h.msg.docs) != 1 {
		t.Fatalf("result not delivered: %v", h.msg.docs)
	}
}

func TestCropWithoutFileIsSessionDataMissing(t *testing.T) {
	h := newHarness(t)
	h.seed(t, FlowPDF, StatePercentage, false)

	h.send(t, ev("0.1"))
	if _, active := h.state(t); active {
		t.Fatal("conversation must be terminated")
	}
	if h.proc.count() != 0 {
		t.Fatal("crop must not be called")
	}
	if got := h.msg.last().text; got != h.bot.Bundle.T("en", "error.session") {
		t.Fatalf("last message = %q", got)
	}
	if len(h.reports) != 1 {
		t.Fatalf("missing data must be escalated once, got %d", len(h.reports))
	}
}

func TestBackNavigatesWithoutExternalCalls(t *testing.T) {
	cases := []struct {
		flow string
		from flow.State
		want flow.State
	}{
		{FlowPDF, StatePDFTask, flow.End},
		{FlowPDF, StateCropType, StatePDFTask},
		{FlowPDF, StatePercentage, StateCropType},
		{FlowPDF, StateMargin, StateCropType},
		{FlowPDF, StateWatermarkText, StatePDFTask},
		{FlowMerge, StateMergeFiles, flow.End},
		{FlowImages, StateImages, flow.End},
		{FlowFeedback, StateFeedback, flow.End},
		{FlowText, StateText, flow.End},
	}
	for _, tc := range cases {
		t.Run(string(tc.from), func(t *testing.T) {
			h := newHarness(t)
			h.seed(t, tc.flow, tc.from, true)
			h.send(t, ev("Back"))
			if got, _ := h.state(t); got != tc.want {
				t.Fatalf("Back from %s went to %s, want %s", tc.from, got, tc.want)
			}
			if h.proc.count() != 0 {
				t.Fatalf("Back from %s called the processor", tc.from)
			}
		})
	}
}

func TestBackTransitionsArePure(t *testing.T) {
	h := newHarness(t)
	for _, tc := range []struct {
		flow string
		from flow.State
		want flow.State
	}{
		{FlowPDF, StatePercentage, StateCropType},
		{FlowPDF, StateWatermarkText, StatePDFTask},
		{FlowMerge, StateMergeFiles, flow.End},
	} {
		sess := session.New(1, 10, tc.flow)
		sess.State = string(tc.from)
		if err := sess.Set(slotFile, flow.FileRef{ID: "doc123", Name: "doc.pdf"}); err != nil {
			t.Fatalf("set: %v", err)
		}
		next, err := h.bot.Engine.Step(context.Background(), sess, ev("Back"))
		if err != nil || next != tc.want {
			t.Fatalf("Step(%s, Back) = %s, %v; want %s", tc.from, next, err, tc.want)
		}
	}
	if h.store.Len() != 0 || h.proc.count() != 0 {
		t.Fatalf("Step touched the store (%d sessions) or the processor (%d calls)", h.store.Len(), h.proc.count())
	}
}

func TestHelpMentionsCancelMidConversation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.bot.Help(ctx, ev("/help"), ""); err != nil {
		t.Fatalf("help: %v", err)
	}
	hint := h.bot.Bundle.T("en", "help.active")
	if strings.Contains(h.msg.last().text, hint) {
		t.Fatal("idle user must not get the cancel hint")
	}
	h.seed(t, FlowPDF, StateCropType, true)
	if err := h.bot.Help(ctx, ev("/help"), ""); err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(h.msg.last().text, hint) {
		t.Fatalf("reply = %q", h.msg.last().text)
	}
}

func TestNumericInputOutsideDomainStays(t *testing.T) {
	cases := []struct {
		st     flow.State
		inputs []string
		msgKey string
	}{
		{StatePercentage, []string{"1.5", "1", "0", "-0.2", "abc", ""}, "crop.invalid_percentage"},
		{StateMargin, []string{"-1", "0", "2.5", "ten"}, "crop.invalid_margin"},
	}
	for _, tc := range cases {
		for _, in := range tc.inputs {
			h := newHarness(t)
			h.seed(t, FlowPDF, tc.st, true)
			h.send(t, ev(in))
			if got, _ := h.state(t); got != tc.st {
				t.Fatalf("%s with %q moved to %s", tc.st, in, got)
			}
			if h.proc.count() != 0 {
				t.Fatalf("%s with %q called the processor", tc.st, in)
			}
			if got := h.msg.last().text; got != h.bot.Bundle.T("en", tc.msgKey) {
				t.Fatalf("%s with %q replied %q", tc.st, in, got)
			}
		}
	}
}

func TestUnknownCropTypeRePrompts(t *testing.T) {
	h := newHarness(t)
	h.seed(t, FlowPDF, StateCropType, true)
	h.send(t, ev("Sideways"))
	if got, _ := h.state(t); got != StateCropType {
		t.Fatalf("state = %s", got)
	}
	if got := h.msg.last().text; got != h.bot.Bundle.T("en", "crop.choose_type") {
		t.Fatalf("reply = %q", got)
	}
}

func TestCropByMargin(t *testing.T) {
	h := newHarness(t)
	h.seed(t, FlowPDF, StateMargin, true)
	h.send(t, ev("36"))
	if h.proc.count() != 1 || h.proc.calls[0].crop.Margin != 36 {
		t.Fatalf("calls = %+v", h.proc.calls)
	}
}

func TestWatermarkFlow(t *testing.T) {
	h := newHarness(t)
	h.send(t, doc("doc123", "doc.pdf"))
	h.send(t, ev("Watermark"))
	if st, _ := h.state(t); st != StateWatermarkText {
		t.Fatalf("state = %s", st)
	}
	h.send(t, ev("  DRAFT "))
	if h.proc.count() != 1 || h.proc.calls[0].text != "DRAFT" {
		t.Fatalf("calls = %+v", h.proc.calls)
	}
}

func TestMergeNeedsTwoFilesInOrder(t *testing.T) {
	h := newHarness(t)
	if err := h.bot.Commands()[2].Handle(context.Background(), ev("/merge"), ""); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if st, _ := h.state(t); st != StateMergeFiles {
		t.Fatalf("state = %s", st)
	}
	h.send(t, doc("a", "a.pdf"))
	h.send(t, ev("Done"))
	if h.proc.count() != 0 {
		t.Fatal("merge with one file must not run")
	}
	if got := h.msg.last().text; got != h.bot.Bundle.T("en", "merge.too_few") {
		t.Fatalf("reply = %q", got)
	}
	h.send(t, doc("b", "b.pdf"))
	h.send(t, ev("Done"))
	if h.proc.count() != 1 {
		t.Fatalf("calls = %+v", h.proc.calls)
	}
	files := h.proc.calls[0].files
	if len(files) != 2 || files[0].ID != "a" || files[1].ID != "b" {
		t.Fatalf("files = %+v", files)
	}
}

func TestConcurrentUploadsAreNotLost(t *testing.T) {
	h := newHarness(t)
	h.seed(t, FlowMerge, StateMergeFiles, false)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = h.bot.OnMessage(context.Background(), doc(string(rune('a'+i)), "x.pdf"))
		}(i)
	}
	wg.Wait()

	sess, _, _ := h.store.Load(context.Background(), 1)
	files, err := session.Lookup[[]flow.FileRef](sess, slotFiles)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(files) != 10 {
		t.Fatalf("expected 10 collected files, got %d", len(files))
	}
}

func TestPhotoStartsImagesFlow(t *testing.T) {
	h := newHarness(t)
	photo := ev("")
	photo.File = &flow.FileRef{ID: "p1", MIME: "image/jpeg", Size: 2048}
	h.send(t, photo)
	if st, _ := h.state(t); st != StateImages {
		t.Fatalf("state = %s", st)
	}
	h.send(t, ev("Done"))
	if h.proc.count() != 1 || h.proc.calls[0].op != "images" || h.proc.calls[0].files[0].ID != "p1" {
		t.Fatalf("calls = %+v", h.proc.calls)
	}
}

func TestOversizedFileIsRejected(t *testing.T) {
	h := newHarness(t)
	big := doc("big", "big.pdf")
	big.File.Size = 50 << 20
	h.send(t, big)
	if _, active := h.state(t); active {
		t.Fatal("oversized upload must not start a conversation")
	}
	if !strings.Contains(h.msg.last().text, "20 MB") {
		t.Fatalf("reply = %q", h.msg.last().text)
	}
}

func TestUnhandledMessagesGetFallback(t *testing.T) {
	h := newHarness(t)
	h.send(t, ev("hello"))
	if got := h.msg.last().text; got != h.bot.Bundle.T("en", "fallback.text") {
		t.Fatalf("reply = %q", got)
	}
	other := ev("")
	other.File = &flow.FileRef{ID: "z", Name: "notes.txt", MIME: "text/plain"}
	h.send(t, other)
	if got := h.msg.last().text; got != h.bot.Bundle.T("en", "pdf.not_pdf") {
		t.Fatalf("reply = %q", got)
	}
}

func TestFeedbackIsForwardedToAdmin(t *testing.T) {
	h := newHarness(t)
	if _, err := h.bot.Engine.Start(context.Background(), FlowFeedback, ev("/feedback")); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.send(t, ev("Great bot"))
	var forwarded bool
	for _, m := range h.msg.texts {
		if m.chatID == 99 && strings.Contains(m.text, "Great bot") {
			forwarded = m.queued
		}
	}
	if !forwarded {
		t.Fatalf("feedback not queued for the admin: %+v", h.msg.texts)
	}
	if _, active := h.state(t); active {
		t.Fatal("feedback conversation must end")
	}
}

func TestCancelCommand(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.bot.Cancel(ctx, ev("/cancel"), ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := h.msg.last().text; got != h.bot.Bundle.T("en", "cancel.none") {
		t.Fatalf("reply = %q", got)
	}
	h.seed(t, FlowPDF, StateCropType, true)
	if err := h.bot.Cancel(ctx, ev("/cancel"), ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, active := h.state(t); active {
		t.Fatal("cancel must drop the conversation")
	}
	if last := h.msg.last(); last.text != h.bot.Bundle.T("en", "cancel.done") || last.kb == nil || !last.kb.Remove {
		t.Fatalf("reply = %+v", last)
	}
}

func TestCallbackRoutes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	e := ev("")

	if err := h.bot.OnCallback(ctx, e, "set_lang"); err != nil {
		t.Fatalf("set_lang: %v", err)
	}
	menu := h.msg.last()
	buttons := 0
	for _, row := range menu.kb.Inline {
		buttons += len(row)
	}
	if buttons != 38 {
		t.Fatalf("language menu has %d buttons", buttons)
	}

	if err := h.bot.OnCallback(ctx, e, "🇪🇸 español"); err != nil {
		t.Fatalf("set language: %v", err)
	}
	if code, _, _ := h.langs.Get(ctx, 1); code != "es_ES" {
		t.Fatalf("stored language = %q", code)
	}
	if got := h.msg.last().text; got != "Tu idioma se ha cambiado a 🇪🇸 español" {
		t.Fatalf("confirmation = %q", got)
	}

	if err := h.bot.OnCallback(ctx, e, "payment"); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if rows := h.msg.last().kb.Inline; len(rows) != 4 || rows[1][0].Data != "payment,coffee" {
		t.Fatalf("support menu = %+v", rows)
	}

	if err := h.bot.OnCallback(ctx, e, "payment,coffee"); err != nil {
		t.Fatalf("invoice: %v", err)
	}
	if len(h.msg.invoices) != 1 || h.msg.invoices[0].Amount != 300 {
		t.Fatalf("invoices = %+v", h.msg.invoices)
	}

	before := h.msg.count()
	if err := h.bot.OnCallback(ctx, e, "garbage"); err != nil {
		t.Fatalf("garbage: %v", err)
	}
	if h.msg.count() != before {
		t.Fatal("unknown payload must be ignored")
	}
}

func TestStaleInvoiceButton(t *testing.T) {
	h := newHarness(t)
	if err := h.bot.OnCallback(context.Background(), ev(""), "payment,yacht"); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if got := h.msg.last().text; got != h.bot.Bundle.T("en", "error.expired") {
		t.Fatalf("reply = %q", got)
	}
	if len(h.reports) != 0 {
		t.Fatal("stale buttons must not be escalated")
	}
}

func TestPaymentHooks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if ok, _ := h.bot.PreCheckout(ev(""), "support:beer:x", "USD", 500); !ok {
		t.Fatal("valid checkout rejected")
	}
	if ok, msg := h.bot.PreCheckout(ev(""), "support:beer:x", "USD", 1); ok || msg == "" {
		t.Fatal("amount mismatch accepted")
	}

	r := payment.Receipt{UserID: 1, ChargeID: "c1", Payload: "support:beer:x", Currency: "USD", Amount: 500}
	for i := 0; i < 2; i++ {
		if err := h.bot.PaymentDone(ctx, ev(""), r); err != nil {
			t.Fatalf("payment done: %v", err)
		}
	}
	thanks := 0
	for _, m := range h.msg.texts {
		if m.text == h.bot.Bundle.T("en", "support.thanks") {
			thanks++
		}
	}
	if thanks != 1 {
		t.Fatalf("expected one thank-you, got %d", thanks)
	}
}

func TestStartDeepLinkOpensSupport(t *testing.T) {
	h := newHarness(t)
	if err := h.bot.Start(context.Background(), ev("/start support"), "support"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := h.msg.last().text; got != h.bot.Bundle.T("en", "support.menu") {
		t.Fatalf("reply = %q", got)
	}
}

func TestParseSendArgs(t *testing.T) {
	id, text, err := parseSendArgs(" 42 hello there ")
	if err != nil || id != 42 || text != "hello there" {
		t.Fatalf("got %d %q %v", id, text, err)
	}
	for _, bad := range []string{"", "42", "abc hi", "0 hi"} {
		if _, _, err := parseSendArgs(bad); err == nil {
			t.Fatalf("%q must be rejected", bad)
		}
	}
}

func TestTextFlowBuildsPDF(t *testing.T) {
	h := newHarness(t)
	if _, err := h.bot.Engine.Start(context.Background(), FlowText, ev("/text")); err != nil {
		t.Fatalf("start: %v", err)
	}
	if st, _ := h.state(t); st != StateText {
		t.Fatalf("state = %s", st)
	}

	h.send(t, doc("a", "a.pdf"))
	if st, _ := h.state(t); st != StateText || h.proc.count() != 0 {
		t.Fatalf("a file must re-prompt: state=%s calls=%d", st, h.proc.count())
	}
	if got := h.msg.last().text; got != h.bot.Bundle.T("en", "text.invalid") {
		t.Fatalf("reply = %q", got)
	}

	h.send(t, ev("  Dear diary  "))
	if _, active := h.state(t); active {
		t.Fatal("text conversation must end")
	}
	if h.proc.count() != 1 || h.proc.calls[0].op != "text" || h.proc.calls[0].text != "Dear diary" {
		t.Fatalf("calls = %+v", h.proc.calls)
	}
	if len(h.msg.docs) != 1 || h.msg.docs[0] != "text.pdf" {
		t.Fatalf("docs = %v", h.msg.docs)
	}
}

func TestLanguageChoiceEditsPicker(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	press := ev("")
	press.MessageID = 77

	before := h.msg.count()
	if err := h.bot.OnCallback(ctx, press, "🇪🇸 español"); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if len(h.msg.edits) != 1 || h.msg.edits[0] != "77:Tu idioma se ha cambiado a 🇪🇸 español" {
		t.Fatalf("edits = %q", h.msg.edits)
	}
	if h.msg.count() != before {
		t.Fatal("an edited picker must not be followed by a new message")
	}

	h.msg.editErr = failure.Silent(errors.New("message is not modified"))
	if err := h.bot.OnCallback(ctx, press, "🇪🇸 español"); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if h.msg.count() != before {
		t.Fatal("an unchanged picker needs no new message")
	}

	h.msg.editErr = errors.New("message to edit not found")
	if err := h.bot.OnCallback(ctx, press, "🇪🇸 español"); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if h.msg.count() != before+1 || h.msg.last().text != "Tu idioma se ha cambiado a 🇪🇸 español" {
		t.Fatalf("failed edit must fall back to a new message: %+v", h.msg.last())
	}
}
