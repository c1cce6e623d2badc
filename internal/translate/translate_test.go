package translate_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"livesub/internal/config"
	"livesub/internal/services"
	"livesub/internal/services/llm"
	"livesub/internal/services/marian"
	"livesub/internal/subtitles"
	"livesub/internal/transcribe"
	"livesub/internal/translate"
)

type stubTranslator struct {
	mu    sync.Mutex
	calls int
	out   string
	err   error
}

func (s *stubTranslator) Name() string { return "stub" }

func (s *stubTranslator) Translate(_ context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if s.out != "" {
		return s.out, nil
	}
	return strings.ToUpper(text), nil
}

type countingObserver struct {
	translated int
	failed     int
}

func (c *countingObserver) Translated(context.Context, time.Duration) { c.translated++ }
func (c *countingObserver) TranslationFailed(context.Context)         { c.failed++ }

func seg(text string) transcribe.Segment {
	return transcribe.Segment{Index: 4, Start: time.Second, End: 2 * time.Second, Text: text}
}

func TestProcessTranslates(t *testing.T) {
	stub := &stubTranslator{out: "مرحبا"}
	observer := &countingObserver{}
	worker := translate.NewWorker(stub, observer, nil)

	cue, err := worker.Process(context.Background(), seg("hello"))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if cue.Text != "مرحبا" || cue.Source != "hello" || cue.Index != 4 || cue.Start != time.Second {
		t.Fatalf("unexpected cue %+v", cue)
	}
	if observer.translated != 1 || observer.failed != 0 {
		t.Fatalf("unexpected observer counts %+v", observer)
	}
}

func TestProcessSkipsEmptyText(t *testing.T) {
	stub := &stubTranslator{}
	worker := translate.NewWorker(stub, nil, nil)
	cue, err := worker.Process(context.Background(), seg("   "))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if stub.calls != 0 {
		t.Fatal("expected translator not to be called for blank text")
	}
	if cue.Text != "   " {
		t.Fatalf("expected text passed through unchanged, got %q", cue.Text)
	}
}

func TestProcessMarksFailures(t *testing.T) {
	observer := &countingObserver{}
	worker := translate.NewWorker(&stubTranslator{err: errors.New("sidecar down")}, observer, nil)
	cue, err := worker.Process(context.Background(), seg("hello"))
	if err != nil {
		t.Fatalf("expected failure to degrade, got %v", err)
	}
	if cue.Text != subtitles.TranslationErrorPrefix+"hello" {
		t.Fatalf("unexpected marker text %q", cue.Text)
	}
	if observer.failed != 1 {
		t.Fatalf("expected failure recorded, got %+v", observer)
	}
}

func TestProcessPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	worker := translate.NewWorker(&stubTranslator{err: context.Canceled}, nil, nil)
	cue, err := worker.Process(ctx, seg("hello"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if strings.HasPrefix(cue.Text, subtitles.TranslationErrorPrefix) {
		t.Fatal("cancellation must not produce a marker cue")
	}
}

func TestRunPreservesOrder(t *testing.T) {
	worker := translate.NewWorker(&stubTranslator{}, nil, nil)
	in := make(chan transcribe.Segment, 3)
	out := make(chan subtitles.Cue, 3)
	for i, text := range []string{"a", "b", "c"} {
		in <- transcribe.Segment{Index: i, Start: time.Duration(i) * time.Second, End: time.Duration(i+1) * time.Second, Text: text}
	}
	close(in)
	if err := worker.Run(context.Background(), in, out); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	var texts []string
	for cue := range out {
		texts = append(texts, cue.Text)
	}
	if strings.Join(texts, ",") != "A,B,C" {
		t.Fatalf("unexpected output order %v", texts)
	}
}

func TestHTTPTranslatorUsesSidecar(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"translation":"شكرا"}`))
	}))
	defer server.Close()

	tr := translate.NewHTTPTranslator(marian.NewClient(marian.Config{BaseURL: server.URL}), "en", "ar")
	got, err := tr.Translate(context.Background(), "thanks")
	if err != nil || got != "شكرا" {
		t.Fatalf("unexpected translation %q err %v", got, err)
	}
}

type fakeLLM struct{ source, target string }

func (f *fakeLLM) Translate(_ context.Context, text, source, target string) (llm.Translation, error) {
	f.source, f.target = source, target
	return llm.Translation{Text: "<" + text + ">"}, nil
}

func TestLLMTranslatorPassesLanguagePair(t *testing.T) {
	client := &fakeLLM{}
	tr := translate.NewLLMTranslator(client, "en", "ar")
	got, err := tr.Translate(context.Background(), "hi")
	if err != nil || got != "<hi>" {
		t.Fatalf("unexpected translation %q err %v", got, err)
	}
	if client.source != "en" || client.target != "ar" {
		t.Fatalf("unexpected language pair %s→%s", client.source, client.target)
	}
}

func TestNewSelectsTranslator(t *testing.T) {
	cfg := config.Default()
	tr, err := translate.New(&cfg)
	if err != nil || tr.Name() != config.TranslationHTTP {
		t.Fatalf("expected http translator, got %v %v", tr, err)
	}

	cfg.Translation.Enabled = false
	if tr, _ := translate.New(&cfg); tr.Name() != config.TranslationPassthrough {
		t.Fatalf("expected passthrough when disabled, got %s", tr.Name())
	}

	cfg.Translation.Enabled = true
	cfg.Translation.Backend = config.TranslationLLM
	if tr, _ := translate.New(&cfg); tr.Name() != config.TranslationLLM {
		t.Fatalf("expected llm translator, got %s", tr.Name())
	}

	cfg.Translation.Backend = "deepl"
	if _, err := translate.New(&cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
