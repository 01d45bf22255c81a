package interview

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/visaprep/internal/archive"
	"github.com/nikhilbhutani/visaprep/internal/llm"
	"github.com/nikhilbhutani/visaprep/internal/multimodal/stt"
	"github.com/nikhilbhutani/visaprep/internal/multimodal/tts"
	"github.com/nikhilbhutani/visaprep/internal/notify"
	"github.com/nikhilbhutani/visaprep/internal/questions"
	"github.com/nikhilbhutani/visaprep/internal/session"
)

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (*llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{Text: "generated: " + prompt, Raw: `{"raw":true}`}, nil
}

func (f *fakeGenerator) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

type fakeTranscriber struct {
	text     string
	err      error
	paths    []string
	sawFile  bool
	sawBytes string
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) Transcribe(_ context.Context, req stt.TranscriptionRequest) (*stt.TranscriptionResponse, error) {
	f.paths = append(f.paths, req.FilePath)
	if data, err := os.ReadFile(req.FilePath); err == nil {
		f.sawFile = true
		f.sawBytes = string(data)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &stt.TranscriptionResponse{Text: f.text}, nil
}

type fakeNotifier struct {
	sent []notify.Message
	err  error
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeArchive struct {
	records []archive.Record
	err     error
}

func (f *fakeArchive) Save(_ context.Context, rec archive.Record) error {
	f.records = append(f.records, rec)
	return f.err
}

type fakeSpeech struct{ inputs []string }

func (f *fakeSpeech) Name() string { return "fake" }

func (f *fakeSpeech) Synthesize(_ context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	f.inputs = append(f.inputs, req.Input)
	return &tts.SynthesisResult{Audio: []byte("mp3"), ContentType: "audio/mpeg"}, nil
}

type fixture struct {
	svc      *Service
	store    *session.MemoryStore
	gen      *fakeGenerator
	stt      *fakeTranscriber
	notifier *fakeNotifier
	archive  *fakeArchive
	speech   *fakeSpeech
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    session.NewMemoryStore(time.Hour),
		gen:      &fakeGenerator{},
		stt:      &fakeTranscriber{text: "I want to study computer science."},
		notifier: &fakeNotifier{},
		archive:  &fakeArchive{},
		speech:   &fakeSpeech{},
		dir:      t.TempDir(),
	}
	t.Cleanup(f.store.Close)

	f.svc = NewService(Deps{
		Store:       f.store,
		Questions:   questions.MustDefault(),
		Generator:   f.gen,
		Transcriber: f.stt,
		Notifier:    f.notifier,
		Archive:     f.archive,
		Speech:      f.speech,
	}, Options{
		LLMTimeout:     time.Second,
		STTTimeout:     time.Second,
		EmailTimeout:   time.Second,
		UploadDir:      f.dir,
		From:           "interviews@example.com",
		FallbackDomain: "example.com",
	})
	return f
}

func audio() Audio {
	return Audio{Filename: "answer.wav", Body: strings.NewReader("RIFF....WAVE")}
}

func (f *fixture) session(t *testing.T, id string) *session.Session {
	t.Helper()
	s, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return s
}

func (f *fixture) uploadDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestStartInitializesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	greeting, err := f.svc.Start(ctx, "s1", "Alice", "")
	require.NoError(t, err)
	require.Equal(t, "Say hello to Alice and introduce the interview. This interview is for F1 visa preparation.", f.gen.last())
	require.Equal(t, "generated: "+f.gen.last(), greeting)

	s := f.session(t, "s1")
	require.Equal(t, "Alice", s.UserName)
	require.Equal(t, 0, s.CurrentQuestionIndex)
	require.Empty(t, s.Transcript)
	require.Equal(t, session.InProgress, s.State(5))
}

func TestStartReplacesPreviousRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "s1", "Alice", "")
	require.NoError(t, err)
	_, err = f.svc.NextQuestion(ctx, "s1")
	require.NoError(t, err)
	_, err = f.svc.SubmitAnswer(ctx, "s1", audio())
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, "s1", "Bob", "bob@example.org")
	require.NoError(t, err)
	s := f.session(t, "s1")
	require.Equal(t, "Bob", s.UserName)
	require.Equal(t, "bob@example.org", s.Email)
	require.Equal(t, 0, s.CurrentQuestionIndex)
	require.Empty(t, s.Transcript)
}

func TestStartAcceptsEmptyName(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Start(context.Background(), "s1", "", "")
	require.NoError(t, err)
	require.Equal(t, "Say hello to  and introduce the interview. This interview is for F1 visa preparation.", f.gen.last())
}

func TestStartGenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.gen.err = errors.New("throttled")
	_, err := f.svc.Start(context.Background(), "s1", "Alice", "")
	require.ErrorIs(t, err, ErrGeneration)
}

func TestNextQuestionDoesNotAdvance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "s1", "Alice", "")
	require.NoError(t, err)

	for range 3 {
		q, err := f.svc.NextQuestion(ctx, "s1")
		require.NoError(t, err)
		require.False(t, q.Complete)
		require.Equal(t, questions.Default[0], q.Text)
		require.Equal(t, q.Text, q.Caption)
	}
	s := f.session(t, "s1")
	require.Equal(t, 0, s.CurrentQuestionIndex)
	require.Equal(t, questions.Default[0], s.CurrentQuestion)
}

func TestNextQuestionWithoutStart(t *testing.T) {
	f := newFixture(t)
	q, err := f.svc.NextQuestion(context.Background(), "fresh")
	require.NoError(t, err)
	require.Equal(t, questions.Default[0], q.Text)
}

func TestFullInterviewFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "s1", "Alice", "")
	require.NoError(t, err)

	for i, want := range questions.Default {
		q, err := f.svc.NextQuestion(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, want, q.Text)

		ans, err := f.svc.SubmitAnswer(ctx, "s1", audio())
		require.NoError(t, err)
		require.Equal(t, "I want to study computer science.", ans.Transcription)
		require.Equal(t,
			"Give brief positive feedback to the following answer from a student applying for an F1 visa who is not a native English speaker: I want to study computer science.",
			f.gen.last())
		require.Equal(t, "generated: "+f.gen.last(), ans.Feedback)

		s := f.session(t, "s1")
		require.Equal(t, i+1, s.CurrentQuestionIndex)
		require.Len(t, s.Transcript, i+1)
		require.Equal(t, want, s.Transcript[i].Question)
	}

	for range 2 {
		q, err := f.svc.NextQuestion(ctx, "s1")
		require.NoError(t, err)
		require.True(t, q.Complete)
	}
	require.Equal(t, session.Complete, f.session(t, "s1").State(5))

	_, err = f.svc.SubmitAnswer(ctx, "s1", audio())
	require.ErrorIs(t, err, ErrInterviewComplete)
	require.Len(t, f.session(t, "s1").Transcript, 5)

	res, err := f.svc.Finalize(ctx, "s1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(res.Transcript, "Question 1: "+questions.Default[0]+"\nAnswer: I want to study computer science.\n\n"))
	require.Equal(t, 5, strings.Count(res.Transcript, "\nAnswer: "))
	require.Equal(t, "Analyze the following F1 visa interview transcript and provide detailed feedback for the student: "+res.Transcript, f.gen.last())
	require.Equal(t, "generated: "+f.gen.last(), res.Analysis)

	require.Len(t, f.archive.records, 1)
	require.Equal(t, 5, f.archive.records[0].Answered)
	require.Equal(t, "Alice", f.archive.records[0].UserName)

	f.uploadDirEmpty(t)
}

func TestSubmitAnswerUnknownQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "s1", "Alice", "")
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswer(ctx, "s1", audio())
	require.NoError(t, err)
	s := f.session(t, "s1")
	require.Equal(t, "Unknown", s.Transcript[0].Question)
	require.Equal(t, 1, s.CurrentQuestionIndex)
}

func TestSubmitAnswerMissingAudio(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SubmitAnswer(context.Background(), "s1", Audio{})
	require.ErrorIs(t, err, ErrInputMissing)

	_, err = f.svc.SubmitAnswer(context.Background(), "s1", Audio{Filename: "a.wav", Body: strings.NewReader("")})
	require.ErrorIs(t, err, ErrInputMissing)
	require.Empty(t, f.stt.paths)
	f.uploadDirEmpty(t)
}

func TestSubmitAnswerSpoolsAndRemovesFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "s1", "Alice", "")
	require.NoError(t, err)

	_, err = f.svc.SubmitAnswer(ctx, "s1", Audio{Filename: "clip.webm", Body: strings.NewReader("webm-bytes")})
	require.NoError(t, err)
	require.True(t, f.stt.sawFile)
	require.Equal(t, "webm-bytes", f.stt.sawBytes)
	require.Equal(t, ".webm", filepath.Ext(f.stt.paths[0]))
	require.Equal(t, f.dir, filepath.Dir(f.stt.paths[0]))
	f.uploadDirEmpty(t)
}

func TestSubmitAnswerTranscriptionFailureRecordsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "s1", "Alice", "")
	require.NoError(t, err)
	f.stt.err = errors.New("whisper unavailable")

	_, err = f.svc.SubmitAnswer(ctx, "s1", audio())
	require.ErrorIs(t, err, ErrTranscription)

	s := f.session(t, "s1")
	require.Empty(t, s.Transcript)
	require.Equal(t, 0, s.CurrentQuestionIndex)
	f.uploadDirEmpty(t)
}

func TestSubmitAnswerFeedbackFailureRecordsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "s1", "Alice", "")
	require.NoError(t, err)
	f.gen.err = errors.New("model overloaded")

	_, err = f.svc.SubmitAnswer(ctx, "s1", audio())
	require.ErrorIs(t, err, ErrGeneration)

	s := f.session(t, "s1")
	require.Empty(t, s.Transcript)
	require.Equal(t, 0, s.CurrentQuestionIndex)
	f.uploadDirEmpty(t)
}

func TestFinalizeRequiresUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Finalize(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrSessionMissing)
	require.Empty(t, f.gen.prompts)
}

func TestFinalizeWithoutAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "s1", "Alice", "")
	require.NoError(t, err)

	res, err := f.svc.Finalize(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "", res.Transcript)
	require.Equal(t, "Analyze the following F1 visa interview transcript and provide detailed feedback for the student: ", f.gen.last())
}

func TestFinalizeIgnoresArchiveFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "s1", "Alice", "")
	require.NoError(t, err)
	f.archive.err = errors.New("db down")

	_, err = f.svc.Finalize(ctx, "s1")
	require.NoError(t, err)
}

func TestFinalizeDoesNotMutateSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "s1", "Alice", "")
	require.NoError(t, err)
	_, err = f.svc.SubmitAnswer(ctx, "s1", audio())
	require.NoError(t, err)
	before := f.session(t, "s1")

	_, err = f.svc.Finalize(ctx, "s1")
	require.NoError(t, err)
	after := f.session(t, "s1")
	require.Equal(t, before.CurrentQuestionIndex, after.CurrentQuestionIndex)
	require.Equal(t, before.Transcript, after.Transcript)
}

func TestSendEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "s1", "alice", "")
	require.NoError(t, err)

	ok, err := f.svc.SendEmail(ctx, "s1", "T", "A", "")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.notifier.sent, 1)

	msg := f.notifier.sent[0]
	require.Equal(t, "alice@example.com", msg.To)
	require.Equal(t, "interviews@example.com", msg.From)
	require.Equal(t, "Your F1 Visa Interview Transcript and AI Feedback", msg.Subject)
	require.Equal(t, "Hello alice,\n\nHere is your interview transcript:\n\nT\n\nFeedback:\nA", msg.Body)
}

func TestSendEmailRecipientPrecedence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "s1", "alice", "")
	require.NoError(t, err)
	_, err = f.svc.SendEmail(ctx, "s1", "T", "A", "alice@uni.edu")
	require.NoError(t, err)
	require.Equal(t, "alice@uni.edu", f.notifier.sent[0].To)

	_, err = f.svc.Start(ctx, "s2", "bob", "bob@home.net")
	require.NoError(t, err)
	_, err = f.svc.SendEmail(ctx, "s2", "T", "A", "other@uni.edu")
	require.NoError(t, err)
	require.Equal(t, "bob@home.net", f.notifier.sent[1].To)
}

func TestSendEmailFailureReturnsFalse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "s1", "alice", "")
	require.NoError(t, err)
	f.notifier.err = errors.New("relay refused")

	ok, err := f.svc.SendEmail(ctx, "s1", "T", "A", "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSendEmailRequiresUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SendEmail(context.Background(), "nobody", "T", "A", "x@y.z")
	require.ErrorIs(t, err, ErrSessionMissing)
	require.Empty(t, f.notifier.sent)
}

func TestQuestionAudio(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "s1", "Alice", "")
	require.NoError(t, err)

	res, err := f.svc.QuestionAudio(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "audio/mpeg", res.ContentType)
	require.Equal(t, []string{questions.Default[0]}, f.speech.inputs)
}

func TestQuestionAudioDisabled(t *testing.T) {
	f := newFixture(t)
	f.svc.speech = nil
	_, err := f.svc.QuestionAudio(context.Background(), "s1")
	require.ErrorIs(t, err, ErrSpeechDisabled)
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Start(ctx, "s1", "Alice", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Reset(ctx, "s1"))
	_, err = f.store.Get(ctx, "s1")
	require.ErrorIs(t, err, session.ErrNotFound)

	_, err = f.svc.Finalize(ctx, "s1")
	require.ErrorIs(t, err, ErrSessionMissing)
}

func TestFullTranscript(t *testing.T) {
	got := FullTranscript([]session.TranscriptEntry{
		{Question: "Q1", Response: "A1"},
		{Question: "Q2", Response: "A2"},
	})
	require.Equal(t, "Question 1: Q1\nAnswer: A1\n\nQuestion 2: Q2\nAnswer: A2\n\n", got)
	require.Equal(t, "", FullTranscript(nil))
}
