// Package interview runs the scripted mock visa interview for one session:
// greeting, fixed questions, per-answer feedback, final analysis and email.
package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nikhilbhutani/visaprep/internal/archive"
	"github.com/nikhilbhutani/visaprep/internal/llm"
	"github.com/nikhilbhutani/visaprep/internal/multimodal/stt"
	"github.com/nikhilbhutani/visaprep/internal/multimodal/tts"
	"github.com/nikhilbhutani/visaprep/internal/notify"
	"github.com/nikhilbhutani/visaprep/internal/questions"
	"github.com/nikhilbhutani/visaprep/internal/session"
)

// Generator produces free text for a single prompt. llm.Gateway satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*llm.Completion, error)
}

type Deps struct {
	Store       session.Store
	Questions   *questions.Bank
	Generator   Generator
	Transcriber stt.STTProvider
	Notifier    notify.Notifier
	Archive     archive.Archive // optional
	Speech      tts.TTSProvider // optional
}

type Options struct {
	LLMTimeout     time.Duration
	STTTimeout     time.Duration
	EmailTimeout   time.Duration
	UploadDir      string
	Language       string
	From           string
	FallbackDomain string
}

type Service struct {
	store       session.Store
	bank        *questions.Bank
	gen         Generator
	transcriber stt.STTProvider
	notifier    notify.Notifier
	archive     archive.Archive
	speech      tts.TTSProvider
	opts        Options
	now         func() time.Time
}

func NewService(d Deps, opts Options) *Service {
	if d.Archive == nil {
		d.Archive = archive.Noop{}
	}
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	if opts.FallbackDomain == "" {
		opts.FallbackDomain = "example.com"
	}
	return &Service{
		store:       d.Store,
		bank:        d.Questions,
		gen:         d.Generator,
		transcriber: d.Transcriber,
		notifier:    d.Notifier,
		archive:     d.Archive,
		speech:      d.Speech,
		opts:        opts,
		now:         time.Now,
	}
}

// Question is the result of NextQuestion. When Complete is set the other
// fields are empty.
type Question struct {
	Text     string
	Caption  string
	Index    int
	Complete bool
}

// Audio is an uploaded spoken answer.
type Audio struct {
	Filename string
	Body     io.Reader
}

type Answer struct {
	Transcription string
	Feedback      string
}

type Result struct {
	Transcript string
	Analysis   string
}

// Start begins a new run for name, discarding any previous state held under
// id, and returns the generated greeting.
func (s *Service) Start(ctx context.Context, id, name, email string) (string, error) {
	now := s.now().UTC()
	sess := &session.Session{
		UserName:             name,
		Email:                email,
		Started:              true,
		CurrentQuestionIndex: 0,
		Transcript:           []session.TranscriptEntry{},
		StartedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.store.Save(ctx, id, sess); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	text, err := s.generate(ctx, greeting(name))
	if err != nil {
		return "", err
	}
	slog.Info("interview started", "session", id, "questions", s.bank.Len())
	return text, nil
}

// NextQuestion issues the question at the current index without advancing.
// It is idempotent once the interview is complete.
func (s *Service) NextQuestion(ctx context.Context, id string) (*Question, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	q, ok := s.bank.At(sess.CurrentQuestionIndex)
	if !ok {
		return &Question{Complete: true, Index: sess.CurrentQuestionIndex}, nil
	}

	sess.CurrentQuestion = q
	sess.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, id, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &Question{Text: q, Caption: q, Index: sess.CurrentQuestionIndex}, nil
}

// SubmitAnswer transcribes audio, records it against the current question,
// generates feedback and advances to the next question. The session is only
// updated when both transcription and feedback succeed.
func (s *Service) SubmitAnswer(ctx context.Context, id string, audio Audio) (*Answer, error) {
	if audio.Body == nil {
		return nil, ErrInputMissing
	}

	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.CurrentQuestionIndex >= s.bank.Len() {
		return nil, ErrInterviewComplete
	}

	path, err := s.spool(audio)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("remove uploaded audio", "path", path, "error", err)
		}
	}()

	tctx, cancel := withTimeout(ctx, s.opts.STTTimeout)
	tr, err := s.transcriber.Transcribe(tctx, stt.TranscriptionRequest{
		FilePath: path,
		Language: s.opts.Language,
	})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscription, err)
	}

	fb, err := s.generate(ctx, feedback(tr.Text))
	if err != nil {
		return nil, err
	}

	question := sess.CurrentQuestion
	if question == "" {
		question = unknownQuestion
	}
	sess.Append(question, tr.Text)
	sess.CurrentQuestionIndex++
	sess.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, id, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	slog.Info("answer recorded",
		"session", id,
		"answered", len(sess.Transcript),
		"next_index", sess.CurrentQuestionIndex,
	)
	return &Answer{Transcription: tr.Text, Feedback: fb}, nil
}

// Finalize renders the transcript and asks for an overall analysis. It does
// not change the session.
func (s *Service) Finalize(ctx context.Context, id string) (*Result, error) {
	sess, err := s.requireUser(ctx, id)
	if err != nil {
		return nil, err
	}

	transcript := FullTranscript(sess.Transcript)
	text, err := s.generate(ctx, analysis(transcript))
	if err != nil {
		return nil, err
	}

	rec := archive.Record{
		SessionID:     id,
		UserName:      sess.UserName,
		Email:         sess.Email,
		Transcript:    transcript,
		Analysis:      text,
		QuestionCount: s.bank.Len(),
		Answered:      len(sess.Transcript),
		CreatedAt:     s.now().UTC(),
	}
	if err := s.archive.Save(ctx, rec); err != nil {
		slog.Warn("archive interview", "session", id, "error", err)
	}

	return &Result{Transcript: transcript, Analysis: text}, nil
}

// SendEmail mails transcript and analysis to the user. Delivery failures are
// logged and reported as false, never as an error.
func (s *Service) SendEmail(ctx context.Context, id, transcript, analysisText, email string) (bool, error) {
	sess, err := s.requireUser(ctx, id)
	if err != nil {
		return false, err
	}

	msg := notify.Message{
		From:    s.opts.From,
		To:      s.recipient(sess, email),
		Subject: emailSubject,
		Body:    emailBody(sess.UserName, transcript, analysisText),
	}

	ectx, cancel := withTimeout(ctx, s.opts.EmailTimeout)
	defer cancel()
	if err := s.notifier.Send(ectx, msg); err != nil {
		slog.Warn("send transcript email", "session", id, "backend", s.notifier.Name(), "to", msg.To, "error", err)
		return false, nil
	}
	return true, nil
}

// QuestionAudio voices the question at the current index.
func (s *Service) QuestionAudio(ctx context.Context, id string) (*tts.SynthesisResult, error) {
	if s.speech == nil {
		return nil, ErrSpeechDisabled
	}
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	text, ok := s.bank.At(sess.CurrentQuestionIndex)
	if !ok {
		return nil, ErrInterviewComplete
	}

	res, err := s.speech.Synthesize(ctx, tts.SynthesisRequest{Input: text})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	return res, nil
}

// Reset forgets the session.
func (s *Service) Reset(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Service) recipient(sess *session.Session, requested string) string {
	switch {
	case sess.Email != "":
		return sess.Email
	case requested != "":
		return requested
	default:
		return sess.UserName + "@" + s.opts.FallbackDomain
	}
}

// load returns the stored session, or a fresh unstarted one when none exists.
func (s *Service) load(ctx context.Context, id string) (*session.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return &session.Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

func (s *Service) requireUser(ctx context.Context, id string) (*session.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.HasUser() {
		return nil, ErrSessionMissing
	}
	return sess, nil
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	gctx, cancel := withTimeout(ctx, s.opts.LLMTimeout)
	defer cancel()

	c, err := s.gen.Generate(gctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return c.Text, nil
}

// spool writes the upload to a temp file under the upload dir and returns its
// path. Empty uploads count as missing input.
func (s *Service) spool(audio Audio) (string, error) {
	ext := filepath.Ext(filepath.Base(audio.Filename))
	if ext == "" {
		ext = ".wav"
	}
	f, err := os.CreateTemp(s.opts.UploadDir, "answer-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp audio file: %w", err)
	}

	n, err := io.Copy(f, audio.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = ErrInputMissing
	}
	if err != nil {
		os.Remove(f.Name())
		if errors.Is(err, ErrInputMissing) {
			return "", err
		}
		return "", fmt.Errorf("write temp audio file: %w", err)
	}
	return f.Name(), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
