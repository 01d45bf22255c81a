package interview

import "errors"

var (
	ErrSessionMissing    = errors.New("no user found in session")
	ErrInputMissing      = errors.New("no audio file provided")
	ErrInterviewComplete = errors.New("interview already complete")
	ErrSpeechDisabled    = errors.New("question audio is not configured")

	// Adapter failures are wrapped in one of these.
	ErrTranscription = errors.New("transcription failed")
	ErrGeneration    = errors.New("generation failed")
	ErrSynthesis     = errors.New("speech synthesis failed")
)
