package interview

import (
	"fmt"
	"strings"

	"github.com/nikhilbhutani/visaprep/internal/session"
)

const (
	greetingPrompt = "Say hello to %s and introduce the interview. This interview is for F1 visa preparation."
	feedbackPrompt = "Give brief positive feedback to the following answer from a student applying for an F1 visa who is not a native English speaker: %s"
	analysisPrompt = "Analyze the following F1 visa interview transcript and provide detailed feedback for the student: %s"

	emailSubject = "Your F1 Visa Interview Transcript and AI Feedback"

	// unknownQuestion is recorded when an answer arrives before any question was issued.
	unknownQuestion = "Unknown"
)

func greeting(name string) string   { return fmt.Sprintf(greetingPrompt, name) }
func feedback(answer string) string { return fmt.Sprintf(feedbackPrompt, answer) }
func analysis(transcript string) string {
	return fmt.Sprintf(analysisPrompt, transcript)
}

// FullTranscript renders entries as numbered question/answer blocks, each
// followed by a blank line.
func FullTranscript(entries []session.TranscriptEntry) string {
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "Question %d: %s\nAnswer: %s\n\n", i+1, e.Question, e.Response)
	}
	return b.String()
}

func emailBody(userName, transcript, analysis string) string {
	return fmt.Sprintf("Hello %s,\n\nHere is your interview transcript:\n\n%s\n\nFeedback:\n%s", userName, transcript, analysis)
}
