package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lexiqai/voicebot/internal/audio"
	"github.com/lexiqai/voicebot/internal/completion"
	"github.com/lexiqai/voicebot/internal/pipeline"
	"github.com/lexiqai/voicebot/internal/stt"
	"github.com/lexiqai/voicebot/internal/tts"
)

// heard is one scripted turn: what the transcriber returns for it.
type heard struct {
	text string
	err  error
}

// scriptedInput plays both the microphone and the transcriber.
type scriptedInput struct {
	turns  []heard
	next   int
	listen int
}

func (s *scriptedInput) Listen(ctx context.Context) (*audio.Utterance, error) {
	if s.listen >= len(s.turns) {
		return nil, errors.New("script exhausted")
	}
	s.listen++
	return &audio.Utterance{PCM: []byte{0, 0}, SampleRate: 16000}, nil
}

func (s *scriptedInput) Transcribe(ctx context.Context, utt *audio.Utterance) (string, error) {
	h := s.turns[s.next]
	s.next++
	return h.text, h.err
}

type fakeProcessor struct {
	calls []string
	err   error
}

func (p *fakeProcessor) Process(ctx context.Context, utterance string) (*pipeline.Reply, error) {
	p.calls = append(p.calls, utterance)
	if p.err != nil {
		return nil, p.err
	}
	text := "Reply to " + utterance
	return &pipeline.Reply{
		Text:   text,
		Status: completion.StatusOK,
		Audio:  tts.FakeAudio(text),
	}, nil
}

type fakeSpeaker struct {
	spoken []string
	err    error
}

func (s *fakeSpeaker) Speak(ctx context.Context, text string, data []byte) error {
	s.spoken = append(s.spoken, text)
	return s.err
}

func run(t *testing.T, turns []heard, proc *fakeProcessor, spk *fakeSpeaker) string {
	t.Helper()
	in := &scriptedInput{turns: turns}
	var out bytes.Buffer
	if err := New(in, in, proc, spk, &out).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v\noutput:\n%s", err, out.String())
	}
	return out.String()
}

func TestRun_ExitInAnyCase(t *testing.T) {
	for _, phrase := range []string{"exit", "EXIT", "Exit", "  eXiT  "} {
		t.Run(phrase, func(t *testing.T) {
			proc := &fakeProcessor{}
			out := run(t, []heard{{text: phrase}}, proc, &fakeSpeaker{})

			if len(proc.calls) != 0 {
				t.Errorf("Expected no completion for exit, got %v", proc.calls)
			}
			if !strings.HasSuffix(out, farewellMessage+"\n") {
				t.Errorf("Expected farewell last, got:\n%s", out)
			}
			if !strings.HasPrefix(out, readyMessage) {
				t.Errorf("Expected ready banner first, got:\n%s", out)
			}
		})
	}
}

func TestRun_UnintelligibleDoesNotComplete(t *testing.T) {
	proc := &fakeProcessor{}
	spk := &fakeSpeaker{}
	out := run(t, []heard{
		{err: stt.ErrUnintelligible},
		{text: ""},
		{err: errors.New("deepgram unavailable")},
		{text: "exit"},
	}, proc, spk)

	if len(proc.calls) != 0 {
		t.Errorf("Expected no completion calls, got %v", proc.calls)
	}
	if len(spk.spoken) != 0 {
		t.Errorf("Expected nothing spoken, got %v", spk.spoken)
	}
	if strings.Count(out, "Could not understand audio") != 2 {
		t.Errorf("Expected two unintelligible notices, got:\n%s", out)
	}
	if !strings.Contains(out, "Could not request results; deepgram unavailable") {
		t.Errorf("Expected service error notice, got:\n%s", out)
	}
}

func TestRun_AnswersAndSpeaks(t *testing.T) {
	proc := &fakeProcessor{}
	spk := &fakeSpeaker{}
	out := run(t, []heard{{text: "What is your superpower?"}, {text: "exit"}}, proc, spk)

	if len(proc.calls) != 1 || proc.calls[0] != "What is your superpower?" {
		t.Errorf("Unexpected completion calls %v", proc.calls)
	}
	if len(spk.spoken) != 1 || spk.spoken[0] != "Reply to What is your superpower?" {
		t.Errorf("Unexpected speech %v", spk.spoken)
	}
	for _, want := range []string{"You said: What is your superpower?", "AI Response: Reply to What is your superpower?"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestRun_SynthesisFailureContinues(t *testing.T) {
	proc := &fakeProcessor{err: fmt.Errorf("%w: engine down", pipeline.ErrSynthesis)}
	spk := &fakeSpeaker{}
	out := run(t, []heard{{text: "hello"}, {text: "again"}, {text: "exit"}}, proc, spk)

	if len(proc.calls) != 2 {
		t.Errorf("Expected loop to keep going after synthesis failures, got %v", proc.calls)
	}
	if len(spk.spoken) != 0 {
		t.Errorf("Expected nothing spoken, got %v", spk.spoken)
	}
	if !strings.Contains(out, "engine down") {
		t.Errorf("Expected failure reported, got:\n%s", out)
	}
}

func TestRun_PlaybackFailureContinues(t *testing.T) {
	proc := &fakeProcessor{}
	spk := &fakeSpeaker{err: errors.New("no player")}
	out := run(t, []heard{{text: "hello"}, {text: "exit"}}, proc, spk)

	if !strings.Contains(out, "Could not play audio; no player") {
		t.Errorf("Expected playback failure reported, got:\n%s", out)
	}
	if !strings.HasSuffix(out, farewellMessage+"\n") {
		t.Errorf("Expected loop to reach exit, got:\n%s", out)
	}
}

func TestRun_MicrophoneFailureStops(t *testing.T) {
	in := &scriptedInput{}
	var out bytes.Buffer
	err := New(in, in, &fakeProcessor{}, &fakeSpeaker{}, &out).Run(context.Background())
	if err == nil {
		t.Fatal("Expected error when the microphone fails")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := &scriptedInput{turns: []heard{{text: "hello"}}}
	proc := &fakeProcessor{}
	var out bytes.Buffer
	if err := New(in, in, proc, &fakeSpeaker{}, &out).Run(ctx); err != nil {
		t.Errorf("Expected clean stop, got %v", err)
	}
	if len(proc.calls) != 0 {
		t.Errorf("Expected no turns after cancel, got %v", proc.calls)
	}
}

func TestIsExit(t *testing.T) {
	cases := map[string]bool{
		"exit":        true,
		" Exit\n":     true,
		"exit now":    false,
		"":            false,
		"please exit": false,
	}
	for in, want := range cases {
		if got := IsExit(in); got != want {
			t.Errorf("IsExit(%q) = %v, want %v", in, got, want)
		}
	}
}
