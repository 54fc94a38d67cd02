package convo

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
)

var discard = log.New(io.Discard, "", 0)

// fakeEmitter records every message sent to the client.
type fakeEmitter struct {
	mu       sync.Mutex
	messages []any
}

func (f *fakeEmitter) Emit(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, v)
	return nil
}

func (f *fakeEmitter) all() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.messages...)
}

// audioSentences extracts the sentence tags of all audio messages, in order.
func (f *fakeEmitter) audioSentences() []string {
	var out []string
	for _, m := range f.all() {
		if am, ok := m.(audioMessage); ok {
			out = append(out, am.Sentence)
		}
	}
	return out
}

func (f *fakeEmitter) sentFinished() bool {
	for _, m := range f.all() {
		if mm, ok := m.(map[string]any); ok {
			if done, ok := mm["ai_finished_speaking"].(bool); ok && done {
				return true
			}
		}
	}
	return false
}

// fakeSynth produces deterministic audio bytes and supports failure injection
// and a per-sentence hook.
type fakeSynth struct {
	mu           sync.Mutex
	calls        []string
	failOn       string
	onSynthesize func(text string)
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.onSynthesize != nil {
		f.onSynthesize(text)
	}
	if f.failOn != "" && text == f.failOn {
		return nil, errors.New("synthesis unavailable")
	}
	return []byte("audio:" + text), nil
}

func (f *fakeSynth) ContentType() string { return "audio/mp3" }

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

const threeSentences = "First sentence. Second sentence. Third sentence."

func TestPlay_StreamsAllSentencesInOrder(t *testing.T) {
	state := NewTurnState()
	state.StartSpeaking()
	emitter := &fakeEmitter{}
	synth := &fakeSynth{}
	player := NewResponsePlayer(state, synth, emitter, discard)

	player.Play(context.Background(), threeSentences)

	msgs := emitter.all()
	if len(msgs) == 0 {
		t.Fatal("no messages emitted")
	}

	// Full transcript goes out before any audio.
	first, ok := msgs[0].(map[string]any)
	if !ok || first["transcript"] != threeSentences {
		t.Errorf("first message = %#v, want transcript", msgs[0])
	}

	want := []string{"First sentence.", "Second sentence.", "Third sentence."}
	got := emitter.audioSentences()
	if len(got) != len(want) {
		t.Fatalf("audio messages = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("audio[%d].Sentence = %q, want %q", i, got[i], want[i])
		}
	}

	if !emitter.sentFinished() {
		t.Error("finished signal not emitted after uninterrupted response")
	}
	if state.IsSpeaking() {
		t.Error("speaking state should be cleared after a full response")
	}
}

func TestPlay_InterruptedAfterFirstSentence(t *testing.T) {
	state := NewTurnState()
	state.StartSpeaking()
	emitter := &fakeEmitter{}
	synth := &fakeSynth{}
	// Interruption lands after the first sentence's audio is already out,
	// while the second sentence is being synthesized.
	synth.onSynthesize = func(text string) {
		if text == "Second sentence." {
			state.ResetSpeaking()
		}
	}
	player := NewResponsePlayer(state, synth, emitter, discard)

	player.Play(context.Background(), threeSentences)

	got := emitter.audioSentences()
	if len(got) != 1 || got[0] != "First sentence." {
		t.Errorf("audio sentences = %#v, want only the first", got)
	}
	if synth.callCount() != 2 {
		t.Errorf("synthesize calls = %d, want 2 (third sentence never starts)", synth.callCount())
	}
	if emitter.sentFinished() {
		t.Error("finished signal must not be emitted after an interruption")
	}
	if state.IsSpeaking() {
		t.Error("player must not restore speaking state it does not own")
	}
}

func TestPlay_InterruptedBeforeAnySentence(t *testing.T) {
	state := NewTurnState() // never speaking
	emitter := &fakeEmitter{}
	synth := &fakeSynth{}
	player := NewResponsePlayer(state, synth, emitter, discard)

	player.Play(context.Background(), threeSentences)

	if synth.callCount() != 0 {
		t.Errorf("synthesize calls = %d, want 0", synth.callCount())
	}
	if len(emitter.audioSentences()) != 0 {
		t.Error("no audio should be sent when the assistant lost the floor")
	}
	if emitter.sentFinished() {
		t.Error("finished signal must not be emitted")
	}
}

func TestPlay_SynthesisFailureSkipsSentence(t *testing.T) {
	state := NewTurnState()
	state.StartSpeaking()
	emitter := &fakeEmitter{}
	synth := &fakeSynth{failOn: "Second sentence."}
	player := NewResponsePlayer(state, synth, emitter, discard)

	player.Play(context.Background(), threeSentences)

	want := []string{"First sentence.", "Third sentence."}
	got := emitter.audioSentences()
	if len(got) != len(want) {
		t.Fatalf("audio sentences = %#v, want %#v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("audio[%d].Sentence = %q, want %q", i, got[i], want[i])
		}
	}

	// One bad sentence does not abort the response.
	if !emitter.sentFinished() {
		t.Error("finished signal should still be emitted")
	}
}

func TestPlay_TagsAudioWithContentType(t *testing.T) {
	state := NewTurnState()
	state.StartSpeaking()
	emitter := &fakeEmitter{}
	player := NewResponsePlayer(state, &fakeSynth{}, emitter, discard)

	player.Play(context.Background(), "Only one.")

	for _, m := range emitter.all() {
		if am, ok := m.(audioMessage); ok {
			if am.ContentType != "audio/mp3" {
				t.Errorf("ContentType = %q, want %q", am.ContentType, "audio/mp3")
			}
			if am.Audio == "" {
				t.Error("audio payload is empty")
			}
			return
		}
	}
	t.Fatal("no audio message emitted")
}
