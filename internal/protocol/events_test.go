package protocol

import (
	"testing"
	"time"

	"github.com/Iron-Ham/reasonloop/internal/errors"
)

func TestDecode_GenerationChunk(t *testing.T) {
	data := []byte(`{"type":"generation_chunk","session_id":"s1","iteration":2,"content":"Hel","timestamp":"2025-11-03T10:15:30Z"}`)

	ev, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	chunk, ok := ev.(GenerationChunk)
	if !ok {
		t.Fatalf("expected GenerationChunk, got %T", ev)
	}
	if chunk.SessionID() != "s1" {
		t.Errorf("SessionID = %q, want s1", chunk.SessionID())
	}
	if chunk.Iteration() != 2 {
		t.Errorf("Iteration = %d, want 2", chunk.Iteration())
	}
	if chunk.Content != "Hel" {
		t.Errorf("Content = %q, want Hel", chunk.Content)
	}
	want := time.Date(2025, 11, 3, 10, 15, 30, 0, time.UTC)
	if !chunk.Timestamp().Equal(want) {
		t.Errorf("Timestamp = %v, want %v", chunk.Timestamp(), want)
	}
}

func TestDecode_CritiqueComplete(t *testing.T) {
	data := []byte(`{
		"type": "critique_complete",
		"session_id": "s1",
		"iteration": 0,
		"score": 7.5,
		"critique": {
			"strengths": ["clear"],
			"weaknesses": ["short"],
			"suggestions": ["expand"],
			"score": 7.5,
			"raw_critique": "SCORE: 7.5"
		}
	}`)

	ev, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	cc, ok := ev.(CritiqueComplete)
	if !ok {
		t.Fatalf("expected CritiqueComplete, got %T", ev)
	}
	if cc.Score != 7.5 {
		t.Errorf("Score = %v, want 7.5", cc.Score)
	}
	if cc.Critique == nil {
		t.Fatal("Critique should be populated")
	}
	if len(cc.Critique.Strengths) != 1 || cc.Critique.Strengths[0] != "clear" {
		t.Errorf("unexpected strengths: %v", cc.Critique.Strengths)
	}
	if cc.Critique.RawCritique != "SCORE: 7.5" {
		t.Errorf("RawCritique = %q", cc.Critique.RawCritique)
	}
}

func TestDecode_IterationCompleteScorePresence(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"iteration_complete","session_id":"s1","iteration":2,"content":"x","score":6.5}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	ic, ok := ev.(IterationComplete)
	if !ok {
		t.Fatalf("expected IterationComplete, got %T", ev)
	}
	if ic.Score == nil || *ic.Score != 6.5 {
		t.Errorf("Score = %v, want 6.5", ic.Score)
	}

	ev, err = Decode([]byte(`{"type":"iteration_complete","session_id":"s1","iteration":2,"content":"x"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ic = ev.(IterationComplete); ic.Score != nil {
		t.Errorf("absent score must decode to nil, got %v", *ic.Score)
	}
}

func TestDecode_SessionCompleteDefaultsScore(t *testing.T) {
	data := []byte(`{"type":"session_complete","session_id":"s1","iteration":3,"content":"final"}`)

	ev, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	sc, ok := ev.(SessionComplete)
	if !ok {
		t.Fatalf("expected SessionComplete, got %T", ev)
	}
	if sc.Score != 0 {
		t.Errorf("absent score should default to 0, got %v", sc.Score)
	}
	if !sc.Terminal() {
		t.Error("session_complete must be terminal")
	}
}

func TestDecode_TerminalClassification(t *testing.T) {
	tests := []struct {
		wire     string
		terminal bool
	}{
		{TypeSessionStarted, false},
		{TypeGenerationStart, false},
		{TypeGenerationChunk, false},
		{TypeGenerationComplete, false},
		{TypeCritiqueStart, false},
		{TypeCritiqueChunk, false},
		{TypeCritiqueComplete, false},
		{TypeIterationComplete, false},
		{TypeSessionComplete, true},
		{TypeSessionStopped, true},
		{TypeSessionPaused, false},
		{TypeSessionResumed, false},
		{TypeSessionError, true},
	}

	for _, tt := range tests {
		ev, err := Decode([]byte(`{"type":"` + tt.wire + `","session_id":"s1"}`))
		if err != nil {
			t.Fatalf("Decode(%s) failed: %v", tt.wire, err)
		}
		if ev.Terminal() != tt.terminal {
			t.Errorf("%s: Terminal() = %v, want %v", tt.wire, ev.Terminal(), tt.terminal)
		}
		if ev.EventType() != tt.wire {
			t.Errorf("%s: EventType() = %q", tt.wire, ev.EventType())
		}
	}
}

func TestDecode_UnknownType(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"session_telemetry","session_id":"s1","iteration":1}`))
	if err != nil {
		t.Fatalf("unknown types must decode, got error: %v", err)
	}

	u, ok := ev.(Unknown)
	if !ok {
		t.Fatalf("expected Unknown, got %T", ev)
	}
	if u.WireType != "session_telemetry" {
		t.Errorf("WireType = %q", u.WireType)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `garbage`},
		{"truncated", `{"type":"generation_chunk"`},
		{"empty type", `{"session_id":"s1"}`},
		{"json array", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			if err == nil {
				t.Fatal("expected decode error")
			}
			if !errors.Is(err, errors.ErrMalformedEvent) {
				t.Errorf("error should wrap ErrMalformedEvent, got %v", err)
			}
		})
	}
}

func TestDecode_CouncilIteration(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"generation_chunk","session_id":"s1","iteration":-1,"content":"council says"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ev.Iteration() != CouncilIteration {
		t.Errorf("Iteration = %d, want %d", ev.Iteration(), CouncilIteration)
	}
}

func TestDecode_PythonTimestamp(t *testing.T) {
	// datetime.utcnow().isoformat() has no zone suffix.
	ev, err := Decode([]byte(`{"type":"session_started","session_id":"s1","timestamp":"2025-11-03T10:15:30.123456"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if ev.Timestamp().IsZero() {
		t.Error("zone-less ISO timestamp should parse")
	}
}
