package orchestrator

import "testing"

func silence(n int) []byte { return make([]byte, n) }

func loud(n int) []byte {
	buf := make([]byte, n)
	for i := 0; i < len(buf); i += 2 {
		buf[i] = 0xFF
		buf[i+1] = 0x7F
	}
	return buf
}

func TestFrameVADProbabilityIsQuantized(t *testing.T) {
	vad := NewFrameVAD(nil)
	allowed := map[float64]bool{0.0: true, 0.3: true, 0.5: true, 1.0: true}

	cases := [][]byte{
		silence(FrameBytes),
		loud(FrameBytes),
		silence(0),
		silence(FrameBytes / 2),
		loud(FrameBytes * 3),
	}
	for _, pcm := range cases {
		p := vad.Probability(pcm)
		if !allowed[p] {
			t.Errorf("Probability(%d bytes) = %v, want one of {0.0, 0.3, 0.5, 1.0}", len(pcm), p)
		}
	}
}

func TestFrameVADEmptyBufferIsSilence(t *testing.T) {
	vad := NewFrameVAD(nil)
	if got := vad.Probability(nil); got != 0.0 {
		t.Errorf("Probability(nil) = %v, want 0.0", got)
	}
}

func TestFrameVADLoudBufferIsSpeech(t *testing.T) {
	vad := NewFrameVAD(nil)
	if got := vad.Probability(loud(FrameBytes)); got != 1.0 {
		t.Errorf("Probability(loud) = %v, want 1.0", got)
	}
}

func TestClassifyThresholds(t *testing.T) {
	if classify(0.6) != voiceSpeech {
		t.Error("0.6 should classify as speech")
	}
	if classify(0.59) != voiceUncertain {
		t.Error("0.59 should classify as uncertain")
	}
	if classify(0.05) != voiceUncertain {
		t.Error("0.05 should classify as uncertain")
	}
	if classify(0.04) != voiceSilence {
		t.Error("0.04 should classify as silence")
	}
}

type fakeClassifier struct{}

func (f *fakeClassifier) IsSpeech(subframe []byte) bool {
	return false
}

func TestFrameVADDelegatesToClassifier(t *testing.T) {
	vad := NewFrameVAD(&fakeClassifier{})
	// An all-false classifier over full frames should report silence,
	// never falling back to the energy path for a full-size buffer.
	if got := vad.Probability(loud(FrameBytes)); got != 0.0 {
		t.Errorf("Probability with all-silent classifier = %v, want 0.0", got)
	}
}
