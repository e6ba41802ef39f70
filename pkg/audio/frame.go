package audio

// FrameBytes is 20ms of 16kHz mono 16-bit PCM — the unit the Frame VAD and
// Turn-Taking Engine operate on.
const FrameBytes = 640

// legacyMagic is the container-audio prefix a handful of older clients still
// send instead of raw PCM (spec.md §9's optional legacy batching path).
var legacyMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// IsLegacyContainer reports whether buf opens with the legacy container's
// magic prefix rather than raw PCM.
func IsLegacyContainer(buf []byte) bool {
	if len(buf) < len(legacyMagic) {
		return false
	}
	for i, b := range legacyMagic {
		if buf[i] != b {
			return false
		}
	}
	return true
}

// SliceFrames splits buf into FrameBytes-sized frames, returning any
// trailing remainder shorter than a full frame for the caller to carry
// forward into the next read.
func SliceFrames(buf []byte) (frames [][]byte, remainder []byte) {
	n := len(buf) / FrameBytes
	frames = make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		start := i * FrameBytes
		frames = append(frames, buf[start:start+FrameBytes])
	}
	remainder = buf[n*FrameBytes:]
	return frames, remainder
}
