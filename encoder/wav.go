package encoder

import (
	"bytes"
	"encoding/binary"
)

// WAVHeaderSize is the byte length of the canonical PCM WAV header.
const WAVHeaderSize = 44

// WAVWriter renders PCM16 blocks into a RIFF/WAVE container. The header
// is patched with final sizes on Close.
type WAVWriter struct {
	buf         bytes.Buffer
	totalFrames uint64
	closed      bool
}

func NewWAV() *WAVWriter {
	w := &WAVWriter{}
	w.buf.Write(make([]byte, WAVHeaderSize)) // placeholder, patched on Close
	return w
}

func (w *WAVWriter) WriteBlock(block []int16) error {
	raw := make([]byte, len(block)*2)
	for i, s := range block {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	w.buf.Write(raw)
	w.totalFrames += uint64(len(block)) / Channels
	return nil
}

func (w *WAVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	data := w.buf.Bytes()
	dataLen := uint32(len(data) - WAVHeaderSize)
	byteRate := uint32(SampleRate * Channels * BitsPerSample / 8)
	blockAlign := uint16(Channels * BitsPerSample / 8)

	copy(data[0:4], "RIFF")
	binary.LittleEndian.PutUint32(data[4:8], 36+dataLen)
	copy(data[8:12], "WAVE")
	copy(data[12:16], "fmt ")
	binary.LittleEndian.PutUint32(data[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(data[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(data[22:24], Channels)
	binary.LittleEndian.PutUint32(data[24:28], SampleRate)
	binary.LittleEndian.PutUint32(data[28:32], byteRate)
	binary.LittleEndian.PutUint16(data[32:34], blockAlign)
	binary.LittleEndian.PutUint16(data[34:36], BitsPerSample)
	copy(data[36:40], "data")
	binary.LittleEndian.PutUint32(data[40:44], dataLen)
	return nil
}

func (w *WAVWriter) Bytes() []byte {
	return w.buf.Bytes()
}

func (w *WAVWriter) TotalFrames() uint64 {
	return w.totalFrames
}
