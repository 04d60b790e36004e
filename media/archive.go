package media

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"mockvox/encoder"
	"mockvox/log"
)

// Archive keeps FLAC copies of submitted answers on disk. Optional; a
// nil *Archive is a no-op.
type Archive struct {
	dir string
}

func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating archive dir: %w", err)
	}
	return &Archive{dir: dir}, nil
}

// Save compresses the clip's PCM to FLAC and writes it under a unique
// name. Errors are logged, not fatal: archiving never blocks the
// interview.
func (a *Archive) Save(clip *Clip) string {
	if a == nil || clip == nil || len(clip.PCM) == 0 {
		return ""
	}

	w, err := encoder.NewFlac()
	if err != nil {
		log.Warnf("archive: flac writer: %v", err)
		return ""
	}
	pcm := clip.PCM
	block := make([]int16, encoder.BlockSize)
	for len(pcm) > 0 {
		n := min(len(pcm)/2, encoder.BlockSize)
		if n == 0 {
			break
		}
		for i := 0; i < n; i++ {
			block[i] = int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		}
		if err := w.WriteBlock(block[:n]); err != nil {
			log.Warnf("archive: encoding: %v", err)
			return ""
		}
		pcm = pcm[2*n:]
	}
	if err := w.Close(); err != nil {
		log.Warnf("archive: finalizing: %v", err)
		return ""
	}

	path := filepath.Join(a.dir, uuid.NewString()+".flac")
	if err := os.WriteFile(path, w.Bytes(), 0644); err != nil {
		log.Warnf("archive: writing %s: %v", path, err)
		return ""
	}
	return path
}
