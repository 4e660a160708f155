package output

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zlib"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/renderer"
)

// ErrInvalidCheckpoint is returned for data that is not a readable checkpoint
var ErrInvalidCheckpoint = errors.New("invalid checkpoint")

var checkpointMagic = [4]byte{'S', 'P', 'C', 'K'}

const (
	checkpointVersion = 2

	// maxSceneNameLength bounds the scene name stored after the header
	maxSceneNameLength = 1024

	// maxCheckpointPixels bounds allocation when reading corrupt headers
	maxCheckpointPixels = 1 << 26
)

// checkpointHeader is stored uncompressed so files can be identified cheaply.
// It is followed by NameLength bytes of scene name.
type checkpointHeader struct {
	Magic      [4]byte
	Version    uint16
	Width      uint32
	Height     uint32
	Pass       uint32
	Seed       int64
	MaxSamples uint32
	MaxPasses  uint32
	MaxDepth   uint32
	NameLength uint16
}

// pixelRecord is the on-disk form of renderer.PixelStats
type pixelRecord struct {
	R, G, B          float64
	LuminanceAccum   float64
	LuminanceSqAccum float64
	SampleCount      uint32
}

// WriteCheckpoint writes a header followed by zlib-compressed pixel records
func WriteCheckpoint(w io.Writer, cp *renderer.Checkpoint) error {
	if cp.Width <= 0 || cp.Height <= 0 || len(cp.Pixels) != cp.Width*cp.Height {
		return fmt.Errorf("%w: %dx%d with %d pixels", ErrInvalidCheckpoint, cp.Width, cp.Height, len(cp.Pixels))
	}
	if len(cp.SceneName) > maxSceneNameLength {
		return fmt.Errorf("%w: scene name of %d bytes", ErrInvalidCheckpoint, len(cp.SceneName))
	}

	header := checkpointHeader{
		Magic:      checkpointMagic,
		Version:    checkpointVersion,
		Width:      uint32(cp.Width),
		Height:     uint32(cp.Height),
		Pass:       uint32(cp.Pass),
		Seed:       cp.Seed,
		MaxSamples: uint32(cp.MaxSamplesPerPixel),
		MaxPasses:  uint32(cp.MaxPasses),
		MaxDepth:   uint32(cp.MaxDepth),
		NameLength: uint16(len(cp.SceneName)),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to write checkpoint header: %w", err)
	}
	if _, err := io.WriteString(w, cp.SceneName); err != nil {
		return fmt.Errorf("failed to write checkpoint header: %w", err)
	}

	zw, err := zlib.NewWriterLevel(w, zlib.BestSpeed)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint compressor: %w", err)
	}
	bw := bufio.NewWriter(zw)

	for _, ps := range cp.Pixels {
		record := pixelRecord{
			R:                ps.ColorAccum.X,
			G:                ps.ColorAccum.Y,
			B:                ps.ColorAccum.Z,
			LuminanceAccum:   ps.LuminanceAccum,
			LuminanceSqAccum: ps.LuminanceSqAccum,
			SampleCount:      uint32(ps.SampleCount),
		}
		if err := binary.Write(bw, binary.LittleEndian, record); err != nil {
			return fmt.Errorf("failed to write checkpoint pixels: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write checkpoint pixels: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish checkpoint: %w", err)
	}
	return nil
}

// ReadCheckpoint reads a checkpoint written by WriteCheckpoint
func ReadCheckpoint(r io.Reader) (*renderer.Checkpoint, error) {
	var header checkpointHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidCheckpoint, err)
	}
	if header.Magic != checkpointMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidCheckpoint, header.Magic[:])
	}
	if header.Version != checkpointVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidCheckpoint, header.Version)
	}
	pixelCount := uint64(header.Width) * uint64(header.Height)
	if pixelCount == 0 || pixelCount > maxCheckpointPixels {
		return nil, fmt.Errorf("%w: image size %dx%d", ErrInvalidCheckpoint, header.Width, header.Height)
	}
	if header.NameLength > maxSceneNameLength {
		return nil, fmt.Errorf("%w: scene name of %d bytes", ErrInvalidCheckpoint, header.NameLength)
	}
	name := make([]byte, header.NameLength)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, fmt.Errorf("%w: scene name: %v", ErrInvalidCheckpoint, err)
	}

	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheckpoint, err)
	}
	defer zr.Close()
	br := bufio.NewReader(zr)

	cp := &renderer.Checkpoint{
		SceneName:          string(name),
		Seed:               header.Seed,
		MaxSamplesPerPixel: int(header.MaxSamples),
		MaxPasses:          int(header.MaxPasses),
		MaxDepth:           int(header.MaxDepth),
		Width:              int(header.Width),
		Height:             int(header.Height),
		Pass:               int(header.Pass),
		Pixels:             make([]renderer.PixelStats, pixelCount),
	}
	for i := range cp.Pixels {
		var record pixelRecord
		if err := binary.Read(br, binary.LittleEndian, &record); err != nil {
			return nil, fmt.Errorf("%w: pixel %d: %v", ErrInvalidCheckpoint, i, err)
		}
		cp.Pixels[i] = renderer.PixelStats{
			ColorAccum:       core.NewVec3(record.R, record.G, record.B),
			LuminanceAccum:   record.LuminanceAccum,
			LuminanceSqAccum: record.LuminanceSqAccum,
			SampleCount:      int(record.SampleCount),
		}
	}

	// Reading past the records verifies the stream checksum
	if _, err := br.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: corrupt or oversized pixel stream", ErrInvalidCheckpoint)
	}

	return cp, nil
}

// SaveCheckpoint writes the checkpoint to path, replacing any previous file only once
// the new one is complete
func SaveCheckpoint(path string, cp *renderer.Checkpoint) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	bw := bufio.NewWriter(tmp)
	if err := WriteCheckpoint(bw, cp); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace checkpoint %s: %w", path, err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint file
func LoadCheckpoint(path string) (*renderer.Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer file.Close()

	cp, err := ReadCheckpoint(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cp, nil
}
