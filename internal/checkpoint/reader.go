package checkpoint

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/gridcast/gridcast/internal/nn"
	"github.com/gridcast/gridcast/internal/tensor"
)

// Read decodes a checkpoint from r. The checksum is verified before the
// header is interpreted.
func Read(r io.Reader) (Checkpoint, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return Checkpoint{}, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return Checkpoint{}, fmt.Errorf("%w: got %q", ErrInvalidMagic, fixed[0:4])
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return Checkpoint{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	headerSize := binary.LittleEndian.Uint64(fixed[8:16])
	if headerSize > MaxHeaderSize {
		return Checkpoint{}, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}
	var stored [ChecksumSize]byte
	copy(stored[:], fixed[16:16+ChecksumSize])

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return Checkpoint{}, fmt.Errorf("failed to read header: %w", err)
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to read payload: %w", err)
	}
	if computeChecksum(headerJSON, payload) != stored {
		return Checkpoint{}, ErrChecksumMismatch
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Checkpoint{}, fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}
	if err := validateTensors(header.Tensors, int64(len(payload))); err != nil {
		return Checkpoint{}, err
	}

	entries := make([]nn.Param, 0, len(header.Tensors))
	for _, meta := range header.Tensors {
		raw := tensor.MustRaw(tensor.Shape(meta.Shape), tensor.CPU)
		buf := payload[meta.Offset : meta.Offset+meta.Size]
		data := raw.AsFloat32()
		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
		}
		entries = append(entries, nn.Param{Name: meta.Name, Value: raw})
	}
	params, err := nn.NewParams(entries...)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return Checkpoint{
		Model:     header.Model,
		Params:    params,
		RunID:     header.RunID,
		CreatedAt: header.CreatedAt,
		Metadata:  header.Metadata,
	}, nil
}

// Load reads a checkpoint file.
func Load(path string) (Checkpoint, error) {
	//nolint:gosec // G304: loading a user-chosen checkpoint is the point
	data, err := os.ReadFile(path)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	cp, err := Read(bytes.NewReader(data))
	if err != nil {
		return Checkpoint{}, fmt.Errorf("%s: %w", path, err)
	}
	return cp, nil
}
