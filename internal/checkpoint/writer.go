package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/gridcast/gridcast/internal/nn"
	"github.com/gridcast/gridcast/internal/quantile"
)

// Checkpoint is a trained model: its configuration, parameters and the
// run that produced them.
type Checkpoint struct {
	Model     quantile.Config
	Params    nn.Params
	RunID     uuid.UUID
	CreatedAt time.Time
	Metadata  map[string]string
}

// Restore builds the model described by the checkpoint and checks that
// the stored parameters fit it.
func (c Checkpoint) Restore(opts ...quantile.Option) (*quantile.Model, error) {
	m, err := quantile.New(c.Model, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.CheckParams(c.Params); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	return m, nil
}

// Write encodes cp to w. A zero CreatedAt is stamped with the current time.
func Write(w io.Writer, cp Checkpoint) error {
	if cp.Params.Len() == 0 {
		return fmt.Errorf("checkpoint: no parameters to write")
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	header := Header{
		FormatVersion: FormatVersion,
		Model:         cp.Model,
		RunID:         cp.RunID,
		CreatedAt:     cp.CreatedAt,
		Tensors:       make([]TensorMeta, 0, cp.Params.Len()),
		Metadata:      cp.Metadata,
	}

	payload := make([]byte, 0, 4*cp.Params.NumElements())
	for name, v := range cp.Params.All() {
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat32,
			Shape:  []int(v.Shape().Clone()),
			Offset: int64(len(payload)),
			Size:   int64(v.ByteSize()),
		})
		for _, f := range v.AsFloat32() {
			payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(f))
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, len(headerJSON))
	}

	// 0x00-0x03: magic, 0x04-0x07: version, 0x08-0x0F: header size,
	// 0x10-0x2F: checksum
	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(fixed[8:16], uint64(len(headerJSON)))
	sum := computeChecksum(headerJSON, payload)
	copy(fixed[16:16+ChecksumSize], sum[:])

	for _, part := range [][]byte{fixed, headerJSON, payload} {
		if _, err := w.Write(part); err != nil {
			return fmt.Errorf("failed to write checkpoint: %w", err)
		}
	}
	return nil
}

// Save writes cp to path. The file is written next to its destination
// and renamed into place, so readers never observe a partial checkpoint.
func Save(path string, cp Checkpoint) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = Write(tmp, cp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move checkpoint into place: %w", err)
	}
	return nil
}
