package checkpoint

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridcast/gridcast/internal/quantile"
	"github.com/gridcast/gridcast/internal/rng"
	"github.com/gridcast/gridcast/internal/tensor"
)

func trained(t *testing.T) (*quantile.Model, Checkpoint) {
	t.Helper()
	m, err := quantile.New(quantile.Config{
		Alpha:        0.1,
		WindowLength: 6,
		ConvStack:    []quantile.ConvLayer{{Filters: 3, KernelSize: 3, Dropout: true}},
		HiddenUnits:  5,
	})
	require.NoError(t, err)
	params, err := m.Init(rng.New(3))
	require.NoError(t, err)
	return m, Checkpoint{
		Model:     m.Config(),
		Params:    params,
		RunID:     uuid.New(),
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Metadata:  map[string]string{"source": "synthetic"},
	}
}

func encode(t *testing.T, cp Checkpoint) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cp))
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	_, cp := trained(t)

	got, err := Read(bytes.NewReader(encode(t, cp)))
	require.NoError(t, err)

	assert.Equal(t, cp.Model, got.Model)
	assert.Equal(t, cp.RunID, got.RunID)
	assert.True(t, cp.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, cp.Metadata, got.Metadata)
	assert.Equal(t, cp.Params.Names(), got.Params.Names())
	for name, v := range cp.Params.All() {
		g := got.Params.Must(name)
		assert.Equal(t, v.Shape(), g.Shape(), name)
		assert.Equal(t, v.AsFloat32(), g.AsFloat32(), name)
	}
}

func TestRestore_PredictsIdentically(t *testing.T) {
	m, cp := trained(t)
	got, err := Read(bytes.NewReader(encode(t, cp)))
	require.NoError(t, err)

	restored, err := got.Restore()
	require.NoError(t, err)

	x, err := tensor.FromFloat32([]float32{1, 2, 3, 4, 5, 6, 6, 5, 4, 3, 2, 1}, tensor.Shape{2, 6})
	require.NoError(t, err)
	want, err := m.Predict(cp.Params, x, 2)
	require.NoError(t, err)
	pred, err := restored.Predict(got.Params, x, 2)
	require.NoError(t, err)
	assert.Equal(t, want.AsFloat32(), pred.AsFloat32())
}

func TestRestore_LayoutMismatch(t *testing.T) {
	_, cp := trained(t)
	cp.Model.HiddenUnits = 7
	_, err := cp.Restore()
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, Checkpoint{}))
}

func TestRead_Corruption(t *testing.T) {
	_, cp := trained(t)
	good := encode(t, cp)

	tests := []struct {
		name    string
		corrupt func([]byte) []byte
		wantErr error
	}{
		{"magic", func(b []byte) []byte { b[0] = 'X'; return b }, ErrInvalidMagic},
		{"version", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[4:8], 9); return b }, ErrUnsupportedVersion},
		{"header size", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[8:16], MaxHeaderSize+1)
			return b
		}, ErrHeaderTooLarge},
		{"payload bit flip", func(b []byte) []byte { b[len(b)-1] ^= 0x01; return b }, ErrChecksumMismatch},
		{"header bit flip", func(b []byte) []byte { b[FixedHeaderSize+2] ^= 0x20; return b }, ErrChecksumMismatch},
		{"truncated payload", func(b []byte) []byte { return b[:len(b)-4] }, ErrChecksumMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.corrupt(bytes.Clone(good))
			_, err := Read(bytes.NewReader(data))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("truncated fixed header", func(t *testing.T) {
		_, err := Read(bytes.NewReader(good[:10]))
		assert.Error(t, err)
	})
}

func TestSaveLoad(t *testing.T) {
	_, cp := trained(t)
	path := filepath.Join(t.TempDir(), "model.grdc")

	require.NoError(t, Save(path, cp))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cp.RunID, got.RunID)
	assert.Equal(t, cp.Params.NumElements(), got.Params.NumElements())

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp*"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = Load(filepath.Join(t.TempDir(), "missing.grdc"))
	assert.Error(t, err)
}

func TestValidateTensors(t *testing.T) {
	ok := TensorMeta{Name: "Dense_0/kernel", DType: DTypeFloat32, Shape: []int{2, 3}, Offset: 0, Size: 24}

	tests := []struct {
		name    string
		tensors []TensorMeta
		payload int64
		errType string
	}{
		{"valid", []TensorMeta{ok}, 24, ""},
		{"out of bounds", []TensorMeta{ok}, 20, "out_of_bounds"},
		{"negative", []TensorMeta{{Name: "a", DType: DTypeFloat32, Shape: []int{1}, Offset: -4, Size: 4}}, 24, "negative_offset"},
		{"dtype", []TensorMeta{{Name: "a", DType: "float64", Shape: []int{1}, Size: 8}}, 24, "unsupported_dtype"},
		{"size", []TensorMeta{{Name: "a", DType: DTypeFloat32, Shape: []int{2}, Size: 4}}, 24, "size_mismatch"},
		{"shape", []TensorMeta{{Name: "a", DType: DTypeFloat32, Shape: []int{0}, Size: 0}}, 24, "invalid_shape"},
		{"empty name", []TensorMeta{{DType: DTypeFloat32, Shape: []int{1}, Size: 4}}, 24, "invalid_name"},
		{"null byte", []TensorMeta{{Name: "a\x00", DType: DTypeFloat32, Shape: []int{1}, Size: 4}}, 24, "invalid_name"},
		{"overlap", []TensorMeta{ok, {Name: "b", DType: DTypeFloat32, Shape: []int{2}, Offset: 20, Size: 8}}, 32, "offset_overlap"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTensors(tt.tensors, tt.payload)
			if tt.errType == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.errType, verr.Type)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}
