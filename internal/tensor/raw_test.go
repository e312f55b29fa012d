package tensor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRawZeroFilled(t *testing.T) {
	raw, err := NewRaw(Shape{2, 3}, CPU)
	require.NoError(t, err)

	assert.Equal(t, 6, raw.NumElements())
	assert.Equal(t, 24, raw.ByteSize())
	assert.Equal(t, []int{3, 1}, raw.Strides())
	for _, v := range raw.AsFloat32() {
		assert.Zero(t, v)
	}
}

func TestNewRawInvalidShape(t *testing.T) {
	_, err := NewRaw(Shape{2, 0}, CPU)
	assert.Error(t, err)
}

func TestFromFloat32CopiesData(t *testing.T) {
	src := []float32{1, 2, 3, 4}
	raw, err := FromFloat32(src, Shape{2, 2})
	require.NoError(t, err)

	src[0] = 99
	assert.Equal(t, float32(1), raw.AsFloat32()[0])
}

func TestFromFloat32ElementCountMismatch(t *testing.T) {
	_, err := FromFloat32([]float32{1, 2, 3}, Shape{2, 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestCloneIsDeep(t *testing.T) {
	raw, err := FromFloat32([]float32{1, 2}, Shape{2})
	require.NoError(t, err)

	clone := raw.Clone()
	clone.AsFloat32()[0] = 5
	assert.Equal(t, float32(1), raw.AsFloat32()[0])
	assert.True(t, clone.Shape().Equal(raw.Shape()))
}

func TestWithShapeSharesBuffer(t *testing.T) {
	raw, err := FromFloat32([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)

	view := raw.WithShape(Shape{3, 2})
	assert.Equal(t, Shape{3, 2}, view.Shape())
	assert.Equal(t, []int{2, 1}, view.Strides())
	assert.Equal(t, raw.AsFloat32(), view.AsFloat32())

	assert.Panics(t, func() { raw.WithShape(Shape{4}) })
}

func TestScalarItem(t *testing.T) {
	s := Scalar(2.5)
	assert.Equal(t, float32(2.5), s.Item())
	assert.Equal(t, 0, len(s.Shape()))

	raw, err := NewRaw(Shape{2}, CPU)
	require.NoError(t, err)
	err = Guard(func() { raw.Item() })
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestAllFinite(t *testing.T) {
	tests := []struct {
		name string
		data []float32
		want bool
	}{
		{"finite", []float32{0, -1, 3.5}, true},
		{"nan", []float32{0, float32(math.NaN())}, false},
		{"pos inf", []float32{float32(math.Inf(1))}, false},
		{"neg inf", []float32{1, float32(math.Inf(-1))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := FromFloat32(tt.data, Shape{len(tt.data)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, raw.AllFinite())
		})
	}
}
