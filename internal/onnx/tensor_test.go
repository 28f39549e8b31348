package onnx

import (
	"reflect"
	"strings"
	"testing"
)

func TestNewTensor(t *testing.T) {
	t.Run("float32 ok", func(t *testing.T) {
		tt, err := NewTensor([]float32{1, 2, 3, 4}, []int64{2, 2})
		if err != nil {
			t.Fatalf("NewTensor failed: %v", err)
		}

		if tt.DType() != DTypeFloat32 {
			t.Fatalf("expected dtype float32, got %s", tt.DType())
		}

		if !reflect.DeepEqual(tt.Shape(), []int64{2, 2}) {
			t.Fatalf("unexpected shape: %v", tt.Shape())
		}

		got, err := ExtractFloat32(tt)
		if err != nil {
			t.Fatalf("ExtractFloat32 failed: %v", err)
		}

		if !reflect.DeepEqual(got, []float32{1, 2, 3, 4}) {
			t.Fatalf("unexpected data: %v", got)
		}
	})

	t.Run("int64 ids", func(t *testing.T) {
		tt, err := NewTensor([]int64{101, 7, 102}, []int64{1, 3})
		if err != nil {
			t.Fatalf("NewTensor failed: %v", err)
		}

		got, err := ExtractInt64(tt)
		if err != nil {
			t.Fatalf("ExtractInt64 failed: %v", err)
		}

		if !reflect.DeepEqual(got, []int64{101, 7, 102}) {
			t.Fatalf("unexpected data: %v", got)
		}
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := NewTensor([]int64{1, 2, 3}, []int64{2, 2})
		if err == nil {
			t.Fatal("expected shape mismatch error")
		}

		if !strings.Contains(err.Error(), "expects 4 elements, got 3") {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("negative dim", func(t *testing.T) {
		if _, err := NewTensor([]float32{}, []int64{-1}); err == nil {
			t.Fatal("expected negative dim error")
		}
	})

	t.Run("zero-length dim", func(t *testing.T) {
		tt, err := NewTensor([]float32{}, []int64{1, 0, 768})
		if err != nil {
			t.Fatalf("NewTensor failed: %v", err)
		}
		if !reflect.DeepEqual(tt.Shape(), []int64{1, 0, 768}) {
			t.Fatalf("unexpected shape: %v", tt.Shape())
		}
	})
}

func TestTensorDataIsCopied(t *testing.T) {
	src := []float32{1, 2}
	tt, err := NewTensor(src, []int64{2})
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}

	src[0] = 99
	data := tt.Data().([]float32)
	if data[0] != 1 {
		t.Fatalf("tensor aliases caller slice: %v", data)
	}

	data[1] = 42
	again, _ := ExtractFloat32(tt)
	if again[1] != 2 {
		t.Fatalf("Data() exposed internal storage: %v", again)
	}
}

func TestExtractWrongDType(t *testing.T) {
	ids, err := NewTensor([]int64{1}, []int64{1})
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}

	if _, err := ExtractFloat32(ids); err == nil {
		t.Fatal("expected dtype error for int64 tensor")
	}

	if _, err := ExtractInt64(nil); err == nil {
		t.Fatal("expected error for nil tensor")
	}
}
