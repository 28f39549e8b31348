// Package safetensors reads and writes the safetensors container used to hand
// phoneme-level features to downstream acoustic models.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

const (
	dtypeF32 = "F32"

	metadataKey = "__metadata__"
)

// Tensor holds a single float32 tensor.
type Tensor struct {
	Name  string
	Shape []int64
	Data  []float32
}

// Store is a decoded safetensors payload. Tensor data is decoded on access.
type Store struct {
	raw      []byte
	entries  map[string]storeEntry
	names    []string
	metadata map[string]string
}

type storeEntry struct {
	DType string
	Shape []int64
	Start int
	End   int
}

type storeHeaderEntry struct {
	DType   string  `json:"dtype"`
	Shape   []int64 `json:"shape"`
	Offsets [2]int  `json:"data_offsets"`
}

func OpenStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors: read %s: %w", path, err)
	}

	return OpenStoreFromBytes(data)
}

func OpenStoreFromBytes(data []byte) (*Store, error) {
	headerEnd, header, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}

	s := &Store{
		raw:     data,
		entries: make(map[string]storeEntry, len(header)),
	}

	for name, raw := range header {
		if name == metadataKey {
			if err := json.Unmarshal(raw, &s.metadata); err != nil {
				return nil, fmt.Errorf("safetensors: decode metadata: %w", err)
			}
			continue
		}

		var entry storeHeaderEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("safetensors: decode header entry %q: %w", name, err)
		}

		e, err := resolveEntry(name, entry, headerEnd, len(data))
		if err != nil {
			return nil, err
		}

		s.entries[name] = e
		s.names = append(s.names, name)
	}

	if len(s.entries) == 0 {
		return nil, errors.New("safetensors: no tensors found")
	}

	sort.Strings(s.names)

	return s, nil
}

func resolveEntry(name string, entry storeHeaderEntry, headerEnd, size int) (storeEntry, error) {
	dtype := strings.ToUpper(entry.DType)

	elemBytes, err := dtypeBytes(dtype)
	if err != nil {
		return storeEntry{}, fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	if entry.Offsets[0] < 0 || entry.Offsets[1] < entry.Offsets[0] {
		return storeEntry{}, fmt.Errorf("safetensors: tensor %q has invalid data offsets %v", name, entry.Offsets)
	}

	start := headerEnd + entry.Offsets[0]
	end := headerEnd + entry.Offsets[1]
	if end > size {
		return storeEntry{}, fmt.Errorf("safetensors: tensor %q data [%d:%d] exceeds file size %d", name, start, end, size)
	}

	elemCount, err := shapeElementCount(entry.Shape)
	if err != nil {
		return storeEntry{}, fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	if want := int(elemCount) * elemBytes; end-start != want {
		return storeEntry{}, fmt.Errorf("safetensors: tensor %q needs %d bytes but data has %d", name, want, end-start)
	}

	return storeEntry{
		DType: dtype,
		Shape: append([]int64(nil), entry.Shape...),
		Start: start,
		End:   end,
	}, nil
}

func (s *Store) Names() []string {
	return append([]string(nil), s.names...)
}

// Metadata returns the string map stored under __metadata__, or nil.
func (s *Store) Metadata() map[string]string {
	if s.metadata == nil {
		return nil
	}

	out := make(map[string]string, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}

	return out
}

func (s *Store) Tensor(name string) (*Tensor, error) {
	entry, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("safetensors: tensor %q not found (available: %s)", name, strings.Join(s.names, ", "))
	}

	data, err := decodeTensorData(s.raw[entry.Start:entry.End], entry.DType)
	if err != nil {
		return nil, fmt.Errorf("safetensors: tensor %q decode: %w", name, err)
	}

	return &Tensor{
		Name:  name,
		Shape: append([]int64(nil), entry.Shape...),
		Data:  data,
	}, nil
}

func decodeHeader(data []byte) (int, map[string]json.RawMessage, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("safetensors: file too short (%d bytes)", len(data))
	}

	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > uint64(len(data)-8) {
		return 0, nil, fmt.Errorf("safetensors: header length %d exceeds file size %d", headerLen, len(data))
	}

	headerEnd := 8 + int(headerLen)

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:headerEnd], &header); err != nil {
		return 0, nil, fmt.Errorf("safetensors: parse header: %w", err)
	}

	return headerEnd, header, nil
}

func shapeElementCount(shape []int64) (int64, error) {
	total := int64(1)

	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("negative dimension %d", d)
		}

		if d == 0 {
			return 0, nil
		}

		if total > math.MaxInt64/d {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}

		total *= d
	}

	return total, nil
}

func dtypeBytes(dtype string) (int, error) {
	if dtype != dtypeF32 {
		return 0, fmt.Errorf("unsupported dtype %q", dtype)
	}

	return 4, nil
}

func decodeTensorData(raw []byte, dtype string) ([]float32, error) {
	if dtype != dtypeF32 {
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}

	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	return out, nil
}
