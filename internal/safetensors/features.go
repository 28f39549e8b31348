package safetensors

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FeatureTensorName names the [width, phones] feature tensor.
const FeatureTensorName = "bert_features"

const (
	metaFormat  = "format"
	metaText    = "text"
	metaPhones  = "phones"
	metaWord2Ph = "word2ph"
	metaLayer   = "layer"

	featureFormat = "kreyoltts-bert-features"
)

// Features is a phoneme-aligned feature matrix with the alignment it was
// built from. Data is row-major [Width][len(Phones)].
type Features struct {
	Text    string
	Phones  []string
	Word2Ph []int
	Layer   int
	Width   int
	Data    []float32
}

func (f Features) validate() error {
	total := 0
	for _, n := range f.Word2Ph {
		total += n
	}

	if total != len(f.Phones) {
		return fmt.Errorf("safetensors: sum(word2ph)=%d but %d phones", total, len(f.Phones))
	}

	if f.Width < 1 {
		return fmt.Errorf("safetensors: feature width must be positive, got %d", f.Width)
	}

	if len(f.Data) != f.Width*len(f.Phones) {
		return fmt.Errorf("safetensors: features hold %d values, want %d", len(f.Data), f.Width*len(f.Phones))
	}

	return nil
}

// WriteFeatures stores f as a single tensor plus alignment metadata.
func WriteFeatures(path string, f Features) error {
	if err := f.validate(); err != nil {
		return err
	}

	phones, err := json.Marshal(f.Phones)
	if err != nil {
		return fmt.Errorf("safetensors: encode phones: %w", err)
	}

	word2ph, err := json.Marshal(f.Word2Ph)
	if err != nil {
		return fmt.Errorf("safetensors: encode word2ph: %w", err)
	}

	return WriteFile(path, []Tensor{{
		Name:  FeatureTensorName,
		Shape: []int64{int64(f.Width), int64(len(f.Phones))},
		Data:  f.Data,
	}}, map[string]string{
		metaFormat:  featureFormat,
		metaText:    f.Text,
		metaPhones:  string(phones),
		metaWord2Ph: string(word2ph),
		metaLayer:   strconv.Itoa(f.Layer),
	})
}

// ReadFeatures loads a file written by WriteFeatures.
func ReadFeatures(path string) (Features, error) {
	store, err := OpenStore(path)
	if err != nil {
		return Features{}, err
	}

	t, err := store.Tensor(FeatureTensorName)
	if err != nil {
		return Features{}, err
	}

	if len(t.Shape) != 2 {
		return Features{}, fmt.Errorf("safetensors: %s has shape %v, want [width phones]", FeatureTensorName, t.Shape)
	}

	meta := store.Metadata()
	if meta[metaFormat] != featureFormat {
		return Features{}, fmt.Errorf("safetensors: %s is not a feature file (format %q)", path, meta[metaFormat])
	}

	f := Features{
		Text:  meta[metaText],
		Width: int(t.Shape[0]),
		Data:  t.Data,
	}

	if err := json.Unmarshal([]byte(meta[metaPhones]), &f.Phones); err != nil {
		return Features{}, fmt.Errorf("safetensors: decode phones: %w", err)
	}

	if err := json.Unmarshal([]byte(meta[metaWord2Ph]), &f.Word2Ph); err != nil {
		return Features{}, fmt.Errorf("safetensors: decode word2ph: %w", err)
	}

	if f.Layer, err = strconv.Atoi(meta[metaLayer]); err != nil {
		return Features{}, fmt.Errorf("safetensors: decode layer: %w", err)
	}

	if int(t.Shape[1]) != len(f.Phones) {
		return Features{}, fmt.Errorf("safetensors: tensor has %d columns for %d phones", t.Shape[1], len(f.Phones))
	}

	return f, nil
}
