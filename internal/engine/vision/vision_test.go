package vision

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/crimson-sun/kartavya/internal/model"
)

func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	os.WriteFile(path, []byte("tench\ngoldfish\n\nstreet sign\n\n"), 0644)

	labels, err := loadLabels(path)
	if err != nil {
		t.Fatalf("loadLabels() error: %v", err)
	}
	want := []string{"tench", "goldfish", "", "street sign"}
	if len(labels) != len(want) {
		t.Fatalf("got %d labels, want %d: %q", len(labels), len(want), labels)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("labels[%d] = %q, want %q", i, labels[i], want[i])
		}
	}
}

func TestLoadLabelsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	os.WriteFile(path, []byte("\n\n"), 0644)
	if _, err := loadLabels(path); err == nil {
		t.Fatal("expected error for empty labels file")
	}
}

func TestLoadLabelsMissing(t *testing.T) {
	if _, err := loadLabels("/nonexistent/labels.txt"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDecodeImage(t *testing.T) {
	img, err := decodeImage(encodePNG(t, 4, 3, color.White))
	if err != nil {
		t.Fatalf("decodeImage() error: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Errorf("bounds = %v, want 4x3", img.Bounds())
	}

	if _, err := decodeImage(nil); err == nil {
		t.Error("expected error for empty data")
	}
	if _, err := decodeImage([]byte("not an image")); err == nil {
		t.Error("expected error for garbage data")
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring w×h pixels.
// It carries no image data, so only DecodeConfig can succeed on it.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := make([]byte, 4+13)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], w)
	binary.BigEndian.PutUint32(chunk[8:], h)
	chunk[12] = 8 // bit depth
	chunk[13] = 2 // truecolor
	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecodeImageRejectsHugeDimensions(t *testing.T) {
	_, err := decodeImage(pngHeader(10000, 10000))
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("err = %v, want ErrImageTooLarge", err)
	}
}

func TestDecodeImageAtPixelCapPassesHeaderCheck(t *testing.T) {
	// 8000×5000 is exactly MaxPixels: the header check passes and the
	// failure comes from the missing image data instead.
	_, err := decodeImage(pngHeader(8000, 5000))
	if err == nil || errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("err = %v, want a decode error other than ErrImageTooLarge", err)
	}
}

func TestToTensorUniformColor(t *testing.T) {
	img, err := decodeImage(encodePNG(t, 10, 7, color.RGBA{R: 255, G: 0, B: 128, A: 255}))
	if err != nil {
		t.Fatalf("decodeImage() error: %v", err)
	}

	const size = 8
	out := toTensor(img, size)
	if len(out) != 3*size*size {
		t.Fatalf("tensor len = %d, want %d", len(out), 3*size*size)
	}

	want := [3]float32{
		(1 - imagenetMean[0]) / imagenetStd[0],
		(0 - imagenetMean[1]) / imagenetStd[1],
		(float32(128*257)/0xffff - imagenetMean[2]) / imagenetStd[2],
	}
	for c := 0; c < 3; c++ {
		for i := 0; i < size*size; i++ {
			got := out[c*size*size+i]
			if math.Abs(float64(got-want[c])) > 1e-4 {
				t.Fatalf("channel %d pixel %d = %v, want %v", c, i, got, want[c])
			}
		}
	}
}

func TestToTensorUpscaleSinglePixel(t *testing.T) {
	img, _ := decodeImage(encodePNG(t, 1, 1, color.Black))
	out := toTensor(img, 4)
	want := (0 - imagenetMean[0]) / imagenetStd[0]
	if math.Abs(float64(out[0]-want)) > 1e-5 {
		t.Errorf("out[0] = %v, want %v", out[0], want)
	}
}

func TestSoftmax(t *testing.T) {
	probs := softmax([]float32{1, 2, 3})
	var sum float64
	for _, p := range probs {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("sum = %v, want 1", sum)
	}
	if !(probs[2] > probs[1] && probs[1] > probs[0]) {
		t.Errorf("softmax not monotonic: %v", probs)
	}

	// Large logits must not overflow.
	probs = softmax([]float32{1000, 1000})
	if math.Abs(probs[0]-0.5) > 1e-9 {
		t.Errorf("probs = %v, want [0.5 0.5]", probs)
	}

	if len(softmax(nil)) != 0 {
		t.Error("expected empty result for empty input")
	}
}

func TestTopK(t *testing.T) {
	probs := []float64{0.1, 0.5, 0.05, 0.3, 0.05}
	labels := []string{"a", "b", "c", "d", "e"}

	got := topK(probs, labels, 3)
	want := []model.Prediction{{Label: "b", Probability: 0.5}, {Label: "d", Probability: 0.3}, {Label: "a", Probability: 0.1}}
	if len(got) != len(want) {
		t.Fatalf("got %d predictions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	// Ties keep class order.
	got = topK(probs, labels, 5)
	if got[3].Label != "c" || got[4].Label != "e" {
		t.Errorf("tie order = %q,%q, want c,e", got[3].Label, got[4].Label)
	}

	if n := len(topK(probs, labels, 10)); n != 5 {
		t.Errorf("k larger than classes returned %d, want 5", n)
	}
}

func TestStatic(t *testing.T) {
	s := &Static{Predictions: []model.Prediction{{Label: "pothole", Probability: 0.9}}}
	got, err := s.Predict(context.Background(), nil)
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	got[0].Label = "mutated"
	again, _ := s.Predict(context.Background(), nil)
	if again[0].Label != "pothole" {
		t.Error("Static returned its internal slice")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Predict(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	boom := errors.New("boom")
	if _, err := (&Static{Err: boom}).Predict(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("expected configured error, got %v", err)
	}
}

func TestUnavailable(t *testing.T) {
	loadErr := errors.New("no such file")
	_, err := Unavailable{Err: loadErr}.Predict(context.Background(), nil)
	if !errors.Is(err, ErrNoModel) || !errors.Is(err, loadErr) {
		t.Errorf("expected ErrNoModel wrapping load error, got %v", err)
	}
	if _, err := (Unavailable{}).Predict(context.Background(), nil); !errors.Is(err, ErrNoModel) {
		t.Errorf("expected ErrNoModel, got %v", err)
	}
}
