package photo

import (
	"errors"
	"strings"
	"testing"
)

var (
	jpegData = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	pngData  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	gifData  = []byte("GIF89a\x01\x00\x01\x00")
	webpData = []byte("RIFF\x24\x00\x00\x00WEBPVP8 ")
	svgData  = []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)
)

// padded returns an image header followed by zeros up to n bytes.
func padded(header []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, header)
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		data        []byte
		max         int64
		wantType    string
		want        error
	}{
		{"jpeg", "image/jpeg", jpegData, 0, "image/jpeg", nil},
		{"png with params", "image/png; charset=binary", pngData, 0, "image/png", nil},
		{"gif", "image/gif", gifData, 0, "image/gif", nil},
		{"webp", "image/webp", webpData, 0, "image/webp", nil},
		{"undeclared sniffed", "", pngData, 0, "image/png", nil},
		{"octet-stream sniffed", "application/octet-stream", jpegData, 0, "image/jpeg", nil},
		{"at limit", "image/jpeg", padded(jpegData, DefaultMaxSize), 0, "image/jpeg", nil},
		{"over default", "image/jpeg", padded(jpegData, DefaultMaxSize+1), 0, "", ErrTooLarge},
		{"over custom", "image/jpeg", padded(jpegData, 101), 100, "", ErrTooLarge},
		{"pdf", "application/pdf", []byte("%PDF-1.4"), 0, "", ErrNotImage},
		{"svg declared", "image/svg+xml", svgData, 0, "", ErrNotImage},
		{"svg undeclared", "", svgData, 0, "", ErrNotImage},
		{"declared type disagrees", "image/png", jpegData, 0, "", ErrNotImage},
		{"text claiming jpeg", "image/jpeg", []byte("hello"), 0, "", ErrNotImage},
		{"garbage type", ";;", jpegData, 0, "", ErrNotImage},
		{"empty", "image/jpeg", nil, 0, "", ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.contentType, tt.data, tt.max)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.wantType {
					t.Fatalf("type = %q, want %q", got, tt.wantType)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewName(t *testing.T) {
	a := NewName("image/jpeg")
	b := NewName("image/jpeg")
	if a == b {
		t.Fatal("expected unique names")
	}
	if !strings.HasSuffix(a, ".jpg") {
		t.Errorf("expected .jpg suffix, got %q", a)
	}
	if !strings.HasSuffix(NewName("image/x-unknown"), ".img") {
		t.Error("expected .img for unknown image types")
	}
	if err := CheckName(a); err != nil {
		t.Errorf("generated name rejected: %v", err)
	}
}

func TestCheckName(t *testing.T) {
	for _, bad := range []string{"", ".", "..", "../x.jpg", "a/b.jpg", `a\b.jpg`, ".hidden"} {
		if err := CheckName(bad); err == nil {
			t.Errorf("CheckName(%q) should fail", bad)
		}
	}
	if err := CheckName("abc.png"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
