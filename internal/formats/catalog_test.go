package formats

import (
	"testing"
)

func TestCategoryOf(t *testing.T) {
	c := Default()

	tests := []struct {
		name string
		ext  string
		want Category
	}{
		{"JPEG image", "jpg", CategoryImage},
		{"Upper case with dot", ".PNG", CategoryImage},
		{"SVG image", "svg", CategoryImage},
		{"MP3 audio", "mp3", CategoryAudio},
		{"MP4 video", "mp4", CategoryVideo},
		{"PDF document", "pdf", CategoryDocument},
		{"Text document", "txt", CategoryDocument},
		{"Zip archive", "zip", CategoryArchive},
		{"Tarball", "tar.gz", CategoryArchive},
		{"tgz alias", "tgz", CategoryArchive},
		{"Unknown extension", "xyz", CategoryUnknown},
		{"Empty extension", "", CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.CategoryOf(tt.ext); got != tt.want {
				t.Errorf("CategoryOf(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestCanConvert(t *testing.T) {
	c := Default()

	tests := []struct {
		src, dst string
		want     bool
	}{
		{"png", "jpg", true},
		{"jpg", "ico", true},
		{"png", "svg", true},
		{"svg", "png", false},
		{"mp3", "wav", true},
		{"mp3", "mp4", true},
		{"mp4", "mp3", false},
		{"mov", "webm", true},
		{"pdf", "txt", true},
		{"txt", "pdf", true},
		{"pdf", "png", true},
		{"txt", "jpg", true},
		{"pdf", "svg", false},
		{"zip", "tar.gz", true},
		{"tgz", "zip", true},
		{"7z", "zip", true},
		{"7z", "tar.gz", false},
		{"zip", "7z", false},
		{"png", "mp3", false},
		{"png", "xyz", false},
		{"xyz", "xyz", false},
		{"pdf", "pdf", true},
		{"7z", "7z", true},
	}

	for _, tt := range tests {
		t.Run(tt.src+"->"+tt.dst, func(t *testing.T) {
			if got := c.CanConvert(tt.src, tt.dst); got != tt.want {
				t.Errorf("CanConvert(%q, %q) = %v, want %v", tt.src, tt.dst, got, tt.want)
			}
		})
	}
}

func TestExtOf(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/tmp/photo.JPG", "jpg"},
		{"backup.tar.gz", "tar.gz"},
		{"dir.v2/archive.TGZ", "tar.gz"},
		{"noext", ""},
		{"report.final.pdf", "pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ExtOf(tt.path); got != tt.want {
				t.Errorf("ExtOf(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestMimeType(t *testing.T) {
	c := Default()
	if got := c.MimeType("png"); got != "image/png" {
		t.Errorf("MimeType(png) = %q", got)
	}
	if got := c.MimeType("nope"); got != "application/octet-stream" {
		t.Errorf("MimeType(nope) = %q", got)
	}
}

func TestExtensionsSorted(t *testing.T) {
	exts := Default().Extensions(CategoryDocument)
	if len(exts) != 2 || exts[0] != "pdf" || exts[1] != "txt" {
		t.Errorf("Extensions(document) = %v, want [pdf txt]", exts)
	}
}

func TestConvertiblePairsExcludeIdentity(t *testing.T) {
	for _, p := range Default().ConvertiblePairs() {
		if p.Src == p.Dst {
			t.Errorf("identity pair %v listed", p)
		}
	}
}
