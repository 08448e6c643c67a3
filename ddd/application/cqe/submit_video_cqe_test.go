package cqe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepfake-service/pkg/errno"
)

var allowed = []string{"mp4", "avi", "mov", "mkv", "wmv", "flv"}

func TestValidateAcceptsAllowedExtensionsCaseInsensitive(t *testing.T) {
	for _, name := range []string{"a.mp4", "B.AVI", "c.Mov", "d.mkv", "e.wmv", "f.FLV"} {
		req := &SubmitVideoCqe{Filename: name, Size: 10, Content: strings.NewReader("x")}
		assert.NoError(t, req.Validate(100, allowed), name)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name string
		req  SubmitVideoCqe
		want *errno.Errno
	}{
		{"no content", SubmitVideoCqe{Filename: "a.mp4"}, errno.ErrNoFileProvided},
		{"empty filename", SubmitVideoCqe{Filename: " ", Content: strings.NewReader("x")}, errno.ErrNoFileSelected},
		{"text file", SubmitVideoCqe{Filename: "notes.txt", Content: strings.NewReader("x")}, errno.ErrUnsupportedFormat},
		{"no extension", SubmitVideoCqe{Filename: "video", Content: strings.NewReader("x")}, errno.ErrUnsupportedFormat},
		{"too large", SubmitVideoCqe{Filename: "a.mp4", Size: 101, Content: strings.NewReader("x")}, errno.ErrPayloadTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(100, allowed)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPayloadTooLargeMessageIsHumanized(t *testing.T) {
	req := &SubmitVideoCqe{Filename: "a.mp4", Size: 200 * 1024 * 1024, Content: strings.NewReader("x")}
	err := req.Validate(100*1024*1024, allowed)
	_, msg := errno.Decode(err)
	assert.Equal(t, "File too large. Maximum size is 100 MiB", msg)
}

func TestUnknownSizeIsNotRejected(t *testing.T) {
	req := &SubmitVideoCqe{Filename: "a.mp4", Size: -1, Content: strings.NewReader("x")}
	assert.NoError(t, req.Validate(100, allowed))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "clip.mp4", SanitizeFilename("clip.mp4"))
	assert.Equal(t, "passwd.mp4", SanitizeFilename("../../etc/passwd.mp4"))
	assert.Equal(t, "my_holiday_video.mov", SanitizeFilename("my holiday video.mov"))
	assert.Equal(t, "evil.avi", SanitizeFilename(`C:\Users\x\evil.avi`))
	assert.Equal(t, "video", SanitizeFilename("..."))
	assert.Equal(t, "mp4", Extension("A.MP4"))
}
