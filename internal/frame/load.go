package frame

import (
	"fmt"

	"gocv.io/x/gocv"
)

// LoadFile decodes path (JPEG, PNG, BMP, TIFF, WebP — §6's supported
// still-frame formats, all handled by the computer-vision collaborator's
// image codecs) into a Frame. The caller owns the returned Frame and must
// Close it.
func LoadFile(path string) (Frame, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		return Frame{}, fmt.Errorf("decode image %s: empty or unreadable", path)
	}
	return New(mat, "", path), nil
}

// LoadBytes decodes an in-memory image buffer (an upload, or bytes fetched
// from a URL by the caller) into a Frame.
func LoadBytes(data []byte) (Frame, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return Frame{}, fmt.Errorf("decode image bytes: %w", err)
	}
	if mat.Empty() {
		return Frame{}, fmt.Errorf("decode image bytes: empty or unreadable")
	}
	return New(mat, "", ""), nil
}
