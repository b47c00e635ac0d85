package streamingest

import (
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

// withTransportHint appends an RTSP TCP-transport hint to url if the
// caller didn't already specify one, per §6: "for RTSP the ingestor
// appends a TCP-transport hint to the URL if the caller did not specify
// one." OpenCV's FFmpeg backend reads this as a query-style
// rtsp_transport override.
func withTransportHint(url string, kind SourceKind) string {
	if kind != SourceRTSP {
		return url
	}
	if strings.Contains(url, "rtsp_transport") {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%srtsp_transport=tcp", url, sep)
}

// openCapture opens url (with the RTSP transport hint applied) via gocv's
// VideoCapture, which defers to OpenCV's FFmpeg backend for both rtsp:// and
// rtmp:// URLs just as it does for a plain file path. A small internal
// buffer size is requested to reduce end-to-end latency, matching §4.6's
// "small internal buffer to reduce latency" note.
func openCapture(url string, kind SourceKind) (*gocv.VideoCapture, error) {
	cap, err := gocv.VideoCaptureFile(withTransportHint(url, kind))
	if err != nil {
		return nil, fmt.Errorf("open stream %s: %w", url, err)
	}
	cap.Set(gocv.VideoCaptureBufferSize, 1)
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("open stream %s: capture did not open", url)
	}
	return cap, nil
}
