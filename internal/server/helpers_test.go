package server

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/panorama/internal/capture"
	"github.com/MeKo-Tech/panorama/internal/homography"
	"github.com/MeKo-Tech/panorama/internal/stitch"
	"github.com/MeKo-Tech/panorama/internal/testutil"
)

var (
	rectA = image.Rect(0, 0, 200, 150)
	rectB = image.Rect(120, 20, 320, 170)
)

func testConfig() Config {
	return Config{
		Stitch: stitch.DefaultConfig(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func pointsDoc(t *testing.T, a, b []homography.Point) []byte {
	t.Helper()
	data, err := capture.Marshal(homography.Pair(a, b))
	require.NoError(t, err)
	return data
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// stitchForm builds a multipart body. Nil images are left out; points is
// sent as a text field.
func stitchForm(t *testing.T, a, b image.Image, points []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, img := range map[string]image.Image{"image_a": a, "image_b": b} {
		if img == nil {
			continue
		}
		fw, err := mw.CreateFormFile(name, name+".png")
		require.NoError(t, err)
		_, err = fw.Write(encodePNG(t, img))
		require.NoError(t, err)
	}
	if points != nil {
		require.NoError(t, mw.WriteField("points", string(points)))
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func postStitch(t *testing.T, url string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/stitch", contentType, body) //nolint:noctx // test request
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func fixture() testutil.PairFixture {
	return testutil.NewTranslatedPair(rectA, rectB)
}
