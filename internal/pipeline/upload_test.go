package pipeline

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"
)

func (s *PipelineSuite) TestUploadSendsMultipartAndReplaysOnRetry() {
	var seen []string
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		if !s.NoError(r.ParseMultipartForm(1 << 20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.Equal("fast cut", r.FormValue("description"))
		s.Equal("60", r.FormValue("targetLength"))

		file, header, err := r.FormFile("videoFile")
		if !s.NoError(err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		s.Equal("clip.mp4", header.Filename)
		s.Equal("video/mp4", header.Header.Get("Content-Type"))
		seen = append(seen, string(data))

		if len(seen) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":"plan"}`))
	}
	c := s.newClient()

	resp, err := c.Upload(s.ctx, "/ai/movie-clip", Form{
		Fields: []Field{
			{Name: "description", Value: "fast cut"},
			{Name: "targetLength", Value: "60"},
		},
		Files: []File{{Field: "videoFile", Name: "clip.mp4", ContentType: "video/mp4", Data: []byte("frames")}},
	})

	s.Require().NoError(err)
	s.Equal(2, resp.Attempts)
	s.Equal([]string{"frames", "frames"}, seen)
	s.Equal([]time.Duration{100 * time.Millisecond}, s.delays)
}

func (s *PipelineSuite) TestUploadRejectsOversizedBody() {
	c, err := New(Config{BaseURL: s.server.URL, MaxUploadBytes: 64}, WithLogger(discardLogger()))
	s.Require().NoError(err)

	_, err = c.Upload(s.ctx, "/ai/movie-clip", Form{
		Files: []File{{Field: "videoFile", Name: "big.mp4", Data: bytes.Repeat([]byte("x"), 128)}},
	})

	s.ErrorIs(err, ErrUploadTooLarge)
	s.Equal(int32(0), s.hits.Load())
}

func (s *PipelineSuite) TestReadFile() {
	s.Run("sniffs content type", func() {
		f, err := ReadFile("image", "pic.png", "", bytes.NewReader([]byte("\x89PNG\r\n\x1a\n0000")), 1024)
		s.Require().NoError(err)
		s.Equal("image/png", f.ContentType)
		s.Equal("pic.png", f.Name)
	})

	s.Run("enforces limit", func() {
		_, err := ReadFile("doc", "a.txt", "text/plain", strings.NewReader("0123456789"), 5)
		s.ErrorIs(err, ErrUploadTooLarge)
	})
}
