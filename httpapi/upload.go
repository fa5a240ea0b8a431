package httpapi

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"
)

const uploadMaxBytes = 32 << 20

// upload accepts one multipart file, stores it under the uploads dir and
// returns its URL. The caller then sends the URL as message content with
// kind audio or image; the bytes themselves never enter the message store.
func (s *Server) upload(w http.ResponseWriter, r *http.Request, uid string) {
	r.Body = http.MaxBytesReader(w, r.Body, uploadMaxBytes)
	if err := r.ParseMultipartForm(uploadMaxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	name := fmt.Sprintf("file-%d-%d%s",
		time.Now().UnixMilli(), rand.Int31(), filepath.Ext(header.Filename))

	dst, err := os.Create(filepath.Join(s.uploadsDir, name))
	if err != nil {
		glog.Errorf("upload(): uid: %s, create error: %v", uid, err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		glog.Errorf("upload(): uid: %s, write error: %v", uid, err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url": fmt.Sprintf("%s://%s/uploads/%s", scheme, r.Host, name),
	})
}
