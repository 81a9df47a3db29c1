package pagepost

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const fallbackMIMEType = "application/octet-stream"

// UploadName is the filename transmitted for the asset: the provided file
// name, else the last URI segment, else a generated photo-<millis>.jpg.
func (a ImageAsset) UploadName(now time.Time) string {
	if a.FileName != "" {
		return a.FileName
	}
	if i := strings.LastIndex(a.URI, "/"); i >= 0 {
		if seg := a.URI[i+1:]; seg != "" {
			return seg
		}
	} else if a.URI != "" {
		return a.URI
	}
	return fmt.Sprintf("photo-%d.jpg", now.UnixMilli())
}

// ContentType is the provided MIME type, else one inferred from the URI
// extension.
func (a ImageAsset) ContentType() string {
	if a.MIMEType != "" {
		return a.MIMEType
	}
	ext := a.URI
	if i := strings.LastIndex(ext, "."); i >= 0 {
		ext = ext[i+1:]
	}
	switch strings.ToLower(ext) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	}
	return fallbackMIMEType
}

// LocalPath resolves the URI to a filesystem path. file:// URIs are
// unwrapped, anything else is taken as a path.
func (a ImageAsset) LocalPath() (string, error) {
	if !strings.HasPrefix(a.URI, "file://") {
		return a.URI, nil
	}
	u, err := url.Parse(a.URI)
	if err != nil {
		return "", fmt.Errorf("parse image uri: %w", err)
	}
	return u.Path, nil
}
