package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	maxImageSize     = 10 << 20 // 10 MB
	maxImageRedirect = 5
)

// imageTypes maps the accepted MIME types to their canonical extension.
var imageTypes = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// fetchClient refuses redirects into blocked hosts.
var fetchClient = &http.Client{
	Timeout: 30 * time.Second,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxImageRedirect {
			return fmt.Errorf("too many redirects (max %d)", maxImageRedirect)
		}
		return checkBlockedHost(req.URL.Hostname())
	},
}

// remoteImage is image content with the extension its source declared.
type remoteImage struct {
	data []byte
	ext  string
}

type attachResult struct {
	ID            string `json:"id"`
	Path          string `json:"path"`
	MarkdownImage string `json:"markdownImage"`
}

func (s *Server) attachImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, err := req.RequireString("note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	img, err := loadImage(ctx, rawURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := imageName(req.GetString("filename", ""), rawURL, img.ext)
	if err := img.check(strings.ToLower(filepath.Ext(name))); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := s.svc.UploadImage(ctx, s.owner(), noteID, name, img.data)
	if err != nil {
		return toolError(err), nil
	}

	out, _ := json.Marshal(attachResult{
		ID:            rec.ID,
		Path:          rec.URL,
		MarkdownImage: fmt.Sprintf("![%s](/api/images/%s)", name, rec.ID),
	})
	return mcp.NewToolResultText(string(out)), nil
}

// loadImage reads a data: URI or downloads an http(s) URL.
func loadImage(ctx context.Context, raw string) (*remoteImage, error) {
	if rest, ok := strings.CutPrefix(raw, "data:"); ok {
		return decodeDataURI(rest)
	}
	return download(ctx, raw)
}

// decodeDataURI parses the part of a data URI after "data:". Only base64
// payloads of an accepted image type are supported.
func decodeDataURI(rest string) (*remoteImage, error) {
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errors.New("invalid data URI: missing comma separator")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, errors.New("only base64 data URIs are supported")
	}
	mediaType, _, _ = strings.Cut(mediaType, ";")
	ext, ok := imageTypes[mediaType]
	if !ok {
		return nil, fmt.Errorf("unsupported MIME type in data URI: %s", mediaType)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return &remoteImage{data: data, ext: ext}, nil
}

func download(ctx context.Context, raw string) (*remoteImage, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s (only http/https)", u.Scheme)
	}
	if err := checkBlockedHost(u.Hostname()); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := fetchClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	mediaType, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	return &remoteImage{data: data, ext: imageTypes[strings.TrimSpace(mediaType)]}, nil
}

// checkBlockedHost rejects loopback, link-local and cloud metadata hosts.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil //nolint:nilerr // the HTTP client reports DNS failures
		}
		ip = ips[0]
	}

	switch {
	case ip.IsLoopback(), ip.IsUnspecified():
		return fmt.Errorf("blocked host: loopback address %s", host)
	case ip.IsLinkLocalUnicast():
		// Covers 169.254.169.254, the AWS/GCP/Azure metadata endpoint.
		return fmt.Errorf("blocked host: link-local address %s", host)
	}
	return nil
}

// imageName picks the stored file name: the explicit name, else the last
// URL path segment, else a random name with the detected extension.
func imageName(explicit, raw, ext string) string {
	name := explicit
	if name == "" && !strings.HasPrefix(raw, "data:") {
		if u, err := url.Parse(raw); err == nil {
			if base := path.Base(u.Path); strings.Contains(base, ".") {
				name = base
			}
		}
	}
	if name == "" {
		if ext == "" {
			ext = ".bin"
		}
		name = uuid.NewString() + ext
	}

	name = unsafeFilename.ReplaceAllString(filepath.Base(name), "_")
	if name == "" || name == "." {
		name = uuid.NewString()
	}
	return name
}

// check enforces the size limit and that the content matches ext.
func (img *remoteImage) check(ext string) error {
	if len(img.data) > maxImageSize {
		return fmt.Errorf("file too large: %d bytes (max %d)", len(img.data), maxImageSize)
	}
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if !slices.Contains(slices.Collect(maps.Values(imageTypes)), ext) {
		return fmt.Errorf("unsupported file extension: %s (allowed: png, jpg, jpeg, gif, webp, svg)", ext)
	}

	if ext == ".svg" {
		head := img.data[:min(len(img.data), 1024)]
		if !bytes.Contains(head, []byte("<svg")) {
			return errors.New("content does not appear to be a valid SVG (missing <svg tag)")
		}
		return nil
	}

	detected := http.DetectContentType(img.data)
	mediaType, _, _ := strings.Cut(detected, ";")
	if imageTypes[mediaType] != ext {
		return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
	}
	return nil
}
