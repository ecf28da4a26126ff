package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"stockmeta/internal/logging"
	"stockmeta/internal/queue"
	"stockmeta/internal/textutil"
)

const genericMediaType = "application/octet-stream"

// ErrTooLarge reports an upload above the configured ceiling.
var ErrTooLarge = errors.New("file exceeds upload limit")

// FromPaths builds candidates from files and directories on disk. Directories
// contribute their direct children in name order; nested directories are not
// descended. Paths that cannot be read are skipped with a warning.
func FromPaths(ctx context.Context, logger *slog.Logger, paths []string) ([]queue.Candidate, error) {
	if len(paths) == 0 {
		return nil, errors.New("intake: no paths provided")
	}
	logger = logging.NewComponentLogger(logger, "intake")

	candidates := make([]queue.Candidate, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			logging.WarnWithContext(logger, "skipping unreadable path", "intake_skipped",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the path exists and is readable"),
			)
			continue
		}
		if !info.IsDir() {
			if candidate, ok := fileCandidate(logger, path, info); ok {
				candidates = append(candidates, candidate)
			}
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			logging.WarnWithContext(logger, "skipping unreadable directory", "intake_skipped",
				logging.String("path", path),
				logging.Error(err),
			)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			child := filepath.Join(path, entry.Name())
			childInfo, err := entry.Info()
			if err != nil {
				logger.Debug("skipping directory entry", logging.String("path", child), logging.Error(err))
				continue
			}
			if candidate, ok := fileCandidate(logger, child, childInfo); ok {
				candidates = append(candidates, candidate)
			}
		}
	}
	return candidates, nil
}

func fileCandidate(logger *slog.Logger, path string, info os.FileInfo) (queue.Candidate, bool) {
	if !info.Mode().IsRegular() {
		logger.Debug("skipping non-regular file", logging.String("path", path))
		return queue.Candidate{}, false
	}
	mediaType, err := sniffFile(path)
	if err != nil {
		logging.WarnWithContext(logger, "skipping unreadable file", "intake_skipped",
			logging.String("path", path),
			logging.Error(err),
		)
		return queue.Candidate{}, false
	}
	return queue.Candidate{
		Name:      filepath.Base(path),
		MediaType: mediaType,
		Size:      info.Size(),
		Source:    queue.FileSource(path),
	}, true
}

func sniffFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	detected, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("detect media type: %w", err)
	}
	return resolveMediaType(detected, path), nil
}

// FromUpload buffers one multipart upload into memory and builds its
// candidate. A specific declared Content-Type is trusted; generic or missing
// types are sniffed from the content.
func FromUpload(header *multipart.FileHeader, maxBytes int64) (queue.Candidate, error) {
	if header == nil {
		return queue.Candidate{}, errors.New("intake: nil upload")
	}
	name := textutil.SanitizeFileName(header.Filename)
	if name == "" {
		return queue.Candidate{}, fmt.Errorf("intake: upload has no usable file name (%q)", header.Filename)
	}
	if maxBytes > 0 && header.Size > maxBytes {
		return queue.Candidate{}, fmt.Errorf("intake %s: %w", name, ErrTooLarge)
	}

	file, err := header.Open()
	if err != nil {
		return queue.Candidate{}, fmt.Errorf("intake %s: open upload: %w", name, err)
	}
	defer file.Close()

	var reader io.Reader = file
	if maxBytes > 0 {
		reader = io.LimitReader(file, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return queue.Candidate{}, fmt.Errorf("intake %s: read upload: %w", name, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return queue.Candidate{}, fmt.Errorf("intake %s: %w", name, ErrTooLarge)
	}

	mediaType := declaredMediaType(header.Header.Get("Content-Type"))
	if mediaType == "" {
		mediaType = resolveMediaType(mimetype.Detect(data), name)
	}
	return queue.Candidate{
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		Source:    queue.BytesSource(data),
	}, nil
}

func declaredMediaType(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(value)
	if err != nil || parsed == genericMediaType {
		return ""
	}
	return parsed
}

// resolveMediaType prefers the sniffed type and falls back to the extension
// when detection yields nothing specific.
func resolveMediaType(detected *mimetype.MIME, name string) string {
	if detected != nil && !detected.Is(genericMediaType) {
		if parsed, _, err := mime.ParseMediaType(detected.String()); err == nil {
			return parsed
		}
		return detected.String()
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		if parsed, _, err := mime.ParseMediaType(byExt); err == nil {
			return parsed
		}
	}
	return genericMediaType
}
