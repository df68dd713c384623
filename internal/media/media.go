// Package media extracts image and audio references from an inbound event:
// platform file attachments plus image URLs discovered in free text.
// Grounded directly on
// original_source/server/event_handlers.py's _extract_image_urls and
// _extract_audio_files.
package media

import (
	"mime"
	"net/http"
	"regexp"
	"strings"

	"github.com/livia-chatops/livia/internal/model"
)

var (
	directExtension = regexp.MustCompile(`(?i)https?://[^\s<>]+\.(?:jpg|jpeg|png|gif|webp|bmp|tiff)(?:\?[^\s<>]*)?`)
	knownImageHost  = regexp.MustCompile(`(?i)https?://[^\s<>]*(?:imgur|flickr|instagram|twitter|facebook|ichef\.bbci)[^\s<>]*`)
	domainExtension = regexp.MustCompile(`(?i)https?://[^\s<>]*\.(?:com|org|net|co\.uk)/[^\s<>]*\.(?:jpg|jpeg|png|gif|webp)`)
	bbcSpecific     = regexp.MustCompile(`(?i)https?://ichef\.bbci\.co\.uk/[^\s<>]*`)
	trailingPunct   = regexp.MustCompile(`[.,;!?]+$`)
)

// ExtractImageURLs finds every image URL in text, via any of the pattern
// families the original matches, deduped and with trailing punctuation
// stripped.
func ExtractImageURLs(text string) []string {
	var found []string
	seen := make(map[string]struct{})

	add := func(matches []string) {
		for _, m := range matches {
			clean := trailingPunct.ReplaceAllString(m, "")
			if _, ok := seen[clean]; ok {
				continue
			}
			seen[clean] = struct{}{}
			found = append(found, clean)
		}
	}

	add(directExtension.FindAllString(text, -1))
	add(knownImageHost.FindAllString(text, -1))
	add(domainExtension.FindAllString(text, -1))
	add(bbcSpecific.FindAllString(text, -1))

	return found
}

// audioExtensions is spec.md's superset of the original's literal
// .mp3/.wav/.m4a/.ogg/.flac list, additionally covering mp4/mpeg/mpga/webm.
var audioExtensions = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".mp4", ".mpeg", ".mpga", ".webm"}

// IsAudioAttachment reports whether a platform file attachment is eligible
// for transcription, by MIME prefix or filename extension, gated by the
// 25 MiB cap.
func IsAudioAttachment(mimeType, filename string, sizeBytes, maxBytes int64) bool {
	if sizeBytes > maxBytes {
		return false
	}
	if strings.HasPrefix(mimeType, "audio/") {
		return true
	}
	lower := strings.ToLower(filename)
	for _, ext := range audioExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ExtractAttachments partitions a platform event's raw file attachments into
// image and audio refs, applying the MIME/extension/size rules above. Image
// attachments (MIME-prefix "image/") bypass the URL-regex path entirely,
// mirroring the original's file-attachment branch in _extract_image_urls.
func ExtractAttachments(files []PlatformFile, audioMaxBytes int64) (images []model.ImageRef, audio []model.AudioRef) {
	for _, f := range files {
		switch {
		case strings.HasPrefix(f.MimeType, "image/"):
			url := f.URL
			if url == "" {
				url = f.Permalink
			}
			images = append(images, model.ImageRef{URL: url, MimeType: f.MimeType})
		case IsAudioAttachment(f.MimeType, f.Filename, f.SizeBytes, audioMaxBytes):
			audio = append(audio, model.AudioRef{
				URL: f.URL, Filename: f.Filename, MimeType: f.MimeType, SizeByte: f.SizeBytes,
			})
		}
	}
	return images, audio
}

// PlatformFile is the minimal shape of a chat-platform file attachment the
// Media Adapters need; the chat-platform boundary translates its native
// attachment shape into this one.
type PlatformFile struct {
	MimeType  string
	Filename  string
	URL       string
	Permalink string
	SizeBytes int64
}

// DetectMimeAndExt sniffs a MIME type from the first bytes of a file,
// for chat-platform boundaries (or a local-attachment CLI path) that hand
// the Media Adapters raw bytes without a declared content type. Grounded
// on the teacher's pkg/utils/mime.go DetectMimeAndExt, minus its disk-read
// variant (every caller here already holds the bytes in memory).
func DetectMimeAndExt(data []byte) (mimeType, ext string) {
	mimeType = "application/octet-stream"
	if len(data) > 0 {
		mimeType = http.DetectContentType(data)
	}
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return mimeType, ".bin"
	}
	return mimeType, exts[0]
}
