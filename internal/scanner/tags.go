package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"

	"github.com/sydlexius/trackmend/internal/track"
)

// leadingTrackNumber matches "01 ", "1. ", "01 - ", "1-02 " and similar
// prefixes on file names.
var leadingTrackNumber = regexp.MustCompile(`^\d+(?:[-.]\d+)?\s*[-._)]?\s+`)

// tags holds the metadata read from a file's embedded tags.
type tags struct {
	Artist  string
	Title   string
	Album   string
	ISRC    string
	Bitrate int
}

func (t tags) complete() bool {
	return t.Artist != "" && t.Title != ""
}

// ReadRecord builds a library record for the audio file at path. Embedded
// tags are preferred; missing artist, album, or title fall back to the
// Artist/Album/NN Title.ext layout relative to root. The second return value
// reports whether the path fallback was used.
func ReadRecord(root, path string) (*track.Record, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, fmt.Errorf("stat %s: %w", path, err)
	}
	ext := strings.ToLower(filepath.Ext(path))

	var t tags
	switch ext {
	case ".mp3":
		t, err = readID3(path)
	case ".flac":
		t, err = readFLAC(path, info.Size())
	}

	fallback := err != nil || !t.complete()
	if fallback {
		p := FromPath(root, path)
		t.Artist = firstNonEmpty(t.Artist, p.Artist)
		t.Title = firstNonEmpty(t.Title, p.Title)
		t.Album = firstNonEmpty(t.Album, p.Album)
	}

	return &track.Record{
		Artist:      t.Artist,
		Title:       t.Title,
		Album:       t.Album,
		Format:      strings.TrimPrefix(ext, "."),
		FileSize:    info.Size(),
		BitrateKbps: t.Bitrate,
		ISRC:        t.ISRC,
		FilePath:    path,
	}, fallback, nil
}

func readID3(path string) (tags, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return tags{}, fmt.Errorf("reading id3 tag: %w", err)
	}
	defer tag.Close() //nolint:errcheck

	t := tags{
		Artist: strings.TrimSpace(tag.Artist()),
		Title:  strings.TrimSpace(tag.Title()),
		Album:  strings.TrimSpace(tag.Album()),
		ISRC:   strings.TrimSpace(tag.GetTextFrame("TSRC").Text),
	}
	return t, nil
}

func readFLAC(path string, size int64) (tags, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the library walk
	if err != nil {
		return tags{}, err
	}
	defer f.Close() //nolint:errcheck

	file, err := flac.ParseMetadata(f)
	if err != nil {
		return tags{}, fmt.Errorf("parsing flac metadata: %w", err)
	}

	var t tags
	for _, meta := range file.Meta {
		if meta.Type != flac.VorbisComment {
			continue
		}
		cmts, err := flacvorbis.ParseFromMetaDataBlock(*meta)
		if err != nil {
			return tags{}, fmt.Errorf("parsing vorbis comment: %w", err)
		}
		t.Artist = vorbisField(cmts, flacvorbis.FIELD_ARTIST)
		t.Title = vorbisField(cmts, flacvorbis.FIELD_TITLE)
		t.Album = vorbisField(cmts, flacvorbis.FIELD_ALBUM)
		t.ISRC = vorbisField(cmts, "ISRC")
		break
	}

	if info, err := file.GetStreamInfo(); err == nil && info.SampleRate > 0 && info.SampleCount > 0 {
		seconds := float64(info.SampleCount) / float64(info.SampleRate)
		t.Bitrate = int(float64(size*8) / seconds / 1000)
	}
	return t, nil
}

func vorbisField(cmts *flacvorbis.MetaDataBlockVorbisComment, field string) string {
	values, err := cmts.Get(field)
	if err != nil || len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// PathInfo is the metadata implied by a file's location in the library.
type PathInfo struct {
	Artist string
	Album  string
	Title  string
}

// FromPath derives artist, album, and title from the Artist/Album/NN Title.ext
// layout. Files directly under an artist directory get no album. A file at the
// library root named "Artist - Title.ext" is split on the dash.
func FromPath(root, path string) PathInfo {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	base := parts[len(parts)-1]
	title := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if stripped := leadingTrackNumber.ReplaceAllString(title, ""); stripped != "" {
		title = stripped
	}

	var info PathInfo
	switch {
	case len(parts) >= 3:
		info.Artist = parts[len(parts)-3]
		info.Album = parts[len(parts)-2]
	case len(parts) == 2:
		info.Artist = parts[0]
	default:
		if artist, rest, ok := strings.Cut(title, " - "); ok {
			info.Artist = strings.TrimSpace(artist)
			title = strings.TrimSpace(rest)
		}
	}
	info.Title = title
	return info
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
