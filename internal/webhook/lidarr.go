package webhook

// Lidarr webhook event types.
const (
	LidarrEventTest         = "Test"
	LidarrEventDownload     = "Download"
	LidarrEventAlbumImport  = "AlbumImport"
	LidarrEventTrackRetag   = "TrackRetag"
	LidarrEventRename       = "Rename"
	LidarrEventArtistDelete = "ArtistDelete"
)

// LidarrPayload is the subset of an inbound Lidarr webhook trackmend reads.
type LidarrPayload struct {
	EventType  string            `json:"eventType"`
	Artist     *LidarrArtist     `json:"artist,omitempty"`
	Albums     []LidarrAlbum     `json:"albums,omitempty"`
	TrackFiles []LidarrTrackFile `json:"trackFiles,omitempty"`
}

// LidarrArtist contains the artist data from a Lidarr webhook.
type LidarrArtist struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// LidarrAlbum contains album data from a Lidarr webhook.
type LidarrAlbum struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// LidarrTrackFile is one file Lidarr imported or changed.
type LidarrTrackFile struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// TriggersScan reports whether the event changed files on disk.
func (p *LidarrPayload) TriggersScan() bool {
	switch p.EventType {
	case LidarrEventDownload, LidarrEventAlbumImport, LidarrEventTrackRetag,
		LidarrEventRename, LidarrEventArtistDelete:
		return true
	}
	return false
}
