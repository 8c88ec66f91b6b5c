package models

// DownloadedFile describes one file fetched from a remote host. The
// LocalPath must be removed by the job runner on every exit path.
type DownloadedFile struct {
	OriginalPath string // remote source path
	LocalPath    string // temp file under /tmp
	RelativePath string // entry name inside the archive, host-prefixed
	Size         int64
}

// ArchivePart is one encrypted zip produced by a job. Part numbers are
// 1-based and contiguous; every part of a job shares one password.
type ArchivePart struct {
	Number   int
	ZipPath  string
	Password string
}
