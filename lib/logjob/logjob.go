// Package logjob orchestrates one approved log-retrieval job: per-host
// download, storage-budget tracking, archive splitting and publishing.
package logjob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"getlog/lib/apperr"
	"getlog/lib/archive"
	"getlog/lib/constants"
	"getlog/lib/data"
	"getlog/lib/expand"
	"getlog/lib/models"
	"getlog/lib/sshauth"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// ServerDownloader fetches a set of remote paths from one host.
type ServerDownloader interface {
	Download(hostname string, port int, username string, material *sshauth.AuthMaterial, paths []string) ([]models.DownloadedFile, int64, error)
}

// ArchiveBuilder writes encrypted archives from downloaded files.
type ArchiveBuilder interface {
	BuildSingle(jobName, password string, files []models.DownloadedFile) (string, error)
	BuildPart(jobName string, number int, password string, files []models.DownloadedFile) (models.ArchivePart, error)
}

// ArchivePublisher uploads one archive and returns its download
// reference.
type ArchivePublisher interface {
	Publish(ctx context.Context, zipPath string) (string, error)
}

// Runner executes approved jobs end to end.
type Runner struct {
	Config      data.ConfigRepository
	Credentials data.CredentialsRepository
	Downloader  ServerDownloader
	Archiver    ArchiveBuilder
	Publisher   ArchivePublisher

	// TmpDir is scanned to re-baseline the storage counter after a part
	// flush; leftover temp files from earlier work still occupy space.
	TmpDir       string
	StorageLimit int64

	Clock  clockwork.Clock
	Logger *logrus.Logger
}

// Result is what the requester needs to retrieve the job's output.
type Result struct {
	References []string
	Password   string
}

// JobName derives the published archive base name from the target
// system and the current time.
func (r *Runner) JobName(system string) string {
	return fmt.Sprintf("%s_%s", system, r.Clock.Now().Format("20060102150405"))
}

// Run downloads the requested period from every configured server and
// publishes the encrypted archives. Individual server failures are
// logged and skipped; the job fails only when nothing could be
// collected or an archive/publish step breaks.
func (r *Runner) Run(ctx context.Context, req models.LogRequest) (*Result, error) {
	systemConfig, err := r.Config.GetSystemConfig(ctx, req.System)
	if err != nil {
		return nil, err
	}

	from, to, err := req.Period()
	if err != nil {
		return nil, err
	}

	jobName := r.JobName(req.System)
	password := archive.NewPassword()

	state := &jobState{password: password}
	defer state.cleanup()

	// Map iteration order is random; a deterministic host order keeps
	// part contents reproducible across runs.
	hostnames := make([]string, 0, len(systemConfig.Servers))
	for hostname := range systemConfig.Servers {
		hostnames = append(hostnames, hostname)
	}
	sort.Strings(hostnames)

	for _, hostname := range hostnames {
		server := systemConfig.Servers[hostname]

		files, bytesUsed, err := r.collectServer(ctx, hostname, server, from, to)
		if err != nil {
			r.Logger.WithFields(logrus.Fields{
				"hostname":  hostname,
				"error":     err.Error(),
				"operation": "Run",
			}).Error("Server processing failed, skipping")
			continue
		}

		// Flush the pending batch before it and the new files together
		// overflow the temp volume.
		if state.usage+bytesUsed > r.StorageLimit && len(state.files) > 0 {
			r.Logger.WithFields(logrus.Fields{
				"part":      state.nextPart,
				"usage":     state.usage,
				"incoming":  bytesUsed,
				"operation": "Run",
			}).Warn("Storage limit approaching, flushing archive part")

			if err := r.flushPart(ctx, jobName, state); err != nil {
				return nil, err
			}
		}

		state.files = append(state.files, files...)
		state.usage += bytesUsed

		r.Logger.WithFields(logrus.Fields{
			"hostname":  hostname,
			"files":     len(files),
			"bytes":     bytesUsed,
			"operation": "Run",
		}).Info("Server processing complete")
	}

	if len(state.files) == 0 && len(state.references) == 0 {
		return nil, apperr.New(apperr.KindTransfer, "no log files could be collected for system %s", req.System)
	}

	if len(state.files) > 0 {
		if err := r.flushFinal(ctx, jobName, state); err != nil {
			return nil, err
		}
	}

	return &Result{References: state.references, Password: password}, nil
}

// collectServer resolves credentials, expands the path templates and
// downloads everything for one host.
func (r *Runner) collectServer(ctx context.Context, hostname string, server models.ServerConfig, from, to time.Time) ([]models.DownloadedFile, int64, error) {
	creds, err := r.Credentials.GetCredentials(ctx, hostname)
	if err != nil {
		return nil, 0, err
	}

	material, err := sshauth.Resolve(creds, r.Logger)
	if err != nil {
		return nil, 0, err
	}

	port := server.Port
	if port == 0 {
		port = constants.DefaultSSHPort
	}

	paths := expand.Paths(server.LogPaths, from, to)
	return r.Downloader.Download(hostname, port, creds.Username, material, paths)
}

// flushPart archives and publishes the pending batch, then frees its
// temp files and re-baselines the storage counter from the real temp
// dir contents.
func (r *Runner) flushPart(ctx context.Context, jobName string, state *jobState) error {
	part, err := r.Archiver.BuildPart(jobName, state.nextPartNumber(), state.password, state.files)
	if err != nil {
		return err
	}

	ref, err := r.Publisher.Publish(ctx, part.ZipPath)
	if err != nil {
		os.Remove(part.ZipPath)
		return err
	}
	state.references = append(state.references, ref)

	removeFiles(state.files)
	os.Remove(part.ZipPath)
	state.files = nil
	state.usage = scanUsage(r.TmpDir)
	return nil
}

// flushFinal publishes the last batch: a numbered part when earlier
// parts exist, otherwise a single unnumbered archive.
func (r *Runner) flushFinal(ctx context.Context, jobName string, state *jobState) error {
	var zipPath string
	var err error

	if len(state.references) > 0 {
		var part models.ArchivePart
		part, err = r.Archiver.BuildPart(jobName, state.nextPartNumber(), state.password, state.files)
		zipPath = part.ZipPath
	} else {
		zipPath, err = r.Archiver.BuildSingle(jobName, state.password, state.files)
	}
	if err != nil {
		return err
	}
	defer os.Remove(zipPath)

	ref, err := r.Publisher.Publish(ctx, zipPath)
	if err != nil {
		return err
	}
	state.references = append(state.references, ref)

	removeFiles(state.files)
	state.files = nil
	return nil
}

// jobState tracks the pending batch across the host loop.
type jobState struct {
	files      []models.DownloadedFile
	usage      int64
	references []string
	password   string
	nextPart   int
}

func (s *jobState) nextPartNumber() int {
	s.nextPart++
	return s.nextPart
}

// cleanup removes whatever temp files are still held, regardless of how
// the job ended.
func (s *jobState) cleanup() {
	removeFiles(s.files)
}

func removeFiles(files []models.DownloadedFile) {
	for _, file := range files {
		os.Remove(file.LocalPath)
	}
}

// scanUsage sums the sizes of everything under dir. Used instead of the
// running counter after a flush because other tenants of the temp
// volume may hold space too.
func scanUsage(dir string) int64 {
	var total int64
	filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
