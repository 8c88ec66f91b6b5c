// Package transfer fetches remote log files over SSH/SFTP with retry,
// backoff and a bounded worker pool.
package transfer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"getlog/lib/apperr"
	"getlog/lib/models"
	"getlog/lib/sshauth"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

const (
	maxConnectAttempts = 3
	maxFileAttempts    = 3

	defaultConnectRetryDelay = 5 * time.Second
	defaultFileRetryDelay    = 2 * time.Second
	defaultConnectTimeout    = 30 * time.Second

	// Worker cap per host connection. SFTP fan-out beyond this starves
	// the shared SSH transport.
	maxWorkers = 2
)

// Session is one authenticated connection to a host.
type Session interface {
	Fetch(remotePath, localPath string) (int64, error)
	Close() error
}

// Dialer opens sessions. Swapped for a fake in tests.
type Dialer interface {
	Dial(addr string, config *ssh.ClientConfig) (Session, error)
}

type sshDialer struct{}

func (sshDialer) Dial(addr string, config *ssh.ClientConfig) (Session, error) {
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, errors.Wrapf(err, "ssh dial %s", addr)
	}
	return &sshSession{client: client}, nil
}

type sshSession struct {
	client *ssh.Client
}

// Fetch copies one remote file to a local path. A fresh SFTP subsystem
// is opened per fetch so a wedged transfer cannot poison later ones.
func (s *sshSession) Fetch(remotePath, localPath string) (int64, error) {
	sftpClient, err := sftp.NewClient(s.client)
	if err != nil {
		return 0, errors.Wrap(err, "failed to open sftp subsystem")
	}
	defer sftpClient.Close()

	remote, err := sftpClient.Open(remotePath)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to open remote file %s", remotePath)
	}
	defer remote.Close()

	local, err := os.Create(localPath)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to create temp file %s", localPath)
	}
	defer local.Close()

	written, err := io.Copy(local, remote)
	if err != nil {
		return written, errors.Wrapf(err, "failed to copy %s", remotePath)
	}
	return written, nil
}

func (s *sshSession) Close() error {
	return s.client.Close()
}

// Engine downloads expanded paths from one host at a time.
type Engine struct {
	Logger *logrus.Logger
	Clock  clockwork.Clock
	Dialer Dialer

	// Domain is appended to bare hostnames to form the SSH target; the
	// bare name prefixes every archive entry.
	Domain string
	TmpDir string

	ConnectTimeout    time.Duration
	ConnectRetryDelay time.Duration
	FileRetryDelay    time.Duration
}

func NewEngine(logger *logrus.Logger, domain string) *Engine {
	return &Engine{
		Logger:            logger,
		Clock:             clockwork.NewRealClock(),
		Dialer:            sshDialer{},
		Domain:            domain,
		TmpDir:            os.TempDir(),
		ConnectTimeout:    defaultConnectTimeout,
		ConnectRetryDelay: defaultConnectRetryDelay,
		FileRetryDelay:    defaultFileRetryDelay,
	}
}

// Download connects to a host and fetches every path. Per-file failures
// are logged and skipped; only connect exhaustion fails the host. The
// returned list is in completion order.
func (e *Engine) Download(hostname string, port int, username string, material *sshauth.AuthMaterial, paths []string) ([]models.DownloadedFile, int64, error) {
	if len(paths) == 0 {
		return nil, 0, nil
	}

	fqdn := hostname
	if e.Domain != "" {
		fqdn = hostname + "." + e.Domain
	}
	addr := fmt.Sprintf("%s:%d", fqdn, port)

	session, err := e.connect(addr, material.ClientConfig(username, e.ConnectTimeout))
	if err != nil {
		return nil, 0, err
	}
	defer session.Close()

	return e.fetchAll(session, hostname, paths)
}

// connect dials with up to three attempts and a doubling delay.
func (e *Engine) connect(addr string, config *ssh.ClientConfig) (Session, error) {
	delay := e.ConnectRetryDelay
	var lastErr error

	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		session, err := e.Dialer.Dial(addr, config)
		if err == nil {
			e.Logger.WithFields(logrus.Fields{
				"addr":      addr,
				"attempt":   attempt,
				"operation": "connect",
			}).Info("SSH connection established")
			return session, nil
		}

		lastErr = err
		e.Logger.WithFields(logrus.Fields{
			"addr":      addr,
			"attempt":   attempt,
			"attempts":  maxConnectAttempts,
			"error":     err.Error(),
			"operation": "connect",
		}).Warn("SSH connection failed")

		if attempt < maxConnectAttempts {
			e.Clock.Sleep(delay)
			delay *= 2
		}
	}

	return nil, apperr.Wrap(lastErr, apperr.KindTransfer,
		"ssh connection to %s failed after %d attempts", addr, maxConnectAttempts)
}

type fetchResult struct {
	file models.DownloadedFile
	path string
	err  error
}

// fetchAll runs the worker pool over the path list.
func (e *Engine) fetchAll(session Session, hostname string, paths []string) ([]models.DownloadedFile, int64, error) {
	workers := maxWorkers
	if len(paths) < workers {
		workers = len(paths)
	}

	jobs := make(chan string)
	results := make(chan fetchResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				file, err := e.fetchWithRetry(session, hostname, path)
				results <- fetchResult{file: file, path: path, err: err}
			}
		}()
	}

	go func() {
		for _, path := range paths {
			jobs <- path
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var files []models.DownloadedFile
	var totalBytes int64

	for result := range results {
		if result.err != nil {
			e.Logger.WithFields(logrus.Fields{
				"hostname":  hostname,
				"path":      result.path,
				"error":     result.err.Error(),
				"operation": "fetchAll",
			}).Error("File download failed, skipping")
			continue
		}

		files = append(files, result.file)
		totalBytes += result.file.Size

		e.Logger.WithFields(logrus.Fields{
			"hostname":  hostname,
			"path":      result.path,
			"size":      result.file.Size,
			"operation": "fetchAll",
		}).Info("File downloaded")
	}

	return files, totalBytes, nil
}

// fetchWithRetry fetches one file with up to three attempts and a 1.5x
// delay. A partially written temp file is removed before each retry. A
// fresh temp name per attempt avoids collisions across workers and
// hosts.
func (e *Engine) fetchWithRetry(session Session, hostname, path string) (models.DownloadedFile, error) {
	delay := e.FileRetryDelay
	var lastErr error

	for attempt := 1; attempt <= maxFileAttempts; attempt++ {
		localPath := filepath.Join(e.TmpDir, uuid.NewString()[:8]+"_"+filepath.Base(path))

		size, err := session.Fetch(path, localPath)
		if err == nil {
			return models.DownloadedFile{
				OriginalPath: path,
				LocalPath:    localPath,
				RelativePath: hostname + "/" + strings.TrimPrefix(path, "/"),
				Size:         size,
			}, nil
		}

		lastErr = err
		os.Remove(localPath)

		e.Logger.WithFields(logrus.Fields{
			"hostname":  hostname,
			"path":      path,
			"attempt":   attempt,
			"attempts":  maxFileAttempts,
			"error":     err.Error(),
			"operation": "fetchWithRetry",
		}).Warn("File download attempt failed")

		if attempt < maxFileAttempts {
			e.Clock.Sleep(delay)
			delay = delay * 3 / 2
		}
	}

	return models.DownloadedFile{}, errors.Wrapf(lastErr, "download of %s failed after %d attempts", path, maxFileAttempts)
}
