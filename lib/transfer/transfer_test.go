package transfer

import (
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"getlog/lib/apperr"
	"getlog/lib/sshauth"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// fakeSession serves canned file contents and can fail the first N
// attempts per path.
type fakeSession struct {
	mu        sync.Mutex
	contents  map[string]string
	failFirst map[string]int
	attempts  map[string]int
	closed    bool
}

func newFakeSession(contents map[string]string) *fakeSession {
	return &fakeSession{
		contents:  contents,
		failFirst: map[string]int{},
		attempts:  map[string]int{},
	}
}

func (s *fakeSession) Fetch(remotePath, localPath string) (int64, error) {
	s.mu.Lock()
	s.attempts[remotePath]++
	attempt := s.attempts[remotePath]
	failures := s.failFirst[remotePath]
	content, ok := s.contents[remotePath]
	s.mu.Unlock()

	if attempt <= failures {
		// Leave a partial file behind so cleanup is observable.
		os.WriteFile(localPath, []byte("partial"), 0600)
		return 0, errors.New("connection reset by peer")
	}
	if !ok {
		return 0, errors.Errorf("no such file %s", remotePath)
	}
	if err := os.WriteFile(localPath, []byte(content), 0600); err != nil {
		return 0, err
	}
	return int64(len(content)), nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeDialer struct {
	mu       sync.Mutex
	session  *fakeSession
	failures int
	attempts int
	lastAddr string
}

func (d *fakeDialer) Dial(addr string, config *ssh.ClientConfig) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	d.lastAddr = addr
	if d.attempts <= d.failures {
		return nil, errors.New("dial tcp: connection refused")
	}
	return d.session, nil
}

func testEngine(t *testing.T, dialer Dialer) *Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Engine{
		Logger:            logger,
		Clock:             clockwork.NewRealClock(),
		Dialer:            dialer,
		Domain:            "corp.example.com",
		TmpDir:            t.TempDir(),
		ConnectTimeout:    time.Second,
		ConnectRetryDelay: 0,
		FileRetryDelay:    0,
	}
}

func passwordMaterial(t *testing.T) *sshauth.AuthMaterial {
	t.Helper()
	material := &sshauth.AuthMaterial{Method: ssh.Password("x")}
	return material
}

func Test_Download_FetchesAllPaths(t *testing.T) {
	//Arrange
	session := newFakeSession(map[string]string{
		"/var/log/app/app-2024-01-01.log": "first",
		"/var/log/app/app-2024-01-02.log": "second day",
	})
	dialer := &fakeDialer{session: session}
	engine := testEngine(t, dialer)

	//Act
	files, total, err := engine.Download("web01", 22, "svc-logs", passwordMaterial(t),
		[]string{"/var/log/app/app-2024-01-01.log", "/var/log/app/app-2024-01-02.log"})

	//Assert
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, int64(len("first")+len("second day")), total)
	assert.Equal(t, "web01.corp.example.com:22", dialer.lastAddr)
	assert.True(t, session.closed)

	for _, file := range files {
		assert.True(t, strings.HasPrefix(file.RelativePath, "web01/var/log/"), file.RelativePath)
		content, err := os.ReadFile(file.LocalPath)
		require.NoError(t, err)
		assert.Equal(t, file.Size, int64(len(content)))
	}
}

func Test_Download_ConnectRetriesThenSucceeds(t *testing.T) {
	session := newFakeSession(map[string]string{"/var/log/a.log": "ok"})
	dialer := &fakeDialer{session: session, failures: 2}
	engine := testEngine(t, dialer)

	files, _, err := engine.Download("web01", 22, "svc-logs", passwordMaterial(t), []string{"/var/log/a.log"})

	require.NoError(t, err)
	assert.Equal(t, 3, dialer.attempts)
	assert.Len(t, files, 1)
}

func Test_Download_ConnectExhaustionIsTransferError(t *testing.T) {
	dialer := &fakeDialer{failures: 3}
	engine := testEngine(t, dialer)

	_, _, err := engine.Download("web01", 22, "svc-logs", passwordMaterial(t), []string{"/var/log/a.log"})

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTransfer))
	assert.Equal(t, 3, dialer.attempts)
}

func Test_Download_FileRetryRecovers(t *testing.T) {
	session := newFakeSession(map[string]string{"/var/log/a.log": "payload"})
	session.failFirst["/var/log/a.log"] = 2
	engine := testEngine(t, &fakeDialer{session: session})

	files, _, err := engine.Download("web01", 22, "svc-logs", passwordMaterial(t), []string{"/var/log/a.log"})

	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, 3, session.attempts["/var/log/a.log"])
	content, err := os.ReadFile(files[0].LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))
}

func Test_Download_MissingFileSkippedOthersSurvive(t *testing.T) {
	session := newFakeSession(map[string]string{"/var/log/a.log": "a"})
	engine := testEngine(t, &fakeDialer{session: session})

	files, total, err := engine.Download("web01", 22, "svc-logs", passwordMaterial(t),
		[]string{"/var/log/a.log", "/var/log/rotated-away.log"})

	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "/var/log/a.log", files[0].OriginalPath)
	assert.Equal(t, int64(1), total)
	// The missing path burned all of its attempts.
	assert.Equal(t, 3, session.attempts["/var/log/rotated-away.log"])
}

func Test_Download_PartialFileRemovedAfterFailedAttempts(t *testing.T) {
	session := newFakeSession(map[string]string{})
	session.failFirst["/var/log/a.log"] = 3
	engine := testEngine(t, &fakeDialer{session: session})

	files, _, err := engine.Download("web01", 22, "svc-logs", passwordMaterial(t), []string{"/var/log/a.log"})

	require.NoError(t, err)
	assert.Empty(t, files)
	entries, readErr := os.ReadDir(engine.TmpDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "partial downloads must not linger in the temp dir")
}

func Test_Download_NoPathsSkipsDial(t *testing.T) {
	dialer := &fakeDialer{}
	engine := testEngine(t, dialer)

	files, total, err := engine.Download("web01", 22, "svc-logs", passwordMaterial(t), nil)

	assert.NoError(t, err)
	assert.Empty(t, files)
	assert.Zero(t, total)
	assert.Zero(t, dialer.attempts)
}

func Test_Download_NoDomainUsesBareHostname(t *testing.T) {
	session := newFakeSession(map[string]string{"/var/log/a.log": "a"})
	dialer := &fakeDialer{session: session}
	engine := testEngine(t, dialer)
	engine.Domain = ""

	_, _, err := engine.Download("web01", 2222, "svc-logs", passwordMaterial(t), []string{"/var/log/a.log"})

	require.NoError(t, err)
	assert.Equal(t, "web01:2222", dialer.lastAddr)
}
