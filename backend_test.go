package main

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeProcess struct {
	mu    sync.Mutex
	kills int
	err   error
	panic bool
}

func (f *fakeProcess) Kill() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills++
	if f.panic {
		panic("kill exploded")
	}
	return f.err
}

func (f *fakeProcess) killCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kills
}

// fakeGroupProcess runs in its own process group.
type fakeGroupProcess struct {
	fakeProcess
	groupKills int
	groupErr   error
}

func (f *fakeGroupProcess) KillGroup() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupKills++
	return f.groupErr
}

func (f *fakeGroupProcess) groupKillCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groupKills
}

func exitedHandle(pid int, p processKiller) *BackendHandle {
	h := &BackendHandle{Path: "/app/backend/sonosano-backend", Pid: pid, proc: p, done: make(chan struct{})}
	close(h.done)
	return h
}

func newFakeHandle(pid int, p *fakeProcess) *BackendHandle {
	return &BackendHandle{Path: "/app/backend/sonosano-backend", Pid: pid, proc: p}
}

func TestBackendExecutableName(t *testing.T) {
	cases := []struct {
		platform Platform
		want     string
	}{
		{PlatformWindows, "sonosano-backend.exe"},
		{PlatformLinux, "sonosano-backend"},
		{PlatformDarwin, "sonosano-backend"},
		{Platform("freebsd"), "sonosano-backend"},
	}
	for _, tc := range cases {
		t.Run(string(tc.platform), func(t *testing.T) {
			assert.Equal(t, tc.want, backendExecutableName(tc.platform))
		})
	}
}

func TestBackendPath(t *testing.T) {
	assert.Equal(t, filepath.FromSlash("/app/backend/sonosano-backend"), backendPath("/app", PlatformLinux))
	assert.Equal(t, filepath.FromSlash("/app/backend/sonosano-backend.exe"), backendPath("/app", PlatformWindows))
}

func TestBuildModeFromBuildType(t *testing.T) {
	assert.Equal(t, BuildRelease, buildModeFromBuildType("production"))
	assert.Equal(t, BuildDebug, buildModeFromBuildType("dev"))
	assert.Equal(t, BuildDebug, buildModeFromBuildType("debug"))
	assert.Equal(t, BuildDebug, buildModeFromBuildType(""))
	assert.Equal(t, "release", BuildRelease.String())
	assert.Equal(t, "debug", BuildDebug.String())
}

func TestResourceDirFor(t *testing.T) {
	bundle := filepath.FromSlash("/Applications/Sonosano.app/Contents/MacOS")
	assert.Equal(t, filepath.FromSlash("/Applications/Sonosano.app/Contents/Resources"), resourceDirFor(bundle, PlatformDarwin))
	assert.Equal(t, bundle, resourceDirFor(bundle, PlatformLinux))
	assert.Equal(t, filepath.FromSlash("/opt/sonosano"), resourceDirFor(filepath.FromSlash("/opt/sonosano"), PlatformDarwin))
	assert.Equal(t, "/custom", resolveResourceDir("/custom"))
}

func TestDetermineAndSpawnDebugReturnsNil(t *testing.T) {
	for _, root := range []string{"", "/app", t.TempDir()} {
		assert.Nil(t, determineAndSpawn(BuildDebug, root), "root %q", root)
	}
}

func TestDetermineAndSpawnReleaseMissingBackend(t *testing.T) {
	root := t.TempDir()

	assert.Nil(t, determineAndSpawn(BuildRelease, root))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "resource root must not be touched")
}

func TestSpawnBackendNotFound(t *testing.T) {
	h, err := spawnBackend(filepath.Join(t.TempDir(), "backend", "nope"))
	assert.Nil(t, h)
	assert.True(t, errors.Is(err, errBackendNotFound))
}

func TestBackendHandleKillTreatsProcessDoneAsSuccess(t *testing.T) {
	h := newFakeHandle(42, &fakeProcess{err: os.ErrProcessDone})
	assert.NoError(t, h.Kill())

	h = newFakeHandle(42, &fakeProcess{err: errors.New("access denied")})
	assert.Error(t, h.Kill())
}

func TestBackendHandleExited(t *testing.T) {
	h := newFakeHandle(42, &fakeProcess{})
	assert.False(t, h.Exited(), "unwatched handle never reports exit")

	h.done = make(chan struct{})
	assert.False(t, h.Exited())
	close(h.done)
	assert.True(t, h.Exited())
}

type BackendSlotSuite struct {
	suite.Suite
	slot *BackendSlot
}

func TestBackendSlotSuite(t *testing.T) {
	suite.Run(t, new(BackendSlotSuite))
}

func (s *BackendSlotSuite) SetupTest() {
	s.slot = NewBackendSlot()
}

func (s *BackendSlotSuite) assertEmpty() {
	_, ok := s.slot.HeldPid()
	s.False(ok, "slot should be empty")
}

func (s *BackendSlotSuite) TestRecordNilLeavesSlotEmpty() {
	s.slot.Record(nil)
	s.assertEmpty()
}

func (s *BackendSlotSuite) TestRecordHoldsHandle() {
	s.slot.Record(newFakeHandle(101, &fakeProcess{}))
	pid, ok := s.slot.HeldPid()
	s.True(ok)
	s.Equal(101, pid)
}

func (s *BackendSlotSuite) TestTerminateKillsOnceAndClears() {
	p := &fakeProcess{}
	s.slot.Record(newFakeHandle(101, p))

	s.slot.TerminateOnShutdown()

	s.Equal(1, p.killCount())
	s.assertEmpty()
}

func (s *BackendSlotSuite) TestTerminateMarksHandleKilled() {
	h := newFakeHandle(101, &fakeProcess{})
	s.slot.Record(h)
	s.False(h.Killed())

	s.slot.TerminateOnShutdown()

	s.True(h.Killed())
}

func (s *BackendSlotSuite) TestTerminateTwiceIsNoop() {
	p := &fakeProcess{}
	s.slot.Record(newFakeHandle(101, p))

	s.slot.TerminateOnShutdown()
	s.slot.TerminateOnShutdown()

	s.Equal(1, p.killCount())
	s.assertEmpty()
}

func (s *BackendSlotSuite) TestTerminateEmptySlotIsNoop() {
	s.NotPanics(func() {
		s.slot.TerminateOnShutdown()
		s.slot.TerminateOnShutdown()
	})
	s.assertEmpty()
}

func (s *BackendSlotSuite) TestKillFailureStillClears() {
	p := &fakeProcess{err: errors.New("operation not permitted")}
	s.slot.Record(newFakeHandle(101, p))

	s.slot.TerminateOnShutdown()

	s.Equal(1, p.killCount())
	s.assertEmpty()
}

func (s *BackendSlotSuite) TestKillPanicIsRecovered() {
	p := &fakeProcess{panic: true}
	s.slot.Record(newFakeHandle(101, p))

	s.NotPanics(s.slot.TerminateOnShutdown)
	s.assertEmpty()
}

func (s *BackendSlotSuite) TestExitedBackendIsNotKilled() {
	p := &fakeProcess{}
	h := exitedHandle(101, p)
	s.slot.Record(h)

	s.slot.TerminateOnShutdown()

	s.Equal(0, p.killCount())
	s.True(h.Killed())
	s.assertEmpty()
}

func (s *BackendSlotSuite) TestExitedBackendGroupIsKilled() {
	p := &fakeGroupProcess{}
	s.slot.Record(exitedHandle(101, p))

	s.slot.TerminateOnShutdown()

	s.Equal(1, p.groupKillCount(), "workers may outlive the group leader")
	s.Equal(0, p.killCount())
	s.assertEmpty()
}

func (s *BackendSlotSuite) TestEmptyGroupIsNotAnError() {
	p := &fakeGroupProcess{groupErr: errors.New("no such process")}
	s.slot.Record(exitedHandle(101, p))

	s.NotPanics(s.slot.TerminateOnShutdown)
	s.Equal(1, p.groupKillCount())
	s.assertEmpty()
}

func (s *BackendSlotSuite) TestDuplicateRecordKillsIncoming() {
	first, second := &fakeProcess{}, &fakeProcess{}
	s.slot.Record(newFakeHandle(101, first))
	s.slot.Record(newFakeHandle(202, second))

	pid, ok := s.slot.HeldPid()
	s.True(ok)
	s.Equal(101, pid)
	s.Equal(0, first.killCount())
	s.Equal(1, second.killCount())
}

func (s *BackendSlotSuite) TestRecordAfterShutdownIsRefused() {
	s.slot.TerminateOnShutdown()

	p := &fakeProcess{}
	s.slot.Record(newFakeHandle(101, p))

	s.Equal(1, p.killCount(), "late backend must not outlive the shell")
	s.assertEmpty()
}

func (s *BackendSlotSuite) TestRecordThenTerminateFromOtherGoroutine() {
	p := &fakeProcess{}
	recorded := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.slot.Record(newFakeHandle(101, p))
		close(recorded)
	}()
	go func() {
		defer wg.Done()
		<-recorded
		s.slot.TerminateOnShutdown()
	}()
	wg.Wait()

	s.Equal(1, p.killCount())
	s.assertEmpty()
}

func (s *BackendSlotSuite) TestConcurrentTerminateKillsOnce() {
	p := &fakeProcess{}
	s.slot.Record(newFakeHandle(101, p))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.slot.TerminateOnShutdown()
		}()
	}
	wg.Wait()

	s.Equal(1, p.killCount())
	s.assertEmpty()
}
