package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/homeroom/internal/cache"
	"github.com/roach88/homeroom/internal/config"
	"github.com/roach88/homeroom/internal/hub"
	"github.com/roach88/homeroom/internal/model"
	"github.com/roach88/homeroom/internal/testutil"
)

// env is a config file, a database and a fake backend in a temp dir.
type env struct {
	t       *testing.T
	dir     string
	cfgPath string
	backend *testutil.FakeBackend
	stdin   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	b := testutil.NewFakeBackend(t)
	dir := t.TempDir()
	cfg := fmt.Sprintf(`remote:
  endpoint: %s
  timeout: 2s
store:
  path: %s
sync:
  interval: 1h
  timeout: 2s
outbox:
  flush_interval: 1h
  base_backoff: 10ms
  max_backoff: 100ms
log_level: warn
`, b.URL(), filepath.Join(dir, "homeroom.db"))
	path := filepath.Join(dir, "homeroom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return &env{t: t, dir: dir, cfgPath: path, backend: b}
}

func (e *env) run(args ...string) (stdout, stderr string, err error) {
	e.t.Helper()
	var out, errb bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(append([]string{"--config", e.cfgPath}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&errb)
	cmd.SetIn(strings.NewReader(e.stdin))
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errb.String(), err
}

func (e *env) runJSON(args ...string) (CLIResponse, error) {
	e.t.Helper()
	stdout, _, err := e.run(append([]string{"--format", "json"}, args...)...)
	var resp CLIResponse
	require.NoError(e.t, json.Unmarshal([]byte(stdout), &resp), "stdout: %s", stdout)
	return resp, err
}

func (e *env) respondLists(classes ...model.ClassInfo) {
	for _, col := range cache.All() {
		e.backend.Respond(col.Domain()+".list", []any{})
	}
	if classes != nil {
		e.backend.Respond("classes.list", classes)
	}
}

// snapshot reopens the database and returns the persisted cache.
func (e *env) snapshot() cache.Snapshot {
	e.t.Helper()
	cfg, err := config.Load(e.cfgPath)
	require.NoError(e.t, err)
	app, err := OpenApp(context.Background(), cfg, nil)
	require.NoError(e.t, err)
	defer app.Close()
	return app.Cache.Snapshot()
}

func dataOf(t *testing.T, resp CLIResponse, into any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, into))
}

func TestSync_Success(t *testing.T) {
	e := newEnv(t)
	e.respondLists(model.ClassInfo{ID: "c1", ClassName: "10A1"})

	resp, err := e.runJSON("sync")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)

	var r statusReport
	dataOf(t, resp, &r)
	assert.Equal(t, hub.StatusIdle, r.Status)
	require.NotNil(t, r.LastSync)
	assert.Zero(t, r.Pending)

	snap := e.snapshot()
	require.Len(t, snap.Classes, 1)
	assert.Equal(t, "10A1", snap.Classes[0].ClassName)
}

func TestSync_FailureExitsOne(t *testing.T) {
	e := newEnv(t)
	e.respondLists()
	e.backend.Fail("students.list", "quota exceeded")

	stdout, _, err := e.run("sync")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [SYNC_FAILED]")
}

func TestSync_NoEndpoint(t *testing.T) {
	e := newEnv(t)
	t.Setenv("HOMEROOM_REMOTE_ENDPOINT", " ")

	_, _, err := e.run("sync")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestStatus_BeforeAnySync(t *testing.T) {
	e := newEnv(t)

	stdout, _, err := e.run("status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "never synced")
	assert.Contains(t, stdout, "nobody signed in")
	assert.Empty(t, e.backend.Calls(), "status never touches the network")
}

func TestStatus_BadConfig(t *testing.T) {
	e := newEnv(t)
	t.Setenv("HOMEROOM_LOG_LEVEL", "shouting")

	stdout, _, err := e.run("status")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [CONFIG]")
}

func TestLogin_WhoamiLogout(t *testing.T) {
	e := newEnv(t)
	e.respondLists()
	e.backend.Respond("auth.login", model.User{
		ID: "u1", Username: "colan", FullName: "Cô Lan", Role: model.RoleTeacher,
	})

	stdout, _, err := e.run("login", "colan", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Cô Lan (colan, TEACHER)")
	assert.NotEmpty(t, e.backend.CallsFor("classes.list"), "login syncs")

	stdout, _, err = e.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, stdout, "colan")

	_, _, err = e.run("logout")
	require.NoError(t, err)

	_, _, err = e.run("whoami")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestLogin_PasswordFromStdin(t *testing.T) {
	e := newEnv(t)
	e.respondLists()
	e.backend.Respond("auth.login", model.User{ID: "u1", Username: "colan", Role: model.RoleTeacher})
	e.stdin = "s3cret\n"

	_, _, err := e.run("login", "colan")
	require.NoError(t, err)

	calls := e.backend.CallsFor("auth.login")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"username":"colan","password":"s3cret"}`, string(calls[0].Payload))
}

func TestLogin_Rejected(t *testing.T) {
	e := newEnv(t)
	e.backend.Respond("auth.login", nil)

	resp, err := e.runJSON("login", "colan", "-p", "wrong")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeAuth, resp.Error.Code)
	assert.Empty(t, e.backend.CallsFor("classes.list"))
}

const seedFile = `
classes:
  - {id: c1, className: 10A1, schoolYear: 2024-2025}
students:
  - {id: s1, classId: c1, fullName: Nguyễn Văn An, xp: 40}
  - {id: s2, classId: c1, fullName: Trần Thị Bình}
`

func TestSeed_ThenOutboxThenSync(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(e.dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedFile), 0o644))

	resp, err := e.runJSON("seed", path)
	require.NoError(t, err)
	var res seedResult
	dataOf(t, resp, &res)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Pending)
	assert.Empty(t, e.backend.Calls(), "seed only queues")

	resp, err = e.runJSON("outbox")
	require.NoError(t, err)
	var rows []outboxRow
	dataOf(t, resp, &rows)
	require.Len(t, rows, 3)
	assert.Equal(t, "classes.create", rows[0].Action)
	assert.Equal(t, "students.create", rows[2].Action)

	// The backend accepts the writes but has not stored them yet: the
	// fetched snapshot is empty. Acknowledged writes are gone from the
	// outbox, so only the backend's answer remains.
	e.respondLists()
	e.backend.Respond("classes.create", nil)
	e.backend.Respond("students.create", nil)

	_, _, err = e.run("sync")
	require.NoError(t, err)
	assert.Len(t, e.backend.CallsFor("students.create"), 2)

	stdout, _, err := e.run("outbox")
	require.NoError(t, err)
	assert.Contains(t, stdout, "outbox empty")
	assert.Empty(t, e.snapshot().Students)
}

func TestSync_KeepsUndeliveredWrites(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(e.dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedFile), 0o644))
	_, _, err := e.run("seed", path)
	require.NoError(t, err)

	e.respondLists()
	e.backend.FailStatus("classes.create", 503)

	_, _, err = e.run("sync")
	require.NoError(t, err, "delivery failures do not fail the sync")

	snap := e.snapshot()
	assert.Len(t, snap.Classes, 1, "pending writes survive the replace")
	assert.Len(t, snap.Students, 2)
	assert.Empty(t, e.backend.CallsFor("students.create"), "head of line blocks")

	stdout, _, err := e.run("outbox")
	require.NoError(t, err)
	assert.Contains(t, stdout, "attempts=1")
}

func TestSeed_InvalidDataset(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(e.dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pupils: []\n"), 0o644))

	stdout, _, err := e.run("seed", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [INVALID_SEED]")
}

func TestOutbox_DisabledUsesDirectWrites(t *testing.T) {
	e := newEnv(t)
	t.Setenv("HOMEROOM_OUTBOX_ENABLED", "false")
	e.backend.Respond("classes.create", nil)
	e.backend.Respond("students.create", nil)
	path := filepath.Join(e.dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedFile), 0o644))

	_, _, err := e.run("seed", path)
	require.NoError(t, err)

	// Close waits for the fire-and-forget writes.
	assert.Len(t, e.backend.CallsFor("classes.create"), 1)
	assert.Len(t, e.backend.CallsFor("students.create"), 2)

	stdout, _, err := e.run("outbox")
	require.NoError(t, err)
	assert.Contains(t, stdout, "outbox empty")
}

func TestRun_StopsWithContext(t *testing.T) {
	e := newEnv(t)
	e.respondLists()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--config", e.cfgPath, "run"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()
	cancel()

	err := <-done
	if err != nil {
		assert.True(t, errors.Is(err, context.Canceled), "unexpected error: %v", err)
	}
}
