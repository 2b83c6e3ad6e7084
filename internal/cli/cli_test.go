package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// session drives Execute against one temporary database.
type session struct {
	t  *testing.T
	db string
}

func newSession(t *testing.T) *session {
	t.Helper()
	t.Setenv("BAKEHOUSE_LOG_LEVEL", "error")
	t.Setenv("BAKEHOUSE_TENANT", "")
	t.Setenv("BAKEHOUSE_USER", "")
	s := &session{t: t, db: filepath.Join(t.TempDir(), "bakehouse.db")}
	s.ok("init")
	return s
}

func (s *session) run(args ...string) (code int, stdout, stderr string) {
	s.t.Helper()
	var out, errOut bytes.Buffer
	code = Execute(context.Background(), append([]string{"--db", s.db}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func (s *session) ok(args ...string) string {
	s.t.Helper()
	code, out, errOut := s.run(args...)
	require.Equal(s.t, ExitSuccess, code, "args %v\nstdout: %s\nstderr: %s", args, out, errOut)
	return out
}

func (s *session) json(v any, args ...string) {
	s.t.Helper()
	out := s.ok(append(args, "--format", "json")...)
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(s.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(s.t, "ok", resp.Status)
	require.NoError(s.t, json.Unmarshal(resp.Data, v))
}

func seededSession(t *testing.T) *session {
	t.Helper()
	s := newSession(t)
	s.ok("tenant", "create", "corner", "--name", "Corner Bakery", "--owner", "ana")
	s.ok("member", "add", "sam", "staff", "-t", "corner", "-u", "ana")
	s.ok("catalog", "import", "../harness/testdata/catalog.cue", "-t", "corner", "-u", "ana")
	return s
}

func TestInit(t *testing.T) {
	s := newSession(t)
	out := s.ok("init")
	assert.Contains(t, out, "Database ready at "+s.db)
}

func TestTenantAndMembers(t *testing.T) {
	s := seededSession(t)

	out := s.ok("tenant", "show", "-t", "corner", "-u", "sam")
	assert.Contains(t, out, "Corner Bakery")
	assert.Contains(t, out, "500 bp")

	var members []struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	s.json(&members, "member", "list", "-t", "corner", "-u", "ana")
	require.Len(t, members, 2)

	s.ok("tenant", "settings", "--tolerance-bp", "250", "-t", "corner", "-u", "ana")
	out = s.ok("tenant", "show", "-t", "corner", "-u", "sam")
	assert.Contains(t, out, "250 bp")

	code, _, stderr := s.run("tenant", "settings", "--allow-negative", "-t", "corner", "-u", "sam")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "Error [FORBIDDEN]")

	code, _, stderr = s.run("member", "add", "bob", "staff", "-t", "corner", "-u", "sam")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "Error [FORBIDDEN]")

	code, _, stderr = s.run("stock", "-t", "corner", "-u", "stranger")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "Error [FORBIDDEN]")
}

func TestMoveTransferAndVerify(t *testing.T) {
	s := seededSession(t)
	as := []string{"-t", "corner", "-u", "sam"}

	out := s.ok(append([]string{"move", "purchase", "FLOUR", "25", "--cost", "100"}, as...)...)
	assert.Equal(t, "#1 purchase FLOUR 25 kg at main, balance 25\n", out)

	code, _, stderr := s.run(append([]string{"move", "usage", "FLOUR", "30"}, as...)...)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "Error [INSUFFICIENT_STOCK]")

	code, _, stderr = s.run(append([]string{"move", "waste", "FLOUR", "1"}, as...)...)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "Error [VALIDATION]")

	out = s.ok(append([]string{"transfer", "flour", "5", "--from", "main", "--to", "Kitchen"}, as...)...)
	assert.Contains(t, out, "from main (now 20) to kitchen (now 5)")

	var rows []struct {
		SKU      string `json:"sku"`
		Location string `json:"location"`
		Balance  string `json:"balance"`
	}
	s.json(&rows, append([]string{"stock"}, as...)...)
	require.Len(t, rows, 2)
	assert.Equal(t, "kitchen", rows[0].Location)
	assert.Equal(t, "5", rows[0].Balance)
	assert.Equal(t, "20", rows[1].Balance)

	out = s.ok(append([]string{"stock", "--history", "FLOUR"}, as...)...)
	assert.Contains(t, out, "purchase")
	assert.Contains(t, out, "transfer")

	out = s.ok(append([]string{"verify"}, as...)...)
	assert.Contains(t, out, "3 movements, last seq 3, tenant seq 3")
	assert.Contains(t, out, "✓ ledger is consistent")
}

func TestProduceAndSell(t *testing.T) {
	s := seededSession(t)
	as := []string{"-t", "corner", "-u", "sam"}

	s.ok(append([]string{"move", "purchase", "FLOUR", "5"}, as...)...)
	s.ok(append([]string{"move", "purchase", "BUTTER", "1"}, as...)...)

	out := s.ok(append([]string{"produce", "Butter croissant", "12"}, as...)...)
	assert.Contains(t, out, "12 x Butter croissant at main")

	out = s.ok(append([]string{"sale", "CROISSANT=6@350", "--channel", "Counter"}, as...)...)
	assert.Contains(t, out, "1 lines, total $21.00")

	code, _, stderr := s.run(append([]string{"sale", "CROISSANT=7@350"}, as...)...)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "INSUFFICIENT_STOCK")

	code, _, _ = s.run(append([]string{"sale", "CROISSANT:6"}, as...)...)
	assert.Equal(t, ExitCommandError, code)

	out = s.ok(append([]string{"stock", "--low"}, as...)...)
	assert.Contains(t, out, "FLOUR")
	assert.Contains(t, out, "BUTTER")
}

func TestCountWorkflow(t *testing.T) {
	s := seededSession(t)
	sam := []string{"-t", "corner", "-u", "sam"}
	ana := []string{"-t", "corner", "-u", "ana"}

	s.ok(append([]string{"move", "purchase", "FLOUR", "8"}, sam...)...)

	var sess struct {
		ID          string `json:"id"`
		SnapshotSeq int64  `json:"snapshot_seq"`
		Lines       []any  `json:"lines"`
	}
	s.json(&sess, append([]string{"count", "open", "--item", "FLOUR"}, sam...)...)
	require.NotEmpty(t, sess.ID)
	assert.Equal(t, int64(1), sess.SnapshotSeq)
	assert.Len(t, sess.Lines, 1)

	s.ok(append([]string{"count", "record", sess.ID, "FLOUR", "7.5"}, sam...)...)

	var rep struct {
		Digest   string `json:"digest"`
		NetCents int64  `json:"net_cents"`
	}
	s.json(&rep, append([]string{"count", "submit", sess.ID}, sam...)...)
	require.NotEmpty(t, rep.Digest)
	assert.Equal(t, int64(-48), rep.NetCents)

	code, _, stderr := s.run(append([]string{"count", "approve", sess.ID}, sam...)...)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "FORBIDDEN")

	code, _, stderr = s.run(append([]string{"count", "approve", sess.ID, "--digest", "stale"}, ana...)...)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "STALE_REPORT")

	out := s.ok(append([]string{"count", "approve", sess.ID, "--digest", rep.Digest}, ana...)...)
	assert.Contains(t, out, "1 adjustments")

	out = s.ok(append([]string{"count", "list", "--status", "approved"}, sam...)...)
	assert.Contains(t, out, sess.ID)

	out = s.ok(append([]string{"verify"}, sam...)...)
	assert.Contains(t, out, "✓ ledger is consistent")
}

func TestCommandErrors(t *testing.T) {
	s := newSession(t)

	code, _, stderr := s.run("stock")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "--tenant and --user")

	code, _, _ = s.run("frobnicate")
	assert.Equal(t, ExitCommandError, code)

	code, _, _ = s.run("--format", "xml", "init")
	assert.Equal(t, ExitCommandError, code)

	code, _, _ = s.run("tenant", "create", "corner")
	assert.Equal(t, ExitCommandError, code)

	code, out, _ := s.run("--format", "json", "catalog", "check", "missing.cue")
	assert.NotEqual(t, ExitSuccess, code)
	assert.Contains(t, out, `"status":"error"`)
}

func TestScenarioCommand(t *testing.T) {
	s := newSession(t)

	out := s.ok("scenario", "../harness/testdata/scenarios")
	assert.Contains(t, out, "1 scenarios, 1 passed, 0 failed")

	code, _, _ := s.run("scenario", "./does-not-exist")
	assert.Equal(t, ExitCommandError, code)
}
