package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"qazna.org/backoffice/internal/authz"
)

func TestRecordAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trail", "audit.jsonl")
	trail := Open(path, zerolog.Nop())

	id := authz.NewIdentity(7, "auditor", "Admin", []string{"loans:manage"})
	require.NoError(t, trail.Record(&id, "loan.approve", map[string]any{"loan_id": int64(42)}))
	require.NoError(t, trail.Record(nil, "login.attempt", nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan())
	var first map[string]any
	require.NoError(t, json.Unmarshal(sc.Bytes(), &first))
	require.Equal(t, "loan.approve", first["action"])
	require.Equal(t, "auditor", first["username"])
	require.Equal(t, float64(42), first["fields"].(map[string]any)["loan_id"])

	require.True(t, sc.Scan())
	var second map[string]any
	require.NoError(t, json.Unmarshal(sc.Bytes(), &second))
	require.Equal(t, "login.attempt", second["action"])
	_, hasUser := second["username"]
	require.False(t, hasUser)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRecordRejectsEmptyAction(t *testing.T) {
	trail := Open(filepath.Join(t.TempDir(), "audit.jsonl"), zerolog.Nop())
	require.Error(t, trail.Record(nil, "  ", nil))
}
