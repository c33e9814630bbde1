// Package audit appends a local record of admin actions performed from this
// workstation. The backend keeps its own authoritative audit log; this trail
// exists so an operator can answer "what did this machine do" without server
// access.
package audit

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"qazna.org/backoffice/internal/authz"
)

// Trail is an append-only JSONL file of admin actions.
type Trail struct {
	mu   sync.Mutex
	path string
	log  zerolog.Logger
}

type entry struct {
	Timestamp string         `json:"ts"`
	Action    string         `json:"action"`
	AdminID   int64          `json:"admin_id,omitempty"`
	Username  string         `json:"username,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Open prepares a trail at path. The file is created lazily on first Record.
func Open(path string, log zerolog.Logger) *Trail {
	return &Trail{path: path, log: log}
}

// Record appends one action entry. Identity may be nil for pre-login actions.
func (t *Trail) Record(id *authz.Identity, action string, fields map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return errors.New("audit: action name is required")
	}
	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Action:    action,
		Fields:    fields,
	}
	if id != nil {
		e.AdminID = id.AdminID
		e.Username = id.Username
	}
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(t.path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	t.log.Debug().Str("action", action).Msg("audit entry recorded")
	return nil
}
