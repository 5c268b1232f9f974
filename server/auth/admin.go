// Package auth decides who may use privileged command options.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/hrygo/chatdigest/ai/configloader"
)

// DeniedReply is sent to non-admins requesting the debug dump.
const DeniedReply = "您无权使用该命令！"

// AdminDocument is the on-disk admin registry.
type AdminDocument struct {
	AdminsID IDList `json:"admins_id" yaml:"admins_id"`
}

// IDList accepts platform IDs written either as JSON strings or numbers.
type IDList []string

func (l *IDList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			ids = append(ids, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(r, &n); err != nil {
			return fmt.Errorf("admin id %s: %w", r, err)
		}
		ids = append(ids, n.String())
	}
	*l = ids
	return nil
}

// AdminGate checks admin membership against a document that is re-read on
// every check, so edits take effect without a restart.
type AdminGate struct {
	loader *configloader.Loader
	path   string
}

// NewAdminGate creates an AdminGate reading path through loader.
func NewAdminGate(loader *configloader.Loader, path string) *AdminGate {
	return &AdminGate{loader: loader, path: path}
}

// IsDebug reports whether a command option requests the debug dump.
func IsDebug(flag string) bool {
	return flag == "debug" || flag == "Debug"
}

// IsAdmin reports whether userID is listed in the admin registry.
// An unreadable registry grants nobody.
func (g *AdminGate) IsAdmin(_ context.Context, userID string) (bool, error) {
	admins, err := g.Admins()
	if err != nil {
		slog.Warn("auth: admin registry unavailable", "path", g.path, "error", err)
		return false, err
	}
	return lo.Contains(admins, userID), nil
}

// Admins loads the current admin ID list.
func (g *AdminGate) Admins() ([]string, error) {
	var doc AdminDocument
	if err := g.loader.Load(g.path, &doc); err != nil {
		return nil, fmt.Errorf("load admin registry: %w", err)
	}
	return []string(doc.AdminsID), nil
}
