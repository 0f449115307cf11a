package kintai

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotPrivileged rejects a settings mutation or reset from an actor the
// caller did not pre-validate as privileged. Authorization itself is external;
// the core only receives the verdict.
var ErrNotPrivileged = errors.New("actor is not privileged")

// AdminService applies privileged group mutations and records every one in
// the append-only admin action log.
type AdminService struct {
	store    IntervalStore
	settings SettingsStore
	audit    AuditLog
	clock    Clock
	logger   *slog.Logger
}

func NewAdminService(store IntervalStore, settings SettingsStore, audit AuditLog, clock Clock, logger *slog.Logger) *AdminService {
	return &AdminService{store: store, settings: settings, audit: audit, clock: clock, logger: logger}
}

func (a *AdminService) SetReminderText(group GroupID, actor PersonID, privileged bool, text string) error {
	if !privileged {
		return ErrNotPrivileged
	}
	if err := a.settings.Ensure(group); err != nil {
		return err
	}
	if err := a.settings.SetReminderText(group, text); err != nil {
		return err
	}
	return a.log(group, actor, "set_reminder_text", truncate(text, 400))
}

func (a *AdminService) SetReminderMedia(group GroupID, actor PersonID, privileged bool, media string) error {
	if !privileged {
		return ErrNotPrivileged
	}
	if err := a.settings.Ensure(group); err != nil {
		return err
	}
	if err := a.settings.SetReminderMedia(group, media); err != nil {
		return err
	}
	return a.log(group, actor, "set_reminder_media", "media:"+media)
}

func (a *AdminService) ToggleWeekly(group GroupID, actor PersonID, privileged bool) (bool, error) {
	if !privileged {
		return false, ErrNotPrivileged
	}
	if err := a.settings.Ensure(group); err != nil {
		return false, err
	}
	enabled, err := a.settings.ToggleWeekly(group)
	if err != nil {
		return false, err
	}
	return enabled, a.log(group, actor, "toggle_weekly", fmt.Sprintf("enabled:%t", enabled))
}

func (a *AdminService) ToggleMonthly(group GroupID, actor PersonID, privileged bool) (bool, error) {
	if !privileged {
		return false, ErrNotPrivileged
	}
	if err := a.settings.Ensure(group); err != nil {
		return false, err
	}
	enabled, err := a.settings.ToggleMonthly(group)
	if err != nil {
		return false, err
	}
	return enabled, a.log(group, actor, "toggle_monthly", fmt.Sprintf("enabled:%t", enabled))
}

// Reset purges every work and break interval for the group. Irreversible.
func (a *AdminService) Reset(group GroupID, actor PersonID, privileged bool) error {
	if !privileged {
		return ErrNotPrivileged
	}
	if err := a.store.Purge(group); err != nil {
		return err
	}
	a.logger.Info("group intervals purged",
		slog.String("group", string(group)), slog.String("actor", string(actor)))
	return a.log(group, actor, "reset", "purged work and break intervals")
}

func (a *AdminService) log(group GroupID, actor PersonID, action, details string) error {
	return a.audit.Append(group, AdminAction{
		Actor:     actor,
		Action:    action,
		Details:   details,
		CreatedAt: a.clock.Now().UTC(),
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
