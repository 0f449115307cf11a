package kintai

import (
	"errors"

	"github.com/tidwall/buntdb"
)

// GroupSettings is the per-group configuration row, lazily created the first
// time the group is referenced.
type GroupSettings struct {
	ReminderText   string `json:"reminder_text"`
	ReminderMedia  string `json:"reminder_media"`
	WeeklyEnabled  bool   `json:"weekly_enabled"`
	MonthlyEnabled bool   `json:"monthly_enabled"`
}

type SettingsStore interface {
	Get(group GroupID) (GroupSettings, error)
	Ensure(group GroupID) error
	SetReminderText(group GroupID, text string) error
	SetReminderMedia(group GroupID, media string) error
	ToggleWeekly(group GroupID) (bool, error)
	ToggleMonthly(group GroupID) (bool, error)
}

func NewSettingsStore(db *buntdb.DB) SettingsStore {
	return &settingsStore{db: db}
}

type settingsStore struct {
	db *buntdb.DB
}

func settingsKey(group GroupID) string {
	return "settings:" + string(group)
}

func (s *settingsStore) Get(group GroupID) (GroupSettings, error) {
	var gs GroupSettings
	err := s.db.View(func(tx *buntdb.Tx) error {
		return getJSON(tx, settingsKey(group), &gs)
	})
	return gs, err
}

// Ensure writes the default row if the group has none yet. Idempotent.
func (s *settingsStore) Ensure(group GroupID) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(settingsKey(group)); err == nil {
			return nil
		} else if !errors.Is(err, buntdb.ErrNotFound) {
			return err
		}
		return setJSON(tx, settingsKey(group), GroupSettings{})
	})
}

func (s *settingsStore) SetReminderText(group GroupID, text string) error {
	return s.update(group, func(gs *GroupSettings) {
		gs.ReminderText = text
	})
}

func (s *settingsStore) SetReminderMedia(group GroupID, media string) error {
	return s.update(group, func(gs *GroupSettings) {
		gs.ReminderMedia = media
	})
}

func (s *settingsStore) ToggleWeekly(group GroupID) (bool, error) {
	var enabled bool
	err := s.update(group, func(gs *GroupSettings) {
		gs.WeeklyEnabled = !gs.WeeklyEnabled
		enabled = gs.WeeklyEnabled
	})
	return enabled, err
}

func (s *settingsStore) ToggleMonthly(group GroupID) (bool, error) {
	var enabled bool
	err := s.update(group, func(gs *GroupSettings) {
		gs.MonthlyEnabled = !gs.MonthlyEnabled
		enabled = gs.MonthlyEnabled
	})
	return enabled, err
}

func (s *settingsStore) update(group GroupID, fn func(*GroupSettings)) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		var gs GroupSettings
		if err := getJSON(tx, settingsKey(group), &gs); err != nil {
			return err
		}
		fn(&gs)
		return setJSON(tx, settingsKey(group), gs)
	})
}
