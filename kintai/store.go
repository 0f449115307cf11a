package kintai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/buntdb"
)

// ErrDuplicateOpenInterval is returned by OpenWork/OpenBreak when the key
// already has an open interval. The store is strict; the session engine owns
// the auto-close policy.
var ErrDuplicateOpenInterval = errors.New("open interval already exists")

// IntervalStore is the single source of truth for work and break intervals.
// "Who is on break" is always derived from the log itself, never cached.
type IntervalStore interface {
	OpenWork(person PersonID, group GroupID, at time.Time) error
	CloseWork(person PersonID, group GroupID, at time.Time) (*WorkInterval, error)
	CurrentOpenWork(person PersonID, group GroupID) (*WorkInterval, error)

	OpenBreak(person PersonID, group GroupID, category Category, at time.Time) error
	CloseBreak(person PersonID, group GroupID, at time.Time) (*BreakInterval, error)
	CurrentOpenBreak(person PersonID, group GroupID) (*BreakInterval, error)

	WorkOverlapping(person PersonID, group GroupID, rangeStart, rangeEnd time.Time) ([]WorkInterval, error)
	BreaksOverlapping(person PersonID, group GroupID, rangeStart, rangeEnd time.Time) ([]BreakInterval, error)

	Persons(group GroupID) ([]PersonID, error)
	Groups() ([]GroupID, error)
	Purge(group GroupID) error
}

func NewIntervalStore(db *buntdb.DB) IntervalStore {
	return &intervalStore{db: db}
}

type intervalStore struct {
	db *buntdb.DB
}

func workKey(group GroupID, person PersonID) string {
	return fmt.Sprintf("work:%s:%s", group, person)
}

func breakKey(group GroupID, person PersonID) string {
	return fmt.Sprintf("break:%s:%s", group, person)
}

func (s *intervalStore) OpenWork(person PersonID, group GroupID, at time.Time) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		var ws []WorkInterval
		if err := getJSON(tx, workKey(group, person), &ws); err != nil {
			return err
		}
		for _, w := range ws {
			if w.Open() {
				return ErrDuplicateOpenInterval
			}
		}
		ws = append(ws, WorkInterval{StartAt: at.UTC()})
		return setJSON(tx, workKey(group, person), ws)
	})
}

// CloseWork sets the end of the most-recently-opened open work interval.
// Returns the closed interval, or nil if none was open.
func (s *intervalStore) CloseWork(person PersonID, group GroupID, at time.Time) (*WorkInterval, error) {
	var closed *WorkInterval
	err := s.db.Update(func(tx *buntdb.Tx) error {
		var ws []WorkInterval
		if err := getJSON(tx, workKey(group, person), &ws); err != nil {
			return err
		}
		for i := len(ws) - 1; i >= 0; i-- {
			if ws[i].Open() {
				end := at.UTC()
				ws[i].EndAt = &end
				c := ws[i]
				closed = &c
				return setJSON(tx, workKey(group, person), ws)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (s *intervalStore) CurrentOpenWork(person PersonID, group GroupID) (*WorkInterval, error) {
	var open *WorkInterval
	err := s.db.View(func(tx *buntdb.Tx) error {
		var ws []WorkInterval
		if err := getJSON(tx, workKey(group, person), &ws); err != nil {
			return err
		}
		for i := len(ws) - 1; i >= 0; i-- {
			if ws[i].Open() {
				w := ws[i]
				open = &w
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return open, nil
}

func (s *intervalStore) OpenBreak(person PersonID, group GroupID, category Category, at time.Time) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		var bs []BreakInterval
		if err := getJSON(tx, breakKey(group, person), &bs); err != nil {
			return err
		}
		for _, b := range bs {
			if b.Open() {
				return ErrDuplicateOpenInterval
			}
		}
		bs = append(bs, BreakInterval{Category: category, StartAt: at.UTC()})
		return setJSON(tx, breakKey(group, person), bs)
	})
}

// CloseBreak closes the most recent open break regardless of category.
func (s *intervalStore) CloseBreak(person PersonID, group GroupID, at time.Time) (*BreakInterval, error) {
	var closed *BreakInterval
	err := s.db.Update(func(tx *buntdb.Tx) error {
		var bs []BreakInterval
		if err := getJSON(tx, breakKey(group, person), &bs); err != nil {
			return err
		}
		for i := len(bs) - 1; i >= 0; i-- {
			if bs[i].Open() {
				end := at.UTC()
				bs[i].EndAt = &end
				c := bs[i]
				closed = &c
				return setJSON(tx, breakKey(group, person), bs)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (s *intervalStore) CurrentOpenBreak(person PersonID, group GroupID) (*BreakInterval, error) {
	var open *BreakInterval
	err := s.db.View(func(tx *buntdb.Tx) error {
		var bs []BreakInterval
		if err := getJSON(tx, breakKey(group, person), &bs); err != nil {
			return err
		}
		for i := len(bs) - 1; i >= 0; i-- {
			if bs[i].Open() {
				b := bs[i]
				open = &b
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return open, nil
}

func (s *intervalStore) WorkOverlapping(person PersonID, group GroupID, rangeStart, rangeEnd time.Time) ([]WorkInterval, error) {
	var out []WorkInterval
	err := s.db.View(func(tx *buntdb.Tx) error {
		var ws []WorkInterval
		if err := getJSON(tx, workKey(group, person), &ws); err != nil {
			return err
		}
		for _, w := range ws {
			if overlaps(w.StartAt, w.EndAt, rangeStart, rangeEnd) {
				out = append(out, w)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *intervalStore) BreaksOverlapping(person PersonID, group GroupID, rangeStart, rangeEnd time.Time) ([]BreakInterval, error) {
	var out []BreakInterval
	err := s.db.View(func(tx *buntdb.Tx) error {
		var bs []BreakInterval
		if err := getJSON(tx, breakKey(group, person), &bs); err != nil {
			return err
		}
		for _, b := range bs {
			if overlaps(b.StartAt, b.EndAt, rangeStart, rangeEnd) {
				out = append(out, b)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Persons lists everyone who has ever opened a work interval in the group.
func (s *intervalStore) Persons(group GroupID) ([]PersonID, error) {
	prefix := fmt.Sprintf("work:%s:", group)
	var persons []PersonID
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+"*", func(key, _ string) bool {
			persons = append(persons, PersonID(strings.TrimPrefix(key, prefix)))
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return persons, nil
}

// Groups lists every group with at least one work interval.
func (s *intervalStore) Groups() ([]GroupID, error) {
	seen := map[GroupID]bool{}
	var groups []GroupID
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("work:*", func(key, _ string) bool {
			parts := strings.SplitN(key, ":", 3)
			if len(parts) == 3 {
				g := GroupID(parts[1])
				if !seen[g] {
					seen[g] = true
					groups = append(groups, g)
				}
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// Purge deletes all work and break intervals for the group. Irreversible.
// Settings and the admin action log survive a purge.
func (s *intervalStore) Purge(group GroupID) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		var keys []string
		for _, pattern := range []string{fmt.Sprintf("work:%s:*", group), fmt.Sprintf("break:%s:*", group)} {
			if err := tx.AscendKeys(pattern, func(key, _ string) bool {
				keys = append(keys, key)
				return true
			}); err != nil {
				return err
			}
		}
		for _, key := range keys {
			if _, err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func getJSON(tx *buntdb.Tx, key string, dst any) error {
	v, err := tx.Get(key)
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	return json.Unmarshal([]byte(v), dst)
}

func setJSON(tx *buntdb.Tx, key string, v any) error {
	bs, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _, err = tx.Set(key, string(bs), nil)
	return err
}
