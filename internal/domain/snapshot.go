package domain

import (
	"sort"
	"strconv"
	"strings"
)

// CharacterSnapshot is the remote state of one character at fetch time.
// It is produced by one fetch and consumed once by reconciliation.
type CharacterSnapshot struct {
	Base             CharacterBase    `json:"base"`
	Level            int              `json:"level" validate:"gte=0"`
	Breach           int              `json:"breach" validate:"gte=0"`
	ChainUnlockCount int              `json:"chain_unlock_count" validate:"gte=0"`
	Skills           []SkillSnapshot  `json:"skills"`
	Chains           []ChainSnapshot  `json:"chains"`
	Weapon           *WeaponSnapshot  `json:"weapon"`
	Relics           []*RelicSnapshot `json:"relics" validate:"max=5"`
}

func (s *CharacterSnapshot) CharacterID() int {
	return s.Base.CharacterID
}

type SkillSnapshot struct {
	Skill Skill `json:"skill"`
	Level int   `json:"level"`
}

type ChainSnapshot struct {
	Name        string `json:"name"`
	Order       int    `json:"order"`
	Description string `json:"description"`
	IconURL     string `json:"icon_url"`
	Unlocked    bool   `json:"unlocked"`
}

type WeaponSnapshot struct {
	Detail         WeaponDetail `json:"detail"`
	Level          int          `json:"level"`
	Breach         int          `json:"breach"`
	ResonanceLevel int          `json:"resonance_level"`
}

type RelicSnapshot struct {
	Fetter    FetterDetail `json:"fetter"`
	Cost      int          `json:"cost"`
	Quality   int          `json:"quality"`
	Level     int          `json:"level"`
	MainStats []StatEntry  `json:"main_stats"`
	SubStats  []StatEntry  `json:"sub_stats"`
}

type StatEntry struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	IconURL string `json:"icon_url"`
	Valid   bool   `json:"valid"`
}

// Roster is the list of character ids visible on a player account.
type Roster struct {
	CharacterIDs []int
	// ShowcaseIDs is what the account owner exposes to other accounts.
	ShowcaseIDs []int
}

// CharacterSelector picks which characters a refresh covers.
type CharacterSelector struct {
	all bool
	ids map[int]struct{}
}

func SelectAll() CharacterSelector {
	return CharacterSelector{all: true}
}

// SelectIDs selects exactly the given ids. An empty call selects nothing.
func SelectIDs(ids ...int) CharacterSelector {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return CharacterSelector{ids: set}
}

func (s CharacterSelector) All() bool {
	return s.all
}

func (s CharacterSelector) Includes(id int) bool {
	if s.all {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

// Key identifies the selection, for coalescing identical refreshes.
func (s CharacterSelector) Key() string {
	if s.all {
		return "all"
	}
	ids := make([]int, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

type ChangeKind int

const (
	Unchanged ChangeKind = iota
	Changed
)

func (k ChangeKind) String() string {
	if k == Changed {
		return "changed"
	}
	return "unchanged"
}

// ReconcileResult holds sorted character ids by classification.
type ReconcileResult struct {
	ChangedIDs   []int
	UnchangedIDs []int
}
