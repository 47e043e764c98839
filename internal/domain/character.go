package domain

import "time"

// Catalog rows shared by every player.

type CharacterBase struct {
	CharacterID    int    `json:"character_id" db:"character_id" validate:"gt=0"`
	Name           string `json:"name" db:"name"`
	StarLevel      int    `json:"star_level" db:"star_level"`
	AttributeID    int    `json:"attribute_id" db:"attribute_id"`
	AttributeName  string `json:"attribute_name" db:"attribute_name"`
	WeaponTypeID   int    `json:"weapon_type_id" db:"weapon_type_id"`
	WeaponTypeName string `json:"weapon_type_name" db:"weapon_type_name"`
	Acronym        string `json:"acronym" db:"acronym"`
	IconURL        string `json:"icon_url" db:"icon_url"`
	PicURL         string `json:"pic_url" db:"pic_url"`
}

type Skill struct {
	SkillID     int    `json:"skill_id" db:"skill_id"`
	Type        string `json:"type" db:"type"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	IconURL     string `json:"icon_url" db:"icon_url"`
}

type Chain struct {
	ID          int64  `json:"id" db:"id"`
	CharacterID int    `json:"character_id" db:"character_id"`
	Name        string `json:"name" db:"name"`
	Order       int    `json:"order" db:"chain_order"`
	Description string `json:"description" db:"description"`
	IconURL     string `json:"icon_url" db:"icon_url"`
}

type WeaponDetail struct {
	WeaponID   int    `json:"weapon_id" db:"weapon_id" validate:"gt=0"`
	Name       string `json:"name" db:"name"`
	Type       int    `json:"type" db:"type"`
	StarLevel  int    `json:"star_level" db:"star_level"`
	IconURL    string `json:"icon_url" db:"icon_url"`
	EffectName string `json:"effect_name" db:"effect_name"`
}

type FetterDetail struct {
	ID                int64  `json:"id" db:"id"`
	GroupID           int    `json:"group_id" db:"group_id"`
	Name              string `json:"name" db:"name"`
	Num               int    `json:"num" db:"num"`
	IconURL           string `json:"icon_url" db:"icon_url"`
	FirstDescription  string `json:"first_description" db:"first_description"`
	SecondDescription string `json:"second_description" db:"second_description"`
}

// Per-player rows.

// Character is the persisted progression of one character on one player account.
// (PlayerID, CharacterID) is unique.
type Character struct {
	ID               int64     `json:"id" db:"id"`
	PlayerID         string    `json:"player_id" db:"player_id"`
	CharacterID      int       `json:"character_id" db:"character_id"`
	Level            int       `json:"level" db:"level"`
	Breach           int       `json:"breach" db:"breach"`
	ChainUnlockCount int       `json:"chain_unlock_count" db:"chain_unlock_count"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

type Weapon struct {
	ID             int64 `json:"id" db:"id"`
	CharacterRowID int64 `json:"character_row_id" db:"character_row_id"`
	WeaponID       int   `json:"weapon_id" db:"weapon_id"`
	Level          int   `json:"level" db:"level"`
	Breach         int   `json:"breach" db:"breach"`
	ResonanceLevel int   `json:"resonance_level" db:"resonance_level"`
}

// RelicItem is one equipped echo. GroupID is joined from its fetter row.
type RelicItem struct {
	ID             int64 `json:"id" db:"id"`
	CharacterRowID int64 `json:"character_row_id" db:"character_row_id"`
	FetterID       int64 `json:"fetter_id" db:"fetter_id"`
	GroupID        int   `json:"group_id" db:"group_id"`
	Cost           int   `json:"cost" db:"cost"`
	Quality        int   `json:"quality" db:"quality"`
	Level          int   `json:"level" db:"level"`
}

type RelicStat struct {
	ID             int64  `json:"id" db:"id"`
	RelicID        int64  `json:"relic_id" db:"relic_id"`
	PropID         int64  `json:"prop_id" db:"prop_id"`
	IsMain         bool   `json:"is_main" db:"is_main"`
	AttributeName  string `json:"attribute_name" db:"attribute_name"`
	AttributeValue string `json:"attribute_value" db:"attribute_value"`
}

// MaxRelics is the number of echo slots a character has.
const MaxRelics = 5
