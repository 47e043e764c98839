package domain

// AccountInfo is the public profile of a player account.
type AccountInfo struct {
	PlayerID         string `json:"player_id"`
	Name             string `json:"name"`
	Level            int    `json:"level"`
	ActiveDays       int    `json:"active_days"`
	CharacterCount   int    `json:"character_count"`
	AchievementCount int    `json:"achievement_count"`
	AchievementStar  int    `json:"achievement_star"`
	ChapterID        int    `json:"chapter_id"`
	Energy           int    `json:"energy"`
	MaxEnergy        int    `json:"max_energy"`
	Liveness         int    `json:"liveness"`
	LivenessMax      int    `json:"liveness_max"`
	CreatedAt        int64  `json:"created_at"`
	ShowToGuest      bool   `json:"show_to_guest"`
}

// TowerData is a player's progress through the current tower season.
type TowerData struct {
	Unlocked      bool              `json:"unlocked"`
	SeasonEndTime int64             `json:"season_end_time"`
	Difficulties  []TowerDifficulty `json:"difficulties"`
}

type TowerDifficulty struct {
	Difficulty int         `json:"difficulty"`
	Name       string      `json:"name"`
	Areas      []TowerArea `json:"areas"`
}

type TowerArea struct {
	AreaID  int          `json:"area_id"`
	Name    string       `json:"name"`
	Star    int          `json:"star"`
	MaxStar int          `json:"max_star"`
	Floors  []TowerFloor `json:"floors"`
}

// TowerFloor lists the characters a floor was cleared with.
type TowerFloor struct {
	Floor        int   `json:"floor"`
	Star         int   `json:"star"`
	CharacterIDs []int `json:"character_ids"`
}

// CatalogCharacter is a character released in the game, as listed by the
// companion calculator.
type CatalogCharacter struct {
	CharacterID    int    `json:"character_id"`
	Name           string `json:"name"`
	IconURL        string `json:"icon_url"`
	StarLevel      int    `json:"star_level"`
	AttributeID    int    `json:"attribute_id"`
	AttributeName  string `json:"attribute_name"`
	WeaponTypeID   int    `json:"weapon_type_id"`
	WeaponTypeName string `json:"weapon_type_name"`
	Acronym        string `json:"acronym"`
	Preview        bool   `json:"preview"`
	New            bool   `json:"new"`
	Priority       int    `json:"priority"`
}

type CatalogWeapon struct {
	WeaponID  int    `json:"weapon_id"`
	Name      string `json:"name"`
	Type      int    `json:"type"`
	StarLevel int    `json:"star_level"`
	IconURL   string `json:"icon_url"`
	Acronym   string `json:"acronym"`
	Preview   bool   `json:"preview"`
	New       bool   `json:"new"`
	Priority  int    `json:"priority"`
}
