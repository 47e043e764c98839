package kuro

import (
	"strconv"

	"github.com/HibiKier/wuthering-waves/internal/domain"
)

// Wire models of the companion API. Only the fields the core reads are
// declared; json matching is case-insensitive, so lower-cased list keys
// such as "chainlist" decode as well.

// LoginResult is the data of a successful code login.
type LoginResult struct {
	Token    string `json:"token"`
	UserID   int64  `json:"userId"`
	UserName string `json:"userName"`
	HeadURL  string `json:"headUrl"`
}

type gameRole struct {
	UserID     int64  `json:"userId"`
	GameID     int    `json:"gameId"`
	ServerID   string `json:"serverId"`
	ServerName string `json:"serverName"`
	RoleID     string `json:"roleId"`
	RoleName   string `json:"roleName"`
	IsDefault  bool   `json:"isDefault"`
}

func (r gameRole) toDomain() domain.GameRole {
	return domain.GameRole{
		GameID:    r.GameID,
		PlayerID:  r.RoleID,
		ServerID:  r.ServerID,
		Name:      r.RoleName,
		IsDefault: r.IsDefault,
	}
}

type accessTokenData struct {
	AccessToken string `json:"accessToken"`
}

type rosterData struct {
	RoleList []struct {
		RoleID int `json:"roleId"`
	} `json:"roleList"`
	ShowRoleIDList []int `json:"showRoleIdList"`
}

func (d rosterData) toDomain() *domain.Roster {
	roster := &domain.Roster{
		CharacterIDs: make([]int, 0, len(d.RoleList)),
		ShowcaseIDs:  append([]int(nil), d.ShowRoleIDList...),
	}
	for _, r := range d.RoleList {
		roster.CharacterIDs = append(roster.CharacterIDs, r.RoleID)
	}
	return roster
}

type roleBasic struct {
	RoleID         int    `json:"roleId"`
	RoleName       string `json:"roleName"`
	RoleIconURL    string `json:"roleIconUrl"`
	RolePicURL     string `json:"rolePicUrl"`
	StarLevel      int    `json:"starLevel"`
	AttributeID    int    `json:"attributeId"`
	AttributeName  string `json:"attributeName"`
	WeaponTypeID   int    `json:"weaponTypeId"`
	WeaponTypeName string `json:"weaponTypeName"`
	Acronym        string `json:"acronym"`
	Level          int    `json:"level"`
	Breach         int    `json:"breach"`
	ChainUnlockNum int    `json:"chainUnlockNum"`
}

type skillItem struct {
	Level int `json:"level"`
	Skill struct {
		ID          int    `json:"id"`
		Type        string `json:"type"`
		Name        string `json:"name"`
		Description string `json:"description"`
		IconURL     string `json:"iconUrl"`
	} `json:"skill"`
}

type chainItem struct {
	Name        string `json:"name"`
	Order       int    `json:"order"`
	Description string `json:"description"`
	IconURL     string `json:"iconUrl"`
	Unlocked    bool   `json:"unlocked"`
}

type weaponData struct {
	Level      int `json:"level"`
	Breach     int `json:"breach"`
	ResonLevel int `json:"resonLevel"`
	Weapon     struct {
		WeaponID         int    `json:"weaponId"`
		WeaponName       string `json:"weaponName"`
		WeaponType       int    `json:"weaponType"`
		WeaponStarLevel  int    `json:"weaponStarLevel"`
		WeaponIcon       string `json:"weaponIcon"`
		WeaponEffectName string `json:"weaponEffectName"`
	} `json:"weapon"`
}

type propItem struct {
	AttributeName  string `json:"attributeName"`
	AttributeValue string `json:"attributeValue"`
	IconURL        string `json:"iconUrl"`
	Valid          bool   `json:"valid"`
}

type equipPhantom struct {
	Cost         int `json:"cost"`
	Quality      int `json:"quality"`
	Level        int `json:"level"`
	FetterDetail struct {
		GroupID           int    `json:"groupId"`
		Name              string `json:"name"`
		Num               int    `json:"num"`
		IconURL           string `json:"iconUrl"`
		FirstDescription  string `json:"firstDescription"`
		SecondDescription string `json:"secondDescription"`
	} `json:"fetterDetail"`
	MainProps []propItem `json:"mainProps"`
	SubProps  []propItem `json:"subProps"`
}

type characterDetail struct {
	Role        roleBasic   `json:"role"`
	SkillList   []skillItem `json:"skilllist"`
	ChainList   []chainItem `json:"chainlist"`
	WeaponData  *weaponData `json:"weaponData"`
	PhantomData struct {
		EquipPhantomList []*equipPhantom `json:"equipPhantomlist"`
	} `json:"phantomData"`
}

func toStats(props []propItem) []domain.StatEntry {
	stats := make([]domain.StatEntry, 0, len(props))
	for _, p := range props {
		stats = append(stats, domain.StatEntry{
			Name:    p.AttributeName,
			Value:   p.AttributeValue,
			IconURL: p.IconURL,
			Valid:   p.Valid,
		})
	}
	return stats
}

func (d *characterDetail) toSnapshot() *domain.CharacterSnapshot {
	r := d.Role
	snap := &domain.CharacterSnapshot{
		Base: domain.CharacterBase{
			CharacterID:    r.RoleID,
			Name:           r.RoleName,
			StarLevel:      r.StarLevel,
			AttributeID:    r.AttributeID,
			AttributeName:  r.AttributeName,
			WeaponTypeID:   r.WeaponTypeID,
			WeaponTypeName: r.WeaponTypeName,
			Acronym:        r.Acronym,
			IconURL:        r.RoleIconURL,
			PicURL:         r.RolePicURL,
		},
		Level:            r.Level,
		Breach:           r.Breach,
		ChainUnlockCount: r.ChainUnlockNum,
	}

	for _, s := range d.SkillList {
		snap.Skills = append(snap.Skills, domain.SkillSnapshot{
			Skill: domain.Skill{
				SkillID:     s.Skill.ID,
				Type:        s.Skill.Type,
				Name:        s.Skill.Name,
				Description: s.Skill.Description,
				IconURL:     s.Skill.IconURL,
			},
			Level: s.Level,
		})
	}

	for _, c := range d.ChainList {
		snap.Chains = append(snap.Chains, domain.ChainSnapshot{
			Name:        c.Name,
			Order:       c.Order,
			Description: c.Description,
			IconURL:     c.IconURL,
			Unlocked:    c.Unlocked,
		})
	}

	if w := d.WeaponData; w != nil && w.Weapon.WeaponID != 0 {
		snap.Weapon = &domain.WeaponSnapshot{
			Detail: domain.WeaponDetail{
				WeaponID:   w.Weapon.WeaponID,
				Name:       w.Weapon.WeaponName,
				Type:       w.Weapon.WeaponType,
				StarLevel:  w.Weapon.WeaponStarLevel,
				IconURL:    w.Weapon.WeaponIcon,
				EffectName: w.Weapon.WeaponEffectName,
			},
			Level:          w.Level,
			Breach:         w.Breach,
			ResonanceLevel: w.ResonLevel,
		}
	}

	for _, p := range d.PhantomData.EquipPhantomList {
		// Empty slots arrive as null and stay nil.
		if p == nil {
			snap.Relics = append(snap.Relics, nil)
			continue
		}
		f := p.FetterDetail
		snap.Relics = append(snap.Relics, &domain.RelicSnapshot{
			Fetter: domain.FetterDetail{
				GroupID:           f.GroupID,
				Name:              f.Name,
				Num:               f.Num,
				IconURL:           f.IconURL,
				FirstDescription:  f.FirstDescription,
				SecondDescription: f.SecondDescription,
			},
			Cost:      p.Cost,
			Quality:   p.Quality,
			Level:     p.Level,
			MainStats: toStats(p.MainProps),
			SubStats:  toStats(p.SubProps),
		})
	}

	return snap
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
