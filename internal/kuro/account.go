package kuro

import (
	"context"
	"fmt"
	"net/url"

	"github.com/HibiKier/wuthering-waves/internal/domain"
)

const (
	BaseInfoPath          = "/aki/roleBox/akiBox/baseData"
	TowerDetailPath       = "/aki/roleBox/akiBox/towerDataDetail"
	RefreshLoginPath      = "/aki/roleBox/akiBox/refreshData"
	CalculatorRefreshPath = "/aki/calculator/refreshData"
	CatalogRolesPath      = "/aki/calculator/listRole"
	CatalogWeaponsPath    = "/aki/calculator/listWeapon"
)

type baseInfoData struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Level            int    `json:"level"`
	ActiveDays       int    `json:"activeDays"`
	RoleNum          int    `json:"roleNum"`
	AchievementCount int    `json:"achievementCount"`
	AchievementStar  int    `json:"achievementStar"`
	ChapterID        int    `json:"chapterId"`
	Energy           int    `json:"energy"`
	MaxEnergy        int    `json:"maxEnergy"`
	Liveness         int    `json:"liveness"`
	LivenessMaxCount int    `json:"livenessMaxCount"`
	CreatTime        int64  `json:"creatTime"`
	ShowToGuest      bool   `json:"showToGuest"`
}

func (d baseInfoData) toDomain(playerID string) *domain.AccountInfo {
	return &domain.AccountInfo{
		PlayerID:         playerID,
		Name:             d.Name,
		Level:            d.Level,
		ActiveDays:       d.ActiveDays,
		CharacterCount:   d.RoleNum,
		AchievementCount: d.AchievementCount,
		AchievementStar:  d.AchievementStar,
		ChapterID:        d.ChapterID,
		Energy:           d.Energy,
		MaxEnergy:        d.MaxEnergy,
		Liveness:         d.Liveness,
		LivenessMax:      d.LivenessMaxCount,
		CreatedAt:        d.CreatTime,
		ShowToGuest:      d.ShowToGuest,
	}
}

type towerData struct {
	IsUnlock       bool  `json:"isUnlock"`
	SeasonEndTime  int64 `json:"seasonEndTime"`
	DifficultyList []struct {
		Difficulty     int    `json:"difficulty"`
		DifficultyName string `json:"difficultyName"`
		TowerAreaList  []struct {
			AreaID    int    `json:"areaId"`
			AreaName  string `json:"areaName"`
			Star      int    `json:"star"`
			MaxStar   int    `json:"maxStar"`
			FloorList []struct {
				Floor    int `json:"floor"`
				Star     int `json:"star"`
				RoleList []struct {
					RoleID int `json:"roleId"`
				} `json:"roleList"`
			} `json:"floorList"`
		} `json:"towerAreaList"`
	} `json:"difficultyList"`
}

func (d towerData) toDomain() *domain.TowerData {
	out := &domain.TowerData{Unlocked: d.IsUnlock, SeasonEndTime: d.SeasonEndTime}
	for _, diff := range d.DifficultyList {
		td := domain.TowerDifficulty{Difficulty: diff.Difficulty, Name: diff.DifficultyName}
		for _, area := range diff.TowerAreaList {
			ta := domain.TowerArea{AreaID: area.AreaID, Name: area.AreaName, Star: area.Star, MaxStar: area.MaxStar}
			for _, floor := range area.FloorList {
				tf := domain.TowerFloor{Floor: floor.Floor, Star: floor.Star}
				for _, r := range floor.RoleList {
					tf.CharacterIDs = append(tf.CharacterIDs, r.RoleID)
				}
				ta.Floors = append(ta.Floors, tf)
			}
			td.Areas = append(td.Areas, ta)
		}
		out.Difficulties = append(out.Difficulties, td)
	}
	return out
}

type catalogRole struct {
	RoleID         int    `json:"roleId"`
	RoleName       string `json:"roleName"`
	RoleIconURL    string `json:"roleIconUrl"`
	StarLevel      int    `json:"starLevel"`
	AttributeID    int    `json:"attributeId"`
	AttributeName  string `json:"attributeName"`
	WeaponTypeID   int    `json:"weaponTypeId"`
	WeaponTypeName string `json:"weaponTypeName"`
	Acronym        string `json:"acronym"`
	IsPreview      bool   `json:"isPreview"`
	IsNew          bool   `json:"isNew"`
	Priority       int    `json:"priority"`
}

type catalogWeapon struct {
	WeaponID        int    `json:"weaponId"`
	WeaponName      string `json:"weaponName"`
	WeaponType      int    `json:"weaponType"`
	WeaponStarLevel int    `json:"weaponStarLevel"`
	WeaponIcon      string `json:"weaponIcon"`
	Acronym         string `json:"acronym"`
	IsPreview       bool   `json:"isPreview"`
	IsNew           bool   `json:"isNew"`
	Priority        int    `json:"priority"`
}

// GetBaseInfo returns the public profile of playerID.
func (c *Client) GetBaseInfo(ctx context.Context, playerID string, cred domain.Credential) (*domain.AccountInfo, error) {
	resp, err := c.playerCall(ctx, BaseInfoPath, playerID, cred, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get base info for player %s: %w", playerID, err)
	}
	data, err := decodeData[baseInfoData](resp)
	if err != nil {
		return nil, err
	}
	return data.toDomain(playerID), nil
}

// GetTowerData returns the tower progress of playerID.
func (c *Client) GetTowerData(ctx context.Context, playerID string, cred domain.Credential) (*domain.TowerData, error) {
	resp, err := c.playerCall(ctx, TowerDetailPath, playerID, cred, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get tower data for player %s: %w", playerID, err)
	}
	data, err := decodeData[towerData](resp)
	if err != nil {
		return nil, err
	}
	return data.toDomain(), nil
}

// RefreshLogin keeps the session of playerID alive.
func (c *Client) RefreshLogin(ctx context.Context, playerID string, cred domain.Credential) error {
	if _, err := c.playerCall(ctx, RefreshLoginPath, playerID, cred, true); err != nil {
		return fmt.Errorf("failed to refresh login of player %s: %w", playerID, err)
	}
	return nil
}

// RefreshCalculator asks the companion calculator to resync the account
// data of playerID. The response carries no login status check.
func (c *Client) RefreshCalculator(ctx context.Context, playerID string, cred domain.Credential) error {
	if _, err := c.playerCall(ctx, CalculatorRefreshPath, playerID, cred, false); err != nil {
		return fmt.Errorf("failed to refresh calculator data of player %s: %w", playerID, err)
	}
	return nil
}

// ListCatalogCharacters lists every released character. ownerPlayerID is the
// player the session belongs to and drives the login status check.
func (c *Client) ListCatalogCharacters(ctx context.Context, ownerPlayerID string, cred domain.Credential) ([]domain.CatalogCharacter, error) {
	resp, err := c.catalogCall(ctx, CatalogRolesPath, ownerPlayerID, cred)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog characters: %w", err)
	}
	roles, err := decodeData[[]catalogRole](resp)
	if err != nil {
		return nil, err
	}

	out := make([]domain.CatalogCharacter, 0, len(roles))
	for _, r := range roles {
		out = append(out, domain.CatalogCharacter{
			CharacterID:    r.RoleID,
			Name:           r.RoleName,
			IconURL:        r.RoleIconURL,
			StarLevel:      r.StarLevel,
			AttributeID:    r.AttributeID,
			AttributeName:  r.AttributeName,
			WeaponTypeID:   r.WeaponTypeID,
			WeaponTypeName: r.WeaponTypeName,
			Acronym:        r.Acronym,
			Preview:        r.IsPreview,
			New:            r.IsNew,
			Priority:       r.Priority,
		})
	}
	return out, nil
}

// ListCatalogWeapons lists every released weapon.
func (c *Client) ListCatalogWeapons(ctx context.Context, ownerPlayerID string, cred domain.Credential) ([]domain.CatalogWeapon, error) {
	resp, err := c.catalogCall(ctx, CatalogWeaponsPath, ownerPlayerID, cred)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog weapons: %w", err)
	}
	weapons, err := decodeData[[]catalogWeapon](resp)
	if err != nil {
		return nil, err
	}

	out := make([]domain.CatalogWeapon, 0, len(weapons))
	for _, w := range weapons {
		out = append(out, domain.CatalogWeapon{
			WeaponID:  w.WeaponID,
			Name:      w.WeaponName,
			Type:      w.WeaponType,
			StarLevel: w.WeaponStarLevel,
			IconURL:   w.WeaponIcon,
			Acronym:   w.Acronym,
			Preview:   w.IsPreview,
			New:       w.IsNew,
			Priority:  w.Priority,
		})
	}
	return out, nil
}

// playerCall posts the standard game form of playerID. checked enables the
// login status middleware for the response.
func (c *Client) playerCall(ctx context.Context, endpoint, playerID string, cred domain.Credential, checked bool) (*Response, error) {
	req := &Request{
		Endpoint: endpoint,
		Header:   c.sessionHeader(cred),
		Form:     gameForm(playerID, serverFor(playerID, cred)),
	}
	if checked {
		req.PlayerID = playerID
	}

	resp, err := c.call(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) catalogCall(ctx context.Context, endpoint, ownerPlayerID string, cred domain.Credential) (*Response, error) {
	resp, err := c.call(ctx, &Request{
		Endpoint: endpoint,
		Header:   c.sessionHeader(cred),
		Form:     url.Values{},
		PlayerID: ownerPlayerID,
	})
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}
