package kuro_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/kuro"
)

func TestClient_GetBaseInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, kuro.BaseInfoPath, r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "100000001", r.PostForm.Get("roleId"))
		require.Equal(t, "at-1", r.Header.Get("b-at"))
		_, _ = w.Write([]byte(`{"code":200,"success":true,"data":"{\"id\":100000001,\"name\":\"Rover\",\"level\":80,\"activeDays\":300,\"roleNum\":42,\"energy\":180,\"maxEnergy\":240,\"creatTime\":1716000000000,\"showToGuest\":true}"}`))
	}, nil)

	withToken := cred
	withToken.AccessToken = "at-1"
	info, err := client.GetBaseInfo(context.Background(), "100000001", withToken)
	require.NoError(t, err)
	require.Equal(t, &domain.AccountInfo{
		PlayerID:       "100000001",
		Name:           "Rover",
		Level:          80,
		ActiveDays:     300,
		CharacterCount: 42,
		Energy:         180,
		MaxEnergy:      240,
		CreatedAt:      1716000000000,
		ShowToGuest:    true,
	}, info)
}

func TestClient_GetBaseInfo_ExpiredSessionRunsHook(t *testing.T) {
	var expired []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":220,"msg":"登录已过期，请重新登录","success":false}`))
	}, func(o *kuro.Options) {
		o.OnExpired = func(_ context.Context, playerID, _ string) error {
			expired = append(expired, playerID)
			return nil
		}
	})

	_, err := client.GetBaseInfo(context.Background(), "100000001", cred)
	var loginErr *domain.LoginStatusError
	require.ErrorAs(t, err, &loginErr)
	require.Equal(t, domain.LoginStatusExpired, loginErr.Status)
	require.Equal(t, []string{"100000001"}, expired)
}

func TestClient_GetTowerData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, kuro.TowerDetailPath, r.URL.Path)
		_, _ = w.Write([]byte(`{"code":200,"success":true,"data":{"isUnlock":true,"seasonEndTime":1720000000000,"difficultyList":[{"difficulty":4,"difficultyName":"Deep","towerAreaList":[{"areaId":1,"areaName":"Echoing","star":9,"maxStar":12,"floorList":[{"floor":1,"star":3,"roleList":[{"roleId":1102},{"roleId":1203}]}]}]}]}}`))
	}, nil)

	tower, err := client.GetTowerData(context.Background(), "100000001", cred)
	require.NoError(t, err)
	require.True(t, tower.Unlocked)
	require.Len(t, tower.Difficulties, 1)
	area := tower.Difficulties[0].Areas[0]
	require.Equal(t, "Echoing", area.Name)
	require.Equal(t, 9, area.Star)
	require.Equal(t, []domain.TowerFloor{{Floor: 1, Star: 3, CharacterIDs: []int{1102, 1203}}}, area.Floors)
}

func TestClient_RefreshLogin(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, kuro.RefreshLoginPath, r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "100000001", r.PostForm.Get("roleId"))
		_, _ = w.Write([]byte(`{"code":200,"success":true}`))
	}, nil)

	require.NoError(t, client.RefreshLogin(context.Background(), "100000001", cred))
}

func TestClient_RefreshCalculator_SkipsLoginCheck(t *testing.T) {
	var hooked bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, kuro.CalculatorRefreshPath, r.URL.Path)
		_, _ = w.Write([]byte(`{"code":220,"msg":"登录已过期，请重新登录","success":false}`))
	}, func(o *kuro.Options) {
		o.OnExpired = func(context.Context, string, string) error {
			hooked = true
			return nil
		}
	})

	err := client.RefreshCalculator(context.Background(), "100000001", cred)
	var apiErr *domain.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 220, apiErr.Code)
	require.False(t, hooked)
}

func TestClient_ListCatalog(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Empty(t, r.PostForm.Get("roleId"))
		require.Equal(t, "session-token", r.Header.Get("token"))
		switch r.URL.Path {
		case kuro.CatalogRolesPath:
			_, _ = w.Write([]byte(`{"code":200,"success":true,"data":[{"roleId":1102,"roleName":"Sanhua","starLevel":4,"attributeId":1,"weaponTypeId":2},{"roleId":1509,"roleName":"Next","starLevel":5,"isPreview":true}]}`))
		case kuro.CatalogWeaponsPath:
			_, _ = w.Write([]byte(`{"code":200,"success":true,"data":[{"weaponId":21010016,"weaponName":"Verdant Summit","weaponType":1,"weaponStarLevel":5}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}, nil)

	characters, err := client.ListCatalogCharacters(context.Background(), "100000001", cred)
	require.NoError(t, err)
	require.Len(t, characters, 2)
	require.Equal(t, "Sanhua", characters[0].Name)
	require.Equal(t, 2, characters[0].WeaponTypeID)
	require.True(t, characters[1].Preview)

	weapons, err := client.ListCatalogWeapons(context.Background(), "100000001", cred)
	require.NoError(t, err)
	require.Equal(t, []domain.CatalogWeapon{{WeaponID: 21010016, Name: "Verdant Summit", Type: 1, StarLevel: 5}}, weapons)
}

func TestClient_ListCatalog_ExpiredSessionRunsHookForOwner(t *testing.T) {
	var expired []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":220,"msg":"登录已过期，请重新登录","success":false}`))
	}, func(o *kuro.Options) {
		o.OnExpired = func(_ context.Context, playerID, _ string) error {
			expired = append(expired, playerID)
			return nil
		}
	})

	_, err := client.ListCatalogWeapons(context.Background(), "100000002", cred)
	var loginErr *domain.LoginStatusError
	require.ErrorAs(t, err, &loginErr)
	require.Equal(t, []string{"100000002"}, expired)
}
