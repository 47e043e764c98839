package kuro

import (
	"context"
	"fmt"
	"net/url"

	"github.com/HibiKier/wuthering-waves/internal/domain"
)

const (
	LoginPath           = "/user/sdkLogin"
	LoginLogPath        = "/user/login/log"
	RoleListPath        = "/gamer/role/list"
	RequestTokenPath    = "/aki/roleBox/requestToken"
	RoleDataPath        = "/aki/roleBox/akiBox/roleData"
	CharacterDetailPath = "/aki/roleBox/akiBox/getRoleDetail"

	detailChannelID   = "19"
	detailCountryCode = "1"
)

func gameForm(playerID, serverID string) url.Values {
	form := url.Values{}
	form.Set("gameId", itoa(GameID))
	form.Set("serverId", serverID)
	form.Set("roleId", playerID)
	return form
}

func serverFor(playerID string, cred domain.Credential) string {
	if cred.ServerID != "" {
		return cred.ServerID
	}
	return ServerID(playerID)
}

// Login exchanges a phone number and SMS code for a session token.
func (c *Client) Login(ctx context.Context, mobile, code, deviceID string) (*LoginResult, error) {
	form := url.Values{}
	form.Set("mobile", mobile)
	form.Set("code", code)
	form.Set("devCode", deviceID)

	resp, err := c.call(ctx, &Request{Endpoint: LoginPath, Header: c.commonHeader(), Form: form})
	if err != nil {
		return nil, fmt.Errorf("failed to log in: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	result, err := decodeData[LoginResult](resp)
	if err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, domain.NewAPIError(resp.URL, domain.CodeCheckToken, "")
	}
	return &result, nil
}

// ListGameRoles lists the game accounts of every game visible to a token.
func (c *Client) ListGameRoles(ctx context.Context, token, deviceID string) ([]domain.GameRole, error) {
	form := url.Values{}
	form.Set("gameId", itoa(GameID))

	header := c.sessionHeader(domain.Credential{SessionToken: token})
	header.Set("devCode", deviceID)

	resp, err := c.call(ctx, &Request{Endpoint: RoleListPath, Header: header, Form: form})
	if err != nil {
		return nil, fmt.Errorf("failed to list game roles: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	roles, err := decodeData[[]gameRole](resp)
	if err != nil {
		return nil, err
	}
	out := make([]domain.GameRole, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// RequestAccessToken derives the short lived access token of a player from
// a session token.
func (c *Client) RequestAccessToken(ctx context.Context, playerID, token, deviceID, serverID string) (string, error) {
	if serverID == "" {
		serverID = ServerID(playerID)
	}
	form := url.Values{}
	form.Set("serverId", serverID)
	form.Set("roleId", playerID)

	header := c.sessionHeader(domain.Credential{SessionToken: token, DeviceID: deviceID})
	header.Set("b-at", "")

	resp, err := c.call(ctx, &Request{Endpoint: RequestTokenPath, Header: header, Form: form})
	if err != nil {
		return "", fmt.Errorf("failed to request access token for player %s: %w", playerID, err)
	}
	if err := resp.Err(); err != nil {
		return "", err
	}

	data, err := decodeData[accessTokenData](resp)
	if err != nil {
		return "", err
	}
	if data.AccessToken == "" {
		return "", domain.NewAPIError(resp.URL, domain.CodeCheckToken, "")
	}
	return data.AccessToken, nil
}

// Probe checks that cred is still logged in. A nil error means authenticated;
// otherwise the error is a *domain.LoginStatusError or a transport failure.
func (c *Client) Probe(ctx context.Context, playerID string, cred domain.Credential) error {
	header := c.sessionHeader(cred)
	if cred.DeviceID != "" {
		header.Set("devCode", cred.DeviceID)
	}

	resp, err := c.call(ctx, &Request{Endpoint: LoginLogPath, Header: header, Form: url.Values{}, PlayerID: playerID})
	if err != nil {
		return err
	}
	// Success codes pass the login check; anything else left here was not
	// classified because no player id was given.
	if !resp.OK() {
		return &domain.LoginStatusError{PlayerID: playerID, Status: domain.LoginStatusUnknown, Message: resp.Msg}
	}
	return nil
}

// GetRoster returns the character ids of a player account.
func (c *Client) GetRoster(ctx context.Context, playerID string, cred domain.Credential) (*domain.Roster, error) {
	form := gameForm(playerID, serverFor(playerID, cred))

	resp, err := c.call(ctx, &Request{Endpoint: RoleDataPath, Header: c.sessionHeader(cred), Form: form, PlayerID: playerID})
	if err != nil {
		return nil, fmt.Errorf("failed to get roster for player %s: %w", playerID, err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	data, err := decodeData[rosterData](resp)
	if err != nil {
		return nil, err
	}
	return data.toDomain(), nil
}

// GetCharacterDetail fetches the full build of one character.
func (c *Client) GetCharacterDetail(ctx context.Context, playerID string, characterID int, cred domain.Credential) (*domain.CharacterSnapshot, error) {
	form := gameForm(playerID, serverFor(playerID, cred))
	form.Set("channelId", detailChannelID)
	form.Set("countryCode", detailCountryCode)
	form.Set("id", itoa(characterID))

	resp, err := c.call(ctx, &Request{Endpoint: CharacterDetailPath, Header: c.sessionHeader(cred), Form: form, PlayerID: playerID})
	if err != nil {
		return nil, fmt.Errorf("failed to get character %d for player %s: %w", characterID, playerID, err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	data, err := decodeData[characterDetail](resp)
	if err != nil {
		return nil, err
	}
	if data.Role.RoleID == 0 {
		return nil, domain.NewAPIError(resp.URL, domain.CodeNoCharacterFound, "")
	}
	return data.toSnapshot(), nil
}
