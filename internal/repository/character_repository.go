package repository

import (
	"context"

	"github.com/HibiKier/wuthering-waves/internal/domain"
)

// CharacterRepository reads the persisted character graph of players.
// All writes go through WithinTx.
type CharacterRepository interface {
	ListCharacters(ctx context.Context, playerID string) ([]*domain.Character, error)
	GetCharacter(ctx context.Context, playerID string, characterID int) (*domain.Character, error)
	// SkillLevels maps skill id to level for a character row.
	SkillLevels(ctx context.Context, characterRowID int64) (map[int]int, error)
	UnlockedChainNames(ctx context.Context, characterRowID int64) ([]string, error)
	// GetWeapon wraps ErrNotFound when the character has no weapon row.
	GetWeapon(ctx context.Context, characterRowID int64) (*domain.Weapon, error)
	ListRelics(ctx context.Context, characterRowID int64) ([]*domain.RelicItem, error)
	ListRelicStats(ctx context.Context, relicID int64) ([]*domain.RelicStat, error)

	// WithinTx runs fn in one transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx CharacterTx) error) error
}

// CharacterTx is the write side of the graph. Families of child rows are
// replaced by deleting every row of the parent and inserting the new set.
type CharacterTx interface {
	EnsureCharacterBase(ctx context.Context, base *domain.CharacterBase) error
	UpsertCharacter(ctx context.Context, character *domain.Character) (int64, error)

	EnsureSkill(ctx context.Context, skill *domain.Skill) error
	DeleteSkills(ctx context.Context, characterRowID int64) error
	InsertSkill(ctx context.Context, characterRowID int64, skillID, level int) error

	EnsureChain(ctx context.Context, chain *domain.Chain) (int64, error)
	DeleteChains(ctx context.Context, characterRowID int64) error
	InsertChain(ctx context.Context, characterRowID, chainID int64, unlocked bool) error

	EnsureWeaponDetail(ctx context.Context, detail *domain.WeaponDetail) error
	DeleteWeapon(ctx context.Context, characterRowID int64) error
	InsertWeapon(ctx context.Context, weapon *domain.Weapon) error

	EnsureFetter(ctx context.Context, fetter *domain.FetterDetail) (int64, error)
	EnsureProp(ctx context.Context, name, value, iconURL string) (int64, error)
	// DeleteRelics removes the relics of a character together with their stats.
	DeleteRelics(ctx context.Context, characterRowID int64) error
	InsertRelic(ctx context.Context, relic *domain.RelicItem) (int64, error)
	InsertRelicStat(ctx context.Context, relicID, propID int64, isMain bool) error
}
