package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

type characterRepository struct {
	db *sqlx.DB
}

// NewCharacterRepository creates a SQL backed character graph repository
func NewCharacterRepository(db *sqlx.DB) repository.CharacterRepository {
	return &characterRepository{db: db}
}

// ListCharacters retrieves every persisted character of a player
func (r *characterRepository) ListCharacters(ctx context.Context, playerID string) ([]*domain.Character, error) {
	query := r.db.Rebind(`
		SELECT id, player_id, character_id, level, breach, chain_unlock_count, created_at, updated_at
		FROM characters
		WHERE player_id = ?
		ORDER BY character_id`)

	var characters []*domain.Character
	if err := r.db.SelectContext(ctx, &characters, query, playerID); err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}

	return characters, nil
}

// GetCharacter retrieves one character of a player
func (r *characterRepository) GetCharacter(ctx context.Context, playerID string, characterID int) (*domain.Character, error) {
	query := r.db.Rebind(`
		SELECT id, player_id, character_id, level, breach, chain_unlock_count, created_at, updated_at
		FROM characters
		WHERE player_id = ? AND character_id = ?`)

	var character domain.Character
	if err := r.db.GetContext(ctx, &character, query, playerID, characterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("character %d of player %s: %w", characterID, playerID, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get character: %w", err)
	}

	return &character, nil
}

func (r *characterRepository) SkillLevels(ctx context.Context, characterRowID int64) (map[int]int, error) {
	query := r.db.Rebind(`SELECT skill_id, level FROM character_skills WHERE character_row_id = ?`)

	var rows []struct {
		SkillID int `db:"skill_id"`
		Level   int `db:"level"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, characterRowID); err != nil {
		return nil, fmt.Errorf("failed to get skill levels: %w", err)
	}

	levels := make(map[int]int, len(rows))
	for _, row := range rows {
		levels[row.SkillID] = row.Level
	}

	return levels, nil
}

func (r *characterRepository) UnlockedChainNames(ctx context.Context, characterRowID int64) ([]string, error) {
	query := r.db.Rebind(`
		SELECT c.name
		FROM character_chains cc
		JOIN chains c ON c.id = cc.chain_id
		WHERE cc.character_row_id = ? AND cc.unlocked = ? AND c.name <> ''
		ORDER BY c.chain_order`)

	var names []string
	if err := r.db.SelectContext(ctx, &names, query, characterRowID, true); err != nil {
		return nil, fmt.Errorf("failed to get unlocked chains: %w", err)
	}

	return names, nil
}

func (r *characterRepository) GetWeapon(ctx context.Context, characterRowID int64) (*domain.Weapon, error) {
	query := r.db.Rebind(`
		SELECT id, character_row_id, weapon_id, level, breach, resonance_level
		FROM weapons
		WHERE character_row_id = ?`)

	var weapon domain.Weapon
	if err := r.db.GetContext(ctx, &weapon, query, characterRowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("weapon of character row %d: %w", characterRowID, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get weapon: %w", err)
	}

	return &weapon, nil
}

func (r *characterRepository) ListRelics(ctx context.Context, characterRowID int64) ([]*domain.RelicItem, error) {
	query := r.db.Rebind(`
		SELECT r.id, r.character_row_id, r.fetter_id, f.group_id, r.cost, r.quality, r.level
		FROM relic_items r
		JOIN fetter_details f ON f.id = r.fetter_id
		WHERE r.character_row_id = ?
		ORDER BY r.id`)

	var relics []*domain.RelicItem
	if err := r.db.SelectContext(ctx, &relics, query, characterRowID); err != nil {
		return nil, fmt.Errorf("failed to list relics: %w", err)
	}

	return relics, nil
}

func (r *characterRepository) ListRelicStats(ctx context.Context, relicID int64) ([]*domain.RelicStat, error) {
	query := r.db.Rebind(`
		SELECT s.id, s.relic_id, s.prop_id, s.is_main, p.attribute_name, p.attribute_value
		FROM relic_stats s
		JOIN props p ON p.id = s.prop_id
		WHERE s.relic_id = ?
		ORDER BY s.id`)

	var stats []*domain.RelicStat
	if err := r.db.SelectContext(ctx, &stats, query, relicID); err != nil {
		return nil, fmt.Errorf("failed to list relic stats: %w", err)
	}

	return stats, nil
}

// WithinTx runs fn in a transaction and commits when it returns nil
func (r *characterRepository) WithinTx(ctx context.Context, fn func(tx repository.CharacterTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&characterTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("failed to rollback character transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

type characterTx struct {
	tx *sqlx.Tx
}

func (t *characterTx) exec(ctx context.Context, what, query string, args ...any) error {
	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	return nil
}

func (t *characterTx) returningID(ctx context.Context, what, query string, args ...any) (int64, error) {
	var id int64
	if err := t.tx.QueryRowxContext(ctx, t.tx.Rebind(query), args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to %s: %w", what, err)
	}
	return id, nil
}

// EnsureCharacterBase creates the catalog row once; existing rows are kept as is
func (t *characterTx) EnsureCharacterBase(ctx context.Context, base *domain.CharacterBase) error {
	query := `
		INSERT INTO character_bases (
			character_id, name, star_level, attribute_id, attribute_name,
			weapon_type_id, weapon_type_name, acronym, icon_url, pic_url
		) VALUES (
			:character_id, :name, :star_level, :attribute_id, :attribute_name,
			:weapon_type_id, :weapon_type_name, :acronym, :icon_url, :pic_url
		)
		ON CONFLICT (character_id) DO NOTHING`

	if _, err := t.tx.NamedExecContext(ctx, query, base); err != nil {
		return fmt.Errorf("failed to ensure character base %d: %w", base.CharacterID, err)
	}

	return nil
}

func (t *characterTx) UpsertCharacter(ctx context.Context, character *domain.Character) (int64, error) {
	now := time.Now().UTC()
	if character.CreatedAt.IsZero() {
		character.CreatedAt = now
	}
	character.UpdatedAt = now

	id, err := t.returningID(ctx, "upsert character", `
		INSERT INTO characters (
			player_id, character_id, level, breach, chain_unlock_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (player_id, character_id) DO UPDATE SET
			level = excluded.level,
			breach = excluded.breach,
			chain_unlock_count = excluded.chain_unlock_count,
			updated_at = excluded.updated_at
		RETURNING id`,
		character.PlayerID, character.CharacterID, character.Level, character.Breach,
		character.ChainUnlockCount, character.CreatedAt, character.UpdatedAt)
	if err != nil {
		return 0, err
	}

	character.ID = id
	return id, nil
}

func (t *characterTx) EnsureSkill(ctx context.Context, skill *domain.Skill) error {
	query := `
		INSERT INTO skills (skill_id, type, name, description, icon_url)
		VALUES (:skill_id, :type, :name, :description, :icon_url)
		ON CONFLICT (skill_id) DO NOTHING`

	if _, err := t.tx.NamedExecContext(ctx, query, skill); err != nil {
		return fmt.Errorf("failed to ensure skill %d: %w", skill.SkillID, err)
	}

	return nil
}

func (t *characterTx) DeleteSkills(ctx context.Context, characterRowID int64) error {
	return t.exec(ctx, "delete skills", `DELETE FROM character_skills WHERE character_row_id = ?`, characterRowID)
}

func (t *characterTx) InsertSkill(ctx context.Context, characterRowID int64, skillID, level int) error {
	return t.exec(ctx, "insert skill",
		`INSERT INTO character_skills (character_row_id, skill_id, level) VALUES (?, ?, ?)`,
		characterRowID, skillID, level)
}

// EnsureChain returns the id of the chain identified by character, name and order
func (t *characterTx) EnsureChain(ctx context.Context, chain *domain.Chain) (int64, error) {
	if err := t.exec(ctx, "ensure chain", `
		INSERT INTO chains (character_id, name, chain_order, description, icon_url)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (character_id, name, chain_order) DO NOTHING`,
		chain.CharacterID, chain.Name, chain.Order, chain.Description, chain.IconURL); err != nil {
		return 0, err
	}

	id, err := t.returningID(ctx, "get chain id",
		`SELECT id FROM chains WHERE character_id = ? AND name = ? AND chain_order = ?`,
		chain.CharacterID, chain.Name, chain.Order)
	if err != nil {
		return 0, err
	}

	chain.ID = id
	return id, nil
}

func (t *characterTx) DeleteChains(ctx context.Context, characterRowID int64) error {
	return t.exec(ctx, "delete chains", `DELETE FROM character_chains WHERE character_row_id = ?`, characterRowID)
}

func (t *characterTx) InsertChain(ctx context.Context, characterRowID, chainID int64, unlocked bool) error {
	return t.exec(ctx, "insert chain",
		`INSERT INTO character_chains (character_row_id, chain_id, unlocked) VALUES (?, ?, ?)`,
		characterRowID, chainID, unlocked)
}

func (t *characterTx) EnsureWeaponDetail(ctx context.Context, detail *domain.WeaponDetail) error {
	query := `
		INSERT INTO weapon_details (weapon_id, name, type, star_level, icon_url, effect_name)
		VALUES (:weapon_id, :name, :type, :star_level, :icon_url, :effect_name)
		ON CONFLICT (weapon_id) DO NOTHING`

	if _, err := t.tx.NamedExecContext(ctx, query, detail); err != nil {
		return fmt.Errorf("failed to ensure weapon detail %d: %w", detail.WeaponID, err)
	}

	return nil
}

func (t *characterTx) DeleteWeapon(ctx context.Context, characterRowID int64) error {
	return t.exec(ctx, "delete weapon", `DELETE FROM weapons WHERE character_row_id = ?`, characterRowID)
}

func (t *characterTx) InsertWeapon(ctx context.Context, weapon *domain.Weapon) error {
	id, err := t.returningID(ctx, "insert weapon", `
		INSERT INTO weapons (character_row_id, weapon_id, level, breach, resonance_level)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		weapon.CharacterRowID, weapon.WeaponID, weapon.Level, weapon.Breach, weapon.ResonanceLevel)
	if err != nil {
		return err
	}

	weapon.ID = id
	return nil
}

// EnsureFetter returns the id of the fetter identified by group, name and piece count
func (t *characterTx) EnsureFetter(ctx context.Context, fetter *domain.FetterDetail) (int64, error) {
	if err := t.exec(ctx, "ensure fetter", `
		INSERT INTO fetter_details (group_id, name, num, icon_url, first_description, second_description)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (group_id, name, num) DO NOTHING`,
		fetter.GroupID, fetter.Name, fetter.Num, fetter.IconURL,
		fetter.FirstDescription, fetter.SecondDescription); err != nil {
		return 0, err
	}

	id, err := t.returningID(ctx, "get fetter id",
		`SELECT id FROM fetter_details WHERE group_id = ? AND name = ? AND num = ?`,
		fetter.GroupID, fetter.Name, fetter.Num)
	if err != nil {
		return 0, err
	}

	fetter.ID = id
	return id, nil
}

func (t *characterTx) EnsureProp(ctx context.Context, name, value, iconURL string) (int64, error) {
	if err := t.exec(ctx, "ensure prop", `
		INSERT INTO props (attribute_name, attribute_value, icon_url)
		VALUES (?, ?, ?)
		ON CONFLICT (attribute_name, attribute_value) DO NOTHING`,
		name, value, iconURL); err != nil {
		return 0, err
	}

	return t.returningID(ctx, "get prop id",
		`SELECT id FROM props WHERE attribute_name = ? AND attribute_value = ?`, name, value)
}

func (t *characterTx) DeleteRelics(ctx context.Context, characterRowID int64) error {
	if err := t.exec(ctx, "delete relic stats", `
		DELETE FROM relic_stats
		WHERE relic_id IN (SELECT id FROM relic_items WHERE character_row_id = ?)`, characterRowID); err != nil {
		return err
	}

	return t.exec(ctx, "delete relics", `DELETE FROM relic_items WHERE character_row_id = ?`, characterRowID)
}

func (t *characterTx) InsertRelic(ctx context.Context, relic *domain.RelicItem) (int64, error) {
	id, err := t.returningID(ctx, "insert relic", `
		INSERT INTO relic_items (character_row_id, fetter_id, cost, quality, level)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		relic.CharacterRowID, relic.FetterID, relic.Cost, relic.Quality, relic.Level)
	if err != nil {
		return 0, err
	}

	relic.ID = id
	return id, nil
}

func (t *characterTx) InsertRelicStat(ctx context.Context, relicID, propID int64, isMain bool) error {
	return t.exec(ctx, "insert relic stat",
		`INSERT INTO relic_stats (relic_id, prop_id, is_main) VALUES (?, ?, ?)`,
		relicID, propID, isMain)
}
